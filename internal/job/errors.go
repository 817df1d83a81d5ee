package job

import "errors"

var (
	// ErrLaunch means the launch request could not be built or the process
	// could not be started.
	ErrLaunch = errors.New("launch failed")

	// ErrProcessNotFound means the spawn succeeded but the process could not
	// be resolved from its launch.
	ErrProcessNotFound = errors.New("process not found")

	// ErrTermination means cancellation was requested but TLC could not be
	// terminated.
	ErrTermination = errors.New("termination failed")

	// ErrFinish means the post-run hook failed.
	ErrFinish = errors.New("finish hook failed")

	// ErrJobReused is returned when Run is called a second time.
	ErrJobReused = errors.New("job already run")

	// ErrPanic means the run panicked and was recovered.
	ErrPanic = errors.New("run panicked")
)

// terminationReason is reported when TLC cannot be stopped. There is no
// retry; the user has to clean up by hand.
const terminationReason = "Error terminating the running TLC instance. This is a bug. Make sure to exit the supervisor."
