package supervisor

import "errors"

var (
	// ErrAlreadySpawned is returned when Spawn is called twice on one Supervisor.
	ErrAlreadySpawned = errors.New("process already spawned")

	// ErrProcessNotFound is returned by Find for unknown or released launches.
	ErrProcessNotFound = errors.New("process not found")

	// ErrTerminateUnsupported means there is no live OS handle to signal.
	ErrTerminateUnsupported = errors.New("termination not supported")

	// ErrTerminateRejected means the OS refused the signal or the process
	// did not exit in time.
	ErrTerminateRejected = errors.New("termination rejected")
)
