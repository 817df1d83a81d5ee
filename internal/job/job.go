// Package job drives one TLC supervision run end to end: build the launch,
// spawn TLC, attach output, poll until exit or cancellation, and finalize.
package job

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/config"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/launch"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/stream"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/supervisor"
)

// Total work units reported to the progress monitor.
const totalWork = 4

// terminateSlack is added to the terminate grace period to bound the whole
// Terminate call.
const terminateSlack = 5 * time.Second

// Supervisor is the process-owning side of a run. *supervisor.Supervisor
// implements it.
type Supervisor interface {
	Spawn(ctx context.Context, req *launch.Request) (supervisor.LaunchID, error)
	Find(id supervisor.LaunchID) (supervisor.Handle, error)
	Release()
}

// Finisher runs after TLC exits on its own, before the outcome is reported.
type Finisher interface {
	Finish(ctx context.Context, req *launch.Request) error
}

// FinisherFunc adapts a function to Finisher.
type FinisherFunc func(ctx context.Context, req *launch.Request) error

// Finish implements Finisher.
func (f FinisherFunc) Finish(ctx context.Context, req *launch.Request) error {
	return f(ctx, req)
}

// Recorder receives the outcome of every run, e.g. for metrics.
type Recorder interface {
	RecordRun(name string, o Outcome)
}

// Config holds the collaborators of a Job. Only Run is required.
type Config struct {
	Run        *config.Config
	Supervisor Supervisor       // nil = supervisor.New with Run's grace period
	Registry   *stream.Registry // nil = no sinks
	Monitor    ProgressMonitor  // nil = NewContextMonitor(ctx)
	Finisher   Finisher
	Recorder   Recorder
	Logger     *slog.Logger
}

// Job supervises exactly one TLC run. It is not reusable.
type Job struct {
	cfg        *config.Config
	sup        Supervisor
	registry   *stream.Registry
	monitor    ProgressMonitor
	finisher   Finisher
	recorder   Recorder
	logger     *slog.Logger
	poll       time.Duration
	termBudget time.Duration

	mu    sync.Mutex
	state State
	start time.Time
	end   time.Time
	used  bool
}

// New creates a Job.
func New(cfg Config) *Job {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	run := cfg.Run
	if run == nil {
		run = config.DefaultConfig()
	}
	sup := cfg.Supervisor
	if sup == nil {
		sup = supervisor.New(supervisor.Config{
			TerminateGrace: run.TerminateGrace,
			Logger:         logger,
		})
	}
	registry := cfg.Registry
	if registry == nil {
		registry = stream.NewRegistry()
	}
	poll := run.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	grace := run.TerminateGrace
	if grace <= 0 {
		grace = supervisor.DefaultTerminateGrace
	}

	return &Job{
		cfg:        run,
		sup:        sup,
		registry:   registry,
		monitor:    cfg.Monitor,
		finisher:   cfg.Finisher,
		recorder:   cfg.Recorder,
		logger:     logger,
		poll:       poll,
		termBudget: grace + terminateSlack,
	}
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

// StartTime returns when TLC was started, or the zero time.
func (j *Job) StartTime() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.start
}

// EndTime returns when the run ended, or the zero time.
func (j *Job) EndTime() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.end
}

func (j *Job) markStart(t time.Time) {
	j.mu.Lock()
	j.start = t
	j.mu.Unlock()
}

func (j *Job) markEnd() {
	j.mu.Lock()
	if j.end.IsZero() {
		j.end = time.Now()
	}
	j.mu.Unlock()
}

// Kind returns the output kind for a run mode.
func Kind(mode string) stream.Kind {
	if mode == config.ModeTraceExplore {
		return stream.KindTraceExplore
	}
	return stream.KindOut
}

// Run supervises TLC until it exits or the run is cancelled, through
// ctx or the progress monitor. Every registered sink gets exactly one
// StreamClosed, whatever the outcome. A second call returns an error outcome
// without touching the sinks.
func (j *Job) Run(ctx context.Context) (out Outcome) {
	j.mu.Lock()
	if j.used {
		j.mu.Unlock()
		return Outcome{
			Status: StatusError,
			Reason: "job already run",
			Err:    ErrJobReused,
		}
	}
	j.used = true
	j.start = time.Now()
	j.mu.Unlock()

	monitor := j.monitor
	if monitor == nil {
		monitor = NewContextMonitor(ctx, j.logger)
	}

	name := launch.ModuleName(j.cfg.RootModule)
	bc := stream.NewBroadcaster(name, Kind(j.cfg.Mode), j.registry)

	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("run_panicked", "name", name, "panic", r)
			out = errorOutcome(fmt.Sprintf("internal error: %v", r), fmt.Errorf("%w: %v", ErrPanic, r))
		}
		j.setState(StateFinalizing)
		j.markEnd()

		j.safely("close_stream", bc.Close)
		j.safely("monitor_done", monitor.Done)
		j.safely("release_process", j.sup.Release)

		out.Start, out.End = j.StartTime(), j.EndTime()
		j.logOutcome(name, bc, out)
		if j.recorder != nil {
			j.safely("record_run", func() { j.recorder.RecordRun(name, out) })
		}
		j.setState(StateDone)
	}()

	monitor.BeginTask("TLC run", totalWork)
	return j.run(ctx, monitor, bc)
}

func (j *Job) run(ctx context.Context, monitor ProgressMonitor, bc *stream.Broadcaster) Outcome {
	j.setState(StateLaunching)

	monitor.SubTask(TaskPreparing)
	req, err := launch.Build(j.cfg)
	if err != nil {
		return errorOutcome("preparing the TLC launch failed: "+err.Error(), fmt.Errorf("%w: %w", ErrLaunch, err))
	}
	j.logger.Debug("tlc_arguments",
		"name", req.Name(),
		"mode", req.Mode(),
		"command", req.CommandString(),
	)
	monitor.Worked(1)

	// Nothing to terminate yet.
	if monitor.IsCanceled() || ctx.Err() != nil {
		j.markEnd()
		return Outcome{Status: StatusCancelled}
	}

	monitor.SubTask(TaskLaunching)
	id, err := j.sup.Spawn(ctx, req)
	if err != nil {
		j.logger.Error("tlc_launch_failed", "name", req.Name(), "error", err)
		return errorOutcome("launching TLC failed: "+err.Error(), fmt.Errorf("%w: %w", ErrLaunch, err))
	}
	monitor.Worked(1)

	monitor.SubTask(TaskConnecting)
	h, err := j.sup.Find(id)
	if err != nil {
		j.logger.Error("tlc_process_not_found", "launch_id", id, "error", err)
		return errorOutcome("could not connect to the running TLC instance: "+err.Error(), fmt.Errorf("%w: %w", ErrProcessNotFound, err))
	}
	j.markStart(h.StartTime())
	h.AddListener(bc)
	monitor.Worked(1)

	j.setState(StateRunning)
	monitor.SubTask(TaskChecking)

	ticker := time.NewTicker(j.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
		}

		// Cancellation wins over a simultaneous natural exit.
		if monitor.IsCanceled() || ctx.Err() != nil {
			return j.cancel(ctx, monitor, h)
		}
		if h.IsTerminated() {
			return j.finish(ctx, monitor, req)
		}
	}
}

// cancel terminates TLC. Terminate is called exactly once.
func (j *Job) cancel(ctx context.Context, monitor ProgressMonitor, h supervisor.Handle) Outcome {
	monitor.SubTask(TaskTerminating)
	j.logger.Info("tlc_cancel_requested", "launch_id", h.LaunchID(), "pid", h.PID())

	// The run context is usually already done here.
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.termBudget)
	defer cancel()

	if err := h.Terminate(tctx); err != nil {
		j.logger.Error("termination_failed",
			"launch_id", h.LaunchID(),
			"pid", h.PID(),
			"error", err,
		)
		return errorOutcome(terminationReason, fmt.Errorf("%w: %w", ErrTermination, err))
	}

	j.markEnd()
	return Outcome{Status: StatusCancelled}
}

func (j *Job) finish(ctx context.Context, monitor ProgressMonitor, req *launch.Request) Outcome {
	if j.finisher != nil {
		if err := j.finisher.Finish(context.WithoutCancel(ctx), req); err != nil {
			j.markEnd()
			return errorOutcome("TLC finished, but post-processing failed: "+err.Error(), fmt.Errorf("%w: %w", ErrFinish, err))
		}
	}
	j.markEnd()
	monitor.Worked(1)
	monitor.SubTask(TaskFinished)
	return Outcome{Status: StatusOK}
}

// safely runs a finalization step so a panicking sink or monitor cannot skip
// the remaining steps.
func (j *Job) safely(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("finalize_step_panicked", "step", step, "panic", r)
		}
	}()
	fn()
}

func (j *Job) logOutcome(name string, bc *stream.Broadcaster, out Outcome) {
	delivered, discarded := bc.Stats()
	attrs := []any{
		"name", name,
		"status", out.Status.String(),
		"duration", out.Duration().String(),
		"lines", delivered,
	}
	if discarded > 0 {
		attrs = append(attrs, "lines_discarded", discarded)
	}
	if out.Status == StatusError {
		attrs = append(attrs, "reason", out.Reason)
		j.logger.Error("tlc_run_finished", attrs...)
		return
	}
	j.logger.Info("tlc_run_finished", attrs...)
}

func errorOutcome(reason string, err error) Outcome {
	return Outcome{Status: StatusError, Reason: reason, Err: err}
}
