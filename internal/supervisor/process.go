package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/stream"
)

// Handle is the view of a spawned process used by the supervising job.
type Handle interface {
	LaunchID() LaunchID
	PID() int
	StartTime() time.Time

	// AddListener attaches l to both stdout and stderr.
	AddListener(l stream.Listener)

	// IsTerminated is non-blocking. Once true, every output line has been
	// delivered to the attached listeners.
	IsTerminated() bool

	Terminate(ctx context.Context) error
}

// Process is a spawned TLC process. It implements Handle.
type Process struct {
	id        LaunchID
	cmd       *exec.Cmd
	pid       int
	start     time.Time
	grace     time.Duration
	logger    *slog.Logger
	callbacks Callbacks

	stdout *stream.Monitor
	stderr *stream.Monitor

	done chan struct{}

	mu       sync.Mutex
	state    State
	end      time.Time
	exitCode int
}

// wait reaps the process after both output channels hit EOF, so no line is
// still in flight when IsTerminated flips.
func (p *Process) wait() {
	<-p.stdout.Done()
	<-p.stderr.Done()

	waitErr := p.cmd.Wait()
	end := time.Now()
	exitCode := extractExitCode(waitErr)

	p.mu.Lock()
	p.end = end
	p.exitCode = exitCode
	p.mu.Unlock()

	uptime := end.Sub(p.start)
	p.setState(StateExited)
	close(p.done)

	for _, m := range []*stream.Monitor{p.stdout, p.stderr} {
		if err := m.Err(); err != nil {
			p.logger.Warn("output_read_error",
				"launch_id", p.id,
				"channel", m.Channel(),
				"error", err,
			)
		}
	}

	p.logger.Info("tlc_exited",
		"launch_id", p.id,
		"pid", p.pid,
		"exit_code", exitCode,
		"uptime", uptime.String(),
	)

	if p.callbacks.OnExit != nil {
		p.callbacks.OnExit(p.id, exitCode, uptime)
	}
}

// LaunchID returns the launch identity.
func (p *Process) LaunchID() LaunchID { return p.id }

// PID returns the OS process id.
func (p *Process) PID() int { return p.pid }

// StartTime returns when the process was started.
func (p *Process) StartTime() time.Time { return p.start }

// EndTime returns when the process was reaped, or the zero time.
func (p *Process) EndTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.end
}

// ExitCode returns the exit code, or 0 while running. Signal exits report
// 128 + signal number.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Process) setState(newState State) {
	p.mu.Lock()
	oldState := p.state
	p.state = newState
	p.mu.Unlock()

	if p.callbacks.OnStateChange != nil && oldState != newState {
		p.callbacks.OnStateChange(p.id, oldState, newState)
	}
}

// beginStopping moves an active process to StateStopping. It reports false,
// leaving the state alone, once the process is no longer active.
func (p *Process) beginStopping() bool {
	p.mu.Lock()
	oldState := p.state
	if !oldState.IsActive() {
		p.mu.Unlock()
		return false
	}
	p.state = StateStopping
	p.mu.Unlock()

	if p.callbacks.OnStateChange != nil && oldState != StateStopping {
		p.callbacks.OnStateChange(p.id, oldState, StateStopping)
	}
	return true
}

// Stdout returns the stdout monitor.
func (p *Process) Stdout() *stream.Monitor { return p.stdout }

// Stderr returns the stderr monitor.
func (p *Process) Stderr() *stream.Monitor { return p.stderr }

// AddListener implements Handle.
func (p *Process) AddListener(l stream.Listener) {
	p.stdout.AddListener(l)
	p.stderr.AddListener(l)
}

// Done is closed once the process is terminated.
func (p *Process) Done() <-chan struct{} { return p.done }

// IsTerminated implements Handle.
func (p *Process) IsTerminated() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Terminate sends SIGTERM to the process group, waits the grace period, then
// sends SIGKILL. It returns nil once the process is gone, including when it
// had already exited. Errors wrap ErrTerminateUnsupported or
// ErrTerminateRejected.
func (p *Process) Terminate(ctx context.Context) error {
	if p.IsTerminated() {
		return nil
	}
	if p.cmd == nil || p.cmd.Process == nil {
		return ErrTerminateUnsupported
	}

	// wait() may have marked the process exited after the check above; it
	// is only draining output then, so there is nothing left to signal.
	if !p.beginStopping() {
		select {
		case <-p.done:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrTerminateRejected, ctx.Err())
		}
	}
	p.logger.Info("terminating_process", "launch_id", p.id, "pid", p.pid)

	if err := classifySignalError(signalTerminate(p.cmd.Process)); err != nil {
		return err
	}

	timer := time.NewTimer(p.grace)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrTerminateRejected, ctx.Err())
	}

	p.logger.Warn("force_killing_process",
		"launch_id", p.id,
		"pid", p.pid,
		"grace", p.grace.String(),
	)
	if err := classifySignalError(signalKill(p.cmd.Process)); err != nil {
		return err
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: process did not exit: %v", ErrTerminateRejected, ctx.Err())
	}
}

// classifySignalError maps a signal delivery error. A process that is already
// gone is not an error.
func classifySignalError(err error) error {
	switch {
	case err == nil:
		return nil
	case isProcessGone(err):
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrTerminateRejected, err)
	}
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Unknown error, assume exit code 1
	return 1
}
