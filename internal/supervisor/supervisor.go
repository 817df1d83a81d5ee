package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/launch"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/stream"
)

// DefaultTerminateGrace is the wait between SIGTERM and SIGKILL.
const DefaultTerminateGrace = 2 * time.Second

// LaunchID identifies one spawned process.
type LaunchID string

// CommandBuilder creates the command for a launch request.
// This interface allows the supervisor to be decoupled from JVM specifics.
type CommandBuilder interface {
	BuildCommand(req *launch.Request) (*exec.Cmd, error)
}

// CommandBuilderFunc adapts a function to CommandBuilder.
type CommandBuilderFunc func(req *launch.Request) (*exec.Cmd, error)

// BuildCommand implements CommandBuilder.
func (f CommandBuilderFunc) BuildCommand(req *launch.Request) (*exec.Cmd, error) {
	return f(req)
}

// JVMBuilder runs the request's java command line in its working directory
// with the request's environment overrides applied to os.Environ.
type JVMBuilder struct{}

// BuildCommand implements CommandBuilder.
func (JVMBuilder) BuildCommand(req *launch.Request) (*exec.Cmd, error) {
	argv := req.CommandLine()
	if argv[0] == "" {
		return nil, errors.New("java executable not set")
	}
	// No CommandContext: the process outlives cancellation until Terminate.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = req.WorkDir()
	cmd.Env = req.Environ(os.Environ())
	return cmd, nil
}

// Callbacks contains optional callback functions for process events.
type Callbacks struct {
	// OnStateChange is called when the process state changes.
	OnStateChange func(id LaunchID, oldState, newState State)

	// OnStart is called when the process starts.
	OnStart func(id LaunchID, pid int)

	// OnExit is called once the process exited and its output is drained.
	OnExit func(id LaunchID, exitCode int, uptime time.Duration)
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	Builder        CommandBuilder // nil = JVMBuilder
	TerminateGrace time.Duration  // 0 = DefaultTerminateGrace
	Logger         *slog.Logger
	Callbacks      Callbacks
}

// Supervisor spawns and tracks a single TLC process. It owns the process
// handle; callers reach it through Find until Release.
type Supervisor struct {
	builder   CommandBuilder
	grace     time.Duration
	logger    *slog.Logger
	callbacks Callbacks

	mu       sync.Mutex
	spawned  bool
	launches map[LaunchID]*Process
	current  *Process
}

// New creates a new Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	builder := cfg.Builder
	if builder == nil {
		builder = JVMBuilder{}
	}
	grace := cfg.TerminateGrace
	if grace <= 0 {
		grace = DefaultTerminateGrace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Supervisor{
		builder:   builder,
		grace:     grace,
		logger:    logger,
		callbacks: cfg.Callbacks,
		launches:  make(map[LaunchID]*Process),
	}
}

// Spawn starts the process described by req. Output capture begins
// immediately; lines produced before a listener attaches are buffered.
func (s *Supervisor) Spawn(ctx context.Context, req *launch.Request) (LaunchID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.spawned {
		s.mu.Unlock()
		return "", ErrAlreadySpawned
	}
	s.spawned = true
	s.mu.Unlock()

	id := LaunchID(uuid.NewString())
	p := &Process{
		id:        id,
		grace:     s.grace,
		logger:    s.logger,
		callbacks: s.callbacks,
		done:      make(chan struct{}),
	}

	cmd, err := s.builder.BuildCommand(req)
	if err != nil {
		s.logger.Error("failed_to_build_command", "launch_id", id, "error", err)
		return "", fmt.Errorf("build command: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("stderr pipe: %w", err)
	}

	// Own process group so Terminate reaches JVM children too.
	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		s.logger.Error("failed_to_start_process",
			"launch_id", id,
			"path", cmd.Path,
			"error", err,
		)
		return "", fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	// Observers only see processes that exist, so no transition is
	// reported for a failed launch.
	p.setState(StateStarting)
	p.cmd = cmd
	p.pid = cmd.Process.Pid
	p.start = time.Now()
	p.stdout = stream.NewMonitor(stream.ChannelStdout, stdout)
	p.stderr = stream.NewMonitor(stream.ChannelStderr, stderr)
	go p.stdout.Run()
	go p.stderr.Run()
	go p.wait()

	p.setState(StateRunning)

	s.mu.Lock()
	s.launches[id] = p
	s.current = p
	s.mu.Unlock()

	s.logger.Info("tlc_started",
		"launch_id", id,
		"pid", p.pid,
		"name", req.Name(),
		"workdir", cmd.Dir,
	)

	if s.callbacks.OnStart != nil {
		s.callbacks.OnStart(id, p.pid)
	}

	return id, nil
}

// Find returns the process for a launch.
func (s *Supervisor) Find(id LaunchID) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.launches[id]
	if !ok {
		return nil, fmt.Errorf("%w: launch %s", ErrProcessNotFound, id)
	}
	return p, nil
}

// Process returns the current process, or nil before Spawn and after Release.
func (s *Supervisor) Process() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// IsTerminated reports whether the current process has exited. It is true
// when nothing was spawned or the handle was released.
func (s *Supervisor) IsTerminated() bool {
	p := s.Process()
	return p == nil || p.IsTerminated()
}

// Terminate stops the current process. See Process.Terminate.
func (s *Supervisor) Terminate(ctx context.Context) error {
	p := s.Process()
	if p == nil {
		return ErrTerminateUnsupported
	}
	return p.Terminate(ctx)
}

// Release drops the process handle. A still-running process is left alone;
// callers terminate first if they need it gone.
func (s *Supervisor) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		delete(s.launches, s.current.id)
		s.logger.Debug("process_released", "launch_id", s.current.id)
	}
	s.current = nil
}
