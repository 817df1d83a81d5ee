package job

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
)

// Subtask names reported while a run progresses.
const (
	TaskPreparing   = "Preparing the TLC launch"
	TaskLaunching   = "Launching TLC"
	TaskConnecting  = "Connecting to running instance"
	TaskChecking    = "Model checking..."
	TaskFinished    = "Model checking finished."
	TaskTerminating = "Terminating TLC"
)

// ProgressMonitor reports progress to a user interface and carries the
// cancellation request. IsCanceled is polled once per poll interval.
type ProgressMonitor interface {
	BeginTask(name string, totalWork int)
	SubTask(name string)
	Worked(work int)
	IsCanceled() bool
	Done()
}

// ContextMonitor is a ProgressMonitor that is cancelled when its context is
// done or Cancel is called. Subtasks are logged at debug level.
type ContextMonitor struct {
	ctx      context.Context
	logger   *slog.Logger
	canceled atomic.Bool
	worked   atomic.Int64
	done     atomic.Bool
}

// NewContextMonitor returns a monitor bound to ctx. A nil logger discards.
func NewContextMonitor(ctx context.Context, logger *slog.Logger) *ContextMonitor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ContextMonitor{ctx: ctx, logger: logger}
}

func (m *ContextMonitor) BeginTask(name string, totalWork int) {
	m.logger.Debug("task_begin", "task", name, "total_work", totalWork)
}

func (m *ContextMonitor) SubTask(name string) {
	m.logger.Debug("subtask", "task", name)
}

func (m *ContextMonitor) Worked(work int) {
	m.worked.Add(int64(work))
}

// IsCanceled reports whether Cancel was called or the context is done.
func (m *ContextMonitor) IsCanceled() bool {
	return m.canceled.Load() || m.ctx.Err() != nil
}

// Cancel requests cancellation.
func (m *ContextMonitor) Cancel() {
	m.canceled.Store(true)
}

func (m *ContextMonitor) Done() {
	m.done.Store(true)
}

// IsDone reports whether Done was called.
func (m *ContextMonitor) IsDone() bool { return m.done.Load() }

// TotalWorked returns the sum of Worked calls.
func (m *ContextMonitor) TotalWorked() int64 { return m.worked.Load() }

// MultiMonitor forwards to several monitors; it is cancelled when any of
// them is.
type MultiMonitor []ProgressMonitor

func (mm MultiMonitor) BeginTask(name string, totalWork int) {
	for _, m := range mm {
		m.BeginTask(name, totalWork)
	}
}

func (mm MultiMonitor) SubTask(name string) {
	for _, m := range mm {
		m.SubTask(name)
	}
}

func (mm MultiMonitor) Worked(work int) {
	for _, m := range mm {
		m.Worked(work)
	}
}

func (mm MultiMonitor) IsCanceled() bool {
	for _, m := range mm {
		if m.IsCanceled() {
			return true
		}
	}
	return false
}

func (mm MultiMonitor) Done() {
	for _, m := range mm {
		m.Done()
	}
}
