package tui

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/stats"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/stream"
)

// DefaultRecentLines is how many output lines the dashboard keeps.
const DefaultRecentLines = 12

// Bridge connects a running job to the dashboard. It is registered as a
// stream.Sink for TLC output and passed to the job as its ProgressMonitor;
// the Model polls it on every tick. Cancel, triggered by the q key, is
// picked up by the job's poll loop through IsCanceled.
type Bridge struct {
	output *stats.OutputStats

	mu        sync.Mutex
	task      string
	subTask   string
	totalWork int
	worked    int
	recent    []string
	next      int
	full      bool
	closed    bool

	canceled atomic.Bool
	done     atomic.Bool
}

// NewBridge creates a Bridge that keeps the last n output lines.
// n <= 0 uses DefaultRecentLines.
func NewBridge(n int) *Bridge {
	if n <= 0 {
		n = DefaultRecentLines
	}
	return &Bridge{
		output: stats.NewOutputStats(),
		recent: make([]string, n),
	}
}

// =============================================================================
// stream.Sink
// =============================================================================

// AppendLine implements stream.Sink.
func (b *Bridge) AppendLine(line stream.Line) {
	b.output.AppendLine(line)

	b.mu.Lock()
	b.recent[b.next] = strings.TrimRight(line.Text, "\r")
	b.next = (b.next + 1) % len(b.recent)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
}

// StreamClosed implements stream.Sink.
func (b *Bridge) StreamClosed() {
	b.output.StreamClosed()

	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// =============================================================================
// job.ProgressMonitor
// =============================================================================

func (b *Bridge) BeginTask(name string, totalWork int) {
	b.mu.Lock()
	b.task = name
	b.totalWork = totalWork
	b.mu.Unlock()
}

func (b *Bridge) SubTask(name string) {
	b.mu.Lock()
	b.subTask = name
	b.mu.Unlock()
}

func (b *Bridge) Worked(work int) {
	b.mu.Lock()
	b.worked += work
	b.mu.Unlock()
}

// IsCanceled reports whether the user asked to cancel the run.
func (b *Bridge) IsCanceled() bool {
	return b.canceled.Load()
}

// Done marks the run finished; the dashboard exits on its next tick.
func (b *Bridge) Done() {
	b.done.Store(true)
}

// Cancel requests cancellation of the run.
func (b *Bridge) Cancel() {
	b.canceled.Store(true)
}

// IsDone reports whether Done was called.
func (b *Bridge) IsDone() bool {
	return b.done.Load()
}

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot is what the dashboard renders.
type Snapshot struct {
	Task      string
	SubTask   string
	TotalWork int
	Worked    int
	Recent    []string
	Closed    bool
	Canceled  bool
	Done      bool
	Output    stats.OutputSnapshot
}

// Progress returns worked/total in [0, 1].
func (s Snapshot) Progress() float64 {
	if s.TotalWork <= 0 {
		return 0
	}
	p := float64(s.Worked) / float64(s.TotalWork)
	if p > 1 {
		return 1
	}
	return p
}

// Snapshot returns the current state, oldest recent line first.
func (b *Bridge) Snapshot() Snapshot {
	b.mu.Lock()
	s := Snapshot{
		Task:      b.task,
		SubTask:   b.subTask,
		TotalWork: b.totalWork,
		Worked:    b.worked,
		Closed:    b.closed,
	}
	if b.full {
		s.Recent = append(s.Recent, b.recent[b.next:]...)
	}
	s.Recent = append(s.Recent, b.recent[:b.next]...)
	b.mu.Unlock()

	s.Canceled = b.IsCanceled()
	s.Done = b.IsDone()
	s.Output = b.output.Snapshot()
	return s
}

// Output returns the OutputStats fed by this bridge.
func (b *Bridge) Output() *stats.OutputStats {
	return b.output
}
