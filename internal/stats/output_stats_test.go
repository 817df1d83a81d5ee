package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/stream"
)

// fakeClock returns successive instants spaced by the given steps.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	steps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	if len(c.steps) > 0 {
		c.now = c.now.Add(c.steps[0])
		c.steps = c.steps[1:]
	}
	return t
}

func out(text string) stream.Line {
	return stream.Line{Text: text, Kind: stream.KindOut, Channel: stream.ChannelStdout}
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Progress
		ok   bool
	}{
		{
			name: "typical",
			line: "Progress(3) at 2024-05-01 10:00:02: 1,234 states generated (74,040 s/min), 567 distinct states found (34,020 ds/min), 12 states left on queue.",
			want: Progress{Round: 3, StatesGenerated: 1234, DistinctStates: 567, QueueSize: 12},
			ok:   true,
		},
		{
			name: "large counts",
			line: "Progress(27) at 2024-05-01 11:00:00: 1,234,567,890 states generated (1 s/min), 98,765,432 distinct states found (1 ds/min), 0 states left on queue.",
			want: Progress{Round: 27, StatesGenerated: 1234567890, DistinctStates: 98765432},
			ok:   true,
		},
		{
			name: "not progress",
			line: "Model checking completed. No error has been found.",
		},
		{
			name: "truncated",
			line: "Progress(3) at 2024-05-01 10:00:02: 1,234 states generated",
		},
		{
			name: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseProgress(tt.line)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestOutputStats_CountsAndProgress(t *testing.T) {
	o := NewOutputStats()

	o.AppendLine(out("Starting... (2024-05-01 10:00:00)"))
	o.AppendLine(out("Progress(1) at 2024-05-01 10:00:01: 10 states generated (600 s/min), 5 distinct states found (300 ds/min), 2 states left on queue."))
	o.AppendLine(stream.Line{Text: "warn", Kind: stream.KindOut, Channel: stream.ChannelStderr})
	o.AppendLine(out("Progress(2) at 2024-05-01 10:00:02: 40 states generated (600 s/min), 20 distinct states found (300 ds/min), 0 states left on queue."))
	o.AppendLine(out("Model checking completed. No error has been found."))

	s := o.Snapshot()
	require.Equal(t, int64(4), s.StdoutLines)
	require.Equal(t, int64(1), s.StderrLines)
	require.Equal(t, int64(5), s.Lines())
	require.True(t, s.HasProgress)
	require.Equal(t, Progress{Round: 2, StatesGenerated: 40, DistinctStates: 20}, s.Progress)
	require.True(t, s.Completed)
	require.Zero(t, s.Violations)
	require.False(t, s.Closed)

	o.StreamClosed()
	require.True(t, o.Snapshot().Closed)
}

func TestOutputStats_Violations(t *testing.T) {
	o := NewOutputStats()
	o.AppendLine(out("Error: Invariant TypeOK is violated."))
	o.AppendLine(out("Error: Deadlock reached."))
	o.AppendLine(out("The behavior up to this point is:"))

	s := o.Snapshot()
	require.Equal(t, 2, s.Violations)
	require.False(t, s.Completed)
	require.False(t, s.HasProgress)
}

func TestOutputStats_GapQuantiles(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	steps := make([]time.Duration, 0, 100)
	for i := 0; i < 98; i++ {
		steps = append(steps, 10*time.Millisecond)
	}
	steps = append(steps, 5*time.Second)
	clock := &fakeClock{now: start, steps: steps}

	o := NewOutputStats()
	o.now = clock.Now
	for i := 0; i < 100; i++ {
		o.AppendLine(out("line"))
	}

	s := o.Snapshot()
	require.Equal(t, start, s.First)
	require.Equal(t, 5*time.Second, s.GapMax)
	require.InDelta(t, float64(10*time.Millisecond), float64(s.GapP50), float64(time.Millisecond))
	require.Equal(t, 98*10*time.Millisecond+5*time.Second, s.Span())
	require.Equal(t, int64(400), s.Bytes)
}

func TestOutputStats_EmptySnapshot(t *testing.T) {
	s := NewOutputStats().Snapshot()
	require.Zero(t, s.Lines())
	require.Zero(t, s.Span())
	require.Zero(t, s.GapMax)
	require.Zero(t, s.GapP99)
}

func TestOutputStats_SingleLineHasNoGap(t *testing.T) {
	o := NewOutputStats()
	o.AppendLine(out("only"))
	s := o.Snapshot()
	require.Zero(t, s.GapMax)
	require.Zero(t, s.Span())
}

func TestOutputStats_ConcurrentAppend(t *testing.T) {
	o := NewOutputStats()
	var wg sync.WaitGroup
	for _, ch := range []stream.Channel{stream.ChannelStdout, stream.ChannelStderr} {
		wg.Add(1)
		go func(ch stream.Channel) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				o.AppendLine(stream.Line{Text: "x", Kind: stream.KindOut, Channel: ch})
			}
		}(ch)
	}
	wg.Wait()

	s := o.Snapshot()
	require.Equal(t, int64(500), s.StdoutLines)
	require.Equal(t, int64(500), s.StderrLines)
}

func TestOutputStats_IsSink(t *testing.T) {
	var _ stream.Sink = NewOutputStats()
}
