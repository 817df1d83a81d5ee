package stream

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Test Helpers
// =============================================================================

// recordingSink implements Sink for testing.
type recordingSink struct {
	mu     sync.Mutex
	lines  []Line
	closes int
}

func (r *recordingSink) AppendLine(line Line) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
}

func (r *recordingSink) StreamClosed() {
	r.mu.Lock()
	r.closes++
	r.mu.Unlock()
}

func (r *recordingSink) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	for i, l := range r.lines {
		out[i] = l.Text
	}
	return out
}

func (r *recordingSink) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

func waitDone(t *testing.T, m *Monitor) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not finish")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// Kind
// =============================================================================

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindOut, "out"},
		{KindTraceExplore, "trace_explore"},
		{Kind(42), "kind(42)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}

// =============================================================================
// Broadcaster
// =============================================================================

func TestBroadcaster_DeliversTaggedLines(t *testing.T) {
	reg := NewRegistry()
	sink := &recordingSink{}
	reg.Register(sink)

	b := NewBroadcaster("MC", KindTraceExplore, reg)
	b.StreamAppended(ChannelStdout, "line1")
	b.StreamAppended(ChannelStderr, "line2")
	b.Close()

	if got := sink.Texts(); !equalStrings(got, []string{"line1", "line2"}) {
		t.Fatalf("lines = %v", got)
	}
	for _, l := range sink.lines {
		if l.Kind != KindTraceExplore {
			t.Errorf("line %q kind = %v, want %v", l.Text, l.Kind, KindTraceExplore)
		}
	}
	if sink.lines[1].Channel != ChannelStderr {
		t.Errorf("channel = %q, want stderr", sink.lines[1].Channel)
	}
}

func TestBroadcaster_CloseFiresOnce(t *testing.T) {
	reg := NewRegistry()
	a, b := &recordingSink{}, &recordingSink{}
	reg.Register(a)
	reg.Register(b)

	bc := NewBroadcaster("MC", KindOut, reg)
	for i := 0; i < 3; i++ {
		bc.Close()
	}

	if a.Closes() != 1 || b.Closes() != 1 {
		t.Errorf("closes = %d, %d; want 1, 1", a.Closes(), b.Closes())
	}
	if !bc.Closed() {
		t.Error("Closed() = false after Close")
	}
}

func TestBroadcaster_CloseWithoutLines(t *testing.T) {
	reg := NewRegistry()
	sink := &recordingSink{}
	reg.Register(sink)

	NewBroadcaster("MC", KindOut, reg).Close()

	if len(sink.Texts()) != 0 {
		t.Errorf("unexpected lines: %v", sink.Texts())
	}
	if sink.Closes() != 1 {
		t.Errorf("closes = %d, want 1", sink.Closes())
	}
}

func TestBroadcaster_DiscardsAfterClose(t *testing.T) {
	reg := NewRegistry()
	sink := &recordingSink{}
	reg.Register(sink)

	b := NewBroadcaster("MC", KindOut, reg)
	b.StreamAppended(ChannelStdout, "before")
	b.Close()
	b.StreamAppended(ChannelStdout, "after")

	if got := sink.Texts(); !equalStrings(got, []string{"before"}) {
		t.Errorf("lines = %v, want [before]", got)
	}
	delivered, discarded := b.Stats()
	if delivered != 1 || discarded != 1 {
		t.Errorf("Stats() = (%d, %d), want (1, 1)", delivered, discarded)
	}
}

func TestBroadcaster_KindFilter(t *testing.T) {
	reg := NewRegistry()
	outOnly := &recordingSink{}
	traceOnly := &recordingSink{}
	all := &recordingSink{}
	reg.Register(outOnly, KindOut)
	reg.Register(traceOnly, KindTraceExplore)
	reg.Register(all)

	b := NewBroadcaster("TE", KindTraceExplore, reg)
	b.StreamAppended(ChannelStdout, "x")
	b.Close()

	if len(outOnly.Texts()) != 0 {
		t.Errorf("out-only sink received %v", outOnly.Texts())
	}
	if len(traceOnly.Texts()) != 1 || len(all.Texts()) != 1 {
		t.Errorf("trace=%v all=%v", traceOnly.Texts(), all.Texts())
	}
	// Close reaches every sink, filtered or not.
	for name, s := range map[string]*recordingSink{"out": outOnly, "trace": traceOnly, "all": all} {
		if s.Closes() != 1 {
			t.Errorf("%s sink closes = %d, want 1", name, s.Closes())
		}
	}
}

func TestBroadcaster_NilRegistry(t *testing.T) {
	b := NewBroadcaster("MC", KindOut, nil)
	b.StreamAppended(ChannelStdout, "x")
	b.Close()
	if b.Name() != "MC" || b.Kind() != KindOut {
		t.Errorf("Name/Kind = %q/%v", b.Name(), b.Kind())
	}
}

func TestRegistry_IgnoresNilSink(t *testing.T) {
	reg := NewRegistry()
	reg.Register(nil)
	reg.Register(SinkFuncs{})
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestSinkFuncs(t *testing.T) {
	var got []string
	closed := false
	s := SinkFuncs{
		OnLine:  func(l Line) { got = append(got, l.Text) },
		OnClose: func() { closed = true },
	}
	s.AppendLine(Line{Text: "a"})
	s.StreamClosed()
	if !equalStrings(got, []string{"a"}) || !closed {
		t.Errorf("got=%v closed=%v", got, closed)
	}
}

// =============================================================================
// Monitor
// =============================================================================

func TestMonitor_ReplaysBacklogToFirstListener(t *testing.T) {
	m := NewMonitor(ChannelStdout, strings.NewReader("line1\nline2\n"))
	m.Run()

	var got []string
	m.AddListener(ListenerFunc(func(ch Channel, text string) {
		if ch != ChannelStdout {
			t.Errorf("channel = %q", ch)
		}
		got = append(got, text)
	}))

	if !equalStrings(got, []string{"line1", "line2"}) {
		t.Errorf("got %v", got)
	}
	_, lines, dropped := m.Stats()
	if lines != 2 || dropped != 0 {
		t.Errorf("Stats lines=%d dropped=%d", lines, dropped)
	}
}

func TestMonitor_LiveDeliveryPreservesOrder(t *testing.T) {
	pr, pw := io.Pipe()
	m := NewMonitor(ChannelStderr, pr)

	var mu sync.Mutex
	var got []string
	m.AddListener(ListenerFunc(func(_ Channel, text string) {
		mu.Lock()
		got = append(got, text)
		mu.Unlock()
	}))

	go m.Run()
	want := []string{"a", "b", "c", "d"}
	for _, l := range want {
		if _, err := io.WriteString(pw, l+"\n"); err != nil {
			t.Fatal(err)
		}
	}
	pw.Close()
	waitDone(t, m)

	mu.Lock()
	defer mu.Unlock()
	if !equalStrings(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if m.Err() != nil {
		t.Errorf("Err() = %v", m.Err())
	}
}

func TestMonitor_BacklogBounded(t *testing.T) {
	var b strings.Builder
	for i := 0; i < MaxBacklog+5; i++ {
		b.WriteString("x\n")
	}
	m := NewMonitor(ChannelStdout, strings.NewReader(b.String()))
	m.Run()

	count := 0
	m.AddListener(ListenerFunc(func(Channel, string) { count++ }))
	if count != MaxBacklog {
		t.Errorf("replayed %d lines, want %d", count, MaxBacklog)
	}
	if _, _, dropped := m.Stats(); dropped != 5 {
		t.Errorf("dropped = %d, want 5", dropped)
	}
}

func TestMonitor_EmptyInput(t *testing.T) {
	m := NewMonitor(ChannelStdout, strings.NewReader(""))
	m.Run()
	waitDone(t, m)
	called := false
	m.AddListener(ListenerFunc(func(Channel, string) { called = true }))
	if called {
		t.Error("listener called for empty input")
	}
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

func TestMonitor_RecordsReadError(t *testing.T) {
	boom := errors.New("boom")
	m := NewMonitor(ChannelStdout, errReader{err: boom})
	m.Run()
	if !errors.Is(m.Err(), boom) {
		t.Errorf("Err() = %v, want boom", m.Err())
	}

	m = NewMonitor(ChannelStdout, errReader{err: os.ErrClosed})
	m.Run()
	if m.Err() != nil {
		t.Errorf("closed pipe should not be an error, got %v", m.Err())
	}
}

func TestMonitor_WithBroadcaster(t *testing.T) {
	reg := NewRegistry()
	sink := &recordingSink{}
	reg.Register(sink)
	b := NewBroadcaster("MC", KindOut, reg)

	stdout := NewMonitor(ChannelStdout, strings.NewReader("o1\no2\n"))
	stderr := NewMonitor(ChannelStderr, strings.NewReader("e1\n"))
	stdout.AddListener(b)
	stderr.AddListener(b)
	go stdout.Run()
	go stderr.Run()
	waitDone(t, stdout)
	waitDone(t, stderr)
	b.Close()

	var outs []string
	for _, l := range sink.lines {
		if l.Channel == ChannelStdout {
			outs = append(outs, l.Text)
		}
	}
	if !equalStrings(outs, []string{"o1", "o2"}) {
		t.Errorf("stdout lines = %v", outs)
	}
	if len(sink.lines) != 3 || sink.Closes() != 1 {
		t.Errorf("lines=%d closes=%d", len(sink.lines), sink.Closes())
	}
}

// =============================================================================
// FileSink
// =============================================================================

func TestFileSink_WritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "MC.out")
	s, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	s.AppendLine(Line{Text: "Starting..."})
	s.AppendLine(Line{Text: "Finished."})
	s.StreamClosed()
	s.StreamClosed()
	s.AppendLine(Line{Text: "ignored"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Starting...\nFinished.\n" {
		t.Errorf("file content = %q", data)
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v", s.Err())
	}
	if s.Path() != path {
		t.Errorf("Path() = %q", s.Path())
	}
}

func TestBroadcaster_PanickingSinkDoesNotBlockOthers(t *testing.T) {
	reg := NewRegistry()
	reg.Register(SinkFuncs{OnClose: func() { panic("boom") }})
	after := &recordingSink{}
	reg.Register(after)

	NewBroadcaster("MC", KindOut, reg).Close()

	if after.Closes() != 1 {
		t.Errorf("closes = %d, want 1", after.Closes())
	}
}
