// Package stream delivers TLC output lines to registered sinks.
//
// Two layers:
//
//	Layer 1 (Monitor):     reads one output channel (stdout or stderr) line by line
//	Layer 2 (Broadcaster): tags each line with a Kind and fans it out to sinks
//
// Sinks are registered on a per-run Registry before the process starts and
// receive zero or more lines followed by exactly one StreamClosed call.
package stream

import "fmt"

// Kind classifies an output stream so sinks can tell model checking output
// apart from trace exploration output.
type Kind int

const (
	// KindOut is regular model checking output.
	KindOut Kind = iota + 1

	// KindTraceExplore is output from a trace exploration run.
	KindTraceExplore
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindOut:
		return "out"
	case KindTraceExplore:
		return "trace_explore"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Channel identifies the process output channel a line was read from.
type Channel string

const (
	ChannelStdout Channel = "stdout"
	ChannelStderr Channel = "stderr"
)

// Line is a single line of subprocess output.
type Line struct {
	Text    string
	Kind    Kind
	Channel Channel
}

// Sink consumes subprocess output.
//
// AppendLine is called from reader goroutines, never from the supervising
// goroutine, and must not block for long. StreamClosed is called exactly once
// per run, after the last AppendLine.
type Sink interface {
	AppendLine(line Line)
	StreamClosed()
}

// Listener is attached to a Monitor and receives every line it reads.
type Listener interface {
	StreamAppended(ch Channel, text string)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ch Channel, text string)

// StreamAppended calls f.
func (f ListenerFunc) StreamAppended(ch Channel, text string) { f(ch, text) }

// SinkFuncs adapts plain functions to the Sink interface.
// Either field may be nil.
type SinkFuncs struct {
	OnLine  func(Line)
	OnClose func()
}

// AppendLine calls OnLine if set.
func (f SinkFuncs) AppendLine(line Line) {
	if f.OnLine != nil {
		f.OnLine(line)
	}
}

// StreamClosed calls OnClose if set.
func (f SinkFuncs) StreamClosed() {
	if f.OnClose != nil {
		f.OnClose()
	}
}
