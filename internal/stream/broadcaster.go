package stream

import (
	"sync"
	"sync/atomic"
)

// Broadcaster forwards lines from one or more Monitors to the sinks of a
// Registry, tagging every line with the Kind fixed at construction.
//
// Ordering within a channel is preserved because each Monitor delivers its
// lines sequentially. No ordering is imposed between stdout and stderr.
type Broadcaster struct {
	name     string
	kind     Kind
	registry *Registry

	// mu orders deliveries before the close notification.
	mu     sync.RWMutex
	closed bool

	linesDelivered atomic.Int64
	linesDiscarded atomic.Int64
}

// NewBroadcaster creates a broadcaster for the named process output.
// A nil registry behaves like an empty one.
func NewBroadcaster(name string, kind Kind, registry *Registry) *Broadcaster {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Broadcaster{
		name:     name,
		kind:     kind,
		registry: registry,
	}
}

// StreamAppended implements Listener.
func (b *Broadcaster) StreamAppended(ch Channel, text string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.linesDiscarded.Add(1)
		return
	}
	line := Line{Text: text, Kind: b.kind, Channel: ch}
	for _, reg := range b.registry.snapshot() {
		if reg.accepts(b.kind) {
			reg.sink.AppendLine(line)
		}
	}
	b.linesDelivered.Add(1)
}

// Close notifies every registered sink that the stream has ended.
// Only the first call has an effect; lines arriving afterwards are discarded.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	for _, reg := range b.registry.snapshot() {
		closeSink(reg.sink)
	}
}

// closeSink isolates sinks from each other: a panic in one StreamClosed must
// not cost the remaining sinks their notification.
func closeSink(s Sink) {
	defer func() { _ = recover() }()
	s.StreamClosed()
}

// Closed reports whether Close has been called.
func (b *Broadcaster) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Kind returns the kind tag applied to every line.
func (b *Broadcaster) Kind() Kind {
	return b.kind
}

// Name returns the name of the output this broadcaster serves.
func (b *Broadcaster) Name() string {
	return b.name
}

// Stats returns (delivered, discarded) line counts.
func (b *Broadcaster) Stats() (delivered, discarded int64) {
	return b.linesDelivered.Load(), b.linesDiscarded.Load()
}

var _ Listener = (*Broadcaster)(nil)
