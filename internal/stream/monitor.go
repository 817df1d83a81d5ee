package stream

import (
	"bufio"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

const (
	// MaxBacklog is the number of lines a Monitor keeps while no listener is
	// attached. Older lines are dropped once it is full.
	MaxBacklog = 10000

	initialLineBuffer = 64 * 1024
	maxLineSize       = 1024 * 1024
)

// Monitor reads one output channel of a process line by line.
//
// Lines read before the first listener attaches are kept in a bounded backlog
// and replayed to that listener, so a fast-exiting process loses nothing.
// After that, lines go straight to the listeners in read order.
type Monitor struct {
	channel Channel
	reader  io.Reader

	// mu serialises backlog replay and live delivery.
	mu        sync.Mutex
	listeners []Listener
	backlog   []string

	done chan struct{}
	err  error

	bytesRead    atomic.Int64
	linesRead    atomic.Int64
	linesDropped atomic.Int64
}

// NewMonitor creates a monitor for r. The reader is typically
// cmd.StdoutPipe() or cmd.StderrPipe(). Call Run in its own goroutine.
func NewMonitor(ch Channel, r io.Reader) *Monitor {
	return &Monitor{
		channel: ch,
		reader:  r,
		done:    make(chan struct{}),
	}
}

// Run reads lines until EOF or a read error. It closes Done on exit.
func (m *Monitor) Run() {
	defer close(m.done)

	scanner := bufio.NewScanner(m.reader)
	scanner.Buffer(make([]byte, initialLineBuffer), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		m.bytesRead.Add(int64(len(line) + 1))
		m.linesRead.Add(1)
		m.deliver(line)
	}

	// A pipe closed by cmd.Wait surfaces as os.ErrClosed; that is a normal end.
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		m.mu.Lock()
		m.err = err
		m.mu.Unlock()
	}
}

func (m *Monitor) deliver(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.listeners) == 0 {
		if len(m.backlog) >= MaxBacklog {
			m.backlog = m.backlog[1:]
			m.linesDropped.Add(1)
		}
		m.backlog = append(m.backlog, line)
		return
	}
	for _, l := range m.listeners {
		l.StreamAppended(m.channel, line)
	}
}

// AddListener attaches l. Any backlog is replayed to l before it receives
// live lines.
func (m *Monitor) AddListener(l Listener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, line := range m.backlog {
		l.StreamAppended(m.channel, line)
	}
	m.backlog = nil
	m.listeners = append(m.listeners, l)
}

// Done is closed once the channel has reached EOF and every line has been
// delivered.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Channel returns the channel this monitor reads.
func (m *Monitor) Channel() Channel {
	return m.channel
}

// Err returns the read error that ended Run, if any.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Stats returns (bytesRead, linesRead, linesDropped).
func (m *Monitor) Stats() (bytesRead, linesRead, linesDropped int64) {
	return m.bytesRead.Load(), m.linesRead.Load(), m.linesDropped.Load()
}
