package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/stream"
)

const (
	// MaxLineLength is the maximum length of a single output line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent lines kept for the exit summary.
	MaxBufferedLines = 100
)

// OutputHandler is a stream.Sink that forwards TLC output to a logger.
// It keeps the most recent lines for the exit summary.
type OutputHandler struct {
	name    string
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	lines  int64
	closed bool
	mu     sync.Mutex
}

// NewOutputHandler creates a handler for the named run.
func NewOutputHandler(name string, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		name:    name,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// AppendLine implements stream.Sink.
func (h *OutputHandler) AppendLine(line stream.Line) {
	text := line.Text
	if len(text) > MaxLineLength {
		text = text[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = text
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.lines++
	h.mu.Unlock()

	level := classifyLine(text)

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level < slog.LevelWarn {
		return
	}

	h.logger.Log(context.Background(), level, "tlc_output",
		"name", h.name,
		"kind", line.Kind.String(),
		"channel", string(line.Channel),
		"line", text,
	)
}

// StreamClosed implements stream.Sink.
func (h *OutputHandler) StreamClosed() {
	h.mu.Lock()
	h.closed = true
	lines := h.lines
	h.mu.Unlock()

	h.logger.Debug("tlc_output_closed", "name", h.name, "lines", lines)
}

// Closed reports whether StreamClosed was called.
func (h *OutputHandler) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Lines returns the number of lines seen.
func (h *OutputHandler) Lines() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lines
}

// classifyLine picks the log level for a line of TLC output. Only the level
// is derived; the line is logged verbatim.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	// Error patterns
	if strings.HasPrefix(lower, "error:") ||
		strings.Contains(lower, "exception") ||
		strings.Contains(lower, "outofmemoryerror") ||
		strings.Contains(lower, "is violated") ||
		strings.Contains(lower, "deadlock reached") {
		return slog.LevelWarn
	}

	// Warning patterns
	if strings.HasPrefix(lower, "warning:") ||
		strings.Contains(lower, "please run the java vm") {
		return slog.LevelWarn
	}

	// Milestones
	if strings.HasPrefix(lower, "starting...") ||
		strings.HasPrefix(lower, "finished in") ||
		strings.Contains(lower, "model checking completed") {
		return slog.LevelInfo
	}

	// Default to debug (progress reports, coverage)
	return slog.LevelDebug
}

// RecentLines returns the most recent lines from the buffer.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)

	// Read from circular buffer in order
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}

// ErrorPatterns are common TLC failure markers counted for the exit summary.
var ErrorPatterns = []string{
	"Error:",
	"is violated",
	"Deadlock reached",
	"OutOfMemoryError",
	"Exception",
	"Warning:",
}

// CountErrors counts occurrences of error patterns in the buffer.
func (h *OutputHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)

	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
	}

	return counts
}

var _ stream.Sink = (*OutputHandler)(nil)
