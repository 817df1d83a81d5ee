// Package stats summarizes TLC output for the live dashboard and the exit
// summary.
//
// OutputStats is a stream.Sink. It counts lines per channel, tracks the gaps
// between consecutive lines in a t-digest so long silent stretches show up
// in the quantiles, and remembers the most recent TLC progress report.
package stats

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/stream"
)

// Progress is the last progress report TLC printed.
type Progress struct {
	Round           int
	StatesGenerated int64
	DistinctStates  int64
	QueueSize       int64
}

// OutputSnapshot is a point-in-time copy of OutputStats.
type OutputSnapshot struct {
	StdoutLines int64
	StderrLines int64
	Bytes       int64
	First       time.Time
	Last        time.Time
	Closed      bool

	Progress    Progress
	HasProgress bool
	Completed   bool // TLC reported it finished
	Violations  int  // invariant/property violations and deadlocks

	GapP50 time.Duration
	GapP95 time.Duration
	GapP99 time.Duration
	GapMax time.Duration
}

// Lines returns the total number of lines seen.
func (s OutputSnapshot) Lines() int64 {
	return s.StdoutLines + s.StderrLines
}

// Span returns the time between the first and last line.
func (s OutputSnapshot) Span() time.Duration {
	if s.First.IsZero() || s.Last.IsZero() {
		return 0
	}
	return s.Last.Sub(s.First)
}

// Progress(3) at 2024-01-01 12:00:00: 1,234 states generated (...), 567 distinct states found (...), 12 states left on queue.
var progressRe = regexp.MustCompile(
	`^Progress\((\d+)\).*?: ([\d,]+) states generated.*?, ([\d,]+) distinct states found.*?, ([\d,]+) states left on queue`)

// OutputStats accumulates statistics about a run's output.
type OutputStats struct {
	now func() time.Time

	mu        sync.Mutex
	snap      OutputSnapshot
	gaps      *tdigest.TDigest
	gapMax    time.Duration
	gapCount  int64
	lastStamp time.Time
}

// NewOutputStats creates an empty OutputStats.
func NewOutputStats() *OutputStats {
	return &OutputStats{
		now:  time.Now,
		gaps: tdigest.NewWithCompression(100),
	}
}

// AppendLine implements stream.Sink.
func (o *OutputStats) AppendLine(line stream.Line) {
	now := o.now()

	o.mu.Lock()
	defer o.mu.Unlock()

	if line.Channel == stream.ChannelStderr {
		o.snap.StderrLines++
	} else {
		o.snap.StdoutLines++
	}
	o.snap.Bytes += int64(len(line.Text))

	if o.snap.First.IsZero() {
		o.snap.First = now
	} else {
		gap := now.Sub(o.lastStamp)
		if gap < 0 {
			gap = 0
		}
		o.gaps.Add(float64(gap.Nanoseconds()), 1)
		o.gapCount++
		if gap > o.gapMax {
			o.gapMax = gap
		}
	}
	o.lastStamp = now
	o.snap.Last = now

	o.observe(line.Text)
}

// observe picks TLC's own progress and verdict lines out of the output.
func (o *OutputStats) observe(text string) {
	text = strings.TrimSpace(text)

	if p, ok := ParseProgress(text); ok {
		o.snap.Progress = p
		o.snap.HasProgress = true
		return
	}

	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, "finished in"),
		strings.HasPrefix(lower, "model checking completed"):
		o.snap.Completed = true
	case strings.Contains(lower, "is violated"),
		strings.Contains(lower, "deadlock reached"):
		o.snap.Violations++
	}
}

// StreamClosed implements stream.Sink.
func (o *OutputStats) StreamClosed() {
	o.mu.Lock()
	o.snap.Closed = true
	o.mu.Unlock()
}

// Snapshot returns a copy of the current statistics.
func (o *OutputStats) Snapshot() OutputSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.snap
	if o.gapCount > 0 {
		s.GapP50 = time.Duration(o.gaps.Quantile(0.50))
		s.GapP95 = time.Duration(o.gaps.Quantile(0.95))
		s.GapP99 = time.Duration(o.gaps.Quantile(0.99))
		s.GapMax = o.gapMax
	}
	return s
}

// ParseProgress parses a TLC "Progress(n)" line.
func ParseProgress(line string) (Progress, bool) {
	m := progressRe.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}
	round, err := strconv.Atoi(m[1])
	if err != nil {
		return Progress{}, false
	}
	return Progress{
		Round:           round,
		StatesGenerated: parseCount(m[2]),
		DistinctStates:  parseCount(m[3]),
		QueueSize:       parseCount(m[4]),
	}, true
}

// parseCount parses a number with thousands separators.
func parseCount(s string) int64 {
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
