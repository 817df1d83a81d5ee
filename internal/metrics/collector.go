// Package metrics exposes Prometheus metrics for supervised TLC runs.
//
// A Collector owns its registry and is fed from three places:
//
//	supervisor callbacks: process start, state changes, exit
//	the output stream:    every line TLC prints (Collector is a stream.Sink)
//	the job:              the outcome of each run (Collector is a job.Recorder)
package metrics

import (
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/job"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/stream"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/supervisor"
)

const namespace = "tlc_supervisor"

// Collector manages all Prometheus metrics for the supervisor.
type Collector struct {
	registry *prometheus.Registry

	// Panel 1: Run overview
	info         *prometheus.GaugeVec
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	running      prometheus.Gauge
	lastOutcome  *prometheus.GaugeVec
	stateChanges *prometheus.CounterVec

	// Panel 2: Process
	startsTotal   prometheus.Counter
	exitsTotal    *prometheus.CounterVec
	uptimeSeconds prometheus.Histogram

	// Panel 3: Output
	linesTotal    *prometheus.CounterVec
	bytesTotal    *prometheus.CounterVec
	streamsClosed prometheus.Counter

	// For summary generation
	mu        sync.Mutex
	startTime time.Time
	runs      map[job.Status]int64
	exitCodes map[int]int64
	lines     int64
	lastPID   int
}

// NewCollector creates a collector with a fresh registry that also carries
// the Go runtime and process collectors.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewCollectorWithRegistry(registry)
}

// NewCollectorWithRegistry creates a collector on the given registry.
// Useful for testing.
func NewCollectorWithRegistry(registry *prometheus.Registry) *Collector {
	c := &Collector{
		registry:  registry,
		startTime: time.Now(),
		runs:      make(map[job.Status]int64),
		exitCodes: make(map[int]int64),
	}

	// =========================================================================
	// Panel 1: Run overview
	// =========================================================================

	c.info = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Information about the supervised model (always 1)",
		},
		[]string{"module", "mode"},
	)
	c.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by outcome status",
		},
		[]string{"status"},
	)
	c.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of finished runs",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14),
		},
	)
	c.running = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while a TLC process is alive",
		},
	)
	c.lastOutcome = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_status",
			Help:      "Set to 1 for the status of the most recent run",
		},
		[]string{"status"},
	)
	c.stateChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_state_transitions_total",
			Help:      "Process state transitions by target state",
		},
		[]string{"state"},
	)

	// =========================================================================
	// Panel 2: Process
	// =========================================================================

	c.startsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_starts_total",
			Help:      "TLC processes started",
		},
	)
	c.exitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_exits_total",
			Help:      "TLC process exits by category (success, error, signal)",
		},
		[]string{"category"},
	)
	c.uptimeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_uptime_seconds",
			Help:      "TLC process lifetime",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14),
		},
	)

	// =========================================================================
	// Panel 3: Output
	// =========================================================================

	c.linesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_lines_total",
			Help:      "Output lines delivered to sinks",
		},
		[]string{"kind", "channel"},
	)
	c.bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Output bytes delivered to sinks, excluding newlines",
		},
		[]string{"channel"},
	)
	c.streamsClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_streams_closed_total",
			Help:      "Output streams closed",
		},
	)

	registry.MustRegister(
		c.info,
		c.runsTotal,
		c.runDuration,
		c.running,
		c.lastOutcome,
		c.stateChanges,
		c.startsTotal,
		c.exitsTotal,
		c.uptimeSeconds,
		c.linesTotal,
		c.bytesTotal,
		c.streamsClosed,
	)

	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// SetRunInfo publishes the info gauge for the model being checked.
func (c *Collector) SetRunInfo(module, mode string) {
	c.info.Reset()
	c.info.WithLabelValues(module, mode).Set(1)
}

// =============================================================================
// Supervisor callbacks
// =============================================================================

// Callbacks returns supervisor callbacks that feed this collector.
func (c *Collector) Callbacks() supervisor.Callbacks {
	return supervisor.Callbacks{
		OnStateChange: c.ProcessStateChanged,
		OnStart:       c.ProcessStarted,
		OnExit:        c.ProcessExited,
	}
}

// ProcessStateChanged records a process state transition.
func (c *Collector) ProcessStateChanged(_ supervisor.LaunchID, _, newState supervisor.State) {
	c.stateChanges.WithLabelValues(newState.String()).Inc()
}

// ProcessStarted records a process start.
func (c *Collector) ProcessStarted(_ supervisor.LaunchID, pid int) {
	c.startsTotal.Inc()
	c.running.Set(1)

	c.mu.Lock()
	c.lastPID = pid
	c.mu.Unlock()
}

// ProcessExited records a process exit.
func (c *Collector) ProcessExited(_ supervisor.LaunchID, exitCode int, uptime time.Duration) {
	c.running.Set(0)
	c.exitsTotal.WithLabelValues(exitCategory(exitCode)).Inc()
	c.uptimeSeconds.Observe(uptime.Seconds())

	c.mu.Lock()
	c.exitCodes[exitCode]++
	c.mu.Unlock()
}

func exitCategory(exitCode int) string {
	switch {
	case exitCode == 0:
		return "success"
	case exitCode > 128:
		return "signal"
	default:
		return "error"
	}
}

// =============================================================================
// stream.Sink
// =============================================================================

// AppendLine counts a line of TLC output.
func (c *Collector) AppendLine(line stream.Line) {
	c.linesTotal.WithLabelValues(line.Kind.String(), string(line.Channel)).Inc()
	c.bytesTotal.WithLabelValues(string(line.Channel)).Add(float64(len(line.Text)))

	c.mu.Lock()
	c.lines++
	c.mu.Unlock()
}

// StreamClosed counts the end of an output stream.
func (c *Collector) StreamClosed() {
	c.streamsClosed.Inc()
}

// =============================================================================
// job.Recorder
// =============================================================================

// RecordRun records the outcome of a run.
func (c *Collector) RecordRun(_ string, o job.Outcome) {
	status := o.Status.String()
	c.runsTotal.WithLabelValues(status).Inc()
	if d := o.Duration(); d > 0 {
		c.runDuration.Observe(d.Seconds())
	}

	c.lastOutcome.Reset()
	c.lastOutcome.WithLabelValues(status).Set(1)

	c.mu.Lock()
	c.runs[o.Status]++
	c.mu.Unlock()
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for generating an exit summary.
type Summary struct {
	Duration  time.Duration
	Runs      map[job.Status]int64
	ExitCodes map[int]int64
	Lines     int64
	LastPID   int
}

// ExitCodeList returns the exit codes as "code×count" strings in code order.
func (s *Summary) ExitCodeList() []string {
	codes := make([]int, 0, len(s.ExitCodes))
	for code := range s.ExitCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	out := make([]string, 0, len(codes))
	for _, code := range codes {
		out = append(out, strconv.Itoa(code)+"×"+strconv.FormatInt(s.ExitCodes[code], 10))
	}
	return out
}

// GenerateSummary creates a summary of everything recorded so far.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:  time.Since(c.startTime),
		Runs:      make(map[job.Status]int64, len(c.runs)),
		ExitCodes: make(map[int]int64, len(c.exitCodes)),
		Lines:     c.lines,
		LastPID:   c.lastPID,
	}
	for status, n := range c.runs {
		s.Runs[status] = n
	}
	for code, n := range c.exitCodes {
		s.ExitCodes[code] = n
	}
	return s
}
