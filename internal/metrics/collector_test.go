package metrics

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/require"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/job"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/stream"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/supervisor"
)

// =============================================================================
// Test Helpers
// =============================================================================

// newTestCollector creates a collector with an isolated registry.
func newTestCollector() (*Collector, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	return NewCollectorWithRegistry(registry), registry
}

func findFamily(t *testing.T, reg prometheus.Gatherer, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %q not gathered", name)
	return nil
}

// =============================================================================
// Tests: Collector
// =============================================================================

func TestNewCollector_RegistersRuntimeCollectors(t *testing.T) {
	c := NewCollector()
	families, err := c.Registry().Gather()
	require.NoError(t, err)

	var sawGo bool
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "go_") {
			sawGo = true
		}
	}
	require.True(t, sawGo, "go runtime metrics missing")
}

func TestCollector_RecordRun(t *testing.T) {
	c, reg := newTestCollector()
	start := time.Now()

	c.RecordRun("Spec", job.Outcome{Status: job.StatusOK, Start: start, End: start.Add(3 * time.Second)})
	c.RecordRun("Spec", job.Outcome{Status: job.StatusCancelled, Start: start, End: start.Add(time.Second)})
	c.RecordRun("Spec", job.Outcome{Status: job.StatusError, Reason: "boom"})

	expected := `
# HELP tlc_supervisor_runs_total Finished runs by outcome status
# TYPE tlc_supervisor_runs_total counter
tlc_supervisor_runs_total{status="cancelled"} 1
tlc_supervisor_runs_total{status="error"} 1
tlc_supervisor_runs_total{status="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tlc_supervisor_runs_total"))

	// The error outcome has no duration and is not observed.
	hist := findFamily(t, reg, "tlc_supervisor_run_duration_seconds").GetMetric()[0].GetHistogram()
	require.Equal(t, uint64(2), hist.GetSampleCount())
	require.InDelta(t, 4.0, hist.GetSampleSum(), 0.001)

	// Only the most recent status is set.
	require.Equal(t, 1.0, testutil.ToFloat64(c.lastOutcome.WithLabelValues("error")))
	count, err := testutil.GatherAndCount(reg, "tlc_supervisor_last_run_status")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	s := c.GenerateSummary()
	require.Equal(t, int64(1), s.Runs[job.StatusOK])
	require.Equal(t, int64(1), s.Runs[job.StatusError])
}

func TestCollector_ProcessLifecycle(t *testing.T) {
	c, reg := newTestCollector()
	cb := c.Callbacks()
	id := supervisor.LaunchID("launch-1")

	cb.OnStateChange(id, supervisor.StateCreated, supervisor.StateStarting)
	cb.OnStart(id, 4242)
	cb.OnStateChange(id, supervisor.StateStarting, supervisor.StateRunning)
	require.Equal(t, 1.0, testutil.ToFloat64(c.running))

	cb.OnExit(id, 143, 2*time.Second)
	require.Equal(t, 0.0, testutil.ToFloat64(c.running))
	require.Equal(t, 1.0, testutil.ToFloat64(c.startsTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(c.exitsTotal.WithLabelValues("signal")))

	count, err := testutil.GatherAndCount(reg, "tlc_supervisor_process_state_transitions_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	s := c.GenerateSummary()
	require.Equal(t, 4242, s.LastPID)
	require.Equal(t, map[int]int64{143: 1}, s.ExitCodes)
}

func TestExitCategory(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "success"},
		{1, "error"},
		{12, "error"},
		{-1, "error"},
		{128, "error"},
		{137, "signal"},
		{143, "signal"},
	}
	for _, tt := range tests {
		if got := exitCategory(tt.code); got != tt.want {
			t.Errorf("exitCategory(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestCollector_IsSink(t *testing.T) {
	c, reg := newTestCollector()

	var sink stream.Sink = c
	sink.AppendLine(stream.Line{Text: "Starting...", Kind: stream.KindOut, Channel: stream.ChannelStdout})
	sink.AppendLine(stream.Line{Text: "Finished in 01s", Kind: stream.KindOut, Channel: stream.ChannelStdout})
	sink.AppendLine(stream.Line{Text: "oops", Kind: stream.KindTraceExplore, Channel: stream.ChannelStderr})
	sink.StreamClosed()

	expected := `
# HELP tlc_supervisor_output_lines_total Output lines delivered to sinks
# TYPE tlc_supervisor_output_lines_total counter
tlc_supervisor_output_lines_total{channel="stderr",kind="trace_explore"} 1
tlc_supervisor_output_lines_total{channel="stdout",kind="out"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tlc_supervisor_output_lines_total"))
	require.Equal(t, float64(len("Starting...")+len("Finished in 01s")), testutil.ToFloat64(c.bytesTotal.WithLabelValues("stdout")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.streamsClosed))
	require.Equal(t, int64(3), c.GenerateSummary().Lines)
}

func TestCollector_SetRunInfoReplaces(t *testing.T) {
	c, reg := newTestCollector()
	c.SetRunInfo("Old", "model_check")
	c.SetRunInfo("Spec", "trace_explore")

	expected := `
# HELP tlc_supervisor_info Information about the supervised model (always 1)
# TYPE tlc_supervisor_info gauge
tlc_supervisor_info{mode="trace_explore",module="Spec"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tlc_supervisor_info"))
}

func TestSummary_ExitCodeList(t *testing.T) {
	s := &Summary{ExitCodes: map[int]int64{143: 1, 0: 2, 12: 1}}
	require.Equal(t, []string{"0×2", "12×1", "143×1"}, s.ExitCodeList())

	empty := &Summary{}
	require.Empty(t, empty.ExitCodeList())
}

func TestCollector_TextExposition(t *testing.T) {
	c, reg := newTestCollector()
	c.RecordRun("Spec", job.Outcome{Status: job.StatusOK})

	families, err := reg.Gather()
	require.NoError(t, err)

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		require.NoError(t, enc.Encode(mf))
	}
	require.Contains(t, buf.String(), `tlc_supervisor_runs_total{status="ok"} 1`)
}

// =============================================================================
// Tests: Server
// =============================================================================

func newTestServer(t *testing.T) (*Server, *Collector) {
	t.Helper()
	c, reg := newTestCollector()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer("127.0.0.1:0", reg, logger), c
}

func TestServer_Endpoints(t *testing.T) {
	s, c := newTestServer(t)
	c.RecordRun("Spec", job.Outcome{Status: job.StatusOK})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "tlc_supervisor_runs_total")

	for _, path := range []string{"/health", "/healthz"} {
		code, body = get(path)
		require.Equal(t, http.StatusOK, code, path)
		require.Equal(t, "ok\n", body)
	}

	code, _ = get("/ready")
	require.Equal(t, http.StatusServiceUnavailable, code)
	s.SetReady(true)
	code, _ = get("/readyz")
	require.Equal(t, http.StatusOK, code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.Start())
	require.NotEqual(t, "127.0.0.1:0", s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown(context.Background()))
}

func TestServer_StartFailsOnBadAddr(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer("256.0.0.1:bad", prometheus.NewRegistry(), logger)
	require.Error(t, s.Start())
}

func TestServer_WaitShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.Start())
	addr := s.Addr()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Wait(ctx) }()

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}

	_, err := http.Get("http://" + addr + "/health")
	require.Error(t, err)
}
