package stats

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Table-Driven Tests: Formatting Functions
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "00:00:00"},
		{"one second", time.Second, "00:00:01"},
		{"one minute", time.Minute, "00:01:00"},
		{"one hour", time.Hour, "01:00:00"},
		{"mixed", 2*time.Hour + 30*time.Minute + 45*time.Second, "02:30:45"},
		{"24 hours", 24 * time.Hour, "24:00:00"},
		{"sub-second", 500 * time.Millisecond, "00:00:00"},
		{"59 seconds", 59 * time.Second, "00:00:59"},
		{"59 minutes", 59 * time.Minute, "00:59:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.duration); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name string
		n    int64
		want string
	}{
		{"zero", 0, "0"},
		{"small", 123, "123"},
		{"999", 999, "999"},
		{"1K", 1000, "1.0K"},
		{"1.5K", 1500, "1.5K"},
		{"10K", 10000, "10.0K"},
		{"999K", 999000, "999.0K"},
		{"1M", 1000000, "1.0M"},
		{"1.5M", 1500000, "1.5M"},
		{"10M", 10000000, "10.0M"},
		{"negative", -100, "-100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatNumber(tt.n); got != tt.want {
				t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name string
		n    int64
		want string
	}{
		{"zero", 0, "0 B"},
		{"small", 123, "123 B"},
		{"999 bytes", 999, "999 B"},
		{"1 KB", 1000, "1.00 KB"},
		{"1.5 KB", 1500, "1.50 KB"},
		{"10 KB", 10000, "10.00 KB"},
		{"1 MB", 1000000, "1.00 MB"},
		{"1.5 MB", 1500000, "1.50 MB"},
		{"1 GB", 1000000000, "1.00 GB"},
		{"1.5 GB", 1500000000, "1.50 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatBytes(tt.n); got != tt.want {
				t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

func TestFormatMs(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "0 ms"},
		{"1 ms", time.Millisecond, "1 ms"},
		{"100 ms", 100 * time.Millisecond, "100 ms"},
		{"1 second", time.Second, "1000 ms"},
		{"sub-ms", 500 * time.Microsecond, "500 µs"},
		{"1 us", time.Microsecond, "1 µs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatMs(tt.duration); got != tt.want {
				t.Errorf("FormatMs(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want string
	}{
		{"zero", 0, "0.00/s"},
		{"small", 0.5, "0.50/s"},
		{"one", 1.0, "1.0/s"},
		{"ten", 10.0, "10.0/s"},
		{"hundred", 100.0, "100.0/s"},
		{"thousand", 1000.0, "1.0K/s"},
		{"1.5K", 1500.0, "1.5K/s"},
		{"10K", 10000.0, "10.0K/s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatRate(tt.rate); got != tt.want {
				t.Errorf("FormatRate(%v) = %q, want %q", tt.rate, got, tt.want)
			}
		})
	}
}

func TestExitCodeLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "(clean)"},
		{1, "(error)"},
		{12, "(violation)"},
		{13, "(violation)"},
		{137, "(SIGKILL)"},
		{143, "(SIGTERM)"},
		{2, ""},
		{-1, ""},
		{255, ""},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.code), func(t *testing.T) {
			if got := exitCodeLabel(tt.code); got != tt.want {
				t.Errorf("exitCodeLabel(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tests: FormatRunSummary
// =============================================================================

func TestFormatRunSummary_Minimal(t *testing.T) {
	out := FormatRunSummary(RunSummary{
		Name:     "Spec",
		Status:   "ok",
		Duration: 90 * time.Second,
	})

	for _, want := range []string{"Run Summary", "Spec", "00:01:30", "ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"Model Checking", "Exit Codes", "Last Output", "Metrics endpoint"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("summary should not contain %q:\n%s", unwanted, out)
		}
	}
}

func TestFormatRunSummary_WithOutput(t *testing.T) {
	out := FormatRunSummary(RunSummary{
		Name:   "Spec",
		Mode:   "model_check",
		Status: "ok",
		Output: &OutputSnapshot{
			StdoutLines: 1500,
			StderrLines: 2,
			Bytes:       2048,
			Progress:    Progress{Round: 4, StatesGenerated: 2_500_000, DistinctStates: 1200, QueueSize: 0},
			HasProgress: true,
			Completed:   true,
			GapP50:      2 * time.Millisecond,
			GapMax:      3 * time.Second,
		},
	})

	for _, want := range []string{"model_check", "2.5M", "1.2K", "completed", "1.5K", "2.05 KB", "3000 ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestFormatRunSummary_Violations(t *testing.T) {
	out := FormatRunSummary(RunSummary{
		Name:   "Spec",
		Status: "ok",
		Output: &OutputSnapshot{Violations: 1, Completed: true},
	})
	if !strings.Contains(out, "1 violation(s) reported") {
		t.Errorf("violations not reported:\n%s", out)
	}
}

func TestFormatRunSummary_NoVerdict(t *testing.T) {
	out := FormatRunSummary(RunSummary{Name: "Spec", Status: "cancelled", Output: &OutputSnapshot{}})
	if !strings.Contains(out, "not reported") {
		t.Errorf("missing verdict placeholder:\n%s", out)
	}
	if strings.Contains(out, "Line Gap") {
		t.Errorf("gap quantiles shown without gaps:\n%s", out)
	}
}

func TestFormatRunSummary_Error(t *testing.T) {
	out := FormatRunSummary(RunSummary{
		Name:        "Spec",
		Status:      "error",
		Reason:      "launching TLC failed: exec: \"java\": executable file not found in $PATH",
		ExitCodes:   map[int]int64{143: 1, 0: 2},
		ErrorCounts: map[string]int{"Error:": 3, "Exception": 1},
		RecentLines: []string{"Error: TLC threw an unexpected exception."},
		MetricsAddr: "127.0.0.1:9090",
		OutputFile:  "/tmp/tlc.out",
	})

	for _, want := range []string{
		"Reason:", "executable file not found",
		"Exit Codes", "(SIGTERM)", "(clean)",
		"Error Patterns", "Exception",
		"Last Output", "TLC threw an unexpected exception",
		"http://127.0.0.1:9090/metrics",
		"/tmp/tlc.out",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	// Exit codes are listed in ascending order.
	if strings.Index(out, "(clean)") > strings.Index(out, "(SIGTERM)") {
		t.Errorf("exit codes not sorted:\n%s", out)
	}
}

func TestFormatRunSummary_RecentLinesOnlyOnError(t *testing.T) {
	out := FormatRunSummary(RunSummary{
		Name:        "Spec",
		Status:      "ok",
		RecentLines: []string{"Finished in 01s"},
	})
	if strings.Contains(out, "Last Output") {
		t.Errorf("recent lines shown for ok run:\n%s", out)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkFormatRunSummary(b *testing.B) {
	s := RunSummary{
		Name:      "Spec",
		Mode:      "model_check",
		Status:    "error",
		Reason:    "boom",
		Duration:  10 * time.Minute,
		ExitCodes: map[int]int64{12: 1},
		Output: &OutputSnapshot{
			StdoutLines: 100000,
			Progress:    Progress{Round: 40, StatesGenerated: 12_000_000, DistinctStates: 3_000_000},
			HasProgress: true,
			GapP50:      time.Millisecond,
			GapMax:      time.Minute,
		},
		RecentLines: []string{"a", "b", "c"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = FormatRunSummary(s)
	}
}

func BenchmarkFormatNumber(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = FormatNumber(1234567)
	}
}

func BenchmarkFormatBytes(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = FormatBytes(1234567890)
	}
}
