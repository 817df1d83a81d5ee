package tui

import (
	"strings"
	"testing"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/stats"
)

// =============================================================================
// Tests: GetRunStatus
// =============================================================================

func TestGetRunStatus(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want RunStatus
	}{
		{"empty", Snapshot{}, RunStatusStarting},
		{"output", Snapshot{Output: stats.OutputSnapshot{StdoutLines: 1}}, RunStatusChecking},
		{"cancelling", Snapshot{Canceled: true, Output: stats.OutputSnapshot{StdoutLines: 1}}, RunStatusCancelling},
		{"cancelled and done", Snapshot{Canceled: true, Done: true}, RunStatusFinished},
		{"closed", Snapshot{Closed: true}, RunStatusFinished},
		{"violation wins", Snapshot{Closed: true, Output: stats.OutputSnapshot{Violations: 1}}, RunStatusViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetRunStatus(tt.snap); got != tt.want {
				t.Errorf("GetRunStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetRunStatusLabel(t *testing.T) {
	tests := []struct {
		status RunStatus
		want   string
	}{
		{RunStatusStarting, "Starting"},
		{RunStatusChecking, "Checking"},
		{RunStatusCancelling, "Cancelling"},
		{RunStatusFinished, "Finished"},
		{RunStatusViolation, "Violation"},
	}

	for _, tt := range tests {
		if got := GetRunStatusLabel(tt.status); !strings.Contains(got, tt.want) {
			t.Errorf("GetRunStatusLabel(%d) = %q, want to contain %q", tt.status, got, tt.want)
		}
	}
}

// =============================================================================
// Tests: RenderProgressBar
// =============================================================================

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		name     string
		progress float64
		width    int
		filled   int
		empty    int
		percent  string
	}{
		{"empty", 0, 20, 0, 20, "0%"},
		{"half", 0.5, 20, 10, 10, "50%"},
		{"full", 1, 20, 20, 0, "100%"},
		{"over", 1.5, 20, 20, 0, "150%"},
		{"negative", -0.5, 20, 0, 20, "-50%"},
		{"min width", 0.5, 4, 5, 5, "50%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := RenderProgressBar(tt.progress, tt.width)
			if got := strings.Count(bar, "█"); got != tt.filled {
				t.Errorf("filled = %d, want %d", got, tt.filled)
			}
			if got := strings.Count(bar, "░"); got != tt.empty {
				t.Errorf("empty = %d, want %d", got, tt.empty)
			}
			if !strings.Contains(bar, tt.percent) {
				t.Errorf("bar %q missing %q", bar, tt.percent)
			}
		})
	}
}

func TestRepeatChar(t *testing.T) {
	if got := repeatChar('x', 3); got != "xxx" {
		t.Errorf("repeatChar = %q, want xxx", got)
	}
	if got := repeatChar('x', 0); got != "" {
		t.Errorf("repeatChar(0) = %q, want empty", got)
	}
	if got := repeatChar('x', -1); got != "" {
		t.Errorf("repeatChar(-1) = %q, want empty", got)
	}
}

func TestGetSilenceStyle(t *testing.T) {
	if GetSilenceStyle(1).GetForeground() != colorSuccess {
		t.Error("short silence should be green")
	}
	if GetSilenceStyle(60).GetForeground() != colorWarning {
		t.Error("minute-long silence should be amber")
	}
	if GetSilenceStyle(600).GetForeground() != colorError {
		t.Error("long silence should be red")
	}
}

func TestRenderKeyValueWide(t *testing.T) {
	got := RenderKeyValueWide("States", "42")
	if !strings.Contains(got, "States:") || !strings.Contains(got, "42") {
		t.Errorf("RenderKeyValueWide = %q", got)
	}
}
