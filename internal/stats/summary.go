package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// RunSummary holds everything printed at program exit.
type RunSummary struct {
	// Name is the root module name.
	Name string

	// Mode is the run mode (model_check or trace_explore).
	Mode string

	// Status is the outcome status ("ok", "cancelled", "error").
	Status string

	// Reason explains an error outcome.
	Reason string

	// Duration is the wall-clock run duration.
	Duration time.Duration

	// ExitCodes is a map of exit codes to counts (from metrics.Collector)
	ExitCodes map[int]int64

	// Output is the final OutputStats snapshot, if output stats were collected.
	Output *OutputSnapshot

	// RecentLines are the last lines TLC printed.
	RecentLines []string

	// ErrorCounts counts lines matching known error patterns.
	ErrorCounts map[string]int

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string

	// OutputFile is where the raw output was written, if anywhere.
	OutputFile string
}

const ruleWidth = 79

var (
	summaryTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	summarySection = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	summaryOK      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	summaryWarn    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
	summaryError   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	summaryMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

// FormatRunSummary formats the exit summary of a run.
//
// The summary includes:
// - Run information and outcome
// - TLC progress and verdict, when output stats were collected
// - Output timing (inter-line gap quantiles)
// - Exit codes and error pattern counts
// - The tail of TLC's output for failed runs
func FormatRunSummary(s RunSummary) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(strings.Repeat("═", ruleWidth) + "\n")
	b.WriteString(center(summaryTitle.Render("tlc-supervisor Run Summary")) + "\n")
	b.WriteString(strings.Repeat("═", ruleWidth) + "\n\n")

	// Run info
	fmt.Fprintf(&b, "Module:                 %s\n", s.Name)
	if s.Mode != "" {
		fmt.Fprintf(&b, "Mode:                   %s\n", s.Mode)
	}
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(s.Duration))
	fmt.Fprintf(&b, "Outcome:                %s\n", styleStatus(s.Status))
	if s.Reason != "" {
		fmt.Fprintf(&b, "Reason:                 %s\n", s.Reason)
	}
	b.WriteString("\n")

	if s.Output != nil {
		writeOutputSection(&b, s.Output)
	}

	// Exit codes (from metrics.Collector)
	if len(s.ExitCodes) > 0 {
		writeSection(&b, "Exit Codes")

		codes := make([]int, 0, len(s.ExitCodes))
		for code := range s.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		for _, code := range codes {
			fmt.Fprintf(&b, "  %3d %-16s %d\n", code, exitCodeLabel(code), s.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if len(s.ErrorCounts) > 0 {
		writeSection(&b, "Error Patterns")

		patterns := make([]string, 0, len(s.ErrorCounts))
		for p := range s.ErrorCounts {
			patterns = append(patterns, p)
		}
		sort.Strings(patterns)

		for _, p := range patterns {
			fmt.Fprintf(&b, "  %-22s %d\n", p, s.ErrorCounts[p])
		}
		b.WriteString("\n")
	}

	// Only worth the space when something went wrong.
	if s.Status == "error" && len(s.RecentLines) > 0 {
		writeSection(&b, "Last Output")
		for _, line := range s.RecentLines {
			b.WriteString("  " + summaryMuted.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if s.OutputFile != "" {
		fmt.Fprintf(&b, "Output written to: %s\n", s.OutputFile)
	}
	if s.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", s.MetricsAddr)
	}

	b.WriteString(strings.Repeat("═", ruleWidth) + "\n")

	return b.String()
}

func writeOutputSection(b *strings.Builder, o *OutputSnapshot) {
	writeSection(b, "Model Checking")

	if o.HasProgress {
		fmt.Fprintf(b, "  States Generated:     %s\n", FormatNumber(o.Progress.StatesGenerated))
		fmt.Fprintf(b, "  Distinct States:      %s\n", FormatNumber(o.Progress.DistinctStates))
		fmt.Fprintf(b, "  Left On Queue:        %s\n", FormatNumber(o.Progress.QueueSize))
		fmt.Fprintf(b, "  Progress Reports:     %d\n", o.Progress.Round)
	}
	switch {
	case o.Violations > 0:
		fmt.Fprintf(b, "  Verdict:              %s\n", summaryError.Render(fmt.Sprintf("%d violation(s) reported", o.Violations)))
	case o.Completed:
		fmt.Fprintf(b, "  Verdict:              %s\n", summaryOK.Render("completed"))
	default:
		fmt.Fprintf(b, "  Verdict:              %s\n", summaryWarn.Render("not reported"))
	}
	b.WriteString("\n")

	writeSection(b, "Output")
	fmt.Fprintf(b, "  Lines (stdout):       %s\n", FormatNumber(o.StdoutLines))
	fmt.Fprintf(b, "  Lines (stderr):       %s\n", FormatNumber(o.StderrLines))
	fmt.Fprintf(b, "  Bytes:                %s\n", FormatBytes(o.Bytes))
	if o.GapMax > 0 {
		fmt.Fprintf(b, "  Line Gap P50:         %s\n", FormatMs(o.GapP50))
		fmt.Fprintf(b, "  Line Gap P95:         %s\n", FormatMs(o.GapP95))
		fmt.Fprintf(b, "  Line Gap P99:         %s\n", FormatMs(o.GapP99))
		fmt.Fprintf(b, "  Longest Silence:      %s\n", FormatMs(o.GapMax))
	}
	b.WriteString("\n")
}

func writeSection(b *strings.Builder, title string) {
	b.WriteString(strings.Repeat("─", ruleWidth) + "\n")
	b.WriteString(center(summarySection.Render(title)) + "\n")
	b.WriteString(strings.Repeat("─", ruleWidth) + "\n\n")
}

func center(s string) string {
	pad := (ruleWidth - lipgloss.Width(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

func styleStatus(status string) string {
	switch status {
	case "ok":
		return summaryOK.Render(status)
	case "cancelled":
		return summaryWarn.Render(status)
	case "error":
		return summaryError.Render(status)
	default:
		return status
	}
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 10, 11, 12, 13:
		return "(violation)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatBytes formats bytes with KB/MB/GB suffixes.
func FormatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}

// FormatRate formats a rate with appropriate precision.
func FormatRate(rate float64) string {
	if rate >= 1000 {
		return fmt.Sprintf("%.1fK/s", rate/1000)
	}
	if rate >= 1 {
		return fmt.Sprintf("%.1f/s", rate)
	}
	return fmt.Sprintf("%.2f/s", rate)
}
