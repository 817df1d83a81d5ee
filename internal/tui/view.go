package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/stats"
)

// =============================================================================
// Main View Rendering
// =============================================================================

func (m Model) renderDashboard() string {
	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
		m.renderModelChecking(),
		m.renderOutputStats(),
	}
	if m.showOutput {
		sections = append(sections, m.renderRecentOutput())
	}
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" tlc-supervisor │ %s │ %s │ Elapsed: %s ",
		m.name,
		GetRunStatusLabel(GetRunStatus(m.snap)),
		stats.FormatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}

	subTask := m.snap.SubTask
	if subTask == "" {
		subTask = "Waiting for the run to start"
	}

	var status string
	switch {
	case m.cancelSent && !m.snap.Done:
		status = statusWarning.Render("Cancelling... (press q again to leave)")
	default:
		status = statusInfo.Render(subTask)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Run Progress"),
		RenderProgressBar(m.snap.Progress(), barWidth),
		status,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Model Checking
// =============================================================================

func (m Model) renderModelChecking() string {
	o := m.snap.Output

	var rows []string
	if o.HasProgress {
		rows = append(rows,
			RenderKeyValueWide("States Generated", stats.FormatNumber(o.Progress.StatesGenerated)),
			RenderKeyValueWide("Distinct States", stats.FormatNumber(o.Progress.DistinctStates)),
			RenderKeyValueWide("Left On Queue", stats.FormatNumber(o.Progress.QueueSize)),
		)
		if span := o.Span(); span > 0 {
			rate := float64(o.Progress.DistinctStates) / span.Seconds()
			rows = append(rows, RenderKeyValueWide("Distinct Rate", stats.FormatRate(rate)))
		}
	} else {
		rows = append(rows, dimStyle.Render("No progress report yet"))
	}
	if m.mode != "" {
		rows = append(rows, RenderKeyValueWide("Mode", m.mode))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Model Checking")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Output Statistics
// =============================================================================

func (m Model) renderOutputStats() string {
	o := m.snap.Output

	rows := []string{
		RenderKeyValueWide("Lines (stdout/stderr)", fmt.Sprintf("%s / %s",
			stats.FormatNumber(o.StdoutLines), stats.FormatNumber(o.StderrLines))),
		RenderKeyValueWide("Bytes", stats.FormatBytes(o.Bytes)),
	}
	if !o.Last.IsZero() && !o.Closed {
		silence := m.lastUpdate.Sub(o.Last)
		if silence < 0 {
			silence = 0
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			labelWideStyle.Render("Since Last Line:"),
			GetSilenceStyle(silence.Seconds()).Render(silence.Truncate(time.Second).String()),
		))
	}
	if o.GapMax > 0 {
		rows = append(rows,
			RenderKeyValueWide("Line Gap P95", stats.FormatMs(o.GapP95)),
			RenderKeyValueWide("Longest Silence", stats.FormatMs(o.GapMax)),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Output")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Recent Output
// =============================================================================

func (m Model) renderRecentOutput() string {
	lines := m.snap.Recent
	if len(lines) == 0 {
		lines = []string{dimStyle.Render("(no output yet)")}
	}

	maxWidth := m.width - 6
	rows := make([]string, 0, len(lines))
	for _, line := range lines {
		if maxWidth > 3 && lipgloss.Width(line) > maxWidth {
			line = truncateRunes(line, maxWidth-3) + "..."
		}
		rows = append(rows, mutedStyle.Render(line))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Recent Output")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	footer := "q: cancel run • o: toggle output • r: refresh"
	if m.metricsAddr != "" {
		footer += fmt.Sprintf(" • metrics: http://%s/metrics", m.metricsAddr)
	}
	return footerStyle.Render(footer)
}
