// Package tui provides a live terminal dashboard for a supervised TLC run.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for styling.
// It displays:
// - Run progress and the current subtask
// - TLC's own state-space progress
// - Output timing, including the longest silence
// - The most recent output lines
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Color Palette
// =============================================================================

// Colors based on a modern dark theme
var (
	// Primary colors
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	// Status colors
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red
	colorInfo    = lipgloss.Color("#3B82F6") // Blue

	// Neutral colors
	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorTextDim   = lipgloss.Color("#6B7280") // Dark gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Base Styles
// =============================================================================

var (
	mutedStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)
)

// =============================================================================
// Status Indicator Styles
// =============================================================================

var (
	statusOK = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	statusWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statusError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	statusInfo = lipgloss.NewStyle().
			Foreground(colorInfo).
			Bold(true)
)

// =============================================================================
// Layout Styles
// =============================================================================

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorBorder)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			MarginTop(1)
)

// =============================================================================
// Value Styles
// =============================================================================

var (
	valueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	labelWideStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Width(25)
)

// =============================================================================
// Progress Bar Styles
// =============================================================================

var (
	progressBarStyle = lipgloss.NewStyle().
				Foreground(colorPrimary)

	progressBarEmptyStyle = lipgloss.NewStyle().
				Foreground(colorBorder)

	progressPercentStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Bold(true)
)

// =============================================================================
// Run Status Indicator
// =============================================================================

// RunStatus is what the header shows about the run.
type RunStatus int

const (
	RunStatusStarting RunStatus = iota
	RunStatusChecking
	RunStatusCancelling
	RunStatusFinished
	RunStatusViolation
)

// GetRunStatus derives the run status from a snapshot.
func GetRunStatus(s Snapshot) RunStatus {
	switch {
	case s.Output.Violations > 0:
		return RunStatusViolation
	case s.Canceled && !s.Done:
		return RunStatusCancelling
	case s.Closed || s.Done:
		return RunStatusFinished
	case s.Output.Lines() > 0:
		return RunStatusChecking
	default:
		return RunStatusStarting
	}
}

// GetRunStatusLabel returns a styled label for the run status.
func GetRunStatusLabel(status RunStatus) string {
	switch status {
	case RunStatusViolation:
		return statusError.Render("● Violation")
	case RunStatusCancelling:
		return statusWarning.Render("● Cancelling")
	case RunStatusFinished:
		return statusOK.Render("● Finished")
	case RunStatusChecking:
		return statusInfo.Render("● Checking")
	default:
		return mutedStyle.Render("● Starting")
	}
}

// =============================================================================
// Silence Indicator
// =============================================================================

// GetSilenceStyle returns a style for the time since the last output line.
func GetSilenceStyle(seconds float64) lipgloss.Style {
	switch {
	case seconds < 30:
		return statusOK
	case seconds < 300:
		return statusWarning
	default:
		return statusError
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// RenderKeyValueWide renders a label-value pair with wider label.
func RenderKeyValueWide(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelWideStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

// RenderProgressBar renders a progress bar.
func RenderProgressBar(progress float64, width int) string {
	if width < 10 {
		width = 10
	}

	filled := int(progress * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := progressBarStyle.Render(repeatChar('█', filled)) +
		progressBarEmptyStyle.Render(repeatChar('░', width-filled))

	percent := progressPercentStyle.Render(fmt.Sprintf(" %3.0f%%", progress*100))

	return bar + percent
}

func repeatChar(char rune, count int) string {
	if count <= 0 {
		return ""
	}
	result := make([]rune, count)
	for i := range result {
		result[i] = char
	}
	return string(result)
}
