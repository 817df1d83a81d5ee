package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Source provides the state the dashboard renders. *Bridge implements it.
type Source interface {
	Snapshot() Snapshot
	Cancel()
}

// Config holds TUI configuration.
type Config struct {
	Name        string
	Mode        string
	MetricsAddr string
	Source      Source
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	name        string
	mode        string
	metricsAddr string
	source      Source

	// Current state
	snap       Snapshot
	startTime  time.Time
	lastUpdate time.Time
	showOutput bool
	cancelSent bool

	// Display options
	width  int
	height int

	// Quit flag
	quitting bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		name:        cfg.Name,
		mode:        cfg.Mode,
		metricsAddr: cfg.MetricsAddr,
		source:      cfg.Source,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		showOutput:  true,
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			// The first press cancels the run and waits for TLC to go away;
			// a second one leaves the dashboard immediately.
			if m.cancelSent {
				m.quitting = true
				return m, tea.Quit
			}
			m.cancelSent = true
			if m.source != nil {
				m.source.Cancel()
			}
			return m, nil
		case "o":
			m.showOutput = !m.showOutput
			return m, nil
		case "r":
			// Force refresh
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.source != nil {
			m.snap = m.source.Snapshot()
		}
		m.lastUpdate = time.Now()
		if m.snap.Done {
			m.quitting = true
			return m, tea.Quit
		}
		return m, tickCmd()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the dashboard started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Snapshot returns the last snapshot pulled from the source.
func (m Model) Snapshot() Snapshot {
	return m.snap
}

// CancelRequested reports whether the user pressed q.
func (m Model) CancelRequested() bool {
	return m.cancelSent
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}
