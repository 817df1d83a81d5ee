// Package supervisor owns the lifecycle of a supervised TLC process: spawning
// it, exposing its output channels, and terminating it.
package supervisor

// State represents the lifecycle state of a supervised process.
type State int

const (
	// StateCreated is the initial state before the process has been spawned.
	StateCreated State = iota

	// StateStarting indicates the process is being spawned.
	StateStarting

	// StateRunning indicates the process is alive.
	StateRunning

	// StateStopping indicates a termination request is in progress.
	StateStopping

	// StateExited indicates the process exited and its output is drained.
	StateExited
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// IsActive returns true while the process may still produce output.
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning || s == StateStopping
}

// IsTerminal returns true if the state is a terminal state (exited).
func (s State) IsTerminal() bool {
	return s == StateExited
}
