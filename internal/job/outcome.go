package job

import (
	"fmt"
	"time"
)

// Status is the terminal result of a run.
type Status int

const (
	// StatusOK means TLC ran to completion. The exit code is not inspected.
	StatusOK Status = iota + 1

	// StatusCancelled means the run was cancelled and TLC was terminated.
	StatusCancelled

	// StatusError means the run failed; Outcome.Reason says why.
	StatusError
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusCancelled:
		return "cancelled"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is produced exactly once per run.
type Outcome struct {
	Status Status

	// Reason is a human-readable description, set for StatusError.
	Reason string

	// Err wraps one of the package sentinels for StatusError.
	Err error

	Start time.Time
	End   time.Time
}

// Duration returns End - Start, or 0 if either is unset.
func (o Outcome) Duration() time.Duration {
	if o.Start.IsZero() || o.End.IsZero() {
		return 0
	}
	return o.End.Sub(o.Start)
}

// OK reports whether the run completed normally.
func (o Outcome) OK() bool { return o.Status == StatusOK }

func (o Outcome) String() string {
	if o.Reason != "" {
		return o.Status.String() + ": " + o.Reason
	}
	return o.Status.String()
}

// State is the job lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLaunching
	StateRunning
	StateFinalizing
	StateDone
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}
