package inbound

import "fmt"

/* Status represents the processing state of an inbound webhook
 * Follows the lifecycle: Received -> Processed/Skipped/Failed
 * Transitions are forward-only; a record never returns to Received
 */
type Status int

const (
	Received Status = iota + 1
	Processed
	Skipped
	Failed
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Received:
		return "received"
	case Processed:
		return "processed"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string
func NewStatus(str string) Status {
	switch str {
	case "received":
		return Received
	case "processed":
		return Processed
	case "skipped":
		return Skipped
	case "failed":
		return Failed
	default:
		return Received
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Received || s > Failed {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsFinal returns true if the status is a terminal state
func (s Status) IsFinal() bool {
	return s == Processed || s == Skipped || s == Failed
}

/* CanTransitionTo reports whether moving from s to next is a legal
 * forward transition. Terminal states accept no further transitions,
 * which makes repeated worker invocations on the same record safe.
 */
func (s Status) CanTransitionTo(next Status) bool {
	if s.Validate() != nil || next.Validate() != nil {
		return false
	}
	return s == Received && next.IsFinal()
}
