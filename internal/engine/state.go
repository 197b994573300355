// Package engine executes a plan sequentially and aggregates the outcomes.
package engine

import "fmt"

// State is the per-task execution state. Terminal states never transition
// further.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

// IsTerminal reports whether the state is final.
func IsTerminal(s State) bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// Transition performs a validated state change for one task. The caller
// supplies the expected prior state so stale writes surface as errors.
func Transition(states map[string]State, taskID string, from, to State) error {
	cur, ok := states[taskID]
	if !ok {
		return fmt.Errorf("unknown task in state map: %q", taskID)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", taskID, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", taskID, from, to)
	}
	states[taskID] = to
	return nil
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateRunning || to == StateSkipped
	case StateRunning:
		return to == StateSucceeded || to == StateFailed
	default:
		return false
	}
}
