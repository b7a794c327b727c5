// Package agent provides the core domain model for the reasoning loop.
package agent

// State is a node of the task control loop.
type State string

const (
	StateReasoning State = "reasoning" // awaiting the next model step
	StateActing    State = "acting"    // invoking a tool
	StateFinished  State = "finished"  // terminal success
	StateFailed    State = "failed"    // terminal failure
)

// IsTerminal returns true if this is a terminal state.
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateFailed
}

// IsValid returns true if the state is recognized.
func (s State) IsValid() bool {
	switch s {
	case StateReasoning, StateActing, StateFinished, StateFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// CanTransitionTo reports whether the loop may move from s to next.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StateReasoning:
		return next == StateActing || next == StateFinished || next == StateFailed
	case StateActing:
		return next == StateReasoning || next == StateFailed
	default:
		return false
	}
}

// AllStates returns all states.
func AllStates() []State {
	return []State{StateReasoning, StateActing, StateFinished, StateFailed}
}
