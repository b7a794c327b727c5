package event

import "time"

// Type classifies domain events.
type Type string

// Event types emitted by the agent loop.
const (
	// TypeActionTaken fires when the model picks a tool.
	TypeActionTaken Type = "action.taken"

	// TypeObservationReceived fires when a tool invocation returns.
	TypeObservationReceived Type = "observation.received"

	// TypeFinalOutput fires once when the task produces its answer.
	TypeFinalOutput Type = "final.output"
)

// IsValid returns true if the type is a recognized event type.
func (t Type) IsValid() bool {
	switch t {
	case TypeActionTaken, TypeObservationReceived, TypeFinalOutput:
		return true
	default:
		return false
	}
}

// ActionTakenPayload contains data for action.taken events.
type ActionTakenPayload struct {
	Iteration int    `json:"iteration"`
	Thought   string `json:"thought"`
	Tool      string `json:"tool"`
	Input     string `json:"input"`
	Log       string `json:"log"`
}

// ObservationReceivedPayload contains data for observation.received events.
type ObservationReceivedPayload struct {
	Iteration int           `json:"iteration"`
	Tool      string        `json:"tool"`
	Text      string        `json:"text"`
	Failed    bool          `json:"failed,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// FinalOutputPayload contains data for final.output events.
type FinalOutputPayload struct {
	Thought    string        `json:"thought,omitempty"`
	Answer     string        `json:"answer"`
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration"`
}
