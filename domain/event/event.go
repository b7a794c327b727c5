// Package event provides domain types for the events a task emits while it runs.
package event

import (
	"encoding/json"
	"time"
)

// Event represents a single notification emitted during a task.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// TaskID is the ID of the task this event belongs to.
	TaskID string `json:"task_id"`

	// Type classifies the event.
	Type Type `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Payload contains the event-specific data.
	Payload json.RawMessage `json:"payload"`

	// Sequence is the ordering number within the task's event stream.
	Sequence uint64 `json:"sequence"`
}

// NewEvent creates a new event with the given type and payload.
func NewEvent(taskID string, eventType Type, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		TaskID:    taskID,
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   data,
	}, nil
}

// UnmarshalPayload decodes the event payload into the given value.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
