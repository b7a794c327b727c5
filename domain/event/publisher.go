package event

import "context"

// Publisher delivers task events to interested parties.
type Publisher interface {
	// Publish sends events in order.
	Publish(ctx context.Context, events ...Event) error

	// Close releases any resources held by the publisher.
	Close() error
}

// Store persists events for later inspection.
type Store interface {
	// Append adds events to the task's stream.
	Append(ctx context.Context, events ...Event) error

	// Load returns all events for a task ordered by sequence.
	Load(ctx context.Context, taskID string) ([]Event, error)
}
