package event

import "errors"

// Domain errors for event handling.
var (
	// ErrTaskNotFound is returned when no events exist for a task.
	ErrTaskNotFound = errors.New("task not found in event store")

	// ErrInvalidEvent is returned when an event is malformed.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrPublisherClosed is returned when publishing after Close.
	ErrPublisherClosed = errors.New("event publisher closed")
)
