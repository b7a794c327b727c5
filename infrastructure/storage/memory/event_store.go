package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/sysagent/domain/event"
)

// EventStore is an in-memory implementation of event.Store.
type EventStore struct {
	events    map[string][]event.Event // taskID -> events
	sequences map[string]uint64        // taskID -> last sequence
	mu        sync.RWMutex
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		events:    make(map[string][]event.Event),
		sequences: make(map[string]uint64),
	}
}

// Append persists events, assigning IDs and sequence numbers when unset.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, e := range events {
		if e.TaskID == "" || !e.Type.IsValid() {
			return event.ErrInvalidEvent
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.Sequence == 0 {
			e.Sequence = s.sequences[e.TaskID] + 1
		}
		s.sequences[e.TaskID] = e.Sequence
		s.events[e.TaskID] = append(s.events[e.TaskID], e)
	}
	return nil
}

// Load returns all events for a task in append order.
func (s *EventStore) Load(ctx context.Context, taskID string) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	events, ok := s.events[taskID]
	if !ok {
		return nil, event.ErrTaskNotFound
	}
	out := make([]event.Event, len(events))
	copy(out, events)
	return out, nil
}

var _ event.Store = (*EventStore)(nil)
