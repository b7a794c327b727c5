package application

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/sysagent/domain/event"
)

// TraceStep is one action of a recorded task and what it observed.
type TraceStep struct {
	Iteration   int
	Thought     string
	Tool        string
	Input       string
	Observation string
	Failed      bool
	Duration    time.Duration
}

// Trace is a task rebuilt from its event stream.
type Trace struct {
	TaskID    string
	Steps     []TraceStep
	Answer    string
	Finished  bool
	StartTime time.Time
	EndTime   time.Time
}

// Replay rebuilds task traces from stored events.
type Replay struct {
	eventStore event.Store
}

// NewReplay creates a new replay over an event store.
func NewReplay(eventStore event.Store) *Replay {
	return &Replay{
		eventStore: eventStore,
	}
}

// Trace loads and folds the events of a task.
func (r *Replay) Trace(ctx context.Context, taskID string) (*Trace, error) {
	events, err := r.eventStore.Load(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return nil, event.ErrTaskNotFound
	}
	return applyEvents(taskID, events)
}

// applyEvents folds events in order. An observation completes the most
// recent action.
func applyEvents(taskID string, events []event.Event) (*Trace, error) {
	t := &Trace{TaskID: taskID, StartTime: events[0].Timestamp}

	for _, e := range events {
		switch e.Type {
		case event.TypeActionTaken:
			var payload event.ActionTakenPayload
			if err := e.UnmarshalPayload(&payload); err != nil {
				return nil, fmt.Errorf("unmarshal %s: %w", e.Type, err)
			}
			t.Steps = append(t.Steps, TraceStep{
				Iteration: payload.Iteration,
				Thought:   payload.Thought,
				Tool:      payload.Tool,
				Input:     payload.Input,
			})

		case event.TypeObservationReceived:
			var payload event.ObservationReceivedPayload
			if err := e.UnmarshalPayload(&payload); err != nil {
				return nil, fmt.Errorf("unmarshal %s: %w", e.Type, err)
			}
			if n := len(t.Steps); n > 0 {
				step := &t.Steps[n-1]
				step.Observation = payload.Text
				step.Failed = payload.Failed
				step.Duration = payload.Duration
			}

		case event.TypeFinalOutput:
			var payload event.FinalOutputPayload
			if err := e.UnmarshalPayload(&payload); err != nil {
				return nil, fmt.Errorf("unmarshal %s: %w", e.Type, err)
			}
			t.Answer = payload.Answer
			t.Finished = true
		}
		t.EndTime = e.Timestamp
	}

	return t, nil
}
