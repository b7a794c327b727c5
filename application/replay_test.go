package application

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/sysagent/domain/event"
	eventpub "github.com/felixgeelhaar/sysagent/infrastructure/event"
	"github.com/felixgeelhaar/sysagent/infrastructure/planner"
	"github.com/felixgeelhaar/sysagent/infrastructure/storage/memory"
)

func TestReplay_Trace(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	provider := planner.NewScriptedReplies(
		"Thought: first echo\nAction: echo\nAction Input: one",
		"Thought: second echo\nAction: broken\nAction Input: two",
		"Thought: enough\nFinal Answer: done",
	)
	l := newTestLoop(t, provider, newTestRegistry(t, echoTool(), failingTool()),
		WithPublisher(eventpub.NewPublisher(eventpub.WithStore(store))))

	if _, err := l.Run(context.Background(), newTask("replay me")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	trace, err := NewReplay(store).Trace(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Trace() error = %v", err)
	}

	if !trace.Finished {
		t.Error("Finished = false, want true")
	}
	if trace.Answer != "done" {
		t.Errorf("Answer = %q, want %q", trace.Answer, "done")
	}
	if len(trace.Steps) != 2 {
		t.Fatalf("Steps = %d, want 2", len(trace.Steps))
	}

	first := trace.Steps[0]
	if first.Tool != "echo" || first.Input != "one" || first.Observation != "echo: one" {
		t.Errorf("Steps[0] = %+v", first)
	}
	if first.Iteration != 1 {
		t.Errorf("Steps[0].Iteration = %d, want 1", first.Iteration)
	}
	if first.Failed {
		t.Error("Steps[0].Failed = true, want false")
	}

	second := trace.Steps[1]
	if second.Tool != "broken" || !second.Failed {
		t.Errorf("Steps[1] = %+v", second)
	}
	if second.Iteration != 2 {
		t.Errorf("Steps[1].Iteration = %d, want 2", second.Iteration)
	}
	if trace.EndTime.Before(trace.StartTime) {
		t.Errorf("EndTime %v before StartTime %v", trace.EndTime, trace.StartTime)
	}
}

func TestReplay_UnknownTask(t *testing.T) {
	t.Parallel()

	_, err := NewReplay(memory.NewEventStore()).Trace(context.Background(), "missing")
	if !errors.Is(err, event.ErrTaskNotFound) {
		t.Errorf("Trace() error = %v, want ErrTaskNotFound", err)
	}
}

func TestApplyEvents_UnfinishedTask(t *testing.T) {
	t.Parallel()

	action, err := event.NewEvent("t", event.TypeActionTaken, event.ActionTakenPayload{
		Iteration: 1,
		Tool:      "echo",
		Input:     "hi",
	})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	trace, err := applyEvents("t", []event.Event{action})
	if err != nil {
		t.Fatalf("applyEvents() error = %v", err)
	}
	if trace.Finished {
		t.Error("Finished = true, want false")
	}
	if len(trace.Steps) != 1 || trace.Steps[0].Observation != "" {
		t.Errorf("Steps = %+v", trace.Steps)
	}
}
