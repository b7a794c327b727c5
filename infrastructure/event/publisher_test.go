package event_test

import (
	"context"
	"errors"
	"testing"

	domainevent "github.com/felixgeelhaar/sysagent/domain/event"
	infraevent "github.com/felixgeelhaar/sysagent/infrastructure/event"
	"github.com/felixgeelhaar/sysagent/infrastructure/storage/memory"
)

func mustEvent(t *testing.T, taskID string, typ domainevent.Type, payload any) domainevent.Event {
	t.Helper()

	e, err := domainevent.NewEvent(taskID, typ, payload)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	return e
}

// failingStore rejects every append.
type failingStore struct{ err error }

func (s failingStore) Append(context.Context, ...domainevent.Event) error { return s.err }

func (s failingStore) Load(context.Context, string) ([]domainevent.Event, error) {
	return nil, s.err
}

func TestPublisher_HandlersSeeEventsInOrder(t *testing.T) {
	t.Parallel()

	var got []domainevent.Type
	p := infraevent.NewPublisher(infraevent.WithHandler(func(_ context.Context, e domainevent.Event) {
		got = append(got, e.Type)
	}))

	var second int
	p.Subscribe(func(context.Context, domainevent.Event) { second++ })

	ctx := context.Background()
	err := p.Publish(ctx,
		mustEvent(t, "t1", domainevent.TypeActionTaken, domainevent.ActionTakenPayload{Tool: "run_commands"}),
		mustEvent(t, "t1", domainevent.TypeObservationReceived, domainevent.ObservationReceivedPayload{Tool: "run_commands"}),
	)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := p.Publish(ctx, mustEvent(t, "t1", domainevent.TypeFinalOutput, domainevent.FinalOutputPayload{Answer: "done"})); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	want := []domainevent.Type{domainevent.TypeActionTaken, domainevent.TypeObservationReceived, domainevent.TypeFinalOutput}
	if len(got) != len(want) {
		t.Fatalf("handler saw %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
	if second != 3 {
		t.Errorf("second handler saw %d events, want 3", second)
	}
}

func TestPublisher_Store(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	p := infraevent.NewPublisher(infraevent.WithStore(store))
	ctx := context.Background()

	if err := p.Publish(ctx, mustEvent(t, "t1", domainevent.TypeActionTaken, nil)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	events, err := store.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(events) != 1 || events[0].Sequence != 1 {
		t.Errorf("Load() = %+v", events)
	}
}

func TestPublisher_Buffering(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	p := infraevent.NewPublisher(infraevent.WithStore(store), infraevent.WithBufferSize(3))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := p.Publish(ctx, mustEvent(t, "t1", domainevent.TypeActionTaken, nil)); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if events, _ := store.Load(ctx, "t1"); len(events) != 0 {
		t.Fatalf("store has %d events before the buffer fills", len(events))
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if events, _ := store.Load(ctx, "t1"); len(events) != 2 {
		t.Errorf("store has %d events after Close, want 2", len(events))
	}

	err := p.Publish(ctx, mustEvent(t, "t1", domainevent.TypeActionTaken, nil))
	if !errors.Is(err, domainevent.ErrPublisherClosed) {
		t.Errorf("Publish() after Close error = %v, want ErrPublisherClosed", err)
	}
}

func TestPublisher_StoreError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	var delivered int
	p := infraevent.NewPublisher(
		infraevent.WithStore(failingStore{err: boom}),
		infraevent.WithHandler(func(context.Context, domainevent.Event) { delivered++ }),
	)

	err := p.Publish(context.Background(), mustEvent(t, "t1", domainevent.TypeFinalOutput, nil))
	if !errors.Is(err, boom) {
		t.Errorf("Publish() error = %v, want disk full", err)
	}
	if delivered != 1 {
		t.Errorf("handlers saw %d events, want 1 even when the store fails", delivered)
	}
}

func TestPublisher_EmptyPublish(t *testing.T) {
	t.Parallel()

	p := infraevent.NewPublisher()
	if err := p.Publish(context.Background()); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
}
