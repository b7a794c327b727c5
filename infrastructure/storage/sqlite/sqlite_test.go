package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/sysagent/domain/agent"
	"github.com/felixgeelhaar/sysagent/domain/event"
	"github.com/felixgeelhaar/sysagent/domain/history"
	"github.com/felixgeelhaar/sysagent/infrastructure/storage/sqlite"
)

func testConfig(t *testing.T) sqlite.Config {
	t.Helper()
	cfg := sqlite.DefaultConfig()
	cfg.DSN = "file:" + filepath.Join(t.TempDir(), "test.db") + "?mode=rwc"
	return cfg
}

func TestEventStore_AppendAndLoad(t *testing.T) {
	t.Parallel()

	store, err := sqlite.NewEventStore(testConfig(t))
	if err != nil {
		t.Fatalf("NewEventStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	first := []event.Event{
		{TaskID: "task-1", Type: event.TypeActionTaken, Timestamp: time.Now()},
		{TaskID: "task-1", Type: event.TypeObservationReceived, Timestamp: time.Now()},
	}
	if err := store.Append(ctx, first...); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, event.Event{TaskID: "task-1", Type: event.TypeFinalOutput, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, event.Event{TaskID: "task-2", Type: event.TypeFinalOutput, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	loaded, err := store.Load(ctx, "task-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("Load() returned %d events, want 3", len(loaded))
	}

	wantTypes := []event.Type{event.TypeActionTaken, event.TypeObservationReceived, event.TypeFinalOutput}
	for i, e := range loaded {
		if e.Sequence != uint64(i+1) {
			t.Errorf("event %d Sequence = %d, want %d", i, e.Sequence, i+1)
		}
		if e.Type != wantTypes[i] {
			t.Errorf("event %d Type = %s, want %s", i, e.Type, wantTypes[i])
		}
		if e.ID == "" {
			t.Errorf("event %d has empty ID", i)
		}
	}

	other, err := store.Load(ctx, "task-2")
	if err != nil {
		t.Fatalf("Load(task-2) error = %v", err)
	}
	if len(other) != 1 || other[0].Sequence != 1 {
		t.Errorf("Load(task-2) = %+v, want one event with sequence 1", other)
	}
}

func TestEventStore_Errors(t *testing.T) {
	t.Parallel()

	store, err := sqlite.NewEventStore(testConfig(t))
	if err != nil {
		t.Fatalf("NewEventStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	if _, err := store.Load(ctx, "missing"); !errors.Is(err, event.ErrTaskNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrTaskNotFound", err)
	}

	if err := store.Append(ctx, event.Event{Type: event.TypeFinalOutput}); !errors.Is(err, event.ErrInvalidEvent) {
		t.Errorf("Append(no task) error = %v, want ErrInvalidEvent", err)
	}

	if err := store.Append(ctx, event.Event{TaskID: "t", Type: "bogus"}); !errors.Is(err, event.ErrInvalidEvent) {
		t.Errorf("Append(bad type) error = %v, want ErrInvalidEvent", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := store.Append(cancelled, event.Event{TaskID: "t", Type: event.TypeFinalOutput}); !errors.Is(err, context.Canceled) {
		t.Errorf("Append(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestTaskStore_SaveGetRecent(t *testing.T) {
	t.Parallel()

	store, err := sqlite.NewTaskStore(testConfig(t))
	if err != nil {
		t.Fatalf("NewTaskStore() error = %v", err)
	}
	defer store.Close()

	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		task := agent.NewTask(id, "input "+id, nil)
		task.StartTime = base.Add(time.Duration(i) * time.Second)
		if err := store.Save(agent.NewTaskRecord(task)); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	rec, err := store.Get("b")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Status != agent.TaskStatusRunning {
		t.Errorf("Status = %s, want %s", rec.Status, agent.TaskStatusRunning)
	}

	rec.Complete("done")
	rec.Iterations = 2
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save(update) error = %v", err)
	}

	got, err := store.Get("b")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != agent.TaskStatusCompleted || got.Answer != "done" || got.Iterations != 2 {
		t.Errorf("Get() = %+v, want completed record with answer", got)
	}

	recent, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d records, want 2", len(recent))
	}
	if recent[0].ID != "c" || recent[1].ID != "b" {
		t.Errorf("Recent(2) = [%s %s], want [c b]", recent[0].ID, recent[1].ID)
	}

	if _, err := store.Get("missing"); !errors.Is(err, agent.ErrTaskNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrTaskNotFound", err)
	}
}

func TestHistoryStore_RoundTrip(t *testing.T) {
	t.Parallel()

	db, err := sqlite.Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	store, err := sqlite.NewHistoryStoreFromDB(db)
	if err != nil {
		t.Fatalf("NewHistoryStoreFromDB() error = %v", err)
	}

	turns := []history.Turn{
		history.UserTurn("what distro is this"),
		history.AssistantTurn("Ubuntu 22.04.4 LTS"),
	}
	if err := store.SaveTurns("s1", turns); err != nil {
		t.Fatalf("SaveTurns() error = %v", err)
	}

	loaded, err := store.LoadTurns("s1")
	if err != nil {
		t.Fatalf("LoadTurns() error = %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("LoadTurns() returned %d turns, want 2", len(loaded))
	}
	for i := range turns {
		if loaded[i].Role != turns[i].Role || loaded[i].Text != turns[i].Text {
			t.Errorf("turn %d = %+v, want %+v", i, loaded[i], turns[i])
		}
		if !loaded[i].Timestamp.Equal(turns[i].Timestamp) {
			t.Errorf("turn %d Timestamp = %v, want %v", i, loaded[i].Timestamp, turns[i].Timestamp)
		}
	}

	// Saving replaces rather than appends.
	if err := store.SaveTurns("s1", turns[:1]); err != nil {
		t.Fatalf("SaveTurns() error = %v", err)
	}
	loaded, _ = store.LoadTurns("s1")
	if len(loaded) != 1 {
		t.Errorf("LoadTurns() after replace returned %d turns, want 1", len(loaded))
	}

	if err := store.ClearTurns("s1"); err != nil {
		t.Fatalf("ClearTurns() error = %v", err)
	}
	loaded, err = store.LoadTurns("s1")
	if err != nil {
		t.Fatalf("LoadTurns() error = %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("LoadTurns() after clear returned %d turns, want 0", len(loaded))
	}

	bad := []history.Turn{{Role: "system", Text: "x"}}
	if err := store.SaveTurns("s2", bad); !errors.Is(err, history.ErrInvalidRole) {
		t.Errorf("SaveTurns(bad role) error = %v, want ErrInvalidRole", err)
	}
}
