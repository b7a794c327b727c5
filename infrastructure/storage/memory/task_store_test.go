package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/sysagent/domain/agent"
	"github.com/felixgeelhaar/sysagent/domain/history"
)

func TestTaskStore(t *testing.T) {
	t.Parallel()

	s := NewTaskStore()
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		task := agent.NewTask(id, "in", nil)
		task.StartTime = base.Add(time.Duration(i) * time.Minute)
		if err := s.Save(agent.NewTaskRecord(task)); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	got, err := s.Get("a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got.Answer = "mutated"
	again, _ := s.Get("a")
	if again.Answer != "" {
		t.Errorf("Get() returned shared record, Answer = %q", again.Answer)
	}

	recent, _ := s.Recent(2)
	if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "b" {
		t.Errorf("Recent(2) = %v, want [c b]", recent)
	}

	if _, err := s.Get("zzz"); !errors.Is(err, agent.ErrTaskNotFound) {
		t.Errorf("Get(zzz) error = %v, want ErrTaskNotFound", err)
	}
	if err := s.Save(nil); !errors.Is(err, agent.ErrTaskNotFound) {
		t.Errorf("Save(nil) error = %v, want ErrTaskNotFound", err)
	}
}

func TestHistoryStore(t *testing.T) {
	t.Parallel()

	s := NewHistoryStore()
	turns := []history.Turn{history.UserTurn("hi"), history.AssistantTurn("hello")}
	if err := s.SaveTurns("s", turns); err != nil {
		t.Fatalf("SaveTurns() error = %v", err)
	}

	turns[0].Text = "changed"
	loaded, _ := s.LoadTurns("s")
	if len(loaded) != 2 || loaded[0].Text != "hi" {
		t.Errorf("LoadTurns() = %+v, want stored copy", loaded)
	}

	_ = s.ClearTurns("s")
	loaded, _ = s.LoadTurns("s")
	if len(loaded) != 0 {
		t.Errorf("LoadTurns() after clear = %d turns, want 0", len(loaded))
	}

	if err := s.SaveTurns("s", []history.Turn{{Role: "bot"}}); !errors.Is(err, history.ErrInvalidRole) {
		t.Errorf("SaveTurns(bad) error = %v, want ErrInvalidRole", err)
	}
}
