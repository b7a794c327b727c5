package history

import (
	"errors"
	"sync"
	"testing"
)

func TestHistory_AppendSnapshot(t *testing.T) {
	t.Parallel()

	h := New()
	if err := h.Append(UserTurn("hi")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := h.Append(AssistantTurn("hello")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	snap := h.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("len(Snapshot()) = %d, want 2", len(snap))
	}
	if snap[0].Role != RoleUser || snap[1].Role != RoleAssistant {
		t.Errorf("roles = %s, %s", snap[0].Role, snap[1].Role)
	}

	snap[0].Text = "mutated"
	if h.Snapshot()[0].Text != "hi" {
		t.Error("Snapshot() shares storage with history")
	}
}

func TestHistory_AppendInvalidRole(t *testing.T) {
	t.Parallel()

	h := New()
	err := h.Append(Turn{Role: "system", Text: "x"})
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Append() error = %v, want ErrInvalidRole", err)
	}
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
}

func TestHistory_Clear(t *testing.T) {
	t.Parallel()

	h := New()
	_ = h.Append(UserTurn("a"))
	_ = h.Append(AssistantTurn("b"))
	h.Clear()

	if got := h.Snapshot(); len(got) != 0 {
		t.Errorf("Snapshot() after Clear = %v, want empty", got)
	}
}

func TestHistory_Restore(t *testing.T) {
	t.Parallel()

	h := New()
	_ = h.Append(UserTurn("old"))

	if err := h.Restore([]Turn{UserTurn("q"), AssistantTurn("a")}); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	snap := h.Snapshot()
	if len(snap) != 2 || snap[0].Text != "q" {
		t.Errorf("Snapshot() = %v", snap)
	}

	if err := h.Restore([]Turn{{Role: "bot"}}); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Restore() error = %v, want ErrInvalidRole", err)
	}
	if h.Len() != 2 {
		t.Errorf("failed Restore modified history")
	}
}

func TestHistory_ConcurrentAppendsAreWhole(t *testing.T) {
	t.Parallel()

	h := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Append(UserTurn("x"))
			_ = h.Snapshot()
		}()
	}
	wg.Wait()

	if h.Len() != 50 {
		t.Errorf("Len() = %d, want 50", h.Len())
	}
}
