// Package history provides the conversation transcript shared across tasks.
package history

import (
	"errors"
	"sync"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid returns true if the role is recognized.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ErrInvalidRole is returned when appending a turn with an unknown role.
var ErrInvalidRole = errors.New("invalid turn role")

// Turn is one message of the conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// UserTurn creates a turn for operator input.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text, Timestamp: time.Now()}
}

// AssistantTurn creates a turn for a final answer.
func AssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Text: text, Timestamp: time.Now()}
}

// History is the ordered transcript of turns. Appends are whole-turn and
// serialized; readers get copies and never observe a partial append.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// New creates an empty history.
func New() *History {
	return &History{}
}

// Append adds a turn to the end of the transcript.
func (h *History) Append(turn Turn) error {
	if !turn.Role.IsValid() {
		return ErrInvalidRole
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
	return nil
}

// Snapshot returns a copy of the current transcript.
func (h *History) Snapshot() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Clear removes all turns.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

// Restore replaces the transcript with the given turns.
func (h *History) Restore(turns []Turn) error {
	for _, t := range turns {
		if !t.Role.IsValid() {
			return ErrInvalidRole
		}
	}

	cp := make([]Turn, len(turns))
	copy(cp, turns)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = cp
	return nil
}

// Store persists a transcript between operator sessions.
type Store interface {
	// SaveTurns replaces the stored transcript for a session.
	SaveTurns(sessionID string, turns []Turn) error

	// LoadTurns returns the stored transcript for a session.
	LoadTurns(sessionID string) ([]Turn, error)

	// ClearTurns removes the stored transcript for a session.
	ClearTurns(sessionID string) error
}
