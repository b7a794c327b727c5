package memory

import (
	"sync"

	"github.com/felixgeelhaar/sysagent/domain/history"
)

// HistoryStore keeps transcripts in memory, keyed by session.
type HistoryStore struct {
	sessions map[string][]history.Turn
	mu       sync.RWMutex
}

// NewHistoryStore creates a new in-memory transcript store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{sessions: make(map[string][]history.Turn)}
}

// SaveTurns replaces the stored transcript for a session.
func (s *HistoryStore) SaveTurns(sessionID string, turns []history.Turn) error {
	for _, t := range turns {
		if !t.Role.IsValid() {
			return history.ErrInvalidRole
		}
	}

	cp := make([]history.Turn, len(turns))
	copy(cp, turns)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = cp
	return nil
}

// LoadTurns returns a copy of the stored transcript.
func (s *HistoryStore) LoadTurns(sessionID string) ([]history.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	out := make([]history.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// ClearTurns removes the stored transcript for a session.
func (s *HistoryStore) ClearTurns(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

var _ history.Store = (*HistoryStore)(nil)
