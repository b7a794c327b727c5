package memory

import (
	"sort"
	"sync"

	"github.com/felixgeelhaar/sysagent/domain/agent"
)

// TaskStore is an in-memory implementation of agent.TaskStore.
type TaskStore struct {
	records map[string]agent.TaskRecord
	order   []string
	mu      sync.RWMutex
}

// NewTaskStore creates a new in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{records: make(map[string]agent.TaskRecord)}
}

// Save inserts or replaces a record. The store keeps its own copy.
func (s *TaskStore) Save(record *agent.TaskRecord) error {
	if record == nil || record.ID == "" {
		return agent.ErrTaskNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; !ok {
		s.order = append(s.order, record.ID)
	}
	s.records[record.ID] = *record
	return nil
}

// Get returns a copy of the record with the given ID.
func (s *TaskStore) Get(id string) (*agent.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, agent.ErrTaskNotFound
	}
	return &r, nil
}

// Recent returns up to limit records, newest first.
func (s *TaskStore) Recent(limit int) ([]*agent.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*agent.TaskRecord, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		r := s.records[s.order[i]]
		out = append(out, &r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ agent.TaskStore = (*TaskStore)(nil)
