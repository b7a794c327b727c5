package agent

import (
	"time"

	"github.com/felixgeelhaar/sysagent/domain/history"
)

// TaskStatus represents the outcome of a task.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is one operator request and the conversation it was asked in.
// It is immutable once created.
type Task struct {
	ID        string         `json:"id"`
	Input     string         `json:"input"`
	History   []history.Turn `json:"history"`
	StartTime time.Time      `json:"start_time"`
}

// NewTask creates a task with a snapshot of prior turns.
func NewTask(id, input string, turns []history.Turn) Task {
	cp := make([]history.Turn, len(turns))
	copy(cp, turns)
	return Task{
		ID:        id,
		Input:     input,
		History:   cp,
		StartTime: time.Now(),
	}
}

// TaskRecord summarizes how a task ended.
type TaskRecord struct {
	ID         string     `json:"id"`
	Input      string     `json:"input"`
	Status     TaskStatus `json:"status"`
	Answer     string     `json:"answer,omitempty"`
	Error      string     `json:"error,omitempty"`
	Iterations int        `json:"iterations"`
	ToolCalls  int        `json:"tool_calls"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time,omitempty"`
}

// NewTaskRecord creates a running record for a task.
func NewTaskRecord(task Task) *TaskRecord {
	return &TaskRecord{
		ID:        task.ID,
		Input:     task.Input,
		Status:    TaskStatusRunning,
		StartTime: task.StartTime,
	}
}

// Complete marks the record as successfully completed.
func (r *TaskRecord) Complete(answer string) {
	r.Status = TaskStatusCompleted
	r.Answer = answer
	r.EndTime = time.Now()
}

// Fail marks the record as failed.
func (r *TaskRecord) Fail(err error) {
	r.Status = TaskStatusFailed
	if err != nil {
		r.Error = err.Error()
	}
	r.EndTime = time.Now()
}

// Duration returns the elapsed time of the task.
func (r *TaskRecord) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// TaskStore persists task records.
type TaskStore interface {
	// Save inserts or updates a record.
	Save(record *TaskRecord) error

	// Get returns a record by ID.
	Get(id string) (*TaskRecord, error)

	// Recent returns up to limit records, newest first.
	Recent(limit int) ([]*TaskRecord, error)
}
