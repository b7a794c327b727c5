package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/felixgeelhaar/sysagent/domain/agent"
)

// TaskStore is a SQLite-backed implementation of agent.TaskStore.
type TaskStore struct {
	db    *sql.DB
	owned bool
}

// NewTaskStore creates a new SQLite task store with the given configuration.
func NewTaskStore(cfg Config, opts ...Option) (*TaskStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &TaskStore{db: db, owned: true}

	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

// NewTaskStoreFromDB creates a task store from an existing database connection.
func NewTaskStoreFromDB(db *sql.DB) (*TaskStore, error) {
	s := &TaskStore{db: db}

	if err := s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

// migrate creates the tasks table if it doesn't exist.
func (s *TaskStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			data BLOB NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_start_time ON tasks(start_time);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}

	return nil
}

// Save inserts or replaces a task record.
func (s *TaskStore) Save(r *agent.TaskRecord) error {
	if r == nil || r.ID == "" {
		return agent.ErrTaskNotFound
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	var endTime sql.NullInt64
	if !r.EndTime.IsZero() {
		endTime = sql.NullInt64{Int64: r.EndTime.UnixNano(), Valid: true}
	}

	_, err = s.db.Exec(
		`INSERT INTO tasks (id, status, data, start_time, end_time, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			data = excluded.data,
			end_time = excluded.end_time,
			updated_at = excluded.updated_at`,
		r.ID, string(r.Status), data, r.StartTime.UnixNano(), endTime, time.Now().Unix(),
	)
	return err
}

// Get retrieves a task record by ID.
func (s *TaskStore) Get(id string) (*agent.TaskRecord, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM tasks WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, agent.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	var r agent.TaskRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Recent returns up to limit records, newest first.
func (s *TaskStore) Recent(limit int) ([]*agent.TaskRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(
		"SELECT data FROM tasks ORDER BY start_time DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*agent.TaskRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var r agent.TaskRecord
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		records = append(records, &r)
	}

	return records, rows.Err()
}

// Close closes the database connection if the store opened it.
func (s *TaskStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

var _ agent.TaskStore = (*TaskStore)(nil)
