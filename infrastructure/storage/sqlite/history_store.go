package sqlite

import (
	"database/sql"
	"errors"

	"github.com/felixgeelhaar/sysagent/domain/history"
)

// HistoryStore is a SQLite-backed implementation of history.Store.
type HistoryStore struct {
	db    *sql.DB
	owned bool
}

// NewHistoryStore creates a new SQLite transcript store with the given configuration.
func NewHistoryStore(cfg Config, opts ...Option) (*HistoryStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &HistoryStore{db: db, owned: true}

	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

// NewHistoryStoreFromDB creates a transcript store from an existing database connection.
func NewHistoryStoreFromDB(db *sql.DB) (*HistoryStore, error) {
	s := &HistoryStore{db: db}

	if err := s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

// migrate creates the turns table if it doesn't exist.
func (s *HistoryStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS turns (
			session_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			PRIMARY KEY (session_id, position)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}

	return nil
}

// SaveTurns replaces the stored transcript for a session.
func (s *HistoryStore) SaveTurns(sessionID string, turns []history.Turn) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec("DELETE FROM turns WHERE session_id = ?", sessionID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO turns (session_id, position, role, text, timestamp) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for i, t := range turns {
		if !t.Role.IsValid() {
			return history.ErrInvalidRole
		}
		if _, err := stmt.Exec(sessionID, i, string(t.Role), t.Text, t.Timestamp.UnixNano()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadTurns returns the stored transcript for a session. An unknown session
// yields an empty transcript.
func (s *HistoryStore) LoadTurns(sessionID string) ([]history.Turn, error) {
	rows, err := s.db.Query(
		"SELECT role, text, timestamp FROM turns WHERE session_id = ? ORDER BY position",
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var turns []history.Turn
	for rows.Next() {
		var (
			role string
			text string
			ts   int64
		)
		if err := rows.Scan(&role, &text, &ts); err != nil {
			return nil, err
		}
		turns = append(turns, history.Turn{
			Role:      history.Role(role),
			Text:      text,
			Timestamp: unixNano(ts),
		})
	}

	return turns, rows.Err()
}

// ClearTurns removes the stored transcript for a session.
func (s *HistoryStore) ClearTurns(sessionID string) error {
	_, err := s.db.Exec("DELETE FROM turns WHERE session_id = ?", sessionID)
	return err
}

// Close closes the database connection if the store opened it.
func (s *HistoryStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

var _ history.Store = (*HistoryStore)(nil)
