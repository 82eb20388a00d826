package experience

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

// SQLitePersistence stores transitions in a SQLite database. Each row keeps
// the indexed columns next to the protojson payload.
type SQLitePersistence struct {
	path   string
	logger zerolog.Logger

	mu    sync.RWMutex
	db    *sql.DB
	stats PersistenceStats
}

func NewSQLitePersistence(path string, logger zerolog.Logger) *SQLitePersistence {
	return &SQLitePersistence{
		path:   path,
		logger: logger.With().Str("component", "sqlite_persistence").Logger(),
	}
}

// Init opens the database and creates the schema
func (s *SQLitePersistence) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTransitionTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	s.logger.Debug().Str("path", s.path).Msg("Opened transition database")
	return nil
}

func createTransitionTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transitions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			env_id TEXT NOT NULL,
			episode INTEGER NOT NULL,
			step INTEGER NOT NULL,
			action INTEGER NOT NULL,
			reward REAL NOT NULL,
			terminated INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transitions_env ON transitions (env_id, episode, step);
	`)
	return err
}

func (s *SQLitePersistence) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrPersistenceNotConfigured
	}
	return s.db, nil
}

// Write inserts the batch in one database transaction
func (s *SQLitePersistence) Write(ctx context.Context, transitions []Transition) (err error) {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	defer func() {
		s.mu.Lock()
		if err != nil {
			s.stats.WriteErrors++
		} else {
			s.stats.TotalWritten += int64(len(transitions))
			s.stats.LastWriteTime = time.Now()
		}
		s.mu.Unlock()
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transitions (id, env_id, episode, step, action, reward, terminated, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var written int64
	for _, t := range transitions {
		payload, err := marshalTransition(t)
		if err != nil {
			return fmt.Errorf("marshal transition %s: %w", t.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.EnvID, t.Episode, t.Step, int(t.Action), t.Reward, t.Terminated, payload); err != nil {
			return fmt.Errorf("insert transition %s: %w", t.ID, err)
		}
		written += int64(len(payload))
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.mu.Lock()
	s.stats.BytesWritten += written
	s.mu.Unlock()
	return nil
}

// Read returns transitions in insertion order
func (s *SQLitePersistence) Read(ctx context.Context, envID string, limit int) ([]Transition, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	query := `SELECT payload FROM transitions WHERE (? = '' OR env_id = ?) ORDER BY seq`
	args := []any{envID, envID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		s.recordReadError()
		return nil, err
	}
	defer rows.Close()

	var transitions []Transition
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			s.recordReadError()
			return nil, err
		}
		t, err := unmarshalTransition(payload)
		if err != nil {
			s.recordReadError()
			return nil, fmt.Errorf("decode transition: %w", err)
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		s.recordReadError()
		return nil, err
	}

	s.mu.Lock()
	s.stats.TotalRead += int64(len(transitions))
	s.stats.LastReadTime = time.Now()
	s.mu.Unlock()
	return transitions, nil
}

func (s *SQLitePersistence) recordReadError() {
	s.mu.Lock()
	s.stats.ReadErrors++
	s.mu.Unlock()
}

// Delete removes every transition of envID
func (s *SQLitePersistence) Delete(ctx context.Context, envID string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM transitions WHERE env_id = ?`, envID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.stats.TotalDeleted += n
	s.mu.Unlock()
	return nil
}

func (s *SQLitePersistence) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLitePersistence) Stats() PersistenceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
