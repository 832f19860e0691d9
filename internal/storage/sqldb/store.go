// Package sqldb persists the per-request log the dispatch pipeline
// emits from its finalize step.
package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/actionmesh/gateway/internal/domain"
)

// Store is the SQLite-backed request log.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path and initializes the
// schema. Use a "file:...?mode=memory" DSN for an in-memory store.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS request_log (
id INTEGER PRIMARY KEY AUTOINCREMENT,
request_id TEXT,
action TEXT,
method TEXT NOT NULL,
path TEXT NOT NULL,
status INTEGER NOT NULL,
error_name TEXT,
duration_ns INTEGER NOT NULL,
started_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_request_log_action ON request_log(action)`,
		`CREATE INDEX IF NOT EXISTS idx_request_log_started ON request_log(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

type requestLogRow struct {
	RequestID  string    `db:"request_id"`
	Action     string    `db:"action"`
	Method     string    `db:"method"`
	Path       string    `db:"path"`
	Status     int       `db:"status"`
	ErrorName  string    `db:"error_name"`
	DurationNS int64     `db:"duration_ns"`
	StartedAt  time.Time `db:"started_at"`
}

// Record implements dispatch.Recorder.
func (s *Store) Record(ctx context.Context, rec domain.RequestRecord) error {
	row := requestLogRow{
		RequestID:  rec.RequestID,
		Action:     rec.Action,
		Method:     rec.Method,
		Path:       rec.Path,
		Status:     rec.Status,
		ErrorName:  rec.ErrorName,
		DurationNS: rec.Duration.Nanoseconds(),
		StartedAt:  rec.StartedAt.UTC(),
	}
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO request_log (request_id, action, method, path, status, error_name, duration_ns, started_at)
VALUES (:request_id, :action, :method, :path, :status, :error_name, :duration_ns, :started_at)`, row)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// Recent returns the most recent request records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.RequestRecord, error) {
	var rows []requestLogRow
	err := s.db.SelectContext(ctx, &rows, `
SELECT request_id, action, method, path, status, error_name, duration_ns, started_at
FROM request_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select request log: %w", err)
	}

	recs := make([]domain.RequestRecord, len(rows))
	for i, row := range rows {
		recs[i] = domain.RequestRecord{
			RequestID: row.RequestID,
			Action:    row.Action,
			Method:    row.Method,
			Path:      row.Path,
			Status:    row.Status,
			ErrorName: row.ErrorName,
			Duration:  time.Duration(row.DurationNS),
			StartedAt: row.StartedAt,
		}
	}
	return recs, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
