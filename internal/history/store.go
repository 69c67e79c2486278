// Package history keeps a local record of sync runs in SQLite, powering
// the status and history commands.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded sync run.
type Run struct {
	ID            string
	Mode          string // "full" or "incremental"
	Status        string
	StartedAt     time.Time
	CompletedAt   *time.Time
	RecordsSynced int64
	TablesCreated int
	Error         string
}

// Duration returns the run's wall time, up to now for running runs.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// Store persists runs in a SQLite file.
type Store struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TEXT NOT NULL,
	completed_at TEXT,
	records_synced INTEGER NOT NULL DEFAULT 0,
	tables_created INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at DESC);
`

// Open opens (creating if needed) the history database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	// SQLite allows one writer; the sync is single-process anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records a new running sync and returns its ID.
func (s *Store) StartRun(ctx context.Context, mode string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, mode, status, started_at) VALUES (?, ?, ?, ?)`,
		id, mode, StatusRunning, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("recording run start: %w", err)
	}
	return id, nil
}

// CompleteRun marks a run finished with its final stats.
func (s *Store) CompleteRun(ctx context.Context, id, status string, records int64, tablesCreated int, runErr error) error {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs
		 SET status = ?, completed_at = ?, records_synced = ?, tables_created = ?, error = ?
		 WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339), records, tablesCreated, errMsg, id)
	if err != nil {
		return fmt.Errorf("recording run completion: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, status, started_at, completed_at, records_synced, tables_created, error
		 FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, status, started_at, completed_at, records_synced, tables_created, error
		 FROM sync_runs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("loading run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("run %s not found", id)
	}
	run, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &run, rows.Err()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var started string
	var completed sql.NullString
	if err := rows.Scan(&run.ID, &run.Mode, &run.Status, &started, &completed,
		&run.RecordsSynced, &run.TablesCreated, &run.Error); err != nil {
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}

	t, err := time.Parse(time.RFC3339, started)
	if err != nil {
		return Run{}, fmt.Errorf("parsing run start time: %w", err)
	}
	run.StartedAt = t

	if completed.Valid && completed.String != "" {
		t, err := time.Parse(time.RFC3339, completed.String)
		if err != nil {
			return Run{}, fmt.Errorf("parsing run completion time: %w", err)
		}
		run.CompletedAt = &t
	}
	return run, nil
}
