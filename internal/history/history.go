// Package history keeps an optional SQLite ledger of pipeline runs and the
// records each run removed.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/quizlint/internal/model"
)

// Removal reasons
const (
	ReasonDuplicate = "duplicate"
	ReasonExcluded  = "excluded_reference"
)

// Removal is one record dropped by a run
type Removal struct {
	RecordID string
	Reason   string
	Detail   string // Method or rule that caused the removal
}

// Run is one row of the runs table
type Run struct {
	RunID         string
	Source        string
	OriginalCount int
	FinalCount    int
	RemovedCount  int
	FixedCount    int
	Duplicates    int
	AverageScore  float64
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Store is the run ledger
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a ledger with WAL mode enabled
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Batch runs record concurrently; SQLite takes one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	original_count INTEGER NOT NULL,
	final_count INTEGER NOT NULL,
	removed_count INTEGER NOT NULL,
	fixed_count INTEGER NOT NULL,
	duplicates INTEGER NOT NULL,
	by_method TEXT,
	average_score REAL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS removals (
	run_id TEXT NOT NULL,
	record_id TEXT NOT NULL,
	reason TEXT NOT NULL,
	detail TEXT,
	PRIMARY KEY(run_id, record_id),
	FOREIGN KEY(run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_removals_record ON removals(record_id);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// RecordRun stores a run and its removals in one transaction
func (s *Store) RecordRun(ctx context.Context, report *model.RunReport, removals []Removal) error {
	byMethod, err := json.Marshal(report.Duplicates.ByMethod)
	if err != nil {
		return fmt.Errorf("marshal by_method: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (run_id, source, original_count, final_count, removed_count, fixed_count,
	duplicates, by_method, average_score, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.Source,
		report.Counts.OriginalCount,
		report.Counts.FinalCount,
		report.Counts.RemovedCount,
		report.Counts.FixedCount,
		report.Duplicates.Total,
		string(byMethod),
		report.Quality.AverageScore,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO removals (run_id, record_id, reason, detail) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range removals {
		if _, err := stmt.ExecContext(ctx, report.RunID, r.RecordID, r.Reason, r.Detail); err != nil {
			return fmt.Errorf("insert removal %s: %w", r.RecordID, err)
		}
	}

	return tx.Commit()
}

// Runs returns the most recent runs first, at most limit (0 means all)
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `
SELECT run_id, source, original_count, final_count, removed_count, fixed_count,
	duplicates, average_score, started_at, finished_at
FROM runs ORDER BY started_at DESC, run_id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			avg               sql.NullFloat64
			started, finished string
		)
		if err := rows.Scan(&r.RunID, &r.Source, &r.OriginalCount, &r.FinalCount, &r.RemovedCount,
			&r.FixedCount, &r.Duplicates, &avg, &started, &finished); err != nil {
			return nil, err
		}
		r.AverageScore = avg.Float64
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Removals returns the records removed by a run, ordered by record id
func (s *Store) Removals(ctx context.Context, runID string) ([]Removal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, reason, COALESCE(detail, '') FROM removals WHERE run_id = ? ORDER BY record_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Removal
	for rows.Next() {
		var r Removal
		if err := rows.Scan(&r.RecordID, &r.Reason, &r.Detail); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RemovalCount returns how many runs removed a record, across the ledger
func (s *Store) RemovalCount(ctx context.Context, recordID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM removals WHERE record_id = ?`, recordID).Scan(&n)
	return n, err
}
