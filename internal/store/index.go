// Package store keeps a sqlite index of completed (trial, sample)
// pairs so interrupted experiments can resume without re-querying the
// model. The NDJSON run logs remain the source of truth; the index can
// always be rebuilt from them.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// RunIndex is the sqlite-backed completion index.
type RunIndex struct {
	db *sql.DB
}

// Open opens (creating if needed) the index database and configures
// WAL mode.
func Open(path string) (*RunIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	return &RunIndex{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS completed_samples (
	trial_id      TEXT NOT NULL,
	sample_id     TEXT NOT NULL,
	experiment_id TEXT,
	recorded_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (trial_id, sample_id)
);

CREATE INDEX IF NOT EXISTS idx_completed_trial ON completed_samples(trial_id);
`

// Migrate creates the schema.
func (s *RunIndex) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}

// Close closes the database.
func (s *RunIndex) Close() error {
	return s.db.Close()
}

// MarkDone records a completed pair. Re-marking an existing pair is a
// no-op, which keeps replay-driven rebuilds idempotent.
func (s *RunIndex) MarkDone(ctx context.Context, trialID, sampleID, experimentID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completed_samples (trial_id, sample_id, experiment_id, recorded_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (trial_id, sample_id) DO NOTHING`,
		trialID, sampleID, experimentID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: mark done %s/%s", trialID, sampleID)
}

// IsDone reports whether a pair already has a recorded outcome.
func (s *RunIndex) IsDone(ctx context.Context, trialID, sampleID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM completed_samples WHERE trial_id = ? AND sample_id = ?`,
		trialID, sampleID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "store: is done %s/%s", trialID, sampleID)
	}
	return true, nil
}

// Completed returns every completed pair grouped by trial.
func (s *RunIndex) Completed(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trial_id, sample_id FROM completed_samples ORDER BY trial_id, sample_id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: query completed")
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var trialID, sampleID string
		if err := rows.Scan(&trialID, &sampleID); err != nil {
			return nil, eris.Wrap(err, "store: scan completed")
		}
		out[trialID] = append(out[trialID], sampleID)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate completed")
}

// Reset clears the index, typically before a rebuild from the logs.
func (s *RunIndex) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM completed_samples`)
	return eris.Wrap(err, "store: reset")
}
