// Package store persists end-of-match summaries in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"arena-match-director/match"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed summary archive.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS match_summaries (
	process_id  TEXT PRIMARY KEY,
	finished_at INTEGER NOT NULL,
	winner      INTEGER NOT NULL,
	no_result   INTEGER NOT NULL,
	payload     TEXT NOT NULL
);`

// Open opens (or creates) the summary database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSummary upserts the final summary for a match. Finalize may run more
// than once; writing the same summary twice is harmless.
func (s *Store) SaveSummary(ctx context.Context, sum *match.Summary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	noResult := 0
	if sum.NoResult {
		noResult = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO match_summaries (process_id, finished_at, winner, no_result, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(process_id) DO UPDATE SET
			finished_at = excluded.finished_at,
			winner      = excluded.winner,
			no_result   = excluded.no_result,
			payload     = excluded.payload`,
		sum.ProcessID, sum.FinishedAt.UTC().UnixMilli(), int(sum.Winner), noResult, string(payload))
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// GetSummary loads the summary for a process id, reporting whether one
// exists.
func (s *Store) GetSummary(ctx context.Context, processID string) (*match.Summary, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM match_summaries WHERE process_id = ?`, processID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load summary: %w", err)
	}
	var sum match.Summary
	if err := json.Unmarshal([]byte(payload), &sum); err != nil {
		return nil, false, fmt.Errorf("decode summary: %w", err)
	}
	return &sum, true, nil
}
