// Package audit persists one row per completed dispatch so operators can
// review recent decisions and the daemon can report latency aggregates.
// The journal is history, not state: the daemon never reads it back into
// its own behavior.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages the decision journal backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Record is one journaled dispatch outcome.
type Record struct {
	ID            int64     `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	Event         string    `json:"event"`
	Decision      string    `json:"decision"`
	TerminatedBy  string    `json:"terminated_by,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// Stats aggregates the journal for health reporting.
type Stats struct {
	Total        int64            `json:"total"`
	AvgLatencyMS float64          `json:"avg_latency_ms"`
	ByDecision   map[string]int64 `json:"by_decision"`
}

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    correlation_id TEXT NOT NULL,
    event TEXT NOT NULL,
    decision TEXT NOT NULL,
    terminated_by TEXT,
    reason TEXT,
    duration_ms INTEGER NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);
`

// Open initializes or connects to the journal database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the journal file location.
func (s *Store) Path() string { return s.path }

// Append journals one dispatch outcome.
func (s *Store) Append(ctx context.Context, rec Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (
            correlation_id, event, decision, terminated_by, reason, duration_ms, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.CorrelationID,
		rec.Event,
		rec.Decision,
		nullableString(rec.TerminatedBy),
		nullableString(rec.Reason),
		rec.DurationMS,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, correlation_id, event, decision, terminated_by, reason, duration_ms, created_at
         FROM decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var terminatedBy, reason sql.NullString
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.CorrelationID, &rec.Event, &rec.Decision,
			&terminatedBy, &reason, &rec.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.TerminatedBy = terminatedBy.String
		rec.Reason = reason.String
		if ts, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats aggregates journal totals and latency.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByDecision: make(map[string]int64)}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(duration_ms), 0) FROM decisions`)
	if err := row.Scan(&stats.Total, &stats.AvgLatencyMS); err != nil {
		return Stats{}, fmt.Errorf("aggregate decisions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT decision, COUNT(*) FROM decisions GROUP BY decision`)
	if err != nil {
		return Stats{}, fmt.Errorf("group decisions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var decision string
		var count int64
		if err := rows.Scan(&decision, &count); err != nil {
			return Stats{}, fmt.Errorf("scan decision count: %w", err)
		}
		stats.ByDecision[decision] = count
	}
	return stats, rows.Err()
}

// Prune removes records older than the cutoff and returns the removed count.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM decisions WHERE created_at < ?`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune decisions: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, errors.New("prune decisions: rows affected unavailable")
	}
	return removed, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
