// Package history persists retry records across runs in a SQLite database
// so chronically flaky tests can be ranked over time.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/flakespec/packages/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS retries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL,
	test_name TEXT NOT NULL,
	reason TEXT NOT NULL,
	fixable INTEGER NOT NULL,
	attempted_retries INTEGER NOT NULL,
	max_retries_allowed INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_retries_test_name ON retries(test_name);
CREATE INDEX IF NOT EXISTS idx_retries_run_id ON retries(run_id);
`

// Store is a flake history database.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &Store{db: db, timeout: 30 * time.Second}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// AppendRun stores one run's retry entries. Implements engine.HistorySink.
func (s *Store) AppendRun(runID string, at time.Time, entries []report.Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO retries (run_id, recorded_at, test_name, reason, fixable, attempted_retries, max_retries_allowed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing history insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, runID, at, e.Name, e.Reason, e.Fixable, e.AttemptedRetries, e.MaxRetriesAllowed); err != nil {
			return fmt.Errorf("inserting history row for %s: %w", e.Name, err)
		}
	}
	return tx.Commit()
}

// FlakyTest is one test's aggregate flake history.
type FlakyTest struct {
	Name         string
	Runs         int
	TotalRetries int
	LastReason   string
	LastFixable  bool

	// LastRecorded is kept as stored: the MAX() aggregate strips the
	// column's declared type, so the driver cannot scan it as time.Time.
	LastRecorded string
}

// TopFlaky returns the tests with the most recorded retries across all
// runs, most flaky first.
func (s *Store) TopFlaky(limit int) ([]FlakyTest, error) {
	if limit < 1 {
		limit = 10
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// reason and fixable must come from the newest row per test; bare
	// columns under GROUP BY would be picked from an arbitrary row.
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.test_name,
		       COUNT(DISTINCT r.run_id) AS runs,
		       SUM(r.attempted_retries) AS total_retries,
		       (SELECT r2.reason FROM retries r2 WHERE r2.test_name = r.test_name
		        ORDER BY r2.recorded_at DESC, r2.id DESC LIMIT 1) AS last_reason,
		       (SELECT r2.fixable FROM retries r2 WHERE r2.test_name = r.test_name
		        ORDER BY r2.recorded_at DESC, r2.id DESC LIMIT 1) AS last_fixable,
		       MAX(r.recorded_at) AS last_recorded
		FROM retries r
		GROUP BY r.test_name
		ORDER BY total_retries DESC, runs DESC, r.test_name ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying flake history: %w", err)
	}
	defer rows.Close()

	var out []FlakyTest
	for rows.Next() {
		var ft FlakyTest
		var fixable int
		if err := rows.Scan(&ft.Name, &ft.Runs, &ft.TotalRetries, &ft.LastReason, &fixable, &ft.LastRecorded); err != nil {
			return nil, fmt.Errorf("scanning flake history row: %w", err)
		}
		ft.LastFixable = fixable != 0
		out = append(out, ft)
	}
	return out, rows.Err()
}
