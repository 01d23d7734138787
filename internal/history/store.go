// Package history records classification runs in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tally-dev/tally/internal/model"
)

// ErrRunNotFound is returned when a run id is not in the history.
var ErrRunNotFound = errors.New("run not found")

// timeFormat sorts lexically in UTC.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Run summarizes one classification run.
type Run struct {
	ID            string
	StartedAt     time.Time
	Duration      time.Duration
	RulesFile     string
	RuleCount     int
	Transactions  int
	Matched       int
	Uncategorized int
	Cancelled     bool
}

// Summarize builds a Run from a batch of results.
func Summarize(id string, startedAt time.Time, duration time.Duration, ruleCount int, results []model.Result) Run {
	run := Run{
		ID:           id,
		StartedAt:    startedAt,
		Duration:     duration,
		RuleCount:    ruleCount,
		Transactions: len(results),
	}
	for _, r := range results {
		if r.Matched() {
			run.Matched++
		} else {
			run.Uncategorized++
		}
	}
	return run
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at dbPath and migrates it.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores a run and its results in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run, results []model.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, started_at, duration_ms, rules_file, rule_count, transactions, matched, uncategorized, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(timeFormat), run.Duration.Milliseconds(), run.RulesFile,
		run.RuleCount, run.Transactions, run.Matched, run.Uncategorized, run.Cancelled)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results
		(run_id, position, transaction_id, account_id, category, matched_rule_id, evaluated_rule_ids, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range results {
		evaluated, err := json.Marshal(nonNil(r.EvaluatedRuleIDs))
		if err != nil {
			return fmt.Errorf("encode evaluated rules: %w", err)
		}
		notes, err := json.Marshal(nonNil(r.Notes))
		if err != nil {
			return fmt.Errorf("encode notes: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i, r.TransactionID, r.AccountID,
			r.AssignedCategory, r.MatchedRuleID, string(evaluated), string(notes)); err != nil {
			return fmt.Errorf("insert result %s: %w", r.TransactionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

const runColumns = `id, started_at, duration_ms, rules_file, rule_count, transactions, matched, uncategorized, cancelled`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		durationMS int64
	)
	if err := row.Scan(&run.ID, &startedAt, &durationMS, &run.RulesFile, &run.RuleCount,
		&run.Transactions, &run.Matched, &run.Uncategorized, &run.Cancelled); err != nil {
		return Run{}, err
	}
	var err error
	run.StartedAt, err = time.Parse(timeFormat, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+`
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Run returns a single run by id.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run %s: %w", id, err)
	}
	return run, nil
}

// Results returns a run's results in their original order.
func (s *Store) Results(ctx context.Context, runID string) ([]model.Result, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		transaction_id, account_id, category, matched_rule_id, evaluated_rule_ids, notes
		FROM results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results for %s: %w", runID, err)
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var (
			r                model.Result
			evaluated, notes string
		)
		if err := rows.Scan(&r.TransactionID, &r.AccountID, &r.AssignedCategory, &r.MatchedRuleID,
			&evaluated, &notes); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(evaluated), &r.EvaluatedRuleIDs); err != nil {
			return nil, fmt.Errorf("decode evaluated rules for %s: %w", r.TransactionID, err)
		}
		if err := json.Unmarshal([]byte(notes), &r.Notes); err != nil {
			return nil, fmt.Errorf("decode notes for %s: %w", r.TransactionID, err)
		}
		if len(r.Notes) == 0 {
			r.Notes = nil
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
