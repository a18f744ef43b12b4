package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// ReadRun returns the run with the given id.
// Returns sql.ErrNoRows (wrapped) if it does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sieve_limit, delay_ns, cursor_before, cursor_after, rounds, marks, emissions, outcome, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return r, nil
}

// ReadRuns returns up to limit runs, oldest first. limit <= 0 means all.
//
// Returns an empty slice (not nil) if the journal has no runs.
func (s *Store) ReadRuns(ctx context.Context, limit int) (runs []RunRecord, err error) {
	query := `
		SELECT id, sieve_limit, delay_ns, cursor_before, cursor_after, rounds, marks, emissions, outcome, started_at, finished_at
		FROM runs
		ORDER BY id COLLATE BINARY ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() {
		err = multierr.Append(err, rows.Close())
	}()

	runs = []RunRecord{}
	for rows.Next() {
		r, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan run: %w", scanErr)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadChecks returns checks in insertion order. A number >= 0 filters to
// that number; a negative number returns every check.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadChecks(ctx context.Context, number int) (checks []CheckRecord, err error) {
	query := `
		SELECT id, COALESCE(run_id, ''), number, status, candidate, horizon, checked_at
		FROM checks`
	args := []any{}
	if number >= 0 {
		query += ` WHERE number = ?`
		args = append(args, number)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer func() {
		err = multierr.Append(err, rows.Close())
	}()

	checks = []CheckRecord{}
	for rows.Next() {
		var (
			c         CheckRecord
			checkedAt string
		)
		if err := rows.Scan(&c.ID, &c.RunID, &c.Number, &c.Status, &c.Candidate, &c.Horizon, &checkedAt); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		if c.CheckedAt, err = parseTime(checkedAt); err != nil {
			return nil, fmt.Errorf("parse checked_at: %w", err)
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checks: %w", err)
	}
	return checks, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		r                     RunRecord
		delayNS               int64
		startedAt, finishedAt string
	)
	if err := row.Scan(
		&r.ID,
		&r.Limit,
		&delayNS,
		&r.CursorBefore,
		&r.CursorAfter,
		&r.Rounds,
		&r.Marks,
		&r.Emissions,
		&r.Outcome,
		&startedAt,
		&finishedAt,
	); err != nil {
		return RunRecord{}, err
	}
	r.Delay = time.Duration(delayNS)

	var err error
	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return RunRecord{}, fmt.Errorf("parse started_at: %w", err)
	}
	if r.FinishedAt, err = parseTime(finishedAt); err != nil {
		return RunRecord{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return r, nil
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
