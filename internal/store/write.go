package store

import (
	"context"
	"fmt"
)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, r RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, sieve_limit, delay_ns, cursor_before, cursor_after, rounds, marks, emissions, outcome, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID,
		r.Limit,
		int64(r.Delay),
		r.CursorBefore,
		r.CursorAfter,
		r.Rounds,
		r.Marks,
		r.Emissions,
		r.Outcome,
		formatTime(r.StartedAt),
		formatTime(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("write run %s: %w", r.ID, err)
	}
	return nil
}

// WriteCheck appends a check record and returns its id.
// A non-empty RunID must reference a journaled run (foreign key).
func (s *Store) WriteCheck(ctx context.Context, c CheckRecord) (int64, error) {
	var runID any
	if c.RunID != "" {
		runID = c.RunID
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO checks (run_id, number, status, candidate, horizon, checked_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		runID,
		c.Number,
		c.Status,
		c.Candidate,
		c.Horizon,
		formatTime(c.CheckedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("write check %d: %w", c.Number, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write check %d: %w", c.Number, err)
	}
	return id, nil
}
