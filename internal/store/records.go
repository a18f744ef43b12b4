package store

import "time"

// RunRecord is one journaled Run call.
type RunRecord struct {
	ID           string
	Limit        int
	Delay        time.Duration
	CursorBefore int
	CursorAfter  int
	Rounds       int
	Marks        int64
	Emissions    int
	Outcome      string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// CheckRecord is one journaled verdict.
type CheckRecord struct {
	ID        int64
	RunID     string // last run before the check; empty if none
	Number    int
	Status    string
	Candidate bool
	Horizon   int
	CheckedAt time.Time
}

// timeLayout is the on-disk timestamp format. Timestamps are informational;
// ordering never depends on them.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
