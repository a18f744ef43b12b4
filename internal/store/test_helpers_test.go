package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// createTestRun creates a run record with minimal required fields.
func createTestRun(id string, outcome string) RunRecord {
	return RunRecord{
		ID:           id,
		Limit:        100,
		Delay:        5 * time.Millisecond,
		CursorBefore: 1,
		CursorAfter:  100,
		Rounds:       25,
		Marks:        230,
		Emissions:    26,
		Outcome:      outcome,
		StartedAt:    testEpoch,
		FinishedAt:   testEpoch.Add(time.Second),
	}
}
