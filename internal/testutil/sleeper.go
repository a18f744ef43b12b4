package testutil

import (
	"context"
	"sync"
	"time"
)

// ScriptedSleeper is an engine.Sleeper that never sleeps.
//
// It counts calls and, when configured, invokes a hook on a given call. This
// lets tests pause a run after an exact number of marks without any timing.
type ScriptedSleeper struct {
	mu     sync.Mutex
	calls  int
	total  time.Duration
	at     int
	onCall func()
}

// NewScriptedSleeper creates a sleeper that only counts.
func NewScriptedSleeper() *ScriptedSleeper {
	return &ScriptedSleeper{}
}

// CancelAt makes the sleeper run fn on its n-th call (1-based).
// Typically fn is the cancel func of the run's context.
func (s *ScriptedSleeper) CancelAt(n int, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.at = n
	s.onCall = fn
}

// Sleep records the call and returns immediately. If the hook fires and
// cancels ctx, Sleep reports ctx.Err() like an interrupted timer would.
func (s *ScriptedSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls++
	s.total += d
	fire := s.onCall != nil && s.calls == s.at
	fn := s.onCall
	s.mu.Unlock()

	if fire {
		fn()
	}
	return ctx.Err()
}

// Calls returns how many times Sleep was called.
func (s *ScriptedSleeper) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Total returns the sum of all requested durations.
func (s *ScriptedSleeper) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}
