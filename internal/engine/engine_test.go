package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sieve/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, limit int, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	e, err := New(limit, opts...)
	require.NoError(t, err)
	return e
}

// candidates returns every index still flagged, read through Query.
func candidates(e *Engine) []int {
	out := make([]int, 0)
	for i := 0; i < e.Limit(); i++ {
		if e.Query(i) {
			out = append(out, i)
		}
	}
	return out
}

// progressRecorder collects emissions and optionally cancels after n of them.
type progressRecorder struct {
	got      []Progress
	cancelAt int
	cancel   context.CancelFunc
}

func (r *progressRecorder) record(p Progress) {
	r.got = append(r.got, p)
	if r.cancel != nil && len(r.got) == r.cancelAt {
		r.cancel()
	}
}

func (r *progressRecorder) fractions() []float64 {
	out := make([]float64, len(r.got))
	for i, p := range r.got {
		out[i] = p.Fraction
	}
	return out
}

func TestEngine_New(t *testing.T) {
	e := newTestEngine(t, 100)
	assert.Equal(t, 100, e.Limit())
	assert.Equal(t, StateIdle, e.State())

	snap := e.Snapshot()
	assert.Equal(t, 1, snap.Cursor)
	assert.Equal(t, 100, snap.Candidates, "every index starts as a candidate")
	assert.Equal(t, 0, snap.Horizon)
}

func TestEngine_New_InvalidLimit(t *testing.T) {
	for _, limit := range []int{-1, MaxLimit + 1} {
		_, err := New(limit)
		require.Error(t, err)
		assert.True(t, IsInvalidLimitError(err), "limit %d", limit)
	}
}

func TestEngine_Run_MatchesTrialDivision(t *testing.T) {
	for _, limit := range []int{0, 1, 2, 3, 4, 10, 30, 100, 1000, 10007} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			e := newTestEngine(t, limit)

			res, err := e.Run(context.Background(), RunOptions{})
			require.NoError(t, err)
			assert.Equal(t, OutcomeComplete, res.Outcome)
			assert.Equal(t, StateComplete, e.State())

			if diff := cmp.Diff(testutil.PrimesBelow(limit), candidates(e)); diff != "" {
				t.Errorf("limit %d: candidates mismatch (-want +got):\n%s", limit, diff)
			}
			if diff := cmp.Diff(testutil.PrimesBelow(limit), e.Primes(0)); diff != "" {
				t.Errorf("limit %d: Primes mismatch (-want +got):\n%s", limit, diff)
			}
		})
	}
}

func TestEngine_Run_SmallLimitsCompleteWithoutRounds(t *testing.T) {
	for _, limit := range []int{0, 1} {
		e := newTestEngine(t, limit)
		rec := &progressRecorder{}

		res, err := e.Run(context.Background(), RunOptions{Progress: rec.record})
		require.NoError(t, err)
		assert.Equal(t, OutcomeComplete, res.Outcome)
		assert.Equal(t, 0, res.Rounds)
		assert.Equal(t, int64(0), res.Marks)
		assert.Equal(t, []float64{1}, rec.fractions())
	}
}

func TestEngine_Run_AfterCompleteIsNoop(t *testing.T) {
	e := newTestEngine(t, 500)
	_, err := e.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	before := e.Snapshot()
	primesBefore := e.Primes(0)
	rec := &progressRecorder{}

	res, err := e.Run(context.Background(), RunOptions{Progress: rec.record})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAlreadyComplete, res.Outcome)
	assert.Equal(t, 0, res.Rounds)
	assert.Equal(t, int64(0), res.Marks)
	assert.Empty(t, rec.got, "no emissions after completion")
	assert.Equal(t, before, e.Snapshot())
	assert.Equal(t, primesBefore, e.Primes(0))
}

func TestEngine_Progress_MonotonicAndEndsAtOne(t *testing.T) {
	e := newTestEngine(t, 1000)
	rec := &progressRecorder{}

	res, err := e.Run(context.Background(), RunOptions{Progress: rec.record})
	require.NoError(t, err)
	require.NotEmpty(t, rec.got)
	assert.Equal(t, len(rec.got), res.Emissions)

	for i, p := range rec.got {
		assert.GreaterOrEqual(t, p.Fraction, 0.0)
		assert.LessOrEqual(t, p.Fraction, 1.0)
		assert.Equal(t, res.RunID, p.RunID)
		if i > 0 {
			prev := rec.got[i-1]
			assert.Greater(t, p.Fraction, prev.Fraction, "emission %d", i)
			assert.Greater(t, p.Seq, prev.Seq, "emission %d", i)
			assert.Greater(t, p.Cursor, prev.Cursor, "emission %d", i)
		}
	}

	last := rec.got[len(rec.got)-1]
	assert.Equal(t, 1.0, last.Fraction)
	assert.Equal(t, 1000, last.Cursor)
}

func TestEngine_Progress_FirstRoundIsBaseTwo(t *testing.T) {
	e := newTestEngine(t, 100)
	rec := &progressRecorder{}

	_, err := e.Run(context.Background(), RunOptions{Progress: rec.record})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(rec.got), 2)
	assert.Equal(t, 2, rec.got[0].Base)
	assert.Equal(t, 3, rec.got[0].Cursor)
	assert.InDelta(t, 0.03, rec.got[0].Fraction, 1e-9)
	assert.Equal(t, 3, rec.got[1].Base)
}

func TestEngine_PauseAfterRounds_Resume(t *testing.T) {
	const limit = 2000
	want := testutil.PrimesBelow(limit)

	for _, pauseAfter := range []int{1, 2, 5, 20, 100} {
		e := newTestEngine(t, limit)
		var all []float64

		ctx, cancel := context.WithCancel(context.Background())
		rec := &progressRecorder{cancelAt: pauseAfter, cancel: cancel}
		res, err := e.Run(ctx, RunOptions{Progress: rec.record})
		cancel()
		require.NoError(t, err)

		assert.Equal(t, OutcomePaused, res.Outcome, "pause after %d", pauseAfter)
		assert.Equal(t, StatePaused, e.State())
		assert.Len(t, rec.got, pauseAfter)
		all = append(all, rec.fractions()...)

		rec2 := &progressRecorder{}
		res2, err := e.Run(context.Background(), RunOptions{Progress: rec2.record})
		require.NoError(t, err)
		assert.Equal(t, OutcomeComplete, res2.Outcome)
		assert.Equal(t, res.CursorAfter, res2.CursorBefore, "resume continues from the cursor")
		all = append(all, rec2.fractions()...)

		for i := 1; i < len(all); i++ {
			assert.GreaterOrEqual(t, all[i], all[i-1], "fractions must not decrease across resume")
		}
		assert.Equal(t, 1.0, all[len(all)-1])

		if diff := cmp.Diff(want, candidates(e)); diff != "" {
			t.Errorf("pause after %d rounds: mismatch (-want +got):\n%s", pauseAfter, diff)
		}
	}
}

func TestEngine_PauseMidRound_Resume(t *testing.T) {
	const limit = 500
	want := testutil.PrimesBelow(limit)

	for _, pauseAtMark := range []int{1, 3, 100, 248, 249, 300, 600} {
		sleeper := testutil.NewScriptedSleeper()
		e := newTestEngine(t, limit, WithSleeper(sleeper))

		ctx, cancel := context.WithCancel(context.Background())
		sleeper.CancelAt(pauseAtMark, cancel)
		res, err := e.Run(ctx, RunOptions{Delay: time.Nanosecond})
		cancel()
		require.NoError(t, err)
		assert.Equal(t, OutcomePaused, res.Outcome, "pause at mark %d", pauseAtMark)
		assert.Equal(t, int64(pauseAtMark), res.Marks, "run stops right after the mark that saw cancellation")

		// Resume with no delay and a fresh context.
		res2, err := e.Run(context.Background(), RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeComplete, res2.Outcome)

		if diff := cmp.Diff(want, candidates(e)); diff != "" {
			t.Errorf("pause at mark %d: mismatch (-want +got):\n%s", pauseAtMark, diff)
		}
	}
}

func TestEngine_PauseMidRound_KeepsPartialMarks(t *testing.T) {
	// limit 30: base 2 clears 4, 6, 8, ... Pause right after clearing 8.
	sleeper := testutil.NewScriptedSleeper()
	e := newTestEngine(t, 30, WithSleeper(sleeper))

	ctx, cancel := context.WithCancel(context.Background())
	sleeper.CancelAt(3, cancel)
	res, err := e.Run(ctx, RunOptions{Delay: time.Millisecond})
	cancel()
	require.NoError(t, err)

	assert.Equal(t, OutcomePaused, res.Outcome)
	assert.Equal(t, 0, res.Rounds, "the round did not finish")
	assert.Equal(t, 0, res.Emissions)
	assert.Equal(t, 3, res.CursorAfter)

	assert.False(t, e.Query(4))
	assert.False(t, e.Query(6))
	assert.False(t, e.Query(8))
	assert.True(t, e.Query(10), "not rolled back, not marked yet")
	assert.Equal(t, 3*time.Millisecond, sleeper.Total())
}

func TestEngine_ResumeFinishesOpenRound(t *testing.T) {
	sleeper := testutil.NewScriptedSleeper()
	e := newTestEngine(t, 30, WithSleeper(sleeper))

	ctx, cancel := context.WithCancel(context.Background())
	sleeper.CancelAt(3, cancel)
	_, err := e.Run(ctx, RunOptions{Delay: time.Millisecond})
	cancel()
	require.NoError(t, err)
	require.True(t, e.Query(10))

	rec := &progressRecorder{}
	res, err := e.Run(context.Background(), RunOptions{Progress: rec.record})
	require.NoError(t, err)
	assert.Equal(t, OutcomeComplete, res.Outcome)
	assert.Equal(t, 3, res.CursorBefore)

	require.NotEmpty(t, rec.got)
	assert.Equal(t, 2, rec.got[0].Base, "the open round is finished first")
	assert.Equal(t, 3, rec.got[0].Cursor)
	assert.False(t, e.Query(10))
	assert.Equal(t, testutil.PrimesBelow(30), candidates(e))
}

func TestEngine_CancelledBeforeRun(t *testing.T) {
	e := newTestEngine(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomePaused, res.Outcome)
	assert.Equal(t, 1, res.CursorAfter)
	assert.False(t, e.Query(0), "0 and 1 are cleared as soon as a run begins")
	assert.False(t, e.Query(1))
	assert.True(t, e.Query(4))
}

func TestEngine_Run_NegativeDelay(t *testing.T) {
	e := newTestEngine(t, 10)
	_, err := e.Run(context.Background(), RunOptions{Delay: -time.Second})
	require.Error(t, err)
	assert.True(t, IsInvalidDelayError(err))
	assert.Equal(t, StateIdle, e.State())
}

func TestEngine_Query_AfterCompletion(t *testing.T) {
	e := newTestEngine(t, 100)
	_, err := e.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	tests := []struct {
		n    int
		want bool
	}{
		{0, false},
		{1, false},
		{2, true},
		{4, false},
		{17, true},
		{91, false},
		{97, true},
		{99, false},
		{-1, false},
		{100, false},
		{math.MaxInt, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Query(tt.n), "Query(%d)", tt.n)
	}
}

func TestEngine_Reset(t *testing.T) {
	e := newTestEngine(t, 100)
	_, err := e.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.False(t, e.Query(4))

	e.Reset()

	assert.Equal(t, StateIdle, e.State())
	assert.True(t, e.Query(4), "reset restores every flag")
	assert.True(t, e.Query(0), "0 and 1 stay set until the next run")
	assert.True(t, e.Query(1))

	snap := e.Snapshot()
	assert.Equal(t, 1, snap.Cursor)
	assert.Equal(t, 0, snap.Rounds)
	assert.Equal(t, int64(0), snap.Marks)
	assert.Equal(t, 100, snap.Candidates)

	// A full run after reset behaves like the first one, emissions included.
	rec := &progressRecorder{}
	res, err := e.Run(context.Background(), RunOptions{Progress: rec.record})
	require.NoError(t, err)
	assert.Equal(t, OutcomeComplete, res.Outcome)
	assert.Equal(t, 1.0, rec.got[len(rec.got)-1].Fraction)
	assert.Equal(t, testutil.PrimesBelow(100), candidates(e))
}

func TestEngine_Inspect(t *testing.T) {
	e := newTestEngine(t, 100)

	v := e.Inspect(7)
	assert.Equal(t, StatusUnresolved, v.Status, "nothing is proven before the first run")
	assert.Equal(t, 0, v.Horizon)

	// Pause after the round for base 2: cursor 3, horizon 9.
	ctx, cancel := context.WithCancel(context.Background())
	rec := &progressRecorder{cancelAt: 1, cancel: cancel}
	_, err := e.Run(ctx, RunOptions{Progress: rec.record})
	cancel()
	require.NoError(t, err)

	tests := []struct {
		n    int
		want Status
	}{
		{-5, StatusOutOfRange},
		{100, StatusOutOfRange},
		{0, StatusNotPrime},
		{1, StatusNotPrime},
		{2, StatusPrime},
		{4, StatusNotPrime},
		{7, StatusPrime},
		{9, StatusUnresolved},
		{11, StatusUnresolved},
		{15, StatusUnresolved},
	}
	for _, tt := range tests {
		v := e.Inspect(tt.n)
		assert.Equal(t, tt.want, v.Status, "Inspect(%d)", tt.n)
		assert.Equal(t, 9, v.Horizon)
		assert.Equal(t, StatePaused, v.State)
	}

	assert.Equal(t, []int{2, 3, 5, 7}, e.Primes(0))
	assert.Equal(t, []int{2, 3}, e.Primes(5))

	_, err = e.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusPrime, e.Inspect(97).Status)
	assert.Equal(t, StatusNotPrime, e.Inspect(9).Status)
	assert.Equal(t, 100, e.Inspect(97).Horizon)
}

func TestEngine_Inspect_HorizonMidRound(t *testing.T) {
	// Pause during base 3 (cursor 4): only base 2 finished, horizon is 9.
	sleeper := testutil.NewScriptedSleeper()
	e := newTestEngine(t, 100, WithSleeper(sleeper))

	// Base 2 makes 48 marks (4..98); the 49th mark is 6 under base 3.
	ctx, cancel := context.WithCancel(context.Background())
	sleeper.CancelAt(49, cancel)
	res, err := e.Run(ctx, RunOptions{Delay: time.Nanosecond})
	cancel()
	require.NoError(t, err)
	require.Equal(t, 4, res.CursorAfter)
	require.Equal(t, 1, res.Rounds)

	v := e.Inspect(5)
	assert.Equal(t, StatusPrime, v.Status)
	assert.Equal(t, 9, v.Horizon)
	assert.Equal(t, StatusUnresolved, e.Inspect(9).Status)
}

func TestVerdict_Err(t *testing.T) {
	e := newTestEngine(t, 10)
	assert.NoError(t, e.Inspect(3).Err(10))

	err := e.Inspect(10).Err(10)
	require.Error(t, err)
	assert.True(t, IsOutOfRangeError(err))
}

// blockingSleeper signals on its first call and then blocks until ctx is done.
type blockingSleeper struct {
	entered chan struct{}
}

func (s *blockingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestEngine_QueryWaitsForActiveRun(t *testing.T) {
	sleeper := &blockingSleeper{entered: make(chan struct{}, 1)}
	e := newTestEngine(t, 100, WithSleeper(sleeper))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan RunResult, 1)
	go func() {
		res, _ := e.Run(ctx, RunOptions{Delay: time.Second})
		runDone <- res
	}()

	select {
	case <-sleeper.entered:
	case <-time.After(time.Second):
		t.Fatal("run did not reach its first sleep")
	}
	assert.Equal(t, StateRunning, e.State(), "State does not wait for the lock")

	queryDone := make(chan bool, 1)
	go func() {
		queryDone <- e.Query(4)
	}()

	select {
	case <-queryDone:
		t.Fatal("query returned while the run held the sieve")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()

	select {
	case got := <-queryDone:
		assert.False(t, got, "4 was cleared before the run paused")
	case <-time.After(time.Second):
		t.Fatal("query did not resume after the run paused")
	}

	res := <-runDone
	assert.Equal(t, OutcomePaused, res.Outcome)
	assert.Equal(t, int64(1), res.Marks)
}

func TestEngine_ResetQueuesBehindActiveRun(t *testing.T) {
	sleeper := &blockingSleeper{entered: make(chan struct{}, 1)}
	e := newTestEngine(t, 100, WithSleeper(sleeper))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_, _ = e.Run(ctx, RunOptions{Delay: time.Second})
	}()
	<-sleeper.entered

	resetDone := make(chan struct{})
	go func() {
		e.Reset()
		close(resetDone)
	}()

	select {
	case <-resetDone:
		t.Fatal("reset ran while the run held the sieve")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()

	select {
	case <-resetDone:
	case <-time.After(time.Second):
		t.Fatal("reset did not proceed after the run paused")
	}
	assert.Equal(t, StateIdle, e.State())
	assert.True(t, e.Query(4))
}

func TestEngine_TimerSleeperInterruptedIsSwallowed(t *testing.T) {
	e := newTestEngine(t, 100)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := e.Run(ctx, RunOptions{Delay: time.Hour})
	require.NoError(t, err, "an interrupted sleep is not an error")
	assert.Equal(t, OutcomePaused, res.Outcome)
	assert.Equal(t, int64(1), res.Marks)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEngine_RunIDs(t *testing.T) {
	e := newTestEngine(t, 50, WithRunIDGenerator(NewFixedGenerator("a", "b")))

	ctx, cancel := context.WithCancel(context.Background())
	rec := &progressRecorder{cancelAt: 1, cancel: cancel}
	res, err := e.Run(ctx, RunOptions{Progress: rec.record})
	cancel()
	require.NoError(t, err)
	assert.Equal(t, "a", res.RunID)
	assert.Equal(t, "a", rec.got[0].RunID)

	res, err = e.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "b", res.RunID)
}

func TestEngine_SharedClockOrdersAcrossResets(t *testing.T) {
	clock := NewClock()
	e := newTestEngine(t, 20, WithClock(clock))

	rec := &progressRecorder{}
	_, err := e.Run(context.Background(), RunOptions{Progress: rec.record})
	require.NoError(t, err)
	e.Reset()
	_, err = e.Run(context.Background(), RunOptions{Progress: rec.record})
	require.NoError(t, err)

	for i := 1; i < len(rec.got); i++ {
		assert.Greater(t, rec.got[i].Seq, rec.got[i-1].Seq)
	}
	assert.Equal(t, rec.got[len(rec.got)-1].Seq+1, clock.Next(), "engine stamps from the shared clock")
}

func TestEngine_Fraction(t *testing.T) {
	e := newTestEngine(t, 10)
	assert.InDelta(t, 0.1, e.Fraction(), 1e-9)

	_, err := e.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.Fraction())

	e.Reset()
	assert.InDelta(t, 0.1, e.Fraction(), 1e-9)
}
