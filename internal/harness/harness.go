package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/sieve/internal/engine"
	"github.com/roach88/sieve/internal/store"
	"github.com/roach88/sieve/internal/testutil"
)

// journalEpoch anchors journal timestamps so they derive from seq alone.
var journalEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness is the scenario execution engine.
// It drives a real sieve engine with deterministic helpers.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	clock   *testutil.DeterministicClock
	sleeper *testutil.ScriptedSleeper
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario gets a fresh engine and a fresh in-memory journal.
//
// Execution flow:
// 1. Build the engine over scenario.Limit
// 2. Execute steps, checking each step's expectations
// 3. Evaluate assertions
// 4. Record the final engine state
//
// The returned error covers setup failures only. Failed expectations and
// assertions are reported through Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock()
	sleeper := testutil.NewScriptedSleeper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng, err := engine.New(scenario.Limit,
		engine.WithLogger(logger),
		engine.WithClock(clock),
		engine.WithSleeper(sleeper),
		engine.WithRunIDGenerator(testutil.NewSequentialRunIDs("run")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{
		store:   st,
		engine:  eng,
		clock:   clock,
		sleeper: sleeper,
		logger:  logger,
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute step %d: %w", i, err)
		}
	}

	actx := &AssertionContext{
		Engine: eng,
		Store:  st,
		Ctx:    ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	snap := eng.Snapshot()
	result.Final = FinalState{
		State:      snap.State.String(),
		Cursor:     snap.Cursor,
		Fraction:   snap.Fraction,
		Horizon:    snap.Horizon,
		Candidates: snap.Candidates,
	}

	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	switch step.Op {
	case OpRun:
		return h.executeRun(ctx, i, step, result)
	case OpQuery:
		h.executeQuery(i, step, result)
		return nil
	case OpReset:
		h.engine.Reset()
		result.Trace = append(result.Trace, TraceEvent{Type: EventReset, Seq: h.clock.Next()})
		return nil
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func (h *Harness) executeRun(ctx context.Context, i int, step Step, result *Result) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	delay := time.Duration(step.DelayMS) * time.Millisecond
	if step.PauseAfterMarks > 0 {
		// The sleeper is only consulted when the delay is non-zero.
		if delay == 0 {
			delay = time.Millisecond
		}
		h.sleeper.CancelAt(h.sleeper.Calls()+step.PauseAfterMarks, cancel)
	}

	emitted := 0
	onProgress := func(p engine.Progress) {
		result.Trace = append(result.Trace, TraceEvent{
			Type:     EventProgress,
			Seq:      p.Seq,
			RunID:    p.RunID,
			Base:     p.Base,
			Cursor:   p.Cursor,
			Fraction: p.Fraction,
		})
		emitted++
		if step.PauseAfterProgress > 0 && emitted == step.PauseAfterProgress {
			cancel()
		}
	}

	res, err := h.engine.Run(runCtx, engine.RunOptions{Delay: delay, Progress: onProgress})
	if err != nil {
		return err
	}

	seq := h.clock.Next()
	result.Trace = append(result.Trace, TraceEvent{
		Type:         EventRun,
		Seq:          seq,
		RunID:        res.RunID,
		Outcome:      res.Outcome.String(),
		CursorBefore: res.CursorBefore,
		CursorAfter:  res.CursorAfter,
		Rounds:       res.Rounds,
		Marks:        res.Marks,
	})

	at := journalEpoch.Add(time.Duration(seq) * time.Second)
	if err := h.store.WriteRun(ctx, store.RunRecord{
		ID:           res.RunID,
		Limit:        h.engine.Limit(),
		Delay:        delay,
		CursorBefore: res.CursorBefore,
		CursorAfter:  res.CursorAfter,
		Rounds:       res.Rounds,
		Marks:        res.Marks,
		Emissions:    res.Emissions,
		Outcome:      res.Outcome.String(),
		StartedAt:    at,
		FinishedAt:   at,
	}); err != nil {
		return fmt.Errorf("failed to journal run: %w", err)
	}

	if step.Expect == nil {
		return nil
	}
	if step.Expect.Outcome != "" && step.Expect.Outcome != res.Outcome.String() {
		result.AddError(fmt.Sprintf("step %d: expected outcome %q, got %q", i, step.Expect.Outcome, res.Outcome.String()))
	}
	if step.Expect.Cursor != nil && *step.Expect.Cursor != res.CursorAfter {
		result.AddError(fmt.Sprintf("step %d: expected cursor %d, got %d", i, *step.Expect.Cursor, res.CursorAfter))
	}
	return nil
}

func (h *Harness) executeQuery(i int, step Step, result *Result) {
	for _, n := range step.Numbers {
		candidate := h.engine.Query(n)
		v := h.engine.Inspect(n)

		result.Trace = append(result.Trace, TraceEvent{
			Type:      EventQuery,
			Seq:       h.clock.Next(),
			Number:    n,
			Candidate: candidate,
			Status:    v.Status.String(),
		})

		if step.Expect == nil {
			continue
		}
		if want, ok := step.Expect.Candidates[n]; ok && want != candidate {
			result.AddError(fmt.Sprintf("step %d: query(%d) expected %t, got %t", i, n, want, candidate))
		}
		if want, ok := step.Expect.Statuses[n]; ok && want != v.Status.String() {
			result.AddError(fmt.Sprintf("step %d: inspect(%d) expected %q, got %q", i, n, want, v.Status.String()))
		}
	}
}
