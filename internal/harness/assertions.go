package harness

import (
	"context"
	"fmt"
	"math"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/sieve/internal/engine"
	"github.com/roach88/sieve/internal/store"
	"github.com/roach88/sieve/internal/testutil"
)

// AssertionContext provides what assertions need beyond the trace.
type AssertionContext struct {
	Engine *engine.Engine
	Store  *store.Store
	Ctx    context.Context
}

// fractionTolerance absorbs float rounding in final_progress.
const fractionTolerance = 1e-9

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertState:
		return assertState(a, actx)
	case AssertPrimeCount:
		return assertPrimeCount(a, actx)
	case AssertProgressMonotonic:
		return assertProgressMonotonic(result)
	case AssertFinalProgress:
		return assertFinalProgress(result, a)
	case AssertCandidatesEqualPrimes:
		return assertCandidatesEqualPrimes(actx)
	case AssertJournalRuns:
		return assertJournalRuns(a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertState(a Assertion, actx *AssertionContext) error {
	got := actx.Engine.State().String()
	if got != a.State {
		return fmt.Errorf("expected state %q, got %q", a.State, got)
	}
	return nil
}

// assertPrimeCount counts proven primes only: candidates below the horizon.
func assertPrimeCount(a Assertion, actx *AssertionContext) error {
	got := len(actx.Engine.Primes(a.Below))
	if got != *a.Count {
		return fmt.Errorf("expected %d primes, got %d", *a.Count, got)
	}
	return nil
}

// assertProgressMonotonic checks that seq strictly increases over the
// whole trace and that fractions strictly increase between resets.
func assertProgressMonotonic(result *Result) error {
	var (
		lastSeq      int64
		lastFraction = -1.0
	)
	for i, e := range result.Trace {
		if e.Seq <= lastSeq {
			return fmt.Errorf("event %d: seq %d not after %d", i, e.Seq, lastSeq)
		}
		lastSeq = e.Seq

		switch e.Type {
		case EventReset:
			lastFraction = -1
		case EventProgress:
			if e.Fraction <= lastFraction {
				return fmt.Errorf("event %d: fraction %g not above %g", i, e.Fraction, lastFraction)
			}
			if e.Fraction < 0 || e.Fraction > 1 {
				return fmt.Errorf("event %d: fraction %g outside [0, 1]", i, e.Fraction)
			}
			lastFraction = e.Fraction
		}
	}
	return nil
}

func assertFinalProgress(result *Result, a Assertion) error {
	progress := result.Progress()
	if len(progress) == 0 {
		return fmt.Errorf("no progress was emitted")
	}
	got := progress[len(progress)-1].Fraction
	if math.Abs(got-*a.Fraction) > fractionTolerance {
		return fmt.Errorf("expected final fraction %g, got %g", *a.Fraction, got)
	}
	return nil
}

// assertCandidatesEqualPrimes compares proven primes with trial division.
func assertCandidatesEqualPrimes(actx *AssertionContext) error {
	snap := actx.Engine.Snapshot()
	got := actx.Engine.Primes(0)
	want := testutil.PrimesBelow(snap.Horizon)
	if diff := cmp.Diff(want, got); diff != "" {
		return fmt.Errorf("candidates below horizon %d differ from primes (-want +got):\n%s", snap.Horizon, diff)
	}
	return nil
}

func assertJournalRuns(a Assertion, actx *AssertionContext) error {
	runs, err := actx.Store.ReadRuns(actx.Ctx, 0)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if len(runs) != *a.Count {
		return fmt.Errorf("expected %d journaled runs, got %d", *a.Count, len(runs))
	}
	return nil
}
