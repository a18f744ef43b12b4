package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/sieve/internal/candidate"
)

// DefaultLimit is the default range bound: the sieve covers [0, DefaultLimit).
const DefaultLimit = 10_000_000

// MaxLimit is the largest range bound New accepts.
const MaxLimit = 1 << 30

// Progress is one progress emission.
type Progress struct {
	// RunID identifies the Run call that emitted this progress.
	RunID string

	// Seq is a logical timestamp from the engine clock; strictly increasing.
	Seq int64

	// Base is the base whose multiples were just marked. Zero on the
	// completion emission.
	Base int

	// Cursor is nextCandidate after the round.
	Cursor int

	// Fraction is Cursor / limit, in [0, 1].
	Fraction float64
}

// ProgressFunc receives progress emissions.
//
// It is called synchronously from inside Run while the engine lock is held,
// so it must not call back into the engine. Cancelling the run's context
// from a ProgressFunc is fine.
type ProgressFunc func(Progress)

// RunOptions are the per-call parameters of Run.
type RunOptions struct {
	// Delay is the pause after each marked multiple. Zero disables it.
	Delay time.Duration

	// Progress receives one emission per finished round. May be nil.
	Progress ProgressFunc
}

// RunResult summarizes one Run call.
type RunResult struct {
	RunID        string
	Outcome      Outcome
	CursorBefore int
	CursorAfter  int
	Rounds       int
	Marks        int64
	Emissions    int
}

// Engine is the incremental sieve.
//
// Thread-safety model:
//   - Run, Reset, Query, Inspect, Snapshot and Primes all take the same mutex.
//   - Run holds the mutex for its entire duration, delay sleeps included, so
//     other calls queue behind an active run until it pauses or completes.
//   - State and Fraction read atomic mirrors and never block.
//
// A second Run or a Reset issued while a run is active is queued, not
// rejected. Drivers that want prompt restarts cancel the active run first.
type Engine struct {
	mu sync.Mutex

	set   *candidate.Set
	limit int

	// next is the cursor: the index the next round starts scanning from.
	next int
	// started is false until the first Run after construction or Reset.
	started bool
	// openBase is the base whose multiples were being marked when the last
	// run paused, or 0 if the last round finished. openNext is the next
	// multiple of openBase to clear.
	openBase int
	openNext int

	lastFraction float64
	rounds       int
	marks        int64

	stateMirror  atomic.Int32
	cursorMirror atomic.Int64

	clock   Sequencer
	runIDs  RunIDGenerator
	sleeper Sleeper
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSleeper replaces the per-mark sleeper. Default: TimerSleeper.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) {
		e.sleeper = s
	}
}

// WithRunIDGenerator replaces the run id generator. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithClock sets the logical clock used to stamp progress emissions.
// Sharing one clock with other event sources gives a single total order.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an engine over [0, limit) with every index a candidate.
//
// Returns an INVALID_LIMIT RuntimeError if limit is negative or above MaxLimit.
// This is the only fatal condition the engine has.
func New(limit int, opts ...Option) (*Engine, error) {
	if limit < 0 || limit > MaxLimit {
		return nil, NewInvalidLimitError(limit)
	}

	e := &Engine{
		set:     candidate.New(limit),
		limit:   limit,
		next:    1,
		clock:   NewClock(),
		runIDs:  UUIDv7Generator{},
		sleeper: TimerSleeper{},
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	e.publish(StateIdle)
	return e, nil
}

// Limit returns the range bound N.
func (e *Engine) Limit() int {
	return e.limit
}

// State returns the lifecycle state without waiting for the engine lock.
func (e *Engine) State() State {
	return State(e.stateMirror.Load())
}

// Fraction returns cursor / limit without waiting for the engine lock.
func (e *Engine) Fraction() float64 {
	return fraction(int(e.cursorMirror.Load()), e.limit)
}

// Run advances the sieve until it completes or ctx is cancelled.
//
// Each round finds the next candidate base at or after the cursor, moves the
// cursor past it, and clears every proper multiple of it. After each cleared
// multiple the run sleeps for opts.Delay (if non-zero) and then checks ctx.
// Cancellation is also checked at the top of every round. A cancelled run
// leaves the flags and cursor exactly as far as they got; nothing is rolled
// back. The next Run first finishes the interrupted round, then continues
// from the cursor, so pausing never changes the final result.
//
// A finished round emits Cursor/limit to opts.Progress. Reaching the end of
// the range emits a final 1.0 (unless 1.0 was already emitted) and moves the
// engine to StateComplete. Once complete, Run is a no-op returning
// OutcomeAlreadyComplete until Reset.
//
// Cancellation is not an error: the only error is a negative delay.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	if opts.Delay < 0 {
		return RunResult{}, NewInvalidDelayError(opts.Delay)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res := RunResult{
		RunID:        e.runIDs.Generate(),
		CursorBefore: e.next,
	}
	log := e.logger.With("run_id", res.RunID)

	if e.State() == StateComplete {
		res.Outcome = OutcomeAlreadyComplete
		res.CursorAfter = e.next
		log.Debug("run skipped: sieve already complete", "limit", e.limit)
		return res, nil
	}

	log.Info("run starting",
		"limit", e.limit,
		"cursor", e.next,
		"delay", opts.Delay,
	)

	e.started = true
	e.set.Clear(0)
	e.set.Clear(1)
	e.publish(StateRunning)

	res.Outcome = e.sieve(ctx, log, opts, &res)
	res.CursorAfter = e.next

	switch res.Outcome {
	case OutcomeComplete:
		e.publish(StateComplete)
	default:
		e.publish(StatePaused)
	}

	log.Info("run finished",
		"outcome", res.Outcome.String(),
		"cursor", res.CursorAfter,
		"rounds", res.Rounds,
		"marks", res.Marks,
	)

	return res, nil
}

// sieve is the round loop. Called with e.mu held.
//
// A round interrupted by cancellation stays open: the next call finishes
// its remaining multiples before scanning for a new base, without moving
// the cursor back.
func (e *Engine) sieve(ctx context.Context, log *slog.Logger, opts RunOptions, res *RunResult) Outcome {
	for {
		if ctx.Err() != nil {
			return OutcomePaused
		}

		base, start := e.openBase, e.openNext
		if base == 0 {
			next, ok := e.set.NextCandidate(e.next)
			if !ok {
				if e.next < e.limit {
					e.setCursor(e.limit)
				}
				if e.lastFraction < 1 {
					e.emit(opts.Progress, res, 0)
				}
				return OutcomeComplete
			}

			base, start = next, 2*next
			e.setCursor(base + 1)
			e.openBase = base
		} else {
			log.Debug("resuming open round", "base", base, "multiple", start)
		}

		for m := start; m < e.limit; m += base {
			e.set.Clear(m)
			e.openNext = m + base
			e.marks++
			res.Marks++

			if opts.Delay > 0 {
				if err := e.sleeper.Sleep(ctx, opts.Delay); err != nil {
					log.Debug("sleep interrupted", "base", base, "multiple", m, "error", err)
				}
			}

			if ctx.Err() != nil {
				return OutcomePaused
			}
		}

		e.openBase, e.openNext = 0, 0
		e.rounds++
		res.Rounds++
		e.emit(opts.Progress, res, base)
	}
}

// emit stamps and delivers one progress value. Called with e.mu held.
func (e *Engine) emit(fn ProgressFunc, res *RunResult, base int) {
	p := Progress{
		RunID:    res.RunID,
		Seq:      e.clock.Next(),
		Base:     base,
		Cursor:   e.next,
		Fraction: fraction(e.next, e.limit),
	}
	e.lastFraction = p.Fraction
	res.Emissions++
	if fn != nil {
		fn(p)
	}
}

// Reset clears all progress: every flag back to candidate, cursor back to 1.
//
// Indices 0 and 1 are not cleared here; the next Run clears them. A Reset
// issued during an active run waits for that run to return.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.set.Fill()
	e.started = false
	e.openBase, e.openNext = 0, 0
	e.lastFraction = 0
	e.rounds = 0
	e.marks = 0
	e.setCursor(1)
	e.publish(StateIdle)

	e.logger.Debug("sieve reset", "limit", e.limit)
}

// Query reports whether number is still flagged as a candidate.
//
// Out-of-range numbers (negative or >= limit) report false. Below the marking
// horizon a true result means prime; at or above it, true only means "not
// yet disproven". Use Inspect to tell the two apart.
func (e *Engine) Query(number int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set.Get(number)
}

// Verdict is the classification of one number.
type Verdict struct {
	Number    int
	Candidate bool
	Status    Status
	Horizon   int
	State     State
}

// Err returns an OUT_OF_RANGE RuntimeError for out-of-range verdicts, nil otherwise.
func (v Verdict) Err(limit int) error {
	if v.Status == StatusOutOfRange {
		return NewOutOfRangeError(v.Number, limit)
	}
	return nil
}

// Inspect classifies number against the sieve's current progress.
func (e *Engine) Inspect(number int) Verdict {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := Verdict{
		Number:  number,
		Horizon: e.horizon(),
		State:   e.State(),
	}

	switch {
	case number < 0 || number >= e.limit:
		v.Status = StatusOutOfRange
	case !e.set.Get(number):
		v.Status = StatusNotPrime
	case number < v.Horizon && number >= 2:
		v.Candidate = true
		v.Status = StatusPrime
	default:
		v.Candidate = true
		v.Status = StatusUnresolved
	}
	return v
}

// horizon returns the bound below which every composite is already cleared.
// Called with e.mu held.
//
// With every base below b fully processed, any composite left has its
// smallest prime factor >= b and is therefore >= b*b.
func (e *Engine) horizon() int {
	if !e.started {
		return 0
	}
	if e.State() == StateComplete {
		return e.limit
	}

	b := e.next
	if e.openBase != 0 {
		b = e.openBase
	}
	if b > e.limit/b {
		return e.limit
	}
	return b * b
}

// Snapshot is a consistent view of the sieve.
type Snapshot struct {
	State      State
	Limit      int
	Cursor     int
	Fraction   float64
	Horizon    int
	Rounds     int
	Marks      int64
	Candidates int
}

// Snapshot returns a consistent view of the sieve. Waits for any active run.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		State:      e.State(),
		Limit:      e.limit,
		Cursor:     e.next,
		Fraction:   fraction(e.next, e.limit),
		Horizon:    e.horizon(),
		Rounds:     e.rounds,
		Marks:      e.marks,
		Candidates: e.set.Count(e.limit),
	}
}

// Primes returns every candidate below both max and the marking horizon,
// i.e. the numbers already proven prime. A max <= 0 means no extra bound.
func (e *Engine) Primes(max int) []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	upto := e.horizon()
	if max > 0 && max < upto {
		upto = max
	}
	return e.set.Indices(upto)
}

// setCursor moves the cursor and its atomic mirror. Called with e.mu held.
func (e *Engine) setCursor(n int) {
	e.next = n
	e.cursorMirror.Store(int64(n))
}

// publish updates the atomic state mirror.
func (e *Engine) publish(s State) {
	e.stateMirror.Store(int32(s))
	if s == StateIdle {
		e.cursorMirror.Store(int64(e.next))
	}
}

func fraction(cursor, limit int) float64 {
	if limit <= 0 {
		return 1
	}
	f := float64(cursor) / float64(limit)
	if f > 1 {
		return 1
	}
	return f
}
