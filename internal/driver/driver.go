package driver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/roach88/sieve/internal/engine"
	"github.com/roach88/sieve/internal/store"
)

// ErrClosed is returned by control calls made after Close.
var ErrClosed = errors.New("driver: closed")

// Journal records finished runs and verdict checks.
// *store.Store satisfies it.
type Journal interface {
	WriteRun(ctx context.Context, r store.RunRecord) error
	WriteCheck(ctx context.Context, c store.CheckRecord) (int64, error)
}

// Options configures a Driver.
type Options struct {
	// Delay is the per-mark delay used by new runs.
	Delay time.Duration

	// ProgressHz caps intermediate progress deliveries per second.
	// Zero or negative delivers every emission.
	ProgressHz float64

	// PauseAfterRounds pauses each run after that many finished rounds.
	// Zero means never.
	PauseAfterRounds int

	// OnProgress receives throttled progress on the dispatcher goroutine.
	OnProgress func(engine.Progress)

	// OnRunFinished receives every run result on the dispatcher goroutine,
	// after the progress that run emitted.
	OnRunFinished func(engine.RunResult)

	// Journal is optional.
	Journal Journal

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now stamps journal records. Defaults to time.Now.
	Now func() time.Time
}

// Status is a non-blocking view of the driver.
type Status struct {
	State     engine.State
	Fraction  float64
	Delay     time.Duration
	Paused    bool
	LastRunID string
}

// Driver runs an engine in the background.
//
// Thread-safety model:
//   - ctl serializes the control calls (Start, Pause, Resume, Reset, SetDelay,
//     Close).
//     A control call cancels the active run and waits for it before doing
//     anything else, so runs never overlap.
//   - mu guards the fields below it and is never held while waiting.
type Driver struct {
	eng    *engine.Engine
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	events       *eventQueue
	throttle     *throttle
	dispatchDone chan struct{}

	ctl sync.Mutex

	mu         sync.Mutex
	runCtx     context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	delay      time.Duration
	paused     bool
	started    bool
	closed     bool
	watch      int
	watching   bool
	verdict    engine.Verdict
	verdictOK  bool
	lastRunID  string
	lastResult engine.RunResult
	journalErr error
}

// New creates a driver for eng and starts its dispatcher goroutine.
// Nothing runs until Start or Resume.
func New(eng *engine.Engine, opts Options) *Driver {
	d := &Driver{
		eng:          eng,
		opts:         opts,
		logger:       opts.Logger,
		now:          opts.Now,
		events:       newEventQueue(),
		throttle:     newThrottle(opts.ProgressHz),
		dispatchDone: make(chan struct{}),
		delay:        opts.Delay,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}

	go d.dispatch()
	return d
}

// Start discards all progress and runs the sieve from scratch.
func (d *Driver) Start() error {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	if d.isClosed() {
		return ErrClosed
	}

	d.stop()
	d.eng.Reset()

	d.mu.Lock()
	d.paused = false
	d.mu.Unlock()

	d.logger.Info("sieve started", "limit", d.eng.Limit())
	d.startRun()
	return nil
}

// Pause cancels the active run and waits for it to return. The engine
// keeps everything it computed; Resume continues from the cursor.
// The watched verdict is refreshed before Pause returns.
func (d *Driver) Pause() error {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	if d.isClosed() {
		return ErrClosed
	}

	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()

	if !d.stop() {
		d.refreshWatch(context.Background())
	}
	d.logger.Info("sieve paused", "fraction", d.eng.Fraction())
	return nil
}

// Resume continues the sieve from the cursor. A no-op if a run is active
// and not cancelled. A cancelled run still winding down (journaling, say)
// is waited for, then a new run starts.
func (d *Driver) Resume() error {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	if d.isClosed() {
		return ErrClosed
	}

	d.mu.Lock()
	running := d.done != nil && d.runCtx.Err() == nil
	d.mu.Unlock()

	if running {
		d.mu.Lock()
		d.paused = false
		d.mu.Unlock()
		return nil
	}

	// The winding-down run may still set paused; clear it after.
	d.stop()
	d.mu.Lock()
	d.paused = false
	d.mu.Unlock()

	d.logger.Info("sieve resumed", "fraction", d.eng.Fraction())
	d.startRun()
	return nil
}

// SetDelay changes the per-mark delay. If the driver was started, is not
// paused and the sieve is not yet complete, the active run is cancelled and
// a new one resumes from the cursor with the new delay.
func (d *Driver) SetDelay(delay time.Duration) error {
	if delay < 0 {
		return engine.NewInvalidDelayError(delay)
	}

	d.ctl.Lock()
	defer d.ctl.Unlock()

	if d.isClosed() {
		return ErrClosed
	}

	d.mu.Lock()
	d.delay = delay
	winding := d.done != nil && d.runCtx.Err() != nil
	d.mu.Unlock()

	// A cancelled run may still be about to record its pause.
	if winding {
		d.stop()
	}

	d.mu.Lock()
	restart := d.started && !d.paused && d.eng.State() != engine.StateComplete
	d.mu.Unlock()

	d.logger.Debug("delay changed", "delay", delay, "restart", restart)

	if restart {
		d.stop()
		d.startRun()
	}
	return nil
}

// Reset cancels the active run and discards all progress. The driver
// returns to its never-started state; the delay and watched number are kept.
func (d *Driver) Reset() error {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	if d.isClosed() {
		return ErrClosed
	}

	d.stop()
	d.eng.Reset()

	d.mu.Lock()
	d.paused = false
	d.started = false
	d.mu.Unlock()

	d.refreshWatch(context.Background())
	d.logger.Info("sieve reset", "limit", d.eng.Limit())
	return nil
}

// Watch sets the number whose verdict is refreshed whenever a run ends.
// If no run is active the verdict is refreshed immediately.
func (d *Driver) Watch(ctx context.Context, n int) {
	d.mu.Lock()
	d.watch = n
	d.watching = true
	d.verdictOK = false
	active := d.done != nil
	d.mu.Unlock()

	if !active {
		d.refreshWatch(ctx)
	}
}

// Verdict returns the latest verdict of the watched number.
// ok is false until a number is watched and evaluated.
func (d *Driver) Verdict() (v engine.Verdict, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.verdictOK {
		return engine.Verdict{}, false
	}
	return d.verdict, true
}

// Check classifies n and journals the verdict. It waits for the engine
// lock, so during an active run it returns once that run pauses or
// completes.
func (d *Driver) Check(ctx context.Context, n int) (engine.Verdict, error) {
	v := d.eng.Inspect(n)
	return v, d.journalCheck(ctx, v)
}

// Status returns a snapshot of the driver without touching the engine lock.
func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Status{
		State:     d.eng.State(),
		Fraction:  d.eng.Fraction(),
		Delay:     d.delay,
		Paused:    d.paused,
		LastRunID: d.lastRunID,
	}
}

// Wait blocks until the active run (if any) returns or ctx is done, and
// returns the result of the most recent run.
func (d *Driver) Wait(ctx context.Context) (engine.RunResult, error) {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return engine.RunResult{}, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastResult, nil
}

// Close cancels the active run, flushes pending events to the callbacks,
// and returns every journal error seen. Safe to call more than once.
func (d *Driver) Close() error {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	d.mu.Lock()
	already := d.closed
	d.closed = true
	d.mu.Unlock()

	if !already {
		d.stop()
		d.events.Close()
		<-d.dispatchDone
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.journalErr
}

func (d *Driver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// stop cancels the active run and waits for its goroutine to exit.
// Reports whether there was one. Called with ctl held.
func (d *Driver) stop() bool {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// startRun launches one engine run. Called with ctl held and no run active.
func (d *Driver) startRun() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	d.mu.Lock()
	d.runCtx = ctx
	d.cancel = cancel
	d.done = done
	d.started = true
	delay := d.delay
	d.mu.Unlock()

	go d.run(ctx, cancel, delay, done)
}

// run is the body of the run goroutine.
func (d *Driver) run(ctx context.Context, cancel context.CancelFunc, delay time.Duration, done chan struct{}) {
	defer func() {
		d.mu.Lock()
		if d.done == done {
			d.runCtx = nil
			d.cancel = nil
			d.done = nil
		}
		d.mu.Unlock()
		close(done)
	}()
	defer cancel()

	rounds := 0
	onProgress := func(p engine.Progress) {
		d.events.Enqueue(Event{Type: EventTypeProgress, Progress: p})
		if p.Base != 0 {
			rounds++
			if d.opts.PauseAfterRounds > 0 && rounds >= d.opts.PauseAfterRounds {
				cancel()
			}
		}
	}

	startedAt := d.now()
	res, err := d.eng.Run(ctx, engine.RunOptions{Delay: delay, Progress: onProgress})
	if err != nil {
		d.logger.Error("run failed", "error", err)
		return
	}

	if d.opts.PauseAfterRounds > 0 && res.Outcome == engine.OutcomePaused {
		d.mu.Lock()
		d.paused = true
		d.mu.Unlock()
	}

	jctx := context.Background()
	if err := d.journalRun(jctx, res, delay, startedAt); err == nil {
		d.mu.Lock()
		d.lastRunID = res.RunID
		d.mu.Unlock()
	}

	d.mu.Lock()
	d.lastResult = res
	d.mu.Unlock()

	d.refreshWatch(jctx)
	d.events.Enqueue(Event{Type: EventTypeRunFinished, Result: res})
}

// refreshWatch re-evaluates and journals the watched number, if any.
func (d *Driver) refreshWatch(ctx context.Context) {
	d.mu.Lock()
	n, watching := d.watch, d.watching
	d.mu.Unlock()

	if !watching {
		return
	}

	v := d.eng.Inspect(n)

	d.mu.Lock()
	if d.watching && d.watch == n {
		d.verdict = v
		d.verdictOK = true
	}
	d.mu.Unlock()

	d.logger.Debug("watched number refreshed", "number", n, "status", v.Status.String())
	_ = d.journalCheck(ctx, v)
}

func (d *Driver) journalRun(ctx context.Context, res engine.RunResult, delay time.Duration, startedAt time.Time) error {
	if d.opts.Journal == nil {
		return nil
	}

	err := d.opts.Journal.WriteRun(ctx, store.RunRecord{
		ID:           res.RunID,
		Limit:        d.eng.Limit(),
		Delay:        delay,
		CursorBefore: res.CursorBefore,
		CursorAfter:  res.CursorAfter,
		Rounds:       res.Rounds,
		Marks:        res.Marks,
		Emissions:    res.Emissions,
		Outcome:      res.Outcome.String(),
		StartedAt:    startedAt,
		FinishedAt:   d.now(),
	})
	if err != nil {
		d.recordJournalError(err)
	}
	return err
}

func (d *Driver) journalCheck(ctx context.Context, v engine.Verdict) error {
	if d.opts.Journal == nil {
		return nil
	}

	d.mu.Lock()
	runID := d.lastRunID
	d.mu.Unlock()

	_, err := d.opts.Journal.WriteCheck(ctx, store.CheckRecord{
		RunID:     runID,
		Number:    v.Number,
		Status:    v.Status.String(),
		Candidate: v.Candidate,
		Horizon:   v.Horizon,
		CheckedAt: d.now(),
	})
	if err != nil {
		d.recordJournalError(err)
	}
	return err
}

func (d *Driver) recordJournalError(err error) {
	d.logger.Warn("journal write failed", "error", err)

	d.mu.Lock()
	d.journalErr = multierr.Append(d.journalErr, err)
	d.mu.Unlock()
}

// dispatch delivers queued events until the queue is closed and drained.
func (d *Driver) dispatch() {
	defer close(d.dispatchDone)

	for {
		d.drain()
		if d.events.Closed() {
			d.drain()
			return
		}
		<-d.events.Wait()
	}
}

func (d *Driver) drain() {
	for {
		ev, ok := d.events.TryDequeue()
		if !ok {
			return
		}

		switch ev.Type {
		case EventTypeProgress:
			if d.opts.OnProgress != nil && d.throttle.allow(ev.Progress) {
				d.opts.OnProgress(ev.Progress)
			}
		case EventTypeRunFinished:
			if d.opts.OnRunFinished != nil {
				d.opts.OnRunFinished(ev.Result)
			}
		}
	}
}
