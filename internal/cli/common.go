package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/config"
	"github.com/roach88/sieve/internal/driver"
	"github.com/roach88/sieve/internal/engine"
	"github.com/roach88/sieve/internal/store"
)

// commandContext returns cmd's context, or Background when there is none.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newEngine builds the engine described by cfg.
func newEngine(cfg config.Config, logger *slog.Logger) (*engine.Engine, error) {
	eng, err := engine.New(cfg.Limit, engine.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create engine", err)
	}
	return eng, nil
}

// openJournal opens cfg.Database, or returns (nil, nil) when journaling is
// disabled. The caller closes the store.
func openJournal(cfg config.Config, logger *slog.Logger) (*store.Store, error) {
	if cfg.Database == "" {
		return nil, nil
	}

	logger.Debug("opening journal", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// driverJournal converts a possibly nil store into a driver.Journal, so a
// nil *store.Store never hides inside a non-nil interface.
func driverJournal(st *store.Store) driver.Journal {
	if st == nil {
		return nil
	}
	return st
}

// closeJournal closes st, logging any error.
func closeJournal(st *store.Store, logger *slog.Logger) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}
}

// completeSieve runs eng to completion through a driver, journaling the
// run when st is not nil.
func completeSieve(ctx context.Context, eng *engine.Engine, st *store.Store, logger *slog.Logger) (*driver.Driver, engine.RunResult, error) {
	d := driver.New(eng, driver.Options{Journal: driverJournal(st), Logger: logger})
	if err := d.Start(); err != nil {
		return nil, engine.RunResult{}, err
	}
	res, err := d.Wait(ctx)
	if err != nil {
		_ = d.Close()
		return nil, engine.RunResult{}, WrapExitError(ExitFailure, "interrupted", err)
	}
	return d, res, nil
}

// syncWriter serializes writes from the dispatcher goroutine and the
// command goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// printf writes to w through the number-aware printer.
func printf(w io.Writer, format string, args ...any) {
	fmt.Fprint(w, printer.Sprintf(format, args...))
}
