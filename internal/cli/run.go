package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/driver"
	"github.com/roach88/sieve/internal/engine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Limit            int
	DelayMS          int
	PauseAfterRounds int
	Database         string
}

// RunSummary is the result of the run command.
type RunSummary struct {
	RunID        string  `json:"run_id"`
	Outcome      string  `json:"outcome"`
	State        string  `json:"state"`
	Limit        int     `json:"limit"`
	Cursor       int     `json:"cursor"`
	Fraction     float64 `json:"fraction"`
	Horizon      int     `json:"horizon"`
	Rounds       int     `json:"rounds"`
	Marks        int64   `json:"marks"`
	ProvenPrimes int     `json:"proven_primes"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sieve and report progress",
		Long: `Run the sieve over [0, limit) and print progress as it goes.

Ctrl-C pauses the run: progress is kept and the summary shows how far the
sieve got. With --db every run is written to the journal.

Examples:
  sieve run
  sieve run --limit 1000000 --delay-ms 1
  sieve run --limit 100 --pause-after-rounds 3 --format json
  sieve run --db ./sieve.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSieve(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", engine.DefaultLimit, "sieve range bound N")
	cmd.Flags().IntVar(&opts.DelayMS, "delay-ms", 0, "delay after each marked multiple, in milliseconds")
	cmd.Flags().IntVar(&opts.PauseAfterRounds, "pause-after-rounds", 0, "pause after this many rounds (0 = never)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")

	return cmd
}

func runSieve(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := opts.resolveConfig(cmd)
	if err != nil {
		return err
	}
	if opts.PauseAfterRounds < 0 {
		return NewExitError(ExitCommandError, "--pause-after-rounds must be non-negative")
	}
	logger := opts.log()

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	st, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	defer closeJournal(st, logger)

	out := &syncWriter{w: cmd.OutOrStdout()}
	d := driver.New(eng, driver.Options{
		Delay:            cfg.Delay(),
		ProgressHz:       cfg.ProgressHz,
		PauseAfterRounds: opts.PauseAfterRounds,
		Journal:          driverJournal(st),
		Logger:           logger,
		OnProgress: func(p engine.Progress) {
			if opts.Format == "json" {
				return
			}
			printf(out, "progress %s (cursor %d)\n", formatPercent(p.Fraction), p.Cursor)
		},
	})

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Start(); err != nil {
		return WrapExitError(ExitFailure, "failed to start", err)
	}

	res, err := d.Wait(ctx)
	if err != nil {
		logger.Info("interrupted, pausing", "error", err)
		if err := d.Pause(); err != nil {
			return WrapExitError(ExitFailure, "failed to pause", err)
		}
		res, _ = d.Wait(context.Background())
	}

	if err := d.Close(); err != nil {
		return WrapExitError(ExitFailure, "journal write failed", err)
	}

	snap := eng.Snapshot()
	summary := RunSummary{
		RunID:        res.RunID,
		Outcome:      res.Outcome.String(),
		State:        snap.State.String(),
		Limit:        snap.Limit,
		Cursor:       snap.Cursor,
		Fraction:     snap.Fraction,
		Horizon:      snap.Horizon,
		Rounds:       res.Rounds,
		Marks:        res.Marks,
		ProvenPrimes: len(eng.Primes(0)),
	}

	if opts.Format == "json" {
		f := opts.formatter(cmd)
		return f.Success(summary)
	}

	w := cmd.OutOrStdout()
	if snap.State == engine.StateComplete {
		printf(w, "Sieve complete: %s primes below %s\n", formatInt(summary.ProvenPrimes), formatInt(summary.Limit))
	} else {
		printf(w, "Sieve %s at %s: %s primes proven below %s\n",
			summary.State, formatPercent(summary.Fraction), formatInt(summary.ProvenPrimes), formatInt(summary.Horizon))
	}
	printf(w, "Run %s: %s rounds, %s marks\n", summary.RunID, formatInt(summary.Rounds), formatInt(int(summary.Marks)))
	return nil
}
