package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Runs     int
	Checks   bool
	Number   int
}

// HistoryRun is one run in history output.
type HistoryRun struct {
	ID           string  `json:"id"`
	Outcome      string  `json:"outcome"`
	Limit        int     `json:"limit"`
	DelayMS      float64 `json:"delay_ms"`
	CursorBefore int     `json:"cursor_before"`
	CursorAfter  int     `json:"cursor_after"`
	Rounds       int     `json:"rounds"`
	Marks        int64   `json:"marks"`
	Emissions    int     `json:"emissions"`
	StartedAt    string  `json:"started_at"`
}

// HistoryCheck is one check in history output.
type HistoryCheck struct {
	ID        int64  `json:"id"`
	RunID     string `json:"run_id,omitempty"`
	Number    int    `json:"number"`
	Status    string `json:"status"`
	Horizon   int    `json:"horizon"`
	CheckedAt string `json:"checked_at"`
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	Runs   []HistoryRun   `json:"runs"`
	Checks []HistoryCheck `json:"checks,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled runs and checks",
		Long: `Print the runs (and optionally the checks) recorded in a journal written
by run, check or session with --db.

Examples:
  sieve history --db ./sieve.db
  sieve history --db ./sieve.db --runs 10
  sieve history --db ./sieve.db --checks --number 97 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal")
	cmd.Flags().IntVar(&opts.Runs, "runs", 0, "show at most this many runs (0 = all)")
	cmd.Flags().BoolVar(&opts.Checks, "checks", false, "also show checks")
	cmd.Flags().IntVar(&opts.Number, "number", -1, "only show checks of this number")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := opts.resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database == "" {
		return NewExitError(ExitCommandError, "--db is required (or set database in --config)")
	}
	// Opening would create an empty journal.
	if _, err := os.Stat(cfg.Database); os.IsNotExist(err) {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", cfg.Database), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", cfg.Database))
	}

	logger := opts.log()
	st, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	defer closeJournal(st, logger)

	ctx := commandContext(cmd)
	runs, err := st.ReadRuns(ctx, opts.Runs)
	if err != nil {
		_ = f.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read runs", err)
	}

	result := HistoryResult{Runs: make([]HistoryRun, 0, len(runs))}
	for _, r := range runs {
		result.Runs = append(result.Runs, toHistoryRun(r))
	}

	if opts.Checks {
		checks, err := st.ReadChecks(ctx, opts.Number)
		if err != nil {
			_ = f.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitFailure, "failed to read checks", err)
		}
		result.Checks = make([]HistoryCheck, 0, len(checks))
		for _, c := range checks {
			result.Checks = append(result.Checks, toHistoryCheck(c))
		}
	}

	if opts.Format == "json" {
		return f.Success(result)
	}
	return printHistory(cmd, opts, result)
}

func toHistoryRun(r store.RunRecord) HistoryRun {
	return HistoryRun{
		ID:           r.ID,
		Outcome:      r.Outcome,
		Limit:        r.Limit,
		DelayMS:      float64(r.Delay) / float64(time.Millisecond),
		CursorBefore: r.CursorBefore,
		CursorAfter:  r.CursorAfter,
		Rounds:       r.Rounds,
		Marks:        r.Marks,
		Emissions:    r.Emissions,
		StartedAt:    r.StartedAt.UTC().Format(time.RFC3339),
	}
}

func toHistoryCheck(c store.CheckRecord) HistoryCheck {
	return HistoryCheck{
		ID:        c.ID,
		RunID:     c.RunID,
		Number:    c.Number,
		Status:    c.Status,
		Horizon:   c.Horizon,
		CheckedAt: c.CheckedAt.UTC().Format(time.RFC3339),
	}
}

func printHistory(cmd *cobra.Command, opts *HistoryOptions, result HistoryResult) error {
	out := cmd.OutOrStdout()

	if len(result.Runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tOUTCOME\tLIMIT\tCURSOR\tROUNDS\tMARKS\tSTARTED")
		for _, r := range result.Runs {
			printf(tw, "%s\t%s\t%d\t%d→%d\t%d\t%d\t%s\n",
				r.ID, r.Outcome, r.Limit, r.CursorBefore, r.CursorAfter, r.Rounds, r.Marks, r.StartedAt)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if !opts.Checks {
		return nil
	}

	fmt.Fprintln(out)
	if len(result.Checks) == 0 {
		fmt.Fprintln(out, "No checks recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tNUMBER\tSTATUS\tHORIZON\tRUN")
	for _, c := range result.Checks {
		runID := c.RunID
		if runID == "" {
			runID = "-"
		}
		printf(tw, "%d\t%d\t%s\t%d\t%s\n", c.ID, c.Number, c.Status, c.Horizon, runID)
	}
	return tw.Flush()
}
