package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/engine"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Limit    int
	Database string
}

// CheckVerdict is one line of check output.
type CheckVerdict struct {
	Number int    `json:"number"`
	Status string `json:"status"`
	Prime  bool   `json:"prime"`
}

// CheckResult holds the overall check result.
type CheckResult struct {
	Limit      int            `json:"limit"`
	Verdicts   []CheckVerdict `json:"verdicts"`
	OutOfRange int            `json:"out_of_range"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <n>...",
		Short: "Complete the sieve and classify numbers",
		Long: `Complete the sieve over [0, limit) and print a verdict for each number.

Exit codes:
  0 - Every number was in range
  1 - One or more numbers were outside [0, limit)
  2 - Command error (invalid number, bad config, etc.)

Examples:
  sieve check 97 100 7919
  sieve check --limit 1000 997 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", engine.DefaultLimit, "sieve range bound N")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")

	return cmd
}

func runCheck(opts *CheckOptions, args []string, cmd *cobra.Command) error {
	numbers, err := parseNumbers(args)
	if err != nil {
		f := opts.formatter(cmd)
		_ = f.Error(ErrCodeInvalidArg, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid argument", err)
	}

	cfg, err := opts.resolveConfig(cmd)
	if err != nil {
		return err
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

	ctx := commandContext(cmd)
	d, res, err := completeSieve(ctx, eng, st, logger)
	if err != nil {
		return err
	}

	result := CheckResult{Limit: cfg.Limit, Verdicts: make([]CheckVerdict, 0, len(numbers))}
	var rangeErrs []string
	for _, n := range numbers {
		v, err := d.Check(ctx, n)
		if err != nil {
			logger.Warn("check not journaled", "number", n, "error", err)
		}
		if err := v.Err(cfg.Limit); err != nil {
			result.OutOfRange++
			rangeErrs = append(rangeErrs, err.Error())
		}
		result.Verdicts = append(result.Verdicts, CheckVerdict{
			Number: n,
			Status: v.Status.String(),
			Prime:  v.Status == engine.StatusPrime,
		})
	}

	if err := d.Close(); err != nil {
		return WrapExitError(ExitFailure, "journal write failed", err)
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result, RunID: res.RunID}
		if result.OutOfRange > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeOutOfRange,
				Message: fmt.Sprintf("%d number(s) outside [0, %d)", result.OutOfRange, cfg.Limit),
				Details: rangeErrs,
			}
		}
		if err := opts.formatter(cmd).Respond(resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, v := range result.Verdicts {
			printf(w, "%s: %s\n", formatInt(v.Number), describeStatus(v.Status))
		}
	}

	if result.OutOfRange > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d number(s) outside [0, %d)", result.OutOfRange, cfg.Limit))
	}
	return nil
}

// parseNumbers converts command arguments to integers.
func parseNumbers(args []string) ([]int, error) {
	numbers := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", arg)
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// describeStatus renders a status for text output.
func describeStatus(status string) string {
	switch status {
	case engine.StatusPrime.String():
		return "prime"
	case engine.StatusNotPrime.String():
		return "not prime"
	case engine.StatusOutOfRange.String():
		return "out of range"
	default:
		return "unresolved"
	}
}
