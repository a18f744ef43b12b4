package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/engine"
)

// PrimesOptions holds flags for the primes command.
type PrimesOptions struct {
	*RootOptions
	Limit int
	Max   int
}

// PrimesResult is the JSON payload of the primes command.
type PrimesResult struct {
	Below  int   `json:"below"`
	Count  int   `json:"count"`
	Primes []int `json:"primes"`
}

// NewPrimesCommand creates the primes command.
func NewPrimesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PrimesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "primes",
		Short: "List primes",
		Long: `Complete the sieve over [0, limit) and list the primes below --max
(default: the limit), one per line.

Examples:
  sieve primes --limit 100
  sieve primes --limit 1000000 --max 50 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrimes(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", engine.DefaultLimit, "sieve range bound N")
	cmd.Flags().IntVar(&opts.Max, "max", 0, "only list primes below this bound (0 = limit)")

	return cmd
}

func runPrimes(opts *PrimesOptions, cmd *cobra.Command) error {
	if opts.Max < 0 {
		return NewExitError(ExitCommandError, "--max must be non-negative")
	}

	cfg, err := opts.resolveConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Database = "" // listing is not journaled
	logger := opts.log()

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	d, _, err := completeSieve(commandContext(cmd), eng, nil, logger)
	if err != nil {
		return err
	}
	if err := d.Close(); err != nil {
		return WrapExitError(ExitFailure, "driver close failed", err)
	}

	below := cfg.Limit
	if opts.Max > 0 && opts.Max < below {
		below = opts.Max
	}
	primes := eng.Primes(below)

	if opts.Format == "json" {
		f := opts.formatter(cmd)
		return f.Success(PrimesResult{Below: below, Count: len(primes), Primes: primes})
	}

	var b strings.Builder
	for _, p := range primes {
		b.WriteString(strconv.Itoa(p))
		b.WriteByte('\n')
	}
	_, err = cmd.OutOrStdout().Write([]byte(b.String()))
	return err
}
