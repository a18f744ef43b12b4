package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/config"
	"github.com/roach88/sieve/internal/driver"
	"github.com/roach88/sieve/internal/engine"
)

// SessionOptions holds flags for the session command.
type SessionOptions struct {
	*RootOptions
	Limit    int
	DelayMS  int
	Database string
}

const sessionHelp = `Commands:
  start          discard progress and run from scratch
  pause          stop the run, keeping progress
  resume         continue from the cursor
  reset          stop and discard all progress
  delay <ms>     change the per-mark delay (restarts an active run)
  watch <n>      report n's verdict whenever a run ends
  check [n]      classify n (default: the watched number)
  status         show state, progress and delay
  wait           block until the active run ends
  help           show this help
  quit           stop and exit`

// NewSessionCommand creates the session command.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Drive the sieve interactively",
		Long: `Read control commands from stdin, one per line, while the sieve runs in
the background. Progress and finished runs are reported as they happen.

` + sessionHelp + `

Examples:
  sieve session --limit 1000000 --delay-ms 1
  printf 'start\nwait\ncheck 97\n' | sieve session --limit 100`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", engine.DefaultLimit, "sieve range bound N")
	cmd.Flags().IntVar(&opts.DelayMS, "delay-ms", 0, "initial delay after each marked multiple, in milliseconds")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")

	return cmd
}

// session is one interactive sieve session.
type session struct {
	cfg config.Config
	d   *driver.Driver
	out io.Writer
}

func runSession(opts *SessionOptions, cmd *cobra.Command) error {
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

	s := &session{cfg: cfg, out: &syncWriter{w: cmd.OutOrStdout()}}
	s.d = driver.New(eng, driver.Options{
		Delay:         cfg.Delay(),
		ProgressHz:    cfg.ProgressHz,
		OnProgress:    s.onProgress,
		OnRunFinished: s.onRunFinished,
		Journal:       driverJournal(st),
		Logger:        logger,
	})

	printf(s.out, "Sieve session over [0, %d). Type 'help' for commands.\n", cfg.Limit)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !s.exec(cmd, line) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("reading input failed", "error", err)
	}

	if err := s.d.Close(); err != nil {
		return WrapExitError(ExitFailure, "journal write failed", err)
	}
	return nil
}

// exec runs one command line. It returns false when the session should end.
func (s *session) exec(cmd *cobra.Command, line string) bool {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]
	ctx := commandContext(cmd)

	var err error
	switch name {
	case "start":
		err = s.d.Start()
	case "pause":
		if err = s.d.Pause(); err == nil {
			s.printStatus()
		}
	case "resume":
		err = s.d.Resume()
	case "reset":
		if err = s.d.Reset(); err == nil {
			fmt.Fprintln(s.out, "reset")
		}
	case "delay":
		err = s.setDelay(args)
	case "watch":
		var n int
		if n, err = oneNumber(args); err == nil {
			s.d.Watch(ctx, n)
			if v, ok := s.d.Verdict(); ok {
				s.printVerdict(v)
			} else {
				printf(s.out, "watching %d\n", n)
			}
		}
	case "check":
		err = s.check(cmd, args)
	case "status":
		s.printStatus()
	case "wait":
		if _, err = s.d.Wait(ctx); err == nil {
			s.printStatus()
		}
	case "help":
		fmt.Fprintln(s.out, sessionHelp)
	case "quit", "exit":
		return false
	default:
		err = fmt.Errorf("unknown command %q (try 'help')", name)
	}

	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return true
}

func (s *session) setDelay(args []string) error {
	ms, err := oneNumber(args)
	if err != nil {
		return err
	}
	if ms < 0 || ms > s.cfg.MaxDelayMS {
		return fmt.Errorf("[%s] delay must be between 0 and %d ms", ErrCodeInvalidDelay, s.cfg.MaxDelayMS)
	}
	if err := s.d.SetDelay(time.Duration(ms) * time.Millisecond); err != nil {
		return err
	}
	printf(s.out, "delay %dms\n", ms)
	return nil
}

func (s *session) check(cmd *cobra.Command, args []string) error {
	var n int
	switch len(args) {
	case 0:
		v, ok := s.d.Verdict()
		if !ok {
			return fmt.Errorf("check needs a number when nothing is watched")
		}
		n = v.Number
	default:
		var err error
		if n, err = oneNumber(args); err != nil {
			return err
		}
	}

	v, err := s.d.Check(commandContext(cmd), n)
	s.printVerdict(v)
	return err
}

func (s *session) onProgress(p engine.Progress) {
	printf(s.out, "progress %s (cursor %d)\n", formatPercent(p.Fraction), p.Cursor)
}

func (s *session) onRunFinished(res engine.RunResult) {
	printf(s.out, "run %s %s at cursor %d\n", res.RunID, res.Outcome, res.CursorAfter)
	if v, ok := s.d.Verdict(); ok {
		s.printVerdict(v)
	}
}

func (s *session) printStatus() {
	st := s.d.Status()
	printf(s.out, "state %s, %s, delay %dms\n", st.State, formatPercent(st.Fraction), st.Delay.Milliseconds())
}

func (s *session) printVerdict(v engine.Verdict) {
	if v.Status == engine.StatusUnresolved {
		printf(s.out, "%d: unresolved (proven range is below %d)\n", v.Number, v.Horizon)
		return
	}
	printf(s.out, "%d: %s\n", v.Number, describeStatus(v.Status.String()))
}

// oneNumber parses the single integer argument of a session command.
func oneNumber(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one number, got %d argument(s)", len(args))
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", args[0])
	}
	return n, nil
}
