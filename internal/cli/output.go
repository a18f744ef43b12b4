package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes.
const (
	ExitSuccess      = 0 // everything in range, every scenario passed
	ExitFailure      = 1 // a number was out of range, a scenario failed or the journal broke
	ExitCommandError = 2 // the command itself was wrong: flags, config, missing paths
)

// Codes reported in the "error" object of JSON output.
const (
	ErrCodeInvalidArg     = "E001" // argument is not an integer
	ErrCodeOutOfRange     = "E002" // number outside [0, limit)
	ErrCodeNotFound       = "E003" // journal or scenario path missing
	ErrCodeJournal        = "E004" // journal read failed
	ErrCodeInvalidDelay   = "E005" // delay outside [0, max_delay_ms]
	ErrCodeScenarioFailed = "E006" // at least one scenario failed
)

// ExitError carries the exit code a command wants Execute to use.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional cause
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError that wraps err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Errors that are not
// ExitErrors (cobra usage errors, for one) exit with ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		return ExitFailure
	}
	return exitErr.Code
}

// CLIResponse is the envelope of every JSON document a command prints.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" | "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
	RunID  string    `json:"run_id,omitempty"` // run the data was computed by
}

// CLIError describes a failure inside a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as CLIResponse JSON.
type OutputFormatter struct {
	Format  string // "text" | "json"
	Writer  io.Writer
	Verbose bool // print error details in text mode
}

// Success prints data. Text mode prints it with %v.
func (f *OutputFormatter) Success(data any) error {
	if f.Format != "json" {
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
	return f.Respond(CLIResponse{Status: "ok", Data: data})
}

// Error prints a coded failure. Details are shown in text mode only with
// --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.Respond(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "[%s] %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "  details: %v\n", details)
	}
	return nil
}

// Respond encodes resp as one JSON line.
func (f *OutputFormatter) Respond(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}
