package harness

// Trace event types.
const (
	EventRun      = "run"
	EventProgress = "progress"
	EventQuery    = "query"
	EventReset    = "reset"
)

// TraceEvent is one entry of a scenario trace. Only the fields relevant to
// Type are set.
type TraceEvent struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`

	// run and progress
	RunID string `json:"run_id,omitempty"`

	// run
	Outcome      string `json:"outcome,omitempty"`
	CursorBefore int    `json:"cursor_before,omitempty"`
	CursorAfter  int    `json:"cursor_after,omitempty"`
	Rounds       int    `json:"rounds,omitempty"`
	Marks        int64  `json:"marks,omitempty"`

	// progress
	Base     int     `json:"base,omitempty"`
	Cursor   int     `json:"cursor,omitempty"`
	Fraction float64 `json:"fraction,omitempty"`

	// query
	Number    int    `json:"number,omitempty"`
	Candidate bool   `json:"candidate,omitempty"`
	Status    string `json:"status,omitempty"`
}

// FinalState is the engine state after the last step.
type FinalState struct {
	State      string  `json:"state"`
	Cursor     int     `json:"cursor"`
	Fraction   float64 `json:"fraction"`
	Horizon    int     `json:"horizon"`
	Candidates int     `json:"candidates"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step expectation and
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains all events in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the engine state after the last step.
	Final FinalState `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Progress returns the progress events of the trace, in order.
func (r *Result) Progress() []TraceEvent {
	out := make([]TraceEvent, 0)
	for _, e := range r.Trace {
		if e.Type == EventProgress {
			out = append(out, e)
		}
	}
	return out
}
