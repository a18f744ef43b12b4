package engine

// State is the lifecycle state of the sieve.
type State int32

const (
	// StateIdle means no run has started since construction or the last Reset.
	StateIdle State = iota
	// StateRunning means a Run call is executing rounds.
	StateRunning
	// StatePaused means a run observed cancellation and returned; state is kept.
	StatePaused
	// StateComplete means every base has been processed. Terminal until Reset.
	StateComplete
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Outcome describes how a Run call ended.
type Outcome int

const (
	// OutcomeComplete means the run finished the sieve.
	OutcomeComplete Outcome = iota + 1
	// OutcomePaused means the run observed cancellation and stopped early.
	OutcomePaused
	// OutcomeAlreadyComplete means the sieve was complete before the call; nothing changed.
	OutcomeAlreadyComplete
)

// String returns a short description of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomePaused:
		return "paused"
	case OutcomeAlreadyComplete:
		return "already_complete"
	default:
		return "unknown"
	}
}

// Status classifies a number against the current sieve.
type Status int

const (
	// StatusOutOfRange means the number is negative or not below the limit.
	StatusOutOfRange Status = iota
	// StatusNotPrime means the number's flag has been cleared.
	StatusNotPrime
	// StatusPrime means the number is a candidate below the marking horizon.
	StatusPrime
	// StatusUnresolved means the number is a candidate at or above the horizon:
	// not yet disproven, not yet proven.
	StatusUnresolved
)

// String returns the snake_case status name.
func (s Status) String() string {
	switch s {
	case StatusOutOfRange:
		return "out_of_range"
	case StatusNotPrime:
		return "not_prime"
	case StatusPrime:
		return "prime"
	case StatusUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}
