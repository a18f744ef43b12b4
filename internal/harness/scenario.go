package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a deterministic sieve scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Limit is the sieve range bound N.
	Limit int `yaml:"limit"`

	// Steps drive the engine in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and engine state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation on the engine.
type Step struct {
	// Op is one of "run", "reset" or "query".
	Op string `yaml:"op"`

	// DelayMS is the per-mark delay passed to Run. The scripted sleeper
	// never actually sleeps.
	DelayMS int `yaml:"delay_ms,omitempty"`

	// PauseAfterProgress cancels the run right after its n-th emission.
	PauseAfterProgress int `yaml:"pause_after_progress,omitempty"`

	// PauseAfterMarks cancels the run right after its n-th marked multiple.
	PauseAfterMarks int `yaml:"pause_after_marks,omitempty"`

	// Numbers are the numbers to classify (query only).
	Numbers []int `yaml:"numbers,omitempty"`

	// Expect is checked right after the step. Optional.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect specifies what a step should observe.
type StepExpect struct {
	// Outcome is the expected run outcome (run only).
	Outcome string `yaml:"outcome,omitempty"`

	// Cursor is the expected cursor after the run (run only).
	Cursor *int `yaml:"cursor,omitempty"`

	// Candidates maps numbers to their expected Query result (query only).
	Candidates map[int]bool `yaml:"candidates,omitempty"`

	// Statuses maps numbers to their expected Inspect status (query only).
	Statuses map[int]string `yaml:"statuses,omitempty"`
}

// Step op constants.
const (
	OpRun   = "run"
	OpReset = "reset"
	OpQuery = "query"
)

// Assertion validates the trace or the final engine state.
type Assertion struct {
	// Type specifies the assertion type (see the Assert* constants).
	Type string `yaml:"type"`

	// State is the expected lifecycle state (state).
	State string `yaml:"state,omitempty"`

	// Count is the expected count (prime_count, journal_runs).
	Count *int `yaml:"count,omitempty"`

	// Below bounds prime_count. Zero means no extra bound.
	Below int `yaml:"below,omitempty"`

	// Fraction is the expected last progress fraction (final_progress).
	Fraction *float64 `yaml:"fraction,omitempty"`
}

// Assertion type constants.
const (
	AssertState                 = "state"
	AssertPrimeCount            = "prime_count"
	AssertProgressMonotonic     = "progress_monotonic"
	AssertFinalProgress         = "final_progress"
	AssertCandidatesEqualPrimes = "candidates_equal_primes"
	AssertJournalRuns           = "journal_runs"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Limit < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", s.Limit)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}

	return nil
}

func validateStep(step Step) error {
	switch step.Op {
	case OpRun:
		if step.DelayMS < 0 {
			return fmt.Errorf("delay_ms must be non-negative")
		}
		if step.PauseAfterProgress < 0 || step.PauseAfterMarks < 0 {
			return fmt.Errorf("pause counts must be non-negative")
		}
	case OpQuery:
		if len(step.Numbers) == 0 {
			return fmt.Errorf("query requires numbers")
		}
	case OpReset:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertState:
		if a.State == "" {
			return fmt.Errorf("state assertion requires 'state' field")
		}
	case AssertPrimeCount, AssertJournalRuns:
		if a.Count == nil {
			return fmt.Errorf("%s assertion requires 'count' field", a.Type)
		}
	case AssertFinalProgress:
		if a.Fraction == nil {
			return fmt.Errorf("final_progress assertion requires 'fraction' field")
		}
	case AssertProgressMonotonic, AssertCandidatesEqualPrimes:
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
