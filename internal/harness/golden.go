package harness

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode"

	"github.com/sebdah/goldie/v2"
	"golang.org/x/text/unicode/norm"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Final        FinalState   `json:"final"`
}

// toCanonicalMap converts a TraceSnapshot to maps so each event carries
// exactly the fields of its type, zero values included.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, e := range s.Trace {
		m := map[string]any{
			"type": e.Type,
			"seq":  e.Seq,
		}
		switch e.Type {
		case EventRun:
			m["run_id"] = e.RunID
			m["outcome"] = e.Outcome
			m["cursor_before"] = e.CursorBefore
			m["cursor_after"] = e.CursorAfter
			m["rounds"] = e.Rounds
			m["marks"] = e.Marks
		case EventProgress:
			m["run_id"] = e.RunID
			m["base"] = e.Base
			m["cursor"] = e.Cursor
			m["fraction"] = e.Fraction
		case EventQuery:
			m["number"] = e.Number
			m["candidate"] = e.Candidate
			m["status"] = e.Status
		}
		traceList[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"final":         s.Final,
	}
}

// MarshalTrace renders a result as the golden file body. encoding/json
// sorts map keys, so equal traces always render to equal bytes.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Final:        result.Final,
	}
	data, err := json.MarshalIndent(snapshot.toCanonicalMap(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// GoldenName turns a scenario name into a golden file name: NFC
// normalized, lowercased, with anything but letters, digits, '-' and '_'
// replaced by '_'.
func GoldenName(scenarioName string) string {
	name := norm.NFC.String(strings.ToLower(strings.TrimSpace(scenarioName)))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{GoldenName(scenario.Name)}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, GoldenName(scenarioName), data)

	return nil
}
