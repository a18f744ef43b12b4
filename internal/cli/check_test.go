package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCommand(t *testing.T) {
	out, _, err := executeRoot(t, "check", "--limit", "100", "97", "91", "2", "1", "0")
	require.NoError(t, err)
	assert.Equal(t, "97: prime\n91: not prime\n2: prime\n1: not prime\n0: not prime\n", out)
}

func TestCheckOutOfRange(t *testing.T) {
	out, _, err := executeRoot(t, "check", "--limit", "100", "--", "7", "100", "-3")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 number(s) outside [0, 100)")
	assert.Equal(t, "7: prime\n100: out of range\n-3: out of range\n", out)
}

func TestCheckInvalidArgument(t *testing.T) {
	out, _, err := executeRoot(t, "check", "--limit", "100", "seven")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E001")
}

func TestCheckMissingArgs(t *testing.T) {
	_, _, err := executeRoot(t, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestCheckJSON(t *testing.T) {
	out, _, err := executeRoot(t, "--format", "json", "check", "--limit", "50", "47", "49")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, CheckResult{
		Limit: 50,
		Verdicts: []CheckVerdict{
			{Number: 47, Status: "prime", Prime: true},
			{Number: 49, Status: "not_prime", Prime: false},
		},
	}, resp.Data)
}

func TestCheckJournalsVerdicts(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sieve.db")

	_, _, err := executeRoot(t, "check", "--limit", "100", "--db", db, "97", "100")
	require.Error(t, err, "100 is out of range")

	out, _, err := executeRoot(t, "--format", "json", "history", "--db", db, "--checks")
	require.NoError(t, err)

	var resp struct {
		Data HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Runs, 1)
	require.Len(t, resp.Data.Checks, 2)

	runID := resp.Data.Runs[0].ID
	assert.Equal(t, "complete", resp.Data.Runs[0].Outcome)
	assert.Equal(t, runID, resp.Data.Checks[0].RunID)
	assert.Equal(t, 97, resp.Data.Checks[0].Number)
	assert.Equal(t, "prime", resp.Data.Checks[0].Status)
	assert.Equal(t, "out_of_range", resp.Data.Checks[1].Status)
}

func TestParseNumbers(t *testing.T) {
	got, err := parseNumbers([]string{"1", "-2", "30"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, -2, 30}, got)

	_, err = parseNumbers([]string{"1", "2.5"})
	assert.ErrorContains(t, err, `not an integer: "2.5"`)
}

func TestDescribeStatus(t *testing.T) {
	assert.Equal(t, "prime", describeStatus("prime"))
	assert.Equal(t, "not prime", describeStatus("not_prime"))
	assert.Equal(t, "out of range", describeStatus("out_of_range"))
	assert.Equal(t, "unresolved", describeStatus("unresolved"))
}

func TestCheckJSONOutOfRange(t *testing.T) {
	out, _, err := executeRoot(t, "--format", "json", "check", "--limit", "10", "3", "10")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.NotEmpty(t, resp.RunID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeOutOfRange, resp.Error.Code)
	assert.Equal(t, "1 number(s) outside [0, 10)", resp.Error.Message)
	assert.Equal(t, []any{"OUT_OF_RANGE: 10 outside [0, 10)"}, resp.Error.Details)
}
