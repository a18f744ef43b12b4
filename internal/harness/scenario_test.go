package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
limit: 50
steps:
  - op: run
    pause_after_progress: 1
    expect:
      outcome: paused
      cursor: 3
  - op: query
    numbers: [4, 5]
    expect:
      candidates: { 4: false, 5: true }
assertions:
  - type: state
    state: paused
  - type: prime_count
    count: 2
    below: 5
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, 50, scenario.Limit)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, OpRun, scenario.Steps[0].Op)
	assert.Equal(t, 1, scenario.Steps[0].PauseAfterProgress)
	require.NotNil(t, scenario.Steps[0].Expect.Cursor)
	assert.Equal(t, 3, *scenario.Steps[0].Expect.Cursor)
	assert.Equal(t, []int{4, 5}, scenario.Steps[1].Numbers)
	assert.Equal(t, map[int]bool{4: false, 5: true}, scenario.Steps[1].Expect.Candidates)
	require.Len(t, scenario.Assertions, 2)
	assert.Equal(t, 5, scenario.Assertions[1].Below)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "typo in assertions key"
limit: 10
steps:
  - op: run
assertion:
  - type: progress_monotonic
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nlimit: 10\nsteps: [{op: run}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nlimit: 10\nsteps: [{op: run}]\n",
			wantErr: "description is required",
		},
		{
			name:    "negative limit",
			yaml:    "name: n\ndescription: d\nlimit: -1\nsteps: [{op: run}]\n",
			wantErr: "limit must be non-negative",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\nlimit: 10\n",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: n\ndescription: d\nlimit: 10\nsteps: [{op: jump}]\n",
			wantErr: `unknown op "jump"`,
		},
		{
			name:    "query without numbers",
			yaml:    "name: n\ndescription: d\nlimit: 10\nsteps: [{op: query}]\n",
			wantErr: "query requires numbers",
		},
		{
			name:    "negative delay",
			yaml:    "name: n\ndescription: d\nlimit: 10\nsteps: [{op: run, delay_ms: -1}]\n",
			wantErr: "delay_ms must be non-negative",
		},
		{
			name:    "prime_count without count",
			yaml:    "name: n\ndescription: d\nlimit: 10\nsteps: [{op: run}]\nassertions: [{type: prime_count}]\n",
			wantErr: "requires 'count' field",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nlimit: 10\nsteps: [{op: run}]\nassertions: [{type: vibes}]\n",
			wantErr: `unknown assertion type "vibes"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			_, err := LoadScenario(f)
			require.NoError(t, err)
		})
	}
}
