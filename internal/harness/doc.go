// Package harness runs deterministic sieve scenarios.
//
// A scenario is a YAML file that builds an engine over a given limit and
// drives it through a list of steps. Runs can be paused after an exact
// number of progress emissions or after an exact number of marked
// multiples, so every run of a scenario produces the same trace.
//
// # Scenario Format
//
//	name: pause_and_resume
//	description: "Pausing keeps progress; resuming finishes the sieve"
//	limit: 100
//	steps:
//	  - op: run
//	    pause_after_progress: 2
//	    expect: { outcome: paused, cursor: 4 }
//	  - op: query
//	    numbers: [4, 9, 25]
//	    expect:
//	      candidates: { 4: false, 9: false, 25: true }
//	  - op: run
//	    expect: { outcome: complete }
//	  - op: reset
//	assertions:
//	  - type: state
//	    state: idle
//	  - type: progress_monotonic
//
// # Assertion Types
//
//   - state: the engine's final lifecycle state
//   - prime_count: number of proven primes below an optional bound
//   - progress_monotonic: progress strictly increases between resets and
//     every trace seq is unique and increasing
//   - final_progress: the fraction of the last progress emission
//   - candidates_equal_primes: below the marking horizon, the candidate
//     flags match trial division exactly
//   - journal_runs: number of runs written to the scenario's journal
//
// # Deterministic Testing
//
// The harness uses:
//   - Sequential run ids (testutil.SequentialRunIDs)
//   - One logical clock shared by the engine and the harness
//     (testutil.DeterministicClock), so progress and step events share a
//     single total order
//   - A scripted sleeper that never sleeps (testutil.ScriptedSleeper)
//   - An in-memory SQLite journal, isolated per scenario
//
// Traces are compared with golden files under testdata/golden.
package harness
