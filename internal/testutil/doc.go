// Package testutil holds deterministic helpers shared by tests and the
// scenario harness: a resettable logical clock, sequential run ids, a sleeper
// that pauses runs after an exact number of marks, and trial-division primes
// used as ground truth.
package testutil
