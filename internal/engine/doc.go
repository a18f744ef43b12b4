// Package engine implements the incremental Sieve of Eratosthenes.
//
// The engine owns one candidate.Set over [0, limit) and a cursor. It can be
// run, paused (by cancelling the run's context), resumed (by running again)
// and reset, and it answers point queries against whatever part of the sieve
// has been computed so far.
//
// ARCHITECTURE:
//
// Exclusive State:
// Every operation goes through a single mutex. Run holds it for the whole
// call, delay sleeps included. A Query made during a slow run therefore waits
// until the run pauses or completes. This backpressure is part of the
// contract, not an accident.
//
// Round Loop:
//  1. Scan from the cursor for the next candidate base
//  2. Move the cursor to base+1
//  3. Clear 2*base, 3*base, ... below the limit; after each one, sleep the
//     configured delay and check for cancellation
//  4. Emit cursor/limit to the progress func
//
// Cancellation is cooperative and checked after every cleared multiple and at
// the top of every round. Nothing a run has written is ever rolled back. A
// round cut short stays open and the next Run finishes it before step 1.
//
// INVARIANTS:
//   - Flags only move from candidate to not-candidate between resets
//   - The cursor never decreases between resets
//   - Progress emissions are strictly ordered by cursor and clock seq
//   - Indices 0 and 1 are cleared at the start of each Run, not by Reset
//
// The engine never performs I/O. Journaling, rendering and user input belong
// to the driver.
package engine
