// Package store provides the SQLite-backed run journal.
//
// The journal is an append-only history of what drivers did with a sieve:
//   - Runs: one row per Run call (cursor before/after, rounds, marks, outcome)
//   - Checks: one row per verdict a driver computed for a watched number
//
// The journal never holds candidate flags or the cursor. Sieve state lives
// only in memory and is rebuilt from scratch by every process.
//
// # Ordering
//
// Run ids are UUIDv7, so ORDER BY id sorts runs by start time. Checks use an
// AUTOINCREMENT id. Queries always include an explicit ORDER BY.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
