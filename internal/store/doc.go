// Package store provides SQLite-backed persistence for semantic graphs and
// interpretation runs.
//
// The store keeps:
//   - Snapshots: named, append-only copies of a graph, one row per element
//   - Runs: one row per interpreted request with its final state
//   - Steps: the operator trace of each run
//
// # Ordering
//
// Snapshots are ordered by their row id and steps by the interpreter's
// logical clock. Wall-clock time is never stored, so reloading a database
// reproduces the same graph and trace byte for byte.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
