// Package store provides the SQLite-backed reduction journal.
//
// The journal is append-only and records, per session:
//   - Sessions: one row per reduction session (UUIDv7 id)
//   - Events: loads, matches, rejections, failures and stitch/merge steps
//   - Curves: the composite curves a session produced, one row per state
//
// # Ordering
//
// All ordering uses the seq column (the session's logical clock), never
// created_at. Event queries use ORDER BY seq ASC, id COLLATE BINARY ASC so
// that repeated reads return identical results.
//
// # Identity
//
// Event IDs are content-addressed via ir.EventID (canonical JSON, SHA-256
// with domain separation). Writing the same event twice is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
