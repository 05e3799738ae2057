// Package store persists the engine exchange journal in SQLite.
//
// The journal is append-only:
//   - Sessions: one row per engine process, keyed by the session ID
//   - Exchanges: one row per request, keyed by (session, seq)
//
// # Ordering
//
// Exchanges are ordered by a per-session logical clock, never by wall time.
// Reads always ORDER BY seq ASC so a listing matches the order in which
// requests hit the engine. Timestamps and durations are informational.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads while a session is recording
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: exchanges must belong to a known session
package store
