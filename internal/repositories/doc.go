// Package repositories implements SQLite persistence for play history.
//
// Key Implementations:
//   - [HistoryRepository] : plays recorded whenever the device reports a new current track
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
//
// Credentials are never stored here.
package repositories
