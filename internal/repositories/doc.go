// Package repositories implements SQLite persistence for the bot's queue and dedup markers.
//
// Key Implementations:
//   - [JobRepository] : the confirmation job queue, with atomic promote and compare-and-delete resolution
//   - [MarkerRepository] : TTL markers backing the dedup gate
//
// Sequence numbers provide FIFO ordering for queued jobs independent of UUIDs and creation timestamps.
// The [NextSequence] function increments per-table sequence counters in dedicated sequence tables and
// runs inside the caller's transaction, so a job and its sequence number are written together.
package repositories
