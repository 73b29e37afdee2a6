// Package playlist keeps a target track at the front of the managed playlist.
//
// # Reconciliation
//
// [Reconciler.Reconcile] takes a canonical track URI and a fresh [models.Snapshot]:
//
//  1. found at position 0: nothing to do, no message
//  2. found further down: one reorder call moving it to position 0
//  3. not found: one insert call at position 0
//
// Repeating the call converges on "target at position 0". The read-then-write is not atomic against
// other editors of the playlist; a concurrent edit between the snapshot and the write can still land the
// track somewhere else.
//
// # Snapshots
//
// [Reconciler.Snapshot] pages through the playlist 100 items at a time until an empty page. A failed
// page ends the fetch early: the snapshot keeps what was read, is marked Truncated, and the failure is
// counted in metrics. A truncated snapshot can miss the target and cause a duplicate insert.
//
// # Progress Reporting
//
// Page fetches emit [Progress] on an optional channel using non-blocking sends.
package playlist
