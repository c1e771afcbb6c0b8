// Package replay implements the delayed replay engine.
//
// Historical readings are paged out of a datastore and released onto a
// register store at a configurable time rate:
//
//	datastore -> Loader -> PendingSet -> Committer -> RegisterStore -> observers
//
// ARCHITECTURE:
//
// Two workers share the PendingSet and nothing else:
//   - Loader (finite): connects with unbounded retry, then queries successive
//     [from, to) windows and schedules every row with a virtual delay of
//     (timestamp - min_timestamp) seconds scaled by the time rate.
//   - Committer (runs until shutdown): repeatedly scans every channel queue
//     and commits at most one due reading per channel per scan. It sleeps
//     for idle_wait after a scan that released nothing.
//
// The PendingSet is a concurrent map of independently locked per-channel
// min-heaps; there is no lock spanning channels. The RegisterStore keeps one
// atomic value per directory channel, so commits to different channels never
// block each other.
//
// ORDERING:
//
// Readings of one channel are released in non-decreasing release time, ties
// in arrival order. Order across channels is unspecified. A reading is never
// released before its release time; how late it is depends on idle_wait and
// scheduling.
//
// BOOTSTRAP:
//
// The first reading ever seen for a channel is committed immediately and
// its delay is discarded; only later readings are scheduled. This makes
// every channel observable as early as possible. It is kept deliberately and
// is pending product confirmation.
//
// SHUTDOWN:
//
// Both workers observe a context.Context at every iteration boundary
// (including connection retries). Cancelling it stops delivery; readings
// already committed are never rolled back.
package replay
