package replay

import "sync/atomic"

// Stats counts replay activity. All fields are updated atomically and may be
// read at any time, e.g. by a metrics exporter.
type Stats struct {
	ConnectAttempts  atomic.Int64
	Windows          atomic.Int64
	RowsLoaded       atomic.Int64
	Bootstraps       atomic.Int64
	Scheduled        atomic.Int64
	Released         atomic.Int64
	UnknownChannels  atomic.Int64
	ObserverFailures atomic.Int64
	QueryFailures    atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	ConnectAttempts  int64 `json:"connect_attempts"`
	Windows          int64 `json:"windows"`
	RowsLoaded       int64 `json:"rows_loaded"`
	Bootstraps       int64 `json:"bootstraps"`
	Scheduled        int64 `json:"scheduled"`
	Released         int64 `json:"released"`
	UnknownChannels  int64 `json:"unknown_channels"`
	ObserverFailures int64 `json:"observer_failures"`
	QueryFailures    int64 `json:"query_failures"`
}

// Snapshot copies the current counter values.
// Counters are read one by one, so the snapshot is not atomic as a whole.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		ConnectAttempts:  s.ConnectAttempts.Load(),
		Windows:          s.Windows.Load(),
		RowsLoaded:       s.RowsLoaded.Load(),
		Bootstraps:       s.Bootstraps.Load(),
		Scheduled:        s.Scheduled.Load(),
		Released:         s.Released.Load(),
		UnknownChannels:  s.UnknownChannels.Load(),
		ObserverFailures: s.ObserverFailures.Load(),
		QueryFailures:    s.QueryFailures.Load(),
	}
}
