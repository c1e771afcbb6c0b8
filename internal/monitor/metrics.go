package monitor

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/sensorreplay/internal/replay"
)

// Metrics exposes the replay counters on a dedicated registry.
//
// Counters owned by replay.Stats are read on scrape; only the per-endpoint
// commit counter is updated here, by the observer returned from Observer.
type Metrics struct {
	registry *prometheus.Registry
	commits  *prometheus.CounterVec
}

// NewMetrics registers the replay metrics for engine on a fresh registry.
func NewMetrics(engine *replay.Engine) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	stats := engine.Stats()

	counter := func(name, help string, v func() int64) {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "sensorreplay",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v()) })
	}

	counter("connect_attempts_total", "Datastore connection attempts", stats.ConnectAttempts.Load)
	counter("windows_loaded_total", "Query windows loaded", stats.Windows.Load)
	counter("rows_loaded_total", "Datastore rows loaded", stats.RowsLoaded.Load)
	counter("bootstraps_total", "Channels bootstrapped on first observation", stats.Bootstraps.Load)
	counter("readings_scheduled_total", "Readings scheduled for delayed release", stats.Scheduled.Load)
	counter("readings_released_total", "Readings released by the committer", stats.Released.Load)
	counter("unknown_channel_commits_total", "Commits rejected for channels without a directory entry", stats.UnknownChannels.Load)
	counter("observer_failures_total", "Observer errors and panics", stats.ObserverFailures.Load)
	counter("query_failures_total", "Window queries that failed", stats.QueryFailures.Load)

	pending := engine.Pending()
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "sensorreplay",
		Name:      "readings_pending",
		Help:      "Readings waiting for their release time",
	}, func() float64 { return float64(pending.Len()) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "sensorreplay",
		Name:      "channels_observed",
		Help:      "Channels seen by the loader",
	}, func() float64 { return float64(pending.Channels()) })

	return &Metrics{
		registry: reg,
		commits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorreplay",
			Name:      "commits_total",
			Help:      "Values committed to the register store, by endpoint",
		}, []string{"endpoint"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observer counts every commit under its endpoint id.
func (m *Metrics) Observer() replay.Observer {
	return replay.ObserverFunc(func(c replay.Commit) error {
		m.commits.WithLabelValues(strconv.Itoa(c.EndpointID)).Inc()
		return nil
	})
}
