package replay

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/sensorreplay/internal/config"
	"github.com/roach88/sensorreplay/internal/store"
)

// Source is the datastore the loader pages through.
// *store.Store implements it.
type Source interface {
	// Connect establishes the connection. The loader retries it until it succeeds.
	Connect(ctx context.Context) error
	// ReadWindow returns records with from <= timestamp < to, ascending by timestamp.
	ReadWindow(ctx context.Context, from, to int64) ([]store.Record, error)
	// Close releases the connection.
	Close() error
}

// Window is a half-open query range [From, To) in datastore time units.
type Window struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Windows returns the successive query windows covering [minTS, maxTS):
// each loadRate wide, the last one clipped at maxTS. No gaps, no overlaps.
func Windows(minTS, maxTS, loadRate int64) []Window {
	if loadRate <= 0 || maxTS <= minTS {
		return nil
	}
	var out []Window
	for cur := minTS; cur < maxTS; cur += loadRate {
		to := cur + loadRate
		if to > maxTS {
			to = maxTS
		}
		out = append(out, Window{From: cur, To: to})
	}
	return out
}

// VirtualDelay converts a datastore timestamp into a release delay:
// (timestamp - minTS) seconds, scaled by timeRate.
func VirtualDelay(timestamp, minTS int64, timeRate float64) time.Duration {
	return time.Duration(float64((timestamp-minTS)*int64(time.Second)) * timeRate)
}

// Loader is the producer: it feeds datastore rows into the pending set.
// It is a finite task.
type Loader struct {
	source        Source
	pending       *PendingSet
	minTimestamp  int64
	maxTimestamp  int64
	loadRate      int64
	timeRate      float64
	retryInterval time.Duration
	stats         *Stats
}

// NewLoader creates a loader for the configured replay range.
func NewLoader(cfg config.Config, source Source, pending *PendingSet) *Loader {
	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = 100 * time.Millisecond
	}
	return &Loader{
		source:        source,
		pending:       pending,
		minTimestamp:  cfg.MinTimestamp,
		maxTimestamp:  cfg.MaxTimestamp,
		loadRate:      cfg.LoadRate,
		timeRate:      cfg.TimeRate(),
		retryInterval: retry,
		stats:         pending.stats,
	}
}

// Run connects (retrying without limit), then loads every window in order.
//
// Returns nil once max_timestamp is reached, a *QueryError if a window
// query fails (no retry; later windows are not loaded), or ctx.Err() on
// shutdown. The connection is closed in every case once established.
func (l *Loader) Run(ctx context.Context) error {
	if err := l.connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := l.source.Close(); err != nil {
			slog.Error("error closing datastore", "error", err)
		}
	}()

	slog.Info("loading readings",
		"min_timestamp", l.minTimestamp,
		"max_timestamp", l.maxTimestamp,
		"load_rate", l.loadRate,
		"time_rate", l.timeRate,
	)

	for _, w := range Windows(l.minTimestamp, l.maxTimestamp, l.loadRate) {
		select {
		case <-ctx.Done():
			slog.Info("loader stopping: context cancelled", "window_from", w.From)
			return ctx.Err()
		default:
		}

		if err := l.loadWindow(ctx, w); err != nil {
			return err
		}
	}

	slog.Info("loader finished", "rows", l.stats.RowsLoaded.Load(), "windows", l.stats.Windows.Load())
	return nil
}

// connect retries Connect with a fixed backoff until it succeeds or ctx is done.
func (l *Loader) connect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		l.stats.ConnectAttempts.Add(1)
		start := time.Now()

		err := l.source.Connect(ctx)
		if err == nil {
			slog.Info("datastore connection established",
				"attempt", attempt,
				"elapsed", time.Since(start),
			)
			return nil
		}

		slog.Warn("connection establishment failed, retrying",
			"attempt", attempt,
			"retry_in", l.retryInterval,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

func (l *Loader) loadWindow(ctx context.Context, w Window) error {
	start := time.Now()

	records, err := l.source.ReadWindow(ctx, w.From, w.To)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.stats.QueryFailures.Add(1)
		qe := &QueryError{From: w.From, To: w.To, Err: err}
		slog.Error("window query failed, loader stopping",
			"window_from", w.From,
			"window_to", w.To,
			"error", err,
		)
		return qe
	}

	for _, rec := range records {
		delay := VirtualDelay(rec.Timestamp, l.minTimestamp, l.timeRate)
		if err := l.pending.ScheduleOrBootstrap(rec.Channel, delay, rec.Value); err != nil {
			slog.Warn("reading skipped",
				"channel", rec.Channel,
				"timestamp", rec.Timestamp,
				"error", err,
			)
		}
	}

	l.stats.Windows.Add(1)
	l.stats.RowsLoaded.Add(int64(len(records)))
	slog.Debug("window loaded",
		"window_from", w.From,
		"window_to", w.To,
		"rows", len(records),
		"elapsed", time.Since(start),
	)
	return nil
}
