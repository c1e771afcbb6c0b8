package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/sensorreplay/internal/config"
	"github.com/roach88/sensorreplay/internal/directory"
)

// Engine wires the replay pipeline together:
//
//	Source -> Loader -> PendingSet -> Committer -> RegisterStore -> observers
//
// Thread-safety model:
//   - AddObserver(): before Open
//   - Open(): exactly once, before Run
//   - Run(): exactly once; blocks until ctx is cancelled
//   - accessors: any goroutine, any time
type Engine struct {
	cfg       config.Config
	source    Source
	clock     Clock
	stats     *Stats
	registers *RegisterStore
	pending   *PendingSet
	loader    *Loader
	committer *Committer
	runID     string

	loaderDone chan struct{}
	loaderMu   sync.Mutex
	loaderErr  error
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*engineOptions)

type engineOptions struct {
	clock Clock
	runID RunIDGenerator
}

// WithClock replaces the system clock, e.g. with a manual clock in tests.
func WithClock(c Clock) EngineOption {
	return func(o *engineOptions) {
		o.clock = c
	}
}

// WithRunID replaces the UUIDv7 run id generator.
func WithRunID(g RunIDGenerator) EngineOption {
	return func(o *engineOptions) {
		o.runID = g
	}
}

// New creates an engine replaying cfg's range from source into registers
// built from dir. cfg is expected to be validated.
func New(cfg config.Config, dir *directory.Directory, source Source, opts ...EngineOption) *Engine {
	o := engineOptions{
		clock: SystemClock{},
		runID: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	stats := &Stats{}
	registers := NewRegisterStore(dir, stats)
	pending := NewPendingSet(registers, o.clock, stats)

	return &Engine{
		cfg:        cfg,
		source:     source,
		clock:      o.clock,
		stats:      stats,
		registers:  registers,
		pending:    pending,
		loader:     NewLoader(cfg, source, pending),
		committer:  NewCommitter(cfg, pending, registers),
		runID:      o.runID.Generate(),
		loaderDone: make(chan struct{}),
	}
}

// AddObserver registers an observer on the register store.
func (e *Engine) AddObserver(o Observer) {
	e.registers.AddObserver(o)
}

// Open initializes every register to 0 and notifies the observers.
func (e *Engine) Open() error {
	if err := e.registers.Initialize(); err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	slog.Info("registers initialized",
		"run_id", e.runID,
		"channels", e.registers.Directory().Len(),
	)
	return nil
}

// Run starts the loader in its own goroutine and the committer on the
// calling one. It returns ctx.Err() once ctx is cancelled and the loader
// has stopped.
//
// A loader that finishes or fails does not stop the committer: readings
// already scheduled keep being released until shutdown. The loader's
// outcome is available from LoaderErr once LoaderDone is closed.
func (e *Engine) Run(ctx context.Context) error {
	log := slog.With("run_id", e.runID)
	log.Info("replay starting",
		"min_timestamp", e.cfg.MinTimestamp,
		"max_timestamp", e.cfg.MaxTimestamp,
		"time_rate", e.cfg.TimeRate(),
	)

	go func() {
		defer close(e.loaderDone)
		err := e.loader.Run(ctx)

		e.loaderMu.Lock()
		e.loaderErr = err
		e.loaderMu.Unlock()

		switch {
		case err == nil:
			log.Info("loader completed", "stats", e.stats.Snapshot())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			log.Info("loader cancelled")
		default:
			log.Error("loader failed", "error", err)
		}
	}()

	err := e.committer.Run(ctx)
	<-e.loaderDone

	log.Info("replay stopped", "stats", e.stats.Snapshot(), "pending", e.pending.Len())
	return err
}

// LoaderDone is closed once the loader has returned.
func (e *Engine) LoaderDone() <-chan struct{} {
	return e.loaderDone
}

// LoaderErr returns the loader's result: nil after a complete load,
// a *QueryError, or a context error. Only meaningful once LoaderDone is closed.
func (e *Engine) LoaderErr() error {
	e.loaderMu.Lock()
	defer e.loaderMu.Unlock()
	return e.loaderErr
}

// Loader returns the engine's loader.
func (e *Engine) Loader() *Loader { return e.loader }

// Committer returns the engine's committer.
func (e *Engine) Committer() *Committer { return e.committer }

// Registers returns the register store.
func (e *Engine) Registers() *RegisterStore { return e.registers }

// Pending returns the pending set.
func (e *Engine) Pending() *PendingSet { return e.pending }

// Stats returns the live counters.
func (e *Engine) Stats() *Stats { return e.stats }

// RunID returns the identifier of this run.
func (e *Engine) RunID() string { return e.runID }

// Clock returns the clock release times are measured on.
func (e *Engine) Clock() Clock { return e.clock }
