package replay

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/sensorreplay/internal/config"
)

// Committer releases due readings into the register store.
//
// Run must be called from exactly one goroutine: it is the only consumer of
// the pending queues, which is what serialises commits per channel.
type Committer struct {
	pending   *PendingSet
	registers *RegisterStore
	idleWait  time.Duration
	stats     *Stats
}

// NewCommitter creates a committer draining pending into registers.
func NewCommitter(cfg config.Config, pending *PendingSet, registers *RegisterStore) *Committer {
	idle := cfg.IdleWait
	if idle <= 0 {
		idle = time.Millisecond
	}
	return &Committer{
		pending:   pending,
		registers: registers,
		idleWait:  idle,
		stats:     pending.stats,
	}
}

// Sweep performs one full scan: for every channel it pops at most one
// reading whose release time has passed and commits it. Returns the number
// of readings released.
//
// Commit errors are logged and the reading is dropped; the scan continues.
func (c *Committer) Sweep() int {
	now := c.pending.clock.Now()
	released := 0

	c.pending.queues.Range(func(k, v any) bool {
		r, ok := v.(*channelQueue).popDue(now)
		if !ok {
			return true
		}
		released++
		c.stats.Released.Add(1)

		if err := c.registers.Commit(r.Channel, r.Value); err != nil {
			slog.Warn("commit skipped",
				"channel", r.Channel,
				"value", r.Value,
				"error", err,
			)
		}
		return true
	})

	return released
}

// Run sweeps until ctx is cancelled and returns ctx.Err().
// After a sweep that released nothing it waits idle_wait before the next one.
func (c *Committer) Run(ctx context.Context) error {
	slog.Info("committer starting", "idle_wait", c.idleWait)

	timer := time.NewTimer(c.idleWait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("committer stopping: context cancelled")
			return ctx.Err()
		default:
		}

		if c.Sweep() > 0 {
			continue
		}

		// Nothing due - wait before rescanning.
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(c.idleWait)

		select {
		case <-ctx.Done():
			slog.Info("committer stopping: context cancelled")
			return ctx.Err()
		case <-timer.C:
		}
	}
}
