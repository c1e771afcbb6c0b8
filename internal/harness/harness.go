package harness

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/sensorreplay/internal/config"
	"github.com/roach88/sensorreplay/internal/directory"
	"github.com/roach88/sensorreplay/internal/replay"
	"github.com/roach88/sensorreplay/internal/store"
	"github.com/roach88/sensorreplay/internal/testutil"
)

// tracer is a register-store observer recording every commit with the
// phase and virtual time it happened in.
type tracer struct {
	mu     sync.Mutex
	clock  *testutil.ManualClock
	phase  string
	events []TraceEvent
}

func (t *tracer) setPhase(p string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = p
}

func (t *tracer) OnCommit(c replay.Commit) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, TraceEvent{
		Phase:          t.phase,
		ElapsedMS:      t.clock.Elapsed().Milliseconds(),
		Channel:        c.Channel,
		EndpointID:     c.EndpointID,
		RegisterOffset: c.RegisterOffset,
		Value:          c.Value,
	})
	return nil
}

// trace returns the events stably sorted by channel within each phase and
// numbered from 1. Per-channel order is preserved.
func (t *tracer) trace() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Phases were recorded contiguously, in order of first appearance.
	rank := make(map[string]int)
	for _, e := range t.events {
		if _, ok := rank[e.Phase]; !ok {
			rank[e.Phase] = len(rank)
		}
	}

	out := append([]TraceEvent(nil), t.events...)
	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := rank[out[i].Phase], rank[out[j].Phase]; ri != rj {
			return ri < rj
		}
		return out[i].Channel < out[j].Channel
	})
	for i := range out {
		out[i].Seq = int64(i + 1)
	}
	return out
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory datastore with a manual clock
// and a fixed run id, so repeated runs produce identical traces.
//
// Execution flow:
//  1. Write rows to the datastore
//  2. Initialize registers (phase "init")
//  3. Run the loader to completion with the clock stopped (phase "load")
//  4. For each step: advance the clock, sweep until nothing is due, check
//     the step's expectations (phase "step-N")
//  5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	records := make([]store.Record, len(scenario.Rows))
	for i, row := range scenario.Rows {
		records[i] = store.Record{Channel: row.Channel, Timestamp: row.Timestamp, Value: row.Value}
	}
	if err := st.WriteRecords(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to write rows: %w", err)
	}

	clock := testutil.NewManualClock()
	eng := replay.New(scenario.config(), scenario.directory(), st,
		replay.WithClock(clock),
		replay.WithRunID(testutil.NewFixedRunID(scenario.RunID)),
	)
	tr := &tracer{clock: clock, phase: PhaseInit}
	eng.AddObserver(tr)

	result := NewResult()

	if err := eng.Open(); err != nil {
		return nil, err
	}

	tr.setPhase(PhaseLoad)
	if err := eng.Loader().Run(ctx); err != nil {
		result.LoaderError = err.Error()
		result.AddError(fmt.Sprintf("loader: %v", err))
	}

	for i, step := range scenario.Steps {
		tr.setPhase(StepPhase(i))
		clock.Advance(step.Advance)
		for eng.Committer().Sweep() > 0 {
		}

		for _, msg := range checkRegisters(eng.Registers(), step.Expect) {
			result.AddError(fmt.Sprintf("steps[%d]: %s", i, msg))
		}
	}

	result.Trace = tr.trace()
	result.Registers = eng.Registers().Snapshot()
	result.Stats = eng.Stats().Snapshot()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// checkRegisters compares registers against expect, in channel order.
func checkRegisters(registers *replay.RegisterStore, expect map[string]int64) []string {
	channels := make([]string, 0, len(expect))
	for ch := range expect {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	var errs []string
	for _, ch := range channels {
		got, ok := registers.Value(directory.Normalize(ch))
		if !ok {
			errs = append(errs, fmt.Sprintf("register %s: unknown channel", ch))
			continue
		}
		if got != expect[ch] {
			errs = append(errs, fmt.Sprintf("register %s: expected %d, got %d", ch, expect[ch], got))
		}
	}
	return errs
}

func (s *Scenario) config() config.Config {
	cfg := config.Default()
	cfg.MinTimestamp = s.Replay.MinTimestamp
	cfg.MaxTimestamp = s.Replay.MaxTimestamp
	cfg.LoadRate = s.Replay.LoadRate
	cfg.SimulatedTimeSeconds = s.Replay.SimulatedTimeSeconds
	cfg.RealTimeSeconds = s.Replay.RealTimeSeconds
	return cfg
}

func (s *Scenario) directory() *directory.Directory {
	entries := make(map[string]directory.Entry, len(s.Channels))
	for ch, e := range s.Channels {
		entries[ch] = directory.Entry{EndpointID: e.Endpoint, RegisterOffset: e.Offset}
	}
	return directory.New(entries)
}
