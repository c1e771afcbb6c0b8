package replay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sensorreplay/internal/config"
	"github.com/roach88/sensorreplay/internal/directory"
	"github.com/roach88/sensorreplay/internal/store"
	"github.com/roach88/sensorreplay/internal/testutil"
)

// fakeSource is an in-memory Source.
type fakeSource struct {
	mu sync.Mutex

	records         []store.Record
	connectFailures int   // Connect fails this many times before succeeding
	failFrom        int64 // ReadWindow fails for the window starting here
	failErr         error

	connects int
	windows  []Window
	closed   bool
}

func newFakeSource(records ...store.Record) *fakeSource {
	return &fakeSource{records: records, failFrom: -1}
}

func (f *fakeSource) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connects <= f.connectFailures {
		return errors.New("connection refused")
	}
	return nil
}

func (f *fakeSource) ReadWindow(ctx context.Context, from, to int64) ([]store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, Window{From: from, To: to})
	if from == f.failFrom {
		return nil, f.failErr
	}
	out := []store.Record{}
	for _, r := range f.records {
		if r.Timestamp >= from && r.Timestamp < to {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) queried() []Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Window(nil), f.windows...)
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// recorder is an observer that keeps every commit it sees.
type recorder struct {
	mu      sync.Mutex
	commits []Commit
}

func (r *recorder) OnCommit(c Commit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, c)
	return nil
}

func (r *recorder) all() []Commit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Commit(nil), r.commits...)
}

// values returns the values committed for one channel, in order.
func (r *recorder) values(channel string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, c := range r.commits {
		if c.Channel == channel {
			out = append(out, c.Value)
		}
	}
	return out
}

func testDirectory() *directory.Directory {
	return directory.New(map[string]directory.Entry{
		"A": {EndpointID: 1, RegisterOffset: 0},
		"B": {EndpointID: 1, RegisterOffset: 4},
		"C": {EndpointID: 2, RegisterOffset: 0},
	})
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.MinTimestamp = 0
	cfg.MaxTimestamp = 10
	cfg.LoadRate = 5
	cfg.SimulatedTimeSeconds = 1
	cfg.RealTimeSeconds = 1
	cfg.RetryInterval = time.Millisecond
	cfg.IdleWait = time.Millisecond
	return cfg
}

// pipeline is a manually driven replay: the test runs the loader and
// sweeps the committer itself, advancing the clock in between.
type pipeline struct {
	clock     *testutil.ManualClock
	stats     *Stats
	registers *RegisterStore
	pending   *PendingSet
	committer *Committer
	rec       *recorder
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	clock := testutil.NewManualClock()
	stats := &Stats{}
	registers := NewRegisterStore(testDirectory(), stats)
	rec := &recorder{}
	registers.AddObserver(rec)
	require.NoError(t, registers.Initialize())
	pending := NewPendingSet(registers, clock, stats)
	return &pipeline{
		clock:     clock,
		stats:     stats,
		registers: registers,
		pending:   pending,
		committer: NewCommitter(testConfig(), pending, registers),
		rec:       rec,
	}
}

func (p *pipeline) value(t *testing.T, channel string) int64 {
	t.Helper()
	v, ok := p.registers.Value(channel)
	require.True(t, ok, "channel %q should have a register", channel)
	return v
}
