package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sensorreplay/internal/store"
	"github.com/roach88/sensorreplay/internal/testutil"
)

func newTestEngine(t *testing.T, src Source) (*Engine, *testutil.ManualClock, *recorder) {
	t.Helper()
	clock := testutil.NewManualClock()
	e := New(testConfig(), testDirectory(), src,
		WithClock(clock),
		WithRunID(NewFixedGenerator("run-1")),
	)
	rec := &recorder{}
	e.AddObserver(rec)
	require.NoError(t, e.Open())
	return e, clock, rec
}

func TestEngine_New(t *testing.T) {
	e, clock, _ := newTestEngine(t, newFakeSource())

	assert.Equal(t, "run-1", e.RunID())
	assert.Same(t, clock, e.Clock())
	assert.NotNil(t, e.Registers())
	assert.NotNil(t, e.Pending())
	assert.NotNil(t, e.Loader())
	assert.NotNil(t, e.Committer())
	assert.Equal(t, map[string]int64{"A": 0, "B": 0, "C": 0}, e.Registers().Snapshot())
}

func TestEngine_DefaultRunIDIsUUIDv7(t *testing.T) {
	e := New(testConfig(), testDirectory(), newFakeSource())
	assert.Len(t, e.RunID(), 36)
	assert.Equal(t, byte('7'), e.RunID()[14], "version nibble")
}

func TestEngine_OpenTwice(t *testing.T) {
	e, _, _ := newTestEngine(t, newFakeSource())

	err := e.Open()
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

// Two rows for channel A at timestamps 2 and 3 over [0,10) with
// load_rate 5 and a time rate of 1: A reads 7 right after loading, and 8
// only once three virtual seconds have passed since the enqueue.
func TestEngine_EndToEnd(t *testing.T) {
	src := newFakeSource(
		store.Record{Channel: "A", Timestamp: 2, Value: 7},
		store.Record{Channel: "A", Timestamp: 3, Value: 8},
	)
	e, clock, rec := newTestEngine(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	select {
	case <-e.LoaderDone():
	case <-time.After(2 * time.Second):
		t.Fatal("loader did not finish")
	}
	require.NoError(t, e.LoaderErr())
	assert.Equal(t, []Window{{0, 5}, {5, 10}}, src.queried())

	v, _ := e.Registers().Value("A")
	assert.Equal(t, int64(7), v, "bootstrap commits immediately")

	// Just before the release time the committer must hold the reading.
	clock.Advance(3*time.Second - time.Nanosecond)
	time.Sleep(20 * time.Millisecond)
	v, _ = e.Registers().Value("A")
	assert.Equal(t, int64(7), v)

	clock.Advance(time.Nanosecond)
	assert.Eventually(t, func() bool {
		v, _ := e.Registers().Value("A")
		return v == 8
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}

	// No value other than 0, 7, 8 was ever observed for A.
	assert.Equal(t, []int64{0, 7, 8}, rec.values("A"))
	assert.Equal(t, 0, e.Pending().Len())
}

func TestEngine_QueryFailureKeepsCommitting(t *testing.T) {
	src := newFakeSource(
		store.Record{Channel: "B", Timestamp: 0, Value: 1},
		store.Record{Channel: "B", Timestamp: 1, Value: 2},
	)
	src.failFrom = 5
	src.failErr = errors.New("table locked")
	e, clock, _ := newTestEngine(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	<-e.LoaderDone()
	assert.True(t, IsQueryError(e.LoaderErr()))

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		v, _ := e.Registers().Value("B")
		return v == 2
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestEngine_ShutdownDuringConnectRetry(t *testing.T) {
	src := newFakeSource()
	src.connectFailures = 1 << 30
	e, _, _ := newTestEngine(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
	assert.ErrorIs(t, e.LoaderErr(), context.Canceled)
	assert.Greater(t, e.Stats().ConnectAttempts.Load(), int64(1))
}
