package replay

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterStore_InitializeZeroesEveryChannel(t *testing.T) {
	s := NewRegisterStore(testDirectory(), nil)
	rec := &recorder{}
	s.AddObserver(rec)

	require.NoError(t, s.Initialize())

	assert.Equal(t, map[string]int64{"A": 0, "B": 0, "C": 0}, s.Snapshot())

	// Observers see the zeros, with bridge addresses.
	commits := rec.all()
	require.Len(t, commits, 3)
	assert.Equal(t, Commit{Channel: "A", EndpointID: 1, RegisterOffset: 0, Value: 0}, commits[0])
	assert.Equal(t, Commit{Channel: "B", EndpointID: 1, RegisterOffset: 4, Value: 0}, commits[1])
	assert.Equal(t, Commit{Channel: "C", EndpointID: 2, RegisterOffset: 0, Value: 0}, commits[2])
}

func TestRegisterStore_InitializeTwice(t *testing.T) {
	s := NewRegisterStore(testDirectory(), nil)
	require.NoError(t, s.Initialize())

	err := s.Initialize()
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestRegisterStore_CommitBeforeInitialize(t *testing.T) {
	s := NewRegisterStore(testDirectory(), nil)

	err := s.Commit("A", 1)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, ok := s.Value("A")
	assert.False(t, ok)
	assert.Empty(t, s.Snapshot())
}

func TestRegisterStore_Commit(t *testing.T) {
	s := NewRegisterStore(testDirectory(), nil)
	rec := &recorder{}
	s.AddObserver(rec)
	require.NoError(t, s.Initialize())

	require.NoError(t, s.Commit("B", 42))

	v, ok := s.Value("B")
	require.True(t, ok)
	assert.Equal(t, int64(42), v)

	commits := rec.all()
	assert.Equal(t, Commit{Channel: "B", EndpointID: 1, RegisterOffset: 4, Value: 42}, commits[len(commits)-1])
}

func TestRegisterStore_UnknownChannel(t *testing.T) {
	stats := &Stats{}
	s := NewRegisterStore(testDirectory(), stats)
	rec := &recorder{}
	s.AddObserver(rec)
	require.NoError(t, s.Initialize())
	before := s.Snapshot()
	seen := len(rec.all())

	err := s.Commit("Z", 9)

	require.Error(t, err)
	assert.True(t, IsUnknownChannel(err))
	var ue *UnknownChannelError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "Z", ue.Channel)
	assert.Equal(t, ErrCodeUnknownChannel, ue.Code())

	// Store unchanged, observers not called.
	assert.Equal(t, before, s.Snapshot())
	_, ok := s.Value("Z")
	assert.False(t, ok)
	assert.Len(t, rec.all(), seen)
	assert.Equal(t, int64(1), stats.UnknownChannels.Load())
}

func TestRegisterStore_ObserversCalledInOrder(t *testing.T) {
	s := NewRegisterStore(testDirectory(), nil)
	var order []string
	s.AddObserver(ObserverFunc(func(c Commit) error {
		order = append(order, "first")
		return nil
	}))
	s.AddObserver(ObserverFunc(func(c Commit) error {
		order = append(order, "second")
		return nil
	}))
	require.NoError(t, s.Initialize())
	order = nil

	require.NoError(t, s.Commit("A", 1))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRegisterStore_ObserverFailureIsolated(t *testing.T) {
	stats := &Stats{}
	s := NewRegisterStore(testDirectory(), stats)
	s.AddObserver(ObserverFunc(func(c Commit) error {
		return errors.New("bridge offline")
	}))
	s.AddObserver(ObserverFunc(func(c Commit) error {
		panic("observer bug")
	}))
	rec := &recorder{}
	s.AddObserver(rec)
	require.NoError(t, s.Initialize())

	err := s.Commit("A", 5)

	// The commit itself succeeds and later observers still run.
	require.NoError(t, err)
	v, _ := s.Value("A")
	assert.Equal(t, int64(5), v)
	assert.Equal(t, []int64{0, 5}, rec.values("A"))

	// Two failing observers, four notifications each (3 zeros + 1 commit).
	assert.Equal(t, int64(8), stats.ObserverFailures.Load())
}

func TestCallObserver_RecoversPanic(t *testing.T) {
	err := callObserver(ObserverFunc(func(c Commit) error {
		panic("boom")
	}), Commit{Channel: "A"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRegisterStore_ConcurrentCommits(t *testing.T) {
	s := NewRegisterStore(testDirectory(), nil)
	require.NoError(t, s.Initialize())

	var wg sync.WaitGroup
	for _, ch := range []string{"A", "B", "C"} {
		wg.Add(1)
		go func(ch string) {
			defer wg.Done()
			for i := int64(1); i <= 1000; i++ {
				assert.NoError(t, s.Commit(ch, i))
				_ = s.Snapshot()
			}
		}(ch)
	}
	wg.Wait()

	assert.Equal(t, map[string]int64{"A": 1000, "B": 1000, "C": 1000}, s.Snapshot())
}
