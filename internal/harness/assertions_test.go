package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sensorreplay/internal/replay"
)

func sampleResult() *Result {
	r := NewResult()
	r.Trace = []TraceEvent{
		{Seq: 1, Phase: PhaseInit, Channel: "A", Value: 0},
		{Seq: 2, Phase: PhaseInit, Channel: "B", Value: 0},
		{Seq: 3, Phase: PhaseLoad, Channel: "A", Value: 7},
		{Seq: 4, Phase: "step-0", ElapsedMS: 3000, Channel: "A", Value: 8},
	}
	r.Registers = map[string]int64{"A": 8, "B": 0}
	r.Stats = replay.StatsSnapshot{Bootstraps: 1, Released: 1}
	return r
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertCommitOrder, Channel: "A", Values: []int64{0, 7, 8}},
		{Type: AssertCommitCount, Channel: "B", Count: 1},
		{Type: AssertCommitCount, Channel: "C", Count: 0},
		{Type: AssertFinalRegisters, Expect: map[string]int64{"A": 8}},
		{Type: AssertStat, Stat: "bootstraps", Count: 1},
	})
	assert.Empty(t, errs)
}

func TestAssertCommitOrder_Mismatch(t *testing.T) {
	err := assertCommitOrder(sampleResult().Trace, Assertion{Channel: "A", Values: []int64{0, 8, 7}})
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertCommitOrder, ae.Type)
	assert.Equal(t, "A committed [0 7 8]", ae.Actual)
	assert.Len(t, ae.Trace, 3)
	assert.Contains(t, err.Error(), "[4] step-0 +3000ms A=8")
}

func TestAssertCommitOrder_LengthMismatch(t *testing.T) {
	err := assertCommitOrder(sampleResult().Trace, Assertion{Channel: "A", Values: []int64{0, 7}})
	assert.Error(t, err)
}

func TestAssertCommitCount_Mismatch(t *testing.T) {
	err := assertCommitCount(sampleResult().Trace, Assertion{Channel: "A", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 commits")
}

func TestAssertFinalRegisters_Mismatch(t *testing.T) {
	err := assertFinalRegisters(sampleResult().Registers, Assertion{
		Expect: map[string]int64{"A": 9, "Z": 0},
	})
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "A=8, Z missing", ae.Actual)
}

func TestAssertStat(t *testing.T) {
	stats := sampleResult().Stats

	assert.NoError(t, assertStat(stats, Assertion{Stat: "released", Count: 1}))

	err := assertStat(stats, Assertion{Stat: "released", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "released = 1")

	assert.Error(t, assertStat(stats, Assertion{Stat: "latency"}))
}

func TestEvaluateAssertions_IndexedMessages(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertCommitCount, Channel: "A", Count: 3},
		{Type: AssertCommitCount, Channel: "A", Count: 1},
		{Type: "bogus"},
	})

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[1]:")
	assert.Contains(t, errs[1], `assertions[2]: unknown assertion type "bogus"`)
}

func TestStatNames_CoverSnapshot(t *testing.T) {
	s := replay.StatsSnapshot{
		ConnectAttempts: 1, Windows: 2, RowsLoaded: 3, Bootstraps: 4, Scheduled: 5,
		Released: 6, UnknownChannels: 7, ObserverFailures: 8, QueryFailures: 9,
	}
	seen := map[int64]bool{}
	for _, get := range statNames {
		seen[get(s)] = true
	}
	assert.Len(t, seen, 9)
}
