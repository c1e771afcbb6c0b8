package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Format(t *testing.T) {
	s := &Scenario{Name: "fmt"}
	r := NewResult()
	r.Trace = []TraceEvent{
		{Seq: 1, Phase: PhaseInit, Channel: "A", EndpointID: 1, RegisterOffset: 2, Value: 0},
	}

	data, err := Snapshot(s, r)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"scenario_name":"fmt","run_id":"test-run-default","commits":1}`, lines[0])
	assert.Equal(t, `{"seq":1,"phase":"init","elapsed_ms":0,"channel":"A","endpoint_id":1,"register_offset":2,"value":0}`, lines[1])
}

func TestSnapshot_FixedRunID(t *testing.T) {
	data, err := Snapshot(&Scenario{Name: "x", RunID: "run-7"}, NewResult())
	require.NoError(t, err)
	assert.Equal(t, `{"scenario_name":"x","run_id":"run-7","commits":0}`+"\n", string(data))
}

func TestAssertGolden_ExistingResult(t *testing.T) {
	s, err := LoadScenario("testdata/unknown_channel.yaml")
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)

	require.NoError(t, AssertGolden(t, s, result))
}
