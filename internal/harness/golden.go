package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/sugawarayuuta/sonnet"
)

// SnapshotHeader is the first line of a golden file.
type SnapshotHeader struct {
	ScenarioName string `json:"scenario_name"`
	RunID        string `json:"run_id"`
	Commits      int    `json:"commits"`
}

// Snapshot renders the golden-file bytes for a scenario result: a header
// line followed by one JSON line per trace event.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	runID := scenario.RunID
	if runID == "" {
		runID = "test-run-default"
	}

	var buf bytes.Buffer
	lines := make([]any, 0, len(result.Trace)+1)
	lines = append(lines, SnapshotHeader{
		ScenarioName: scenario.Name,
		RunID:        runID,
		Commits:      len(result.Trace),
	})
	for _, e := range result.Trace {
		lines = append(lines, e)
	}

	for _, line := range lines {
		data, err := sonnet.Marshal(line)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario, result)
}

// AssertGolden compares an existing result's trace against its golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
