package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a replay scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Replay is the replay range and time rate.
	Replay ReplaySettings `yaml:"replay"`

	// Channels is the channel directory.
	Channels map[string]ChannelEntry `yaml:"channels"`

	// Rows are written to the datastore before the replay starts.
	Rows []Row `yaml:"rows"`

	// Steps advance the clock and check registers.
	Steps []Step `yaml:"steps"`

	// Assertions validate the commit trace and final state.
	// Supported types: commit_order, commit_count, final_registers, stat
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id.
	// If empty, defaults to "test-run-default" for deterministic golden comparison.
	RunID string `yaml:"run_id,omitempty"`
}

// ReplaySettings mirrors the replay keys of the main configuration.
type ReplaySettings struct {
	MinTimestamp         int64   `yaml:"min_timestamp"`
	MaxTimestamp         int64   `yaml:"max_timestamp"`
	LoadRate             int64   `yaml:"load_rate"`
	SimulatedTimeSeconds float64 `yaml:"simulated_time_seconds"`
	RealTimeSeconds      float64 `yaml:"real_time_seconds"`
}

// ChannelEntry is the directory entry of one channel.
type ChannelEntry struct {
	Endpoint int `yaml:"endpoint"`
	Offset   int `yaml:"offset"`
}

// Row is one datastore row.
type Row struct {
	Channel   string `yaml:"channel"`
	Timestamp int64  `yaml:"timestamp"`
	Value     int64  `yaml:"value"`
}

// Step advances the virtual clock, drains every due reading, then checks
// the registers in Expect (subset match).
type Step struct {
	Advance time.Duration    `yaml:"advance"`
	Expect  map[string]int64 `yaml:"expect,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "commit_order": Channel committed exactly Values, in order
	// - "commit_count": Channel committed Count times
	// - "final_registers": registers hold Expect after the last step
	// - "stat": replay counter Stat equals Count
	Type string `yaml:"type"`

	// Channel is used by commit_order and commit_count.
	Channel string `yaml:"channel,omitempty"`

	// Values is the expected value sequence (commit_order).
	Values []int64 `yaml:"values,omitempty"`

	// Count is the expected number (commit_count, stat).
	Count int64 `yaml:"count,omitempty"`

	// Expect contains expected register values (final_registers).
	Expect map[string]int64 `yaml:"expect,omitempty"`

	// Stat is the counter name, e.g. "bootstraps" (stat).
	Stat string `yaml:"stat,omitempty"`
}

// Assertion type constants.
const (
	AssertCommitOrder    = "commit_order"
	AssertCommitCount    = "commit_count"
	AssertFinalRegisters = "final_registers"
	AssertStat           = "stat"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	r := s.Replay
	if r.MaxTimestamp <= r.MinTimestamp {
		return fmt.Errorf("replay.max_timestamp must be greater than replay.min_timestamp")
	}
	if r.LoadRate <= 0 {
		return fmt.Errorf("replay.load_rate must be positive")
	}
	if r.SimulatedTimeSeconds <= 0 || r.RealTimeSeconds <= 0 {
		return fmt.Errorf("replay.simulated_time_seconds and replay.real_time_seconds must be positive")
	}

	if len(s.Channels) == 0 {
		return fmt.Errorf("channels map is required and must be non-empty")
	}
	for ch, e := range s.Channels {
		if e.Endpoint < 1 {
			return fmt.Errorf("channels[%s]: endpoint must be at least 1", ch)
		}
		if e.Offset < 0 {
			return fmt.Errorf("channels[%s]: offset must not be negative", ch)
		}
	}

	for i, row := range s.Rows {
		if row.Channel == "" {
			return fmt.Errorf("rows[%d]: channel is required", i)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if step.Advance < 0 {
			return fmt.Errorf("steps[%d]: advance must not be negative", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCommitOrder:
		if a.Channel == "" {
			return fmt.Errorf("assertions[%d]: channel is required for commit_order", index)
		}
		if len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: values list is required for commit_order", index)
		}
	case AssertCommitCount:
		if a.Channel == "" {
			return fmt.Errorf("assertions[%d]: channel is required for commit_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for commit_count", index)
		}
	case AssertFinalRegisters:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_registers", index)
		}
	case AssertStat:
		if _, ok := statNames[a.Stat]; !ok {
			return fmt.Errorf("assertions[%d]: unknown stat %q", index, a.Stat)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
