// Package harness runs replay scenarios against the real pipeline with a
// manual clock, so delivery timing can be asserted exactly.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: bootstrap_then_delay
//	description: "First reading commits at once, the second after its delay"
//	replay:
//	  min_timestamp: 0
//	  max_timestamp: 10
//	  load_rate: 5
//	  simulated_time_seconds: 1
//	  real_time_seconds: 1
//	channels:
//	  A: { endpoint: 1, offset: 0 }
//	rows:
//	  - { channel: A, timestamp: 2, value: 7 }
//	  - { channel: A, timestamp: 3, value: 8 }
//	steps:
//	  - advance: 2999ms
//	    expect: { A: 7 }
//	  - advance: 1ms
//	    expect: { A: 8 }
//	assertions:
//	  - type: commit_order
//	    channel: A
//	    values: [0, 7, 8]
//
// # Execution
//
// Rows are written to a fresh in-memory datastore. The registers are
// initialized, then the loader runs to completion on the scenario's range
// with the clock stopped. Each step advances the clock and sweeps the
// committer until nothing more is due, then compares the registers named in
// its expect map.
//
// # Assertion Types
//
//   - commit_order: the committed values of a channel, in order
//   - commit_count: the number of commits of a channel
//   - final_registers: register values after the last step (subset match)
//   - stat: a replay counter (see replay.StatsSnapshot) has the given value
//
// # Deterministic Testing
//
// The trace is the sequence of commits seen by a register-store observer.
// Commits of different channels released by the same sweep have no defined
// order, so the trace is stably sorted by channel within each phase. With a
// fixed run id the trace is byte-identical across runs and can be compared
// against a golden file.
package harness
