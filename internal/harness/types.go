package harness

import (
	"strconv"

	"github.com/roach88/sensorreplay/internal/replay"
)

// Trace phases.
const (
	PhaseInit = "init" // zeros published by register initialization
	PhaseLoad = "load" // bootstrap commits made while loading
)

// StepPhase names the phase of steps[i].
func StepPhase(i int) string {
	return "step-" + strconv.Itoa(i)
}

// TraceEvent is one commit seen by the register store's observers.
type TraceEvent struct {
	Seq            int64  `json:"seq"`
	Phase          string `json:"phase"`
	ElapsedMS      int64  `json:"elapsed_ms"`
	Channel        string `json:"channel"`
	EndpointID     int    `json:"endpoint_id"`
	RegisterOffset int    `json:"register_offset"`
	Value          int64  `json:"value"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success.
	// True if every step expectation and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains every commit in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Registers is the register store after the last step.
	Registers map[string]int64 `json:"registers"`

	// Stats is a copy of the replay counters after the last step.
	Stats replay.StatsSnapshot `json:"stats"`

	// LoaderError is the loader's error, if it did not complete.
	LoaderError string `json:"loader_error,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Registers: make(map[string]int64),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Values returns the committed values of one channel, in order.
func (r *Result) Values(channel string) []int64 {
	out := []int64{}
	for _, e := range r.Trace {
		if e.Channel == channel {
			out = append(out, e.Value)
		}
	}
	return out
}
