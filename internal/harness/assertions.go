package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/sensorreplay/internal/directory"
	"github.com/roach88/sensorreplay/internal/replay"
)

// statNames maps the names usable in stat assertions to their counters.
var statNames = map[string]func(replay.StatsSnapshot) int64{
	"connect_attempts":  func(s replay.StatsSnapshot) int64 { return s.ConnectAttempts },
	"windows":           func(s replay.StatsSnapshot) int64 { return s.Windows },
	"rows_loaded":       func(s replay.StatsSnapshot) int64 { return s.RowsLoaded },
	"bootstraps":        func(s replay.StatsSnapshot) int64 { return s.Bootstraps },
	"scheduled":         func(s replay.StatsSnapshot) int64 { return s.Scheduled },
	"released":          func(s replay.StatsSnapshot) int64 { return s.Released },
	"unknown_channels":  func(s replay.StatsSnapshot) int64 { return s.UnknownChannels },
	"observer_failures": func(s replay.StatsSnapshot) int64 { return s.ObserverFailures },
	"query_failures":    func(s replay.StatsSnapshot) int64 { return s.QueryFailures },
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s +%dms %s=%d\n", ev.Seq, ev.Phase, ev.ElapsedMS, ev.Channel, ev.Value)
		}
	}
	return buf.String()
}

// EvaluateAssertions evaluates every assertion against result and returns
// the failure messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertCommitOrder:
		return assertCommitOrder(result.Trace, a)
	case AssertCommitCount:
		return assertCommitCount(result.Trace, a)
	case AssertFinalRegisters:
		return assertFinalRegisters(result.Registers, a)
	case AssertStat:
		return assertStat(result.Stats, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// channelTrace returns the events of one channel.
func channelTrace(trace []TraceEvent, channel string) []TraceEvent {
	channel = directory.Normalize(channel)
	var out []TraceEvent
	for _, e := range trace {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

// assertCommitOrder checks the channel committed exactly the expected values, in order.
func assertCommitOrder(trace []TraceEvent, a Assertion) error {
	events := channelTrace(trace, a.Channel)
	got := make([]int64, len(events))
	for i, e := range events {
		got[i] = e.Value
	}

	if len(got) == len(a.Values) {
		match := true
		for i := range got {
			if got[i] != a.Values[i] {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertCommitOrder,
		Expected: fmt.Sprintf("%s committed %v", a.Channel, a.Values),
		Actual:   fmt.Sprintf("%s committed %v", a.Channel, got),
		Trace:    events,
	}
}

// assertCommitCount checks the channel committed exactly Count values.
func assertCommitCount(trace []TraceEvent, a Assertion) error {
	events := channelTrace(trace, a.Channel)
	if int64(len(events)) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCommitCount,
		Expected: fmt.Sprintf("%d commits of %s", a.Count, a.Channel),
		Actual:   fmt.Sprintf("%d commits", len(events)),
		Trace:    events,
	}
}

// assertFinalRegisters checks the final registers (subset match).
func assertFinalRegisters(registers map[string]int64, a Assertion) error {
	channels := make([]string, 0, len(a.Expect))
	for ch := range a.Expect {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	var diffs []string
	for _, ch := range channels {
		got, ok := registers[directory.Normalize(ch)]
		switch {
		case !ok:
			diffs = append(diffs, fmt.Sprintf("%s missing", ch))
		case got != a.Expect[ch]:
			diffs = append(diffs, fmt.Sprintf("%s=%d", ch, got))
		}
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalRegisters,
		Expected: fmt.Sprintf("registers %v", a.Expect),
		Actual:   strings.Join(diffs, ", "),
	}
}

// assertStat checks a replay counter.
func assertStat(stats replay.StatsSnapshot, a Assertion) error {
	get, ok := statNames[a.Stat]
	if !ok {
		return fmt.Errorf("unknown stat %q", a.Stat)
	}
	if got := get(stats); got != a.Count {
		return &AssertionError{
			Type:     AssertStat,
			Expected: fmt.Sprintf("%s = %d", a.Stat, a.Count),
			Actual:   fmt.Sprintf("%s = %d", a.Stat, got),
		}
	}
	return nil
}
