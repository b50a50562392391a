package harness

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// EvaluateAssertions checks every assertion against the result and returns
// one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	id, err := resolveString(a.ID, result.Bindings)
	if err != nil {
		return err
	}

	switch a.Type {
	case AssertTraceContains:
		if countTrace(result.Trace, a, id) == 0 {
			return fmt.Errorf("no %s in trace", describeMatch(a, id))
		}
		return nil

	case AssertTraceCount:
		if got := countTrace(result.Trace, a, id); got != a.Count {
			return fmt.Errorf("%s: want %d, got %d", describeMatch(a, id), a.Count, got)
		}
		return nil

	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a.Actions)

	case AssertFinalState:
		return assertFinalState(result, a)

	case AssertStateCount:
		matches, err := selectRecords(result, a)
		if err != nil {
			return err
		}
		if len(matches) != a.Count {
			return fmt.Errorf("%s: want %d records, got %d", a.Store, a.Count, len(matches))
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// countTrace counts trace entries matching a. Without a store only steps
// match; with one only that store's bus events do.
func countTrace(trace []TraceEvent, a Assertion, id string) int {
	n := 0
	for _, ev := range trace {
		if a.Store == "" {
			if ev.Type != TraceTypeStep {
				continue
			}
			if a.Outcome != "" && ev.Outcome != a.Outcome {
				continue
			}
		} else if ev.Type != TraceTypeEvent || ev.Store != a.Store {
			continue
		}
		if ev.Action != a.Action {
			continue
		}
		if id != "" && ev.ID != id {
			continue
		}
		n++
	}
	return n
}

func describeMatch(a Assertion, id string) string {
	var b strings.Builder
	if a.Store != "" {
		fmt.Fprintf(&b, "%s event on %s", a.Action, a.Store)
	} else {
		fmt.Fprintf(&b, "%s step", a.Action)
	}
	if id != "" {
		fmt.Fprintf(&b, " for %s", id)
	}
	if a.Outcome != "" {
		fmt.Fprintf(&b, " with outcome %s", a.Outcome)
	}
	return b.String()
}

// assertTraceOrder checks that the step actions appear in order. Other steps
// may appear in between.
func assertTraceOrder(trace []TraceEvent, actions []string) error {
	next := 0
	for _, ev := range trace {
		if next == len(actions) {
			break
		}
		if ev.Type == TraceTypeStep && ev.Action == actions[next] {
			next++
		}
	}
	if next < len(actions) {
		return fmt.Errorf("step %q (position %d) not found in order", actions[next], next)
	}
	return nil
}

func assertFinalState(result *Result, a Assertion) error {
	matches, err := selectRecords(result, a)
	if err != nil {
		return err
	}
	if len(matches) != 1 {
		return fmt.Errorf("%s: want exactly one record matching %v, got %d", a.Store, a.Where, len(matches))
	}

	expect, err := resolveValue(a.Expect, result.Bindings)
	if err != nil {
		return err
	}
	return matchFields(matches[0], expect.(map[string]any))
}

// selectRecords returns the records of a.Store whose fields match a.Where.
func selectRecords(result *Result, a Assertion) ([]record.Snapshot, error) {
	records, ok := result.State[a.Store]
	if !ok {
		return nil, fmt.Errorf("unknown store %q", a.Store)
	}
	where, err := resolveValue(a.Where, result.Bindings)
	if err != nil {
		return nil, err
	}
	filter := where.(map[string]any)

	var out []record.Snapshot
	for _, snap := range records {
		if matchFields(snap, filter) == nil {
			out = append(out, snap)
		}
	}
	return out, nil
}

// matchFields checks that every expected field has the expected value. A nil
// expectation means the field is unset.
func matchFields(snap record.Snapshot, expect map[string]any) error {
	keys := make([]string, 0, len(expect))
	for k := range expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !valuesEqual(expect[k], snap[k]) {
			return fmt.Errorf("field %s: want %v, got %v", k, display(expect[k]), display(snap[k]))
		}
	}
	return nil
}

// valuesEqual compares a scenario value with a snapshot value by their
// printed form, so YAML ints match JSON numbers and timestamps match their
// RFC 3339 text.
func valuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	return display(expected) == display(actual)
}

func display(v any) string {
	switch x := v.(type) {
	case nil:
		return "<unset>"
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		return fmt.Sprint(items)
	}
	return fmt.Sprint(v)
}

func resolveString(s string, bindings map[string]string) (string, error) {
	v, err := resolveValue(s, bindings)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// checkExpect compares a step's outcome with its expect clause.
func checkExpect(step Step, out stepOutput, err error, bindings map[string]string) []string {
	exp := step.Expect
	if exp == nil || exp.Error == "" {
		if err != nil {
			return []string{fmt.Sprintf("unexpected failure: %v", err)}
		}
	}
	if exp == nil {
		return nil
	}

	if exp.Error != "" {
		if err == nil {
			return []string{fmt.Sprintf("expected %s, step succeeded", exp.Error)}
		}
		if got := outcomeOf(err); exp.Error != "any" && got != exp.Error {
			return []string{fmt.Sprintf("expected %s, got %s: %v", exp.Error, got, err)}
		}
		return nil
	}

	if len(exp.Result) == 0 {
		return nil
	}
	if out.record == nil {
		return []string{"expect.result: step returned no record"}
	}
	snap, serr := record.SnapshotOf(out.record)
	if serr != nil {
		return []string{fmt.Sprintf("expect.result: %v", serr)}
	}
	want, rerr := resolveValue(exp.Result, bindings)
	if rerr != nil {
		return []string{fmt.Sprintf("expect.result: %v", rerr)}
	}
	if merr := matchFields(snap, want.(map[string]any)); merr != nil {
		return []string{fmt.Sprintf("expect.result: %v", merr)}
	}
	return nil
}
