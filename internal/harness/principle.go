package harness

import (
	"fmt"
	"sort"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// Principle is a property every scenario's final state must satisfy,
// whatever the flow did.
type Principle struct {
	Name        string
	Description string
	Check       func(State) []string
}

// Principles are checked after every scenario.
var Principles = []Principle{
	{
		Name:        "single_pair",
		Description: "at most one quadrant task references any triage task",
		Check:       checkSinglePair,
	},
	{
		Name:        "completion_agreement",
		Description: "a paired triage task and quadrant task agree on completion",
		Check:       checkCompletionAgreement,
	},
}

// CheckPrinciples runs every principle against state and returns one
// message per violation.
func CheckPrinciples(state State) []string {
	var out []string
	for _, p := range Principles {
		for _, v := range p.Check(state) {
			out = append(out, fmt.Sprintf("principle %s violated: %s", p.Name, v))
		}
	}
	return out
}

func checkSinglePair(state State) []string {
	refs := map[string][]string{}
	for _, q := range state[record.KeyQuadrant] {
		if gtd := field(q, "gtd_task_id"); gtd != "" {
			refs[gtd] = append(refs[gtd], field(q, "id"))
		}
	}

	var out []string
	for _, gtd := range sortedKeys(refs) {
		if ids := refs[gtd]; len(ids) > 1 {
			out = append(out, fmt.Sprintf("triage task %s is referenced by %v", gtd, ids))
		}
	}
	return out
}

func checkCompletionAgreement(state State) []string {
	triage := map[string]record.Snapshot{}
	for _, t := range state[record.KeyTriage] {
		triage[field(t, "id")] = t
	}

	var out []string
	for _, q := range state[record.KeyQuadrant] {
		t, ok := triage[field(q, "gtd_task_id")]
		if !ok {
			continue
		}
		qDone := field(q, "status") == string(record.QuadrantCompleted)
		tDone := field(t, "status") == string(record.TriageCompleted)
		if qDone != tDone {
			out = append(out, fmt.Sprintf("quadrant task %s is %s but triage task %s is %s",
				field(q, "id"), field(q, "status"), field(t, "id"), field(t, "status")))
		}
	}
	return out
}

func field(s record.Snapshot, key string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
