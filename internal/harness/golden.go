package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// GoldenState is the rendering of a scenario outcome compared against golden
// files. Timestamps that only reflect when a write happened (created_at,
// updated_at) are left out; history is summarized.
type GoldenState struct {
	Scenario string                       `json:"scenario"`
	Steps    []StepOutcome                `json:"steps"`
	Records  map[string][]record.Snapshot `json:"records"`
	History  []HistorySummary             `json:"history"`
}

// HistorySummary is the golden rendering of one history entry.
type HistorySummary struct {
	ID         string `json:"id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Action     string `json:"action"`
	Undone     bool   `json:"undone"`
}

// writeStamps are dropped from golden records.
var writeStamps = []string{"created_at", "updated_at"}

// NewGoldenState renders result for golden comparison.
func NewGoldenState(name string, result *Result) GoldenState {
	g := GoldenState{
		Scenario: name,
		Steps:    result.Steps,
		Records:  map[string][]record.Snapshot{},
		History:  []HistorySummary{},
	}

	for key, snaps := range result.State {
		if key == record.KeyHistory {
			continue
		}
		out := make([]record.Snapshot, 0, len(snaps))
		for _, snap := range snaps {
			trimmed := make(record.Snapshot, len(snap))
			for k, v := range snap {
				trimmed[k] = v
			}
			for _, k := range writeStamps {
				delete(trimmed, k)
			}
			out = append(out, trimmed)
		}
		g.Records[key] = out
	}

	for _, h := range result.State[record.KeyHistory] {
		g.History = append(g.History, HistorySummary{
			ID:         field(h, "id"),
			EntityKind: field(h, "entity_kind"),
			EntityID:   field(h, "entity_id"),
			Action:     field(h, "action"),
			Undone:     field(h, "undone_at") != "",
		})
	}
	return g
}

// MarshalGolden renders result as indented JSON with a trailing newline.
func MarshalGolden(name string, result *Result) ([]byte, error) {
	data, err := json.MarshalIndent(NewGoldenState(name, result), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal golden state: %w", err)
	}
	return append(data, '\n'), nil
}

// RunWithGolden runs scenario, fails t on any scenario error and compares
// the outcome with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalGolden(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
