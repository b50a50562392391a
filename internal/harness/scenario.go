package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted flow of user actions plus the checks to run on its
// outcome.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Now is the RFC 3339 instant the fake clock starts at. Defaults to
	// testutil.DefaultEpoch.
	Now string `yaml:"now,omitempty"`

	// AutoImport overrides engine.auto_import (default true).
	AutoImport *bool `yaml:"auto_import,omitempty"`

	// Setup steps run before the flow and must all succeed. They are not
	// traced.
	Setup []Step `yaml:"setup,omitempty"`

	Flow       []Step      `yaml:"flow"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one user action.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	Args map[string]any `yaml:"args,omitempty"`

	// As binds the identifier of the record the step produced or touched.
	As string `yaml:"as,omitempty"`

	// HistoryAs binds the first history entry recorded by the step.
	HistoryAs string `yaml:"history_as,omitempty"`

	// PairHistoryAs binds the second history entry recorded by the step:
	// the paired record's entry for completions and deletions.
	PairHistoryAs string `yaml:"pair_history_as,omitempty"`

	// PairAs binds the identifier of the record paired with the step's
	// record after the step ran.
	PairAs string `yaml:"pair_as,omitempty"`

	// Expect is checked against the step's outcome. Without it the step
	// must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the expected outcome of a step.
type Expect struct {
	// Error is the expected record error code (NOT_FOUND, NOT_UNDOABLE,
	// ...), or "any" for any failure.
	Error string `yaml:"error,omitempty"`

	// Result is a subset of the fields of the step's record.
	Result map[string]any `yaml:"result,omitempty"`
}

// Step actions.
const (
	ActionCapture      = "capture"
	ActionProcess      = "process"
	ActionUpdate       = "update"
	ActionComplete     = "complete"
	ActionUncomplete   = "uncomplete"
	ActionDelete       = "delete"
	ActionImport       = "import"
	ActionUndo         = "undo"
	ActionStartFocus   = "start_focus"
	ActionStopFocus    = "stop_focus"
	ActionAddObjective = "add_objective"
	ActionSetProgress  = "set_progress"
	ActionAdvanceClock = "advance_clock"
)

var knownActions = map[string]bool{
	ActionCapture:      true,
	ActionProcess:      true,
	ActionUpdate:       true,
	ActionComplete:     true,
	ActionUncomplete:   true,
	ActionDelete:       true,
	ActionImport:       true,
	ActionUndo:         true,
	ActionStartFocus:   true,
	ActionStopFocus:    true,
	ActionAddObjective: true,
	ActionSetProgress:  true,
	ActionAdvanceClock: true,
}

// Assertion checks the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action names a step action, or a bus action when Store is set
	// (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Store restricts trace assertions to bus events of that store, and
	// names the store for state assertions.
	Store string `yaml:"store,omitempty"`

	// ID restricts trace assertions to one record or step identifier.
	ID string `yaml:"id,omitempty"`

	// Outcome is the expected step outcome (trace_contains on steps).
	Outcome string `yaml:"outcome,omitempty"`

	// Actions are step actions that must appear in this order
	// (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Where selects records by field values (final_state, state_count).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds the field values the selected record must have
	// (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of matches (trace_count, state_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertStateCount    = "state_count"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so that typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
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

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Now != "" {
		if _, err := time.Parse(time.RFC3339, s.Now); err != nil {
			return fmt.Errorf("now: %w", err)
		}
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Action == "" {
		return fmt.Errorf("action is required")
	}
	if !knownActions[step.Action] {
		return fmt.Errorf("unknown action %q", step.Action)
	}
	if step.Expect != nil && step.Expect.Error != "" && step.Expect.Result != nil {
		return fmt.Errorf("expect: error and result are mutually exclusive")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("action is required for trace_contains")
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("actions list is required for trace_order")
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("action is required for trace_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	case AssertFinalState:
		if a.Store == "" {
			return fmt.Errorf("store is required for final_state")
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("expect is required for final_state")
		}
	case AssertStateCount:
		if a.Store == "" {
			return fmt.Errorf("store is required for state_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for state_count")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
