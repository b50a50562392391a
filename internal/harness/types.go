package harness

import "github.com/viniciuscfreitas/gtdflow/internal/record"

// Trace event types.
const (
	TraceTypeStep  = "step"
	TraceTypeEvent = "event"
)

// TraceEvent is one entry of a scenario trace: either a flow step or a bus
// event published while a step ran.
type TraceEvent struct {
	Type    string `json:"type"`
	Action  string `json:"action"`
	Store   string `json:"store,omitempty"`
	ID      string `json:"id,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Seq     int    `json:"seq"`
}

// State maps a store key to the snapshots of its records in store order.
type State map[string][]record.Snapshot

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every step met its expectation, every assertion
	// held and no principle was violated.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Steps holds one outcome per flow step.
	Steps []StepOutcome `json:"steps"`

	// Bindings are the identifiers bound by as, history_as and pair_as.
	Bindings map[string]string `json:"bindings,omitempty"`

	State State `json:"state,omitempty"`
}

// StepOutcome summarizes one executed flow step. Outcome is "ok" or the
// record error code of the failure ("error" when the failure has none).
type StepOutcome struct {
	Action  string `json:"action"`
	ID      string `json:"id,omitempty"`
	Outcome string `json:"outcome"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Steps:    []StepOutcome{},
		Bindings: map[string]string{},
		State:    State{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addTrace appends ev with the next sequence number and returns its index.
func (r *Result) addTrace(ev TraceEvent) int {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
	return len(r.Trace) - 1
}
