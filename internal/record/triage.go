package record

import "time"

// TriageKind is the lifecycle kind of a triage (inbox/next-action) task.
type TriageKind string

const (
	TriageInbox     TriageKind = "inbox"
	TriageNext      TriageKind = "next"
	TriageWaiting   TriageKind = "waiting"
	TriageSomeday   TriageKind = "someday"
	TriageReference TriageKind = "reference"
	TriageProject   TriageKind = "project"
)

// ValidTriageKinds defines the allowed triage kinds.
var ValidTriageKinds = map[TriageKind]bool{
	TriageInbox:     true,
	TriageNext:      true,
	TriageWaiting:   true,
	TriageSomeday:   true,
	TriageReference: true,
	TriageProject:   true,
}

// TriageStatus is the lifecycle status of a triage task.
type TriageStatus string

const (
	TriageActive    TriageStatus = "active"
	TriageCompleted TriageStatus = "completed"
	TriageCancelled TriageStatus = "cancelled"
)

// Effort is the energy a task requires.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// ValidEfforts defines the allowed effort levels.
var ValidEfforts = map[Effort]bool{
	EffortLow:    true,
	EffortMedium: true,
	EffortHigh:   true,
}

// TriageTask is the inbox/next-action representation of a unit of work.
type TriageTask struct {
	Base
	Title           string       `json:"title"`
	Notes           string       `json:"notes,omitempty"`
	Kind            TriageKind   `json:"kind"`
	Status          TriageStatus `json:"status"`
	Context         string       `json:"context,omitempty"`
	Area            string       `json:"area,omitempty"`
	DueAt           *time.Time   `json:"due_at,omitempty"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	Effort          Effort       `json:"effort,omitempty"`
	EstimateMinutes int          `json:"estimate_minutes,omitempty"`
	ParentID        string       `json:"parent_id,omitempty"`
	Labels          []string     `json:"labels,omitempty"`
	DelegatedTo     string       `json:"delegated_to,omitempty"`
}

func (TriageTask) RecordKind() Kind { return KindTriage }

// IsActionable reports whether the task kind may be paired with a quadrant task.
func (t TriageTask) IsActionable() bool {
	return t.Kind == TriageNext || t.Kind == TriageWaiting
}

// IsCompleted reports whether the task is done.
func (t TriageTask) IsCompleted() bool { return t.Status == TriageCompleted }
