package record

import "time"

// FocusStatus is the lifecycle status of a focus session.
type FocusStatus string

const (
	FocusPlanned     FocusStatus = "planned"
	FocusActive      FocusStatus = "active"
	FocusCompleted   FocusStatus = "completed"
	FocusInterrupted FocusStatus = "interrupted"
)

// FocusSession is a timed block of work, optionally tied to a task.
type FocusSession struct {
	Base
	TaskID         string      `json:"task_id,omitempty"`
	PlannedMinutes int         `json:"planned_minutes"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	EndedAt        *time.Time  `json:"ended_at,omitempty"`
	Status         FocusStatus `json:"status"`
	Interruptions  int         `json:"interruptions"`
}

func (FocusSession) RecordKind() Kind { return KindFocus }

// IsRunning reports whether the session is still in flight.
func (s FocusSession) IsRunning() bool {
	return s.Status == FocusActive || s.Status == FocusPlanned
}
