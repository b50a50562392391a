package record

import "time"

// ObjectiveStatus is the lifecycle status of an objective.
type ObjectiveStatus string

const (
	ObjectiveActive    ObjectiveStatus = "active"
	ObjectiveAchieved  ObjectiveStatus = "achieved"
	ObjectiveAbandoned ObjectiveStatus = "abandoned"
)

// Objective is a longer-running goal whose progress is tracked in percent.
type Objective struct {
	Base
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	TargetDate  *time.Time      `json:"target_date,omitempty"`
	Progress    int             `json:"progress"`
	Status      ObjectiveStatus `json:"status"`
}

func (Objective) RecordKind() Kind { return KindObjective }
