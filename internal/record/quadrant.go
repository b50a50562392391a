package record

import "time"

// Quadrant is one of the four urgency/importance categories.
type Quadrant string

const (
	QuadrantDo        Quadrant = "urgent-important"
	QuadrantSchedule  Quadrant = "not-urgent-important"
	QuadrantDelegate  Quadrant = "urgent-not-important"
	QuadrantEliminate Quadrant = "not-urgent-not-important"
)

// ValidQuadrants defines the allowed quadrants.
var ValidQuadrants = map[Quadrant]bool{
	QuadrantDo:        true,
	QuadrantSchedule:  true,
	QuadrantDelegate:  true,
	QuadrantEliminate: true,
}

// Score bounds for urgency and importance.
const (
	MinScore = 1
	MaxScore = 5

	// ScoreThreshold is the score at or above which a task counts as urgent
	// (or important) when deriving its quadrant.
	ScoreThreshold = 3
)

// QuadrantFor derives the quadrant from urgency and importance scores.
func QuadrantFor(urgency, importance int) Quadrant {
	urgent := urgency >= ScoreThreshold
	important := importance >= ScoreThreshold
	switch {
	case urgent && important:
		return QuadrantDo
	case important:
		return QuadrantSchedule
	case urgent:
		return QuadrantDelegate
	default:
		return QuadrantEliminate
	}
}

// ClampScore bounds a score to [MinScore, MaxScore].
func ClampScore(s int) int {
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}

// QuadrantStatus is the lifecycle status of a quadrant task.
type QuadrantStatus string

const (
	QuadrantPending    QuadrantStatus = "pending"
	QuadrantInProgress QuadrantStatus = "in-progress"
	QuadrantCompleted  QuadrantStatus = "completed"
)

// QuadrantTask is the urgency/importance representation of a unit of work.
type QuadrantTask struct {
	Base
	Title       string         `json:"title"`
	Notes       string         `json:"notes,omitempty"`
	GTDTaskID   string         `json:"gtd_task_id,omitempty"`
	Urgency     int            `json:"urgency"`
	Importance  int            `json:"importance"`
	Quadrant    Quadrant       `json:"quadrant"`
	Status      QuadrantStatus `json:"status"`
	DueAt       *time.Time     `json:"due_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

func (QuadrantTask) RecordKind() Kind { return KindQuadrant }

// IsCompleted reports whether the task is done.
func (t QuadrantTask) IsCompleted() bool { return t.Status == QuadrantCompleted }

// IsPaired reports whether the task was derived from a triage task.
func (t QuadrantTask) IsPaired() bool { return t.GTDTaskID != "" }
