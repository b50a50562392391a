package engine

import (
	"time"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

const (
	// UrgentWindow is how close a due date must be for a task to be urgent.
	// Overdue tasks are urgent too.
	UrgentWindow = 7 * 24 * time.Hour

	// WeightyEstimateMinutes is the estimate above which a task is weighty.
	WeightyEstimateMinutes = 60

	highScore = 4
	lowScore  = 2
)

// workContexts are folded context tags that suggest a work setting.
var workContexts = map[string]bool{
	"work":    true,
	"office":  true,
	"meeting": true,
	"desk":    true,
}

// ClassifyInput carries the task fields the heuristic looks at.
type ClassifyInput struct {
	DueAt           *time.Time
	Effort          record.Effort
	Context         string
	EstimateMinutes int
}

// Classification is the outcome of Classify.
type Classification struct {
	Urgent     bool            `json:"urgent"`
	Weighty    bool            `json:"weighty"`
	Urgency    int             `json:"urgency"`
	Importance int             `json:"importance"`
	Quadrant   record.Quadrant `json:"quadrant"`
}

// InputFromTriage extracts the heuristic inputs of a triage task.
func InputFromTriage(t record.TriageTask) ClassifyInput {
	return ClassifyInput{
		DueAt:           t.DueAt,
		Effort:          t.Effort,
		Context:         t.Context,
		EstimateMinutes: t.EstimateMinutes,
	}
}

// Classify assigns urgency and importance.
//
//	urgent  && weighty -> 4/4 urgent-important
//	!urgent && weighty -> 2/4 not-urgent-important
//	urgent  && !weighty -> 4/2 urgent-not-important
//	otherwise          -> 2/2 not-urgent-not-important
func Classify(in ClassifyInput, now time.Time) Classification {
	c := Classification{
		Urgent:     in.DueAt != nil && in.DueAt.Sub(now) <= UrgentWindow,
		Weighty:    in.Effort == record.EffortHigh || IsWorkContext(in.Context) || in.EstimateMinutes > WeightyEstimateMinutes,
		Urgency:    lowScore,
		Importance: lowScore,
	}
	if c.Urgent {
		c.Urgency = highScore
	}
	if c.Weighty {
		c.Importance = highScore
	}
	c.Quadrant = record.QuadrantFor(c.Urgency, c.Importance)
	return c
}

// IsWorkContext reports whether a context tag suggests a work setting.
// "@Work", "work" and "OFFICE" all match.
func IsWorkContext(context string) bool {
	return workContexts[record.FoldTag(context)]
}
