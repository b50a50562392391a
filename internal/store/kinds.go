package store

import "github.com/viniciuscfreitas/gtdflow/internal/record"

// Concrete stores, one per record kind.
type (
	TriageStore    = Store[record.TriageTask, *record.TriageTask]
	QuadrantStore  = Store[record.QuadrantTask, *record.QuadrantTask]
	FocusStore     = Store[record.FocusSession, *record.FocusSession]
	ObjectiveStore = Store[record.Objective, *record.Objective]
	HistoryStore   = Store[record.HistoryEntry, *record.HistoryEntry]
)
