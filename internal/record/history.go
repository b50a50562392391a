package record

import "time"

// Action tags a history entry.
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionComplete     Action = "complete"
	ActionUncomplete   Action = "uncomplete"
	ActionStatusChange Action = "status-change"
)

// HistoryEntry is one append-only audit record. It is mutated exactly once,
// when it is undone.
type HistoryEntry struct {
	Base
	EntityKind  Kind       `json:"entity_kind"`
	EntityID    string     `json:"entity_id"`
	Action      Action     `json:"action"`
	Before      Snapshot   `json:"before,omitempty"`
	After       Snapshot   `json:"after,omitempty"`
	Description string     `json:"description"`
	CanUndo     bool       `json:"can_undo"`
	UndoneAt    *time.Time `json:"undone_at,omitempty"`
}

func (HistoryEntry) RecordKind() Kind { return KindHistory }

// Undoable reports whether the entry can still be undone.
func (h HistoryEntry) Undoable() bool {
	return h.CanUndo && h.UndoneAt == nil
}
