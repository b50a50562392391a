package record

import "time"

// Kind identifies one entity kind. The set is closed.
type Kind string

const (
	KindTriage    Kind = "gtd"
	KindQuadrant  Kind = "eisenhower"
	KindFocus     Kind = "focus"
	KindObjective Kind = "objective"
	KindHistory   Kind = "history"
)

// Store keys, one per entity kind.
const (
	KeyTriage    = "gtd-items"
	KeyQuadrant  = "eisenhower-tasks"
	KeyFocus     = "focus-sessions"
	KeyObjective = "objectives"
	KeyHistory   = "action-history"
)

// ValidKinds defines the allowed entity kinds.
var ValidKinds = map[Kind]bool{
	KindTriage:    true,
	KindQuadrant:  true,
	KindFocus:     true,
	KindObjective: true,
	KindHistory:   true,
}

// StoreKey returns the persistent key for a kind, or "" for an unknown kind.
func (k Kind) StoreKey() string {
	switch k {
	case KindTriage:
		return KeyTriage
	case KindQuadrant:
		return KeyQuadrant
	case KindFocus:
		return KeyFocus
	case KindObjective:
		return KeyObjective
	case KindHistory:
		return KeyHistory
	}
	return ""
}

// ParseKind converts a string into a Kind. The long names "triage" and
// "quadrant" are accepted as aliases.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "triage":
		return KindTriage, true
	case "quadrant":
		return KindQuadrant, true
	}
	k := Kind(s)
	return k, ValidKinds[k]
}

// Base holds the fields shared by every entity kind.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    string    `json:"user_id,omitempty"`
}

// Meta returns the base fields. Promoted to every embedding type so that
// generic stores can stamp identifiers and timestamps.
func (b *Base) Meta() *Base { return b }

// Entity is the constraint satisfied by a pointer to any record type.
//
// Usage: store.New[record.TriageTask](...) infers P = *record.TriageTask.
type Entity[T any] interface {
	*T
	Meta() *Base
	RecordKind() Kind
}
