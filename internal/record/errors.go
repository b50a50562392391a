package record

import (
	"errors"
	"fmt"
)

// Error is a typed failure surfaced by stores, the synchronizer and the
// history ledger.
//
// Error codes:
//   - NotFound: the identifier does not exist in the target store
//   - PersistenceFailure: the substrate rejected a read or write
//   - NotUndoable: undo requested on an entry that cannot be undone
//   - PairingInconsistency: a back-reference points at a missing record
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Kind is the entity kind or store key involved, if any.
	Kind string

	// ID is the record identifier involved, if any.
	ID string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause (optional).
	Err error
}

// ErrorCode categorizes core errors.
type ErrorCode string

const (
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodePersistenceFailure   ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeNotUndoable          ErrorCode = "NOT_UNDOABLE"
	ErrCodePairingInconsistency ErrorCode = "PAIRING_INCONSISTENCY"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Kind != "" && e.ID != "" {
		msg = fmt.Sprintf("%s (%s=%s)", msg, e.Kind, e.ID)
	} else if e.Kind != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Kind)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// NewNotFound creates an Error for a missing record.
func NewNotFound(kind, id string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Kind:    kind,
		ID:      id,
		Message: "record not found",
	}
}

// NewPersistenceFailure creates an Error wrapping a substrate failure.
func NewPersistenceFailure(kind string, err error) *Error {
	return &Error{
		Code:    ErrCodePersistenceFailure,
		Kind:    kind,
		Message: "substrate rejected write",
		Err:     err,
	}
}

// NewNotUndoable creates an Error for a history entry that cannot be undone.
func NewNotUndoable(id, reason string) *Error {
	return &Error{
		Code:    ErrCodeNotUndoable,
		Kind:    string(KindHistory),
		ID:      id,
		Message: reason,
	}
}

// NewPairingInconsistency creates an Error for a dangling back-reference.
func NewPairingInconsistency(kind, id, missing string) *Error {
	return &Error{
		Code:    ErrCodePairingInconsistency,
		Kind:    kind,
		ID:      id,
		Message: fmt.Sprintf("paired record %s no longer exists", missing),
	}
}

// IsNotFound returns true if err is a NotFound error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsPersistenceFailure returns true if err is a PersistenceFailure error.
func IsPersistenceFailure(err error) bool { return hasCode(err, ErrCodePersistenceFailure) }

// IsNotUndoable returns true if err is a NotUndoable error.
func IsNotUndoable(err error) bool { return hasCode(err, ErrCodeNotUndoable) }

// IsPairingInconsistency returns true if err is a PairingInconsistency error.
func IsPairingInconsistency(err error) bool { return hasCode(err, ErrCodePairingInconsistency) }

// CodeOf returns the error code of err, or "" when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
