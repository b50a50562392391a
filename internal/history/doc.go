// Package history implements the action history ledger: an append-only audit
// trail of user-visible mutations with single-use compensating undo.
//
// Entries live in their own store (record.KeyHistory) so they are durable,
// observable on the bus and stamped like every other record. An entry is
// mutated exactly once, when it is undone.
//
// Undo protocol:
//  1. Take the ledger's undo lock
//  2. Re-read the entry; missing or already undone is NotUndoable
//  3. Run the caller's compensating writer with the entry's Before snapshot
//  4. Only if the writer succeeded, mark the entry UndoneAt = now, CanUndo = false
//
// A failing writer leaves the entry undoable and returns the failure.
package history
