package engine

import (
	"context"
	"fmt"

	"github.com/viniciuscfreitas/gtdflow/internal/history"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/store"
)

// entityOps are the kind-independent writes undo needs.
type entityOps interface {
	update(ctx context.Context, id string, patch record.Patch) (before, after any, err error)
	delete(ctx context.Context, id string) error
	restore(ctx context.Context, snapshot record.Snapshot) error
}

type storeOps[T any, P record.Entity[T]] struct {
	s *store.Store[T, P]
}

func (o storeOps[T, P]) update(ctx context.Context, id string, patch record.Patch) (any, any, error) {
	var before T
	after, err := o.s.UpdateWith(ctx, id, func(cur T) (record.Patch, error) {
		before = cur
		return patch, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

func (o storeOps[T, P]) delete(ctx context.Context, id string) error {
	_, err := o.s.Delete(ctx, id)
	return err
}

func (o storeOps[T, P]) restore(ctx context.Context, snapshot record.Snapshot) error {
	var zero T
	rec, err := record.ApplyPatch(zero, snapshot.Patch())
	if err != nil {
		return err
	}
	_, err = o.s.Restore(ctx, rec)
	return err
}

// Undo reverts a history entry once.
//
// Compensation by action:
//   - create: delete the record, and for tasks its pair, interrupting focus
//     sessions as DeleteTask does (already gone counts as done)
//   - delete: restore the record under its original identifier; a quadrant
//     task replaces any pair auto-imported for its triage task meanwhile
//   - complete, uncomplete: restore the prior completion fields and mirror
//     the resulting state to the pair
//   - update, status-change: restore the prior values of the changed fields;
//     a triage task that is no longer actionable loses its pair
//
// Errors: NotUndoable for a missing, never undoable or already undone entry.
// A failing compensation leaves the entry undoable.
func (e *Engine) Undo(ctx context.Context, historyID string) (record.HistoryEntry, error) {
	entry, err := e.ledger.Get(ctx, historyID)
	if record.IsNotFound(err) {
		return record.HistoryEntry{}, record.NewNotUndoable(historyID, "history entry not found")
	}
	if err != nil {
		return record.HistoryEntry{}, fmt.Errorf("undo %s: %w", historyID, err)
	}

	w, err := e.compensator(entry)
	if err != nil {
		return record.HistoryEntry{}, err
	}
	return e.ledger.Undo(ctx, historyID, w)
}

func (e *Engine) compensator(entry record.HistoryEntry) (history.Writer, error) {
	ops, ok := e.ops[entry.EntityKind]
	if !ok {
		return nil, record.NewNotUndoable(entry.ID, fmt.Sprintf("no compensation for kind %q", entry.EntityKind))
	}
	id := entry.EntityID

	switch entry.Action {
	case record.ActionCreate:
		return func(ctx context.Context, _ record.Snapshot) error {
			var err error
			if entry.EntityKind == record.KindTriage || entry.EntityKind == record.KindQuadrant {
				_, err = e.deleteTask(ctx, DeleteResult{Kind: entry.EntityKind, ID: id, untracked: true})
			} else {
				err = ops.delete(ctx, id)
			}
			if record.IsNotFound(err) {
				e.logger.Info("undo create: record already gone", "kind", entry.EntityKind, "id", id)
				return nil
			}
			return err
		}, nil

	case record.ActionDelete:
		return func(ctx context.Context, before record.Snapshot) error {
			if len(before) == 0 {
				return fmt.Errorf("no snapshot of deleted %s %s", entry.EntityKind, id)
			}
			if entry.EntityKind == record.KindQuadrant {
				if err := e.dropReimported(ctx, id, before); err != nil {
					return err
				}
			}
			return ops.restore(ctx, before)
		}, nil

	case record.ActionComplete, record.ActionUncomplete:
		return func(ctx context.Context, before record.Snapshot) error {
			return e.undoCompletion(ctx, entry.EntityKind, id, ops, before)
		}, nil

	case record.ActionUpdate, record.ActionStatusChange:
		return func(ctx context.Context, before record.Snapshot) error {
			_, after, err := ops.update(ctx, id, before.Patch())
			if err != nil {
				return err
			}
			if t, ok := after.(record.TriageTask); ok && !t.IsActionable() {
				e.unpair(ctx, t)
			}
			return nil
		}, nil
	}
	return nil, record.NewNotUndoable(entry.ID, fmt.Sprintf("no compensation for action %q", entry.Action))
}

// dropReimported deletes the quadrant task auto-import created for the
// triage task a deleted quadrant task (quadrantID) pointed to, so that
// restoring it keeps one quadrant task per triage task.
func (e *Engine) dropReimported(ctx context.Context, quadrantID string, before record.Snapshot) error {
	triageID, _ := before["gtd_task_id"].(string)
	if triageID == "" {
		return nil
	}
	pair, ok, err := e.PairedQuadrant(ctx, triageID)
	if err != nil || !ok || pair.ID == quadrantID {
		return err
	}
	if _, err := e.quadrant.Delete(ctx, pair.ID); err != nil && !record.IsNotFound(err) {
		return err
	}
	e.logger.Info("undo delete: replaced re-imported quadrant task",
		"restored", quadrantID,
		"replaced", pair.ID,
		"triage_id", triageID,
	)
	return nil
}

// undoCompletion restores the primary's completion fields, then mirrors the
// restored state to the pair. A pair failure is logged, not returned.
func (e *Engine) undoCompletion(ctx context.Context, kind record.Kind, id string, ops entityOps, before record.Snapshot) error {
	_, after, err := ops.update(ctx, id, before.Patch())
	if err != nil {
		return err
	}

	switch rec := after.(type) {
	case record.TriageTask:
		_, err = e.mirrorToQuadrant(ctx, rec.ID, rec.IsCompleted(), rec.CompletedAt)
	case record.QuadrantTask:
		_, err = e.mirrorToTriage(ctx, rec, rec.IsCompleted(), rec.CompletedAt)
	}
	if err != nil {
		e.logger.Warn("undo completion: pair not restored",
			"kind", kind,
			"id", id,
			"error", err,
		)
	}
	return nil
}
