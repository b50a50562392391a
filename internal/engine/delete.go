package engine

import (
	"context"
	"fmt"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// DeleteResult reports what DeleteTask removed.
type DeleteResult struct {
	Kind record.Kind `json:"kind"`
	ID   string      `json:"id"`

	// PairKind and PairID name the paired record that was removed, if any.
	PairKind record.Kind `json:"pair_kind,omitempty"`
	PairID   string      `json:"pair_id,omitempty"`

	// Interrupted are the running focus sessions stopped by the deletion.
	Interrupted []record.FocusSession `json:"interrupted,omitempty"`

	// Entries are the history entries recorded, one per removed record.
	Entries []record.HistoryEntry `json:"entries,omitempty"`

	// PairErr is the non-fatal failure to remove the paired record.
	PairErr error `json:"-"`

	untracked bool
}

// DeleteTask removes a task and its pair.
//
// The primary deletion is the caller's explicit intent: its failure is
// returned and nothing else happens. Failure to remove the pair is logged and
// reported in DeleteResult.PairErr without undoing the primary deletion.
// Running focus sessions referencing a removed identifier are interrupted.
func (e *Engine) DeleteTask(ctx context.Context, id string, kind record.Kind) (DeleteResult, error) {
	return e.deleteTask(ctx, DeleteResult{Kind: kind, ID: id})
}

// deleteTask runs a deletion. An untracked result records no history, for
// compensations that remove what an undone entry created.
func (e *Engine) deleteTask(ctx context.Context, res DeleteResult) (DeleteResult, error) {
	id, kind := res.ID, res.Kind

	switch kind {
	case record.KindTriage:
		removed, err := e.triage.Delete(ctx, id)
		if err != nil {
			return res, fmt.Errorf("delete %s: %w", id, err)
		}
		e.recordDeletion(ctx, &res, kind, id, removed.Title, removed)
		e.deleteQuadrantPair(ctx, &res, id)

	case record.KindQuadrant:
		removed, err := e.quadrant.Delete(ctx, id)
		if err != nil {
			return res, fmt.Errorf("delete %s: %w", id, err)
		}
		e.recordDeletion(ctx, &res, kind, id, removed.Title, removed)
		e.deleteTriagePair(ctx, &res, removed)

	default:
		return res, fmt.Errorf("delete %s: unsupported kind %q", id, kind)
	}

	ids := []string{id}
	if res.PairID != "" {
		ids = append(ids, res.PairID)
	}
	res.Interrupted = e.finalizeSessions(ctx, ids, record.FocusInterrupted)

	e.logger.Info("task deleted",
		"kind", kind,
		"id", id,
		"pair_id", res.PairID,
		"interrupted", len(res.Interrupted),
	)
	return res, nil
}

func (e *Engine) deleteQuadrantPair(ctx context.Context, res *DeleteResult, triageID string) {
	pair, ok, err := e.PairedQuadrant(ctx, triageID)
	if err != nil {
		res.PairErr = err
		e.logPairFailure("delete", triageID, err)
		return
	}
	if !ok {
		return
	}

	removed, err := e.quadrant.Delete(ctx, pair.ID)
	if record.IsNotFound(err) {
		return
	}
	if err != nil {
		res.PairErr = err
		e.logPairFailure("delete", pair.ID, err)
		return
	}
	res.PairKind, res.PairID = record.KindQuadrant, removed.ID
	e.recordDeletion(ctx, res, record.KindQuadrant, removed.ID, removed.Title, removed)
}

func (e *Engine) deleteTriagePair(ctx context.Context, res *DeleteResult, q record.QuadrantTask) {
	if !q.IsPaired() {
		return
	}

	removed, err := e.triage.Delete(ctx, q.GTDTaskID)
	if record.IsNotFound(err) {
		e.warnInconsistent(q.ID, q.GTDTaskID)
		return
	}
	if err != nil {
		res.PairErr = err
		e.logPairFailure("delete", q.GTDTaskID, err)
		return
	}
	res.PairKind, res.PairID = record.KindTriage, removed.ID
	e.recordDeletion(ctx, res, record.KindTriage, removed.ID, removed.Title, removed)
}

// recordDeletion records a delete entry carrying the full removed record so
// it can be restored. A ledger failure is logged; the deletion stands.
func (e *Engine) recordDeletion(ctx context.Context, res *DeleteResult, kind record.Kind, id, title string, removed any) {
	if res.untracked {
		return
	}
	entry, err := e.recordHistory(ctx, kind, id, record.ActionDelete, removed, nil, nil,
		fmt.Sprintf("Deleted %q", title))
	if err != nil {
		e.logger.Error("deletion not recorded",
			"kind", kind,
			"id", id,
			"error", err,
		)
		return
	}
	res.Entries = append(res.Entries, *entry)
}
