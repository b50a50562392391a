package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// completionFields are the fields a completion change touches.
var completionFields = []string{"status", "completed_at"}

// CompleteResult reports what CompleteTask changed.
type CompleteResult struct {
	// Triage and Quadrant hold the current version of each side of the
	// pair that exists.
	Triage   *record.TriageTask
	Quadrant *record.QuadrantTask

	// Changed is false when the primary record was already in the
	// requested state.
	Changed bool

	// Sessions are the focus sessions finalized by this call.
	Sessions []record.FocusSession

	// Entry is the history entry recorded for the primary, if any.
	Entry *record.HistoryEntry

	// PairErr is the non-fatal failure to update the paired record.
	PairErr error
}

// CompleteTask sets the completion state of a task and of its pair.
//
// Completing stamps CompletedAt (an already completed task keeps its
// original timestamp); reopening clears it and sets status active for
// triage tasks and pending for quadrant tasks. When completing, active
// focus sessions referencing either identifier are finalized.
//
// Errors: NotFound or PersistenceFailure for the primary record. A failed
// pair update is logged and returned in CompleteResult.PairErr.
func (e *Engine) CompleteTask(ctx context.Context, id string, kind record.Kind, completed bool) (CompleteResult, error) {
	switch kind {
	case record.KindTriage:
		return e.completeTriage(ctx, id, completed)
	case record.KindQuadrant:
		return e.completeQuadrant(ctx, id, completed)
	}
	return CompleteResult{}, fmt.Errorf("complete %s: unsupported kind %q", id, kind)
}

func (e *Engine) completeTriage(ctx context.Context, id string, completed bool) (CompleteResult, error) {
	var res CompleteResult
	now := e.clock.Now()

	var before record.TriageTask
	t, err := e.triage.UpdateWith(ctx, id, func(cur record.TriageTask) (record.Patch, error) {
		before = cur
		return triageCompletionPatch(cur, completed, now), nil
	})
	if err != nil {
		return res, fmt.Errorf("complete %s: %w", id, err)
	}
	res.Triage = &t
	res.Changed = before.Status != t.Status || !sameTime(before.CompletedAt, t.CompletedAt)

	q, err := e.mirrorToQuadrant(ctx, t.ID, completed, t.CompletedAt)
	if err != nil {
		res.PairErr = err
	}
	res.Quadrant = q

	ids := []string{t.ID}
	if q != nil {
		ids = append(ids, q.ID)
	}
	return e.finishCompletion(ctx, res, record.KindTriage, t.ID, t.Title, before, t, completed, ids)
}

func (e *Engine) completeQuadrant(ctx context.Context, id string, completed bool) (CompleteResult, error) {
	var res CompleteResult
	now := e.clock.Now()

	var before record.QuadrantTask
	q, err := e.quadrant.UpdateWith(ctx, id, func(cur record.QuadrantTask) (record.Patch, error) {
		before = cur
		return quadrantCompletionPatch(cur, completed, now), nil
	})
	if err != nil {
		return res, fmt.Errorf("complete %s: %w", id, err)
	}
	res.Quadrant = &q
	res.Changed = before.Status != q.Status || !sameTime(before.CompletedAt, q.CompletedAt)

	t, err := e.mirrorToTriage(ctx, q, completed, q.CompletedAt)
	if err != nil {
		res.PairErr = err
	}
	res.Triage = t

	ids := []string{q.ID}
	if t != nil {
		ids = append(ids, t.ID)
	}
	return e.finishCompletion(ctx, res, record.KindQuadrant, q.ID, q.Title, before, q, completed, ids)
}

// finishCompletion finalizes focus sessions and records history for the
// primary change.
func (e *Engine) finishCompletion(ctx context.Context, res CompleteResult, kind record.Kind, id, title string, before, after any, completed bool, ids []string) (CompleteResult, error) {
	if completed {
		res.Sessions = e.finalizeSessions(ctx, ids, record.FocusCompleted)
	}

	if !res.Changed {
		return res, nil
	}

	action, verb := record.ActionComplete, "Completed"
	if !completed {
		action, verb = record.ActionUncomplete, "Reopened"
	}
	entry, err := e.recordHistory(ctx, kind, id, action, before, after, completionFields,
		fmt.Sprintf("%s %q", verb, title))
	if err != nil {
		return res, fmt.Errorf("complete %s: %w", id, err)
	}
	res.Entry = entry

	e.logger.Info("task completion changed",
		"kind", kind,
		"id", id,
		"completed", completed,
		"paired", res.Triage != nil && res.Quadrant != nil,
		"sessions", len(res.Sessions),
	)
	return res, nil
}

// mirrorToQuadrant applies a completion change to the quadrant task paired
// with triageID. Returns nil when there is no pair.
func (e *Engine) mirrorToQuadrant(ctx context.Context, triageID string, completed bool, at *time.Time) (*record.QuadrantTask, error) {
	pair, ok, err := e.PairedQuadrant(ctx, triageID)
	if err != nil {
		e.logPairFailure("complete", triageID, err)
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	q, err := e.quadrant.UpdateWith(ctx, pair.ID, func(cur record.QuadrantTask) (record.Patch, error) {
		return quadrantCompletionPatch(cur, completed, stampOr(at, e.clock.Now())), nil
	})
	if record.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		e.logPairFailure("complete", pair.ID, err)
		return &pair, err
	}
	return &q, nil
}

// mirrorToTriage applies a completion change to the triage task q
// references. Returns nil when there is no pair.
func (e *Engine) mirrorToTriage(ctx context.Context, q record.QuadrantTask, completed bool, at *time.Time) (*record.TriageTask, error) {
	pair, ok, err := e.PairedTriage(ctx, q)
	if err != nil {
		e.logPairFailure("complete", q.GTDTaskID, err)
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	t, err := e.triage.UpdateWith(ctx, pair.ID, func(cur record.TriageTask) (record.Patch, error) {
		return triageCompletionPatch(cur, completed, stampOr(at, e.clock.Now())), nil
	})
	if record.IsNotFound(err) {
		e.warnInconsistent(q.ID, pair.ID)
		return nil, nil
	}
	if err != nil {
		e.logPairFailure("complete", pair.ID, err)
		return &pair, err
	}
	return &t, nil
}

func (e *Engine) logPairFailure(op, id string, err error) {
	e.logger.Warn("paired record not updated",
		"op", op,
		"pair_id", id,
		"error", err,
	)
}

// finalizeSessions moves running focus sessions referencing any of ids to
// status. Completion only finalizes active sessions; interruption also
// covers planned ones. Failures are logged per session.
func (e *Engine) finalizeSessions(ctx context.Context, ids []string, status record.FocusStatus) []record.FocusSession {
	refs := make(map[string]bool, len(ids))
	for _, id := range ids {
		refs[id] = true
	}
	affected := func(s record.FocusSession) bool {
		if !refs[s.TaskID] {
			return false
		}
		if status == record.FocusCompleted {
			return s.Status == record.FocusActive
		}
		return s.IsRunning()
	}

	sessions, err := e.focus.Find(ctx, affected)
	if err != nil {
		e.logger.Warn("focus sessions not finalized", "error", err)
		return nil
	}

	var out []record.FocusSession
	for _, s := range sessions {
		now := e.clock.Now()
		updated, err := e.focus.UpdateWith(ctx, s.ID, func(cur record.FocusSession) (record.Patch, error) {
			if !affected(cur) {
				return nil, nil
			}
			return record.Patch{"status": status, "ended_at": now}, nil
		})
		if err != nil {
			e.logger.Warn("focus session not finalized",
				"session", s.ID,
				"error", err,
			)
			continue
		}
		if updated.Status == status {
			out = append(out, updated)
		}
	}
	return out
}

// triageCompletionPatch returns the patch moving t to the requested
// completion state, or nil when it is already there.
func triageCompletionPatch(t record.TriageTask, completed bool, now time.Time) record.Patch {
	if completed {
		if t.Status == record.TriageCompleted && t.CompletedAt != nil {
			return nil
		}
		return record.Patch{"status": record.TriageCompleted, "completed_at": stampOr(t.CompletedAt, now)}
	}
	if t.Status != record.TriageCompleted && t.CompletedAt == nil {
		return nil
	}
	return record.Patch{"status": record.TriageActive, "completed_at": nil}
}

// quadrantCompletionPatch is triageCompletionPatch for quadrant tasks.
// Reopening sets pending.
func quadrantCompletionPatch(q record.QuadrantTask, completed bool, now time.Time) record.Patch {
	if completed {
		if q.Status == record.QuadrantCompleted && q.CompletedAt != nil {
			return nil
		}
		return record.Patch{"status": record.QuadrantCompleted, "completed_at": stampOr(q.CompletedAt, now)}
	}
	if q.Status != record.QuadrantCompleted && q.CompletedAt == nil {
		return nil
	}
	return record.Patch{"status": record.QuadrantPending, "completed_at": nil}
}

func stampOr(t *time.Time, now time.Time) time.Time {
	if t != nil {
		return *t
	}
	return now
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
