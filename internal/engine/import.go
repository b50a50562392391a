package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// AutoImport creates a quadrant task for every active, actionable triage
// task that has none. Safe to call repeatedly: the pairing check runs inside
// the quadrant store's critical section.
//
// Returns the quadrant tasks created by this call.
func (e *Engine) AutoImport(ctx context.Context) ([]record.QuadrantTask, error) {
	candidates, err := e.triage.Find(ctx, func(t record.TriageTask) bool {
		return t.Status == record.TriageActive && t.IsActionable()
	})
	if err != nil {
		return nil, fmt.Errorf("auto-import: %w", err)
	}

	created := []record.QuadrantTask{}
	for _, t := range candidates {
		q, ok, err := e.importOne(ctx, t)
		if err != nil {
			return created, fmt.Errorf("auto-import %s: %w", t.ID, err)
		}
		if ok {
			created = append(created, q)
		}
	}

	if len(created) > 0 {
		e.logger.Info("auto-import", "created", len(created))
	}
	return created, nil
}

func (e *Engine) importOne(ctx context.Context, t record.TriageTask) (record.QuadrantTask, bool, error) {
	c := Classify(InputFromTriage(t), e.clock.Now())

	q, created, err := e.quadrant.CreateUnique(ctx, record.QuadrantTask{
		Title:      t.Title,
		Notes:      t.Notes,
		GTDTaskID:  t.ID,
		Urgency:    c.Urgency,
		Importance: c.Importance,
		Quadrant:   c.Quadrant,
		Status:     record.QuadrantPending,
		DueAt:      t.DueAt,
	}, func(existing record.QuadrantTask) bool {
		return existing.GTDTaskID == t.ID
	})
	if err != nil || !created {
		return q, false, err
	}

	// The triage task may have been deleted since the scan.
	if _, err := e.triage.Get(ctx, t.ID); record.IsNotFound(err) {
		if _, err := e.quadrant.Delete(ctx, q.ID); err != nil && !record.IsNotFound(err) {
			e.logger.Warn("orphan quadrant task not removed",
				"quadrant_id", q.ID,
				"triage_id", t.ID,
				"error", err,
			)
		}
		return q, false, nil
	}

	e.logger.Debug("quadrant task imported",
		"triage_id", t.ID,
		"quadrant_id", q.ID,
		"quadrant", q.Quadrant,
	)
	return q, true, nil
}

// Processing carries the fields a user fills in when processing an inbox
// item. Zero values leave the stored field unchanged.
type Processing struct {
	Notes           string
	Context         string
	Area            string
	DueAt           *time.Time
	Effort          record.Effort
	EstimateMinutes int
	DelegatedTo     string
	Labels          []string
}

func (p Processing) patch() record.Patch {
	patch := record.Patch{}
	if p.Notes != "" {
		patch["notes"] = p.Notes
	}
	if p.Context != "" {
		patch["context"] = p.Context
	}
	if p.Area != "" {
		patch["area"] = p.Area
	}
	if p.DueAt != nil {
		patch["due_at"] = p.DueAt.UTC()
	}
	if p.Effort != "" {
		patch["effort"] = p.Effort
	}
	if p.EstimateMinutes > 0 {
		patch["estimate_minutes"] = p.EstimateMinutes
	}
	if p.DelegatedTo != "" {
		patch["delegated_to"] = p.DelegatedTo
	}
	if len(p.Labels) > 0 {
		patch["labels"] = p.Labels
	}
	return patch
}

// processFields are the fields ProcessInboxItem may change.
var processFields = []string{
	"kind", "notes", "context", "area", "due_at", "effort",
	"estimate_minutes", "delegated_to", "labels",
}

// ProcessInboxItem applies p to a triage task and turns it into an
// actionable step. The classification of the merged task decides the kind:
// the delegation quadrant routes it to waiting, anything else to next.
//
// Returns the updated task and its classification.
func (e *Engine) ProcessInboxItem(ctx context.Context, id string, p Processing) (record.TriageTask, Classification, error) {
	var c Classification
	var before record.TriageTask
	changed := false
	now := e.clock.Now()

	t, err := e.triage.UpdateWith(ctx, id, func(cur record.TriageTask) (record.Patch, error) {
		before = cur
		patch := p.patch()

		merged, err := record.ApplyPatch(cur, patch)
		if err != nil {
			return nil, err
		}
		c = Classify(InputFromTriage(merged), now)

		kind := record.TriageNext
		if c.Quadrant == record.QuadrantDelegate {
			kind = record.TriageWaiting
		}
		if kind != cur.Kind {
			patch["kind"] = kind
		}
		changed = len(patch) > 0
		return patch, nil
	})
	if err != nil {
		return record.TriageTask{}, c, fmt.Errorf("process %s: %w", id, err)
	}

	if !changed {
		return t, c, nil
	}

	action := record.ActionUpdate
	if t.Kind != before.Kind {
		action = record.ActionStatusChange
	}
	if _, err := e.recordHistory(ctx, record.KindTriage, t.ID, action, before, t, processFields,
		fmt.Sprintf("Processed %q as %s", t.Title, t.Kind)); err != nil {
		return t, c, fmt.Errorf("process %s: %w", id, err)
	}

	e.logger.Info("inbox item processed",
		"id", t.ID,
		"kind", t.Kind,
		"quadrant", c.Quadrant,
	)
	return t, c, nil
}
