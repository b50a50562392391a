package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// Capture adds a new item to the inbox. Kind and status default to inbox and
// active.
func (e *Engine) Capture(ctx context.Context, t record.TriageTask) (record.TriageTask, error) {
	if t.Kind == "" {
		t.Kind = record.TriageInbox
	}
	if t.Status == "" {
		t.Status = record.TriageActive
	}
	if record.NormalizeText(t.Title) == "" {
		return record.TriageTask{}, fmt.Errorf("capture: title is required")
	}

	created, err := e.triage.Create(ctx, t)
	if err != nil {
		return record.TriageTask{}, fmt.Errorf("capture: %w", err)
	}
	if _, err := e.recordHistory(ctx, record.KindTriage, created.ID, record.ActionCreate, nil, created, nil,
		fmt.Sprintf("Captured %q", created.Title)); err != nil {
		return created, fmt.Errorf("capture: %w", err)
	}
	return created, nil
}

// ErrInvalidPatch is returned by UpdateTask for a patch that would break a
// pairing or names an unknown triage kind.
var ErrInvalidPatch = errors.New("invalid patch")

// pairingFields are set only by auto-import.
var pairingFields = []string{"gtd_task_id"}

// UpdateTask applies a partial update to a triage or quadrant task and
// records it. Completion changes belong to CompleteTask.
//
// A triage task that stops being a next action or waiting item loses its
// quadrant pair; the pair's removal is recorded so it can be undone.
func (e *Engine) UpdateTask(ctx context.Context, id string, kind record.Kind, patch record.Patch) error {
	ops, ok := e.ops[kind]
	if !ok || (kind != record.KindTriage && kind != record.KindQuadrant) {
		return fmt.Errorf("update %s: unsupported kind %q", id, kind)
	}
	if err := checkPatch(kind, patch); err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}

	fields := patch.Keys()
	before, after, err := ops.update(ctx, id, patch)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if _, err := e.recordHistory(ctx, kind, id, record.ActionUpdate, before, after, fields,
		fmt.Sprintf("Updated %s %s", kind, id)); err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}

	if t, ok := after.(record.TriageTask); ok && !t.IsActionable() {
		e.unpair(ctx, t)
	}
	return nil
}

func checkPatch(kind record.Kind, patch record.Patch) error {
	for _, f := range pairingFields {
		if _, ok := patch[f]; ok {
			return fmt.Errorf("%w: field %q is managed by import", ErrInvalidPatch, f)
		}
	}
	if kind != record.KindTriage {
		return nil
	}
	if v, ok := patch["kind"]; ok {
		s, _ := v.(string)
		if !record.ValidTriageKinds[record.TriageKind(s)] {
			return fmt.Errorf("%w: invalid kind %v", ErrInvalidPatch, v)
		}
	}
	return nil
}

// unpair removes the quadrant task paired with t, if any. Failures are
// logged; the triage update stands.
func (e *Engine) unpair(ctx context.Context, t record.TriageTask) {
	res := DeleteResult{Kind: record.KindTriage, ID: t.ID}
	e.deleteQuadrantPair(ctx, &res, t.ID)
	if res.PairID == "" {
		return
	}
	res.Interrupted = e.finalizeSessions(ctx, []string{res.PairID}, record.FocusInterrupted)
	e.logger.Info("pair removed: triage task no longer actionable",
		"id", t.ID,
		"kind", t.Kind,
		"pair_id", res.PairID,
	)
}

// DefaultFocusMinutes is the planned length of a focus session when the
// caller does not choose one.
const DefaultFocusMinutes = 25

// StartFocus starts a focus session, optionally against a task. A non-empty
// taskID must name an existing triage or quadrant task.
func (e *Engine) StartFocus(ctx context.Context, taskID string, plannedMinutes int) (record.FocusSession, error) {
	if taskID != "" {
		if err := e.taskExists(ctx, taskID); err != nil {
			return record.FocusSession{}, fmt.Errorf("start focus: %w", err)
		}
	}
	if plannedMinutes <= 0 {
		return record.FocusSession{}, fmt.Errorf("start focus: planned minutes must be positive")
	}

	now := e.clock.Now()
	s, err := e.focus.Create(ctx, record.FocusSession{
		TaskID:         taskID,
		PlannedMinutes: plannedMinutes,
		StartedAt:      &now,
		Status:         record.FocusActive,
	})
	if err != nil {
		return record.FocusSession{}, fmt.Errorf("start focus: %w", err)
	}
	if _, err := e.recordHistory(ctx, record.KindFocus, s.ID, record.ActionCreate, nil, s, nil,
		fmt.Sprintf("Started %d minute focus session", plannedMinutes)); err != nil {
		return s, fmt.Errorf("start focus: %w", err)
	}
	return s, nil
}

// StopFocus ends a running session as completed, or as interrupted when
// interrupted is true. Stopping a session that is no longer running is a
// no-op.
func (e *Engine) StopFocus(ctx context.Context, id string, interrupted bool) (record.FocusSession, error) {
	status := record.FocusCompleted
	if interrupted {
		status = record.FocusInterrupted
	}
	now := e.clock.Now()

	var before record.FocusSession
	s, err := e.focus.UpdateWith(ctx, id, func(cur record.FocusSession) (record.Patch, error) {
		before = cur
		if !cur.IsRunning() {
			return nil, nil
		}
		patch := record.Patch{"status": status, "ended_at": now}
		if interrupted {
			patch["interruptions"] = cur.Interruptions + 1
		}
		return patch, nil
	})
	if err != nil {
		return record.FocusSession{}, fmt.Errorf("stop focus: %w", err)
	}
	if before.Status == s.Status {
		return s, nil
	}

	if _, err := e.recordHistory(ctx, record.KindFocus, id, record.ActionStatusChange, before, s,
		[]string{"status", "ended_at", "interruptions"},
		fmt.Sprintf("Focus session %s", status)); err != nil {
		return s, fmt.Errorf("stop focus: %w", err)
	}
	return s, nil
}

// AddObjective creates an active objective at 0% progress.
func (e *Engine) AddObjective(ctx context.Context, title, description string, target *time.Time) (record.Objective, error) {
	if record.NormalizeText(title) == "" {
		return record.Objective{}, fmt.Errorf("add objective: title is required")
	}
	o, err := e.objective.Create(ctx, record.Objective{
		Title:       title,
		Description: description,
		TargetDate:  target,
		Status:      record.ObjectiveActive,
	})
	if err != nil {
		return record.Objective{}, fmt.Errorf("add objective: %w", err)
	}
	if _, err := e.recordHistory(ctx, record.KindObjective, o.ID, record.ActionCreate, nil, o, nil,
		fmt.Sprintf("Added objective %q", o.Title)); err != nil {
		return o, fmt.Errorf("add objective: %w", err)
	}
	return o, nil
}

// SetObjectiveProgress sets progress, clamped to 0..100. Reaching 100 marks
// the objective achieved; dropping below reopens it.
func (e *Engine) SetObjectiveProgress(ctx context.Context, id string, progress int) (record.Objective, error) {
	progress = max(0, min(100, progress))

	var before record.Objective
	o, err := e.objective.UpdateWith(ctx, id, func(cur record.Objective) (record.Patch, error) {
		before = cur
		patch := record.Patch{}
		if cur.Progress != progress {
			patch["progress"] = progress
		}
		switch {
		case progress == 100 && cur.Status == record.ObjectiveActive:
			patch["status"] = record.ObjectiveAchieved
		case progress < 100 && cur.Status == record.ObjectiveAchieved:
			patch["status"] = record.ObjectiveActive
		}
		return patch, nil
	})
	if err != nil {
		return record.Objective{}, fmt.Errorf("objective progress: %w", err)
	}
	if before.Progress == o.Progress && before.Status == o.Status {
		return o, nil
	}

	if _, err := e.recordHistory(ctx, record.KindObjective, id, record.ActionUpdate, before, o,
		[]string{"progress", "status"},
		fmt.Sprintf("Objective %q at %d%%", o.Title, o.Progress)); err != nil {
		return o, fmt.Errorf("objective progress: %w", err)
	}
	return o, nil
}

func (e *Engine) taskExists(ctx context.Context, id string) error {
	if _, err := e.triage.Get(ctx, id); err == nil || !record.IsNotFound(err) {
		return err
	}
	_, err := e.quadrant.Get(ctx, id)
	return err
}
