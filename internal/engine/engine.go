package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/viniciuscfreitas/gtdflow/internal/bus"
	"github.com/viniciuscfreitas/gtdflow/internal/clock"
	"github.com/viniciuscfreitas/gtdflow/internal/history"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/store"
)

// Stores groups the entity stores the engine coordinates.
type Stores struct {
	Triage    *store.TriageStore
	Quadrant  *store.QuadrantStore
	Focus     *store.FocusStore
	Objective *store.ObjectiveStore
}

// Engine is the cross-representation synchronizer.
//
// Thread-safety: all methods are safe for concurrent use. Each store
// serializes its own commits; the engine holds no lock across stores.
type Engine struct {
	triage    *store.TriageStore
	quadrant  *store.QuadrantStore
	focus     *store.FocusStore
	objective *store.ObjectiveStore
	ledger    *history.Ledger
	clock     clock.Clock
	logger    *slog.Logger
	ops       map[record.Kind]entityOps
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for completion and session timestamps and
// for classification.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over the given stores and ledger.
func New(s Stores, ledger *history.Ledger, opts ...Option) *Engine {
	e := &Engine{
		triage:    s.Triage,
		quadrant:  s.Quadrant,
		focus:     s.Focus,
		objective: s.Objective,
		ledger:    ledger,
		clock:     clock.System{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.ops = map[record.Kind]entityOps{
		record.KindTriage:    storeOps[record.TriageTask, *record.TriageTask]{e.triage},
		record.KindQuadrant:  storeOps[record.QuadrantTask, *record.QuadrantTask]{e.quadrant},
		record.KindFocus:     storeOps[record.FocusSession, *record.FocusSession]{e.focus},
		record.KindObjective: storeOps[record.Objective, *record.Objective]{e.objective},
	}
	return e
}

// Attach subscribes AutoImport to sync-required hints addressed to the
// quadrant store. Returns the unsubscribe function.
func (e *Engine) Attach(b *bus.Bus) bus.Unsubscribe {
	return b.Subscribe(record.KeyQuadrant, func(ctx context.Context, ev bus.Event) error {
		if ev.Action != bus.ActionSyncRequired || ev.StoreKey != record.KeyTriage {
			return nil
		}
		_, err := e.AutoImport(ctx)
		return err
	})
}

// PairedQuadrant returns the quadrant task referencing triageID, if any.
func (e *Engine) PairedQuadrant(ctx context.Context, triageID string) (record.QuadrantTask, bool, error) {
	pairs, err := e.quadrant.Find(ctx, func(q record.QuadrantTask) bool {
		return q.GTDTaskID == triageID
	})
	if err != nil {
		return record.QuadrantTask{}, false, fmt.Errorf("find pair of %s: %w", triageID, err)
	}
	if len(pairs) == 0 {
		return record.QuadrantTask{}, false, nil
	}
	if len(pairs) > 1 {
		e.logger.Warn("multiple quadrant tasks reference one triage task",
			"triage_id", triageID,
			"count", len(pairs),
		)
	}
	return pairs[0], true, nil
}

// PairedTriage returns the triage task q references, if any. A dangling
// reference is logged as a pairing inconsistency and reported as no pair.
func (e *Engine) PairedTriage(ctx context.Context, q record.QuadrantTask) (record.TriageTask, bool, error) {
	if !q.IsPaired() {
		return record.TriageTask{}, false, nil
	}
	t, err := e.triage.Get(ctx, q.GTDTaskID)
	if record.IsNotFound(err) {
		e.warnInconsistent(q.ID, q.GTDTaskID)
		return record.TriageTask{}, false, nil
	}
	if err != nil {
		return record.TriageTask{}, false, fmt.Errorf("find pair of %s: %w", q.ID, err)
	}
	return t, true, nil
}

func (e *Engine) warnInconsistent(quadrantID, triageID string) {
	err := record.NewPairingInconsistency(string(record.KindQuadrant), quadrantID, triageID)
	e.logger.Warn("pairing inconsistency",
		"quadrant_id", quadrantID,
		"triage_id", triageID,
		"error", err,
	)
}

// recordHistory appends a ledger entry, capturing the given fields of
// before and after.
func (e *Engine) recordHistory(ctx context.Context, kind record.Kind, id string, action record.Action, before, after any, fields []string, description string) (*record.HistoryEntry, error) {
	b, err := pickSnapshot(before, fields)
	if err != nil {
		return nil, err
	}
	a, err := pickSnapshot(after, fields)
	if err != nil {
		return nil, err
	}
	entry, err := e.ledger.Record(ctx, kind, id, action, b, a, description)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// pickSnapshot snapshots v, restricted to fields when any are given.
// A nil v yields a nil snapshot.
func pickSnapshot(v any, fields []string) (record.Snapshot, error) {
	if v == nil {
		return nil, nil
	}
	s, err := record.SnapshotOf(v)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		s = s.Pick(fields...)
	}
	return s, nil
}
