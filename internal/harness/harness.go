package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/viniciuscfreitas/gtdflow/internal/app"
	"github.com/viniciuscfreitas/gtdflow/internal/bus"
	"github.com/viniciuscfreitas/gtdflow/internal/config"
	"github.com/viniciuscfreitas/gtdflow/internal/engine"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/substrate"
	"github.com/viniciuscfreitas/gtdflow/internal/testutil"
)

// OutcomeOK is the outcome of a successful step.
const OutcomeOK = "ok"

// Harness executes one scenario against one App.
type Harness struct {
	app    *app.App
	clock  *testutil.FakeClock
	result *Result

	tracing bool

	// entries collects the history entries created by the running step.
	entries []string
}

// stepOutput is what a step produced or touched.
type stepOutput struct {
	id     string
	kind   record.Kind
	record any
	pairID string
}

// argError marks a scenario authoring mistake rather than a domain failure.
type argError struct {
	err error
}

func (e *argError) Error() string { return e.err.Error() }
func (e *argError) Unwrap() error { return e.err }

// Run executes a scenario and returns its result.
//
// Each run uses a fresh in-memory substrate, a fake clock and sequential
// identifiers. The returned error reports a harness failure (bad setup,
// unreadable state); scenario failures are reported in Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with an explicit context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	start := testutil.DefaultEpoch
	if scenario.Now != "" {
		t, err := time.Parse(time.RFC3339, scenario.Now)
		if err != nil {
			return nil, fmt.Errorf("invalid now: %w", err)
		}
		start = t
	}

	cfg := config.Default()
	if scenario.AutoImport != nil {
		cfg.Engine.AutoImport = *scenario.AutoImport
	}

	clk := testutil.NewFakeClock(start)
	a := app.New(substrate.NewMemory(), cfg,
		app.WithClock(clk),
		app.WithIDGenerator(testutil.NewSequentialIDs("id")),
		app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		app.WithLocation(time.UTC),
	)
	defer a.Close()

	result := NewResult()
	h := &Harness{app: a, clock: clk, result: result}
	unsubscribe := a.Bus.SubscribeGlobal(h.observe)
	defer unsubscribe()

	for i, step := range scenario.Setup {
		h.entries = nil
		out, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
		if err := h.bind(ctx, step, out); err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
	}

	h.tracing = true
	for i, step := range scenario.Flow {
		h.runFlowStep(ctx, i, step)
	}
	h.tracing = false

	state, err := h.collectState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect final state: %w", err)
	}
	result.State = state

	for _, violation := range CheckPrinciples(state) {
		result.AddError(violation)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// observe records bus events in the trace and remembers the history entries
// created by the running step.
func (h *Harness) observe(_ context.Context, ev bus.Event) error {
	if ev.StoreKey == record.KeyHistory && ev.Action == bus.ActionCreate {
		h.entries = append(h.entries, ev.ID)
	}
	if h.tracing {
		h.result.addTrace(TraceEvent{
			Type:   TraceTypeEvent,
			Action: string(ev.Action),
			Store:  ev.StoreKey,
			ID:     ev.ID,
		})
	}
	return nil
}

func (h *Harness) runFlowStep(ctx context.Context, i int, step Step) {
	idx := h.result.addTrace(TraceEvent{Type: TraceTypeStep, Action: step.Action})
	h.entries = nil

	out, err := h.execute(ctx, step)
	outcome := outcomeOf(err)

	h.result.Trace[idx].ID = out.id
	h.result.Trace[idx].Outcome = outcome
	h.result.Steps = append(h.result.Steps, StepOutcome{
		Action:  step.Action,
		ID:      out.id,
		Outcome: outcome,
	})

	var ae *argError
	if errors.As(err, &ae) {
		h.result.AddError(fmt.Sprintf("flow[%d] %s: %v", i, step.Action, err))
		return
	}
	for _, msg := range checkExpect(step, out, err, h.result.Bindings) {
		h.result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Action, msg))
	}
	if err != nil {
		return
	}
	if err := h.bind(ctx, step, out); err != nil {
		h.result.AddError(fmt.Sprintf("flow[%d] %s: %v", i, step.Action, err))
	}
}

func outcomeOf(err error) string {
	var ae *argError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &ae):
		return "invalid"
	}
	if code := record.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}

// bind stores the identifiers a step asked for.
func (h *Harness) bind(ctx context.Context, step Step, out stepOutput) error {
	b := h.result.Bindings
	if step.As != "" {
		if out.id == "" {
			return fmt.Errorf("as %q: step produced no identifier", step.As)
		}
		b[step.As] = out.id
	}
	if step.HistoryAs != "" {
		if len(h.entries) == 0 {
			return fmt.Errorf("history_as %q: step recorded no history", step.HistoryAs)
		}
		b[step.HistoryAs] = h.entries[0]
	}
	if step.PairHistoryAs != "" {
		if len(h.entries) < 2 {
			return fmt.Errorf("pair_history_as %q: step recorded %d history entries", step.PairHistoryAs, len(h.entries))
		}
		b[step.PairHistoryAs] = h.entries[1]
	}
	if step.PairAs != "" {
		pair, err := h.pairOf(ctx, out)
		if err != nil {
			return fmt.Errorf("pair_as %q: %w", step.PairAs, err)
		}
		if pair == "" {
			return fmt.Errorf("pair_as %q: %s %s has no pair", step.PairAs, out.kind, out.id)
		}
		b[step.PairAs] = pair
	}
	return nil
}

func (h *Harness) pairOf(ctx context.Context, out stepOutput) (string, error) {
	if out.pairID != "" {
		return out.pairID, nil
	}
	switch out.kind {
	case record.KindTriage:
		q, ok, err := h.app.Engine.PairedQuadrant(ctx, out.id)
		if err != nil || !ok {
			return "", err
		}
		return q.ID, nil
	case record.KindQuadrant:
		q, err := h.app.Stores.Quadrant.Get(ctx, out.id)
		if err != nil {
			return "", err
		}
		return q.GTDTaskID, nil
	}
	return "", nil
}

// execute performs one step.
func (h *Harness) execute(ctx context.Context, step Step) (stepOutput, error) {
	resolved, err := resolveValue(step.Args, h.result.Bindings)
	if err != nil {
		return stepOutput{}, &argError{err: err}
	}
	args, _ := resolved.(map[string]any)
	r := &argReader{m: args}
	eng := h.app.Engine

	switch step.Action {
	case ActionCapture:
		task := record.TriageTask{
			Title:           r.str("title"),
			Notes:           r.str("notes"),
			Context:         r.str("context"),
			Area:            r.str("area"),
			DueAt:           r.time("due_at"),
			Effort:          record.Effort(r.str("effort")),
			EstimateMinutes: r.int("estimate_minutes", 0),
			Labels:          r.strings("labels"),
		}
		if err := r.done(); err != nil {
			return stepOutput{}, err
		}
		t, err := eng.Capture(ctx, task)
		return stepOutput{id: t.ID, kind: record.KindTriage, record: t}, err

	case ActionProcess:
		id := r.required("id")
		p := engine.Processing{
			Notes:           r.str("notes"),
			Context:         r.str("context"),
			Area:            r.str("area"),
			DueAt:           r.time("due_at"),
			Effort:          record.Effort(r.str("effort")),
			EstimateMinutes: r.int("estimate_minutes", 0),
			DelegatedTo:     r.str("delegated_to"),
			Labels:          r.strings("labels"),
		}
		if err := r.done(); err != nil {
			return stepOutput{}, err
		}
		t, _, err := eng.ProcessInboxItem(ctx, id, p)
		return stepOutput{id: id, kind: record.KindTriage, record: t}, err

	case ActionUpdate:
		id := r.required("id")
		kind := r.kind()
		fields := r.object("fields")
		if err := r.done(); err != nil {
			return stepOutput{}, err
		}
		out := stepOutput{id: id, kind: kind}
		if err := eng.UpdateTask(ctx, id, kind, record.Patch(fields)); err != nil {
			return out, err
		}
		rec, err := h.get(ctx, kind, id)
		out.record = rec
		return out, err

	case ActionComplete, ActionUncomplete:
		id := r.required("id")
		kind := r.kind()
		if err := r.done(); err != nil {
			return stepOutput{}, err
		}
		res, err := eng.CompleteTask(ctx, id, kind, step.Action == ActionComplete)
		out := stepOutput{id: id, kind: kind}
		switch {
		case kind == record.KindTriage && res.Triage != nil:
			out.record = *res.Triage
		case kind == record.KindQuadrant && res.Quadrant != nil:
			out.record = *res.Quadrant
		}
		return out, err

	case ActionDelete:
		id := r.required("id")
		kind := r.kind()
		if err := r.done(); err != nil {
			return stepOutput{}, err
		}
		res, err := eng.DeleteTask(ctx, id, kind)
		return stepOutput{id: id, kind: kind, pairID: res.PairID}, err

	case ActionImport:
		if err := r.done(); err != nil {
			return stepOutput{}, err
		}
		created, err := eng.AutoImport(ctx)
		out := stepOutput{kind: record.KindQuadrant}
		if len(created) > 0 {
			out.id = created[0].ID
			out.record = created[0]
		}
		return out, err

	case ActionUndo:
		id := r.required("id")
		if err := r.done(); err != nil {
			return stepOutput{}, err
		}
		entry, err := eng.Undo(ctx, id)
		return stepOutput{id: id, kind: record.KindHistory, record: entry}, err

	case ActionStartFocus:
		taskID := r.str("task_id")
		minutes := r.int("minutes", engine.DefaultFocusMinutes)
		if err := r.done(); err != nil {
			return stepOutput{}, err
		}
		s, err := eng.StartFocus(ctx, taskID, minutes)
		return stepOutput{id: s.ID, kind: record.KindFocus, record: s}, err

	case ActionStopFocus:
		id := r.required("id")
		interrupted := r.bool("interrupted")
		if err := r.done(); err != nil {
			return stepOutput{}, err
		}
		s, err := eng.StopFocus(ctx, id, interrupted)
		return stepOutput{id: id, kind: record.KindFocus, record: s}, err

	case ActionAddObjective:
		title := r.str("title")
		description := r.str("description")
		target := r.time("target_date")
		if err := r.done(); err != nil {
			return stepOutput{}, err
		}
		o, err := eng.AddObjective(ctx, title, description, target)
		return stepOutput{id: o.ID, kind: record.KindObjective, record: o}, err

	case ActionSetProgress:
		id := r.required("id")
		progress := r.int("progress", 0)
		if err := r.done(); err != nil {
			return stepOutput{}, err
		}
		o, err := eng.SetObjectiveProgress(ctx, id, progress)
		return stepOutput{id: id, kind: record.KindObjective, record: o}, err

	case ActionAdvanceClock:
		d := r.duration("duration")
		if err := r.done(); err != nil {
			return stepOutput{}, err
		}
		h.clock.Advance(d)
		return stepOutput{}, nil
	}
	return stepOutput{}, &argError{err: fmt.Errorf("unknown action %q", step.Action)}
}

func (h *Harness) get(ctx context.Context, kind record.Kind, id string) (any, error) {
	switch kind {
	case record.KindTriage:
		return h.app.Stores.Triage.Get(ctx, id)
	case record.KindQuadrant:
		return h.app.Stores.Quadrant.Get(ctx, id)
	}
	return nil, fmt.Errorf("get %s: unsupported kind %q", id, kind)
}

// collectState snapshots every store.
func (h *Harness) collectState(ctx context.Context) (State, error) {
	s := h.app.Stores
	state := State{}

	var err error
	if state[s.Triage.Key()], err = snapshots(s.Triage.List(ctx)); err != nil {
		return nil, err
	}
	if state[s.Quadrant.Key()], err = snapshots(s.Quadrant.List(ctx)); err != nil {
		return nil, err
	}
	if state[s.Focus.Key()], err = snapshots(s.Focus.List(ctx)); err != nil {
		return nil, err
	}
	if state[s.Objective.Key()], err = snapshots(s.Objective.List(ctx)); err != nil {
		return nil, err
	}
	if state[h.app.History.Key()], err = snapshots(h.app.History.List(ctx)); err != nil {
		return nil, err
	}
	return state, nil
}

func snapshots[T any](items []T, err error) ([]record.Snapshot, error) {
	if err != nil {
		return nil, err
	}
	out := make([]record.Snapshot, 0, len(items))
	for _, it := range items {
		snap, err := record.SnapshotOf(it)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// resolveValue replaces "$name" strings with bound identifiers, recursing
// into maps and lists.
func resolveValue(v any, bindings map[string]string) (any, error) {
	switch x := v.(type) {
	case string:
		if !strings.HasPrefix(x, "$") {
			return x, nil
		}
		id, ok := bindings[x[1:]]
		if !ok {
			return nil, fmt.Errorf("unbound reference %s", x)
		}
		return id, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			r, err := resolveValue(item, bindings)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			r, err := resolveValue(item, bindings)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	}
	return v, nil
}
