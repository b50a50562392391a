package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/viniciuscfreitas/gtdflow/internal/bus"
	"github.com/viniciuscfreitas/gtdflow/internal/history"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/store"
	"github.com/viniciuscfreitas/gtdflow/internal/substrate"
	"github.com/viniciuscfreitas/gtdflow/internal/testutil"
)

type testEnv struct {
	sub    *substrate.Memory
	bus    *bus.Bus
	clock  *testutil.FakeClock
	stores Stores
	ledger *history.Ledger
	engine *Engine
}

// newTestEnv wires an engine over in-memory stores. With attach, the triage
// store hints the quadrant store and AutoImport runs on every triage commit.
func newTestEnv(t *testing.T, attach bool) *testEnv {
	t.Helper()
	env := &testEnv{
		sub:   substrate.NewMemory(),
		bus:   bus.New(),
		clock: testutil.NewFakeClock(testutil.DefaultEpoch),
	}
	ids := testutil.NewSequentialIDs("r")
	opts := []store.Option{store.WithClock(env.clock), store.WithIDGenerator(ids)}

	triageOpts := opts
	if attach {
		triageOpts = append(append([]store.Option{}, opts...), store.WithSyncHint(record.KeyQuadrant))
	}

	env.stores = Stores{
		Triage:    store.New[record.TriageTask](env.sub, env.bus, triageOpts...),
		Quadrant:  store.New[record.QuadrantTask](env.sub, env.bus, opts...),
		Focus:     store.New[record.FocusSession](env.sub, env.bus, opts...),
		Objective: store.New[record.Objective](env.sub, env.bus, opts...),
	}
	historyStore := store.New[record.HistoryEntry](env.sub, env.bus,
		store.WithClock(env.clock), store.WithIDGenerator(testutil.NewSequentialIDs("h")))
	env.ledger = history.New(historyStore, history.WithClock(env.clock))
	env.engine = New(env.stores, env.ledger, WithClock(env.clock))
	if attach {
		env.engine.Attach(env.bus)
	}
	return env
}

func (env *testEnv) createTriage(t *testing.T, task record.TriageTask) record.TriageTask {
	t.Helper()
	if task.Kind == "" {
		task.Kind = record.TriageNext
	}
	if task.Status == "" {
		task.Status = record.TriageActive
	}
	created, err := env.stores.Triage.Create(context.Background(), task)
	require.NoError(t, err)
	return created
}

func (env *testEnv) createQuadrant(t *testing.T, task record.QuadrantTask) record.QuadrantTask {
	t.Helper()
	if task.Status == "" {
		task.Status = record.QuadrantPending
	}
	if task.Quadrant == "" {
		task.Quadrant = record.QuadrantFor(task.Urgency, task.Importance)
	}
	created, err := env.stores.Quadrant.Create(context.Background(), task)
	require.NoError(t, err)
	return created
}

func (env *testEnv) startSession(t *testing.T, taskID string, status record.FocusStatus) record.FocusSession {
	t.Helper()
	now := env.clock.Now()
	s, err := env.stores.Focus.Create(context.Background(), record.FocusSession{
		TaskID:         taskID,
		PlannedMinutes: 25,
		StartedAt:      &now,
		Status:         status,
	})
	require.NoError(t, err)
	return s
}

func (env *testEnv) pairOf(t *testing.T, triageID string) []record.QuadrantTask {
	t.Helper()
	pairs, err := env.stores.Quadrant.Find(context.Background(), func(q record.QuadrantTask) bool {
		return q.GTDTaskID == triageID
	})
	require.NoError(t, err)
	return pairs
}

func daysFrom(now time.Time, days int) *time.Time {
	t := now.Add(time.Duration(days) * 24 * time.Hour)
	return &t
}
