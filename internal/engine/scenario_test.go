package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// TestCallVendorScenario walks a task from capture to completion through
// both representations.
func TestCallVendorScenario(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	now := env.clock.Now()

	tri := env.createTriage(t, record.TriageTask{
		Title:  "Call vendor",
		DueAt:  daysFrom(now, 2),
		Effort: record.EffortHigh,
	})

	_, err := env.engine.AutoImport(ctx)
	require.NoError(t, err)

	pairs := env.pairOf(t, tri.ID)
	require.Len(t, pairs, 1)
	q := pairs[0]
	assert.Equal(t, "Call vendor", q.Title)
	assert.Equal(t, record.QuadrantDo, q.Quadrant)
	assert.Equal(t, 4, q.Urgency)
	assert.Equal(t, 4, q.Importance)
	assert.Equal(t, record.QuadrantPending, q.Status)

	onTriage := env.startSession(t, tri.ID, record.FocusActive)
	onQuadrant := env.startSession(t, q.ID, record.FocusActive)

	env.clock.Advance(30 * time.Minute)
	_, err = env.engine.CompleteTask(ctx, tri.ID, record.KindTriage, true)
	require.NoError(t, err)

	gotQ, err := env.stores.Quadrant.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, record.QuadrantCompleted, gotQ.Status)
	assert.NotNil(t, gotQ.CompletedAt)

	for _, id := range []string{onTriage.ID, onQuadrant.ID} {
		s, err := env.stores.Focus.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, record.FocusCompleted, s.Status)
	}
}

// TestCallVendorScenario_Reactive runs the same flow with the engine
// attached to the bus, so no explicit import call is made.
func TestCallVendorScenario_Reactive(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	item, err := env.engine.Capture(ctx, record.TriageTask{Title: "Call vendor"})
	require.NoError(t, err)
	assert.Empty(t, env.pairOf(t, item.ID))

	_, c, err := env.engine.ProcessInboxItem(ctx, item.ID, Processing{
		DueAt:  daysFrom(env.clock.Now(), 2),
		Effort: record.EffortHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, record.QuadrantDo, c.Quadrant)

	pairs := env.pairOf(t, item.ID)
	require.Len(t, pairs, 1)
	assert.Equal(t, record.QuadrantDo, pairs[0].Quadrant)

	_, err = env.engine.CompleteTask(ctx, pairs[0].ID, record.KindQuadrant, true)
	require.NoError(t, err)

	got, _ := env.stores.Triage.Get(ctx, item.ID)
	assert.Equal(t, record.TriageCompleted, got.Status)
	assert.Len(t, env.pairOf(t, item.ID), 1, "completion never re-imports")
}

func TestMonotonicTimestampsAcrossEngineOps(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	tri := env.createTriage(t, record.TriageTask{Title: "Clock skew"})
	last := tri.UpdatedAt

	steps := []func(){
		func() { _, _ = env.engine.CompleteTask(ctx, tri.ID, record.KindTriage, true) },
		func() { _, _ = env.engine.CompleteTask(ctx, tri.ID, record.KindTriage, false) },
		func() { _ = env.engine.UpdateTask(ctx, tri.ID, record.KindTriage, record.Patch{"notes": "n"}) },
	}
	for _, step := range steps {
		env.clock.Advance(-time.Hour)
		step()
		got, err := env.stores.Triage.Get(ctx, tri.ID)
		require.NoError(t, err)
		assert.False(t, got.UpdatedAt.Before(last))
		last = got.UpdatedAt
	}
}
