package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciuscfreitas/gtdflow/internal/engine"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/store"
	"github.com/viniciuscfreitas/gtdflow/internal/substrate"
	"github.com/viniciuscfreitas/gtdflow/internal/testutil"
)

type fixture struct {
	clock  *testutil.FakeClock
	stores engine.Stores
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sub := substrate.NewMemory()
	clk := testutil.NewFakeClock(testutil.DefaultEpoch)
	opts := []store.Option{store.WithClock(clk), store.WithIDGenerator(testutil.NewSequentialIDs("s"))}
	return &fixture{
		clock: clk,
		stores: engine.Stores{
			Triage:    store.New[record.TriageTask](sub, nil, opts...),
			Quadrant:  store.New[record.QuadrantTask](sub, nil, opts...),
			Focus:     store.New[record.FocusSession](sub, nil, opts...),
			Objective: store.New[record.Objective](sub, nil, opts...),
		},
	}
}

func (f *fixture) service(opts ...Option) *Service {
	return New(f.stores, append([]Option{WithLocation(time.UTC)}, opts...)...)
}

func at(day, hour int) *time.Time {
	t := time.Date(2026, 10, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func (f *fixture) triage(t *testing.T, task record.TriageTask) record.TriageTask {
	t.Helper()
	if task.Kind == "" {
		task.Kind = record.TriageNext
	}
	if task.Status == "" {
		task.Status = record.TriageActive
		if task.CompletedAt != nil {
			task.Status = record.TriageCompleted
		}
	}
	created, err := f.stores.Triage.Create(context.Background(), task)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return created
}

func (f *fixture) quadrant(t *testing.T, task record.QuadrantTask) record.QuadrantTask {
	t.Helper()
	if task.Quadrant == "" {
		task.Quadrant = record.QuadrantFor(task.Urgency, task.Importance)
	}
	if task.Status == "" {
		task.Status = record.QuadrantPending
		if task.CompletedAt != nil {
			task.Status = record.QuadrantCompleted
		}
	}
	created, err := f.stores.Quadrant.Create(context.Background(), task)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return created
}

func TestSummary_Completions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	today := f.triage(t, record.TriageTask{Title: "today", CompletedAt: at(19, 8)})
	f.triage(t, record.TriageTask{Title: "sunday", CompletedAt: at(18, 10)})
	f.triage(t, record.TriageTask{Title: "saturday", CompletedAt: at(17, 22)})
	f.triage(t, record.TriageTask{Title: "thursday", CompletedAt: at(15, 9)})
	f.triage(t, record.TriageTask{Title: "open"})

	// Paired with "today": the same unit of work, counted once.
	f.quadrant(t, record.QuadrantTask{Title: "today", GTDTaskID: today.ID, Urgency: 4, Importance: 4, CompletedAt: at(19, 8)})
	f.quadrant(t, record.QuadrantTask{Title: "standalone", Urgency: 2, Importance: 4, CompletedAt: at(19, 7)})
	f.quadrant(t, record.QuadrantTask{Title: "dangling", GTDTaskID: "gone", Urgency: 2, Importance: 2, CompletedAt: at(19, 6)})
	f.quadrant(t, record.QuadrantTask{Title: "open q", Urgency: 4, Importance: 4})

	sum, err := f.service().Summary(ctx, testutil.DefaultEpoch)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.CompletedToday)
	assert.Equal(t, 3, sum.CompletedThisWeek, "weeks start on Monday")
	assert.Equal(t, 6, sum.CompletedTotal)
	assert.Equal(t, 3, sum.Streak, "19, 18, 17; the 16th has nothing")
	assert.Equal(t, 1, sum.OpenByQuadrant[record.QuadrantDo])
}

func TestSummary_StreakFromYesterday(t *testing.T) {
	f := newFixture(t)

	f.triage(t, record.TriageTask{Title: "a", CompletedAt: at(19, 8)})
	f.triage(t, record.TriageTask{Title: "b", CompletedAt: at(18, 8)})

	tuesday := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	sum, err := f.service().Summary(context.Background(), tuesday)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.CompletedToday)
	assert.Equal(t, 2, sum.Streak, "nothing yet today keeps yesterday's streak alive")
	assert.Equal(t, 1, sum.CompletedThisWeek)

	thursday := time.Date(2026, 10, 22, 9, 0, 0, 0, time.UTC)
	sum, err = f.service().Summary(context.Background(), thursday)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Streak)
}

func TestSummary_StreakHorizon(t *testing.T) {
	f := newFixture(t)
	for d := 10; d <= 19; d++ {
		f.triage(t, record.TriageTask{Title: "daily", CompletedAt: at(d, 12)})
	}

	sum, err := f.service(WithStreakHorizon(4)).Summary(context.Background(), testutil.DefaultEpoch)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Streak)

	sum, err = f.service().Summary(context.Background(), testutil.DefaultEpoch)
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Streak)
}

func TestSummary_ObjectivesAndFocus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, o := range []record.Objective{
		{Title: "a", Progress: 40, Status: record.ObjectiveActive},
		{Title: "b", Progress: 60, Status: record.ObjectiveActive},
		{Title: "c", Progress: 100, Status: record.ObjectiveAchieved},
	} {
		_, err := f.stores.Objective.Create(ctx, o)
		require.NoError(t, err)
	}
	for _, st := range []record.FocusStatus{record.FocusActive, record.FocusCompleted, record.FocusPlanned} {
		_, err := f.stores.Focus.Create(ctx, record.FocusSession{PlannedMinutes: 25, Status: st})
		require.NoError(t, err)
	}

	sum, err := f.service().Summary(ctx, testutil.DefaultEpoch)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.ActiveObjectives)
	assert.InDelta(t, 50.0, sum.ObjectiveProgress, 0.001)
	assert.Equal(t, 1, sum.ActiveFocusSessions)
}

func TestSummary_Empty(t *testing.T) {
	f := newFixture(t)

	sum, err := f.service().Summary(context.Background(), testutil.DefaultEpoch)
	require.NoError(t, err)
	assert.Zero(t, sum.CompletedTotal)
	assert.Zero(t, sum.Streak)
	assert.Zero(t, sum.ObjectiveProgress)
	assert.NotNil(t, sum.OpenByQuadrant)
}

func TestStartOfWeek(t *testing.T) {
	for _, day := range []int{19, 20, 23, 25} {
		got := startOfWeek(*at(day, 15))
		assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), got, "day %d", day)
	}
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), startOfWeek(*at(18, 23)))
}
