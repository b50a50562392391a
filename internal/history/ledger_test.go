package history

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/store"
	"github.com/viniciuscfreitas/gtdflow/internal/substrate"
	"github.com/viniciuscfreitas/gtdflow/internal/testutil"
)

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *testutil.FakeClock, *substrate.Memory) {
	t.Helper()
	sub := substrate.NewMemory()
	clk := testutil.NewFakeClock(testutil.DefaultEpoch)
	entries := store.New[record.HistoryEntry](sub, nil,
		store.WithClock(clk),
		store.WithIDGenerator(testutil.NewSequentialIDs("h")),
	)
	opts = append([]Option{WithClock(clk)}, opts...)
	return New(entries, opts...), clk, sub
}

func recordComplete(t *testing.T, l *Ledger, id string) record.HistoryEntry {
	t.Helper()
	e, err := l.Record(context.Background(), record.KindTriage, id, record.ActionComplete,
		record.Snapshot{"status": "active", "completed_at": nil},
		record.Snapshot{"status": "completed", "completed_at": "2026-10-19T09:00:00Z"},
		"Completed task")
	require.NoError(t, err)
	return e
}

func TestRecord(t *testing.T) {
	l, clk, _ := newTestLedger(t)

	e := recordComplete(t, l, "task-1")

	assert.Equal(t, "h-1", e.ID)
	assert.Equal(t, record.KindTriage, e.EntityKind)
	assert.Equal(t, "task-1", e.EntityID)
	assert.Equal(t, record.ActionComplete, e.Action)
	assert.True(t, e.CanUndo)
	assert.Nil(t, e.UndoneAt)
	assert.True(t, clk.Now().Equal(e.CreatedAt))
	assert.True(t, e.Undoable())
}

func TestUndo_SingleUse(t *testing.T) {
	l, clk, _ := newTestLedger(t)
	ctx := context.Background()
	e := recordComplete(t, l, "task-1")

	var got record.Snapshot
	calls := 0
	writer := func(ctx context.Context, before record.Snapshot) error {
		calls++
		got = before
		return nil
	}

	clk.Advance(time.Minute)
	undone, err := l.Undo(ctx, e.ID, writer)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "active", got["status"])
	assert.False(t, undone.CanUndo)
	require.NotNil(t, undone.UndoneAt)
	assert.True(t, clk.Now().Equal(*undone.UndoneAt))

	_, err = l.Undo(ctx, e.ID, writer)
	require.Error(t, err)
	assert.True(t, record.IsNotUndoable(err))
	assert.Equal(t, 1, calls, "writer must not run again")
}

func TestUndo_MissingEntry(t *testing.T) {
	l, _, _ := newTestLedger(t)

	_, err := l.Undo(context.Background(), "nope", func(context.Context, record.Snapshot) error { return nil })
	require.Error(t, err)
	assert.True(t, record.IsNotUndoable(err))
}

func TestUndo_WriterFailureKeepsEntryUndoable(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	e := recordComplete(t, l, "task-1")
	boom := errors.New("boom")

	_, err := l.Undo(ctx, e.ID, func(context.Context, record.Snapshot) error { return boom })
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	still, err := l.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, still.Undoable())

	_, err = l.Undo(ctx, e.ID, func(context.Context, record.Snapshot) error { return nil })
	assert.NoError(t, err, "entry can be undone after a failed attempt")
}

func TestUndo_NeverUndoableEntry(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	e := recordComplete(t, l, "task-1")

	_, err := l.entries.Update(ctx, e.ID, record.Patch{"can_undo": false})
	require.NoError(t, err)

	_, err = l.Undo(ctx, e.ID, func(context.Context, record.Snapshot) error {
		t.Fatal("writer must not run")
		return nil
	})
	assert.True(t, record.IsNotUndoable(err))
}

func TestUndo_ConcurrentCallersUndoOnce(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	e := recordComplete(t, l, "task-1")

	var calls atomic.Int32
	var wg sync.WaitGroup
	var okCount atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Undo(ctx, e.ID, func(context.Context, record.Snapshot) error {
				calls.Add(1)
				return nil
			})
			if err == nil {
				okCount.Add(1)
			} else {
				assert.True(t, record.IsNotUndoable(err))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), okCount.Load())
}

func TestUndo_MarkFailureSurfaces(t *testing.T) {
	l, _, sub := newTestLedger(t)
	ctx := context.Background()
	e := recordComplete(t, l, "task-1")

	sub.FailWrites(record.KeyHistory, substrate.ErrQuotaExceeded)
	_, err := l.Undo(ctx, e.ID, func(context.Context, record.Snapshot) error { return nil })
	require.Error(t, err)
	assert.True(t, record.IsPersistenceFailure(err))

	sub.FailWrites(record.KeyHistory, nil)
	still, err := l.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, still.Undoable())
}

func TestRecentHistory(t *testing.T) {
	l, clk, _ := newTestLedger(t)
	ctx := context.Background()

	old := recordComplete(t, l, "old")
	clk.Advance(23 * time.Hour)
	a := recordComplete(t, l, "a")
	clk.Advance(time.Minute)
	b, err := l.Record(ctx, record.KindQuadrant, "b", record.ActionDelete, nil, nil, "Deleted")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	undone := recordComplete(t, l, "a")
	_, err = l.Undo(ctx, undone.ID, func(context.Context, record.Snapshot) error { return nil })
	require.NoError(t, err)

	clk.Advance(time.Hour) // old is now outside the 24h window

	recent, err := l.RecentHistory(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, b.ID, recent[0].ID, "newest first")
	assert.Equal(t, a.ID, recent[1].ID)
	for _, e := range recent {
		assert.NotEqual(t, old.ID, e.ID)
		assert.NotEqual(t, undone.ID, e.ID)
	}

	byKind, err := l.RecentHistory(ctx, Filter{Kind: record.KindQuadrant})
	require.NoError(t, err)
	require.Len(t, byKind, 1)
	assert.Equal(t, b.ID, byKind[0].ID)

	byID, err := l.RecentHistory(ctx, Filter{ID: "a"})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, a.ID, byID[0].ID)

	none, err := l.RecentHistory(ctx, Filter{Kind: record.KindQuadrant, ID: "a"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecentHistory_CustomWindow(t *testing.T) {
	l, clk, _ := newTestLedger(t, WithWindow(time.Hour))
	recordComplete(t, l, "x")
	clk.Advance(90 * time.Minute)

	recent, err := l.RecentHistory(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestUndoableActions(t *testing.T) {
	l, clk, _ := newTestLedger(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, recordComplete(t, l, "t").ID)
		clk.Advance(time.Second)
	}
	_, err := l.Undo(ctx, ids[3], func(context.Context, record.Snapshot) error { return nil })
	require.NoError(t, err)

	got, err := l.UndoableActions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[2], got[0].ID)
	assert.Equal(t, ids[1], got[1].ID)

	all, err := l.UndoableActions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestNewestFirst_TiesKeepReverseInsertion(t *testing.T) {
	l, _, _ := newTestLedger(t)
	first := recordComplete(t, l, "t")
	second := recordComplete(t, l, "t")

	got, err := l.UndoableActions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
}
