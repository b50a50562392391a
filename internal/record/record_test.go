package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuadrantFor(t *testing.T) {
	tests := []struct {
		urgency, importance int
		want                Quadrant
	}{
		{4, 4, QuadrantDo},
		{3, 3, QuadrantDo},
		{2, 4, QuadrantSchedule},
		{4, 2, QuadrantDelegate},
		{2, 2, QuadrantEliminate},
		{1, 5, QuadrantSchedule},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuadrantFor(tt.urgency, tt.importance),
			"QuadrantFor(%d, %d)", tt.urgency, tt.importance)
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, MinScore, ClampScore(-3))
	assert.Equal(t, 3, ClampScore(3))
	assert.Equal(t, MaxScore, ClampScore(9))
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("gtd")
	assert.True(t, ok)
	assert.Equal(t, KindTriage, k)

	k, ok = ParseKind("quadrant")
	assert.True(t, ok)
	assert.Equal(t, KindQuadrant, k)

	_, ok = ParseKind("calendar")
	assert.False(t, ok)
}

func TestKind_StoreKey(t *testing.T) {
	assert.Equal(t, KeyTriage, KindTriage.StoreKey())
	assert.Equal(t, KeyHistory, KindHistory.StoreKey())
	assert.Equal(t, "", Kind("nope").StoreKey())
}

func TestTriageTask_IsActionable(t *testing.T) {
	assert.True(t, TriageTask{Kind: TriageNext}.IsActionable())
	assert.True(t, TriageTask{Kind: TriageWaiting}.IsActionable())
	assert.False(t, TriageTask{Kind: TriageInbox}.IsActionable())
	assert.False(t, TriageTask{Kind: TriageReference}.IsActionable())
}

func TestHistoryEntry_Undoable(t *testing.T) {
	now := time.Now()
	assert.True(t, HistoryEntry{CanUndo: true}.Undoable())
	assert.False(t, HistoryEntry{CanUndo: false}.Undoable())
	assert.False(t, HistoryEntry{CanUndo: true, UndoneAt: &now}.Undoable())
}

func TestApplyPatch_MergesAndClears(t *testing.T) {
	due := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	done := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	orig := TriageTask{
		Base:        Base{ID: "t-1"},
		Title:       "Call vendor",
		Kind:        TriageNext,
		Status:      TriageCompleted,
		DueAt:       &due,
		CompletedAt: &done,
		Labels:      []string{"phone"},
	}

	got, err := ApplyPatch(orig, Patch{
		"status":       string(TriageActive),
		"completed_at": nil,
		"effort":       EffortHigh,
	})
	require.NoError(t, err)

	assert.Equal(t, "t-1", got.ID)
	assert.Equal(t, "Call vendor", got.Title)
	assert.Equal(t, TriageActive, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, EffortHigh, got.Effort)
	require.NotNil(t, got.DueAt)
	assert.True(t, due.Equal(*got.DueAt))
	assert.Equal(t, []string{"phone"}, got.Labels)

	// The input is untouched.
	assert.Equal(t, TriageCompleted, orig.Status)
	require.NotNil(t, orig.CompletedAt)
}

func TestApplyPatch_TimeValues(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got, err := ApplyPatch(QuadrantTask{Status: QuadrantPending}, Patch{
		"status":       QuadrantCompleted,
		"completed_at": at,
	})
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, at.Equal(*got.CompletedAt))
}

func TestSnapshotOf_PickAndRestore(t *testing.T) {
	done := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	task := QuadrantTask{Title: "x", Status: QuadrantCompleted, CompletedAt: &done, Urgency: 4}

	snap, err := SnapshotOf(task)
	require.NoError(t, err)
	assert.Equal(t, "completed", snap["status"])
	assert.Equal(t, json.Number("4"), snap["urgency"])

	before := Snapshot{"status": "pending"}.Pick("status", "completed_at")
	assert.Contains(t, before, "completed_at")
	assert.Nil(t, before["completed_at"])

	restored, err := ApplyPatch(task, before.Patch())
	require.NoError(t, err)
	assert.Equal(t, QuadrantPending, restored.Status)
	assert.Nil(t, restored.CompletedAt)
	assert.Equal(t, 4, restored.Urgency)
}

func TestSnapshot_SurvivesJSONRoundTrip(t *testing.T) {
	entry := HistoryEntry{
		Before: Snapshot{"status": "active", "completed_at": nil},
	}
	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	var back HistoryEntry
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Contains(t, back.Before, "completed_at", "nil values must survive so undo can clear")
	assert.Equal(t, []string{"completed_at", "status"}, back.Before.Keys())
}

func TestNormalize(t *testing.T) {
	task := TriageTask{
		Title:   "  Café run ",
		Context: " @Work ",
		Labels:  []string{" errand ", "", "  "},
	}
	task.Normalize()

	assert.Equal(t, "Café run", task.Title)
	assert.Equal(t, "@Work", task.Context)
	assert.Equal(t, []string{"errand"}, task.Labels)
}

func TestNormalize_QuadrantTaskDerivesQuadrant(t *testing.T) {
	tests := []struct {
		name                string
		urgency, importance int
		wantU, wantI        int
		want                Quadrant
	}{
		{"in range", 4, 2, 4, 2, QuadrantDelegate},
		{"clamped high", 1, 99, 1, MaxScore, QuadrantSchedule},
		{"clamped low", 0, -3, MinScore, MinScore, QuadrantEliminate},
		{"threshold", 3, 3, 3, 3, QuadrantDo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := QuadrantTask{Title: " Plan ", Urgency: tt.urgency, Importance: tt.importance, Quadrant: QuadrantDo}
			task.Normalize()
			assert.Equal(t, "Plan", task.Title)
			assert.Equal(t, tt.wantU, task.Urgency)
			assert.Equal(t, tt.wantI, task.Importance)
			assert.Equal(t, tt.want, task.Quadrant)
		})
	}
}

func TestFoldTag(t *testing.T) {
	assert.Equal(t, "work", FoldTag("@Work"))
	assert.Equal(t, "work", FoldTag(" WORK "))
	assert.Equal(t, FoldTag("Straße"), FoldTag("STRASSE"))
}

func TestErrors(t *testing.T) {
	nf := NewNotFound(KeyTriage, "t-9")
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsNotUndoable(nf))
	assert.Contains(t, nf.Error(), "NOT_FOUND")
	assert.Contains(t, nf.Error(), "gtd-items=t-9")

	wrapped := wrap(nf)
	assert.True(t, IsNotFound(wrapped), "helpers see through wrapping")
	assert.Equal(t, ErrCodeNotFound, CodeOf(wrapped))

	pf := NewPersistenceFailure(KeyQuadrant, assert.AnError)
	assert.True(t, IsPersistenceFailure(pf))
	assert.ErrorIs(t, pf, assert.AnError)

	assert.True(t, IsNotUndoable(NewNotUndoable("h-1", "already undone")))
	assert.True(t, IsPairingInconsistency(NewPairingInconsistency(KeyQuadrant, "q-1", "t-1")))
	assert.Equal(t, ErrorCode(""), CodeOf(assert.AnError))
}

func wrap(err error) error {
	return &wrapper{err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return "ctx: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }
