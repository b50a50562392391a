package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciuscfreitas/gtdflow/internal/app"
	"github.com/viniciuscfreitas/gtdflow/internal/config"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/stats"
	"github.com/viniciuscfreitas/gtdflow/internal/substrate"
	"github.com/viniciuscfreitas/gtdflow/internal/testutil"
)

type testServer struct {
	sub    *substrate.Memory
	app    *app.App
	server *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sub := substrate.NewMemory()
	a := app.New(sub, config.Default(),
		app.WithClock(testutil.NewFakeClock(testutil.DefaultEpoch)),
		app.WithIDGenerator(testutil.NewSequentialIDs("id")),
		app.WithLocation(time.UTC),
	)
	t.Cleanup(func() { _ = a.Close() })

	return &testServer{sub: sub, app: a, server: NewServer(a)}
}

// response mirrors the JSON envelope with the payload left raw.
type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Warning string          `json:"warning"`
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)

	var resp response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	return w.Code, resp
}

// decode runs a request that must return want and decodes its payload.
func (ts *testServer) decode(t *testing.T, want int, method, path string, body, v any) response {
	t.Helper()
	code, resp := ts.do(t, method, path, body)
	require.Equal(t, want, code, "error: %s", resp.Error)
	require.True(t, resp.Success)
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
	return resp
}

func (ts *testServer) capture(t *testing.T, body map[string]any) record.TriageTask {
	t.Helper()
	var task record.TriageTask
	ts.decode(t, http.StatusCreated, http.MethodPost, "/api/inbox", body, &task)
	return task
}

func TestHandleCapture(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"valid", map[string]any{"title": "Call vendor", "context": "@phone"}, http.StatusCreated},
		{"missing title", map[string]any{"notes": "no title"}, http.StatusBadRequest},
		{"blank title", map[string]any{"title": "   "}, http.StatusBadRequest},
		{"invalid effort", map[string]any{"title": "x", "effort": "huge"}, http.StatusBadRequest},
		{"malformed", "not an object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			code, resp := ts.do(t, http.MethodPost, "/api/inbox", tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantCode == http.StatusCreated, resp.Success)
			if !resp.Success {
				assert.Equal(t, "BAD_REQUEST", resp.Code)
			}
		})
	}
}

func TestHandleProcess_ImportsPair(t *testing.T) {
	ts := newTestServer(t)
	task := ts.capture(t, map[string]any{"title": "Call vendor"})

	due := testutil.DefaultEpoch.Add(48 * time.Hour)
	var out struct {
		Task           record.TriageTask    `json:"task"`
		Classification map[string]any       `json:"classification"`
		Quadrant       *record.QuadrantTask `json:"quadrant"`
	}
	ts.decode(t, http.StatusOK, http.MethodPost, "/api/inbox/"+task.ID+"/process",
		map[string]any{"context": "work", "due_at": due}, &out)

	assert.Equal(t, record.TriageNext, out.Task.Kind)
	assert.Equal(t, string(record.QuadrantDo), out.Classification["quadrant"])
	require.NotNil(t, out.Quadrant)
	assert.Equal(t, task.ID, out.Quadrant.GTDTaskID)

	code, resp := ts.do(t, http.MethodPost, "/api/inbox/missing/process", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestHandleListAndGet(t *testing.T) {
	ts := newTestServer(t)
	task := ts.capture(t, map[string]any{"title": "Read paper"})

	var items []record.TriageTask
	ts.decode(t, http.StatusOK, http.MethodGet, "/api/tasks/gtd", nil, &items)
	require.Len(t, items, 1)

	var quadrants []record.QuadrantTask
	resp := ts.decode(t, http.StatusOK, http.MethodGet, "/api/tasks/eisenhower", nil, &quadrants)
	assert.Equal(t, "[]", string(resp.Data), "empty lists encode as []")

	var got record.TriageTask
	ts.decode(t, http.StatusOK, http.MethodGet, "/api/tasks/triage/"+task.ID, nil, &got)
	assert.Equal(t, "Read paper", got.Title)

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"unknown id", "/api/tasks/gtd/missing", http.StatusNotFound},
		{"unknown kind", "/api/tasks/bogus", http.StatusBadRequest},
		{"history is not listable", "/api/tasks/history", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := ts.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestHandleUpdate(t *testing.T) {
	ts := newTestServer(t)
	task := ts.capture(t, map[string]any{"title": "Draft"})

	var updated record.TriageTask
	ts.decode(t, http.StatusOK, http.MethodPatch, "/api/tasks/gtd/"+task.ID,
		map[string]any{"title": "Draft proposal"}, &updated)
	assert.Equal(t, "Draft proposal", updated.Title)

	code, resp := ts.do(t, http.MethodPatch, "/api/tasks/gtd/"+task.ID, map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error, "complete route")

	code, _ = ts.do(t, http.MethodPatch, "/api/tasks/focus/"+task.ID, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = ts.do(t, http.MethodPatch, "/api/tasks/gtd/"+task.ID, map[string]any{"kind": "bogus"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "BAD_REQUEST", resp.Code)

	code, _ = ts.do(t, http.MethodPatch, "/api/tasks/eisenhower/"+task.ID, map[string]any{"gtd_task_id": "x"})
	assert.Equal(t, http.StatusBadRequest, code, "the back-reference is rejected before the lookup")
}

func TestHandleCompleteAndDelete(t *testing.T) {
	ts := newTestServer(t)
	task := ts.capture(t, map[string]any{"title": "Book flights", "effort": "high"})
	ts.decode(t, http.StatusOK, http.MethodPost, "/api/inbox/"+task.ID+"/process", nil, nil)

	var done struct {
		Changed   bool                 `json:"changed"`
		Quadrant  *record.QuadrantTask `json:"eisenhower"`
		HistoryID string               `json:"history_id"`
	}
	ts.decode(t, http.StatusOK, http.MethodPost, "/api/tasks/gtd/"+task.ID+"/complete", nil, &done)
	assert.True(t, done.Changed)
	require.NotNil(t, done.Quadrant)
	assert.Equal(t, record.QuadrantCompleted, done.Quadrant.Status)
	assert.NotEmpty(t, done.HistoryID)

	ts.decode(t, http.StatusOK, http.MethodPost, "/api/tasks/gtd/"+task.ID+"/complete",
		map[string]any{"completed": false}, &done)
	assert.True(t, done.Changed)
	assert.Equal(t, record.QuadrantPending, done.Quadrant.Status)

	var deleted struct {
		ID       string `json:"id"`
		PairKind string `json:"pair_kind"`
		PairID   string `json:"pair_id"`
	}
	ts.decode(t, http.StatusOK, http.MethodDelete, "/api/tasks/gtd/"+task.ID, nil, &deleted)
	assert.Equal(t, task.ID, deleted.ID)
	assert.Equal(t, string(record.KindQuadrant), deleted.PairKind)
	assert.Equal(t, done.Quadrant.ID, deleted.PairID)

	code, resp := ts.do(t, http.MethodDelete, "/api/tasks/gtd/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestHandleUndo(t *testing.T) {
	ts := newTestServer(t)
	task := ts.capture(t, map[string]any{"title": "Temporary"})

	var entries []record.HistoryEntry
	ts.decode(t, http.StatusOK, http.MethodGet, "/api/history/undoable?limit=1", nil, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, task.ID, entries[0].EntityID)
	assert.Equal(t, record.ActionCreate, entries[0].Action)

	ts.decode(t, http.StatusOK, http.MethodPost, "/api/history/"+entries[0].ID+"/undo", nil, nil)

	code, _ := ts.do(t, http.MethodGet, "/api/tasks/gtd/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, resp := ts.do(t, http.MethodPost, "/api/history/"+entries[0].ID+"/undo", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "NOT_UNDOABLE", resp.Code)

	code, _ = ts.do(t, http.MethodGet, "/api/history/undoable?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandleHistory_Filters(t *testing.T) {
	ts := newTestServer(t)
	first := ts.capture(t, map[string]any{"title": "First"})
	ts.capture(t, map[string]any{"title": "Second"})

	var entries []record.HistoryEntry
	ts.decode(t, http.StatusOK, http.MethodGet, "/api/history", nil, &entries)
	assert.Len(t, entries, 2)

	ts.decode(t, http.StatusOK, http.MethodGet, "/api/history?kind=gtd&id="+first.ID, nil, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, first.ID, entries[0].EntityID)

	ts.decode(t, http.StatusOK, http.MethodGet, "/api/history?kind=objective", nil, &entries)
	assert.Empty(t, entries)

	code, _ := ts.do(t, http.MethodGet, "/api/history?kind=nope", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandleFocusAndObjectives(t *testing.T) {
	ts := newTestServer(t)
	task := ts.capture(t, map[string]any{"title": "Deep work"})

	var session record.FocusSession
	ts.decode(t, http.StatusCreated, http.MethodPost, "/api/focus", map[string]any{"task_id": task.ID}, &session)
	assert.Equal(t, 25, session.PlannedMinutes)
	assert.Equal(t, record.FocusActive, session.Status)

	ts.decode(t, http.StatusOK, http.MethodPost, "/api/focus/"+session.ID+"/stop", nil, &session)
	assert.Equal(t, record.FocusCompleted, session.Status)

	code, _ := ts.do(t, http.MethodPost, "/api/focus", map[string]any{"task_id": "missing"})
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ts.do(t, http.MethodPost, "/api/focus", map[string]any{"planned_minutes": -5})
	assert.Equal(t, http.StatusBadRequest, code)

	var o record.Objective
	ts.decode(t, http.StatusCreated, http.MethodPost, "/api/objectives", map[string]any{"title": "Run a marathon"}, &o)
	ts.decode(t, http.StatusOK, http.MethodPut, "/api/objectives/"+o.ID+"/progress", map[string]any{"progress": 100}, &o)
	assert.Equal(t, record.ObjectiveAchieved, o.Status)

	code, _ = ts.do(t, http.MethodPut, "/api/objectives/"+o.ID+"/progress", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandleStatsAndSuggestions(t *testing.T) {
	ts := newTestServer(t)
	task := ts.capture(t, map[string]any{"title": "Prepare slides", "context": "work"})
	ts.decode(t, http.StatusOK, http.MethodPost, "/api/inbox/"+task.ID+"/process", nil, nil)

	var summary stats.Summary
	ts.decode(t, http.StatusOK, http.MethodGet, "/api/stats", nil, &summary)
	assert.Equal(t, 0, summary.CompletedTotal)
	assert.Equal(t, 1, summary.OpenByQuadrant[record.QuadrantSchedule])

	var suggestions []stats.Suggestion
	ts.decode(t, http.StatusOK, http.MethodGet, "/api/suggestions?context=work&limit=3", nil, &suggestions)
	require.Len(t, suggestions, 1)
	assert.Equal(t, task.ID, suggestions[0].ID)
	assert.True(t, suggestions[0].MatchesContext)

	code, _ := ts.do(t, http.MethodGet, "/api/suggestions?quadrant=soon", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandleImport(t *testing.T) {
	ts := newTestServer(t)

	var created []record.QuadrantTask
	resp := ts.decode(t, http.StatusOK, http.MethodPost, "/api/import", nil, &created)
	assert.Equal(t, "[]", string(resp.Data))
}

func TestPersistenceFailureIs500(t *testing.T) {
	ts := newTestServer(t)
	ts.sub.FailWrites(record.KeyTriage, errors.New("disk full"))

	code, resp := ts.do(t, http.MethodPost, "/api/inbox", map[string]any{"title": "Lost"})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "PERSISTENCE_FAILURE", resp.Code)
	assert.False(t, resp.Success)
}
