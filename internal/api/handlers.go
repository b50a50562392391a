package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/viniciuscfreitas/gtdflow/internal/engine"
	"github.com/viniciuscfreitas/gtdflow/internal/history"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/stats"
)

// Request bodies

type captureRequest struct {
	Title           string        `json:"title"`
	Notes           string        `json:"notes"`
	Context         string        `json:"context"`
	Area            string        `json:"area"`
	DueAt           *time.Time    `json:"due_at"`
	Effort          record.Effort `json:"effort"`
	EstimateMinutes int           `json:"estimate_minutes"`
	Labels          []string      `json:"labels"`
}

type processRequest struct {
	Notes           string        `json:"notes"`
	Context         string        `json:"context"`
	Area            string        `json:"area"`
	DueAt           *time.Time    `json:"due_at"`
	Effort          record.Effort `json:"effort"`
	EstimateMinutes int           `json:"estimate_minutes"`
	DelegatedTo     string        `json:"delegated_to"`
	Labels          []string      `json:"labels"`
}

type completeRequest struct {
	Completed *bool `json:"completed"`
}

type focusStartRequest struct {
	TaskID         string `json:"task_id"`
	PlannedMinutes int    `json:"planned_minutes"`
}

type focusStopRequest struct {
	Interrupted bool `json:"interrupted"`
}

type objectiveRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TargetDate  *time.Time `json:"target_date"`
}

type progressRequest struct {
	Progress *int `json:"progress"`
}

// completionFields may only change through the complete route.
var completionFields = []string{"status", "completed_at"}

// Task handlers

func (s *Server) handleList(c *gin.Context) {
	kind, ok := s.kindParam(c)
	if !ok {
		return
	}
	all := c.Query("all") == "true"
	ctx := c.Request.Context()

	var (
		items any
		err   error
	)
	switch kind {
	case record.KindTriage:
		items, err = nonNil(s.app.Stores.Triage.Find(ctx, func(t record.TriageTask) bool {
			return all || !t.IsCompleted()
		}))
	case record.KindQuadrant:
		items, err = nonNil(s.app.Stores.Quadrant.Find(ctx, func(q record.QuadrantTask) bool {
			return all || !q.IsCompleted()
		}))
	case record.KindFocus:
		items, err = nonNil(s.app.Stores.Focus.Find(ctx, func(f record.FocusSession) bool {
			return all || f.IsRunning()
		}))
	default:
		items, err = nonNil(s.app.Stores.Objective.Find(ctx, func(o record.Objective) bool {
			return all || o.Status == record.ObjectiveActive
		}))
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	ok200(c, items)
}

func (s *Server) handleGet(c *gin.Context) {
	kind, ok := s.kindParam(c)
	if !ok {
		return
	}

	item, err := s.get(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok200(c, item)
}

func (s *Server) get(ctx context.Context, kind record.Kind, id string) (any, error) {
	switch kind {
	case record.KindTriage:
		return s.app.Stores.Triage.Get(ctx, id)
	case record.KindQuadrant:
		return s.app.Stores.Quadrant.Get(ctx, id)
	case record.KindFocus:
		return s.app.Stores.Focus.Get(ctx, id)
	default:
		return s.app.Stores.Objective.Get(ctx, id)
	}
}

func (s *Server) handleUpdate(c *gin.Context) {
	kind, ok := s.taskKindParam(c)
	if !ok {
		return
	}

	var patch record.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	for _, f := range completionFields {
		if _, ok := patch[f]; ok {
			badRequest(c, fmt.Errorf("field %q changes through the complete route", f))
			return
		}
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	if err := s.app.Engine.UpdateTask(ctx, id, kind, patch); err != nil {
		s.fail(c, err)
		return
	}
	item, err := s.get(ctx, kind, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok200(c, item)
}

func (s *Server) handleDelete(c *gin.Context) {
	kind, ok := s.taskKindParam(c)
	if !ok {
		return
	}

	res, err := s.app.Engine.DeleteTask(c.Request.Context(), c.Param("id"), kind)
	if err != nil {
		s.fail(c, err)
		return
	}
	body := gin.H{"success": true, "data": res}
	if res.PairErr != nil {
		body["warning"] = res.PairErr.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleComplete(c *gin.Context) {
	kind, ok := s.taskKindParam(c)
	if !ok {
		return
	}

	var req completeRequest
	if !bindOptional(c, &req) {
		return
	}
	completed := req.Completed == nil || *req.Completed

	res, err := s.app.Engine.CompleteTask(c.Request.Context(), c.Param("id"), kind, completed)
	if err != nil {
		s.fail(c, err)
		return
	}

	data := gin.H{
		"changed":  res.Changed,
		"sessions": res.Sessions,
	}
	if res.Triage != nil {
		data["gtd"] = res.Triage
	}
	if res.Quadrant != nil {
		data["eisenhower"] = res.Quadrant
	}
	if res.Entry != nil {
		data["history_id"] = res.Entry.ID
	}
	body := gin.H{"success": true, "data": data}
	if res.PairErr != nil {
		body["warning"] = res.PairErr.Error()
	}
	c.JSON(http.StatusOK, body)
}

// Inbox handlers

func (s *Server) handleCapture(c *gin.Context) {
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := validEffort(req.Effort); err != nil {
		badRequest(c, err)
		return
	}
	if record.NormalizeText(req.Title) == "" {
		badRequest(c, errors.New("title is required"))
		return
	}

	t, err := s.app.Engine.Capture(c.Request.Context(), record.TriageTask{
		Title:           req.Title,
		Notes:           req.Notes,
		Context:         req.Context,
		Area:            req.Area,
		DueAt:           req.DueAt,
		Effort:          req.Effort,
		EstimateMinutes: req.EstimateMinutes,
		Labels:          req.Labels,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": t})
}

func (s *Server) handleProcess(c *gin.Context) {
	var req processRequest
	if !bindOptional(c, &req) {
		return
	}
	if err := validEffort(req.Effort); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	t, cls, err := s.app.Engine.ProcessInboxItem(ctx, c.Param("id"), engine.Processing{
		Notes:           req.Notes,
		Context:         req.Context,
		Area:            req.Area,
		DueAt:           req.DueAt,
		Effort:          req.Effort,
		EstimateMinutes: req.EstimateMinutes,
		DelegatedTo:     req.DelegatedTo,
		Labels:          req.Labels,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	data := gin.H{"task": t, "classification": cls}
	if q, ok, err := s.app.Engine.PairedQuadrant(ctx, t.ID); err == nil && ok {
		data["quadrant"] = q
	}
	ok200(c, data)
}

func (s *Server) handleImport(c *gin.Context) {
	created, err := nonNil(s.app.Engine.AutoImport(c.Request.Context()))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok200(c, created)
}

// Focus and objective handlers

func (s *Server) handleFocusStart(c *gin.Context) {
	var req focusStartRequest
	if !bindOptional(c, &req) {
		return
	}
	if req.PlannedMinutes < 0 {
		badRequest(c, fmt.Errorf("planned_minutes must be positive, got %d", req.PlannedMinutes))
		return
	}
	if req.PlannedMinutes == 0 {
		req.PlannedMinutes = engine.DefaultFocusMinutes
	}

	session, err := s.app.Engine.StartFocus(c.Request.Context(), req.TaskID, req.PlannedMinutes)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": session})
}

func (s *Server) handleFocusStop(c *gin.Context) {
	var req focusStopRequest
	if !bindOptional(c, &req) {
		return
	}

	session, err := s.app.Engine.StopFocus(c.Request.Context(), c.Param("id"), req.Interrupted)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok200(c, session)
}

func (s *Server) handleObjectiveAdd(c *gin.Context) {
	var req objectiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if record.NormalizeText(req.Title) == "" {
		badRequest(c, errors.New("title is required"))
		return
	}

	o, err := s.app.Engine.AddObjective(c.Request.Context(), req.Title, req.Description, req.TargetDate)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": o})
}

func (s *Server) handleObjectiveProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Progress == nil {
		badRequest(c, errors.New("progress is required"))
		return
	}

	o, err := s.app.Engine.SetObjectiveProgress(c.Request.Context(), c.Param("id"), *req.Progress)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok200(c, o)
}

// History handlers

func (s *Server) handleHistory(c *gin.Context) {
	var f history.Filter
	if k := c.Query("kind"); k != "" {
		kind, ok := record.ParseKind(k)
		if !ok {
			badRequest(c, fmt.Errorf("invalid kind %q", k))
			return
		}
		f.Kind = kind
	}
	f.ID = c.Query("id")

	entries, err := nonNil(s.app.Ledger.RecentHistory(c.Request.Context(), f))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok200(c, entries)
}

func (s *Server) handleUndoable(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		badRequest(c, fmt.Errorf("invalid limit %q", c.Query("limit")))
		return
	}

	entries, err := nonNil(s.app.Ledger.UndoableActions(c.Request.Context(), limit))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok200(c, entries)
}

func (s *Server) handleUndo(c *gin.Context) {
	entry, err := s.app.Engine.Undo(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok200(c, entry)
}

// Stats handlers

func (s *Server) handleStats(c *gin.Context) {
	summary, err := s.app.Stats.Summary(c.Request.Context(), s.app.Clock.Now())
	if err != nil {
		s.fail(c, err)
		return
	}
	ok200(c, summary)
}

func (s *Server) handleSuggest(c *gin.Context) {
	criteria := stats.Criteria{
		Context:  c.Query("context"),
		Quadrant: record.Quadrant(c.Query("quadrant")),
		Effort:   record.Effort(c.Query("effort")),
		Now:      s.app.Clock.Now(),
	}
	if criteria.Quadrant != "" && !record.ValidQuadrants[criteria.Quadrant] {
		badRequest(c, fmt.Errorf("invalid quadrant %q", criteria.Quadrant))
		return
	}
	if err := validEffort(criteria.Effort); err != nil {
		badRequest(c, err)
		return
	}
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			badRequest(c, fmt.Errorf("invalid limit %q", l))
			return
		}
		criteria.Limit = n
	}

	list, err := s.app.Stats.Suggest(c.Request.Context(), criteria)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok200(c, list)
}

// Helpers

func (s *Server) kindParam(c *gin.Context) (record.Kind, bool) {
	k, ok := record.ParseKind(c.Param("kind"))
	if !ok || k == record.KindHistory {
		badRequest(c, fmt.Errorf("invalid kind %q", c.Param("kind")))
		return "", false
	}
	return k, true
}

func (s *Server) taskKindParam(c *gin.Context) (record.Kind, bool) {
	k, ok := s.kindParam(c)
	if !ok {
		return "", false
	}
	if k != record.KindTriage && k != record.KindQuadrant {
		badRequest(c, fmt.Errorf("invalid kind %q: must be gtd or eisenhower", k))
		return "", false
	}
	return k, true
}

// fail writes err with the status its code maps to.
func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrInvalidPatch) {
		badRequest(c, err)
		return
	}
	status := http.StatusInternalServerError
	code := record.CodeOf(err)
	switch code {
	case record.ErrCodeNotFound:
		status = http.StatusNotFound
	case record.ErrCodeNotUndoable:
		status = http.StatusConflict
	case "":
		code = "INTERNAL"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("api request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"code":    code,
		"error":   err.Error(),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"code":    "BAD_REQUEST",
		"error":   err.Error(),
	})
}

func ok200(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// bindOptional decodes a JSON body when one is present. It writes a 400 and
// returns false on malformed input.
func bindOptional(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return false
	}
	return true
}

func nonNil[T any](items []T, err error) ([]T, error) {
	if items == nil && err == nil {
		items = []T{}
	}
	return items, err
}

func validEffort(e record.Effort) error {
	if e != "" && !record.ValidEfforts[e] {
		return fmt.Errorf("invalid effort %q: must be low, medium or high", e)
	}
	return nil
}
