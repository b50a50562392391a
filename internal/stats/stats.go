package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/viniciuscfreitas/gtdflow/internal/engine"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/store"
)

const (
	// DefaultStreakHorizonDays caps how far back the streak search looks.
	DefaultStreakHorizonDays = 365

	// DefaultSuggestionLimit is the number of suggestions returned when the
	// criteria do not say.
	DefaultSuggestionLimit = 5
)

// Service computes statistics and suggestions.
type Service struct {
	triage    *store.TriageStore
	quadrant  *store.QuadrantStore
	focus     *store.FocusStore
	objective *store.ObjectiveStore

	horizon int
	limit   int
	loc     *time.Location
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStreakHorizon sets the streak search horizon in days.
func WithStreakHorizon(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.horizon = days
		}
	}
}

// WithSuggestionLimit sets the default number of suggestions.
func WithSuggestionLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithLocation sets the time zone that defines day and week boundaries and
// time of day. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service reading the given stores.
func New(stores engine.Stores, opts ...Option) *Service {
	s := &Service{
		triage:    stores.Triage,
		quadrant:  stores.Quadrant,
		focus:     stores.Focus,
		objective: stores.Objective,
		horizon:   DefaultStreakHorizonDays,
		limit:     DefaultSuggestionLimit,
		loc:       time.Local,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary is a point-in-time statistics report.
type Summary struct {
	CompletedToday    int `json:"completed_today"`
	CompletedThisWeek int `json:"completed_this_week"`
	CompletedTotal    int `json:"completed_total"`
	Streak            int `json:"streak"`

	OpenByQuadrant map[record.Quadrant]int `json:"open_by_quadrant"`

	ActiveObjectives  int     `json:"active_objectives"`
	ObjectiveProgress float64 `json:"objective_progress"`

	ActiveFocusSessions int `json:"active_focus_sessions"`
}

// snapshot is one consistent-enough read of every store.
type snapshot struct {
	triage     []record.TriageTask
	quadrant   []record.QuadrantTask
	triageByID map[string]record.TriageTask
}

func (s *Service) read(ctx context.Context) (snapshot, error) {
	var snap snapshot
	var err error
	if snap.triage, err = s.triage.List(ctx); err != nil {
		return snap, err
	}
	if snap.quadrant, err = s.quadrant.List(ctx); err != nil {
		return snap, err
	}
	snap.triageByID = make(map[string]record.TriageTask, len(snap.triage))
	for _, t := range snap.triage {
		snap.triageByID[t.ID] = t
	}
	return snap, nil
}

// livePair reports whether q references a triage task that exists.
func (snap snapshot) livePair(q record.QuadrantTask) bool {
	if !q.IsPaired() {
		return false
	}
	_, ok := snap.triageByID[q.GTDTaskID]
	return ok
}

// completions returns the completion times of every unit of work.
func (snap snapshot) completions() []time.Time {
	var out []time.Time
	for _, t := range snap.triage {
		if t.IsCompleted() && t.CompletedAt != nil {
			out = append(out, *t.CompletedAt)
		}
	}
	for _, q := range snap.quadrant {
		if q.IsCompleted() && q.CompletedAt != nil && !snap.livePair(q) {
			out = append(out, *q.CompletedAt)
		}
	}
	return out
}

// Summary computes statistics as of now.
func (s *Service) Summary(ctx context.Context, now time.Time) (Summary, error) {
	snap, err := s.read(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}

	sum := Summary{OpenByQuadrant: map[record.Quadrant]int{}}

	now = now.In(s.loc)
	today := startOfDay(now)
	week := startOfWeek(now)
	days := make(map[string]bool)
	for _, at := range snap.completions() {
		at = at.In(s.loc)
		sum.CompletedTotal++
		if !at.Before(today) && at.Before(today.AddDate(0, 0, 1)) {
			sum.CompletedToday++
		}
		if !at.Before(week) && at.Before(week.AddDate(0, 0, 7)) {
			sum.CompletedThisWeek++
		}
		days[dayKey(at)] = true
	}
	sum.Streak = streak(days, today, s.horizon)

	for _, q := range snap.quadrant {
		if !q.IsCompleted() {
			sum.OpenByQuadrant[q.Quadrant]++
		}
	}

	objectives, err := s.objective.Find(ctx, func(o record.Objective) bool {
		return o.Status == record.ObjectiveActive
	})
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	sum.ActiveObjectives = len(objectives)
	if len(objectives) > 0 {
		total := 0
		for _, o := range objectives {
			total += o.Progress
		}
		sum.ObjectiveProgress = float64(total) / float64(len(objectives))
	}

	sessions, err := s.focus.Find(ctx, func(f record.FocusSession) bool {
		return f.Status == record.FocusActive
	})
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	sum.ActiveFocusSessions = len(sessions)

	return sum, nil
}

// streak counts consecutive completion days ending today, or ending
// yesterday when nothing is completed yet today. The search stops after
// horizon days.
func streak(days map[string]bool, today time.Time, horizon int) int {
	day := today
	if !days[dayKey(day)] {
		day = day.AddDate(0, 0, -1)
	}
	n := 0
	for n < horizon && days[dayKey(day)] {
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}

func dayKey(t time.Time) string { return t.Format(time.DateOnly) }

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the Monday 00:00 on or before t.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}
