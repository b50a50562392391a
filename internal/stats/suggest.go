package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/viniciuscfreitas/gtdflow/internal/engine"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// Criteria describes the user's current situation.
type Criteria struct {
	// Context is the situational tag the user is in ("@home"). Optional.
	Context string

	// Quadrant is the quadrant the user wants to work from. Optional.
	Quadrant record.Quadrant

	// Effort is the energy available. Defaults to EffortForTime(Now).
	Effort record.Effort

	// Now is the evaluation instant. Defaults to the current time.
	Now time.Time

	// Limit bounds the result. Defaults to the service limit.
	Limit int
}

// Suggestion is one ranked candidate.
type Suggestion struct {
	Kind       record.Kind     `json:"kind"`
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Context    string          `json:"context,omitempty"`
	Effort     record.Effort   `json:"effort,omitempty"`
	Quadrant   record.Quadrant `json:"quadrant"`
	Urgency    int             `json:"urgency"`
	Importance int             `json:"importance"`
	CreatedAt  time.Time       `json:"created_at"`

	MatchesContext  bool `json:"matches_context"`
	MatchesQuadrant bool `json:"matches_quadrant"`
	MatchesEffort   bool `json:"matches_effort"`
}

// EffortForTime maps the hour of t to the effort level that suits it:
// mornings (05-12) high, afternoons (12-17) medium, otherwise low.
func EffortForTime(t time.Time) record.Effort {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return record.EffortHigh
	case h >= 12 && h < 17:
		return record.EffortMedium
	}
	return record.EffortLow
}

// Suggest ranks open work for the given situation.
//
// Candidates are active next-action triage tasks (scored from their pair
// when one exists) and quadrant tasks with no live pair. A candidate needs at
// least one matching signal or an urgency or importance at the threshold;
// the scores only decide eligibility. Ranking: context match, then quadrant
// match, then effort match, then most recently created.
func (s *Service) Suggest(ctx context.Context, c Criteria) ([]Suggestion, error) {
	if c.Now.IsZero() {
		c.Now = time.Now()
	}
	c.Now = c.Now.In(s.loc)
	if c.Effort == "" {
		c.Effort = EffortForTime(c.Now)
	}
	limit := c.Limit
	if limit <= 0 {
		limit = s.limit
	}

	snap, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}

	pairByTriage := make(map[string]record.QuadrantTask)
	for _, q := range snap.quadrant {
		if snap.livePair(q) {
			pairByTriage[q.GTDTaskID] = q
		}
	}

	var candidates []Suggestion
	for _, t := range snap.triage {
		if t.Status != record.TriageActive || t.Kind != record.TriageNext {
			continue
		}
		sg := Suggestion{
			Kind:      record.KindTriage,
			ID:        t.ID,
			Title:     t.Title,
			Context:   t.Context,
			Effort:    t.Effort,
			CreatedAt: t.CreatedAt,
		}
		if q, ok := pairByTriage[t.ID]; ok {
			sg.Quadrant, sg.Urgency, sg.Importance = q.Quadrant, q.Urgency, q.Importance
		} else {
			cl := engine.Classify(engine.InputFromTriage(t), c.Now)
			sg.Quadrant, sg.Urgency, sg.Importance = cl.Quadrant, cl.Urgency, cl.Importance
		}
		candidates = append(candidates, sg)
	}
	for _, q := range snap.quadrant {
		if q.IsCompleted() || snap.livePair(q) {
			continue
		}
		candidates = append(candidates, Suggestion{
			Kind:       record.KindQuadrant,
			ID:         q.ID,
			Title:      q.Title,
			Quadrant:   q.Quadrant,
			Urgency:    q.Urgency,
			Importance: q.Importance,
			CreatedAt:  q.CreatedAt,
		})
	}

	wantContext := record.FoldTag(c.Context)
	out := []Suggestion{}
	for _, sg := range candidates {
		sg.MatchesContext = wantContext != "" && record.FoldTag(sg.Context) == wantContext
		sg.MatchesQuadrant = c.Quadrant != "" && sg.Quadrant == c.Quadrant
		sg.MatchesEffort = sg.Effort != "" && sg.Effort == c.Effort

		eligible := sg.MatchesContext || sg.MatchesQuadrant || sg.MatchesEffort ||
			sg.Urgency >= record.ScoreThreshold || sg.Importance >= record.ScoreThreshold
		if eligible {
			out = append(out, sg)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.MatchesContext != b.MatchesContext {
			return a.MatchesContext
		}
		if a.MatchesQuadrant != b.MatchesQuadrant {
			return a.MatchesQuadrant
		}
		if a.MatchesEffort != b.MatchesEffort {
			return a.MatchesEffort
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	s.logger.Debug("suggestions computed",
		"candidates", len(candidates),
		"returned", len(out),
		"effort", c.Effort,
	)
	return out, nil
}
