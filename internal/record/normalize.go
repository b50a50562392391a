package record

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText trims surrounding whitespace and converts s to Unicode NFC,
// so visually identical titles compare equal.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// FoldTag canonicalizes a context or label for comparison: NFC, trimmed,
// case-folded, leading "@" removed.
func FoldTag(s string) string {
	s = NormalizeText(s)
	s = strings.TrimPrefix(s, "@")
	// A Caser is stateful, so one is made per call.
	return cases.Fold().String(s)
}

// Normalize canonicalizes the task's text fields.
func (t *TriageTask) Normalize() {
	t.Title = NormalizeText(t.Title)
	t.Context = NormalizeText(t.Context)
	t.Area = NormalizeText(t.Area)
	t.DelegatedTo = NormalizeText(t.DelegatedTo)
	if len(t.Labels) > 0 {
		labels := make([]string, 0, len(t.Labels))
		for _, l := range t.Labels {
			if l = NormalizeText(l); l != "" {
				labels = append(labels, l)
			}
		}
		t.Labels = labels
	}
}

// Normalize canonicalizes the task's text fields, clamps its scores and
// derives its quadrant from them.
func (t *QuadrantTask) Normalize() {
	t.Title = NormalizeText(t.Title)
	t.Urgency = ClampScore(t.Urgency)
	t.Importance = ClampScore(t.Importance)
	t.Quadrant = QuadrantFor(t.Urgency, t.Importance)
}

// Normalize canonicalizes the objective's text fields.
func (o *Objective) Normalize() {
	o.Title = NormalizeText(o.Title)
}
