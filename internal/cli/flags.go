package cli

import (
	"fmt"
	"time"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// parseKind validates a --kind value. Only task kinds are accepted where
// taskOnly is set.
func parseKind(s string, taskOnly bool) (record.Kind, error) {
	k, ok := record.ParseKind(s)
	if !ok || k == record.KindHistory {
		return "", fmt.Errorf("invalid kind %q", s)
	}
	if taskOnly && k != record.KindTriage && k != record.KindQuadrant {
		return "", fmt.Errorf("invalid kind %q: must be gtd or eisenhower", s)
	}
	return k, nil
}

// parseDate accepts a calendar date (2006-01-02, end of that day in the
// local zone) or an RFC 3339 timestamp. An empty string yields nil.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	end := d.Add(24*time.Hour - time.Second)
	return &end, nil
}

func parseEffort(s string) (record.Effort, error) {
	if s == "" {
		return "", nil
	}
	e := record.Effort(s)
	if !record.ValidEfforts[e] {
		return "", fmt.Errorf("invalid effort %q: must be low, medium or high", s)
	}
	return e, nil
}

func parseQuadrant(s string) (record.Quadrant, error) {
	if s == "" {
		return "", nil
	}
	q := record.Quadrant(s)
	if !record.ValidQuadrants[q] {
		return "", fmt.Errorf("invalid quadrant %q", s)
	}
	return q, nil
}

// usageError reports a bad flag value through f.
func usageError(f *OutputFormatter, err error) error {
	if outErr := f.Error("COMMAND_ERROR", err.Error(), nil); outErr != nil {
		return WrapExitError(ExitCommandError, "failed to write output", outErr)
	}
	return WrapExitError(ExitCommandError, "invalid arguments", err)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
