package harness

import (
	"fmt"
	"math"
	"time"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// argReader reads typed step arguments, keeping the first failure.
type argReader struct {
	m   map[string]any
	err error
}

func (r *argReader) fail(key string, err error) {
	if r.err == nil {
		r.err = &argError{err: fmt.Errorf("args.%s: %w", key, err)}
	}
}

// done returns the first failure, if any.
func (r *argReader) done() error {
	return r.err
}

func (r *argReader) str(key string) string {
	v, ok := r.m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(key, fmt.Errorf("want a string, got %T", v))
	}
	return s
}

func (r *argReader) required(key string) string {
	s := r.str(key)
	if s == "" && r.err == nil {
		r.fail(key, fmt.Errorf("is required"))
	}
	return s
}

func (r *argReader) int(key string, def int) int {
	v, ok := r.m[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		if n == math.Trunc(n) {
			return int(n)
		}
	}
	r.fail(key, fmt.Errorf("want an integer, got %v", v))
	return def
}

func (r *argReader) bool(key string) bool {
	v, ok := r.m[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(key, fmt.Errorf("want a boolean, got %T", v))
	}
	return b
}

func (r *argReader) time(key string) *time.Time {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			r.fail(key, err)
			return nil
		}
		return &parsed
	}
	r.fail(key, fmt.Errorf("want an RFC 3339 timestamp, got %T", v))
	return nil
}

func (r *argReader) duration(key string) time.Duration {
	s := r.required(key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		r.fail(key, err)
	}
	return d
}

func (r *argReader) strings(key string) []string {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		r.fail(key, fmt.Errorf("want a list, got %T", v))
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			r.fail(key, fmt.Errorf("want a list of strings, got %T", item))
			return nil
		}
		out = append(out, s)
	}
	return out
}

func (r *argReader) object(key string) map[string]any {
	v, ok := r.m[key]
	if !ok || v == nil {
		r.fail(key, fmt.Errorf("is required"))
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		r.fail(key, fmt.Errorf("want a mapping, got %T", v))
	}
	return m
}

// kind reads "kind", defaulting to the triage kind.
func (r *argReader) kind() record.Kind {
	s := r.str("kind")
	if s == "" {
		return record.KindTriage
	}
	k, ok := record.ParseKind(s)
	if !ok {
		r.fail("kind", fmt.Errorf("unknown kind %q", s))
	}
	return k
}
