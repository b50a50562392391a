package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viniciuscfreitas/gtdflow/internal/bus"
	"github.com/viniciuscfreitas/gtdflow/internal/clock"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/substrate"
)

// errUnchanged aborts a commit without writing or publishing.
var errUnchanged = errors.New("unchanged")

// Store is durable CRUD over one record kind.
//
// Thread-safety: all methods are safe for concurrent use. Mutations of one
// Store are serialized; reads are not blocked by writers.
type Store[T any, P record.Entity[T]] struct {
	key    string
	kind   record.Kind
	sub    substrate.Substrate
	bus    *bus.Bus // may be nil in tests
	clock  clock.Clock
	seq    *clock.Sequence
	ids    IDGenerator
	hint   string
	logger *slog.Logger

	mu sync.Mutex
}

// New creates a store for record type T over sub, publishing on b.
//
// Usage:
//
//	triage := store.New[record.TriageTask](sub, b, store.WithSyncHint(record.KeyQuadrant))
func New[T any, P record.Entity[T]](sub substrate.Substrate, b *bus.Bus, opts ...Option) *Store[T, P] {
	var zero T
	kind := P(&zero).RecordKind()

	cfg := &config{
		key:    kind.StoreKey(),
		clock:  clock.System{},
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Store[T, P]{
		key:    cfg.key,
		kind:   kind,
		sub:    sub,
		bus:    b,
		clock:  cfg.clock,
		seq:    clock.NewSequence(),
		ids:    cfg.ids,
		hint:   cfg.hint,
		logger: cfg.logger,
	}
}

// Key returns the substrate key of the store.
func (s *Store[T, P]) Key() string { return s.key }

// Kind returns the record kind held by the store.
func (s *Store[T, P]) Kind() record.Kind { return s.kind }

// List returns every record. An absent collection is an empty, non-nil slice.
func (s *Store[T, P]) List(ctx context.Context) ([]T, error) {
	items, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.key, err)
	}
	return items, nil
}

// Get returns the record with the given identifier, or a NotFound error.
func (s *Store[T, P]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	items, err := s.load(ctx)
	if err != nil {
		return zero, fmt.Errorf("get %s: %w", s.key, err)
	}
	i := indexOf[T, P](items, id)
	if i < 0 {
		return zero, record.NewNotFound(s.key, id)
	}
	return items[i], nil
}

// Find returns the records matching pred, in stored order.
func (s *Store[T, P]) Find(ctx context.Context, pred func(T) bool) ([]T, error) {
	items, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", s.key, err)
	}
	out := []T{}
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Create allocates an identifier, stamps CreatedAt/UpdatedAt, persists the
// record and publishes a create event. Any ID or timestamps on rec are
// replaced.
func (s *Store[T, P]) Create(ctx context.Context, rec T) (T, error) {
	created, _, err := s.CreateUnique(ctx, rec, nil)
	return created, err
}

// CreateUnique creates rec unless an existing record satisfies conflicts.
// The check runs inside the same critical section as the write, so two
// racing callers can never both create.
//
// Returns the created record and true, or the first conflicting record and
// false. A nil conflicts func always creates.
func (s *Store[T, P]) CreateUnique(ctx context.Context, rec T, conflicts func(existing T) bool) (T, bool, error) {
	var zero, existing T
	found := false

	seq, err := s.commit(ctx, func(items []T) ([]T, error) {
		if conflicts != nil {
			for _, it := range items {
				if conflicts(it) {
					existing = it
					found = true
					return nil, errUnchanged
				}
			}
		}

		now := s.clock.Now()
		m := P(&rec).Meta()
		m.ID = s.ids.Generate()
		m.CreatedAt = now
		m.UpdatedAt = now
		normalize[T, P](&rec)

		return append(items, rec), nil
	})
	if found {
		return existing, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("create %s: %w", s.key, err)
	}

	s.emit(ctx, bus.Event{Action: bus.ActionCreate, Seq: seq, ID: P(&rec).Meta().ID, Record: rec})
	return rec, true, nil
}

// Update merges patch over the stored record, stamps UpdatedAt and publishes
// an update event. Fields absent from patch are left unchanged.
func (s *Store[T, P]) Update(ctx context.Context, id string, patch record.Patch) (T, error) {
	return s.UpdateWith(ctx, id, func(T) (record.Patch, error) { return patch, nil })
}

// UpdateWith computes the patch from the current stored record inside the
// critical section. An empty patch is a no-op: nothing is written or
// published and the current record is returned.
func (s *Store[T, P]) UpdateWith(ctx context.Context, id string, fn func(current T) (record.Patch, error)) (T, error) {
	var zero, updated T
	changed := false

	seq, err := s.commit(ctx, func(items []T) ([]T, error) {
		i := indexOf[T, P](items, id)
		if i < 0 {
			return nil, record.NewNotFound(s.key, id)
		}
		cur := items[i]

		patch, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if len(patch) == 0 {
			updated = cur
			return nil, errUnchanged
		}

		next, err := record.ApplyPatch(cur, patch)
		if err != nil {
			return nil, err
		}
		curMeta := P(&cur).Meta()
		m := P(&next).Meta()
		m.ID = curMeta.ID
		m.CreatedAt = curMeta.CreatedAt
		m.UpdatedAt = s.stamp(curMeta.UpdatedAt)
		normalize[T, P](&next)

		items[i] = next
		updated = next
		changed = true
		return items, nil
	})
	if errors.Is(err, errUnchanged) {
		return updated, nil
	}
	if err != nil {
		return zero, fmt.Errorf("update %s: %w", s.key, err)
	}

	if changed {
		s.emit(ctx, bus.Event{Action: bus.ActionUpdate, Seq: seq, ID: id, Record: updated})
	}
	return updated, nil
}

// Delete removes the record and publishes a delete event carrying its last
// known state.
func (s *Store[T, P]) Delete(ctx context.Context, id string) (T, error) {
	var zero, removed T

	seq, err := s.commit(ctx, func(items []T) ([]T, error) {
		i := indexOf[T, P](items, id)
		if i < 0 {
			return nil, record.NewNotFound(s.key, id)
		}
		removed = items[i]
		return append(items[:i:i], items[i+1:]...), nil
	})
	if err != nil {
		return zero, fmt.Errorf("delete %s: %w", s.key, err)
	}

	s.emit(ctx, bus.Event{Action: bus.ActionDelete, Seq: seq, ID: id, Record: removed})
	return removed, nil
}

// Clear removes every record and publishes a clear event carrying the
// prior list. The prior list is also returned.
func (s *Store[T, P]) Clear(ctx context.Context) ([]T, error) {
	var prior []T

	seq, err := s.commit(ctx, func(items []T) ([]T, error) {
		prior = items
		return []T{}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("clear %s: %w", s.key, err)
	}

	s.emit(ctx, bus.Event{Action: bus.ActionClear, Seq: seq, Records: prior})
	return prior, nil
}

// Restore re-inserts a previously deleted record under its original
// identifier and publishes a create event. CreatedAt is kept; UpdatedAt is
// stamped as for an update.
func (s *Store[T, P]) Restore(ctx context.Context, rec T) (T, error) {
	var zero T
	m := P(&rec).Meta()
	if m.ID == "" {
		return zero, fmt.Errorf("restore %s: record has no id", s.key)
	}

	seq, err := s.commit(ctx, func(items []T) ([]T, error) {
		if indexOf[T, P](items, m.ID) >= 0 {
			return nil, fmt.Errorf("record %s already exists", m.ID)
		}
		m.UpdatedAt = s.stamp(m.UpdatedAt)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = m.UpdatedAt
		}
		normalize[T, P](&rec)
		return append(items, rec), nil
	})
	if err != nil {
		return zero, fmt.Errorf("restore %s: %w", s.key, err)
	}

	s.emit(ctx, bus.Event{Action: bus.ActionCreate, Seq: seq, ID: m.ID, Record: rec})
	return rec, nil
}

// commit runs one read-compute-write critical section and returns the
// commit's sequence number. compute receives a freshly decoded collection
// and may modify it in place. Returning errUnchanged aborts without writing.
func (s *Store[T, P]) commit(ctx context.Context, compute func(items []T) ([]T, error)) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return 0, err
	}

	next, err := compute(items)
	if err != nil {
		return 0, err
	}

	if err := s.persist(ctx, next); err != nil {
		return 0, err
	}

	return s.seq.Next(), nil
}

// load reads and decodes the collection.
func (s *Store[T, P]) load(ctx context.Context) ([]T, error) {
	data, ok, err := s.sub.Get(ctx, s.key)
	if err != nil {
		return nil, record.NewPersistenceFailure(s.key, err)
	}
	if !ok {
		return []T{}, nil
	}
	items, err := decodeCollection[T](data)
	if err != nil {
		return nil, record.NewPersistenceFailure(s.key, err)
	}
	return items, nil
}

// persist encodes and writes the collection.
func (s *Store[T, P]) persist(ctx context.Context, items []T) error {
	data, err := encodeCollection(items)
	if err != nil {
		return record.NewPersistenceFailure(s.key, err)
	}
	if err := s.sub.Set(ctx, s.key, data); err != nil {
		return record.NewPersistenceFailure(s.key, err)
	}
	return nil
}

// stamp returns now, or prev when the clock reads earlier than prev.
func (s *Store[T, P]) stamp(prev time.Time) time.Time {
	now := s.clock.Now()
	if now.Before(prev) {
		return prev
	}
	return now
}

// emit publishes a committed mutation and, when configured, the sync hint.
func (s *Store[T, P]) emit(ctx context.Context, ev bus.Event) {
	s.logger.Debug("store commit",
		"store", s.key,
		"action", ev.Action,
		"id", ev.ID,
		"seq", ev.Seq,
	)

	if s.bus == nil {
		return
	}

	ev.StoreKey = s.key
	ev.At = s.clock.Now()
	s.bus.Publish(ctx, s.key, ev)

	if s.hint != "" && s.hint != s.key {
		s.bus.Publish(ctx, s.hint, bus.Event{
			Action:   bus.ActionSyncRequired,
			StoreKey: s.key,
			Target:   s.hint,
			Seq:      ev.Seq,
			ID:       ev.ID,
			Record:   ev.Record,
			At:       ev.At,
		})
	}
}

func indexOf[T any, P record.Entity[T]](items []T, id string) int {
	for i := range items {
		if P(&items[i]).Meta().ID == id {
			return i
		}
	}
	return -1
}

// normalizer is implemented by records that canonicalize text fields on write.
type normalizer interface {
	Normalize()
}

func normalize[T any, P record.Entity[T]](rec *T) {
	if n, ok := any(P(rec)).(normalizer); ok {
		n.Normalize()
	}
}
