package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/viniciuscfreitas/gtdflow/internal/clock"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/store"
)

// DefaultWindow is the rolling window used by RecentHistory.
const DefaultWindow = 24 * time.Hour

// Writer applies the compensation for one entry. It receives the entry's
// Before snapshot.
type Writer func(ctx context.Context, before record.Snapshot) error

// Filter narrows RecentHistory. Empty fields match everything.
type Filter struct {
	Kind record.Kind
	ID   string
}

// Ledger records and undoes history entries.
//
// Thread-safety: safe for concurrent use. Undo calls are serialized so an
// entry is undone at most once; Record does not wait for an Undo in flight.
type Ledger struct {
	entries *store.HistoryStore
	clock   clock.Clock
	window  time.Duration
	logger  *slog.Logger

	undoMu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithWindow sets the RecentHistory window. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithClock sets the clock used for the window and UndoneAt.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithLogger sets the ledger logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New creates a ledger over the history store.
func New(entries *store.HistoryStore, opts ...Option) *Ledger {
	l := &Ledger{
		entries: entries,
		clock:   clock.System{},
		window:  DefaultWindow,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an entry with CanUndo = true and no UndoneAt.
func (l *Ledger) Record(ctx context.Context, kind record.Kind, id string, action record.Action, before, after record.Snapshot, description string) (record.HistoryEntry, error) {
	entry, err := l.entries.Create(ctx, record.HistoryEntry{
		EntityKind:  kind,
		EntityID:    id,
		Action:      action,
		Before:      before,
		After:       after,
		Description: description,
		CanUndo:     true,
	})
	if err != nil {
		return record.HistoryEntry{}, fmt.Errorf("record history: %w", err)
	}

	l.logger.Debug("history recorded",
		"entry", entry.ID,
		"kind", kind,
		"id", id,
		"action", action,
	)
	return entry, nil
}

// Get returns one entry.
func (l *Ledger) Get(ctx context.Context, historyID string) (record.HistoryEntry, error) {
	return l.entries.Get(ctx, historyID)
}

// Undo runs w with the entry's Before snapshot and, on success, marks the
// entry undone. Fails with NotUndoable when the entry is missing, was never
// undoable or has already been undone.
func (l *Ledger) Undo(ctx context.Context, historyID string, w Writer) (record.HistoryEntry, error) {
	l.undoMu.Lock()
	defer l.undoMu.Unlock()

	entry, err := l.entries.Get(ctx, historyID)
	if err != nil {
		if record.IsNotFound(err) {
			return record.HistoryEntry{}, record.NewNotUndoable(historyID, "history entry not found")
		}
		return record.HistoryEntry{}, fmt.Errorf("undo %s: %w", historyID, err)
	}
	if err := checkUndoable(entry); err != nil {
		return record.HistoryEntry{}, err
	}

	if err := w(ctx, entry.Before); err != nil {
		return record.HistoryEntry{}, fmt.Errorf("undo %s: compensate: %w", historyID, err)
	}

	now := l.clock.Now()
	marked, err := l.entries.UpdateWith(ctx, historyID, func(cur record.HistoryEntry) (record.Patch, error) {
		if err := checkUndoable(cur); err != nil {
			return nil, err
		}
		return record.Patch{"undone_at": now, "can_undo": false}, nil
	})
	if err != nil {
		// The compensation is applied but the entry still reads undoable.
		l.logger.Error("history entry not marked undone",
			"entry", historyID,
			"error", err,
		)
		return record.HistoryEntry{}, fmt.Errorf("undo %s: mark undone: %w", historyID, err)
	}

	l.logger.Info("history undone",
		"entry", historyID,
		"kind", entry.EntityKind,
		"id", entry.EntityID,
		"action", entry.Action,
	)
	return marked, nil
}

// RecentHistory returns entries created within the window that have not
// been undone, newest first.
func (l *Ledger) RecentHistory(ctx context.Context, f Filter) ([]record.HistoryEntry, error) {
	cutoff := l.clock.Now().Add(-l.window)

	out, err := l.entries.Find(ctx, func(e record.HistoryEntry) bool {
		if e.UndoneAt != nil || e.CreatedAt.Before(cutoff) {
			return false
		}
		if f.Kind != "" && e.EntityKind != f.Kind {
			return false
		}
		if f.ID != "" && e.EntityID != f.ID {
			return false
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	return newestFirst(out), nil
}

// UndoableActions returns up to limit undoable entries, newest first.
// A non-positive limit returns them all.
func (l *Ledger) UndoableActions(ctx context.Context, limit int) ([]record.HistoryEntry, error) {
	out, err := l.entries.Find(ctx, record.HistoryEntry.Undoable)
	if err != nil {
		return nil, fmt.Errorf("undoable actions: %w", err)
	}
	out = newestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func checkUndoable(e record.HistoryEntry) error {
	if e.UndoneAt != nil {
		return record.NewNotUndoable(e.ID, "history entry already undone")
	}
	if !e.CanUndo {
		return record.NewNotUndoable(e.ID, "history entry cannot be undone")
	}
	return nil
}

// newestFirst orders entries by CreatedAt descending. Entries are stored in
// append order, so equal timestamps fall back to reverse insertion order.
func newestFirst(entries []record.HistoryEntry) []record.HistoryEntry {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries
}
