// Package bus implements the change notification bus that decouples entity
// stores from the logic reacting to their mutations.
//
// A Bus is an explicit service: construct one with New and pass it to every
// store. There is no package-level instance, so each test gets a fresh bus.
//
// Delivery model:
//   - Publish is synchronous; it returns after every handler has run
//   - Per-key subscribers run first, then global subscribers, each in
//     registration order
//   - A handler that returns an error or panics is logged and skipped;
//     the remaining handlers still run
//   - Subscribe and Unsubscribe may be called from inside a handler
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Action tags an event.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionClear  Action = "clear"

	// ActionSyncRequired is an advisory hint that the store named in
	// Event.Target may need to react to a mutation of Event.StoreKey.
	ActionSyncRequired Action = "sync-required"
)

// Event describes one committed store mutation.
type Event struct {
	Action Action

	// StoreKey is the originating store.
	StoreKey string

	// Seq is the originating store's logical clock value for this commit.
	Seq int64

	// ID is the affected record identifier (empty for clear).
	ID string

	// Record is the affected record value: the new version for create and
	// update, the last known version for delete.
	Record any

	// Records is the full pre-clear list, for clear only.
	Records any

	// Target is the hinted store key, for sync-required only.
	Target string

	// At is the commit wall time.
	At time.Time
}

// Handler reacts to an event. A returned error is logged, never propagated.
type Handler func(ctx context.Context, ev Event) error

// Unsubscribe removes a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

type subscription struct {
	id      int64
	handler Handler
	active  atomic.Bool
}

// Bus is a synchronous publish/subscribe hub keyed by store key.
//
// Thread-safety: all methods are safe for concurrent use. Handlers run on
// the publishing goroutine.
type Bus struct {
	mu     sync.Mutex
	nextID int64
	keyed  map[string][]*subscription
	global []*subscription
	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = l
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		keyed:  make(map[string][]*subscription),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for events published under storeKey.
func (b *Bus) Subscribe(storeKey string, h Handler) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := b.newSubscription(h)
	b.keyed[storeKey] = append(b.keyed[storeKey], sub)

	return func() { b.remove(storeKey, sub) }
}

// SubscribeGlobal registers h for every event on the bus.
func (b *Bus) SubscribeGlobal(h Handler) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := b.newSubscription(h)
	b.global = append(b.global, sub)

	return func() { b.remove("", sub) }
}

// Publish delivers ev to the subscribers of storeKey and then to the global
// subscribers.
//
// The subscriber lists are snapshotted before dispatch: a handler added
// during dispatch first sees the next Publish, and a handler removed during
// dispatch is skipped if it has not run yet.
func (b *Bus) Publish(ctx context.Context, storeKey string, ev Event) {
	b.mu.Lock()
	keyed := append([]*subscription(nil), b.keyed[storeKey]...)
	global := append([]*subscription(nil), b.global...)
	b.mu.Unlock()

	for _, sub := range keyed {
		b.deliver(ctx, storeKey, sub, ev)
	}
	for _, sub := range global {
		b.deliver(ctx, storeKey, sub, ev)
	}
}

func (b *Bus) newSubscription(h Handler) *subscription {
	b.nextID++
	sub := &subscription{id: b.nextID, handler: h}
	sub.active.Store(true)
	return sub
}

// remove deactivates sub and drops it from its list. storeKey "" means the
// global list.
func (b *Bus) remove(storeKey string, sub *subscription) {
	if !sub.active.CompareAndSwap(true, false) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.global
	if storeKey != "" {
		list = b.keyed[storeKey]
	}

	kept := make([]*subscription, 0, len(list))
	for _, s := range list {
		if s != sub {
			kept = append(kept, s)
		}
	}

	if storeKey == "" {
		b.global = kept
		return
	}
	if len(kept) == 0 {
		delete(b.keyed, storeKey)
		return
	}
	b.keyed[storeKey] = kept
}

// deliver runs one handler, isolating its failure.
func (b *Bus) deliver(ctx context.Context, storeKey string, sub *subscription, ev Event) {
	if !sub.active.Load() {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus handler panicked",
				"store", storeKey,
				"action", ev.Action,
				"subscription", sub.id,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if err := sub.handler(ctx, ev); err != nil {
		b.logger.Warn("bus handler failed",
			"store", storeKey,
			"action", ev.Action,
			"subscription", sub.id,
			"error", err,
		)
	}
}
