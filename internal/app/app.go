// Package app wires the substrate, bus, stores, ledger, engine and stats
// service into one running instance. The CLI and the HTTP API both start
// from here.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/viniciuscfreitas/gtdflow/internal/bus"
	"github.com/viniciuscfreitas/gtdflow/internal/clock"
	"github.com/viniciuscfreitas/gtdflow/internal/config"
	"github.com/viniciuscfreitas/gtdflow/internal/engine"
	"github.com/viniciuscfreitas/gtdflow/internal/history"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/stats"
	"github.com/viniciuscfreitas/gtdflow/internal/store"
	"github.com/viniciuscfreitas/gtdflow/internal/substrate"
)

// App is a fully wired instance.
type App struct {
	Config  *config.Config
	Bus     *bus.Bus
	Stores  engine.Stores
	History *store.HistoryStore
	Ledger  *history.Ledger
	Engine  *engine.Engine
	Stats   *stats.Service
	Clock   clock.Clock
	Logger  *slog.Logger

	sub    substrate.Substrate
	closer io.Closer
	detach bus.Unsubscribe
}

type options struct {
	clock  clock.Clock
	ids    store.IDGenerator
	logger *slog.Logger
	loc    *time.Location
}

// Option configures an App.
type Option func(*options)

// WithClock replaces the wall clock everywhere.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator replaces the record ID generator of every store.
func WithIDGenerator(g store.IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLocation sets the time zone used by statistics.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

// Open opens the SQLite database named by cfg.Database, creating its
// directory when needed, and wires an App over it.
func Open(cfg *config.Config, opts ...Option) (*App, error) {
	if dir := filepath.Dir(cfg.Database); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Database, err)
		}
	}

	db, err := substrate.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Database, err)
	}

	a := New(db, cfg, opts...)
	a.closer = db
	return a, nil
}

// New wires an App over an existing substrate. The caller keeps ownership of
// sub.
func New(sub substrate.Substrate, cfg *config.Config, opts ...Option) *App {
	o := &options{
		clock:  clock.System{},
		ids:    store.UUIDv7Generator{},
		logger: slog.Default(),
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(o)
	}

	b := bus.New(bus.WithLogger(o.logger))
	common := []store.Option{
		store.WithClock(o.clock),
		store.WithIDGenerator(o.ids),
		store.WithLogger(o.logger),
	}
	triageOpts := append(append([]store.Option{}, common...), store.WithSyncHint(record.KeyQuadrant))

	stores := engine.Stores{
		Triage:    store.New[record.TriageTask](sub, b, triageOpts...),
		Quadrant:  store.New[record.QuadrantTask](sub, b, common...),
		Focus:     store.New[record.FocusSession](sub, b, common...),
		Objective: store.New[record.Objective](sub, b, common...),
	}
	entries := store.New[record.HistoryEntry](sub, b, common...)

	ledger := history.New(entries,
		history.WithClock(o.clock),
		history.WithWindow(cfg.History.Window),
		history.WithLogger(o.logger),
	)
	eng := engine.New(stores, ledger,
		engine.WithClock(o.clock),
		engine.WithLogger(o.logger),
	)
	svc := stats.New(stores,
		stats.WithStreakHorizon(cfg.Stats.StreakHorizonDays),
		stats.WithSuggestionLimit(cfg.Stats.SuggestionLimit),
		stats.WithLocation(o.loc),
		stats.WithLogger(o.logger),
	)

	a := &App{
		Config:  cfg,
		Bus:     b,
		Stores:  stores,
		History: entries,
		Ledger:  ledger,
		Engine:  eng,
		Stats:   svc,
		Clock:   o.clock,
		Logger:  o.logger,
		sub:     sub,
	}
	if cfg.Engine.AutoImport {
		a.detach = eng.Attach(b)
	}
	return a
}

// Collection describes one stored key.
type Collection struct {
	Key      string `json:"key"`
	Records  int    `json:"records"`
	Revision int64  `json:"revision"`
}

// Collections reports every key the substrate holds, with its record count
// and write revision. It returns nil when the substrate cannot list keys.
func (a *App) Collections(ctx context.Context) ([]Collection, error) {
	in, ok := a.sub.(substrate.Inspector)
	if !ok {
		return nil, nil
	}
	keys, err := in.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("collections: %w", err)
	}

	out := make([]Collection, 0, len(keys))
	for _, key := range keys {
		rev, err := in.Revision(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("collections: %w", err)
		}
		data, _, err := a.sub.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("collections: %w", err)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("collections: decode %s: %w", key, err)
		}
		out = append(out, Collection{Key: key, Records: len(items), Revision: rev})
	}
	return out, nil
}

// Close detaches the engine from the bus and closes the substrate if Open
// created it. Safe to call more than once.
func (a *App) Close() error {
	if a.detach != nil {
		a.detach()
		a.detach = nil
	}
	if a.closer != nil {
		c := a.closer
		a.closer = nil
		return c.Close()
	}
	return nil
}
