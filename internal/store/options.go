package store

import (
	"log/slog"

	"github.com/viniciuscfreitas/gtdflow/internal/clock"
)

type config struct {
	key    string
	clock  clock.Clock
	ids    IDGenerator
	hint   string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*config)

// WithKey overrides the substrate key (defaults to the kind's store key).
func WithKey(key string) Option {
	return func(c *config) {
		c.key = key
	}
}

// WithClock sets the wall clock used for CreatedAt/UpdatedAt.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) {
		cfg.clock = c
	}
}

// WithIDGenerator sets the identifier allocator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *config) {
		c.ids = g
	}
}

// WithSyncHint makes the store publish a sync-required event to target
// after every committed mutation.
func WithSyncHint(target string) Option {
	return func(c *config) {
		c.hint = target
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
