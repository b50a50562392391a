// Package config loads gtdflow settings from defaults, an optional YAML file
// and GTDFLOW_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the full gtdflow configuration.
type Config struct {
	// Database is the SQLite file path.
	Database string `yaml:"database" mapstructure:"database"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`

	History HistoryConfig `yaml:"history" mapstructure:"history"`
	Stats   StatsConfig   `yaml:"stats" mapstructure:"stats"`
	Engine  EngineConfig  `yaml:"engine" mapstructure:"engine"`
	API     APIConfig     `yaml:"api" mapstructure:"api"`
}

// HistoryConfig configures the action history ledger.
type HistoryConfig struct {
	// Window is how far back "recent history" reaches.
	Window time.Duration `yaml:"window" mapstructure:"window"`
}

// StatsConfig configures statistics and suggestions.
type StatsConfig struct {
	StreakHorizonDays int `yaml:"streak_horizon_days" mapstructure:"streak_horizon_days"`
	SuggestionLimit   int `yaml:"suggestion_limit" mapstructure:"suggestion_limit"`
}

// EngineConfig configures the synchronizer.
type EngineConfig struct {
	// AutoImport pairs actionable triage tasks on every triage mutation.
	AutoImport bool `yaml:"auto_import" mapstructure:"auto_import"`
}

// APIConfig configures the local HTTP surface.
type APIConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: filepath.Join(Dir(), "gtdflow.db"),
		LogLevel: "info",
		History: HistoryConfig{
			Window: 24 * time.Hour,
		},
		Stats: StatsConfig{
			StreakHorizonDays: 365,
			SuggestionLimit:   5,
		},
		Engine: EngineConfig{
			AutoImport: true,
		},
		API: APIConfig{
			Addr: "127.0.0.1:7420",
		},
	}
}

// Dir returns the gtdflow directory in the user's home, or "." when there is
// no home directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".gtdflow")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("database: path is required")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.History.Window <= 0 {
		return fmt.Errorf("history.window: must be positive, got %s", c.History.Window)
	}
	if c.Stats.StreakHorizonDays <= 0 {
		return fmt.Errorf("stats.streak_horizon_days: must be positive, got %d", c.Stats.StreakHorizonDays)
	}
	if c.Stats.SuggestionLimit <= 0 {
		return fmt.Errorf("stats.suggestion_limit: must be positive, got %d", c.Stats.SuggestionLimit)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
