package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: GTDFLOW_DATABASE,
// GTDFLOW_HISTORY_WINDOW, ...
const EnvPrefix = "GTDFLOW"

// Load reads the configuration.
//
// An explicit path must exist. With an empty path the file at DefaultPath is
// read when present and skipped otherwise.
func Load(path string) (*Config, error) {
	cfg := Default()
	v := newViper(cfg)

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	} else {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// newViper registers every key with its default so that environment
// variables can override keys absent from the file.
func newViper(def *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database", def.Database)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("history.window", def.History.Window)
	v.SetDefault("stats.streak_horizon_days", def.Stats.StreakHorizonDays)
	v.SetDefault("stats.suggestion_limit", def.Stats.SuggestionLimit)
	v.SetDefault("engine.auto_import", def.Engine.AutoImport)
	v.SetDefault("api.addr", def.API.Addr)
	return v
}
