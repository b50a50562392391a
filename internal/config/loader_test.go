package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 24*time.Hour, cfg.History.Window)
	assert.Equal(t, 365, cfg.Stats.StreakHorizonDays)
	assert.Equal(t, 5, cfg.Stats.SuggestionLimit)
	assert.True(t, cfg.Engine.AutoImport)
	assert.Equal(t, "gtdflow.db", filepath.Base(cfg.Database))
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database: /tmp/custom.db
log_level: debug
history:
  window: 48h
stats:
  streak_horizon_days: 30
  suggestion_limit: 3
engine:
  auto_import: false
api:
  addr: ":9000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.Database)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 48*time.Hour, cfg.History.Window)
	assert.Equal(t, 30, cfg.Stats.StreakHorizonDays)
	assert.Equal(t, 3, cfg.Stats.SuggestionLimit)
	assert.False(t, cfg.Engine.AutoImport)
	assert.Equal(t, ":9000", cfg.API.Addr)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 24*time.Hour, cfg.History.Window)
	assert.True(t, cfg.Engine.AutoImport)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")
	t.Setenv("GTDFLOW_LOG_LEVEL", "error")
	t.Setenv("GTDFLOW_STATS_SUGGESTION_LIMIT", "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, 9, cfg.Stats.SuggestionLimit)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_NoDefaultFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().History, cfg.History)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad level":     "log_level: loud\n",
		"zero window":   "history:\n  window: 0s\n",
		"zero limit":    "stats:\n  suggestion_limit: 0\n",
		"empty db path": "database: \"\"\n",
		"not yaml":      "history: [\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "DEBUG"
	l, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", l.String())
}
