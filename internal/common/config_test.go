package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, 4, cfg.Run.Workers)
	assert.Equal(t, 0.5, cfg.Run.MaterialityThreshold)
	assert.Equal(t, 50, cfg.Resolver.BatchSize)
	assert.Equal(t, 2, cfg.Resolver.Attempts)
	assert.Equal(t, 5*time.Second, cfg.Resolver.GetRetryDelay())
	assert.Equal(t, 20*time.Second, cfg.Resolver.GetCallTimeout())
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	require.NoError(t, cfg.Validate())
}

func TestConfig_LoadMergesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	local := filepath.Join(dir, "local.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[run]
workers = 2
top_n = 10

[[managers]]
name = "Fund A"
weight = 60.0

[[managers]]
name = "Fund B"
weight = 40.0
`), 0o644))
	require.NoError(t, os.WriteFile(local, []byte(`
[run]
top_n = 25
`), 0o644))

	cfg, err := LoadConfig(base, local, filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Run.Workers)
	assert.Equal(t, 25, cfg.Run.TopN)
	require.Len(t, cfg.Managers, 2)
	assert.Equal(t, map[string]float64{"Fund A": 60, "Fund B": 40}, cfg.ManagerWeights())
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HOLDWISE_WORKERS", "8")
	t.Setenv("HOLDWISE_STORAGE_BACKEND", "MEMORY")
	t.Setenv("EODHD_API_KEY", "from-env")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, 8, cfg.Run.Workers)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "from-env", cfg.Clients.EODHD.APIKey)
}

func TestConfig_ValidateRejectsBadWeight(t *testing.T) {
	w := 120.0
	cfg := NewDefaultConfig()
	cfg.Managers = []ManagerConfig{{Name: "Fund A", Weight: &w}}

	err := cfg.Validate()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "managers.weight", cfgErr.Field)
}

func TestConfig_QuarterEndFallback(t *testing.T) {
	cfg := NewDefaultConfig()
	now := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC), cfg.Run.GetQuarterEnd(now))

	cfg.Run.QuarterEnd = "2025-06-30"
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), cfg.Run.GetQuarterEnd(now))
}
