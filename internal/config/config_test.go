package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendMemory, cfg.SessionBackend)
	assert.Equal(t, 168*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "results", cfg.ResultsDir)
	assert.True(t, cfg.UsingDevSecret())
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("MAAT_ADDR", ":9999")
	t.Setenv("MAAT_SESSION_BACKEND", "Redis")
	t.Setenv("MAAT_REDIS_DB", "3")
	t.Setenv("MAAT_SESSION_TTL", "30m")
	t.Setenv("MAAT_JWT_SECRET", "s3cret")
	t.Setenv("MAAT_LOG_FORMAT", "JSON")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, BackendRedis, cfg.SessionBackend)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.UsingDevSecret())
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	t.Setenv("MAAT_SESSION_BACKEND", "memcached")
	t.Setenv("MAAT_LOG_FORMAT", "xml")
	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAAT_SESSION_BACKEND")
	assert.Contains(t, err.Error(), "MAAT_LOG_FORMAT")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MAAT_RESULTS_DIR=/tmp/maat-results\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("MAAT_RESULTS_DIR") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/maat-results", cfg.ResultsDir)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
