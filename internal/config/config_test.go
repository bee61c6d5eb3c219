package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, 15*time.Second, cfg.ShutdownGrace)
}

func TestLoadRejectsInvalidRateLimit(t *testing.T) {
	t.Setenv("VIS_RATE_LIMIT_RPS", "not-a-number")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadHonorsOverrides(t *testing.T) {
	t.Setenv("VIS_LISTEN_ADDR", ":9090")
	t.Setenv("VIS_LOG_PRETTY", "true")
	t.Setenv("VIS_SHUTDOWN_GRACE", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 5*time.Second, cfg.ShutdownGrace)
}
