package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenEnvUnset(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8765, cfg.AlertPort)
	assert.Equal(t, 8766, cfg.AdminPort)
	assert.True(t, cfg.AlpacaPaper)
	assert.Equal(t, 30, cfg.SubscriptionCap)
	assert.Equal(t, "momentum.db", cfg.DatabasePath)
	assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("ALERT_PORT", "9001")
	t.Setenv("ALPACA_PAPER", "false")
	t.Setenv("SUBSCRIPTION_CAP", "50")
	t.Setenv("RECONCILE_INTERVAL", "1m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.AlertPort)
	assert.False(t, cfg.AlpacaPaper)
	assert.Equal(t, 50, cfg.SubscriptionCap)
	assert.Equal(t, time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingEnvFileIsNotAnError(t *testing.T) {
	_, err := Load("/nonexistent/path/to/.env")
	assert.NoError(t, err)
}

func TestEnvIntIgnoresUnparsableValue(t *testing.T) {
	t.Setenv("ALERT_PORT", "not-a-number")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8765, cfg.AlertPort)
}
