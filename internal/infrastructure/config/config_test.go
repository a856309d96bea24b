package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Resilience.WindowSize)
	assert.Equal(t, 10, cfg.Resilience.MinimumCalls)
	assert.Equal(t, 0.5, cfg.Resilience.FailureRateThreshold)
	assert.Equal(t, 30*time.Second, cfg.Resilience.OpenStateWait)
	assert.Equal(t, 3, cfg.Resilience.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Resilience.InitialBackoff)
	assert.Equal(t, 20000.0, cfg.Risk.MaxOrderValue)
	assert.Equal(t, 0.1, cfg.Risk.ConcentrationLimit)
	assert.Equal(t, 5*time.Minute, cfg.Tracker.SweepInterval)
	assert.Equal(t, time.Hour, cfg.Tracker.StaleAfter)
	assert.Equal(t, 4, cfg.Notifier.Workers)
	assert.Equal(t, "orders.events", cfg.Kafka.OrderTopic)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
server:
  port: 9090
resilience:
  max_attempts: 5
risk:
  max_order_value: 50000
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Resilience.MaxAttempts)
	assert.Equal(t, 50000.0, cfg.Risk.MaxOrderValue)
	// Untouched values keep their defaults.
	assert.Equal(t, 100, cfg.Resilience.WindowSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Resilience.WindowSize = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Resilience.MinimumCalls = cfg.Resilience.WindowSize + 1
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Resilience.FailureRateThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Risk.ConcentrationLimit = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Notifier.Workers = 0
	assert.Error(t, cfg.Validate())
}
