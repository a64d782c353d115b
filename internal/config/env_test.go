package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnvVars(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestParseEnv_AllFields(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"CONFIG": "/path/to/config.json",

		"ENGINE_ZONE":              "notes",
		"ENGINE_RECORD_TYPE":       "document",
		"ENGINE_MAX_PUSH_RETRIES":  "5",
		"ENGINE_MAX_PULL_RESTARTS": "4",

		"STORAGE_DSN": "/var/lib/cloudsync/sync.db",

		"REMOTE_ADDRESS":         "http://localhost:8080",
		"REMOTE_REQUEST_TIMEOUT": "30s",

		"WORKERS_SYNC_INTERVAL": "5m",

		"LOG_FILE": "/var/log/cloudsync/syncd.log",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &Config{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	assert.Equal(t, "/path/to/config.json", cfg.JSONFilePath)

	assert.Equal(t, "notes", cfg.Engine.Zone)
	assert.Equal(t, "document", cfg.Engine.RecordType)
	assert.Equal(t, 5, cfg.Engine.MaxPushRetries)
	assert.Equal(t, 4, cfg.Engine.MaxPullRestarts)

	assert.Equal(t, "/var/lib/cloudsync/sync.db", cfg.Storage.DSN)

	assert.Equal(t, "http://localhost:8080", cfg.Remote.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Remote.RequestTimeout)

	assert.Equal(t, 5*time.Minute, cfg.Workers.SyncInterval)

	assert.Equal(t, "/var/log/cloudsync/syncd.log", cfg.Logging.File)
}

func TestParseEnv_PartialFields(t *testing.T) {
	// Arrange
	setEnvVars(t, map[string]string{
		"ENGINE_ZONE":    "notes",
		"REMOTE_ADDRESS": "http://localhost:8080",
	})

	// Act
	cfg := &Config{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	assert.Equal(t, "notes", cfg.Engine.Zone)
	assert.Empty(t, cfg.Engine.RecordType)
	assert.Zero(t, cfg.Engine.MaxPushRetries)

	assert.Equal(t, "http://localhost:8080", cfg.Remote.BaseURL)
	assert.Zero(t, cfg.Remote.RequestTimeout)
	assert.Empty(t, cfg.Storage.DSN)
}

func TestParseEnv_InvalidDuration(t *testing.T) {
	// Arrange
	setEnvVars(t, map[string]string{
		"REMOTE_REQUEST_TIMEOUT": "not-a-duration",
	})

	// Act
	err := parseEnv(&Config{})

	// Assert
	require.Error(t, err)
}
