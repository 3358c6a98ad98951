package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/voicebridge/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "https://api.bland.ai/v1", cfg.Remote.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Remote.CreateTimeout)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 5, cfg.Remote.MaxAttempts)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicebridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
store:
  driver: sqlite
  sqlite_path: /tmp/vb.db
remote:
  api_key: from-file
  timeout: 10s
`), 0o600))

	t.Setenv("VOICEBRIDGE_REMOTE_API_KEY", "from-env")
	t.Setenv("VOICEBRIDGE_API_KEYS", "k1,k2")
	t.Setenv("VOICEBRIDGE_REMOTE_MAX_ATTEMPTS", "3")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/vb.db", cfg.Store.SQLitePath)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Remote.CreateTimeout)
	assert.Equal(t, "from-env", cfg.Remote.APIKey)
	assert.Equal(t, 3, cfg.Remote.MaxAttempts)
	assert.Equal(t, []string{"k1", "k2"}, cfg.APIKeys)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"bad driver", func(c *config.Config) { c.Store.Driver = "mongo" }},
		{"postgres without url", func(c *config.Config) { c.Store.Driver = "postgres" }},
		{"bad port", func(c *config.Config) { c.Port = 0 }},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }},
		{"zero attempts", func(c *config.Config) { c.Remote.MaxAttempts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, config.Default().Validate())
}
