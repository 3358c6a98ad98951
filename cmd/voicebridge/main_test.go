package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/voicebridge/internal/remote"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("VOICEBRIDGE_VERSION", "9.9.9")
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "voicebridge 9.9.9\n", out)
}

func TestMigrateCommandSQLite(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "voicebridge.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  driver: sqlite\n  data_dir: "+dir+"\nlog:\n  level: warn\n"), 0o600))

	out, err := execute(t, "migrate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite store is up to date")
	assert.FileExists(t, filepath.Join(dir, "voicebridge.db"))
}

func TestBadConfigFails(t *testing.T) {
	_, err := execute(t, "migrate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWriteTimeoutOutlastsRemoteRetries(t *testing.T) {
	budget := remote.New(remote.Config{}).Budget()
	assert.Greater(t, budget, 5*30*time.Second)
	assert.Greater(t, writeTimeout(budget), budget)
}
