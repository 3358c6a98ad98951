package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/voicebridge/internal/config"
	"github.com/agentoven/voicebridge/pkg/server"
)

func TestNewServesHealth(t *testing.T) {
	for _, driver := range []string{"memory", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store.Driver = driver
			cfg.Store.DataDir = t.TempDir()

			ctx := context.Background()
			srv, err := server.New(ctx, cfg)
			require.NoError(t, err)
			defer func() { assert.NoError(t, srv.Close(ctx)) }()

			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestOpenStoreJoinsDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.Driver = "sqlite"
	cfg.Store.DataDir = dir

	s, err := server.OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.FileExists(t, filepath.Join(dir, "voicebridge.db"))
}
