package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentoven/voicebridge/internal/api/middleware"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, path string, headers map[string]string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestAPIKeyAuthDisabled(t *testing.T) {
	auth := middleware.NewAPIKeyAuth(nil)
	assert.False(t, auth.Enabled())
	assert.Equal(t, http.StatusOK, serve(auth.Middleware(okHandler()), "/api/v1/agents", nil))

	assert.False(t, middleware.NewAPIKeyAuth([]string{" ", ""}).Enabled())
}

func TestAPIKeyAuth(t *testing.T) {
	auth := middleware.NewAPIKeyAuth([]string{"test-key-1", "test-key-2"})
	assert.True(t, auth.Enabled())
	h := auth.Middleware(okHandler())

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		want    int
	}{
		{"bearer", "/api/v1/agents", map[string]string{"Authorization": "Bearer test-key-1"}, http.StatusOK},
		{"x-api-key", "/api/v1/agents", map[string]string{"X-API-Key": "test-key-2"}, http.StatusOK},
		{"wrong key", "/api/v1/agents", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"missing key", "/api/v1/pathways", nil, http.StatusUnauthorized},
		{"health is public", "/health", nil, http.StatusOK},
		{"version is public", "/version", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(h, tt.path, tt.headers))
		})
	}
}
