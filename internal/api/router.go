package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agentoven/voicebridge/internal/api/handlers"
	"github.com/agentoven/voicebridge/internal/api/middleware"
	"github.com/agentoven/voicebridge/internal/config"
)

const serviceName = "voicebridge"

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()
	auth := middleware.NewAPIKeyAuth(cfg.APIKeys)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "If-Match", "X-API-Key", "X-Request-Id"},
		ExposedHeaders: []string{"ETag", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(auth.Middleware)

	r.Get("/health", healthHandler(h))
	r.Get("/version", versionHandler(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/", h.CreateAgent)
			r.Route("/{agentID}", func(r chi.Router) {
				r.Get("/", h.GetAgent)
				r.Put("/", h.ReplaceAgent)
				r.Patch("/", h.PatchAgent)
				r.Delete("/", h.DeleteAgent)
				r.Post("/sync", h.SyncAgent)
			})
		})

		r.Route("/pathways", func(r chi.Router) {
			r.Get("/", h.ListPathways)
			r.Post("/", h.CreatePathway)
			r.Route("/{pathwayID}", func(r chi.Router) {
				r.Get("/", h.GetPathway)
				r.Put("/", h.ReplacePathway)
				r.Patch("/", h.PatchPathway)
				r.Delete("/", h.DeletePathway)
				r.Post("/sync", h.SyncPathway)
				r.Get("/remote", h.GetRemotePathway)
			})
		})
	})

	return r
}

func healthHandler(h *handlers.Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		if err := h.Store.Ping(ctx); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  status,
			"service": serviceName,
		})
	}
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": serviceName,
		})
	}
}
