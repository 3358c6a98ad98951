// Package server assembles the voicebridge service from its configuration.
//
// This package lives in pkg/ (not internal/) so other binaries can embed
// the service and wrap its handler.
//
// Usage:
//
//	cfg, _ := config.Load("")
//	srv, err := server.New(ctx, cfg)
//	defer srv.Close(ctx)
//	http.ListenAndServe(cfg.Addr(), srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/voicebridge/internal/api"
	"github.com/agentoven/voicebridge/internal/api/handlers"
	"github.com/agentoven/voicebridge/internal/config"
	"github.com/agentoven/voicebridge/internal/mirror"
	"github.com/agentoven/voicebridge/internal/remote"
	"github.com/agentoven/voicebridge/internal/store"
	"github.com/agentoven/voicebridge/internal/telemetry"
)

// Server holds the initialized service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the local store. Exposed so embedders can reuse it.
	Store store.Store

	// Sync is the synchronizer shared by all handlers.
	Sync *mirror.Synchronizer

	// Remote is the platform client behind Sync.
	Remote *remote.Client

	Config *config.Config

	shutdownTelemetry telemetry.ShutdownFunc
}

// New initializes all components and returns a ready Server.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	s, err := OpenStore(ctx, cfg)
	if err != nil {
		shutdown(ctx)
		return nil, err
	}

	client := remote.New(remote.Config{
		BaseURL:        cfg.Remote.BaseURL,
		APIKey:         cfg.Remote.APIKey,
		CreateTimeout:  cfg.Remote.CreateTimeout,
		RequestTimeout: cfg.Remote.Timeout,
		MaxAttempts:    cfg.Remote.MaxAttempts,
		InitialBackoff: cfg.Remote.Backoff,
	})
	if cfg.Remote.APIKey == "" {
		log.Warn().Msg("No remote API key configured; remote calls will be unauthenticated")
	}

	sync := mirror.New(s, client)
	h := handlers.New(s, sync)

	return &Server{
		Handler:           api.NewRouter(cfg, h),
		Store:             s,
		Sync:              sync,
		Remote:            client,
		Config:            cfg,
		shutdownTelemetry: shutdown,
	}, nil
}

// OpenStore opens and migrates the configured store.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	opts := store.Options{
		Driver:         cfg.Store.Driver,
		DataDir:        cfg.Store.DataDir,
		SQLitePath:     cfg.Store.SQLitePath,
		DatabaseURL:    cfg.Store.DatabaseURL,
		MaxConnections: cfg.Store.MaxConnections,
	}
	if opts.Driver == store.DriverSQLite && cfg.Store.DataDir != "" && !filepath.IsAbs(opts.SQLitePath) {
		opts.SQLitePath = filepath.Join(cfg.Store.DataDir, opts.SQLitePath)
	}

	s, err := store.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	log.Info().Str("driver", cfg.Store.Driver).Msg("Store initialized")
	return s, nil
}

// Close flushes telemetry and closes the store.
func (s *Server) Close(ctx context.Context) error {
	return errors.Join(s.shutdownTelemetry(ctx), s.Store.Close())
}
