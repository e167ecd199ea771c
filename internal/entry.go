// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/halden/vaultd/internal/api"
	"github.com/halden/vaultd/internal/engine"
	"github.com/halden/vaultd/internal/mcpserver"
	"github.com/halden/vaultd/internal/noteservice"
	"github.com/halden/vaultd/internal/snapshot"
	"github.com/halden/vaultd/internal/sse"
	"github.com/halden/vaultd/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// In MCP mode stdout carries the protocol, so logs go to stderr.
	logOut := os.Stdout
	if app.mcpMode {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("snapshot_path", cfg.Snapshot.Path),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Bool("mcp_mode", app.mcpMode))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize the persisted index snapshot.
	snap, err := snapshot.Open(cfg.Snapshot.Path)
	if err != nil {
		return fmt.Errorf("init snapshot: %w", err)
	}
	defer snap.Close()

	// Build the in-memory index. Restore seeds from the snapshot when one
	// exists, so only files changed since the last run are re-read.
	eng := engine.New(logger, engine.WithSnapshot(snap))
	eng.Mount(store)
	if err := eng.Restore(ctx); err != nil {
		return fmt.Errorf("initial index: %w", err)
	}

	svc := noteservice.NewService(store, eng)

	if app.mcpMode {
		return runMCP(ctx, eng, store, svc, cfg, logger)
	}
	return runHTTP(ctx, eng, store, svc, cfg, logger)
}

func runHTTP(ctx context.Context, eng *engine.Engine, store storage.Provider, svc *noteservice.Service, cfg *Config, logger *slog.Logger) error {
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, broker, cfg.Vault.Path)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Attachments are served unauthenticated so notes can embed them directly.
	ah := api.NewAttachmentHandler(cfg.Vault.Path)
	r.Get("/attachments/{filename}", ah.ServeFile)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// The watcher only stops on context cancellation, so shutdown cancels
	// explicitly once the HTTP server has drained.
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		return engine.Watch(gCtx, eng, cfg.Vault.Path, logger, func(kind, path string) {
			broker.PublishNoteEvent(kind, path)
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		stop()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func runMCP(ctx context.Context, eng *engine.Engine, store storage.Provider, svc *noteservice.Service, cfg *Config, logger *slog.Logger) error {
	srv := mcpserver.New(store, svc)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	// The watcher keeps the index fresh while the MCP session runs.
	g.Go(func() error {
		return engine.Watch(gCtx, eng, cfg.Vault.Path, logger, nil)
	})

	g.Go(func() error {
		defer stop()
		logger.Info("Starting MCP server on stdio")
		return srv.ServeStdio()
	})

	return g.Wait()
}
