package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/sheetimport/internal/config"
	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/logging"
	"github.com/JonMunkholm/sheetimport/internal/templatestore"
	"github.com/JonMunkholm/sheetimport/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists; real environment variables win
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"template_store", cfg.Store.Kind,
		"missing_price_policy", cfg.Pricing.MissingPolicy,
		"max_concurrent", cfg.Pipeline.MaxConcurrent,
		"require_api_key", cfg.Security.RequireAPIKey,
	)

	opts, err := core.OptionsFromConfig(cfg)
	if err != nil {
		slog.Error("failed to build pipeline options", "error", err, "code", core.MapError(err).Code)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := templatestore.Open(ctx, templatestore.OptionsFromConfig(cfg.Store))
	if err != nil {
		slog.Error("failed to open template store", "kind", cfg.Store.Kind, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("template store ready", "kind", cfg.Store.Kind)

	service := core.NewService(store, opts)
	server := web.NewServer(service, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests, then wait for running analyses
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if active := service.Limiter().Active(); active > 0 {
			slog.Info("waiting for analyses to complete", "active", active)
			if err := service.Drain(shutdownCtx); err != nil {
				slog.Warn("analyses did not complete in time", "error", err)
			}
		}
	}()

	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
