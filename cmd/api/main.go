package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"extractionworker/packages/api"
	"extractionworker/packages/config"
	"extractionworker/packages/logging"
	"extractionworker/packages/metrics"
	"extractionworker/packages/parser"
	"extractionworker/packages/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg, "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The API can run without a database: extraction still works,
	// persistence is just disabled.
	var sink api.ProductSink
	if cfg.DatabaseURL == "" {
		slog.Info("DATABASE_URL not set, persistence disabled")
	} else if storage, err := store.New(ctx, cfg.DatabaseURL); err != nil {
		slog.Warn("Database unavailable, persistence disabled", "error", err)
	} else {
		defer storage.Close()
		sink = storage
	}

	go metrics.ExposeMetrics(cfg.MetricsAddr)

	server := api.NewServer(cfg, parser.NewEngine(), sink)
	httpServer := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: server.Routes(),
	}

	go func() {
		slog.Info("API server listening", "addr", cfg.APIAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutdown signal received, draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
	slog.Info("API server stopped")
}
