package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"extractionworker/packages/config"
	"extractionworker/packages/fetcher"
	"extractionworker/packages/logging"
	"extractionworker/packages/metrics"
	"extractionworker/packages/parser"
	"extractionworker/packages/store"
	"extractionworker/packages/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireDatabase(); err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	go metrics.ExposeMetrics(cfg.MetricsAddr)

	w := worker.New(cfg, storage, fetcher.New(cfg), storage, parser.NewEngine())
	w.Run(ctx)
	slog.Info("Worker stopped")
}
