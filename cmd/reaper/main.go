// The reaper returns work lost to crashed workers. Items stuck in
// processing past the claim timeout go back to pending; with
// -requeue-failed it also gives failed items under their retry budget
// another chance. Run it once from cron or with -loop as a sidecar.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"extractionworker/packages/config"
	"extractionworker/packages/logging"
	"extractionworker/packages/store"
)

func main() {
	requeueFailed := flag.Bool("requeue-failed", false, "also requeue failed items below the retry limit")
	loop := flag.Duration("loop", 0, "run continuously at this interval instead of once")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireDatabase(); err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg, "reaper")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	runOnce(ctx, storage, cfg, *requeueFailed)
	if *loop <= 0 {
		return
	}

	ticker := time.NewTicker(*loop)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Reaper stopped")
			return
		case <-ticker.C:
			runOnce(ctx, storage, cfg, *requeueFailed)
		}
	}
}

func runOnce(ctx context.Context, storage *store.Storage, cfg config.Config, requeueFailed bool) {
	reset, err := storage.ResetStalledClaims(ctx, cfg.ClaimTimeout)
	if err != nil {
		slog.Error("Failed to reset stalled claims", "error", err)
	} else if reset > 0 {
		slog.Info("Reset stalled claims", "count", reset, "claim_timeout", cfg.ClaimTimeout)
	}

	if requeueFailed {
		requeued, err := storage.RequeueFailed(ctx, cfg.MaxRetries)
		if err != nil {
			slog.Error("Failed to requeue failed items", "error", err)
		} else if requeued > 0 {
			slog.Info("Requeued failed items", "count", requeued, "max_retries", cfg.MaxRetries)
		}
	}

	pending, err := storage.PendingCount(ctx)
	if err == nil {
		slog.Info("Queue depth", "pending", pending)
	}
}
