package config

import (
	"testing"
	"time"
)

func TestLoadWithoutDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load must succeed without DATABASE_URL (the API runs store-less): %v", err)
	}
	if err := cfg.RequireDatabase(); err == nil {
		t.Fatal("RequireDatabase should fail without DATABASE_URL")
	}
}

func TestRequireDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/products")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		t.Errorf("RequireDatabase: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/products")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want 100", cfg.BatchSize)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.MaxWorkers != 4 {
		t.Errorf("MaxWorkers = %d, want 4", cfg.MaxWorkers)
	}
	if cfg.MaxBatchSize != 50 {
		t.Errorf("MaxBatchSize = %d, want 50", cfg.MaxBatchSize)
	}
	if cfg.ClaimTimeout != 30*time.Minute {
		t.Errorf("ClaimTimeout = %v, want 30m", cfg.ClaimTimeout)
	}
	if cfg.WorkerID == "" {
		t.Error("WorkerID should fall back to the hostname")
	}
}

func TestLoadOverridesAndClamps(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/products")
	t.Setenv("WORKER_BATCH_SIZE", "25")
	t.Setenv("WORKER_ID", "worker-7")
	t.Setenv("MAX_WORKERS", "0")
	t.Setenv("POLL_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.BatchSize)
	}
	if cfg.WorkerID != "worker-7" {
		t.Errorf("WorkerID = %q", cfg.WorkerID)
	}
	if cfg.MaxWorkers != 1 {
		t.Errorf("MaxWorkers = %d, zero must clamp to 1", cfg.MaxWorkers)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
}

func TestLoadBadNumberFallsBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/products")
	t.Setenv("WORKER_BATCH_SIZE", "lots")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want default 100", cfg.BatchSize)
	}
}
