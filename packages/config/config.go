// Package config
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL     string
	FetchServiceURL string

	BatchSize    int
	WorkerID     string
	PollInterval time.Duration

	MaxRetries   int
	RetryDelay   time.Duration
	FetchTimeout time.Duration

	MaxWorkers         int
	MaxProductsPerPage int
	MaxBatchSize       int

	ClaimTimeout time.Duration

	APIAddr     string
	MetricsAddr string

	// Optional HTML cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	HTMLCacheTTL  time.Duration

	LogFile  string
	LogLevel string
}

func Load() (Config, error) {
	cfg := Config{}

	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	cfg.FetchServiceURL = getEnv("FETCH_SERVICE_URL", "")

	var err error
	cfg.BatchSize, err = strconv.Atoi(getEnv("WORKER_BATCH_SIZE", "100"))
	if err != nil {
		slog.Warn("Invalid WORKER_BATCH_SIZE", "value", getEnv("WORKER_BATCH_SIZE", "100"), "error", err)
		cfg.BatchSize = 100
	}

	cfg.WorkerID = getEnv("WORKER_ID", "")
	if cfg.WorkerID == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			cfg.WorkerID = host
		} else {
			cfg.WorkerID = fmt.Sprintf("worker-%d", os.Getpid())
		}
	}

	cfg.PollInterval, _ = time.ParseDuration(getEnv("POLL_INTERVAL", "5s"))
	cfg.MaxRetries, _ = strconv.Atoi(getEnv("MAX_RETRIES", "3"))
	cfg.RetryDelay, _ = time.ParseDuration(getEnv("RETRY_DELAY", "10s"))
	cfg.FetchTimeout, _ = time.ParseDuration(getEnv("FETCH_TIMEOUT", "1h"))

	cfg.MaxWorkers, _ = strconv.Atoi(getEnv("MAX_WORKERS", "4"))
	cfg.MaxProductsPerPage, _ = strconv.Atoi(getEnv("MAX_PRODUCTS_PER_PAGE", "100"))
	cfg.MaxBatchSize, _ = strconv.Atoi(getEnv("MAX_BATCH_SIZE", "50"))

	cfg.ClaimTimeout, _ = time.ParseDuration(getEnv("CLAIM_TIMEOUT", "30m"))

	cfg.APIAddr = getEnv("API_ADDR", "0.0.0.0:5000")
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "0.0.0.0:9091")

	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, _ = strconv.Atoi(getEnv("REDIS_DB", "0"))
	cfg.HTMLCacheTTL, _ = time.ParseDuration(getEnv("HTML_CACHE_TTL", "6h"))

	cfg.LogFile = getEnv("LOG_FILE", "logs/worker.log")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}

	return cfg, nil
}

// RequireDatabase rejects a configuration without DATABASE_URL. The
// worker and reaper cannot run without the store; the API degrades to
// extraction-only and does not call this.
func (c Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("missing required environment variable: DATABASE_URL")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
