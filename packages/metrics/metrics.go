// Package metrics
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ItemsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_items_processed_total",
			Help: "Work items brought to a terminal state, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	ProductsExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extractor_products_extracted_total",
			Help: "Valid products returned by the extraction engine.",
		},
	)
	ProductsSaved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extractor_products_saved_total",
			Help: "Product rows successfully written to r_product_data.",
		},
	)
	StrategyWins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_strategy_wins_total",
			Help: "Pages won by each extraction strategy.",
		},
		[]string{"strategy"},
	)
	FetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_fetch_attempts_total",
			Help: "Batched fetch-service requests, labeled by result.",
		},
		[]string{"result"},
	)
	InsertErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extractor_insert_errors_total",
			Help: "Individual product row inserts that failed.",
		},
	)
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "extractor_cycle_duration_seconds",
			Help:    "Duration of one claim/fetch/extract/persist cycle.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_html_cache_lookups_total",
			Help: "HTML cache lookups, labeled hit or miss.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(ItemsProcessed)
	prometheus.MustRegister(ProductsExtracted)
	prometheus.MustRegister(ProductsSaved)
	prometheus.MustRegister(StrategyWins)
	prometheus.MustRegister(FetchAttempts)
	prometheus.MustRegister(InsertErrors)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(CacheLookups)
}

func ExposeMetrics(addr string) {
	slog.Info("Exposing Prometheus metrics", "address", addr)
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("Failed to start Prometheus metrics server", "error", err)
	}
}
