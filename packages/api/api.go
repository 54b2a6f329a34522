// Package api is the HTTP front-end for ad-hoc extraction: callers POST
// already-rendered HTML and get structured products back, optionally
// persisted when a product type is supplied.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"extractionworker/packages/config"
	"extractionworker/packages/domain"
	"extractionworker/packages/parser"

	"golang.org/x/sync/errgroup"
)

// Settings are the runtime-tunable limits behind /config. Snapshots are
// immutable; updates swap the whole value so concurrent requests never
// observe a half-applied change.
type Settings struct {
	MaxWorkers         int `json:"max_workers"`
	MaxProductsPerPage int `json:"max_products_per_page"`
}

// ProductSink persists extracted rows. *store.Storage satisfies it; a
// nil sink disables persistence.
type ProductSink interface {
	SaveProducts(ctx context.Context, item domain.WorkItem, products []domain.Product) int
}

type Server struct {
	engine       *parser.Engine
	sink         ProductSink
	settings     atomic.Pointer[Settings]
	maxBatchSize int
}

func NewServer(cfg config.Config, engine *parser.Engine, sink ProductSink) *Server {
	s := &Server{
		engine:       engine,
		sink:         sink,
		maxBatchSize: cfg.MaxBatchSize,
	}
	s.settings.Store(&Settings{
		MaxWorkers:         cfg.MaxWorkers,
		MaxProductsPerPage: cfg.MaxProductsPerPage,
	})
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /extract", s.handleExtract)
	mux.HandleFunc("GET /config", s.handleGetConfig)
	mux.HandleFunc("POST /config", s.handleSetConfig)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "Product Extraction API",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

type pageRequest struct {
	HTML          string `json:"html"`
	URL           string `json:"url"`
	ProductTypeID *int64 `json:"product_type_id"`
}

type extractRequest struct {
	pageRequest
	HTMLContents []pageRequest `json:"html_contents"`
	MaxWorkers   int           `json:"max_workers"`
}

type productJSON struct {
	ProductName   string   `json:"product_name"`
	ProductURL    string   `json:"product_url"`
	Cost          *float64 `json:"cost"`
	Currency      string   `json:"currency"`
	ImageURL      string   `json:"image_url"`
	Rating        *float64 `json:"rating,omitempty"`
	ReviewCount   *int     `json:"review_count,omitempty"`
	Brand         string   `json:"brand,omitempty"`
	InStock       bool     `json:"in_stock"`
	Description   string   `json:"description,omitempty"`
	OriginalPrice string   `json:"original_price,omitempty"`
}

type pageResult struct {
	PlatformURL string        `json:"platform_url"`
	Success     bool          `json:"success"`
	NumProducts int           `json:"num_products"`
	Products    []productJSON `json:"products"`
	Strategy    string        `json:"extraction_strategy"`
	Error       string        `json:"error,omitempty"`
	SavedToDB   int           `json:"saved_to_db"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	switch {
	case req.HTML != "" || req.URL != "":
		if req.HTML == "" {
			writeError(w, http.StatusBadRequest, "HTML content is required")
			return
		}
		if req.URL == "" {
			writeError(w, http.StatusBadRequest, "URL is required")
			return
		}
		result := s.extractPage(r.Context(), req.pageRequest)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":                 true,
			"results":                 []pageResult{result},
			"total_processed":         1,
			"total_products":          result.NumProducts,
			"total_saved_to_db":       result.SavedToDB,
			"processing_time_seconds": roundSeconds(time.Since(start)),
		})

	case req.HTMLContents != nil:
		if len(req.HTMLContents) == 0 {
			writeError(w, http.StatusBadRequest, "html_contents array is required")
			return
		}
		if len(req.HTMLContents) > s.maxBatchSize {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("batch size exceeds maximum of %d, received %d", s.maxBatchSize, len(req.HTMLContents)))
			return
		}

		maxWorkers := req.MaxWorkers
		if maxWorkers < 1 {
			maxWorkers = s.settings.Load().MaxWorkers
		}
		if maxWorkers > 20 {
			maxWorkers = 20
		}

		results := make([]pageResult, len(req.HTMLContents))
		g := &errgroup.Group{}
		g.SetLimit(maxWorkers)
		for i, page := range req.HTMLContents {
			g.Go(func() error {
				results[i] = s.extractPage(r.Context(), page)
				return nil
			})
		}
		_ = g.Wait()

		totalProducts, totalSaved := 0, 0
		for _, res := range results {
			totalProducts += res.NumProducts
			totalSaved += res.SavedToDB
		}
		// A partially-failed batch is still a 200: per-page flags carry
		// the failures.
		writeJSON(w, http.StatusOK, map[string]any{
			"success":                 true,
			"results":                 results,
			"total_processed":         len(results),
			"total_products":          totalProducts,
			"total_saved_to_db":       totalSaved,
			"processing_time_seconds": roundSeconds(time.Since(start)),
			"max_workers_used":        maxWorkers,
		})

	default:
		writeError(w, http.StatusBadRequest,
			`invalid request format: provide either {"html": "...", "url": "..."} or {"html_contents": [...]}`)
	}
}

func (s *Server) extractPage(ctx context.Context, page pageRequest) pageResult {
	settings := s.settings.Load()
	result := s.engine.Extract(page.HTML, page.URL, settings.MaxProductsPerPage)

	out := pageResult{
		PlatformURL: page.URL,
		Success:     result.Success,
		NumProducts: len(result.Products),
		Products:    make([]productJSON, 0, len(result.Products)),
		Strategy:    result.Strategy,
		Error:       result.Error,
	}
	for _, p := range result.Products {
		out.Products = append(out.Products, productJSON{
			ProductName:   p.Name,
			ProductURL:    p.URL,
			Cost:          p.Price,
			Currency:      p.Currency,
			ImageURL:      p.ImageURL,
			Rating:        p.Rating,
			ReviewCount:   p.Reviews,
			Brand:         p.Brand,
			InStock:       p.Stock != domain.StockOut,
			Description:   p.Description,
			OriginalPrice: p.OriginalPrice,
		})
	}

	if s.sink != nil && page.ProductTypeID != nil && len(result.Products) > 0 {
		item := domain.WorkItem{ProductTypeID: *page.ProductTypeID}
		out.SavedToDB = s.sink.SaveProducts(ctx, item, result.Products)
	}
	return out
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Load())
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxWorkers         *int `json:"max_workers"`
		MaxProductsPerPage *int `json:"max_products_per_page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	current := *s.settings.Load()
	if req.MaxWorkers != nil {
		if *req.MaxWorkers < 1 || *req.MaxWorkers > 20 {
			writeError(w, http.StatusBadRequest, "max_workers must be between 1 and 20")
			return
		}
		current.MaxWorkers = *req.MaxWorkers
	}
	if req.MaxProductsPerPage != nil {
		if *req.MaxProductsPerPage < 1 || *req.MaxProductsPerPage > 1000 {
			writeError(w, http.StatusBadRequest, "max_products_per_page must be between 1 and 1000")
			return
		}
		current.MaxProductsPerPage = *req.MaxProductsPerPage
	}
	s.settings.Store(&current)

	slog.Info("Runtime configuration updated",
		"max_workers", current.MaxWorkers,
		"max_products_per_page", current.MaxProductsPerPage,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Configuration updated",
		"config":  current,
	})
}

// roundSeconds reports a duration in seconds at two decimals for the
// response payload.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
