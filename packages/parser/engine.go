// Package parser turns raw HTML into structured product records. A fixed
// priority list of strategies is tried in order and the first one that
// yields a valid candidate wins; strategy output is never merged, since
// blending a precise decoder with a heuristic one reintroduces exactly
// the ambiguity the ordering avoids.
package parser

import (
	"net/url"
	"strings"

	"extractionworker/packages/domain"

	"github.com/PuerkitoBio/goquery"
)

// Strategy is one technique for locating product data in a document.
// Implementations never panic on malformed input; no signal means an
// empty slice, not an error.
type Strategy interface {
	Name() string
	Attempt(doc *goquery.Document, base *url.URL) []domain.Product
}

type Engine struct {
	strategies []Strategy
}

// NewEngine builds the engine with the closed, ordered strategy set:
// declared structured data first, then selector-matched card markup
// and script-state mining, layout heuristics last.
func NewEngine() *Engine {
	return &Engine{
		strategies: []Strategy{
			jsonldStrategy{},
			microdataStrategy{},
			selectorStrategy{},
			scriptStrategy{},
			heuristicStrategy{},
		},
	}
}

// error pages served with 200 by CDNs and bot walls
var errorPageMarkers = []string{
	"403 error", "404 error", "access denied", "request blocked",
	"error: the request could not be satisfied", "cloudfront",
	"page not found", "not found", "forbidden",
}

const errorPageSizeLimit = 5000

// Extract runs the strategies against one page. Zero products is a
// successful outcome; Success is false only when the input cannot be
// treated as a product page at all. Safe for concurrent use.
func (e *Engine) Extract(html, sourceURL string, maxProducts int) domain.ExtractionResult {
	if looksLikeErrorPage(html) {
		return domain.ExtractionResult{
			Strategy: "none",
			Error:    "error page detected (likely blocked or not found)",
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.ExtractionResult{
			Strategy: "none",
			Error:    "parse html: " + err.Error(),
		}
	}

	base, err := url.Parse(sourceURL)
	if err != nil {
		base = nil
	}

	for _, strategy := range e.strategies {
		candidates := strategy.Attempt(doc, base)
		valid := candidates[:0:0]
		for _, c := range candidates {
			if c.Name != "" && c.URL != "" {
				valid = append(valid, c)
			}
		}
		if len(valid) == 0 {
			continue
		}

		products := dedupeByURL(valid)
		if maxProducts > 0 && len(products) > maxProducts {
			products = products[:maxProducts]
		}
		for i := range products {
			products[i].PlatformURL = sourceURL
			products[i].Strategy = strategy.Name()
		}
		return domain.ExtractionResult{
			Products: products,
			Strategy: strategy.Name(),
			Success:  true,
		}
	}

	return domain.ExtractionResult{
		Products: []domain.Product{},
		Strategy: "none",
		Success:  true,
	}
}

func looksLikeErrorPage(html string) bool {
	if len(html) >= errorPageSizeLimit {
		return false
	}
	lower := strings.ToLower(html)
	for _, marker := range errorPageMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// dedupeByURL collapses candidates whose product URLs differ only by
// case or a trailing slash, keeping the first and filling in fields the
// kept record is missing.
func dedupeByURL(products []domain.Product) []domain.Product {
	seen := make(map[string]int, len(products))
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		key := NormalizeProductURL(p.URL)
		if idx, ok := seen[key]; ok {
			mergeMissing(&out[idx], p)
			continue
		}
		seen[key] = len(out)
		out = append(out, p)
	}
	return out
}

// NormalizeProductURL is the dedupe key: lowercase with any trailing
// slash stripped.
func NormalizeProductURL(rawURL string) string {
	normalized := strings.ToLower(strings.TrimSpace(rawURL))
	for len(normalized) > 1 && strings.HasSuffix(normalized, "/") {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func mergeMissing(dst *domain.Product, src domain.Product) {
	if dst.ImageURL == "" {
		dst.ImageURL = src.ImageURL
	}
	if dst.Price == nil {
		dst.Price = src.Price
		dst.Currency = src.Currency
	}
	if dst.OriginalPrice == "" {
		dst.OriginalPrice = src.OriginalPrice
	}
	if dst.Rating == nil {
		dst.Rating = src.Rating
	}
	if dst.Reviews == nil {
		dst.Reviews = src.Reviews
	}
	if dst.Brand == "" {
		dst.Brand = src.Brand
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Stock == domain.StockUnknown {
		dst.Stock = src.Stock
	}
}
