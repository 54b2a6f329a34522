// Package fetcher talks to the remote HTML-rendering service: one
// batched request per worker cycle, bounded retry with exponential
// backoff, and an optional Redis cache so re-queued items skip the
// expensive render.
package fetcher

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"extractionworker/packages/config"
	"extractionworker/packages/domain"
	"extractionworker/packages/metrics"

	"github.com/redis/go-redis/v9"
)

// FetchError marks a URL the fetch service could not produce HTML for
// after all retries. It is contained per item; the worker loop never
// treats it as fatal.
type FetchError struct {
	URL    string
	Reason string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

type batchRequest struct {
	URLs []string `json:"urls"`
}

type batchResponse struct {
	Summary struct {
		Total       int     `json:"total"`
		Success     int     `json:"success"`
		Failed      int     `json:"failed"`
		SuccessRate float64 `json:"success_rate"`
		TotalTime   float64 `json:"total_time"`
	} `json:"summary"`
	Results []fetchResult `json:"results"`
}

type fetchResult struct {
	URL    string `json:"url"`
	HTML   string `json:"html"`
	Status string `json:"status"`
	Method string `json:"method"`
	Error  string `json:"error"`
}

type Client struct {
	endpoint   string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	cache      *redis.Client
	cacheTTL   time.Duration
}

func New(cfg config.Config) *Client {
	c := &Client{
		endpoint:   cfg.FetchServiceURL,
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		cacheTTL:   cfg.HTMLCacheTTL,
	}
	if cfg.RedisAddr != "" {
		c.cache = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		slog.Info("HTML cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.HTMLCacheTTL)
	}
	return c
}

// FetchBatch returns a page per requested URL: either its HTML or the
// fetch error standing in for it. Exhausted retries surface as per-URL
// errors, never as a call failure.
func (c *Client) FetchBatch(ctx context.Context, urls []string) map[string]domain.FetchedPage {
	pages := make(map[string]domain.FetchedPage, len(urls))
	if len(urls) == 0 {
		return pages
	}

	missing := c.lookupCache(ctx, urls, pages)
	if len(missing) == 0 {
		return pages
	}

	slog.Info("Fetching batch from HTML service", "urls", len(missing), "cached", len(urls)-len(missing))

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		results, retryable, err := c.postBatch(ctx, missing)
		if err == nil {
			c.collectResults(ctx, missing, results, pages)
			metrics.FetchAttempts.WithLabelValues("success").Inc()
			return pages
		}

		metrics.FetchAttempts.WithLabelValues("error").Inc()
		slog.Error("Fetch attempt failed", "attempt", attempt+1, "max", c.maxRetries, "error", err)

		if !retryable || attempt == c.maxRetries-1 {
			break
		}
		delay := c.retryDelay * (1 << attempt)
		slog.Info("Retrying fetch batch", "delay", delay)
		select {
		case <-ctx.Done():
			c.failAll(missing, pages, "fetch canceled: "+ctx.Err().Error())
			return pages
		case <-time.After(delay):
		}
	}

	c.failAll(missing, pages, "fetch service unavailable after retries")
	return pages
}

// postBatch performs one request. The bool reports whether the failure
// is worth retrying.
func (c *Client) postBatch(ctx context.Context, urls []string) ([]fetchResult, bool, error) {
	body, err := json.Marshal(batchRequest{URLs: urls})
	if err != nil {
		return nil, false, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ProductWorker/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("fetch service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		// Give the renderer extra room before hammering it again.
		select {
		case <-ctx.Done():
		case <-time.After(c.retryDelay):
		}
		return nil, true, fmt.Errorf("fetch service rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, true, fmt.Errorf("fetch service returned %d: %s", resp.StatusCode, snippet)
	}

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, true, fmt.Errorf("decode fetch response: %w", err)
	}

	slog.Info("Fetch batch complete",
		"total", decoded.Summary.Total,
		"success", decoded.Summary.Success,
		"failed", decoded.Summary.Failed,
		"seconds", decoded.Summary.TotalTime,
	)
	return decoded.Results, false, nil
}

func (c *Client) collectResults(ctx context.Context, requested []string, results []fetchResult, pages map[string]domain.FetchedPage) {
	byURL := make(map[string]fetchResult, len(results))
	for _, r := range results {
		byURL[r.URL] = r
	}

	for _, u := range requested {
		r, ok := byURL[u]
		if !ok {
			pages[u] = domain.FetchedPage{SourceURL: u, Err: &FetchError{URL: u, Reason: "no result returned by fetch service"}}
			continue
		}
		if r.Status != "success" || r.HTML == "" {
			reason := r.Error
			if reason == "" {
				reason = "no HTML content received"
			}
			pages[u] = domain.FetchedPage{SourceURL: u, Err: &FetchError{URL: u, Reason: reason}}
			continue
		}
		pages[u] = domain.FetchedPage{SourceURL: u, HTML: r.HTML}
		c.storeCache(ctx, u, r.HTML)
	}
}

func (c *Client) failAll(urls []string, pages map[string]domain.FetchedPage, reason string) {
	for _, u := range urls {
		if _, ok := pages[u]; ok {
			continue
		}
		pages[u] = domain.FetchedPage{SourceURL: u, Err: &FetchError{URL: u, Reason: reason}}
	}
}

func cacheKey(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return "extractor:html:" + hex.EncodeToString(sum[:])
}

// lookupCache fills pages from Redis and returns the URLs still needing
// a remote fetch.
func (c *Client) lookupCache(ctx context.Context, urls []string, pages map[string]domain.FetchedPage) []string {
	if c.cache == nil {
		return urls
	}
	missing := make([]string, 0, len(urls))
	for _, u := range urls {
		html, err := c.cache.Get(ctx, cacheKey(u)).Result()
		if err == nil && html != "" {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			pages[u] = domain.FetchedPage{SourceURL: u, HTML: html}
			continue
		}
		if err != nil && err != redis.Nil {
			slog.Warn("HTML cache lookup failed", "url", u, "error", err)
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		missing = append(missing, u)
	}
	return missing
}

func (c *Client) storeCache(ctx context.Context, rawURL, html string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(rawURL), html, c.cacheTTL).Err(); err != nil {
		slog.Warn("HTML cache store failed", "url", rawURL, "error", err)
	}
}
