// Package worker
package worker

import (
	"context"
	"log/slog"
	"time"

	"extractionworker/packages/config"
	"extractionworker/packages/domain"
	"extractionworker/packages/metrics"

	"golang.org/x/sync/errgroup"
)

// WorkQueue claims pending work items. The claim is the store's atomic
// pending->processing transition; it is the only cross-process
// coordination in the system.
type WorkQueue interface {
	ClaimBatch(ctx context.Context, batchSize int, workerID string) ([]domain.WorkItem, error)
}

// PageFetcher retrieves HTML for a batch of URLs. Failures come back as
// per-URL error pages, never as a call error.
type PageFetcher interface {
	FetchBatch(ctx context.Context, urls []string) map[string]domain.FetchedPage
}

// ResultWriter persists extracted rows and records terminal item state.
type ResultWriter interface {
	SaveProducts(ctx context.Context, item domain.WorkItem, products []domain.Product) int
	MarkCompleted(ctx context.Context, itemID int64, found, saved int) error
	MarkFailed(ctx context.Context, itemID int64, errDetail string) error
}

// Extractor decodes one fetched page. Pure and safe to call
// concurrently on independent inputs.
type Extractor interface {
	Extract(html, sourceURL string, maxProducts int) domain.ExtractionResult
}

type Worker struct {
	cfg     config.Config
	queue   WorkQueue
	fetcher PageFetcher
	writer  ResultWriter
	engine  Extractor
}

func New(cfg config.Config, queue WorkQueue, fetcher PageFetcher, writer ResultWriter, engine Extractor) *Worker {
	return &Worker{
		cfg:     cfg,
		queue:   queue,
		fetcher: fetcher,
		writer:  writer,
		engine:  engine,
	}
}

// Run drives the claim/fetch/extract/persist cycle until ctx is
// canceled. The cancellation check sits at cycle boundaries only: a
// batch that has been claimed is always carried to its terminal states
// before the loop exits.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("Worker loop starting",
		"worker_id", w.cfg.WorkerID,
		"batch_size", w.cfg.BatchSize,
		"max_workers", w.cfg.MaxWorkers,
		"poll_interval", w.cfg.PollInterval,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received. Worker loop exiting.")
			return
		default:
		}

		processed := w.RunCycle(ctx)

		var pause time.Duration
		if processed == 0 {
			pause = w.cfg.PollInterval
		} else {
			pause = time.Second
		}
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received. Worker loop exiting.")
			return
		case <-time.After(pause):
		}
	}
}

// RunCycle executes one full cycle and reports how many items it
// claimed. Zero means the queue was drained (or the claim errored) and
// the caller should idle.
func (w *Worker) RunCycle(ctx context.Context) int {
	start := time.Now()

	items, err := w.queue.ClaimBatch(ctx, w.cfg.BatchSize, w.cfg.WorkerID)
	if err != nil {
		slog.Error("Failed to claim batch", "error", err)
		return 0
	}
	if len(items) == 0 {
		slog.Debug("No pending work items")
		return 0
	}

	slog.Info("Claimed batch", "count", len(items))

	// A shutdown between here and the end of the cycle must not cancel
	// in-flight work: the batch is already claimed.
	batchCtx := context.WithoutCancel(ctx)

	urls := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.SourceURL]; ok {
			continue
		}
		seen[item.SourceURL] = struct{}{}
		urls = append(urls, item.SourceURL)
	}

	pages := w.fetcher.FetchBatch(batchCtx, urls)

	outcomes := make([]domain.Outcome, len(items))
	g := &errgroup.Group{}
	g.SetLimit(w.cfg.MaxWorkers)
	for i, item := range items {
		g.Go(func() error {
			outcomes[i] = w.processItem(batchCtx, item, pages[item.SourceURL])
			return nil
		})
	}
	_ = g.Wait()

	var completed, failed, found, saved int
	for _, o := range outcomes {
		if o.Success {
			completed++
		} else {
			failed++
		}
		found += o.ProductsFound
		saved += o.ProductsSaved
	}
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	slog.Info("Batch cycle complete",
		"items", len(items),
		"completed", completed,
		"failed", failed,
		"products_found", found,
		"products_saved", saved,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return len(items)
}

// processItem carries one claimed item to a terminal state. Every
// failure is contained here; nothing propagates to sibling items.
func (w *Worker) processItem(ctx context.Context, item domain.WorkItem, page domain.FetchedPage) domain.Outcome {
	if page.Err != nil {
		slog.Warn("Fetch failed for item", "item_id", item.ID, "url", item.SourceURL, "error", page.Err)
		w.fail(ctx, item, page.Err.Error())
		return domain.Outcome{ItemID: item.ID}
	}

	result := w.engine.Extract(page.HTML, item.SourceURL, w.cfg.MaxProductsPerPage)
	if !result.Success {
		slog.Warn("Extraction failed for item", "item_id", item.ID, "url", item.SourceURL, "error", result.Error)
		w.fail(ctx, item, result.Error)
		return domain.Outcome{ItemID: item.ID}
	}

	found := len(result.Products)
	saved := 0
	if found > 0 {
		metrics.StrategyWins.WithLabelValues(result.Strategy).Inc()
		metrics.ProductsExtracted.Add(float64(found))
		saved = w.writer.SaveProducts(ctx, item, result.Products)
		metrics.ProductsSaved.Add(float64(saved))
	}

	if err := w.writer.MarkCompleted(ctx, item.ID, found, saved); err != nil {
		slog.Error("Failed to record completion", "item_id", item.ID, "error", err)
		metrics.ItemsProcessed.WithLabelValues("error").Inc()
		return domain.Outcome{ItemID: item.ID, ProductsFound: found, ProductsSaved: saved}
	}

	metrics.ItemsProcessed.WithLabelValues("completed").Inc()
	slog.Info("Item processed", "item_id", item.ID, "url", item.SourceURL,
		"strategy", result.Strategy, "products_found", found, "products_saved", saved)
	return domain.Outcome{
		ItemID:        item.ID,
		Success:       true,
		ProductsFound: found,
		ProductsSaved: saved,
	}
}

func (w *Worker) fail(ctx context.Context, item domain.WorkItem, detail string) {
	if err := w.writer.MarkFailed(ctx, item.ID, detail); err != nil {
		slog.Error("Failed to record failure", "item_id", item.ID, "error", err)
	}
	metrics.ItemsProcessed.WithLabelValues("failed").Inc()
}
