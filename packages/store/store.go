// Package store is the shared Postgres store: the work queue
// (product_page_urls) and the product sink (r_product_data). All status
// mutation goes through ClaimBatch, MarkCompleted and MarkFailed; no
// other code path writes processing_status.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"extractionworker/packages/domain"
	"extractionworker/packages/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// error_message column constraint
const maxErrorMessageLen = 1000

type Storage struct {
	DB *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Storage, error) {
	db, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return &Storage{DB: db}, nil
}

func (s *Storage) Close() {
	s.DB.Close()
}

func (s *Storage) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

// ClaimBatch atomically claims up to batchSize pending work items for
// workerID. Selection is oldest-first; the transition to processing is
// guarded on the row still being pending, so an item another worker won
// in the meantime is silently absent from the returned batch. An empty
// batch with a nil error means the queue is drained.
func (s *Storage) ClaimBatch(ctx context.Context, batchSize int, workerID string) ([]domain.WorkItem, error) {
	var claimed []domain.WorkItem

	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, product_type_id, source_url, COALESCE(retry_count, 0)
			FROM product_page_urls
			WHERE processing_status = 'pending'
			ORDER BY created_at, id
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, batchSize)
		if err != nil {
			return fmt.Errorf("failed to select pending items: %w", err)
		}

		byID := make(map[int64]domain.WorkItem, batchSize)
		var item domain.WorkItem
		if _, err := pgx.ForEachRow(rows, []any{&item.ID, &item.ProductTypeID, &item.SourceURL, &item.RetryCount}, func() error {
			byID[item.ID] = item
			return nil
		}); err != nil {
			return fmt.Errorf("failed to iterate pending rows: %w", err)
		}
		if len(byID) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}

		claimedRows, err := tx.Query(ctx, `
			UPDATE product_page_urls
			SET processing_status = 'processing', claimed_by = $2, claimed_at = now()
			WHERE id = ANY($1) AND processing_status = 'pending'
			RETURNING id`, ids, workerID)
		if err != nil {
			return fmt.Errorf("failed to claim items: %w", err)
		}

		var claimedID int64
		if _, err := pgx.ForEachRow(claimedRows, []any{&claimedID}, func() error {
			claimed = append(claimed, byID[claimedID])
			return nil
		}); err != nil {
			return fmt.Errorf("failed to iterate claimed rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// SaveProducts inserts one r_product_data row per product. Persistence
// is best effort: a failed row is logged and counted, the rest continue.
func (s *Storage) SaveProducts(ctx context.Context, item domain.WorkItem, products []domain.Product) int {
	saved := 0
	for _, p := range products {
		row := p.Row(item.ProductTypeID)
		_, err := s.DB.Exec(ctx, `
			INSERT INTO r_product_data
				(platform_url, product_name, original_price, current_price, product_url,
				 product_image_url, description, rating, reviews, in_stock, brand,
				 category_id, searched_product_id, product_type_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			row.PlatformURL, row.ProductName, row.OriginalPrice, row.CurrentPrice, row.ProductURL,
			row.ProductImageURL, row.Description, row.Rating, row.Reviews, row.InStock, row.Brand,
			row.CategoryID, row.SearchedProductID, row.ProductTypeID)
		if err != nil {
			metrics.InsertErrors.Inc()
			slog.Error("Failed to insert product row", "item_id", item.ID, "product_url", row.ProductURL, "error", err)
			continue
		}
		saved++
	}
	return saved
}

// MarkCompleted moves an item to its completed terminal state. The
// success flag is true when at least one row was saved, or when the page
// legitimately had nothing to extract.
func (s *Storage) MarkCompleted(ctx context.Context, itemID int64, found, saved int) error {
	success := saved > 0 || found == 0
	_, err := s.DB.Exec(ctx, `
		UPDATE product_page_urls
		SET processing_status = 'completed', processed_at = now(), success = $2,
		    products_found = $3, products_saved = $4
		WHERE id = $1`, itemID, success, found, saved)
	if err != nil {
		return fmt.Errorf("failed to mark item %d completed: %w", itemID, err)
	}
	return nil
}

// MarkFailed moves an item to its failed terminal state, recording the
// error detail and bumping the retry counter. Failed items are never
// re-queued automatically; see cmd/reaper.
func (s *Storage) MarkFailed(ctx context.Context, itemID int64, errDetail string) error {
	errDetail = truncateError(errDetail)
	_, err := s.DB.Exec(ctx, `
		UPDATE product_page_urls
		SET processing_status = 'failed', processed_at = now(), success = false,
		    products_found = 0, products_saved = 0, error_message = $2,
		    retry_count = COALESCE(retry_count, 0) + 1
		WHERE id = $1`, itemID, errDetail)
	if err != nil {
		return fmt.Errorf("failed to mark item %d failed: %w", itemID, err)
	}
	return nil
}

// truncateError fits an error detail into the error_message column.
// The cut backs up to a rune boundary so the stored value stays valid
// UTF-8; Postgres rejects the insert otherwise.
func truncateError(detail string) string {
	if len(detail) <= maxErrorMessageLen {
		return detail
	}
	cut := maxErrorMessageLen - 3
	for cut > 0 && !utf8.RuneStart(detail[cut]) {
		cut--
	}
	return detail[:cut] + "..."
}

// ResetStalledClaims returns processing items whose claim is older than
// olderThan to pending. Covers workers that died mid-batch.
func (s *Storage) ResetStalledClaims(ctx context.Context, olderThan time.Duration) (int64, error) {
	interval := pgtype.Interval{
		Microseconds: olderThan.Microseconds(),
		Valid:        true,
	}
	tag, err := s.DB.Exec(ctx, `
		UPDATE product_page_urls
		SET processing_status = 'pending', claimed_by = NULL, claimed_at = NULL
		WHERE processing_status = 'processing' AND claimed_at < now() - $1`, interval)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stalled claims: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RequeueFailed resets failed items below the retry ceiling back to
// pending. This is an explicit operator action, never called by the
// worker loop.
func (s *Storage) RequeueFailed(ctx context.Context, maxRetry int) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
		UPDATE product_page_urls
		SET processing_status = 'pending', claimed_by = NULL, claimed_at = NULL
		WHERE processing_status = 'failed' AND COALESCE(retry_count, 0) < $1`, maxRetry)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue failed items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PendingCount reports queue depth, used for logging and gauges.
func (s *Storage) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.DB.QueryRow(ctx,
		`SELECT count(*) FROM product_page_urls WHERE processing_status = 'pending'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending items: %w", err)
	}
	return count, nil
}
