package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"extractionworker/packages/domain"
)

// Claim exclusivity lives in the guarded UPDATE behind ClaimBatch and
// needs a real Postgres to exercise. Set TEST_DATABASE_URL to a
// disposable database to run it.
func TestClaimBatchExclusivity(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	if _, err := s.DB.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS product_page_urls (
			id                BIGSERIAL PRIMARY KEY,
			product_type_id   BIGINT NOT NULL,
			source_url        TEXT NOT NULL,
			processing_status TEXT NOT NULL DEFAULT 'pending',
			claimed_by        TEXT,
			claimed_at        TIMESTAMPTZ,
			processed_at      TIMESTAMPTZ,
			success           BOOLEAN,
			products_found    INTEGER,
			products_saved    INTEGER,
			error_message     VARCHAR(1000),
			retry_count       INTEGER DEFAULT 0,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := s.DB.Exec(ctx, `TRUNCATE product_page_urls`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	if _, err := s.DB.Exec(ctx, `
		INSERT INTO product_page_urls (product_type_id, source_url)
		VALUES (5, 'https://shop.test/catalog')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []domain.WorkItem
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			items, err := s.ClaimBatch(ctx, 1, fmt.Sprintf("worker-%d", n))
			if err != nil {
				t.Errorf("worker-%d claim: %v", n, err)
				return
			}
			mu.Lock()
			claimed = append(claimed, items...)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(claimed) != 1 {
		t.Fatalf("item claimed %d times across %d workers, want exactly once", len(claimed), workers)
	}
	if claimed[0].SourceURL != "https://shop.test/catalog" {
		t.Errorf("claimed item = %+v", claimed[0])
	}

	var status, claimedBy string
	if err := s.DB.QueryRow(ctx, `
		SELECT processing_status, claimed_by FROM product_page_urls WHERE id = $1`,
		claimed[0].ID).Scan(&status, &claimedBy); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if status != "processing" {
		t.Errorf("status = %q, want processing", status)
	}
	if claimedBy == "" {
		t.Error("claimed_by not recorded")
	}

	// drained queue signals idle, not error
	items, err := s.ClaimBatch(ctx, 10, "worker-idle")
	if err != nil {
		t.Fatalf("idle claim: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("idle claim returned %d items, want 0", len(items))
	}
}
