package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"extractionworker/packages/config"
	"extractionworker/packages/domain"
	"extractionworker/packages/parser"
)

type fakeSink struct {
	mu    sync.Mutex
	calls []struct {
		productTypeID int64
		count         int
	}
}

func (s *fakeSink) SaveProducts(ctx context.Context, item domain.WorkItem, products []domain.Product) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, struct {
		productTypeID int64
		count         int
	}{item.ProductTypeID, len(products)})
	return len(products)
}

func testServer(sink ProductSink) http.Handler {
	cfg := config.Config{
		MaxWorkers:         4,
		MaxProductsPerPage: 100,
		MaxBatchSize:       3,
	}
	return NewServer(cfg, parser.NewEngine(), sink).Routes()
}

const productPage = `<html><head><script type="application/ld+json">
{"@type":"Product","name":"Widget Alpha","url":"https://shop.example.com/products/widget-alpha",
 "offers":{"price":"1299.00","priceCurrency":"USD","availability":"https://schema.org/InStock"}}
</script></head><body></body></html>`

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	rec, body := doJSON(t, testServer(nil), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v", body["status"])
	}
}

func TestExtractSingle(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{
		"html": productPage,
		"url":  "https://shop.example.com/catalog",
	})
	rec, body := doJSON(t, testServer(nil), http.MethodPost, "/extract", string(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["total_products"] != float64(1) {
		t.Errorf("total_products = %v, want 1", body["total_products"])
	}
	if secs, ok := body["processing_time_seconds"].(float64); !ok || secs < 0 {
		t.Errorf("processing_time_seconds = %v, want a non-negative number", body["processing_time_seconds"])
	}

	results := body["results"].([]any)
	first := results[0].(map[string]any)
	if first["extraction_strategy"] != "jsonld" {
		t.Errorf("strategy = %v", first["extraction_strategy"])
	}
	product := first["products"].([]any)[0].(map[string]any)
	if product["product_name"] != "Widget Alpha" {
		t.Errorf("product_name = %v", product["product_name"])
	}
	if product["cost"] != float64(1299) {
		t.Errorf("cost = %v, want 1299", product["cost"])
	}
	if product["in_stock"] != true {
		t.Errorf("in_stock = %v, want true", product["in_stock"])
	}
}

func TestExtractSingleMissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing html", `{"url": "https://shop.example.com"}`},
		{"missing url", `{"html": "<html></html>"}`},
		{"neither form", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doJSON(t, testServer(nil), http.MethodPost, "/extract", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body["error"] == "" {
				t.Error("error message missing")
			}
		})
	}
}

func TestExtractBatchPersists(t *testing.T) {
	sink := &fakeSink{}
	payload, _ := json.Marshal(map[string]any{
		"html_contents": []map[string]any{
			{"html": productPage, "url": "https://shop.example.com/catalog", "product_type_id": 5},
			{"html": "<html><body><p>Nothing for sale here today.</p></body></html>", "url": "https://shop.example.com/empty"},
		},
	})
	rec, body := doJSON(t, testServer(sink), http.MethodPost, "/extract", string(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["total_processed"] != float64(2) {
		t.Errorf("total_processed = %v, want 2", body["total_processed"])
	}
	if body["total_saved_to_db"] != float64(1) {
		t.Errorf("total_saved_to_db = %v, want 1", body["total_saved_to_db"])
	}

	if len(sink.calls) != 1 {
		t.Fatalf("sink calls = %d, want 1 (only the page with a product_type_id)", len(sink.calls))
	}
	if sink.calls[0].productTypeID != 5 || sink.calls[0].count != 1 {
		t.Errorf("sink call = %+v", sink.calls[0])
	}
}

func TestExtractBatchTooLarge(t *testing.T) {
	pages := make([]map[string]any, 4) // MaxBatchSize is 3 in testServer
	for i := range pages {
		pages[i] = map[string]any{"html": "<html></html>", "url": "https://shop.example.com"}
	}
	payload, _ := json.Marshal(map[string]any{"html_contents": pages})

	rec, _ := doJSON(t, testServer(nil), http.MethodPost, "/extract", string(payload))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	handler := testServer(nil)

	rec, body := doJSON(t, handler, http.MethodGet, "/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["max_workers"] != float64(4) || body["max_products_per_page"] != float64(100) {
		t.Fatalf("initial config = %v", body)
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/config", `{"max_workers": 8, "max_products_per_page": 50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}

	_, body = doJSON(t, handler, http.MethodGet, "/config", "")
	if body["max_workers"] != float64(8) || body["max_products_per_page"] != float64(50) {
		t.Fatalf("updated config = %v", body)
	}
}

func TestConfigRejectsOutOfRange(t *testing.T) {
	handler := testServer(nil)
	tests := []string{
		`{"max_workers": 0}`,
		`{"max_workers": 21}`,
		`{"max_products_per_page": 0}`,
		`{"max_products_per_page": 1001}`,
	}
	for _, body := range tests {
		rec, _ := doJSON(t, handler, http.MethodPost, "/config", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("POST /config %s: status = %d, want 400", body, rec.Code)
		}
	}

	// A rejected update must not partially apply.
	_, got := doJSON(t, handler, http.MethodGet, "/config", "")
	if got["max_workers"] != float64(4) {
		t.Errorf("max_workers = %v after rejected updates, want 4", got["max_workers"])
	}
}
