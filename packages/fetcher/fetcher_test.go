package fetcher

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"extractionworker/packages/config"

	"github.com/jarcoal/httpmock"
)

func testClient() *Client {
	return New(config.Config{
		FetchServiceURL: "http://fetch.test/fetch/batch",
		FetchTimeout:    5 * time.Second,
		MaxRetries:      2,
		RetryDelay:      time.Millisecond,
	})
}

func TestFetchBatchMixedResults(t *testing.T) {
	c := testClient()
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://fetch.test/fetch/batch",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"summary": map[string]any{"total": 2, "success": 1, "failed": 1, "success_rate": 0.5, "total_time": 1.2},
			"results": []map[string]any{
				{"url": "https://a.test/catalog", "html": "<html>ok</html>", "status": "success", "method": "http"},
				{"url": "https://b.test/catalog", "html": "", "status": "failed", "error": "timeout rendering page"},
			},
		}))

	pages := c.FetchBatch(context.Background(), []string{"https://a.test/catalog", "https://b.test/catalog"})
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}

	ok := pages["https://a.test/catalog"]
	if ok.Err != nil || ok.HTML != "<html>ok</html>" {
		t.Errorf("success page = %+v", ok)
	}

	bad := pages["https://b.test/catalog"]
	if bad.HTML != "" {
		t.Errorf("failed page carries HTML: %q", bad.HTML)
	}
	var fe *FetchError
	if !errors.As(bad.Err, &fe) {
		t.Fatalf("failed page error = %T, want *FetchError", bad.Err)
	}
	if fe.Reason != "timeout rendering page" {
		t.Errorf("reason = %q", fe.Reason)
	}
}

func TestFetchBatchMissingURLGetsError(t *testing.T) {
	c := testClient()
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://fetch.test/fetch/batch",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"summary": map[string]any{"total": 1, "success": 1, "failed": 0},
			"results": []map[string]any{
				{"url": "https://a.test/catalog", "html": "<html>ok</html>", "status": "success"},
			},
		}))

	pages := c.FetchBatch(context.Background(), []string{"https://a.test/catalog", "https://gone.test/catalog"})
	if pages["https://gone.test/catalog"].Err == nil {
		t.Fatal("URL absent from the response must get a fetch error")
	}
}

func TestFetchBatchRetriesThenFailsAll(t *testing.T) {
	c := testClient()
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://fetch.test/fetch/batch",
		httpmock.NewStringResponder(500, "internal error"))

	urls := []string{"https://a.test/catalog", "https://b.test/catalog"}
	pages := c.FetchBatch(context.Background(), urls)

	if got := httpmock.GetTotalCallCount(); got != 2 {
		t.Errorf("made %d requests, want 2 attempts", got)
	}
	for _, u := range urls {
		var fe *FetchError
		if !errors.As(pages[u].Err, &fe) {
			t.Errorf("page %s error = %v, want *FetchError", u, pages[u].Err)
		}
	}
}

func TestFetchBatchRateLimitedIsRetryable(t *testing.T) {
	c := testClient()
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder(http.MethodPost, "http://fetch.test/fetch/batch",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(429, "slow down"), nil
			}
			return httpmock.NewJsonResponse(200, map[string]any{
				"summary": map[string]any{"total": 1, "success": 1, "failed": 0},
				"results": []map[string]any{
					{"url": "https://a.test/catalog", "html": "<html>ok</html>", "status": "success"},
				},
			})
		})

	pages := c.FetchBatch(context.Background(), []string{"https://a.test/catalog"})
	if calls != 2 {
		t.Fatalf("made %d requests, want a retry after 429", calls)
	}
	if pages["https://a.test/catalog"].Err != nil {
		t.Errorf("page error = %v, want success after retry", pages["https://a.test/catalog"].Err)
	}
}

func TestFetchBatchEmptyInput(t *testing.T) {
	c := testClient()
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	pages := c.FetchBatch(context.Background(), nil)
	if len(pages) != 0 {
		t.Fatalf("got %d pages, want 0", len(pages))
	}
	if httpmock.GetTotalCallCount() != 0 {
		t.Error("no request should be made for an empty batch")
	}
}
