package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/postfeed/internal/testutil"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	cfg := DefaultConfig("postfeed-test/1.0")
	cfg.BaseURL = baseURL
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:     "empty base url",
			mutate:   func(c *Config) { c.BaseURL = "" },
			errorMsg: "base url is required",
		},
		{
			name:     "unsupported scheme",
			mutate:   func(c *Config) { c.BaseURL = "ftp://example.com" },
			errorMsg: `base url must be http or https (got "ftp://example.com")`,
		},
		{
			name:     "zero page size",
			mutate:   func(c *Config) { c.PageSize = 0 },
			errorMsg: "page size must be > 0 (got 0)",
		},
		{
			name:     "empty user agent",
			mutate:   func(c *Config) { c.UserAgent = "" },
			errorMsg: "user-agent is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("postfeed-test/1.0")
			tt.mutate(&cfg)

			c, err := New(cfg)
			if tt.errorMsg == "" {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if c.GetCache() != nil {
					t.Error("cache should be disabled without redis")
				}
				return
			}
			if err == nil {
				t.Fatal("Expected error but got nil")
			}
			if err.Error() != tt.errorMsg {
				t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("ua")
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.PageSize != 20 {
		t.Errorf("PageSize = %d, want 20", cfg.PageSize)
	}
	if cfg.Redis != nil {
		t.Error("Redis should be nil by default")
	}
}

func TestPageURL(t *testing.T) {
	c := newTestClient(t, "https://jsonplaceholder.typicode.com/")
	got := c.pageURL(3, 20)
	want := "https://jsonplaceholder.typicode.com/posts?_limit=20&_page=3"
	if got != want {
		t.Errorf("pageURL() = %q, want %q", got, want)
	}
}

func TestFetchPage_Success(t *testing.T) {
	mock := testutil.NewMockPosts(45)
	defer mock.Close()

	c := newTestClient(t, mock.URL())
	ctx := context.Background()

	records, err := c.FetchPage(ctx, 2, 20)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(records) != 20 {
		t.Fatalf("FetchPage() returned %d records, want 20", len(records))
	}
	if records[0].ID != 21 || records[19].ID != 40 {
		t.Errorf("page 2 ids = %d..%d, want 21..40", records[0].ID, records[19].ID)
	}

	if ua := mock.LastRequest.Header.Get("User-Agent"); ua != "postfeed-test/1.0" {
		t.Errorf("User-Agent = %q", ua)
	}

	last, err := c.FetchPage(ctx, 3, 20)
	if err != nil {
		t.Fatalf("FetchPage(3) error = %v", err)
	}
	if len(last) != 5 {
		t.Errorf("last page returned %d records, want 5", len(last))
	}
}

func TestFetchPage_PastEndIsEmpty(t *testing.T) {
	mock := testutil.NewMockPosts(10)
	defer mock.Close()

	records, err := newTestClient(t, mock.URL()).FetchPage(context.Background(), 5, 20)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("FetchPage() = %v, want empty non-nil slice", records)
	}
}

func TestFetchPage_HTTPError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		class  ErrorClass
	}{
		{"not found", http.StatusNotFound, ErrorClassClient},
		{"server error", http.StatusInternalServerError, ErrorClassServer},
		{"unavailable", http.StatusServiceUnavailable, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockPosts(40)
			defer mock.Close()
			mock.SetPage(1, testutil.PageOverride{StatusCode: tt.status, Body: `{"error":"x"}`})

			_, err := newTestClient(t, mock.URL()).FetchPage(context.Background(), 1, 20)

			var te *TransportError
			if !errors.As(err, &te) {
				t.Fatalf("error = %v, want *TransportError", err)
			}
			if te.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", te.StatusCode, tt.status)
			}
			if te.ErrorClass != tt.class {
				t.Errorf("ErrorClass = %q, want %q", te.ErrorClass, tt.class)
			}
			if mock.GetRequestCount() != 1 {
				t.Errorf("requests = %d, want exactly 1 (no retry)", mock.GetRequestCount())
			}
		})
	}
}

func TestFetchPage_NetworkError(t *testing.T) {
	mock := testutil.NewMockPosts(1)
	url := mock.URL()
	mock.Close()

	_, err := newTestClient(t, url).FetchPage(context.Background(), 1, 20)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if te.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want %q", te.ErrorClass, ErrorClassNetwork)
	}
}

func TestFetchPage_Timeout(t *testing.T) {
	mock := testutil.NewMockPosts(20)
	defer mock.Close()
	mock.SetPage(1, testutil.PageOverride{StatusCode: 200, Body: `[]`, Delay: 200 * time.Millisecond})

	c := newTestClient(t, mock.URL())
	c.SetHTTPClient(&http.Client{Timeout: 20 * time.Millisecond})

	_, err := c.FetchPage(context.Background(), 1, 20)
	if ClassOf(err) != ErrorClassNetwork {
		t.Errorf("ClassOf(err) = %q, want network (err = %v)", ClassOf(err), err)
	}
}

func TestFetchPage_DecodeError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"object", `{"id":1,"title":"t","body":"b"}`},
		{"wrong types", `[{"id":"x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockPosts(20)
			defer mock.Close()
			mock.SetPage(1, testutil.PageOverride{StatusCode: http.StatusOK, Body: tt.body})

			_, err := newTestClient(t, mock.URL()).FetchPage(context.Background(), 1, 20)

			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error = %v, want *DecodeError", err)
			}
			if de.Page != 1 {
				t.Errorf("DecodeError.Page = %d, want 1", de.Page)
			}
		})
	}
}

func TestFetchPage_InvalidArguments(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")

	if _, err := c.FetchPage(context.Background(), 0, 20); err == nil {
		t.Error("page 0 should be rejected")
	}
	if _, err := c.FetchPage(context.Background(), 1, 0); err == nil {
		t.Error("page size 0 should be rejected")
	}
}

func TestFetchPage_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockPosts(20)
	defer mock.Close()
	mock.Hold()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := newTestClient(t, mock.URL()).FetchPage(ctx, 1, 20)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("FetchPage did not return after cancel")
	}
}
