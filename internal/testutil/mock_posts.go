// Package testutil provides testing utilities for the post feed.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/postfeed/pkg/record"
)

// PageOverride replaces the normal response for one page number.
type PageOverride struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockPosts is a configurable in-process posts service. It answers
// GET /posts?_page=N&_limit=M with slices of a generated dataset.
type MockPosts struct {
	server *httptest.Server

	mu        sync.RWMutex
	posts     []record.Record
	overrides map[int]PageOverride
	etag      string
	gate      chan struct{}

	// Tracking
	RequestCount     int
	ConditionalCount int
	PagesRequested   []int
	LastRequest      *http.Request
}

// NewMockPosts creates a mock service holding total posts with ids 1..total.
func NewMockPosts(total int) *MockPosts {
	m := &MockPosts{
		posts:     GeneratePosts(1, total),
		overrides: make(map[int]PageOverride),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// GeneratePosts returns count posts with consecutive ids starting at firstID.
func GeneratePosts(firstID, count int) []record.Record {
	posts := make([]record.Record, 0, count)
	for id := firstID; id < firstID+count; id++ {
		posts = append(posts, record.Record{
			ID:    id,
			Title: fmt.Sprintf("post title %d", id),
			Body:  fmt.Sprintf("body of post %d", id),
		})
	}
	return posts
}

// URL returns the mock server URL.
func (m *MockPosts) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPosts) Close() {
	m.Release()
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockPosts) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.PagesRequested = nil
	m.LastRequest = nil
}

// SetPage overrides the response for one page.
func (m *MockPosts) SetPage(page int, override PageOverride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[page] = override
}

// ClearPage removes an override set with SetPage.
func (m *MockPosts) ClearPage(page int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, page)
}

// SetETag makes successful responses carry etag and answer 304 when the
// request presents it in If-None-Match.
func (m *MockPosts) SetETag(etag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etag = etag
}

// Hold makes every request block until Release is called.
func (m *MockPosts) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate == nil {
		m.gate = make(chan struct{})
	}
}

// Release unblocks requests parked by Hold.
func (m *MockPosts) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPosts) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockPosts) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetPagesRequested returns the page numbers requested, in order.
func (m *MockPosts) GetPagesRequested() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.PagesRequested...)
}

func (m *MockPosts) handle(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("_page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("_limit"))

	m.mu.Lock()
	m.RequestCount++
	m.LastRequest = r.Clone(r.Context())
	m.PagesRequested = append(m.PagesRequested, page)
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.ConditionalCount++
	}
	override, overridden := m.overrides[page]
	etag := m.etag
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if r.URL.Path != "/posts" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if overridden {
		if override.Delay > 0 {
			time.Sleep(override.Delay)
		}
		w.WriteHeader(override.StatusCode)
		w.Write([]byte(override.Body))
		return
	}

	if etag != "" {
		w.Header().Set("Cache-Control", "max-age=0")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	m.mu.RLock()
	start := (page - 1) * limit
	end := start + limit
	if start > len(m.posts) {
		start = len(m.posts)
	}
	if end > len(m.posts) {
		end = len(m.posts)
	}
	body, _ := json.Marshal(m.posts[start:end])
	m.mu.RUnlock()

	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
