// Package client fetches pages of post records from the feed service.
// Each page is requested exactly once per call; there is no retry.
// When a Redis client is configured, page responses are cached and
// revalidated with conditional requests.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/postfeed/pkg/cache"
	"github.com/Sternrassler/postfeed/pkg/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults matching the public JSONPlaceholder posts feed.
const (
	DefaultBaseURL  = "https://jsonplaceholder.typicode.com"
	DefaultResource = "/posts"
	DefaultPageSize = 20
	DefaultTimeout  = 30 * time.Second
)

// Prometheus metrics for page fetches.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postfeed_requests_total",
		Help: "Total page requests by outcome status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "postfeed_request_duration_seconds",
		Help:    "Page request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postfeed_errors_total",
		Help: "Total page fetch errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the feed service, without trailing slash
	BaseURL string

	// Resource is the collection path appended to BaseURL
	Resource string

	// PageSize is the number of records requested per page
	PageSize int

	// UserAgent header sent with every request
	UserAgent string

	// Timeout for a single page request
	Timeout time.Duration

	// Redis enables the shared page response cache (optional)
	Redis *redis.Client
}

// DefaultConfig returns the reference configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Resource:  DefaultResource,
		PageSize:  DefaultPageSize,
		UserAgent: userAgent,
		Timeout:   DefaultTimeout,
	}
}

// Client fetches pages of records over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// New creates a new feed client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be > 0 (got %d)", cfg.PageSize)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Resource == "" {
		cfg.Resource = DefaultResource
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		config:     cfg,
		logger:     log.With().Str("component", "feed-client").Logger(),
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// PageSize returns the configured page size.
func (c *Client) PageSize() int {
	return c.config.PageSize
}

// FetchPage requests one page of records. It returns *TransportError when
// the request fails or answers non-2xx and *DecodeError when the body is
// not a list of records. A page past the end of the data decodes to an
// empty, non-nil slice.
func (c *Client) FetchPage(ctx context.Context, page, pageSize int) ([]record.Record, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1 (got %d)", page)
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("page size must be >= 1 (got %d)", pageSize)
	}

	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	key := cache.PageKey{
		Host:     c.baseURL.Host,
		Resource: c.config.Resource,
		Page:     page,
		PageSize: pageSize,
	}

	// Step 1: Check page cache
	cached := c.lookupCache(ctx, key)
	if cached != nil && !cached.IsExpired() {
		requestsTotal.WithLabelValues("cached").Inc()
		c.logger.Debug().Int("page", page).Int("page_size", pageSize).Msg("Page served from cache")
		return c.decodeCached(ctx, key, page, cached.Data)
	}

	// Step 2: Build request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(page, pageSize), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	if cached.CanRevalidate() {
		cache.AddConditionalHeaders(req, cached)
		c.logger.Debug().Int("page", page).Str("etag", cached.ETag).Msg("Making conditional request")
	}

	// Step 3: Execute a single attempt
	c.logger.Debug().Int("page", page).Int("page_size", pageSize).Msg("Fetching page")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, &TransportError{
			Page:       page,
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	// Step 4: Handle 304 Not Modified
	if resp.StatusCode == http.StatusNotModified && cached != nil {
		cache.NotModifiedResponses.Inc()
		if err := c.cache.UpdateTTL(ctx, key, cache.FreshUntil(resp.Header, time.Now())); err != nil {
			c.logger.Warn().Err(err).Int("page", page).Msg("Failed to refresh cached page")
		}
		c.logger.Debug().Int("page", page).Msg("304 Not Modified - using cached page")
		return c.decodeCached(ctx, key, page, cached.Data)
	}

	// Step 5: Handle non-2xx
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Int("page", page).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Page request error")
		return nil, &TransportError{
			Page:       page,
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &TransportError{
			Page:       page,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	// Step 6: Decode before caching; only a valid page may be stored
	records, err := c.decode(page, body)
	if err != nil {
		return nil, err
	}

	// Step 7: Store in page cache
	if c.cache != nil {
		resp.Body = io.NopCloser(bytes.NewReader(body))
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache page")
		}
	}

	return records, nil
}

func (c *Client) decode(page int, body []byte) ([]record.Record, error) {
	records, err := record.DecodeList(body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &DecodeError{Page: page, Err: err}
	}
	return records, nil
}

// decodeCached decodes a cached page and evicts it when it no longer decodes,
// so the next attempt goes upstream.
func (c *Client) decodeCached(ctx context.Context, key cache.PageKey, page int, data []byte) ([]record.Record, error) {
	records, err := c.decode(page, data)
	if err != nil {
		if delErr := c.cache.Delete(ctx, key); delErr != nil {
			c.logger.Warn().Err(delErr).Str("key", key.String()).Msg("Failed to evict undecodable page")
		}
	}
	return records, err
}

func (c *Client) lookupCache(ctx context.Context, key cache.PageKey) *cache.PageEntry {
	if c.cache == nil {
		return nil
	}
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
		}
		return nil
	}
	return entry
}

// pageURL builds {base}{resource}?_page=N&_limit=M.
func (c *Client) pageURL(page, pageSize int) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Trim(c.config.Resource, "/")
	q := url.Values{}
	q.Set("_page", strconv.Itoa(page))
	q.Set("_limit", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()
	return u.String()
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the page cache manager, or nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
