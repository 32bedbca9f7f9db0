package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/postfeed/pkg/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for page loading.
var (
	pagesLoadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postfeed_pages_loaded_total",
		Help: "Total number of pages appended to a record collection",
	})

	pageLoadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postfeed_page_load_failures_total",
		Help: "Total number of page loads that failed",
	})

	recordsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "postfeed_records_loaded",
		Help: "Number of records in the most recently updated collection",
	})

	loadRequestsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postfeed_load_requests_deduplicated_total",
		Help: "Total number of load requests dropped because a fetch was in flight",
	})
)

var (
	// ErrOutOfRange is returned by RecordAt for an index outside the collection.
	ErrOutOfRange = errors.New("record index out of range")

	// ErrLoadInFlight is returned by LoadNextPage while another fetch is running.
	ErrLoadInFlight = errors.New("page load already in flight")

	// ErrExhausted is returned by LoadNextPage after an empty page when
	// Options.StopOnEmptyPage is set.
	ErrExhausted = errors.New("feed exhausted")

	// ErrClosed is returned by LoadNextPage once the controller is closed.
	ErrClosed = errors.New("controller closed")
)

// DefaultPageSize is the number of records requested per page.
const DefaultPageSize = 20

// PageFetcher retrieves one page of records.
type PageFetcher interface {
	// FetchPage returns the records of page (1-based). A page past the end of
	// the data returns an empty slice and no error.
	FetchPage(ctx context.Context, page, pageSize int) ([]record.Record, error)
}

// Listener receives the outcome of each settled page load.
// Callbacks run on the goroutine that performed the fetch.
type Listener interface {
	OnCollectionUpdated()
	OnLoadFailed(err error)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are ignored.
type ListenerFuncs struct {
	Updated func()
	Failed  func(err error)
}

// OnCollectionUpdated implements Listener.
func (f ListenerFuncs) OnCollectionUpdated() {
	if f.Updated != nil {
		f.Updated()
	}
}

// OnLoadFailed implements Listener.
func (f ListenerFuncs) OnLoadFailed(err error) {
	if f.Failed != nil {
		f.Failed(err)
	}
}

// Options configures a Controller.
type Options struct {
	// PageSize is the number of records requested per page (default 20)
	PageSize int

	// StopOnEmptyPage stops further loading once a page comes back empty
	StopOnEmptyPage bool

	// Listener is notified after every settled load (optional)
	Listener Listener
}

// Controller owns the loaded records, the page cursor and the in-flight guard.
// It is safe for concurrent use.
type Controller struct {
	fetcher  PageFetcher
	listener Listener
	opts     Options
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	records   []record.Record
	page      int
	inFlight  bool
	exhausted bool
	closed    bool
}

// NewController creates a controller with an empty collection positioned at page 1.
func NewController(fetcher PageFetcher, opts Options, logger zerolog.Logger) *Controller {
	if fetcher == nil {
		panic("page fetcher cannot be nil")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}

	listener := opts.Listener
	if listener == nil {
		listener = ListenerFuncs{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		fetcher:  fetcher,
		listener: listener,
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		page:     1,
	}
}

// Initialize loads the first page. It does nothing once a page has loaded.
func (c *Controller) Initialize(ctx context.Context) bool {
	c.mu.Lock()
	started := c.page > 1
	c.mu.Unlock()
	if started {
		return false
	}
	return c.RequestNextPage(ctx)
}

// RequestNextPage starts fetching the page at the cursor in the background
// and reports whether a fetch was dispatched. It is a no-op while another
// fetch is in flight, after Close, or once the feed is exhausted.
func (c *Controller) RequestNextPage(ctx context.Context) bool {
	page, err := c.begin()
	if err != nil {
		return false
	}

	go func() {
		defer c.wg.Done()
		c.load(ctx, page)
	}()

	return true
}

// LoadNextPage fetches the page at the cursor and waits for it to settle.
// It returns ErrLoadInFlight, ErrExhausted or ErrClosed without fetching when
// the corresponding state holds, and the fetch error on failure.
// The Listener is notified exactly as for RequestNextPage.
func (c *Controller) LoadNextPage(ctx context.Context) error {
	page, err := c.begin()
	if err != nil {
		return err
	}
	defer c.wg.Done()

	merged, err := c.load(ctx, page)
	if !merged {
		return ErrClosed
	}
	return err
}

// MaybeLoadMore requests the next page when the scroll position is within
// two viewport heights of the end of the content. It reports whether a
// fetch was dispatched.
func (c *Controller) MaybeLoadMore(ctx context.Context, scrollPosition, contentExtent, viewportExtent float64) bool {
	if !NearEnd(scrollPosition, contentExtent, viewportExtent) {
		return false
	}
	return c.RequestNextPage(ctx)
}

// NearEnd reports whether scrollPosition has crossed the prefetch threshold
// of two viewport heights before the end of the content.
func NearEnd(scrollPosition, contentExtent, viewportExtent float64) bool {
	return scrollPosition > contentExtent-viewportExtent*2
}

// RecordAt returns the record at index. It returns an error wrapping
// ErrOutOfRange when index is negative or not below RecordCount.
func (c *Controller) RecordAt(index int) (record.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.records) {
		return record.Record{}, fmt.Errorf("%w: index %d, size %d", ErrOutOfRange, index, len(c.records))
	}
	return c.records[index], nil
}

// RecordCount returns the number of loaded records.
func (c *Controller) RecordCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Records returns a copy of the loaded records in arrival order.
func (c *Controller) Records() []record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]record.Record(nil), c.records...)
}

// Page returns the page number the next load will request.
func (c *Controller) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// InFlight reports whether a fetch is currently running.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Exhausted reports whether loading stopped on an empty page.
func (c *Controller) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// Wait blocks until no dispatched fetch is outstanding.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close detaches the controller. An in-flight fetch is cancelled and its
// completion is discarded; later requests are no-ops. Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

// begin takes the in-flight guard and returns the page to fetch.
func (c *Controller) begin() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return 0, ErrClosed
	case c.inFlight:
		loadRequestsDeduplicated.Inc()
		c.logger.Debug().Int("page", c.page).Msg("Load already in flight, request dropped")
		return 0, ErrLoadInFlight
	case c.exhausted:
		return 0, ErrExhausted
	}

	c.inFlight = true
	c.wg.Add(1)
	return c.page, nil
}

// load fetches page and settles the result. It reports false when the
// result was discarded because the controller was closed.
func (c *Controller) load(ctx context.Context, page int) (bool, error) {
	start := time.Now()
	records, err := c.fetch(ctx, page)
	return c.settle(page, records, err, time.Since(start)), err
}

// fetch calls the fetcher with a context cancelled by either ctx or Close.
func (c *Controller) fetch(ctx context.Context, page int) ([]record.Record, error) {
	fetchCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	c.logger.Debug().Int("page", page).Int("page_size", c.opts.PageSize).Msg("Fetching page")
	return c.fetcher.FetchPage(fetchCtx, page, c.opts.PageSize)
}

// settle releases the guard and merges a fetch result. It returns false when
// the controller was closed meanwhile and the result was discarded.
func (c *Controller) settle(page int, records []record.Record, err error, elapsed time.Duration) bool {
	c.mu.Lock()
	c.inFlight = false
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug().Int("page", page).Msg("Controller closed, discarding page result")
		return false
	}

	if err != nil {
		c.mu.Unlock()
		pageLoadFailuresTotal.Inc()
		c.logger.Warn().Err(err).Int("page", page).Dur("duration", elapsed).Msg("Page load failed")
		c.listener.OnLoadFailed(err)
		return true
	}

	c.records = append(c.records, records...)
	c.page++
	if len(records) == 0 && c.opts.StopOnEmptyPage {
		c.exhausted = true
	}
	total := len(c.records)
	exhausted := c.exhausted
	c.mu.Unlock()

	pagesLoadedTotal.Inc()
	recordsLoaded.Set(float64(total))
	c.logger.Info().
		Int("page", page).
		Int("records", len(records)).
		Int("total", total).
		Bool("exhausted", exhausted).
		Dur("duration", elapsed).
		Msg("Page merged")

	c.listener.OnCollectionUpdated()
	return true
}
