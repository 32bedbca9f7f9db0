// Package feed is the entry point a presentation layer uses to drive a post
// feed: it pairs a pagination.Controller with a per-record computation cache
// under one session.
package feed

import (
	"context"
	"fmt"

	"github.com/Sternrassler/postfeed/pkg/cache"
	"github.com/Sternrassler/postfeed/pkg/logging"
	"github.com/Sternrassler/postfeed/pkg/pagination"
	"github.com/Sternrassler/postfeed/pkg/record"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DeriveFunc computes the derived value for a record ID.
type DeriveFunc func(id int) string

// Config holds session configuration.
type Config struct {
	// Fetcher loads pages (required)
	Fetcher pagination.PageFetcher

	// PageSize is the number of records per page (default 20)
	PageSize int

	// StopOnEmptyPage stops loading after the first empty page
	StopOnEmptyPage bool

	// Derive replaces the reference computation (default: RandomSum)
	Derive DeriveFunc

	// Listener receives load notifications (optional)
	Listener pagination.Listener
}

// Row is one record prepared for a list view.
type Row struct {
	Index   int           `json:"index"`
	Record  record.Record `json:"record"`
	ID      string        `json:"display_id"`
	Title   string        `json:"display_title"`
	Derived string        `json:"derived"`
}

// Session is one viewing session of the feed. Its records and memoized
// values live only as long as the session.
type Session struct {
	id      string
	ctrl    *pagination.Controller
	derived *cache.Computation
	derive  DeriveFunc
	logger  zerolog.Logger
}

// NewSession creates a session with an empty collection and cache.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}

	derive := cfg.Derive
	if derive == nil {
		derive = func(int) string { return cache.RandomSum() }
	}

	id := uuid.NewString()
	logger := logging.NewLogger("feed").With().Str("session_id", id).Logger()

	ctrl := pagination.NewController(cfg.Fetcher, pagination.Options{
		PageSize:        cfg.PageSize,
		StopOnEmptyPage: cfg.StopOnEmptyPage,
		Listener:        cfg.Listener,
	}, logger)

	return &Session{
		id:      id,
		ctrl:    ctrl,
		derived: cache.NewComputation(logger),
		derive:  derive,
		logger:  logger,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Initialize triggers the first page load.
func (s *Session) Initialize(ctx context.Context) bool {
	return s.ctrl.Initialize(ctx)
}

// OnScrollPositionChanged loads the next page when the position is near the
// end of the content. It reports whether a load was dispatched.
func (s *Session) OnScrollPositionChanged(ctx context.Context, position, contentExtent, viewportExtent float64) bool {
	return s.ctrl.MaybeLoadMore(ctx, position, contentExtent, viewportExtent)
}

// LoadNextPage loads the next page and waits for the result.
func (s *Session) LoadNextPage(ctx context.Context) error {
	return s.ctrl.LoadNextPage(ctx)
}

// RecordCount returns the number of loaded records.
func (s *Session) RecordCount() int {
	return s.ctrl.RecordCount()
}

// RecordAt returns the record at index.
func (s *Session) RecordAt(index int) (record.Record, error) {
	return s.ctrl.RecordAt(index)
}

// DerivedValue returns the memoized derived value for a record ID.
func (s *Session) DerivedValue(id int) string {
	return s.derived.GetOrCompute(id, func() string { return s.derive(id) })
}

// Row prepares the record at index for display, including its derived value.
func (s *Session) Row(index int) (Row, error) {
	r, err := s.ctrl.RecordAt(index)
	if err != nil {
		return Row{}, err
	}

	derived := s.DerivedValue(r.ID)
	s.logger.Debug().Int("record_id", r.ID).Str("derived", derived).Msg("Heavy computation")

	return Row{
		Index:   index,
		Record:  r,
		ID:      r.DisplayID(),
		Title:   r.DisplayTitle(),
		Derived: derived,
	}, nil
}

// Detail returns the detail view of the record at index.
func (s *Session) Detail(index int) (record.Detail, error) {
	r, err := s.ctrl.RecordAt(index)
	if err != nil {
		return record.Detail{}, err
	}
	return r.Detail(), nil
}

// Page returns the page number the next load will request.
func (s *Session) Page() int {
	return s.ctrl.Page()
}

// Loading reports whether a page load is in flight.
func (s *Session) Loading() bool {
	return s.ctrl.InFlight()
}

// Exhausted reports whether loading stopped on an empty page.
func (s *Session) Exhausted() bool {
	return s.ctrl.Exhausted()
}

// CachedValues returns the number of memoized derived values.
func (s *Session) CachedValues() int {
	return s.derived.Len()
}

// Wait blocks until no page load is outstanding.
func (s *Session) Wait() {
	s.ctrl.Wait()
}

// Close detaches the session; an in-flight load completes into the void.
func (s *Session) Close() {
	s.ctrl.Close()
	s.logger.Debug().Int("records", s.ctrl.RecordCount()).Msg("Session closed")
}
