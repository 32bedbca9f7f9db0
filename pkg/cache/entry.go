// Package cache holds the two caches of a feed session: the in-process
// Computation memo for per-record derived values, and an optional Redis-backed
// Manager that stores raw page responses for conditional (ETag) requests.
package cache

import (
	"time"
)

// PageEntry is a cached page response body with its validators.
type PageEntry struct {
	// Data is the raw response body
	Data []byte `json:"data"`

	// ETag for conditional requests (If-None-Match)
	ETag string `json:"etag"`

	// LastModified for conditional requests (If-Modified-Since)
	LastModified time.Time `json:"last_modified"`

	// Expires is when the entry becomes stale
	Expires time.Time `json:"expires"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// CachedAt is when the entry was stored
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry has expired.
func (e *PageEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *PageEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// CanRevalidate reports whether the entry carries a validator usable in a
// conditional request.
func (e *PageEntry) CanRevalidate() bool {
	return e != nil && (e.ETag != "" || !e.LastModified.IsZero())
}
