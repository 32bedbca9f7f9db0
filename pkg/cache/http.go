package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is the fallback lifetime when the response carries no freshness headers
	DefaultTTL = 5 * time.Minute
)

// ResponseToEntry converts a page response to a PageEntry.
// The response body is restored so the caller can still decode it.
func ResponseToEntry(resp *http.Response) (*PageEntry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	now := time.Now()
	entry := &PageEntry{
		Data:       body,
		ETag:       resp.Header.Get("ETag"),
		StatusCode: resp.StatusCode,
		CachedAt:   now,
		Expires:    FreshUntil(resp.Header, now),
	}

	if lastModStr := resp.Header.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			entry.LastModified = lastMod
		}
	}

	return entry, nil
}

// FreshUntil derives the expiry from Cache-Control max-age, then Expires,
// falling back to DefaultTTL. no-store and no-cache yield an already-expired time.
func FreshUntil(headers http.Header, now time.Time) time.Time {
	if cc := headers.Get("Cache-Control"); cc != "" {
		for _, directive := range strings.Split(cc, ",") {
			directive = strings.TrimSpace(strings.ToLower(directive))
			switch {
			case directive == "no-store", directive == "no-cache":
				return now
			case strings.HasPrefix(directive, "max-age="):
				secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
				if err == nil && secs >= 0 {
					return now.Add(time.Duration(secs) * time.Second)
				}
			}
		}
	}

	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return now.Add(DefaultTTL)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		// "Expires: -1" and other invalid dates mean already expired (RFC 9111 5.3)
		return now
	}
	if expires.Before(now) {
		return now
	}
	return expires
}

// AddConditionalHeaders adds If-None-Match or If-Modified-Since to req.
// ETag is preferred over Last-Modified.
func AddConditionalHeaders(req *http.Request, entry *PageEntry) {
	if req == nil || !entry.CanRevalidate() {
		return
	}

	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else {
		req.Header.Set("If-Modified-Since", entry.LastModified.Format(http.TimeFormat))
	}
}
