package cache

import (
	"fmt"
	"strings"
)

// PageKey identifies one cached page response.
type PageKey struct {
	// Host is the upstream host (e.g., "jsonplaceholder.typicode.com")
	Host string

	// Resource is the collection path (e.g., "/posts")
	Resource string

	// Page is the 1-based page number
	Page int

	// PageSize is the requested page size
	PageSize int
}

// String generates a deterministic cache key string.
// Format: postfeed:host:resource:page=N:limit=M
//
// Example:
//
//	postfeed:jsonplaceholder.typicode.com:posts:page=2:limit=20
func (k PageKey) String() string {
	parts := []string{"postfeed"}

	if host := strings.ToLower(k.Host); host != "" {
		parts = append(parts, host)
	}

	if resource := strings.Trim(k.Resource, "/"); resource != "" {
		parts = append(parts, resource)
	}

	parts = append(parts,
		fmt.Sprintf("page=%d", k.Page),
		fmt.Sprintf("limit=%d", k.PageSize),
	)

	return strings.Join(parts, ":")
}
