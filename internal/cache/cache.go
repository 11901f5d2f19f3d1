// Package cache provides the resolved-link cache consulted before any
// extraction work. Entries are trusted for their TTL window and lazily
// evicted on lookup.
package cache

import (
	"context"
	"time"
)

// Entry is one cached resolution.
type Entry struct {
	OriginalURL string    `json:"original_url"`
	ResolvedURL string    `json:"resolved_url"`
	MethodUsed  string    `json:"method_used"`
	CreatedAt   time.Time `json:"created_at"`
	HitCount    int64     `json:"hit_count"`
}

// LinkCache maps original URLs to previously resolved URLs. Implementations
// key entries by a URL fingerprint; fingerprint collisions are accepted as
// soft corruption. Concurrent writes for the same key follow last-write-wins.
type LinkCache interface {
	// Get returns the cached entry, or (nil, nil) on a miss or expiry.
	// The hit counter is incremented on every hit.
	Get(ctx context.Context, originalURL string) (*Entry, error)
	// Put stores a resolution write-through; overwrites any prior entry.
	Put(ctx context.Context, originalURL, resolvedURL, method string) error
}
