// internal/store/sites.go
package store

import (
	"context"
	"time"
)

// SitesCollection holds the per-domain registry of supported shortener sites.
const SitesCollection = "supported_sites"

// Site describes one supported shortener domain.
type Site struct {
	Domain      string    `json:"domain"`
	IsActive    bool      `json:"is_active"`
	AddedAt     time.Time `json:"added_at"`
	BypassCount int64     `json:"bypass_count"`
}

// SiteRegistry tracks which shortener domains the service recognizes. The
// admin surface that mutates it lives outside this module; the registry only
// exposes the store operations that surface needs.
type SiteRegistry struct {
	store DocumentStore
}

// NewSiteRegistry creates a registry over the given store.
func NewSiteRegistry(s DocumentStore) *SiteRegistry {
	return &SiteRegistry{store: s}
}

// Add registers a domain, reactivating it if previously removed.
func (r *SiteRegistry) Add(ctx context.Context, domain string) error {
	return r.store.Set(ctx, SitesCollection, domain, Fields{
		"domain":       domain,
		"is_active":    true,
		"added_at":     time.Now().UTC(),
		"bypass_count": int64(0),
	})
}

// Remove deactivates a domain without deleting its counters.
func (r *SiteRegistry) Remove(ctx context.Context, domain string) error {
	return r.store.Update(ctx, SitesCollection, domain, map[string]FieldOp{
		"is_active": Set(false),
	})
}

// IncrementBypassCount bumps the per-site resolution counter.
func (r *SiteRegistry) IncrementBypassCount(ctx context.Context, domain string) error {
	return r.store.Update(ctx, SitesCollection, domain, map[string]FieldOp{
		"bypass_count": Increment(1),
	})
}

// ActiveSites lists all active domains.
func (r *SiteRegistry) ActiveSites(ctx context.Context) ([]Site, error) {
	docs, err := r.store.Query(ctx, SitesCollection, Filter{"is_active": true})
	if err != nil {
		return nil, err
	}

	sites := make([]Site, 0, len(docs))
	for _, doc := range docs {
		site := Site{IsActive: true}
		if d, ok := doc["domain"].(string); ok {
			site.Domain = d
		}
		if t, ok := doc["added_at"].(time.Time); ok {
			site.AddedAt = t
		}
		site.BypassCount = asInt64(doc["bypass_count"])
		sites = append(sites, site)
	}
	return sites, nil
}
