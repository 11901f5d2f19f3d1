// internal/cache/storecache.go
package cache

import (
	"context"
	"time"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/store"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

// CacheCollection is the document collection holding cached resolutions.
const CacheCollection = "bypass_cache"

// StoreCache implements LinkCache on the document store. TTL is enforced on
// read; expired entries are deleted as they are encountered rather than
// swept proactively.
type StoreCache struct {
	store store.DocumentStore
	ttl   time.Duration
	log   utils.Logger
	now   func() time.Time
}

// NewStoreCache creates a document-store backed cache with the given TTL.
func NewStoreCache(s store.DocumentStore, ttl time.Duration) *StoreCache {
	return &StoreCache{
		store: s,
		ttl:   ttl,
		log:   utils.NewComponentLogger("link-cache"),
		now:   time.Now,
	}
}

func (c *StoreCache) Get(ctx context.Context, originalURL string) (*Entry, error) {
	key := utils.FingerprintURL(originalURL)

	doc, err := c.store.Get(ctx, CacheCollection, key)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		// A broken cache degrades to a miss; the pipeline must keep going.
		c.log.Warnf("cache lookup failed: %v", err)
		return nil, nil
	}

	entry := entryFromFields(doc)
	if entry.ResolvedURL == "" {
		return nil, nil
	}

	if c.now().After(entry.CreatedAt.Add(c.ttl)) {
		_ = c.store.Delete(ctx, CacheCollection, key)
		return nil, nil
	}

	if err := c.store.Update(ctx, CacheCollection, key, map[string]store.FieldOp{
		"hit_count": store.Increment(1),
	}); err != nil {
		c.log.Warnf("cache hit count update failed: %v", err)
	}
	entry.HitCount++

	return entry, nil
}

func (c *StoreCache) Put(ctx context.Context, originalURL, resolvedURL, method string) error {
	key := utils.FingerprintURL(originalURL)

	return c.store.Set(ctx, CacheCollection, key, store.Fields{
		"original_url": originalURL,
		"resolved_url": resolvedURL,
		"method_used":  method,
		"created_at":   c.now().UTC(),
		"hit_count":    int64(0),
	})
}

func entryFromFields(doc store.Fields) *Entry {
	entry := &Entry{}
	if s, ok := doc["original_url"].(string); ok {
		entry.OriginalURL = s
	}
	if s, ok := doc["resolved_url"].(string); ok {
		entry.ResolvedURL = s
	}
	if s, ok := doc["method_used"].(string); ok {
		entry.MethodUsed = s
	}
	if t, ok := doc["created_at"].(time.Time); ok {
		entry.CreatedAt = t
	}
	switch n := doc["hit_count"].(type) {
	case int64:
		entry.HitCount = n
	case int:
		entry.HitCount = int64(n)
	case float64:
		entry.HitCount = int64(n)
	}
	return entry
}
