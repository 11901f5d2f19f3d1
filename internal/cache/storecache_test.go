// internal/cache/storecache_test.go
package cache

import (
	"context"
	"testing"
	"time"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/store"
)

func TestStoreCachePutGet(t *testing.T) {
	c := NewStoreCache(store.NewMemoryStore(), time.Hour)
	ctx := context.Background()

	entry, err := c.Get(ctx, "http://example.com/s/abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry != nil {
		t.Fatal("expected miss on empty cache")
	}

	if err := c.Put(ctx, "http://example.com/s/abc", "http://cdn.example.com/file.zip", "html_form"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, err = c.Get(ctx, "http://example.com/s/abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil {
		t.Fatal("expected hit after Put")
	}
	if entry.ResolvedURL != "http://cdn.example.com/file.zip" {
		t.Errorf("resolved URL = %q", entry.ResolvedURL)
	}
	if entry.MethodUsed != "html_form" {
		t.Errorf("method = %q, want html_form", entry.MethodUsed)
	}
	if entry.HitCount != 1 {
		t.Errorf("hit count = %d, want 1", entry.HitCount)
	}
}

func TestStoreCacheHitCountIncrements(t *testing.T) {
	c := NewStoreCache(store.NewMemoryStore(), time.Hour)
	ctx := context.Background()

	_ = c.Put(ctx, "http://example.com/s/abc", "http://cdn.example.com/file.zip", "javascript")

	var last int64
	for i := 1; i <= 3; i++ {
		entry, _ := c.Get(ctx, "http://example.com/s/abc")
		if entry == nil {
			t.Fatalf("miss on lookup %d", i)
		}
		last = entry.HitCount
	}
	if last != 3 {
		t.Errorf("hit count after 3 lookups = %d, want 3", last)
	}
}

func TestStoreCacheTTLExpiry(t *testing.T) {
	backing := store.NewMemoryStore()
	c := NewStoreCache(backing, time.Hour)
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }

	_ = c.Put(ctx, "http://example.com/s/abc", "http://cdn.example.com/file.zip", "html_form")

	// Inside the TTL window.
	if entry, _ := c.Get(ctx, "http://example.com/s/abc"); entry == nil {
		t.Fatal("expected hit inside TTL window")
	}

	// Past expiry: must miss and lazily delete the entry.
	c.now = func() time.Time { return now.Add(2 * time.Hour) }
	if entry, _ := c.Get(ctx, "http://example.com/s/abc"); entry != nil {
		t.Fatal("expected miss after TTL expiry")
	}

	docs, _ := backing.Query(ctx, CacheCollection, store.Filter{})
	if len(docs) != 0 {
		t.Errorf("expired entry not deleted, %d documents remain", len(docs))
	}
}

func TestStoreCacheDistinctURLs(t *testing.T) {
	c := NewStoreCache(store.NewMemoryStore(), time.Hour)
	ctx := context.Background()

	_ = c.Put(ctx, "http://example.com/s/abc", "http://cdn.example.com/a.zip", "html_form")
	_ = c.Put(ctx, "http://example.com/s/def", "http://cdn.example.com/b.zip", "html_form")

	a, _ := c.Get(ctx, "http://example.com/s/abc")
	b, _ := c.Get(ctx, "http://example.com/s/def")

	if a == nil || b == nil {
		t.Fatal("expected hits for both URLs")
	}
	if a.ResolvedURL == b.ResolvedURL {
		t.Error("distinct URLs returned the same resolution")
	}
}
