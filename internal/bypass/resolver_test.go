// internal/bypass/resolver_test.go
package bypass

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/ai"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/cache"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/pattern"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/store"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		Timeout:   5 * time.Second,
		RateLimit: 1000,
		RateBurst: 1000,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func newTestResolver(t *testing.T) (*Resolver, *pattern.Store, cache.LinkCache) {
	t.Helper()
	backing := store.NewMemoryStore()
	patterns := pattern.NewStore(backing)
	linkCache := cache.NewStoreCache(backing, time.Hour)

	resolver := NewResolver(ResolverOptions{
		Client:        newTestClient(t),
		Cache:         linkCache,
		Patterns:      patterns,
		MethodTimeout: 3 * time.Second,
		CountdownCap:  time.Second,
	})
	return resolver, patterns, linkCache
}

func TestResolveDownloadAnchor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a class="download-link" href="http://cdn.example.com/file.zip">Download</a>
		</body></html>`)
	}))
	defer server.Close()

	resolver, _, _ := newTestResolver(t)
	result := resolver.Resolve(context.Background(), ResolutionRequest{OriginalURL: server.URL + "/page"})

	if !result.Success {
		t.Fatalf("resolution failed: %v", result.Error)
	}
	if result.ResolvedURL != "http://cdn.example.com/file.zip" {
		t.Errorf("resolved = %q", result.ResolvedURL)
	}
	if result.Method != "html_form" {
		t.Errorf("method = %q, want html_form", result.Method)
	}
	if result.ServedFromCache {
		t.Error("first resolution should not be served from cache")
	}
}

func TestResolveHiddenAnchor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a style="display: none" href="http://files.example.net/get/abc.rar">hidden</a>
		</body></html>`)
	}))
	defer server.Close()

	resolver, _, _ := newTestResolver(t)
	result := resolver.Resolve(context.Background(), ResolutionRequest{OriginalURL: server.URL + "/page"})

	if !result.Success {
		t.Fatalf("resolution failed: %v", result.Error)
	}
	if result.Method != "css_hidden" {
		t.Errorf("method = %q, want css_hidden", result.Method)
	}
	if result.ResolvedURL != "http://files.example.net/get/abc.rar" {
		t.Errorf("resolved = %q", result.ResolvedURL)
	}
}

func TestResolveSameHostDownloadLink(t *testing.T) {
	// Shorteners often serve the payload from their own domain; a hidden
	// anchor back to the page's host must still resolve.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a style="display:none" href="http://%s/files/download/payload.zip">hidden</a>
		</body></html>`, r.Host)
	}))
	defer server.Close()

	resolver, _, _ := newTestResolver(t)
	result := resolver.Resolve(context.Background(), ResolutionRequest{OriginalURL: server.URL + "/page"})

	if !result.Success {
		t.Fatalf("resolution failed: %v", result.Error)
	}
	if result.Method != "css_hidden" {
		t.Errorf("method = %q, want css_hidden", result.Method)
	}
	if result.ResolvedURL != server.URL+"/files/download/payload.zip" {
		t.Errorf("resolved = %q", result.ResolvedURL)
	}
}

func TestResolveSecondCallServedFromCache(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `<a class="download-link" href="http://cdn.example.com/file.zip">dl</a>`)
	}))
	defer server.Close()

	resolver, _, _ := newTestResolver(t)
	target := server.URL + "/page"

	first := resolver.Resolve(context.Background(), ResolutionRequest{OriginalURL: target})
	if !first.Success {
		t.Fatalf("first resolution failed: %v", first.Error)
	}
	served := hits.Load()

	second := resolver.Resolve(context.Background(), ResolutionRequest{OriginalURL: target})
	if !second.Success {
		t.Fatalf("second resolution failed: %v", second.Error)
	}
	if !second.ServedFromCache {
		t.Error("second resolution should come from cache")
	}
	if second.Method != "cache" {
		t.Errorf("method = %q, want cache", second.Method)
	}
	if second.ResolvedURL != first.ResolvedURL {
		t.Errorf("cached URL %q differs from original %q", second.ResolvedURL, first.ResolvedURL)
	}
	if hits.Load() != served {
		t.Errorf("cache hit still touched the origin: %d extra requests", hits.Load()-served)
	}

	stats := resolver.Statistics()
	if stats.CacheHits != 1 {
		t.Errorf("cache_hits = %d, want 1", stats.CacheHits)
	}
}

func TestResolveExhaustionRecordsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><p>nothing here</p></body></html>`)
	}))
	defer server.Close()

	resolver, patterns, _ := newTestResolver(t)
	result := resolver.Resolve(context.Background(), ResolutionRequest{OriginalURL: server.URL + "/page"})

	if result.Success {
		t.Fatal("resolution should fail on a page with no extractable link")
	}
	if utils.CodeOf(result.Error) != utils.ErrCodeMethodExhausted {
		t.Errorf("error code = %v, want %v", utils.CodeOf(result.Error), utils.ErrCodeMethodExhausted)
	}
	if len(result.AttemptedTags) != len(MethodOrder) {
		t.Errorf("attempted %d methods, want %d", len(result.AttemptedTags), len(MethodOrder))
	}
	for i, m := range MethodOrder {
		if result.AttemptedTags[i] != m.String() {
			t.Errorf("attempt %d = %q, want %q", i, result.AttemptedTags[i], m)
		}
	}

	p := patterns.Get(context.Background(), utils.ExtractDomain(server.URL))
	if p == nil {
		t.Fatal("failure should create a pattern record")
	}
	if !p.NeedsAIAnalysis {
		t.Error("failed domain should be flagged for analysis")
	}
	if p.TotalAttempts != 1 || p.SuccessfulAttempts != 0 {
		t.Errorf("counters = %d/%d, want 1/0", p.SuccessfulAttempts, p.TotalAttempts)
	}
}

// stubAIAdapter resolves every escalated URL to a fixed destination.
type stubAIAdapter struct {
	resolved string
	calls    atomic.Int64
}

func (a *stubAIAdapter) Available() bool { return true }

func (a *stubAIAdapter) Analyze(_ context.Context, _, _ string) (*ai.Classification, error) {
	return &ai.Classification{ProtectionType: "javascript_redirect", BypassStrategy: []string{"follow the script"}}, nil
}

func (a *stubAIAdapter) Synthesize(_ context.Context, _ string, cls *ai.Classification) (*ai.Strategy, error) {
	return &ai.Strategy{ProtectionType: cls.ProtectionType}, nil
}

func (a *stubAIAdapter) Execute(_ context.Context, _ string, _ *ai.Strategy) (string, error) {
	a.calls.Add(1)
	return a.resolved, nil
}

func (a *stubAIAdapter) Stats() ai.Stats { return ai.Stats{ModelAvailable: true} }

func TestResolveEscalatesToAnalysis(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><p>nothing extractable</p></body></html>`)
	}))
	defer server.Close()

	backing := store.NewMemoryStore()
	agent := &stubAIAdapter{resolved: "http://cdn.example.com/files/payload.zip"}
	resolver := NewResolver(ResolverOptions{
		Client:        newTestClient(t),
		Cache:         cache.NewStoreCache(backing, time.Hour),
		Patterns:      pattern.NewStore(backing),
		AI:            agent,
		MethodTimeout: 3 * time.Second,
		CountdownCap:  time.Second,
	})

	result := resolver.Resolve(context.Background(), ResolutionRequest{OriginalURL: server.URL + "/page"})
	if !result.Success {
		t.Fatalf("resolution failed: %v", result.Error)
	}
	if result.Method != "ai_generated" {
		t.Errorf("method = %q, want ai_generated", result.Method)
	}
	if result.ResolvedURL != agent.resolved {
		t.Errorf("resolved = %q", result.ResolvedURL)
	}
	if result.Analysis == nil || result.Analysis.ProtectionType != "javascript_redirect" {
		t.Errorf("analysis = %+v", result.Analysis)
	}
	if agent.calls.Load() != 1 {
		t.Errorf("strategy executed %d times, want 1", agent.calls.Load())
	}

	stats := resolver.Statistics()
	if stats.AIAssistedBypasses != 1 {
		t.Errorf("ai_assisted_bypasses = %d, want 1", stats.AIAssistedBypasses)
	}
}

func TestResolveLearnedMethodTriedFirst(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/files/download/payload.zip", http.StatusFound)
	})
	mux.HandleFunc("/files/download/payload.zip", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "binary")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	resolver, patterns, _ := newTestResolver(t)
	domain := utils.ExtractDomain(server.URL)

	// Seed an 80% pattern: four recorded wins, one miss.
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		patterns.RecordSuccess(ctx, domain, "redirect_chain", "redirect_chain", time.Second)
	}
	patterns.RecordLearnedMiss(ctx, domain)

	seeded := patterns.Get(ctx, domain)
	if got := seeded.SuccessRate(); got != 80 {
		t.Fatalf("seeded success rate = %v, want 80", got)
	}

	result := resolver.Resolve(ctx, ResolutionRequest{OriginalURL: server.URL + "/short"})
	if !result.Success {
		t.Fatalf("resolution failed: %v", result.Error)
	}
	if result.Method != "learned_redirect_chain" {
		t.Errorf("method = %q, want learned_redirect_chain", result.Method)
	}
	if result.ResolvedURL != server.URL+"/files/download/payload.zip" {
		t.Errorf("resolved = %q", result.ResolvedURL)
	}

	updated := patterns.Get(ctx, domain)
	if updated.SuccessfulAttempts != 5 || updated.TotalAttempts != 6 {
		t.Errorf("counters = %d/%d, want 5/6", updated.SuccessfulAttempts, updated.TotalAttempts)
	}
}

func TestResolveLowConfidencePatternSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<a class="download-link" href="http://cdn.example.com/file.zip">dl</a>`)
	}))
	defer server.Close()

	resolver, patterns, _ := newTestResolver(t)
	domain := utils.ExtractDomain(server.URL)

	// Exactly 50% must not short-circuit: the threshold is strict.
	ctx := context.Background()
	patterns.RecordSuccess(ctx, domain, "redirect_chain", "redirect_chain", time.Second)
	patterns.RecordLearnedMiss(ctx, domain)

	result := resolver.Resolve(ctx, ResolutionRequest{OriginalURL: server.URL + "/page"})
	if !result.Success {
		t.Fatalf("resolution failed: %v", result.Error)
	}
	if result.Method != "html_form" {
		t.Errorf("method = %q, want html_form (learned pattern at 50%% must be skipped)", result.Method)
	}
}

func TestResolveLearnedMissFallsThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// No redirect, so the learned redirect_chain method misses, but the
		// page still carries an extractable anchor.
		fmt.Fprint(w, `<a class="download-link" href="http://cdn.example.com/file.zip">dl</a>`)
	}))
	defer server.Close()

	resolver, patterns, _ := newTestResolver(t)
	domain := utils.ExtractDomain(server.URL)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		patterns.RecordSuccess(ctx, domain, "redirect_chain", "redirect_chain", time.Second)
	}

	result := resolver.Resolve(ctx, ResolutionRequest{OriginalURL: server.URL + "/page"})
	if !result.Success {
		t.Fatalf("resolution failed: %v", result.Error)
	}
	if result.Method != "html_form" {
		t.Errorf("method = %q, want html_form after learned miss", result.Method)
	}

	// The miss decays the pattern: one more total attempt, no new success
	// from the learned path, then the html_form win replaces the method.
	updated := patterns.Get(ctx, domain)
	if updated.MethodUsed != "html_form" {
		t.Errorf("method_used = %q, want html_form", updated.MethodUsed)
	}
	if updated.TotalAttempts != 6 || updated.SuccessfulAttempts != 5 {
		t.Errorf("counters = %d/%d, want 5/6", updated.SuccessfulAttempts, updated.TotalAttempts)
	}
}

func TestResolveAttemptCounting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<a class="download-link" href="http://cdn.example.com/file.zip">dl</a>`)
	}))
	defer server.Close()

	resolver, _, _ := newTestResolver(t)
	ctx := context.Background()

	resolver.Resolve(ctx, ResolutionRequest{OriginalURL: server.URL})
	resolver.Resolve(ctx, ResolutionRequest{OriginalURL: "not a url"})
	resolver.Resolve(ctx, ResolutionRequest{OriginalURL: server.URL})

	stats := resolver.Statistics()
	if stats.TotalAttempts != 3 {
		t.Errorf("total_attempts = %d, want 3 (every call counts, including rejects)", stats.TotalAttempts)
	}
	// The third call is a cache hit: it counts toward cache_hits only, not
	// successful_bypasses.
	if stats.SuccessfulBypasses != 1 {
		t.Errorf("successful_bypasses = %d, want 1", stats.SuccessfulBypasses)
	}
	if stats.CacheHits != 1 {
		t.Errorf("cache_hits = %d, want 1", stats.CacheHits)
	}
}

func TestResolveCanceledWritesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<a class="download-link" href="http://cdn.example.com/file.zip">dl</a>`)
	}))
	defer server.Close()

	resolver, patterns, linkCache := newTestResolver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := resolver.Resolve(ctx, ResolutionRequest{OriginalURL: server.URL + "/page"})
	if result.Success {
		t.Fatal("canceled resolution must not succeed")
	}
	if utils.CodeOf(result.Error) != utils.ErrCodeCanceled {
		t.Errorf("error code = %v, want %v", utils.CodeOf(result.Error), utils.ErrCodeCanceled)
	}

	if p := patterns.Get(context.Background(), utils.ExtractDomain(server.URL)); p != nil {
		t.Error("cancellation must not write to the pattern store")
	}
	if entry, _ := linkCache.Get(context.Background(), server.URL+"/page"); entry != nil {
		t.Error("cancellation must not write to the cache")
	}
}

func TestResolveInvalidInput(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	tests := []string{"", "ftp://example.com/file", "not a url", "//missing-scheme.com"}
	for _, raw := range tests {
		result := resolver.Resolve(context.Background(), ResolutionRequest{OriginalURL: raw})
		if result.Success {
			t.Errorf("Resolve(%q) should fail", raw)
		}
		if utils.CodeOf(result.Error) != utils.ErrCodeInvalidInput {
			t.Errorf("Resolve(%q) error code = %v, want %v", raw, utils.CodeOf(result.Error), utils.ErrCodeInvalidInput)
		}
	}
}

func TestMethodOrderIsStable(t *testing.T) {
	want := []string{
		"html_form", "css_hidden", "javascript", "countdown_timer",
		"dynamic_content", "cloudflare", "redirect_chain",
		"base64_decode", "url_decode", "browser_automation",
	}
	if len(MethodOrder) != len(want) {
		t.Fatalf("pipeline has %d methods, want %d", len(MethodOrder), len(want))
	}
	for i, m := range MethodOrder {
		if m.String() != want[i] {
			t.Errorf("MethodOrder[%d] = %q, want %q", i, m, want[i])
		}
	}
}

func TestParseMethodRoundTrip(t *testing.T) {
	for _, m := range MethodOrder {
		if got := ParseMethod(m.String()); got != m {
			t.Errorf("ParseMethod(%q) = %v, want %v", m.String(), got, m)
		}
	}
	if got := ParseMethod("selenium_grid"); got != MethodUnknown {
		t.Errorf("ParseMethod of unknown tag = %v, want MethodUnknown", got)
	}
}
