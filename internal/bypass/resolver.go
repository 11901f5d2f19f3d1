// internal/bypass/resolver.go
package bypass

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/ai"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/cache"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/pattern"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

// AIAdapter is the analysis capability the pipeline escalates to after the
// heuristic methods are exhausted. *ai.Agent satisfies it.
type AIAdapter interface {
	Available() bool
	Analyze(ctx context.Context, url, html string) (*ai.Classification, error)
	Synthesize(ctx context.Context, url string, cls *ai.Classification) (*ai.Strategy, error)
	Execute(ctx context.Context, url string, strat *ai.Strategy) (string, error)
	Stats() ai.Stats
}

// ChallengeFetcher fetches pages behind anti-bot challenges.
type ChallengeFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// BrowserResolver resolves a URL by driving a real browser.
type BrowserResolver interface {
	ResolveURL(ctx context.Context, url string) (string, error)
}

// MetricsObserver receives pipeline events. A nil observer disables
// instrumentation.
type MetricsObserver interface {
	ObserveResolution(method string, success bool, elapsed time.Duration)
	ObserveCacheLookup(hit bool)
	ObserveAICall(success bool)
}

// ResolverOptions wires the pipeline's collaborators. Cache, Patterns and
// the optional adapters may be nil; the pipeline degrades to pure heuristic
// extraction.
type ResolverOptions struct {
	Client              *Client
	Cache               cache.LinkCache
	Patterns            *pattern.Store
	AI                  AIAdapter
	Challenge           ChallengeFetcher
	Browser             BrowserResolver
	Metrics             MetricsObserver
	MethodTimeout       time.Duration
	CountdownCap        time.Duration
	ConfidenceThreshold float64
}

// Resolver runs the adaptive resolution pipeline: cache, then the learned
// per-domain method, then the fixed heuristic order, then AI analysis as the
// last resort. Successes feed the cache and the pattern store so the next
// resolution for the same domain starts from what worked.
type Resolver struct {
	client    *Client
	cache     cache.LinkCache
	patterns  *pattern.Store
	agent     AIAdapter
	challenge ChallengeFetcher
	browser   BrowserResolver
	metrics   MetricsObserver
	log       utils.Logger

	methodTimeout time.Duration
	countdownCap  time.Duration
	threshold     float64

	totalAttempts      atomic.Int64
	successfulBypasses atomic.Int64
	aiAssisted         atomic.Int64
	cacheHits          atomic.Int64
}

// NewResolver creates the resolution pipeline.
func NewResolver(opts ResolverOptions) *Resolver {
	if opts.MethodTimeout == 0 {
		opts.MethodTimeout = 45 * time.Second
	}
	if opts.CountdownCap == 0 {
		opts.CountdownCap = 10 * time.Second
	}
	if opts.ConfidenceThreshold == 0 {
		opts.ConfidenceThreshold = 50
	}
	return &Resolver{
		client:        opts.Client,
		cache:         opts.Cache,
		patterns:      opts.Patterns,
		agent:         opts.AI,
		challenge:     opts.Challenge,
		browser:       opts.Browser,
		metrics:       opts.Metrics,
		log:           utils.NewComponentLogger("resolver"),
		methodTimeout: opts.MethodTimeout,
		countdownCap:  opts.CountdownCap,
		threshold:     opts.ConfidenceThreshold,
	}
}

type methodFunc func(ctx context.Context, url string) (string, error)

func (r *Resolver) methodFor(m Method) methodFunc {
	switch m {
	case MethodHTMLForm:
		return r.methodHTMLForm
	case MethodCSSHidden:
		return r.methodCSSHidden
	case MethodJavaScript:
		return r.methodJavaScript
	case MethodCountdownTimer:
		return r.methodCountdownTimer
	case MethodDynamicContent:
		return r.methodDynamicContent
	case MethodCloudflare:
		return r.methodCloudflare
	case MethodRedirectChain:
		return r.methodRedirectChain
	case MethodBase64Decode:
		return r.methodBase64Decode
	case MethodURLDecode:
		return r.methodURLDecode
	case MethodBrowserAutomation:
		return r.methodBrowserAutomation
	default:
		return nil
	}
}

// Resolve runs the full pipeline for one URL. Every call increments the
// attempt counter exactly once, including invalid input and cancellation.
func (r *Resolver) Resolve(ctx context.Context, req ResolutionRequest) *ResolutionResult {
	r.totalAttempts.Add(1)
	start := time.Now()

	if err := utils.ValidateURL(req.OriginalURL); err != nil {
		return r.failure(req.OriginalURL, start, nil, utils.WrapError(utils.ErrCodeInvalidInput, "rejected input URL", err))
	}

	r.log.Infof("resolving %s", req.OriginalURL)

	// Step 1: cache.
	// A cache hit counts only toward cache_hits: successful_bypasses tracks
	// resolutions the pipeline actually performed.
	if entry := r.checkCache(ctx, req.OriginalURL); entry != nil {
		r.cacheHits.Add(1)
		r.observe("cache", true, time.Since(start))
		return &ResolutionResult{
			Success:         true,
			OriginalURL:     req.OriginalURL,
			ResolvedURL:     entry.ResolvedURL,
			Method:          MethodCache.String(),
			Elapsed:         time.Since(start),
			ServedFromCache: true,
			Timestamp:       time.Now().UTC(),
		}
	}

	domain := utils.ExtractDomain(req.OriginalURL)

	// Step 2: learned per-domain method.
	learned := r.learnedPattern(ctx, domain)
	if learned != nil {
		if result := r.tryLearned(ctx, req.OriginalURL, domain, learned, start); result != nil {
			return result
		}
	}

	// Step 3: the fixed heuristic order.
	attempted := make([]string, 0, len(MethodOrder))
	for _, m := range MethodOrder {
		if err := ctx.Err(); err != nil {
			return r.canceled(req.OriginalURL, start, attempted, err)
		}

		tag := m.String()
		resolved, err := r.runMethod(ctx, m, req.OriginalURL)
		if err != nil && utils.CodeOf(err) == utils.ErrCodeCanceled {
			return r.canceled(req.OriginalURL, start, attempted, err)
		}
		if err != nil {
			r.log.Debugf("method %s errored: %v", tag, err)
		}
		if resolved != "" {
			r.successfulBypasses.Add(1)
			r.recordSuccess(ctx, domain, tag, "traditional", time.Since(start))
			r.putCache(ctx, req.OriginalURL, resolved, tag)
			r.observe(tag, true, time.Since(start))
			return &ResolutionResult{
				Success:       true,
				OriginalURL:   req.OriginalURL,
				ResolvedURL:   resolved,
				Method:        tag,
				Elapsed:       time.Since(start),
				AttemptedTags: attempted,
				Timestamp:     time.Now().UTC(),
			}
		}
		attempted = append(attempted, tag)
	}

	// Step 4: AI-assisted analysis.
	if err := ctx.Err(); err != nil {
		return r.canceled(req.OriginalURL, start, attempted, err)
	}
	result, aiErr := r.runAIAssisted(ctx, req.OriginalURL, domain, start, attempted)
	if result != nil {
		return result
	}
	if aiErr != nil && utils.CodeOf(aiErr) == utils.ErrCodeCanceled {
		return r.canceled(req.OriginalURL, start, attempted, aiErr)
	}

	// Step 5: exhausted.
	failErr := utils.NewError(utils.ErrCodeMethodExhausted, "all bypass methods failed").
		WithContext("attempted", len(attempted))
	if aiErr != nil {
		failErr = failErr.WithCause(aiErr)
	}
	r.recordFailure(ctx, domain, attempted, failErr)
	r.observe("none", false, time.Since(start))
	return r.failure(req.OriginalURL, start, attempted, failErr)
}

// runMethod executes one extraction method under the per-method timeout and
// validates the candidate before accepting it.
func (r *Resolver) runMethod(ctx context.Context, m Method, url string) (string, error) {
	fn := r.methodFor(m)
	if fn == nil {
		return "", nil
	}

	methodCtx, cancel := context.WithTimeout(ctx, r.methodTimeout)
	defer cancel()

	resolved, err := fn(methodCtx, url)
	if err != nil {
		// A method timeout is that method failing, not the whole
		// resolution being canceled.
		if methodCtx.Err() != nil && ctx.Err() == nil {
			return "", nil
		}
		return "", err
	}
	if resolved == "" {
		return "", nil
	}
	if err := utils.ValidateURL(resolved); err != nil {
		r.log.Debugf("method %s produced non-URL candidate %q", m, resolved)
		return "", nil
	}
	return resolved, nil
}

func (r *Resolver) learnedPattern(ctx context.Context, domain string) *pattern.LearnedPattern {
	if r.patterns == nil || domain == "" {
		return nil
	}
	p := r.patterns.Get(ctx, domain)
	if p == nil || p.SuccessRate() <= r.threshold {
		return nil
	}
	if ParseMethod(p.MethodUsed) == MethodUnknown {
		r.log.Warnf("learned pattern for %s names unknown method %q", domain, p.MethodUsed)
		return nil
	}
	return p
}

// tryLearned attempts the domain's remembered method before the fixed
// order. A miss decays the pattern's success rate and falls through to the
// normal pipeline by returning nil.
func (r *Resolver) tryLearned(ctx context.Context, url, domain string, p *pattern.LearnedPattern, start time.Time) *ResolutionResult {
	m := ParseMethod(p.MethodUsed)
	tag := m.String()
	r.log.Infof("trying learned method %s for %s (%.0f%% success)", tag, domain, p.SuccessRate())

	resolved, err := r.runMethod(ctx, m, url)
	if err != nil && utils.CodeOf(err) == utils.ErrCodeCanceled {
		return r.canceled(url, start, []string{tag}, err)
	}
	if resolved == "" {
		r.patterns.RecordLearnedMiss(ctx, domain)
		r.observe("learned_"+tag, false, time.Since(start))
		return nil
	}

	r.successfulBypasses.Add(1)
	r.aiAssisted.Add(1)
	r.patterns.RecordSuccess(ctx, domain, tag, p.ProtectionType, time.Since(start))
	r.putCache(ctx, url, resolved, tag)
	r.observe("learned_"+tag, true, time.Since(start))
	return &ResolutionResult{
		Success:     true,
		OriginalURL: url,
		ResolvedURL: resolved,
		Method:      "learned_" + tag,
		Elapsed:     time.Since(start),
		Timestamp:   time.Now().UTC(),
	}
}

// runAIAssisted runs the last-resort analysis phase: fetch the page, classify
// the protection, synthesize a strategy, and (when enabled) interpret it.
func (r *Resolver) runAIAssisted(ctx context.Context, url, domain string, start time.Time, attempted []string) (*ResolutionResult, error) {
	if r.agent == nil || !r.agent.Available() {
		return nil, utils.NewError(utils.ErrCodeAIUnavailable, "no analysis model configured")
	}

	html, _, err := r.client.FetchPage(ctx, url)
	if err != nil {
		return nil, utils.WrapError(utils.ErrCodeAIAnalysisFailed, "fetching page for analysis", err)
	}

	analysis, err := r.agent.Analyze(ctx, url, html)
	if err != nil {
		r.observeAI(false)
		return nil, err
	}

	strat, err := r.agent.Synthesize(ctx, url, analysis)
	if err != nil {
		r.observeAI(false)
		return nil, err
	}

	resolved, err := r.agent.Execute(ctx, url, strat)
	if err != nil {
		r.observeAI(false)
		r.log.Infof("AI strategy did not resolve %s: %v", url, err)
		return nil, err
	}

	tag := MethodAIGenerated.String()
	r.successfulBypasses.Add(1)
	r.aiAssisted.Add(1)
	r.observeAI(true)
	r.recordSuccess(ctx, domain, tag, analysis.ProtectionType, time.Since(start))
	r.putCache(ctx, url, resolved, tag)
	r.observe(tag, true, time.Since(start))
	return &ResolutionResult{
		Success:       true,
		OriginalURL:   url,
		ResolvedURL:   resolved,
		Method:        tag,
		Elapsed:       time.Since(start),
		Analysis:      analysis,
		AttemptedTags: attempted,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// Statistics snapshots the pipeline counters.
func (r *Resolver) Statistics() Statistics {
	total := r.totalAttempts.Load()
	success := r.successfulBypasses.Load()
	assisted := r.aiAssisted.Load()

	stats := Statistics{
		TotalAttempts:      total,
		SuccessfulBypasses: success,
		CacheHits:          r.cacheHits.Load(),
		AIAssistedBypasses: assisted,
	}
	if total > 0 {
		stats.SuccessRate = float64(success) / float64(total) * 100
		stats.AIUsageRate = float64(assisted) / float64(total) * 100
	}
	if r.agent != nil {
		stats.AIStats = r.agent.Stats()
		if r.patterns != nil {
			stats.AIStats.LearnedDomains = r.patterns.KnownDomains()
		}
	}
	return stats
}

func (r *Resolver) checkCache(ctx context.Context, url string) *cache.Entry {
	if r.cache == nil {
		return nil
	}
	entry, err := r.cache.Get(ctx, url)
	if err != nil {
		r.log.Warnf("cache lookup failed for %s: %v", url, err)
		r.observeCache(false)
		return nil
	}
	r.observeCache(entry != nil)
	return entry
}

func (r *Resolver) putCache(ctx context.Context, original, resolved, method string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Put(ctx, original, resolved, method); err != nil {
		r.log.Warnf("cache store failed for %s: %v", original, err)
	}
}

func (r *Resolver) recordSuccess(ctx context.Context, domain, method, protectionType string, elapsed time.Duration) {
	if r.patterns == nil || domain == "" {
		return
	}
	r.patterns.RecordSuccess(ctx, domain, method, protectionType, elapsed)
}

func (r *Resolver) recordFailure(ctx context.Context, domain string, attempted []string, cause error) {
	if r.patterns == nil || domain == "" {
		return
	}
	r.patterns.RecordFailure(ctx, domain, attempted, cause)
}

// canceled builds the result for an interrupted resolution. Nothing is
// written to the cache or the pattern store on this path; a cancellation
// says nothing about the domain.
func (r *Resolver) canceled(url string, start time.Time, attempted []string, cause error) *ResolutionResult {
	err := utils.WrapError(utils.ErrCodeCanceled, "resolution canceled", cause)
	r.observe("canceled", false, time.Since(start))
	return r.failure(url, start, attempted, err)
}

func (r *Resolver) failure(url string, start time.Time, attempted []string, err *utils.StructuredError) *ResolutionResult {
	return &ResolutionResult{
		Success:       false,
		OriginalURL:   url,
		Method:        "none",
		Elapsed:       time.Since(start),
		Error:         err,
		AttemptedTags: attempted,
		Timestamp:     time.Now().UTC(),
	}
}

func (r *Resolver) observe(method string, success bool, elapsed time.Duration) {
	if r.metrics != nil {
		r.metrics.ObserveResolution(method, success, elapsed)
	}
}

func (r *Resolver) observeCache(hit bool) {
	if r.metrics != nil {
		r.metrics.ObserveCacheLookup(hit)
	}
}

func (r *Resolver) observeAI(success bool) {
	if r.metrics != nil {
		r.metrics.ObserveAICall(success)
	}
}
