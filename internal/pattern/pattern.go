// Package pattern persists per-domain memory of which extraction method
// last worked, and feeds resolution outcomes back into that memory.
package pattern

import (
	"context"
	"sync"
	"time"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/store"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

// Collection is the document collection holding learned patterns.
const Collection = "learned_patterns"

// LearnedPattern is the per-domain record of the single most recently
// winning method and its running outcome counters.
type LearnedPattern struct {
	Domain             string    `json:"domain"`
	ProtectionType     string    `json:"protection_type"`
	MethodUsed         string    `json:"method_used"`
	TotalAttempts      int64     `json:"total_attempts"`
	SuccessfulAttempts int64     `json:"successful_attempts"`
	LastSuccess        time.Time `json:"last_success,omitempty"`
	LastFailure        time.Time `json:"last_failure,omitempty"`
	FailedMethods      []string  `json:"failed_methods,omitempty"`
	LastError          string    `json:"last_error,omitempty"`
	NeedsAIAnalysis    bool      `json:"needs_ai_analysis"`
	AvgExecutionTime   float64   `json:"avg_execution_time,omitempty"` // seconds
}

// SuccessRate recomputes the percentage from the counters. The counters are
// the source of truth; any stored rate is only a cache of this ratio.
func (p *LearnedPattern) SuccessRate() float64 {
	if p.TotalAttempts <= 0 {
		return 0
	}
	rate := float64(p.SuccessfulAttempts) / float64(p.TotalAttempts) * 100
	if rate > 100 {
		return 100
	}
	return rate
}

// Store persists learned patterns behind an in-process read cache. The
// persisted copy is authoritative; the memory copy is a performance
// optimization that may go stale across instances.
type Store struct {
	backend store.DocumentStore
	log     utils.Logger

	mu       sync.RWMutex
	patterns map[string]*LearnedPattern
}

// NewStore creates a pattern store over the given document store.
func NewStore(backend store.DocumentStore) *Store {
	return &Store{
		backend:  backend,
		log:      utils.NewComponentLogger("pattern-store"),
		patterns: make(map[string]*LearnedPattern),
	}
}

// Get returns the learned pattern for a domain, or nil when none exists.
// Store failures degrade to "no pattern" so a flaky backend never stalls
// the pipeline.
func (s *Store) Get(ctx context.Context, domain string) *LearnedPattern {
	s.mu.RLock()
	cached, ok := s.patterns[domain]
	s.mu.RUnlock()
	if ok {
		return cached.clone()
	}

	doc, err := s.backend.Get(ctx, Collection, domain)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		s.log.Warnf("pattern lookup for %s failed: %v", domain, err)
		return nil
	}

	p := fromFields(domain, doc)

	s.mu.Lock()
	s.patterns[domain] = p
	s.mu.Unlock()

	return p.clone()
}

// RecordSuccess stores one more successful attempt and replaces the stored
// method and classification with the most recent winner.
func (s *Store) RecordSuccess(ctx context.Context, domain, method, protectionType string, elapsed time.Duration) {
	now := time.Now().UTC()

	err := s.backend.Update(ctx, Collection, domain, map[string]store.FieldOp{
		"domain":              store.Set(domain),
		"protection_type":     store.Set(protectionType),
		"method_used":         store.Set(method),
		"total_attempts":      store.Increment(1),
		"successful_attempts": store.Increment(1),
		"last_success":        store.Set(now),
		"needs_ai_analysis":   store.Set(false),
		"avg_execution_time":  store.Set(elapsed.Seconds()),
	})
	if err != nil {
		s.log.Errorf("failed to record success for %s: %v", domain, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.patterns[domain]
	if p == nil {
		p = &LearnedPattern{Domain: domain}
		s.patterns[domain] = p
	}
	p.ProtectionType = protectionType
	p.MethodUsed = method
	p.TotalAttempts++
	p.SuccessfulAttempts++
	p.LastSuccess = now
	p.NeedsAIAnalysis = false
	p.AvgExecutionTime = elapsed.Seconds()
}

// RecordFailure stores one more failed attempt and appends the methods that
// were tried. A domain seen failing for the first time is created with zero
// successes, which marks it as needing AI analysis.
func (s *Store) RecordFailure(ctx context.Context, domain string, attempted []string, cause error) {
	now := time.Now().UTC()
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}

	err := s.backend.Update(ctx, Collection, domain, map[string]store.FieldOp{
		"domain":            store.Set(domain),
		"total_attempts":    store.Increment(1),
		"last_failure":      store.Set(now),
		"failed_methods":    store.ArrayUnion(attempted...),
		"last_error":        store.Set(lastError),
		"needs_ai_analysis": store.Set(true),
	})
	if err != nil {
		s.log.Errorf("failed to record failure for %s: %v", domain, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.patterns[domain]
	if p == nil {
		p = &LearnedPattern{Domain: domain, ProtectionType: "unknown"}
		s.patterns[domain] = p
	}
	p.TotalAttempts++
	p.LastFailure = now
	p.FailedMethods = unionStrings(p.FailedMethods, attempted)
	p.LastError = lastError
	p.NeedsAIAnalysis = true
}

// RecordLearnedMiss counts a failed learned-method attempt against the
// pattern without touching the success counter, so a stale pattern's
// success rate decays below the short-circuit threshold.
func (s *Store) RecordLearnedMiss(ctx context.Context, domain string) {
	err := s.backend.Update(ctx, Collection, domain, map[string]store.FieldOp{
		"total_attempts": store.Increment(1),
	})
	if err != nil {
		s.log.Warnf("failed to count learned miss for %s: %v", domain, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.patterns[domain]; p != nil {
		p.TotalAttempts++
	}
}

// KnownDomains reports how many domains currently have an in-memory pattern.
func (s *Store) KnownDomains() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

func (p *LearnedPattern) clone() *LearnedPattern {
	c := *p
	c.FailedMethods = append([]string(nil), p.FailedMethods...)
	return &c
}

func fromFields(domain string, doc store.Fields) *LearnedPattern {
	p := &LearnedPattern{Domain: domain}
	if s, ok := doc["protection_type"].(string); ok {
		p.ProtectionType = s
	}
	if s, ok := doc["method_used"].(string); ok {
		p.MethodUsed = s
	}
	p.TotalAttempts = asInt64(doc["total_attempts"])
	p.SuccessfulAttempts = asInt64(doc["successful_attempts"])
	if t, ok := doc["last_success"].(time.Time); ok {
		p.LastSuccess = t
	}
	if t, ok := doc["last_failure"].(time.Time); ok {
		p.LastFailure = t
	}
	p.FailedMethods = asStringSlice(doc["failed_methods"])
	if s, ok := doc["last_error"].(string); ok {
		p.LastError = s
	}
	if b, ok := doc["needs_ai_analysis"].(bool); ok {
		p.NeedsAIAnalysis = b
	}
	switch v := doc["avg_execution_time"].(type) {
	case float64:
		p.AvgExecutionTime = v
	case int64:
		p.AvgExecutionTime = float64(v)
	}
	return p
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asStringSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func unionStrings(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			existing = append(existing, s)
			seen[s] = true
		}
	}
	return existing
}
