// Package bypass implements the adaptive resolution engine: an ordered
// strategy pipeline that recovers final destination URLs from shortened or
// gated intermediate URLs, learning per-domain which strategy works.
package bypass

import (
	"time"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/ai"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

// Method identifies one extraction strategy. The set is closed: stored
// method names decode back into this enum, and an unrecognized name maps to
// MethodUnknown, which the pipeline treats as "pattern not applicable"
// rather than an error.
type Method int

const (
	MethodUnknown Method = iota
	MethodCache
	MethodHTMLForm
	MethodCSSHidden
	MethodJavaScript
	MethodCountdownTimer
	MethodDynamicContent
	MethodCloudflare
	MethodRedirectChain
	MethodBase64Decode
	MethodURLDecode
	MethodBrowserAutomation
	MethodAIGenerated
)

var methodTags = map[Method]string{
	MethodUnknown:           "unknown",
	MethodCache:             "cache",
	MethodHTMLForm:          "html_form",
	MethodCSSHidden:         "css_hidden",
	MethodJavaScript:        "javascript",
	MethodCountdownTimer:    "countdown_timer",
	MethodDynamicContent:    "dynamic_content",
	MethodCloudflare:        "cloudflare",
	MethodRedirectChain:     "redirect_chain",
	MethodBase64Decode:      "base64_decode",
	MethodURLDecode:         "url_decode",
	MethodBrowserAutomation: "browser_automation",
	MethodAIGenerated:       "ai_generated",
}

// String returns the stable tag used in results and persisted patterns.
func (m Method) String() string {
	if tag, ok := methodTags[m]; ok {
		return tag
	}
	return "unknown"
}

// ParseMethod decodes a stored tag back into a Method. Unknown tags decode
// to MethodUnknown.
func ParseMethod(tag string) Method {
	for m, t := range methodTags {
		if t == tag {
			return m
		}
	}
	return MethodUnknown
}

// MethodOrder is the fixed priority order of the extraction pipeline:
// cheapest and most general checks first, most expensive last.
var MethodOrder = []Method{
	MethodHTMLForm,
	MethodCSSHidden,
	MethodJavaScript,
	MethodCountdownTimer,
	MethodDynamicContent,
	MethodCloudflare,
	MethodRedirectChain,
	MethodBase64Decode,
	MethodURLDecode,
	MethodBrowserAutomation,
}

// ResolutionRequest describes one resolution. Immutable once created.
type ResolutionRequest struct {
	OriginalURL string `json:"original_url"`
	RequesterID string `json:"requester_id,omitempty"`
}

// ResolutionResult is the uniform record produced for every resolution
// attempt. Never mutated after return; it is the unit of observability for
// the whole pipeline.
type ResolutionResult struct {
	Success         bool                    `json:"success"`
	OriginalURL     string                  `json:"original_url"`
	ResolvedURL     string                  `json:"resolved_url,omitempty"`
	Method          string                  `json:"method"`
	Elapsed         time.Duration           `json:"elapsed"`
	ServedFromCache bool                    `json:"served_from_cache"`
	Error           *utils.StructuredError  `json:"error,omitempty"`
	Analysis        *ai.Classification      `json:"protection_analysis,omitempty"`
	AttemptedTags   []string                `json:"attempted_methods,omitempty"`
	Timestamp       time.Time               `json:"timestamp"`
}

// Statistics is the process-wide counter snapshot. Counters are monotonic
// and reset only on process restart.
type Statistics struct {
	TotalAttempts      int64    `json:"total_attempts"`
	SuccessfulBypasses int64    `json:"successful_bypasses"`
	SuccessRate        float64  `json:"success_rate"`
	CacheHits          int64    `json:"cache_hits"`
	AIAssistedBypasses int64    `json:"ai_assisted_bypasses"`
	AIUsageRate        float64  `json:"ai_usage_rate"`
	AIStats            ai.Stats `json:"ai_stats"`
}
