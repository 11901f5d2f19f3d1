// internal/ai/agent.go
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

// Classification is the structured result of page analysis.
type Classification struct {
	ProtectionType      string   `json:"protection_type"`
	Confidence          float64  `json:"confidence"`
	KeyElements         []string `json:"key_elements,omitempty"`
	JavaScriptRequired  bool     `json:"javascript_required"`
	BypassStrategy      []string `json:"bypass_strategy"`
	EstimatedDifficulty string   `json:"estimated_difficulty,omitempty"`
	RecommendedMethod   string   `json:"recommended_method,omitempty"`
	AdditionalNotes     string   `json:"additional_notes,omitempty"`
}

// Stats holds the adapter's own counters, nested under the pipeline
// statistics.
type Stats struct {
	TotalAnalyses         int64  `json:"total_analyses"`
	SuccessfulGenerations int64  `json:"successful_generations"`
	LearnedDomains        int    `json:"learned_domains"`
	ModelAvailable        bool   `json:"model_available"`
	Model                 string `json:"model,omitempty"`
	ExecutionEnabled      bool   `json:"execution_enabled"`
}

// Fetcher is the page-access capability the strategy interpreter is allowed
// to use. It is the adapter's entire reach into the network.
type Fetcher interface {
	FetchPage(ctx context.Context, url string) (html string, finalURL string, err error)
	FollowRedirects(ctx context.Context, url string) (string, error)
}

// Agent analyzes protected pages and synthesizes bypass strategies. It is an
// untrusted, possibly-unavailable external capability: a missing generator
// degrades every call to "analysis unavailable".
type Agent struct {
	gen     Generator
	fetcher Fetcher
	log     utils.Logger
	model   string

	// executeEnabled gates the strategy interpreter. When false, synthesis
	// stays advisory and Execute always reports no result.
	executeEnabled bool
	maxTokens      int

	totalAnalyses         atomic.Int64
	successfulGenerations atomic.Int64
}

// AgentOptions configures the analysis adapter.
type AgentOptions struct {
	Generator         Generator
	Fetcher           Fetcher
	Model             string
	MaxOutputTokens   int
	ExecuteStrategies bool
}

// NewAgent creates an analysis adapter. A nil Generator yields an adapter
// that reports unavailable.
func NewAgent(opts AgentOptions) *Agent {
	maxTokens := opts.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &Agent{
		gen:            opts.Generator,
		fetcher:        opts.Fetcher,
		log:            utils.NewComponentLogger("ai-agent"),
		model:          opts.Model,
		executeEnabled: opts.ExecuteStrategies,
		maxTokens:      maxTokens,
	}
}

// Available reports whether a generation model is configured.
func (a *Agent) Available() bool {
	return a != nil && a.gen != nil
}

// Analyze classifies the protection mechanism on a fetched page.
func (a *Agent) Analyze(ctx context.Context, url, html string) (*Classification, error) {
	if !a.Available() {
		return nil, utils.NewError(utils.ErrCodeAIUnavailable, "no generation model configured")
	}

	a.totalAnalyses.Add(1)

	raw, err := a.gen.Generate(ctx, analysisPrompt(url, html), 0.3, a.maxTokens)
	if err != nil {
		return nil, utils.WrapError(utils.ErrCodeAIAnalysisFailed, "generation call failed", err)
	}

	cls, err := parseClassification(raw)
	if err != nil {
		return nil, err
	}

	a.log.Infof("analysis for %s: protection=%s confidence=%.0f", url, cls.ProtectionType, cls.Confidence)
	return cls, nil
}

// Stats returns the adapter's counters. LearnedDomains is filled in by the
// caller, which owns the pattern store.
func (a *Agent) Stats() Stats {
	if a == nil {
		return Stats{}
	}
	return Stats{
		TotalAnalyses:         a.totalAnalyses.Load(),
		SuccessfulGenerations: a.successfulGenerations.Load(),
		ModelAvailable:        a.Available(),
		Model:                 a.model,
		ExecutionEnabled:      a.executeEnabled,
	}
}

func analysisPrompt(url, html string) string {
	// Large pages are truncated; the protection markers are almost always
	// in the first part of the document.
	if len(html) > 15000 {
		html = html[:15000]
	}

	return fmt.Sprintf(`You are an expert link-protection analyst. Analyze this webpage and identify the protection mechanism guarding the destination URL.

URL: %s

HTML content (possibly truncated):
`+"```html\n%s\n```"+`

Identify:
1. protection_type: one of countdown_timer, cloudflare_protection, captcha, redirect_chain, javascript_obfuscation, base64_encoded, cookie_required, form_submission, dynamic_loading, multiple_steps
2. confidence: 0-100
3. key_elements: important HTML element ids/classes/tags
4. javascript_required: whether script execution is needed
5. bypass_strategy: ordered step-by-step instructions
6. estimated_difficulty: easy, medium, or hard
7. recommended_method: one of html_form, css_hidden, javascript, countdown_timer, dynamic_content, cloudflare, redirect_chain, base64_decode, url_decode, browser_automation

Respond ONLY with a JSON object of exactly those keys, no markdown and no extra text.`, url, html)
}

// parseClassification decodes a model response that may be wrapped in
// markdown fences or surrounded by prose.
func parseClassification(raw string) (*Classification, error) {
	cleaned := stripFences(raw)

	var cls Classification
	if err := json.Unmarshal([]byte(cleaned), &cls); err != nil {
		// Fall back to the outermost JSON object embedded in the text.
		if match := braceRe.FindString(raw); match != "" {
			if err2 := json.Unmarshal([]byte(match), &cls); err2 != nil {
				return nil, utils.WrapError(utils.ErrCodeAIAnalysisFailed, "response is not valid JSON", err2)
			}
		} else {
			return nil, utils.WrapError(utils.ErrCodeAIAnalysisFailed, "response is not valid JSON", err)
		}
	}

	if cls.ProtectionType == "" || len(cls.BypassStrategy) == 0 {
		return nil, utils.NewError(utils.ErrCodeAIAnalysisFailed, "analysis missing required fields")
	}

	return &cls, nil
}

var braceRe = regexp.MustCompile(`(?s)\{.*\}`)

func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = cleaned[len("```json"):]
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[len("```"):]
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}
