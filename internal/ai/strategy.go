// internal/ai/strategy.go
package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

// Strategy operations form a small closed instruction set. The model may
// only choose from these; free-form generated code is never executed.
const (
	OpFetch           = "fetch"
	OpSelect          = "select"
	OpRegex           = "regex"
	OpDecodeB64       = "decode_b64"
	OpDecodeURL       = "decode_url"
	OpFollowRedirects = "follow_redirects"
)

// maxStrategySteps bounds the interpreter so a synthesized strategy cannot
// loop or chain fetches indefinitely.
const maxStrategySteps = 6

// Step is one instruction in a synthesized strategy.
type Step struct {
	Op       string `json:"op"`
	Selector string `json:"selector,omitempty"`
	Attr     string `json:"attr,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

// Strategy is a declarative bypass plan produced by the model and validated
// before interpretation.
type Strategy struct {
	ProtectionType string `json:"protection_type,omitempty"`
	Steps          []Step `json:"steps"`
}

var validOps = map[string]bool{
	OpFetch:           true,
	OpSelect:          true,
	OpRegex:           true,
	OpDecodeB64:       true,
	OpDecodeURL:       true,
	OpFollowRedirects: true,
}

// Synthesize asks the model for a declarative strategy matching the prior
// classification. The result is validated against the closed instruction set
// before it is returned.
func (a *Agent) Synthesize(ctx context.Context, pageURL string, cls *Classification) (*Strategy, error) {
	if !a.Available() {
		return nil, utils.NewError(utils.ErrCodeAIUnavailable, "no generation model configured")
	}
	if cls == nil {
		return nil, utils.NewError(utils.ErrCodeInvalidInput, "classification required for synthesis")
	}

	raw, err := a.gen.Generate(ctx, synthesisPrompt(pageURL, cls), 0.2, a.maxTokens)
	if err != nil {
		return nil, utils.WrapError(utils.ErrCodeAIAnalysisFailed, "generation call failed", err)
	}

	strat, err := parseStrategy(raw)
	if err != nil {
		return nil, err
	}

	a.successfulGenerations.Add(1)
	return strat, nil
}

// Execute interprets a validated strategy against the page. It refuses to
// run when strategy execution is disabled in configuration.
func (a *Agent) Execute(ctx context.Context, pageURL string, strat *Strategy) (string, error) {
	if !a.executeEnabled {
		return "", utils.NewError(utils.ErrCodeUntrustedCodeBlocked, "strategy execution disabled")
	}
	if a.fetcher == nil {
		return "", utils.NewError(utils.ErrCodeInternal, "no fetcher wired for strategy execution")
	}
	if strat == nil || len(strat.Steps) == 0 {
		return "", utils.NewError(utils.ErrCodeInvalidInput, "empty strategy")
	}

	// value carries the intermediate result between steps: initially the
	// original URL, then page HTML after a fetch, then extracted text.
	value := pageURL
	isHTML := false

	for i, step := range strat.Steps {
		if err := ctx.Err(); err != nil {
			return "", utils.WrapError(utils.ErrCodeCanceled, "strategy execution canceled", err)
		}

		switch step.Op {
		case OpFetch:
			target := value
			if isHTML {
				target = pageURL
			}
			html, finalURL, err := a.fetcher.FetchPage(ctx, target)
			if err != nil {
				return "", utils.WrapError(utils.ErrCodeTransportFailure,
					fmt.Sprintf("strategy step %d: fetch failed", i+1), err)
			}
			value = html
			pageURL = finalURL
			isHTML = true

		case OpSelect:
			if !isHTML {
				return "", utils.NewError(utils.ErrCodeInvalidInput,
					fmt.Sprintf("strategy step %d: select before fetch", i+1))
			}
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
			if err != nil {
				return "", utils.WrapError(utils.ErrCodeParseFailure, "strategy page parse failed", err)
			}
			sel := doc.Find(step.Selector).First()
			attr := step.Attr
			if attr == "" {
				attr = "href"
			}
			extracted, ok := sel.Attr(attr)
			if !ok {
				extracted = strings.TrimSpace(sel.Text())
			}
			if extracted == "" {
				return "", utils.NewError(utils.ErrCodeNoCandidateFound,
					fmt.Sprintf("strategy step %d: selector %q matched nothing", i+1, step.Selector))
			}
			value = extracted
			isHTML = false

		case OpRegex:
			re, err := regexp.Compile(step.Pattern)
			if err != nil {
				return "", utils.WrapError(utils.ErrCodeInvalidInput, "strategy regex invalid", err)
			}
			m := re.FindStringSubmatch(value)
			if m == nil {
				return "", utils.NewError(utils.ErrCodeNoCandidateFound,
					fmt.Sprintf("strategy step %d: pattern matched nothing", i+1))
			}
			if len(m) > 1 {
				value = m[1]
			} else {
				value = m[0]
			}
			isHTML = false

		case OpDecodeB64:
			decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
			if err != nil {
				return "", utils.WrapError(utils.ErrCodeParseFailure, "strategy base64 decode failed", err)
			}
			value = string(decoded)
			isHTML = false

		case OpDecodeURL:
			decoded, err := url.QueryUnescape(value)
			if err != nil {
				return "", utils.WrapError(utils.ErrCodeParseFailure, "strategy percent decode failed", err)
			}
			value = decoded
			isHTML = false

		case OpFollowRedirects:
			target := value
			if isHTML || !utils.IsAbsoluteHTTP(target) {
				target = pageURL
			}
			final, err := a.fetcher.FollowRedirects(ctx, target)
			if err != nil {
				return "", utils.WrapError(utils.ErrCodeTransportFailure, "strategy redirect follow failed", err)
			}
			value = final
			isHTML = false

		default:
			return "", utils.NewError(utils.ErrCodeUntrustedCodeBlocked,
				fmt.Sprintf("strategy step %d: unknown op %q", i+1, step.Op))
		}
	}

	value = strings.TrimSpace(value)
	if !utils.IsAbsoluteHTTP(value) {
		return "", utils.NewError(utils.ErrCodeNoCandidateFound, "strategy did not yield an absolute URL")
	}
	return value, nil
}

func synthesisPrompt(pageURL string, cls *Classification) string {
	return fmt.Sprintf(`You previously classified the page %s as protection_type=%q with strategy hints: %s.

Produce a machine-executable extraction plan as JSON:
{"protection_type": "...", "steps": [{"op": "...", ...}]}

Allowed ops (no other ops exist):
- {"op":"fetch"} - load the page HTML
- {"op":"select","selector":"CSS selector","attr":"attribute name"} - extract an attribute (or text) from the first match
- {"op":"regex","pattern":"Go regexp with one capture group"} - extract from the current value
- {"op":"decode_b64"} - base64-decode the current value
- {"op":"decode_url"} - percent-decode the current value
- {"op":"follow_redirects"} - follow HTTP redirects from the current URL

Use at most %d steps. Respond ONLY with the JSON object.`,
		pageURL, cls.ProtectionType, strings.Join(cls.BypassStrategy, "; "), maxStrategySteps)
}

func parseStrategy(raw string) (*Strategy, error) {
	cleaned := stripFences(raw)

	var strat Strategy
	if err := json.Unmarshal([]byte(cleaned), &strat); err != nil {
		if match := braceRe.FindString(raw); match != "" {
			if err2 := json.Unmarshal([]byte(match), &strat); err2 != nil {
				return nil, utils.WrapError(utils.ErrCodeAIAnalysisFailed, "strategy is not valid JSON", err2)
			}
		} else {
			return nil, utils.WrapError(utils.ErrCodeAIAnalysisFailed, "strategy is not valid JSON", err)
		}
	}

	if len(strat.Steps) == 0 {
		return nil, utils.NewError(utils.ErrCodeAIAnalysisFailed, "strategy has no steps")
	}
	if len(strat.Steps) > maxStrategySteps {
		return nil, utils.NewError(utils.ErrCodeUntrustedCodeBlocked,
			fmt.Sprintf("strategy exceeds %d steps", maxStrategySteps))
	}
	for i, step := range strat.Steps {
		if !validOps[step.Op] {
			return nil, utils.NewError(utils.ErrCodeUntrustedCodeBlocked,
				fmt.Sprintf("strategy step %d uses unknown op %q", i+1, step.Op))
		}
	}
	return &strat, nil
}
