// internal/bypass/methods_script.go
package bypass

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

// Inline-script patterns that commonly carry the destination URL. Order
// matters: the most specific assignment forms come first.
var scriptLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`var\s+link\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`href\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`window\.location\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`url\s*:\s*["']([^"']+)["']`),
}

var apiEndpointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`fetch\(["']([^"']+)["']`),
	regexp.MustCompile(`ajax\(\{[^}]*url:\s*["']([^"']+)["']`),
	regexp.MustCompile(`\.get\(["']([^"']+)["']`),
}

var countdownSecondsRe = regexp.MustCompile(`(\d+)\s*second`)

// methodJavaScript scans inline script for variable assignments that embed
// the destination URL. No script is executed; the patterns cover the common
// reveal-on-click idioms.
func (r *Resolver) methodJavaScript(ctx context.Context, pageURL string) (string, error) {
	html, _, err := r.client.FetchPage(ctx, pageURL)
	if err != nil {
		return "", err
	}

	for _, pattern := range scriptLinkPatterns {
		for _, match := range pattern.FindAllStringSubmatch(html, -1) {
			if IsPlausibleTarget(match[1], pageURL) {
				return match[1], nil
			}
		}
	}
	return "", nil
}

// methodDynamicContent finds AJAX endpoints referenced by the page's
// scripts, calls them, and looks for a link field in the JSON response.
func (r *Resolver) methodDynamicContent(ctx context.Context, pageURL string) (string, error) {
	html, _, err := r.client.FetchPage(ctx, pageURL)
	if err != nil {
		return "", err
	}

	for _, pattern := range apiEndpointPatterns {
		for _, match := range pattern.FindAllStringSubmatch(html, -1) {
			endpoint := match[1]
			if !strings.Contains(endpoint, "/api/") && !strings.Contains(endpoint, "/get") {
				continue
			}
			full := utils.ResolveRelative(pageURL, endpoint)
			if full == "" {
				continue
			}

			var payload map[string]any
			if err := r.client.FetchJSON(ctx, full, &payload); err != nil {
				if utils.CodeOf(err) == utils.ErrCodeCanceled {
					return "", err
				}
				continue
			}
			for _, key := range []string{"url", "link", "download", "file"} {
				if value, ok := payload[key].(string); ok && utils.IsAbsoluteHTTP(value) {
					return value, nil
				}
			}
		}
	}
	return "", nil
}

// methodCountdownTimer detects a countdown element, waits out the advertised
// delay (capped), then re-fetches with the session cookies and pulls the
// revealed download anchor.
func (r *Resolver) methodCountdownTimer(ctx context.Context, pageURL string) (string, error) {
	html, finalURL, err := r.client.FetchPage(ctx, pageURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", utils.WrapError(utils.ErrCodeParseFailure, "parsing page", err)
	}

	if doc.Find(`[id*="countdown"], [id*="timer"], [id*="wait"]`).Length() == 0 {
		return "", nil
	}

	wait := 5 * time.Second
	if m := countdownSecondsRe.FindStringSubmatch(strings.ToLower(html)); m != nil {
		if secs, err := strconv.Atoi(m[1]); err == nil {
			wait = time.Duration(secs) * time.Second
		}
	}
	if limit := r.countdownCap; limit > 0 && wait > limit {
		wait = limit
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", utils.WrapError(utils.ErrCodeCanceled, "countdown wait canceled", ctx.Err())
	case <-timer.C:
	}

	// The cookie jar carries the first request's session, so the second
	// fetch sees the post-countdown page.
	html2, _, err := r.client.FetchPage(ctx, finalURL)
	if err != nil {
		return "", err
	}
	doc2, err := goquery.NewDocumentFromReader(strings.NewReader(html2))
	if err != nil {
		return "", utils.WrapError(utils.ErrCodeParseFailure, "parsing post-countdown page", err)
	}

	var found string
	doc2.Find(`a[class*="download"], a[class*="get-link"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if ok && href != "" {
			found = href
			return false
		}
		return true
	})
	return found, nil
}
