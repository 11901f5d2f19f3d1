// internal/bypass/methods_net.go
package bypass

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

var bareURLRe = regexp.MustCompile(`https?://[^\s"'<>]+`)

// methodCloudflare fetches the page through the challenge-tolerant client
// and mines the result for a download link, first in anchors and then in
// raw script text.
func (r *Resolver) methodCloudflare(ctx context.Context, pageURL string) (string, error) {
	if r.challenge == nil {
		return "", nil
	}

	html, err := r.challenge.Fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", utils.WrapError(utils.ErrCodeParseFailure, "parsing page", err)
	}

	var found string
	doc.Find(`a[href*="download"], a[href*="get"], a[href*="file"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if ok && href != "" {
			found = href
			return false
		}
		return true
	})
	if found != "" {
		return found, nil
	}

	doc.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
		for _, candidate := range bareURLRe.FindAllString(script.Text(), -1) {
			if IsPlausibleTarget(candidate, pageURL) {
				found = candidate
				return false
			}
		}
		return true
	})
	return found, nil
}

// methodRedirectChain walks HTTP redirects hop by hop. A chain that never
// terminates within the hop budget, or a URL that does not redirect at all,
// yields no candidate.
func (r *Resolver) methodRedirectChain(ctx context.Context, pageURL string) (string, error) {
	final, err := r.client.FollowRedirects(ctx, pageURL)
	if err != nil {
		return "", err
	}
	if final == "" || final == pageURL {
		return "", nil
	}
	return final, nil
}

// methodBrowserAutomation drives a real browser as the heaviest extraction
// method. It is skipped when no browser backend is configured.
func (r *Resolver) methodBrowserAutomation(ctx context.Context, pageURL string) (string, error) {
	if r.browser == nil {
		return "", nil
	}
	return r.browser.ResolveURL(ctx, pageURL)
}
