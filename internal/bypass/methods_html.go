// internal/bypass/methods_html.go
package bypass

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

// downloadAnchorSelector matches anchors whose class or id marks them as the
// download call-to-action.
const downloadAnchorSelector = `a[class*="download"], a[class*="btn-download"], a[class*="get-link"], a[id*="download"], a[id*="get-link"]`

// methodHTMLForm looks for an explicit download anchor or a download form on
// the page. Anchors win directly; forms are submitted with their inputs and
// the landing URL is the candidate.
func (r *Resolver) methodHTMLForm(ctx context.Context, pageURL string) (string, error) {
	html, finalURL, err := r.client.FetchPage(ctx, pageURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", utils.WrapError(utils.ErrCodeParseFailure, "parsing page", err)
	}

	var found string
	doc.Find(downloadAnchorSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if ok && strings.HasPrefix(href, "http") {
			found = href
			return false
		}
		return true
	})
	if found != "" {
		return found, nil
	}

	var formResult string
	var formErr error
	doc.Find(`form[action*="download"], form[action*="get"]`).EachWithBreak(func(_ int, form *goquery.Selection) bool {
		formResult, formErr = r.submitForm(ctx, finalURL, form)
		return formResult == ""
	})
	if formResult != "" {
		return formResult, nil
	}
	if formErr != nil {
		return "", formErr
	}
	return "", nil
}

// methodCSSHidden finds anchors the page hides with inline styles or hide
// classes. These pages render the real link invisible until a script flips
// it on; the markup already carries the destination.
func (r *Resolver) methodCSSHidden(ctx context.Context, pageURL string) (string, error) {
	html, _, err := r.client.FetchPage(ctx, pageURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", utils.WrapError(utils.ErrCodeParseFailure, "parsing page", err)
	}

	var found string
	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !isHiddenSelection(sel) {
			return true
		}
		href, ok := sel.Attr("href")
		if ok && IsPlausibleTarget(href, pageURL) {
			found = href
			return false
		}
		return true
	})
	return found, nil
}

func isHiddenSelection(sel *goquery.Selection) bool {
	if style, ok := sel.Attr("style"); ok {
		normalized := strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(normalized, "display:none") || strings.Contains(normalized, "visibility:hidden") {
			return true
		}
	}
	if class, ok := sel.Attr("class"); ok {
		lowered := strings.ToLower(class)
		for _, marker := range []string{"hidden", "hide", "invisible"} {
			if strings.Contains(lowered, marker) {
				return true
			}
		}
	}
	return false
}

// submitForm collects a form's named inputs and submits it, returning the
// URL the submission lands on.
func (r *Resolver) submitForm(ctx context.Context, baseURL string, form *goquery.Selection) (string, error) {
	action, _ := form.Attr("action")
	if action == "" {
		return "", nil
	}
	submitURL := utils.ResolveRelative(baseURL, action)
	if submitURL == "" {
		return "", nil
	}

	values := url.Values{}
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := input.Attr("value")
		values.Set(name, value)
	})

	method, _ := form.Attr("method")
	if strings.EqualFold(method, "post") {
		_, finalURL, err := r.client.SubmitForm(ctx, submitURL, values)
		if err != nil {
			return "", err
		}
		if finalURL != baseURL && utils.IsAbsoluteHTTP(finalURL) {
			return finalURL, nil
		}
		return "", nil
	}

	// GET form: encode inputs into the query string.
	getURL := submitURL
	if len(values) > 0 {
		sep := "?"
		if strings.Contains(getURL, "?") {
			sep = "&"
		}
		getURL += sep + values.Encode()
	}
	_, finalURL, err := r.client.FetchPage(ctx, getURL)
	if err != nil {
		return "", err
	}
	if finalURL != baseURL && finalURL != getURL && utils.IsAbsoluteHTTP(finalURL) {
		return finalURL, nil
	}
	return "", nil
}
