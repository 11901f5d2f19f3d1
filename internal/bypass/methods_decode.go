// internal/bypass/methods_decode.go
package bypass

import (
	"context"
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"
)

var base64Patterns = []*regexp.Regexp{
	regexp.MustCompile(`data-url="([A-Za-z0-9+/=]+)"`),
	regexp.MustCompile(`data-link="([A-Za-z0-9+/=]+)"`),
	regexp.MustCompile(`atob\(["']([A-Za-z0-9+/=]+)["']`),
}

var encodedParamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`url=([^&\s"'<>]+)`),
	regexp.MustCompile(`link=([^&\s"'<>]+)`),
	regexp.MustCompile(`redirect=([^&\s"'<>]+)`),
}

// methodBase64Decode extracts base64 payloads from data attributes and
// atob() calls and keeps the first one that decodes to an absolute URL.
func (r *Resolver) methodBase64Decode(ctx context.Context, pageURL string) (string, error) {
	html, _, err := r.client.FetchPage(ctx, pageURL)
	if err != nil {
		return "", err
	}

	for _, pattern := range base64Patterns {
		for _, match := range pattern.FindAllStringSubmatch(html, -1) {
			decoded, err := base64.StdEncoding.DecodeString(match[1])
			if err != nil {
				continue
			}
			candidate := strings.TrimSpace(string(decoded))
			if strings.HasPrefix(candidate, "http") {
				return candidate, nil
			}
		}
	}
	return "", nil
}

// methodURLDecode finds percent-encoded URLs stashed in common query
// parameters. A candidate only counts if decoding actually changed it;
// otherwise it was a plain parameter, not an encoded destination.
func (r *Resolver) methodURLDecode(ctx context.Context, pageURL string) (string, error) {
	html, _, err := r.client.FetchPage(ctx, pageURL)
	if err != nil {
		return "", err
	}

	for _, pattern := range encodedParamPatterns {
		for _, match := range pattern.FindAllStringSubmatch(html, -1) {
			encoded := match[1]
			decoded, err := url.QueryUnescape(encoded)
			if err != nil {
				continue
			}
			if decoded != encoded && strings.HasPrefix(decoded, "http") {
				return decoded, nil
			}
		}
	}
	return "", nil
}
