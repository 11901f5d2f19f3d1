// internal/utils/url.go
package utils

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"
)

// ValidateURL checks that the input is a well-formed absolute http(s) URL.
func ValidateURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return NewError(ErrCodeInvalidInput, "URL is empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return WrapError(ErrCodeInvalidInput, "URL is not parseable", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return NewError(ErrCodeInvalidInput, fmt.Sprintf("unsupported URL scheme: %q", parsed.Scheme))
	}

	if parsed.Host == "" {
		return NewError(ErrCodeInvalidInput, "URL has no host")
	}

	return nil
}

// IsAbsoluteHTTP reports whether the value is an absolute http(s) URL.
func IsAbsoluteHTTP(rawURL string) bool {
	return ValidateURL(rawURL) == nil
}

// ExtractDomain returns the registrable host of a URL with any leading
// "www." stripped, suitable as a pattern-store key.
func ExtractDomain(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// FingerprintURL derives a stable short cache key from a URL. Collisions
// are possible and treated as acceptable soft corruption by the cache layer.
func FingerprintURL(rawURL string) string {
	h := fnv.New64a()
	h.Write([]byte(strings.TrimSpace(rawURL)))
	return fmt.Sprintf("%016x", h.Sum64())
}

// ResolveRelative resolves a possibly-relative reference against a base URL,
// returning the absolute form. Absolute references pass through unchanged.
func ResolveRelative(baseURL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}
