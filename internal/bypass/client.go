// internal/bypass/client.go
package bypass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

// maxBodyBytes caps how much of a response body is read. Shortener landing
// pages are small; anything larger is not the page we are looking for.
const maxBodyBytes = 4 << 20

// Client is the shared HTTP client used by every extraction method. It keeps
// one cookie jar across requests so multi-step flows (form submission after
// an initial GET, countdown pages that set session cookies) work, rotates
// user agents, and rate-limits outbound requests per process.
type Client struct {
	httpClient     *http.Client
	noRedirect     *http.Client
	userAgents     []string
	currentUA      int
	uaMutex        sync.Mutex
	rateLimiter    *rate.Limiter
	headers        map[string]string
	maxRedirectHop int
}

// ClientConfig defines configuration options for the bypass HTTP client.
type ClientConfig struct {
	Timeout        time.Duration
	UserAgents     []string
	Headers        map[string]string
	RateLimit      float64 // requests per second
	RateBurst      int
	MaxRedirectHop int
}

// NewClient creates the shared bypass HTTP client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2.0
	}
	if config.RateBurst == 0 {
		config.RateBurst = 5
	}
	if config.MaxRedirectHop == 0 {
		config.MaxRedirectHop = 10
	}
	if len(config.UserAgents) == 0 {
		config.UserAgents = DefaultUserAgents()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, utils.WrapError(utils.ErrCodeInternal, "cookie jar init failed", err)
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	maxHops := config.MaxRedirectHop
	httpClient := &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxHops {
				return fmt.Errorf("stopped after %d redirects", maxHops)
			}
			return nil
		},
	}

	// Same jar and transport, but redirects surface as responses so the
	// redirect-chain method can walk hops itself.
	noRedirect := &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Client{
		httpClient:     httpClient,
		noRedirect:     noRedirect,
		userAgents:     config.UserAgents,
		rateLimiter:    rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		headers:        config.Headers,
		maxRedirectHop: maxHops,
	}, nil
}

// FetchPage retrieves a page body and reports the URL it finally landed on
// after any redirects.
func (c *Client) FetchPage(ctx context.Context, targetURL string) (string, string, error) {
	resp, err := c.do(ctx, c.httpClient, http.MethodGet, targetURL, "", "", nil)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", utils.NewError(utils.ErrCodeTransportFailure,
			fmt.Sprintf("HTTP %d fetching %s", resp.StatusCode, targetURL)).
			WithContext("status", resp.StatusCode).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", "", utils.WrapError(utils.ErrCodeTransportFailure, "reading response body", err)
	}

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return string(body), finalURL, nil
}

// Get performs a redirect-following GET and returns the raw response. The
// caller owns the body.
func (c *Client) Get(ctx context.Context, targetURL string) (*http.Response, error) {
	return c.do(ctx, c.httpClient, http.MethodGet, targetURL, "", "", nil)
}

// GetNoRedirect performs a GET that does not follow redirects, so 3xx
// responses and their Location headers are visible to the caller.
func (c *Client) GetNoRedirect(ctx context.Context, targetURL string) (*http.Response, error) {
	return c.do(ctx, c.noRedirect, http.MethodGet, targetURL, "", "", nil)
}

// SubmitForm POSTs url-encoded form values and returns the body and the
// final URL after redirects.
func (c *Client) SubmitForm(ctx context.Context, action string, values url.Values) (string, string, error) {
	resp, err := c.do(ctx, c.httpClient, http.MethodPost, action,
		"application/x-www-form-urlencoded", "", strings.NewReader(values.Encode()))
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", "", utils.WrapError(utils.ErrCodeTransportFailure, "reading form response", err)
	}

	finalURL := action
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return string(body), finalURL, nil
}

// FetchJSON retrieves a URL with an XHR-style Accept header and decodes the
// body into out.
func (c *Client) FetchJSON(ctx context.Context, targetURL string, out any) error {
	resp, err := c.do(ctx, c.httpClient, http.MethodGet, targetURL, "",
		"application/json, text/javascript, */*", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return utils.NewError(utils.ErrCodeTransportFailure,
			fmt.Sprintf("HTTP %d fetching %s", resp.StatusCode, targetURL))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return utils.WrapError(utils.ErrCodeTransportFailure, "reading JSON response", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return utils.WrapError(utils.ErrCodeParseFailure, "decoding JSON response", err)
	}
	return nil
}

// FollowRedirects walks the redirect chain hop by hop and returns the final
// non-redirect URL. If the chain never terminates within the hop budget it
// returns an empty string without error, so the caller can fall through to
// the next method.
func (c *Client) FollowRedirects(ctx context.Context, targetURL string) (string, error) {
	current := targetURL
	for hop := 0; hop < c.maxRedirectHop; hop++ {
		resp, err := c.GetNoRedirect(ctx, current)
		if err != nil {
			return "", err
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			if hop == 0 {
				// No redirect at all; nothing was resolved.
				return "", nil
			}
			return current, nil
		}

		loc := resp.Header.Get("Location")
		if loc == "" {
			return "", nil
		}
		next := utils.ResolveRelative(current, loc)
		if next == "" {
			return "", nil
		}
		current = next
	}
	return "", nil
}

func (c *Client) do(ctx context.Context, client *http.Client, method, targetURL, contentType, accept string, body io.Reader) (*http.Response, error) {
	if err := utils.ValidateURL(targetURL); err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, utils.WrapError(utils.ErrCodeCanceled, "rate limiter wait interrupted", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL, body)
	if err != nil {
		return nil, utils.WrapError(utils.ErrCodeInvalidInput, "building request", err)
	}
	c.setRequestHeaders(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, utils.WrapError(utils.ErrCodeCanceled, "request canceled", ctx.Err())
		}
		return nil, utils.WrapError(utils.ErrCodeNetworkUnreachable, "request failed", err).
			WithContext("url", targetURL).
			WithRetryable(true)
	}
	return resp, nil
}

// setRequestHeaders applies browser-like headers and the next user agent in
// rotation.
func (c *Client) setRequestHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("DNT", "1")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
}

func (c *Client) nextUserAgent() string {
	c.uaMutex.Lock()
	defer c.uaMutex.Unlock()

	if len(c.userAgents) == 0 {
		return "NovaBypasser/1.0"
	}
	ua := c.userAgents[c.currentUA]
	c.currentUA = (c.currentUA + 1) % len(c.userAgents)
	return ua
}

// DefaultUserAgents returns a set of realistic user agent strings.
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/119.0",
	}
}
