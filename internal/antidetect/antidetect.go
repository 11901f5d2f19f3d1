// internal/antidetect/antidetect.go

// Package antidetect provides a challenge-tolerant HTTP fetcher for pages
// behind anti-bot protection: rotating user agents, full browser header
// profiles, a persistent cookie jar, and retries that re-disguise the
// request when the origin answers with a challenge status.
package antidetect

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

// UserAgentRotator rotates user agents.
type UserAgentRotator struct {
	agents []string
	mu     sync.Mutex
	index  int
}

// NewUserAgentRotator creates a rotator; an empty list falls back to the
// built-in set.
func NewUserAgentRotator(agents []string) *UserAgentRotator {
	if len(agents) == 0 {
		agents = defaultUserAgents()
	}
	return &UserAgentRotator{agents: agents}
}

// GetNext returns the next user agent in rotation.
func (r *UserAgentRotator) GetNext() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := r.agents[r.index]
	r.index = (r.index + 1) % len(r.agents)
	return agent
}

// GetRandom returns a random user agent.
func (r *UserAgentRotator) GetRandom() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agents[rand.Intn(len(r.agents))]
}

// headerProfile is one coherent set of browser headers. Mixing headers from
// different browsers is itself a detection signal, so a profile is applied
// whole.
type headerProfile struct {
	accept         string
	acceptLanguage string
	secChUA        string
	secChPlatform  string
}

var headerProfiles = []headerProfile{
	{
		accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		acceptLanguage: "en-US,en;q=0.9",
		secChUA:        `"Google Chrome";v="119", "Chromium";v="119", "Not?A_Brand";v="24"`,
		secChPlatform:  `"Windows"`,
	},
	{
		accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		acceptLanguage: "en-GB,en;q=0.8",
		secChUA:        `"Google Chrome";v="119", "Chromium";v="119", "Not?A_Brand";v="24"`,
		secChPlatform:  `"macOS"`,
	},
	{
		accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		acceptLanguage: "en-US,en;q=0.5",
	},
}

// challengeMarkers identify an interstitial challenge page rather than real
// content.
var challengeMarkers = []string{
	"cf-browser-verification",
	"challenge-platform",
	"just a moment",
	"checking your browser",
	"ddos protection by",
}

// Client fetches pages that sit behind anti-bot challenges.
type Client struct {
	httpClient *http.Client
	rotator    *UserAgentRotator
	log        utils.Logger

	retryAttempts int
	retryDelay    time.Duration
}

// ClientConfig configures the challenge-tolerant client.
type ClientConfig struct {
	Timeout       time.Duration
	UserAgents    []string
	RetryAttempts int
	RetryDelay    time.Duration
}

// NewClient creates a challenge-tolerant fetcher with its own cookie jar.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 2 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, utils.WrapError(utils.ErrCodeInternal, "cookie jar init failed", err)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Jar:     jar,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rotator:       NewUserAgentRotator(config.UserAgents),
		log:           utils.NewComponentLogger("antidetect"),
		retryAttempts: config.RetryAttempts,
		retryDelay:    config.RetryDelay,
	}, nil
}

// Fetch retrieves a page, retrying with a fresh disguise whenever the origin
// answers with a challenge status or an interstitial challenge page.
func (c *Client) Fetch(ctx context.Context, targetURL string) (string, error) {
	if err := utils.ValidateURL(targetURL); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
			c.log.Debugf("challenge retry %d for %s after %s", attempt, targetURL, delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", utils.WrapError(utils.ErrCodeCanceled, "challenge retry canceled", ctx.Err())
			case <-timer.C:
			}
		}

		body, status, err := c.fetchOnce(ctx, targetURL)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case status == http.StatusForbidden || status == http.StatusServiceUnavailable:
			lastErr = utils.NewError(utils.ErrCodeTransportFailure,
				fmt.Sprintf("challenge status HTTP %d", status)).WithRetryable(true)
		case isChallengePage(body):
			// The cookie jar may now hold a clearance cookie, so the next
			// attempt can pass.
			lastErr = utils.NewError(utils.ErrCodeTransportFailure, "received challenge interstitial").
				WithRetryable(true)
		case status < 200 || status >= 300:
			return "", utils.NewError(utils.ErrCodeTransportFailure,
				fmt.Sprintf("HTTP %d fetching %s", status, targetURL))
		default:
			return body, nil
		}
	}

	return "", utils.WrapError(utils.ErrCodeTransportFailure, "challenge not cleared", lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, targetURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", 0, utils.WrapError(utils.ErrCodeInvalidInput, "building request", err)
	}
	c.applyDisguise(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, utils.WrapError(utils.ErrCodeCanceled, "request canceled", ctx.Err())
		}
		return "", 0, utils.WrapError(utils.ErrCodeNetworkUnreachable, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", 0, utils.WrapError(utils.ErrCodeTransportFailure, "reading response body", err)
	}
	return string(body), resp.StatusCode, nil
}

// applyDisguise sets a coherent browser header profile and the next user
// agent in rotation.
func (c *Client) applyDisguise(req *http.Request) {
	profile := headerProfiles[rand.Intn(len(headerProfiles))]

	req.Header.Set("User-Agent", c.rotator.GetNext())
	req.Header.Set("Accept", profile.accept)
	req.Header.Set("Accept-Language", profile.acceptLanguage)
	req.Header.Set("DNT", "1")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	if profile.secChUA != "" {
		req.Header.Set("Sec-Ch-Ua", profile.secChUA)
		req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
		req.Header.Set("Sec-Ch-Ua-Platform", profile.secChPlatform)
		req.Header.Set("Sec-Fetch-Dest", "document")
		req.Header.Set("Sec-Fetch-Mode", "navigate")
		req.Header.Set("Sec-Fetch-Site", "none")
	}
}

func isChallengePage(body string) bool {
	lowered := strings.ToLower(body)
	for _, marker := range challengeMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	}
}
