// internal/browser/browser.go

// Package browser drives a real headless browser for pages whose extraction
// needs script execution. It is the most expensive backend and sits last in
// the resolution pipeline.
package browser

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

// Config configures the headless browser backend.
type Config struct {
	Headless      bool
	Timeout       time.Duration
	UserAgent     string
	DisableImages bool
}

// DefaultConfig returns the default browser configuration.
func DefaultConfig() Config {
	return Config{
		Headless:      true,
		Timeout:       45 * time.Second,
		DisableImages: true,
	}
}

// Manager owns a shared Chrome allocator and resolves URLs by rendering the
// page and reading the revealed link out of the live DOM.
type Manager struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	config      Config
	log         utils.Logger
}

// NewManager starts the Chrome allocator. The browser process itself is
// launched lazily on first use.
func NewManager(config Config) (*Manager, error) {
	if config.Timeout == 0 {
		config.Timeout = 45 * time.Second
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	}
	if config.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}
	if config.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Manager{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		config:      config,
		log:         utils.NewComponentLogger("browser"),
	}, nil
}

// revealScript pulls the first download-looking href out of the rendered
// DOM, after any onload scripts have run.
const revealScript = `(() => {
	const selectors = [
		'a[class*="download"]', 'a[id*="download"]',
		'a[class*="get-link"]', 'a[id*="get-link"]',
		'a[href*="download"]', 'a[href*="/get"]', 'a[href*="file"]',
	];
	for (const sel of selectors) {
		const el = document.querySelector(sel);
		if (el && el.href && el.href.startsWith('http')) {
			return el.href;
		}
	}
	return '';
})()`

// ResolveURL renders the page in a fresh tab, gives its scripts a moment to
// reveal the link, and returns the best candidate: a revealed download
// anchor, or the final location when the page script-navigated away.
func (m *Manager) ResolveURL(ctx context.Context, targetURL string) (string, error) {
	if err := utils.ValidateURL(targetURL); err != nil {
		return "", err
	}

	tabCtx, cancel := chromedp.NewContext(m.allocCtx)
	defer cancel()

	runCtx, cancelTimeout := context.WithTimeout(tabCtx, m.config.Timeout)
	defer cancelTimeout()

	// The tab context descends from the allocator, not from the caller, so
	// caller cancellation has to be forwarded.
	go func() {
		select {
		case <-ctx.Done():
			cancelTimeout()
		case <-runCtx.Done():
		}
	}()

	var revealed string
	var location string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(revealScript, &revealed),
		chromedp.Location(&location),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", utils.WrapError(utils.ErrCodeCanceled, "browser resolution canceled", ctx.Err())
		}
		return "", utils.WrapError(utils.ErrCodeTransportFailure, "browser navigation failed", err)
	}

	if revealed != "" {
		m.log.Debugf("browser revealed %s on %s", revealed, targetURL)
		return revealed, nil
	}

	// A script-driven navigation off the original host is itself the
	// resolution.
	if location != "" && !strings.HasPrefix(location, "about:") &&
		utils.ExtractDomain(location) != utils.ExtractDomain(targetURL) &&
		utils.IsAbsoluteHTTP(location) {
		return location, nil
	}
	return "", nil
}

// Close tears down the Chrome allocator and any browsers it spawned.
func (m *Manager) Close() error {
	m.allocCancel()
	return nil
}
