// Package fetcher downloads claude.ai share pages, with a headless
// browser fallback for when plain HTTP returns an unhydrated app shell.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// FetchResult contains the fetched HTML and metadata.
type FetchResult struct {
	HTML        string
	FinalURL    string // URL after following redirects
	UsedBrowser bool
	FetchTime   time.Duration
}

// Options configures the fetcher behavior.
type Options struct {
	UserAgent      string
	TimeoutSeconds int
	ChromePath     string // Path to Chrome binary (empty = auto-detect)
	MaxRetries     int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		TimeoutSeconds: 30,
		ChromePath:     "",
		MaxRetries:     3,
	}
}

// Package-level options (set via Configure)
var opts = DefaultOptions()

// Configure sets the package-level options.
func Configure(o Options) {
	if o.UserAgent != "" {
		opts.UserAgent = o.UserAgent
	}
	if o.TimeoutSeconds > 0 {
		opts.TimeoutSeconds = o.TimeoutSeconds
	}
	if o.MaxRetries > 0 {
		opts.MaxRetries = o.MaxRetries
	}
	opts.ChromePath = o.ChromePath // Can be empty
}

// UserAgent returns the currently configured user agent string.
func UserAgent() string {
	return opts.UserAgent
}

// Timeout returns the currently configured timeout duration.
func Timeout() time.Duration {
	return time.Duration(opts.TimeoutSeconds) * time.Second
}

// MaxRetries returns the configured retry budget.
func MaxRetries() int {
	return opts.MaxRetries
}

// userDataDir returns a persistent directory for Chrome user data.
// This allows cookies and other session data to persist between fetches.
func userDataDir() string {
	dir, _ := os.UserCacheDir()
	return filepath.Join(dir, "clshare-chrome-profile")
}

// sharedClient keeps cookies across Simple fetches within one run, so
// a session established on claude.ai carries over to the share pages.
var sharedClient = newClient()

func newClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Jar: jar}
}

// browserHeaders mirrors what a real Chrome sends on navigation.
func browserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// Simple fetches a URL using standard HTTP (fast, low bandwidth).
func Simple(url string) (*FetchResult, error) {
	start := time.Now()

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	browserHeaders(req)

	sharedClient.Timeout = time.Duration(opts.TimeoutSeconds) * time.Second
	resp, err := sharedClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &FetchResult{
		HTML:        string(body),
		FinalURL:    resp.Request.URL.String(),
		UsedBrowser: false,
		FetchTime:   time.Since(start),
	}, nil
}

// PrimeSession visits the claude.ai landing page to collect session
// cookies before hitting share URLs. Errors are not fatal: the share
// fetch may still work without the warm-up.
func PrimeSession() error {
	req, err := http.NewRequest("GET", "https://claude.ai/", nil)
	if err != nil {
		return err
	}
	browserHeaders(req)
	sharedClient.Timeout = time.Duration(opts.TimeoutSeconds) * time.Second
	resp, err := sharedClient.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// stealthScript contains JavaScript to mask automation detection.
// Based on puppeteer-extra-plugin-stealth techniques.
const stealthScript = `
// Mask webdriver property
Object.defineProperty(navigator, 'webdriver', {
    get: () => undefined,
});

// Add Chrome runtime object
window.chrome = {
    runtime: {},
    loadTimes: function() {},
    csi: function() {},
    app: {},
};

// Mask automation-controlled flag
Object.defineProperty(navigator, 'plugins', {
    get: () => [
        { name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer', description: 'Portable Document Format' },
        { name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai', description: '' },
        { name: 'Native Client', filename: 'internal-nacl-plugin', description: '' },
    ],
});

// Set realistic languages
Object.defineProperty(navigator, 'languages', {
    get: () => ['en-US', 'en'],
});

// Mask permissions query
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
    parameters.name === 'notifications' ?
        Promise.resolve({ state: Notification.permission }) :
        originalQuery(parameters)
);

// Add realistic screen properties
Object.defineProperty(screen, 'availWidth', { get: () => window.innerWidth });
Object.defineProperty(screen, 'availHeight', { get: () => window.innerHeight });

// Mask headless indicators in WebGL
const getParameter = WebGLRenderingContext.prototype.getParameter;
WebGLRenderingContext.prototype.getParameter = function(parameter) {
    if (parameter === 37445) {
        return 'Intel Inc.';
    }
    if (parameter === 37446) {
        return 'Intel Iris OpenGL Engine';
    }
    return getParameter.apply(this, arguments);
};

// Prevent detection via toString
const originalFunction = Function.prototype.toString;
Function.prototype.toString = function() {
    if (this === window.navigator.permissions.query) {
        return 'function query() { [native code] }';
    }
    return originalFunction.apply(this, arguments);
};
`

// hydrationCheck matches when the share page's conversation has
// actually rendered client-side.
const hydrationCheck = `document.querySelector('[data-testid="user-message"], .font-claude-response, [data-is-streaming]') !== null`

// WithBrowser fetches a URL using headless Chrome to execute
// JavaScript. Share pages are client-rendered, so after navigation it
// polls for conversation markers before grabbing the DOM.
func WithBrowser(targetURL string) (*FetchResult, error) {
	start := time.Now()

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-component-update", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-service-autorun", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
		// Use persistent user data directory for cookies
		chromedp.UserDataDir(userDataDir()),
		chromedp.Flag("headless", "new"),
	}

	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	defer allocCancel()

	// Browser fetches get extra time over the plain HTTP budget.
	timeout := time.Duration(opts.TimeoutSeconds) * time.Second
	if timeout < 30*time.Second {
		timeout = 45 * time.Second
	} else {
		timeout = timeout + 15*time.Second
	}
	ctx, cancel := context.WithTimeout(allocCtx, timeout)
	defer cancel()

	ctx, cancel = chromedp.NewContext(ctx)
	defer cancel()

	var html string
	var finalURL string
	err := chromedp.Run(ctx,
		// Inject stealth script before page loads
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		network.SetExtraHTTPHeaders(network.Headers(map[string]interface{}{
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.9",
			"Sec-Ch-Ua":                 `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
			"Sec-Ch-Ua-Mobile":          "?0",
			"Sec-Ch-Ua-Platform":        `"macOS"`,
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Upgrade-Insecure-Requests": "1",
		})),
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Poll for the client-side render to finish.
		chromedp.ActionFunc(func(ctx context.Context) error {
			deadline := time.Now().Add(15 * time.Second)
			for time.Now().Before(deadline) {
				var hydrated bool
				if err := chromedp.Evaluate(hydrationCheck, &hydrated).Do(ctx); err == nil && hydrated {
					return nil
				}
				if err := chromedp.Sleep(500 * time.Millisecond).Do(ctx); err != nil {
					return err
				}
			}
			// Never hydrated: grab what's there and let the extractor
			// report an empty result.
			return nil
		}),
		// Check if we hit a challenge page and wait longer if needed
		chromedp.ActionFunc(func(ctx context.Context) error {
			var title string
			if err := chromedp.Title(&title).Do(ctx); err != nil {
				return nil
			}
			if title == "Just a moment..." {
				return chromedp.Sleep(5 * time.Second).Do(ctx)
			}
			return nil
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		return nil, fmt.Errorf("browser fetch: %w", err)
	}

	return &FetchResult{
		HTML:        html,
		FinalURL:    finalURL,
		UsedBrowser: true,
		FetchTime:   time.Since(start),
	}, nil
}

// WithRetry fetches with the browser, retrying with exponential
// backoff when the response comes back blocked or the fetch fails.
func WithRetry(url string, maxRetries int) (*FetchResult, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(1<<uint(i-1)) * 2 * time.Second)
		}
		result, err := WithBrowser(url)
		if err != nil {
			lastErr = err
			continue
		}
		if blocked, reason := IsBlockedResponse(result.HTML); blocked {
			lastErr = fmt.Errorf("blocked: %s", reason)
			continue
		}
		return result, nil
	}
	return nil, fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// IsBlockedResponse checks if the HTML indicates a blocked/challenged
// page rather than a share page.
func IsBlockedResponse(html string) (bool, string) {
	if strings.Contains(html, "Just a moment...") {
		return true, "Cloudflare challenge"
	}
	if strings.Contains(html, "Checking your browser") {
		return true, "Cloudflare challenge"
	}
	if strings.Contains(html, "cf-browser-verification") {
		return true, "Cloudflare challenge"
	}
	if strings.Contains(html, "recaptcha") && len(html) < 10000 {
		return true, "reCAPTCHA challenge"
	}
	if strings.Contains(html, "captcha-delivery.com") || strings.Contains(html, "DataDome") {
		return true, "DataDome bot protection"
	}
	if strings.Contains(html, "perimeterx") || strings.Contains(html, "px-captcha") {
		return true, "PerimeterX bot protection"
	}
	if strings.Contains(html, "unusual traffic") {
		return true, "rate limited"
	}
	return false, ""
}

// looksHydrated reports whether plain-HTTP HTML already contains the
// rendered conversation. Share pages served to non-JS clients are just
// the app shell, which is useless to the extractor.
func looksHydrated(html string) bool {
	return strings.Contains(html, `data-testid="user-message"`) ||
		strings.Contains(html, "font-claude-response") ||
		strings.Contains(html, "data-is-streaming")
}

// Smart fetches a URL using the best available method: plain HTTP
// first, browser when the response is blocked or an unhydrated shell.
func Smart(targetURL string) (*FetchResult, error) {
	result, err := Simple(targetURL)
	if err == nil {
		blocked, _ := IsBlockedResponse(result.HTML)
		if !blocked && looksHydrated(result.HTML) {
			return result, nil
		}
	}

	return WithRetry(targetURL, opts.MaxRetries)
}

// RateLimiter spaces out successive fetches with a uniformly jittered
// delay, so batch runs don't hammer the site at a fixed cadence.
type RateLimiter struct {
	min  time.Duration
	max  time.Duration
	last time.Time
}

// NewRateLimiter builds a limiter sleeping between min and max per
// request. A max at or below min degenerates to a fixed delay.
func NewRateLimiter(min, max time.Duration) *RateLimiter {
	if max < min {
		max = min
	}
	return &RateLimiter{min: min, max: max}
}

// Wait blocks until the jittered delay since the previous Wait has
// elapsed. The first call returns immediately.
func (r *RateLimiter) Wait() {
	if !r.last.IsZero() {
		delay := r.min
		if r.max > r.min {
			delay += time.Duration(rand.Int63n(int64(r.max - r.min)))
		}
		if elapsed := time.Since(r.last); elapsed < delay {
			time.Sleep(delay - elapsed)
		}
	}
	r.last = time.Now()
}
