// Package fetch provides the rate-limited HTTP fetcher used by signal
// adapters and enrichment layers. It detects anti-bot blocks, retries
// transient failures with jittered backoff, and converts HTML to plaintext.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/signals-cli/internal/config"
)

// Page is the result of a successful fetch.
type Page struct {
	URL        string
	Title      string
	Text       string
	HTML       string
	StatusCode int
}

// Fetcher wraps net/http with a shared rate limiter so all callers stay
// under the configured requests-per-second across the whole process.
type Fetcher struct {
	client     *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
}

// New builds a Fetcher from config.
func New(cfg config.FetchConfig) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
	}
}

// WithClient overrides the underlying HTTP client, for tests.
func (f *Fetcher) WithClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// Get fetches a URL, retrying transient failures, and returns the page with
// HTML stripped to plaintext. Blocked pages return an error.
func (f *Fetcher) Get(ctx context.Context, targetURL string) (*Page, error) {
	var page *Page

	attempts := f.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limit wait")
		}

		page, lastErr = f.fetchOnce(ctx, targetURL)
		if lastErr == nil {
			return page, nil
		}
		if ctx.Err() != nil || !isTransient(lastErr) {
			return nil, lastErr
		}
		if attempt < attempts-1 {
			delay := backoff(attempt)
			zap.L().Debug("fetch retry",
				zap.String("url", targetURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, eris.Wrap(ctx.Err(), "fetch: canceled during backoff")
			case <-timer.C:
			}
		}
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, targetURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: do request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read body")
	}

	if kind := classifyBlock(resp, body); kind != blockNone {
		return nil, eris.Errorf("fetch: blocked (%s)", kind)
	}
	if resp.StatusCode >= 500 {
		return nil, &statusError{code: resp.StatusCode}
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("fetch: status %d", resp.StatusCode)
	}

	html := string(body)
	return &Page{
		URL:        targetURL,
		Title:      ExtractTitle(body),
		Text:       StripHTML(html),
		HTML:       html,
		StatusCode: resp.StatusCode,
	}, nil
}

// blockKind classifies pages that answer with a wall instead of content.
type blockKind string

const (
	blockNone      blockKind = ""
	blockChallenge blockKind = "bot_challenge"
	blockCaptcha   blockKind = "captcha"
	blockPaywall   blockKind = "paywall"
	blockConsent   blockKind = "consent_wall"
	blockJSShell   blockKind = "js_shell"
)

var blockMarkers = []struct {
	kind    blockKind
	markers []string
}{
	{blockChallenge, []string{"checking your browser", "cf-browser-verification", "just a moment..."}},
	{blockCaptcha, []string{"captcha", "verify you are human"}},
	{blockPaywall, []string{"subscribe to continue reading", "subscription required", "this article is for subscribers"}},
	{blockConsent, []string{"before you continue", "accept all cookies to"}},
}

// classifyBlock reports whether a response carries extractable content.
// Feed hosts front 403/503 with Cloudflare; news sites wall articles
// behind subscriptions and consent prompts. Walled pages are useless for
// extraction and are not retried.
func classifyBlock(resp *http.Response, body []byte) blockKind {
	if resp == nil {
		return blockNone
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		h := resp.Header
		if h.Get("cf-ray") != "" || h.Get("cf-cache-status") != "" || h.Get("server") == "cloudflare" {
			return blockChallenge
		}
	}

	lower := strings.ToLower(string(body))
	for _, group := range blockMarkers {
		for _, m := range group.markers {
			if strings.Contains(lower, m) {
				return group.kind
			}
		}
	}

	// a tiny body that only asks for javascript has nothing to extract
	if len(body) < 2048 && strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
		return blockJSShell
	}
	return blockNone
}

// GetJSON fetches a URL and decodes the response body into v. The same
// retry and rate-limit behavior as Get applies.
func (f *Fetcher) GetJSON(ctx context.Context, targetURL string, v any) error {
	page, err := f.Get(ctx, targetURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(page.HTML), v); err != nil {
		return eris.Wrapf(err, "fetch: decode json from %s", targetURL)
	}
	return nil
}

// Head issues a HEAD request and reports whether the host answered with a
// non-error status. Used to verify guessed domains cheaply.
func (f *Fetcher) Head(ctx context.Context, targetURL string) (bool, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return false, eris.Wrap(err, "fetch: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, targetURL, nil)
	if err != nil {
		return false, eris.Wrap(err, "fetch: create head request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return false, eris.Wrap(err, "fetch: head request")
	}
	_ = resp.Body.Close()
	return resp.StatusCode < 400, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "fetch: status " + http.StatusText(e.code)
}

// isTransient reports whether an error is worth retrying: 5xx responses,
// timeouts, connection resets, and refused connections.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout")
}

func backoff(attempt int) time.Duration {
	base := 500 * time.Millisecond
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}
	jitter := time.Duration(rand.Float64() * 0.25 * float64(delay))
	return delay + jitter
}
