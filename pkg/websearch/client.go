// Package websearch provides a client for the DuckDuckGo HTML search
// endpoint, used as the zero-cost fallback when domain discovery runs out
// of direct evidence.
package websearch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the web search operations.
type Client interface {
	// Search runs a query and returns parsed organic results.
	Search(ctx context.Context, query string) ([]Result, error)
}

// Result is a single organic search result.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Option configures the search client.
type Option func(*httpClient)

// WithBaseURL sets a custom endpoint (for testing).
func WithBaseURL(baseURL string) Option {
	return func(c *httpClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.httpClient = hc
	}
}

// WithUserAgent overrides the request User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithBreaker tunes the failure threshold and cooldown of the internal
// circuit breaker.
func WithBreaker(threshold int, reset time.Duration) Option {
	return func(c *httpClient) {
		c.breaker = newBreaker(threshold, reset)
	}
}

type httpClient struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	breaker    *breaker
}

// New creates a search client with sensible defaults.
func New(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://html.duckduckgo.com/html/",
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		userAgent: "Mozilla/5.0 (compatible; SignalsBot/1.0)",
		breaker:   newBreaker(3, 5*time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	resultRe  = regexp.MustCompile(`(?is)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	snippetRe = regexp.MustCompile(`(?is)class="result__snippet"[^>]*>(.*?)</a>`)
	stripRe   = regexp.MustCompile(`<[^>]+>`)
)

func (c *httpClient) Search(ctx context.Context, query string) ([]Result, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	results, err := c.search(ctx, query)
	c.breaker.Record(err)
	return results, err
}

func (c *httpClient) search(ctx context.Context, query string) ([]Result, error) {
	endpoint := c.baseURL + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "websearch: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "websearch: do request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("websearch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, eris.Wrap(err, "websearch: read body")
	}

	return parseResults(string(body)), nil
}

// parseResults extracts organic results from the DuckDuckGo HTML page.
// Result links are redirect URLs carrying the target in the uddg parameter.
func parseResults(html string) []Result {
	var results []Result

	links := resultRe.FindAllStringSubmatch(html, -1)
	snippets := snippetRe.FindAllStringSubmatch(html, -1)

	for i, m := range links {
		target := decodeRedirect(m[1])
		if target == "" {
			continue
		}
		r := Result{
			Title: cleanText(m[2]),
			URL:   target,
		}
		if i < len(snippets) {
			r.Snippet = cleanText(snippets[i][1])
		}
		results = append(results, r)
	}
	return results
}

func decodeRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if uddg := u.Query().Get("uddg"); uddg != "" {
		return uddg
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return href
	}
	return ""
}

func cleanText(s string) string {
	s = stripRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	return strings.TrimSpace(s)
}
