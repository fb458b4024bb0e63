package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/signals-cli/internal/config"
)

func testFetcher() *Fetcher {
	return New(config.FetchConfig{
		TimeoutSecs:   5,
		MaxRetries:    3,
		RatePerSecond: 100,
		UserAgent:     "test-agent",
	})
}

func TestGetStripsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte(`<html><head><title>Miami Best Roofing</title>
			<script>var x = 1;</script></head>
			<body><h1>Miami Best Roofing</h1><p>Storm damage &amp; repair</p></body></html>`))
	}))
	defer srv.Close()

	page, err := testFetcher().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Miami Best Roofing", page.Title)
	assert.Contains(t, page.Text, "Storm damage & repair")
	assert.NotContains(t, page.Text, "var x")
	assert.Contains(t, page.HTML, "<h1>")
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("<html><body>recovered after two failures</body></html>"))
	}))
	defer srv.Close()

	page, err := testFetcher().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, page.Text, "recovered")
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher().Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetDetectsCaptchaBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>Please complete the reCAPTCHA to continue</body></html>`))
	}))
	defer srv.Close()

	_, err := testFetcher().Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := testFetcher()

	ok, err := f.Head(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Head(context.Background(), srv.URL+"/gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassifyBlock(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		body    string
		want    blockKind
	}{
		{
			name:   "clean page",
			status: 200,
			body:   "<html><body>welcome to our roofing company website with plenty of content</body></html>",
			want:   blockNone,
		},
		{
			name:    "cloudflare 403 with cf-ray",
			status:  403,
			headers: map[string]string{"cf-ray": "abc123"},
			body:    "",
			want:    blockChallenge,
		},
		{
			name:   "challenge interstitial",
			status: 200,
			body:   "<html><title>Just a moment...</title></html>",
			want:   blockChallenge,
		},
		{
			name:   "captcha marker",
			status: 200,
			body:   "<html>solve this hcaptcha</html>",
			want:   blockCaptcha,
		},
		{
			name:   "news paywall",
			status: 200,
			body:   "<html><p>Subscribe to continue reading this story.</p></html>",
			want:   blockPaywall,
		},
		{
			name:   "consent wall",
			status: 200,
			body:   "<html><p>Before you continue, review our choices.</p></html>",
			want:   blockConsent,
		},
		{
			name:   "js shell",
			status: 200,
			body:   "<html><noscript>enable javascript</noscript></html>",
			want:   blockJSShell,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Header: http.Header{}}
			for k, v := range tt.headers {
				resp.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, classifyBlock(resp, []byte(tt.body)))
		})
	}
}

func TestStripHTML(t *testing.T) {
	in := `<html><head><style>body { color: red }</style></head>
<body><nav><a href="/">Home</a></nav>
<h1>Acme &amp; Sons</h1>
<p>Quality    roofing</p>
<footer>© 2026</footer></body></html>`

	out := StripHTML(in)
	assert.Contains(t, out, "Acme & Sons")
	assert.Contains(t, out, "Quality roofing")
	assert.NotContains(t, out, "Home")
	assert.NotContains(t, out, "color: red")
	assert.NotContains(t, out, "©")
}
