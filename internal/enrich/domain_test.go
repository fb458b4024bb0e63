package enrich

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/signals-cli/internal/model"
	"github.com/sells-group/signals-cli/pkg/websearch"
)

func TestUsableDomains(t *testing.T) {
	tests := []struct {
		domain string
		want   bool
	}{
		{"acmeroofing.com", true},
		{"gulfcoastexteriors.net", true},
		{"facebook.com", false},
		{"m.facebook.com", false},
		{"miamiheraldnews.com", false},
		{"dailyroofer.com", false},
		{"acmeroofing.xyz", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			assert.Equal(t, tt.want, usable(tt.domain))
		})
	}
}

func TestTokenizeNameStripsLegalSuffixes(t *testing.T) {
	assert.Equal(t, []string{"cool", "running", "air"}, tokenizeName("Cool Running Air, LLC"))
	assert.Equal(t, []string{"apex", "roofing"}, tokenizeName("The Apex Roofing Co."))
	assert.Empty(t, tokenizeName("A of"))
}

func TestGuessDomains(t *testing.T) {
	assert.Equal(t, []string{"coolrunningair.com", "coolrunningair.net"}, guessDomains("Cool Running Air"))
	assert.Nil(t, guessDomains(""))
}

func TestDomainMatchesName(t *testing.T) {
	match, conf := domainMatchesName("coolrunningair.com", "Cool Running Air, Inc.")
	assert.True(t, match)
	assert.Equal(t, 1.0, conf)

	match, conf = domainMatchesName("www.miamibest.com", "Miami Best Roofing")
	assert.True(t, match)
	assert.InDelta(t, 0.667, conf, 0.01)

	match, _ = domainMatchesName("unrelated.com", "Acme Roofing")
	assert.False(t, match)
}

func TestDiscoverPrefersLeadEmailDomain(t *testing.T) {
	d := &DomainDiscoverer{}
	lead := &model.LeadEvent{LeadEmail: "office@acmeroofing.com", LeadDomain: "other-site.com"}

	r, err := d.Discover(context.Background(), lead, nil, "")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "acmeroofing.com", r.Domain)
	assert.Equal(t, "lead_email", r.Method)
	assert.Equal(t, 0.90, r.Confidence)
}

func TestDiscoverUsesLeadDomain(t *testing.T) {
	d := &DomainDiscoverer{}
	lead := &model.LeadEvent{LeadDomain: "https://www.acmeroofing.com/about"}

	r, err := d.Discover(context.Background(), lead, nil, "")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "acmeroofing.com", r.Domain)
	assert.Equal(t, "lead_domain", r.Method)
}

func TestDiscoverAcceptsOwnedSourceURL(t *testing.T) {
	d := &DomainDiscoverer{}
	sig := &model.Signal{URL: "https://www.acmeroofing.com/blog/storm-prep"}

	r, err := d.Discover(context.Background(), &model.LeadEvent{}, sig, "")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "acmeroofing.com", r.Domain)
	assert.Equal(t, "source_url", r.Method)
}

func TestDiscoverSkipsNewsSourceURL(t *testing.T) {
	d := &DomainDiscoverer{}
	sig := &model.Signal{URL: "https://www.miamiherald.com/news/business/article123.html"}

	r, err := d.Discover(context.Background(), &model.LeadEvent{}, sig, "")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestDiscoverSourceURLMustMatchResolvedName(t *testing.T) {
	d := &DomainDiscoverer{
		fetcher: newStubFetcher(nil),
		lookup:  func(string) ([]string, error) { return nil, eris.New("nxdomain") },
	}

	// an unblocked trade publication is not the business's own site
	sig := &model.Signal{URL: "https://www.gulfcoastbuilderwire.com/stories/4412"}
	lead := &model.LeadEvent{LeadName: "Acme Roofing"}
	r, err := d.Discover(context.Background(), lead, sig, "")
	require.NoError(t, err)
	assert.Nil(t, r)

	// the owned site overlaps the name tokens and keeps the computed
	// confidence
	sig = &model.Signal{URL: "https://www.acmeroofing.com/blog/storm-prep"}
	r, err = d.Discover(context.Background(), lead, sig, "")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "source_url", r.Method)
	assert.Equal(t, 1.0, r.Confidence)
}

func TestDiscoverArticleSingleSurvivingLink(t *testing.T) {
	d := &DomainDiscoverer{}
	sig := &model.Signal{URL: "https://www.miamiherald.com/news/article123.html"}
	html := `<p>Coverage of the storm.</p>
		<a href="https://www.facebook.com/acmeroofing">Facebook</a>
		<a href="https://www.miamiherald.com/other">More news</a>
		<a href="https://acmeroofing.com/services">Acme Roofing</a>`

	r, err := d.Discover(context.Background(), &model.LeadEvent{}, sig, html)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "acmeroofing.com", r.Domain)
	assert.Equal(t, "article_link", r.Method)
}

func TestDiscoverArticleAmbiguousLinks(t *testing.T) {
	d := &DomainDiscoverer{}
	sig := &model.Signal{URL: "https://www.miamiherald.com/news/article123.html"}
	html := `<a href="https://acmeroofing.com/">one</a>
		<a href="https://gulfcoastexteriors.com/">two</a>`

	r, err := d.Discover(context.Background(), &model.LeadEvent{}, sig, html)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestFromSearchGuessVerifiedByHead(t *testing.T) {
	f := newStubFetcher(map[string]string{
		"sunshineroofing.com/": "<html>ok</html>",
	})
	d := &DomainDiscoverer{
		fetcher: f,
		lookup:  func(string) ([]string, error) { return nil, eris.New("nxdomain") },
	}

	r, err := d.fromSearch(context.Background(), "Sunshine Roofing")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "sunshineroofing.com", r.Domain)
	assert.Equal(t, "guess_verified", r.Method)
	assert.Equal(t, 0.85, r.Confidence)
}

func TestFromSearchGuessDNSFallback(t *testing.T) {
	f := newStubFetcher(nil)
	d := &DomainDiscoverer{
		fetcher: f,
		lookup: func(host string) ([]string, error) {
			if host == "sunshineroofing.net" {
				return []string{"203.0.113.9"}, nil
			}
			return nil, eris.New("nxdomain")
		},
	}

	r, err := d.fromSearch(context.Background(), "Sunshine Roofing")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "sunshineroofing.net", r.Domain)
	assert.Equal(t, "guess_dns", r.Method)
}

type stubSearch struct {
	results []websearch.Result
	err     error
}

func (s *stubSearch) Search(context.Context, string) ([]websearch.Result, error) {
	return s.results, s.err
}

func TestFromSearchWebFallbackMatchesTokens(t *testing.T) {
	d := &DomainDiscoverer{
		fetcher: newStubFetcher(nil),
		lookup:  func(string) ([]string, error) { return nil, eris.New("nxdomain") },
		search: &stubSearch{results: []websearch.Result{
			{Title: "Acme Roofing on Facebook", URL: "https://www.facebook.com/acme"},
			{Title: "Acme Roofing | Miami", URL: "https://www.acmeroofing.com/"},
		}},
	}

	r, err := d.fromSearch(context.Background(), "Acme Roofing")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "acmeroofing.com", r.Domain)
	assert.Equal(t, "web_search", r.Method)
	assert.Equal(t, 1.0, r.Confidence)
}
