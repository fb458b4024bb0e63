package enrich

import (
	"context"
	"net"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/signals-cli/internal/fetch"
	"github.com/sells-group/signals-cli/internal/model"
	"github.com/sells-group/signals-cli/internal/store"
	"github.com/sells-group/signals-cli/pkg/websearch"
)

// DomainResult is a discovered domain with the sub-layer confidence.
type DomainResult struct {
	Domain     string  `json:"domain"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// Sub-layer confidences. A domain taken from a lead email is near-certain;
// one matched out of search results is barely above the floor.
const (
	confLeadDomain   = 0.80
	confLeadEmail    = 0.90
	confPriorCompany = 0.85
	confSourceURL    = 0.75
	confSingleLink   = 0.60
	confGuessHead    = 0.85
	confGuessDNS     = 0.60
)

var blockedDomains = map[string]bool{
	"facebook.com": true, "fb.com": true, "instagram.com": true,
	"twitter.com": true, "x.com": true, "linkedin.com": true,
	"youtube.com": true, "tiktok.com": true, "pinterest.com": true,
	"yelp.com": true, "angi.com": true, "angieslist.com": true,
	"homeadvisor.com": true, "thumbtack.com": true, "houzz.com": true,
	"bbb.org": true, "google.com": true, "bing.com": true,
	"yahoo.com": true, "msn.com": true, "aol.com": true,
	"reddit.com": true, "quora.com": true, "medium.com": true,
	"prnewswire.com": true, "businesswire.com": true, "globenewswire.com": true,
	"reuters.com": true, "bloomberg.com": true, "wsj.com": true,
	"nytimes.com": true, "cnn.com": true, "foxnews.com": true,
	"miamiherald.com": true, "sun-sentinel.com": true, "palmbeachpost.com": true,
	"bizjournals.com": true, "wikipedia.org": true, "wikimedia.org": true,
	"amazon.com": true, "ebay.com": true, "craigslist.org": true,
	"nextdoor.com": true, "glassdoor.com": true, "indeed.com": true,
	"ziprecruiter.com": true, "patch.com": true,
	"wix.com": true, "squarespace.com": true, "godaddy.com": true,
	"wordpress.com": true,
}

var newsDomainRes = []*regexp.Regexp{
	regexp.MustCompile(`news.*\.com$`),
	regexp.MustCompile(`herald.*\.com$`),
	regexp.MustCompile(`times.*\.com$`),
	regexp.MustCompile(`post.*\.com$`),
	regexp.MustCompile(`tribune.*\.com$`),
	regexp.MustCompile(`journal.*\.com$`),
	regexp.MustCompile(`gazette.*\.com$`),
	regexp.MustCompile(`daily.*\.com$`),
	regexp.MustCompile(`local\d+\.com$`),
}

var validTLDs = []string{
	".com", ".net", ".org", ".biz", ".co", ".io", ".us", ".info",
	".pro", ".me", ".co.uk", ".ca",
}

// DomainDiscoverer resolves a lead's owned web domain, trying the cheapest
// evidence first. First success wins.
type DomainDiscoverer struct {
	fetcher *fetch.Fetcher
	search  websearch.Client
	store   store.Store
	lookup  func(host string) ([]string, error)
}

func NewDomainDiscoverer(f *fetch.Fetcher, search websearch.Client, st store.Store) *DomainDiscoverer {
	return &DomainDiscoverer{
		fetcher: f,
		search:  search,
		store:   st,
		lookup:  net.LookupHost,
	}
}

// Discover runs the sub-layers in order for a lead.
func (d *DomainDiscoverer) Discover(ctx context.Context, lead *model.LeadEvent, sig *model.Signal, articleHTML string) (*DomainResult, error) {
	if r := d.fromLeadFields(ctx, lead); r != nil {
		return r, nil
	}
	if sig != nil {
		if r := d.fromSourceURL(sig.URL, lead.LeadName); r != nil {
			return r, nil
		}
		if r := d.fromArticleLinks(articleHTML, sig.URL); r != nil {
			return r, nil
		}
	}
	if lead.LeadName != "" {
		return d.fromSearch(ctx, lead.LeadName)
	}
	return nil, nil
}

func (d *DomainDiscoverer) fromLeadFields(ctx context.Context, lead *model.LeadEvent) *DomainResult {
	if lead.LeadEmail != "" {
		if _, domain, ok := strings.Cut(lead.LeadEmail, "@"); ok {
			if usable(domain) {
				return &DomainResult{Domain: model.NormalizeDomain(domain), Confidence: confLeadEmail, Method: "lead_email"}
			}
		}
	}
	if lead.LeadDomain != "" && usable(lead.LeadDomain) {
		return &DomainResult{Domain: model.NormalizeDomain(lead.LeadDomain), Confidence: confLeadDomain, Method: "lead_domain"}
	}
	if lead.LeadName != "" && d.store != nil {
		// a previously resolved company with a matching name gives us the
		// domain for free
		companies, err := d.knownCompany(ctx, lead.LeadName)
		if err == nil && companies != "" {
			return &DomainResult{Domain: companies, Confidence: confPriorCompany, Method: "prior_company"}
		}
	}
	return nil
}

func (d *DomainDiscoverer) knownCompany(ctx context.Context, name string) (string, error) {
	guesses := guessDomains(name)
	for _, g := range guesses {
		c, err := d.store.GetCompanyByDomain(ctx, g)
		if err != nil {
			return "", err
		}
		if c != nil && c.NormalizedName == model.NormalizeName(name) {
			return c.Domain, nil
		}
	}
	return "", nil
}

// fromSourceURL accepts the signal URL only when it looks like the
// business's own site rather than coverage about it. With a resolved name
// the domain must also overlap the name's tokens, so an unlisted local
// blog never becomes the lead's domain.
func (d *DomainDiscoverer) fromSourceURL(sourceURL, name string) *DomainResult {
	domain := model.NormalizeDomain(sourceURL)
	if domain == "" || !usable(domain) {
		return nil
	}
	if name != "" {
		match, conf := domainMatchesName(domain, name)
		if !match {
			return nil
		}
		return &DomainResult{Domain: domain, Confidence: conf, Method: "source_url"}
	}
	return &DomainResult{Domain: domain, Confidence: confSourceURL, Method: "source_url"}
}

var hrefRe = regexp.MustCompile(`(?i)href=["'](https?://[^"']+)["']`)

// fromArticleLinks scans article HTML for outbound links. When exactly one
// non-blocked external domain survives, the article is probably about that
// business.
func (d *DomainDiscoverer) fromArticleLinks(html, baseURL string) *DomainResult {
	if html == "" {
		return nil
	}
	baseDomain := model.NormalizeDomain(baseURL)

	survivors := make(map[string]bool)
	for _, m := range hrefRe.FindAllStringSubmatch(html, -1) {
		domain := model.NormalizeDomain(m[1])
		if domain == "" || domain == baseDomain || !usable(domain) {
			continue
		}
		survivors[domain] = true
	}
	if len(survivors) != 1 {
		return nil
	}
	for domain := range survivors {
		return &DomainResult{Domain: domain, Confidence: confSingleLink, Method: "article_link"}
	}
	return nil
}

// fromSearch guesses candidate domains from the company name and verifies
// them, falling back to a web search with token-overlap matching.
func (d *DomainDiscoverer) fromSearch(ctx context.Context, name string) (*DomainResult, error) {
	log := zap.L().With(zap.String("phase", "domain_discovery"), zap.String("name", name))

	for _, guess := range guessDomains(name) {
		ok, err := d.fetcher.Head(ctx, "https://"+guess)
		if err == nil && ok {
			return &DomainResult{Domain: guess, Confidence: confGuessHead, Method: "guess_verified"}, nil
		}
		if addrs, err := d.lookup(guess); err == nil && len(addrs) > 0 {
			return &DomainResult{Domain: guess, Confidence: confGuessDNS, Method: "guess_dns"}, nil
		}
	}

	if d.search == nil {
		return nil, nil
	}
	results, err := d.search.Search(ctx, name+" official website")
	if err != nil {
		log.Debug("search fallback failed", zap.Error(err))
		return nil, err
	}
	for _, r := range results {
		domain := model.NormalizeDomain(r.URL)
		if domain == "" || !usable(domain) {
			continue
		}
		if match, conf := domainMatchesName(domain, name); match {
			return &DomainResult{Domain: domain, Confidence: conf, Method: "web_search"}, nil
		}
	}
	return nil, nil
}

func usable(domain string) bool {
	domain = model.NormalizeDomain(domain)
	if domain == "" {
		return false
	}
	if blockedDomains[domain] {
		return false
	}
	// subdomains of blocked hosts are blocked too
	for blocked := range blockedDomains {
		if strings.HasSuffix(domain, "."+blocked) {
			return false
		}
	}
	for _, re := range newsDomainRes {
		if re.MatchString(domain) {
			return false
		}
	}
	return hasValidTLD(domain)
}

func hasValidTLD(domain string) bool {
	for _, tld := range validTLDs {
		if strings.HasSuffix(domain, tld) {
			return true
		}
	}
	return false
}

var (
	legalTokenRe = regexp.MustCompile(`(?i)\s+(inc|llc|corp|co|ltd|llp|pllc|pc|pa|incorporated|corporation|company)\.?$`)
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9\s]`)
)

var stopTokens = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true,
	"at": true, "on": true, "for": true, "by": true, "to": true,
	"and": true, "or": true,
}

// tokenizeName strips legal suffixes and punctuation and returns the
// meaningful lowercase tokens in name order.
func tokenizeName(name string) []string {
	lower := strings.ToLower(strings.TrimSpace(name))
	for {
		stripped := legalTokenRe.ReplaceAllString(lower, "")
		if stripped == lower {
			break
		}
		lower = stripped
	}
	lower = nonAlnumRe.ReplaceAllString(lower, " ")

	var tokens []string
	for _, t := range strings.Fields(lower) {
		if len(t) >= 2 && !stopTokens[t] {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// domainMatchesName computes token overlap between a company name and a
// domain. A match needs at least half the tokens present.
func domainMatchesName(domain, name string) (bool, float64) {
	tokens := tokenizeName(name)
	if len(tokens) == 0 {
		return false, 0
	}

	host := strings.TrimPrefix(strings.ToLower(domain), "www.")
	label := strings.Split(host, ".")[0]

	matches := 0
	for _, t := range tokens {
		if strings.Contains(label, t) {
			matches++
		}
	}
	if matches == 0 {
		return false, 0
	}

	conf := float64(matches) / float64(len(tokens))
	slug := strings.Join(tokens, "")
	if label == slug || strings.Contains(label, slug) {
		conf = 1.0
	}
	return conf >= 0.50, conf
}

// guessDomains builds candidate domains from a company name, e.g.
// "Cool Running Air" -> coolrunningair.com, coolrunningair.net.
func guessDomains(name string) []string {
	tokens := tokenizeName(name)
	if len(tokens) == 0 {
		return nil
	}
	slug := strings.Join(tokens, "")
	if len(slug) < 3 {
		return nil
	}
	return []string{slug + ".com", slug + ".net"}
}
