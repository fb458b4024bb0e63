package enrich

import (
	"context"
	"net"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/signals-cli/internal/fetch"
	"github.com/sells-group/signals-cli/internal/model"
)

// EmailCandidate is a discovered address with its weighted confidence.
type EmailCandidate struct {
	Email      string  `json:"email"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Person     bool    `json:"person"`
}

var contactPagePaths = []string{
	"/contact", "/contact-us", "/contactus",
	"/about", "/about-us", "/aboutus",
	"/team", "/our-team", "/staff", "/leadership",
	"/get-in-touch", "/connect", "/company", "/support",
}

var genericEmailPrefixes = []string{
	"info", "contact", "hello", "support", "help", "sales",
	"inquiries", "enquiries", "admin", "office", "team", "general",
	"mail", "email", "service", "feedback",
}

var invalidEmailRes = []*regexp.Regexp{
	regexp.MustCompile(`@example\.com$`),
	regexp.MustCompile(`@test\.com$`),
	regexp.MustCompile(`@localhost$`),
	regexp.MustCompile(`\.(png|jpg|jpeg|gif|webp)$`),
	regexp.MustCompile(`\.wixpress\.com$`),
	regexp.MustCompile(`sentry\.io$`),
	regexp.MustCompile(`^(noreply|no-reply|donotreply|do-not-reply|unsubscribe|mailer-daemon|postmaster)@`),
}

var (
	emailRe       = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	mailtoRe      = regexp.MustCompile(`(?i)mailto:([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})`)
	schemaEmailRe = regexp.MustCompile(`(?i)"email"\s*:\s*"(?:mailto:)?([^"]+@[^"]+)"`)
)

// Per-source weights added on top of the pattern score. A mailto link is
// deliberate; a guessed generic address is a shot in the dark.
var emailSourceWeight = map[string]float64{
	"mailto":       0.15,
	"contact_page": 0.10,
	"schema_org":   0.12,
	"homepage":     0.0,
	"guessed":      -0.15,
}

// EmailDiscoverer scans a resolved domain's site for contact addresses.
type EmailDiscoverer struct {
	fetcher  *fetch.Fetcher
	verifyMX bool
	mxLookup func(domain string) ([]*net.MX, error)
}

func NewEmailDiscoverer(f *fetch.Fetcher, verifyMX bool) *EmailDiscoverer {
	return &EmailDiscoverer{
		fetcher:  f,
		verifyMX: verifyMX,
		mxLookup: net.LookupMX,
	}
}

// Discover crawls the homepage and contact-like pages of a domain and
// returns candidates sorted by confidence. Page fetch failures are logged
// and skipped; only a totally unreachable site is an error.
func (e *EmailDiscoverer) Discover(ctx context.Context, domain string) ([]EmailCandidate, error) {
	log := zap.L().With(zap.String("phase", "email_discovery"), zap.String("domain", domain))
	base := "https://" + model.NormalizeDomain(domain)

	found := make(map[string]EmailCandidate)
	pagesFetched := 0

	merge := func(raw, source string, contactContext bool) {
		email := strings.ToLower(strings.TrimSpace(raw))
		if !validEmail(email) {
			return
		}
		c := EmailCandidate{
			Email:      email,
			Source:     source,
			Person:     personLike(email),
			Confidence: e.confidence(email, domain, source, contactContext),
		}
		if prev, ok := found[email]; !ok || c.Confidence > prev.Confidence {
			found[email] = c
		}
	}

	if page, err := e.fetcher.Get(ctx, base); err != nil {
		log.Debug("homepage fetch failed", zap.Error(err))
	} else {
		pagesFetched++
		scanPage(page.HTML, "homepage", false, merge)
	}

	for _, path := range contactPagePaths {
		page, err := e.fetcher.Get(ctx, base+path)
		if err != nil {
			continue
		}
		pagesFetched++
		scanPage(page.HTML, "contact_page", true, merge)
		// two reachable contact-like pages are plenty
		if pagesFetched >= 3 {
			break
		}
	}

	if len(found) == 0 && e.verifyMX {
		// no visible address anywhere; guess the common generics and keep
		// them only when the domain actually receives mail
		if e.hasMX(model.NormalizeDomain(domain)) {
			merge("info@"+model.NormalizeDomain(domain), "guessed", false)
			merge("contact@"+model.NormalizeDomain(domain), "guessed", false)
		}
	}

	candidates := make([]EmailCandidate, 0, len(found))
	for _, c := range found {
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates, nil
}

func scanPage(html, source string, contactContext bool, merge func(raw, source string, contact bool)) {
	for _, m := range mailtoRe.FindAllStringSubmatch(html, -1) {
		merge(m[1], "mailto", contactContext)
	}
	for _, m := range schemaEmailRe.FindAllStringSubmatch(html, -1) {
		merge(m[1], "schema_org", contactContext)
	}
	for _, m := range emailRe.FindAllString(html, -1) {
		merge(m, source, contactContext)
	}
}

// confidence scores an address: base 0.50, domain match +0.30 or mismatch
// -0.20, person-like +0.40, generic prefix +0.10, contact-page context
// +0.10, optional MX check +-0.10, plus the per-source weight. Clamped to
// [0, 1].
func (e *EmailDiscoverer) confidence(email, targetDomain, source string, contactContext bool) float64 {
	score := 0.50

	if emailMatchesDomain(email, targetDomain) {
		score += 0.30
	} else {
		score -= 0.20
	}

	if personLike(email) {
		score += 0.40
	} else if genericPrefix(email) {
		score += 0.10
	}

	if contactContext {
		score += 0.10
	}

	if e.verifyMX {
		_, emailDomain, _ := strings.Cut(email, "@")
		if e.hasMX(emailDomain) {
			score += 0.10
		} else {
			score -= 0.10
		}
	}

	score += emailSourceWeight[source]

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func (e *EmailDiscoverer) hasMX(domain string) bool {
	if e.mxLookup == nil {
		return false
	}
	records, err := e.mxLookup(domain)
	return err == nil && len(records) > 0
}

func validEmail(email string) bool {
	if len(email) < 6 || len(email) > 254 {
		return false
	}
	if strings.Count(email, "@") != 1 {
		return false
	}
	local, domain, _ := strings.Cut(email, "@")
	if local == "" || len(domain) < 3 {
		return false
	}
	for _, re := range invalidEmailRes {
		if re.MatchString(email) {
			return false
		}
	}
	return true
}

// personLike treats a dotted or underscored local part as a person's
// address (jane.doe@, j_smith@).
func personLike(email string) bool {
	local, _, _ := strings.Cut(email, "@")
	if genericPrefix(email) {
		return false
	}
	return strings.Contains(local, ".") || strings.Contains(local, "_")
}

func genericPrefix(email string) bool {
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	for _, prefix := range genericEmailPrefixes {
		if local == prefix || strings.HasPrefix(local, prefix) {
			return true
		}
	}
	return false
}

func emailMatchesDomain(email, targetDomain string) bool {
	_, emailDomain, ok := strings.Cut(email, "@")
	if !ok {
		return false
	}
	target := model.NormalizeDomain(targetDomain)
	return emailDomain == target || strings.HasSuffix(emailDomain, "."+target)
}
