package enrich

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/signals-cli/internal/fetch"
	"github.com/sells-group/signals-cli/internal/model"
)

// PhoneResult is a discovered number in E.164 form.
type PhoneResult struct {
	Number   string `json:"number"`
	TollFree bool   `json:"toll_free"`
	Source   string `json:"source"`
}

var tollFreePrefixes = map[string]bool{
	"800": true, "888": true, "877": true, "866": true,
	"855": true, "844": true, "833": true,
}

var (
	telLinkRe     = regexp.MustCompile(`(?i)href=["']tel:([+\d().\s\-]+)["']`)
	schemaPhoneRe = regexp.MustCompile(`(?i)"telephone"\s*:\s*"([^"]+)"`)
	nanpRe        = regexp.MustCompile(`\(?\b\d{3}\)?[.\s\-]\d{3}[.\s\-]\d{4}\b`)
	nonDigitRe    = regexp.MustCompile(`\D`)
)

// PhoneExtractor pulls a contact number from a lead's site. Best effort:
// phone never gates enrichment progress.
type PhoneExtractor struct {
	fetcher *fetch.Fetcher
}

func NewPhoneExtractor(f *fetch.Fetcher) *PhoneExtractor {
	return &PhoneExtractor{fetcher: f}
}

// Extract fetches the homepage and returns the first normalizable number,
// preferring tel: links, then schema.org telephone, then visible NANP
// patterns.
func (p *PhoneExtractor) Extract(ctx context.Context, domain string) *PhoneResult {
	page, err := p.fetcher.Get(ctx, "https://"+model.NormalizeDomain(domain))
	if err != nil {
		zap.L().Debug("phone extraction fetch failed",
			zap.String("domain", domain), zap.Error(err))
		return nil
	}
	return ExtractPhone(page.HTML)
}

// ExtractPhone scans HTML for a phone number.
func ExtractPhone(html string) *PhoneResult {
	if m := telLinkRe.FindStringSubmatch(html); m != nil {
		if r := normalizePhone(m[1], "tel_link"); r != nil {
			return r
		}
	}
	if m := schemaPhoneRe.FindStringSubmatch(html); m != nil {
		if r := normalizePhone(m[1], "schema_org"); r != nil {
			return r
		}
	}
	if m := nanpRe.FindString(html); m != "" {
		if r := normalizePhone(m, "visible_text"); r != nil {
			return r
		}
	}
	return nil
}

// normalizePhone converts a raw match to E.164 (+1XXXYYYZZZZ). Numbers
// that are not valid NANP lengths are dropped.
func normalizePhone(raw, source string) *PhoneResult {
	digits := nonDigitRe.ReplaceAllString(raw, "")

	var e164 string
	switch {
	case len(digits) == 10:
		e164 = "+1" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		e164 = "+" + digits
	default:
		return nil
	}

	areaCode := e164[2:5]
	return &PhoneResult{
		Number:   e164,
		TollFree: tollFreePrefixes[areaCode],
		Source:   source,
	}
}
