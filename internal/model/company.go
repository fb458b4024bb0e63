package model

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Company is the canonical deduplicated entity keyed by (domain, normalized
// name). Many lead events may reference the same company; none owns it.
type Company struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	Domain         string    `json:"domain"`
	Phone          string    `json:"phone,omitempty"`
	LeadCount      int       `json:"lead_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// corporate suffixes stripped during name normalization.
var nameSuffixes = []string{
	"incorporated", "inc", "llc", "llp", "ltd", "corp", "corporation",
	"company", "co", "group", "services", "svcs",
}

// NormalizeName lowercases, strips diacritics, punctuation, and corporate
// suffixes so "Miami Best Roofing, LLC" and "miami best roofing" key the
// same company.
func NormalizeName(name string) string {
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// Drop combining marks left by NFKD decomposition.
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r) || r == '-' || r == '&':
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	for len(words) > 1 {
		last := words[len(words)-1]
		if !isNameSuffix(last) {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func isNameSuffix(word string) bool {
	for _, s := range nameSuffixes {
		if word == s {
			return true
		}
	}
	return false
}

// NormalizeDomain strips scheme, www prefix, path, and port from a URL or
// bare host, returning a lowercase registrable-looking domain.
func NormalizeDomain(raw string) string {
	d := strings.TrimSpace(strings.ToLower(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.Index(d, ":"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, ".")
}
