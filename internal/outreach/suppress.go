package outreach

import (
	"encoding/json"
	"strings"
)

// Suppression holds the do-not-contact list. Entries come in three forms:
// exact addresses, "@domain.com" suffixes, and bare domains.
type Suppression struct {
	exact   map[string]bool
	domains map[string]bool
}

// ParseDNC accepts either a JSON string array or a comma-separated list.
func ParseDNC(raw string) *Suppression {
	s := &Suppression{
		exact:   make(map[string]bool),
		domains: make(map[string]bool),
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s
	}

	var entries []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			entries = strings.Split(raw, ",")
		}
	} else {
		entries = strings.Split(raw, ",")
	}

	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		switch {
		case e == "":
		case strings.HasPrefix(e, "@"):
			s.domains[strings.TrimPrefix(e, "@")] = true
		case strings.Contains(e, "@"):
			s.exact[e] = true
		default:
			s.domains[e] = true
		}
	}
	return s
}

// Blocks reports whether an address is suppressed and which entry matched.
func (s *Suppression) Blocks(email string) (bool, string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, ""
	}
	if s.exact[email] {
		return true, email
	}
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return false, ""
	}
	if s.domains[domain] {
		return true, "@" + domain
	}
	// subdomain of a suppressed domain
	for d := range s.domains {
		if strings.HasSuffix(domain, "."+d) {
			return true, "@" + d
		}
	}
	return false, ""
}

// Size returns the number of suppression entries.
func (s *Suppression) Size() int {
	return len(s.exact) + len(s.domains)
}
