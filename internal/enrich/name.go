package enrich

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// NameCandidate is a potential company name with a confidence score.
type NameCandidate struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// minNameConfidence is the acceptance floor for the best candidate.
const minNameConfidence = 0.50

var businessTerms = map[string]bool{
	"roofing": true, "roofer": true, "roof": true, "construction": true,
	"remodeling": true, "renovation": true, "restoration": true, "exteriors": true,
	"contracting": true, "contractors": true, "builders": true, "building": true,
	"hvac": true, "plumbing": true, "electric": true, "electrical": true,
	"landscaping": true, "painting": true, "flooring": true, "concrete": true,
	"paving": true, "masonry": true, "fencing": true, "windows": true, "gutters": true,
	"group": true, "services": true, "solutions": true, "systems": true,
	"enterprises": true, "associates": true, "holdings": true, "partners": true,
	"inc": true, "llc": true, "corp": true, "corporation": true, "co": true,
	"company": true,
}

var genericNamesBlock = map[string]bool{
	"the company": true, "this company": true, "the business": true,
	"your company": true, "our company": true,
	"developer": true, "owner": true, "manager": true, "president": true,
	"ceo": true, "founder": true,
	"news": true, "report": true, "update": true, "article": true,
	"story": true, "press": true, "release": true,
	"south florida": true, "miami": true, "broward": true, "palm beach": true,
	"orlando": true, "tampa": true, "florida": true, "texas": true,
	"california": true, "new york": true,
	"local": true, "area": true, "region": true, "county": true,
	"city": true, "state": true, "national": true,
}

var newsOutletNames = []string{
	"miami herald", "sun sentinel", "palm beach post", "orlando sentinel",
	"tampa bay times", "business journal", "bizjournals",
	"cbs miami", "nbc miami", "abc news", "fox news", "cnn", "reuters",
	"associated press", "bloomberg", "wall street journal", "new york times",
	"washington post",
}

var (
	jsonLDRe      = regexp.MustCompile(`(?is)<script[^>]*type=["']application/ld\+json["'][^>]*>(.*?)</script>`)
	ogSiteNameRe  = regexp.MustCompile(`(?i)<meta[^>]*property=["']og:site_name["'][^>]*content=["']([^"']+)["']`)
	ogSiteNameRe2 = regexp.MustCompile(`(?i)<meta[^>]*content=["']([^"']+)["'][^>]*property=["']og:site_name["']`)
	h1Re          = regexp.MustCompile(`(?i)<h1[^>]*>([^<]+)</h1>`)
	pageTitleRe   = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	titleSplitRe  = regexp.MustCompile(`\s*[|\-–—]\s*`)

	legalSuffixRe   = regexp.MustCompile(`(?i)\b(Inc|LLC|Corp|Co|Ltd|LLP|PLLC|PC|PA)\b`)
	quotedNameRe    = regexp.MustCompile(`"([A-Z][^"]{3,50})"`)
	capPhraseRe     = regexp.MustCompile(`([A-Z][a-zA-Z]+(?:\s+[A-Z]?[a-zA-Z&'\-]+){1,4})`)
	suffixPhraseRe  = regexp.MustCompile(`([A-Z][a-zA-Z]+(?:\s+[A-Z]?[a-zA-Z&'\-]+){0,3}\s+(?:Inc|LLC|Corp|Co|Ltd|LLP|PLLC)\.?)`)
	geoOnlyRe       = regexp.MustCompile(`(?i)^(miami|broward|palm beach|orlando|tampa|florida|south florida|texas|california)\s+(company|business|firm|group|owner)$`)
	roleOfRe        = regexp.MustCompile(`(?i)^(owner|manager|president|ceo|founder)\s+of\s+`)
	headlineVerbRe  = regexp.MustCompile(`(?i)\s+(announced|announces|expands|opens|acquires|launches|hires|reports|says|to|will|has|is|are|was|were|bought|sold|filed|closes)\b.*$`)
	leadingArtRe    = regexp.MustCompile(`(?i)^(a|an|the)\s+`)
	trailingPunctRe = regexp.MustCompile(`\s*[,;:.]+\s*$`)
	wsRe            = regexp.MustCompile(`\s+`)
	genericTradeRe  = regexp.MustCompile(`(?i)^(local|area|regional|florida|miami|tampa)\s+(hvac|roofing|plumbing|contractor)`)
)

// ExtractNameCandidates runs every extraction method over the signal text
// and the optional article HTML, returning deduplicated candidates sorted
// by confidence.
func ExtractNameCandidates(title, summary, html string) []NameCandidate {
	var all []NameCandidate

	all = append(all, extractFromText(title, "title_extraction")...)
	all = append(all, extractFromText(summary, "summary_pattern")...)

	if html != "" {
		all = append(all, extractFromSchemaOrg(html)...)
		all = append(all, extractFromMetaTags(html)...)
		all = append(all, extractFromHeadings(html)...)
	}

	seen := make(map[string]bool)
	var unique []NameCandidate
	for _, c := range all {
		key := strings.ToLower(c.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, c)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Confidence > unique[j].Confidence
	})
	return unique
}

// BestName returns the highest-confidence candidate above the acceptance
// floor, or false when nothing branded enough was found.
func BestName(title, summary, html string) (NameCandidate, bool) {
	candidates := ExtractNameCandidates(title, summary, html)
	if len(candidates) == 0 || candidates[0].Confidence < minNameConfidence {
		return NameCandidate{}, false
	}
	return candidates[0], true
}

var orgTypes = map[string]bool{
	"Organization": true, "LocalBusiness": true, "Corporation": true,
	"HomeAndConstructionBusiness": true, "RoofingContractor": true,
	"ProfessionalService": true, "GeneralContractor": true, "Store": true,
}

func extractFromSchemaOrg(html string) []NameCandidate {
	var candidates []NameCandidate

	for _, m := range jsonLDRe.FindAllStringSubmatch(html, -1) {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &data); err != nil {
			continue
		}
		candidates = append(candidates, walkSchemaItem(data)...)
	}
	return candidates
}

func walkSchemaItem(data any) []NameCandidate {
	var candidates []NameCandidate

	switch v := data.(type) {
	case []any:
		for _, item := range v {
			candidates = append(candidates, walkSchemaItem(item)...)
		}
	case map[string]any:
		itemType, _ := v["@type"].(string)
		if types, ok := v["@type"].([]any); ok && len(types) > 0 {
			itemType, _ = types[0].(string)
		}
		if orgTypes[itemType] {
			if name, ok := v["name"].(string); ok {
				if c, ok := makeCandidate(name, "schema_org"); ok {
					candidates = append(candidates, c)
				}
			}
		}
		if graph, ok := v["@graph"]; ok {
			candidates = append(candidates, walkSchemaItem(graph)...)
		}
	}
	return candidates
}

func extractFromMetaTags(html string) []NameCandidate {
	var candidates []NameCandidate

	m := ogSiteNameRe.FindStringSubmatch(html)
	if m == nil {
		m = ogSiteNameRe2.FindStringSubmatch(html)
	}
	if m != nil {
		if c, ok := makeCandidate(m[1], "og_site_name"); ok {
			candidates = append(candidates, c)
		}
	}

	if m := pageTitleRe.FindStringSubmatch(html); m != nil {
		for _, part := range titleSplitRe.Split(m[1], -1) {
			c, ok := makeCandidate(part, "meta_title")
			if ok && hasBusinessTerm(c.Name) {
				candidates = append(candidates, c)
			}
		}
	}
	return candidates
}

func extractFromHeadings(html string) []NameCandidate {
	var candidates []NameCandidate

	// only the top of the page; deep h1s are rarely the business name
	if len(html) > 20000 {
		html = html[:20000]
	}
	for _, m := range h1Re.FindAllStringSubmatch(html, -1) {
		c, ok := makeCandidate(m[1], "h1_heading")
		if ok && hasBusinessTerm(c.Name) {
			candidates = append(candidates, c)
		}
	}
	return candidates
}

func extractFromText(text, source string) []NameCandidate {
	if text == "" {
		return nil
	}
	var candidates []NameCandidate

	for _, re := range []*regexp.Regexp{suffixPhraseRe, quotedNameRe, capPhraseRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			c, ok := makeCandidate(m[1], source)
			if !ok {
				continue
			}
			if hasBusinessTerm(c.Name) || legalSuffixRe.MatchString(c.Name) {
				candidates = append(candidates, c)
			}
		}
	}
	return candidates
}

func makeCandidate(raw, source string) (NameCandidate, bool) {
	name := normalizeName(raw)
	if name == "" || isBlockedName(name) {
		return NameCandidate{}, false
	}
	return NameCandidate{
		Name:       name,
		Confidence: nameConfidence(name, source),
		Source:     source,
	}, true
}

// normalizeName cleans a raw candidate: whitespace, quotes, leading
// articles, trailing punctuation, and headline verb clauses.
func normalizeName(name string) string {
	name = wsRe.ReplaceAllString(strings.TrimSpace(name), " ")
	name = strings.NewReplacer(`"`, "", "“", "", "”", "", "`", "").Replace(name)
	name = leadingArtRe.ReplaceAllString(name, "")
	name = headlineVerbRe.ReplaceAllString(name, "")
	name = trailingPunctRe.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

func isBlockedName(name string) bool {
	lower := strings.ToLower(name)
	if len(lower) < 3 {
		return true
	}
	if genericNamesBlock[lower] {
		return true
	}
	for _, outlet := range newsOutletNames {
		if strings.Contains(lower, outlet) {
			return true
		}
	}
	if name[0] >= 'a' && name[0] <= 'z' {
		return true
	}
	if geoOnlyRe.MatchString(lower) {
		return true
	}
	if roleOfRe.MatchString(lower) || genericTradeRe.MatchString(lower) {
		return true
	}
	// a generic trade phrase like "Florida roofing company": every word
	// after the first is a lowercase business term or geography
	words := strings.Fields(name)
	if len(words) >= 2 {
		generic := true
		for _, w := range words[1:] {
			lw := strings.ToLower(w)
			if w[0] >= 'A' && w[0] <= 'Z' {
				generic = false
				break
			}
			if !businessTerms[lw] && !genericNamesBlock[lw] {
				generic = false
				break
			}
		}
		if generic {
			return true
		}
	}
	return false
}

var baseNameConfidence = map[string]float64{
	"schema_org":       0.95,
	"og_site_name":     0.85,
	"og_title":         0.75,
	"meta_title":       0.70,
	"h1_heading":       0.65,
	"title_extraction": 0.55,
	"body_heuristic":   0.50,
	"summary_pattern":  0.45,
}

func nameConfidence(name, source string) float64 {
	conf, ok := baseNameConfidence[source]
	if !ok {
		conf = 0.40
	}

	if hasBusinessTerm(name) {
		conf += 0.10
	}
	wordCount := len(strings.Fields(name))
	if wordCount >= 2 && wordCount <= 4 {
		conf += 0.05
	} else if wordCount > 6 {
		conf -= 0.10
	}
	if name[0] >= 'A' && name[0] <= 'Z' {
		conf += 0.05
	}
	if legalSuffixRe.MatchString(name) {
		conf += 0.05
	}

	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

func hasBusinessTerm(name string) bool {
	for _, w := range strings.Fields(strings.ToLower(name)) {
		if businessTerms[strings.Trim(w, ",.")] {
			return true
		}
	}
	return false
}
