// Package model defines the core domain types shared across the pipeline:
// signals, lead events, companies, mission log entries, and outreach records.
package model

import (
	"strings"
	"time"
)

// Category classifies a signal by the kind of business event it describes.
type Category string

const (
	CategoryHurricane        Category = "hurricane"
	CategoryStormWatch       Category = "storm_watch"
	CategoryGrowth           Category = "growth"
	CategoryReview           Category = "review"
	CategoryReputationChange Category = "reputation_change"
	CategoryCompetitorShift  Category = "competitor_shift"
	CategoryNews             Category = "news"
	CategoryPermit           Category = "permit"
	CategoryJobPosting       Category = "job_posting"
	CategoryDistress         Category = "distress"
	CategoryRegulatory       Category = "regulatory"
	CategorySynthetic        Category = "synthetic"
)

// Signal is an immutable record of one raw external observation. Created by a
// source adapter, scored once, and never mutated afterward.
type Signal struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Category   Category  `json:"category"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	URL        string    `json:"url"`
	Geography  string    `json:"geography"`
	LeadDomain string    `json:"lead_domain,omitempty"`
	LeadEmail  string    `json:"lead_email,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
	Score      float64   `json:"score"`
	Promoted   bool      `json:"promoted"`
	CreatedAt  time.Time `json:"created_at"`
}

// categoryKeywords maps lowercase keywords found in signal text to a category.
// Checked in order; the first hit wins.
var categoryKeywords = []struct {
	keywords []string
	category Category
}{
	{[]string{"hurricane", "tropical storm", "storm surge"}, CategoryHurricane},
	{[]string{"tornado", "severe weather", "flood warning", "hail"}, CategoryStormWatch},
	{[]string{"acquired", "acquisition", "merger", "merges with", "buys out"}, CategoryCompetitorShift},
	{[]string{"hiring", "expansion", "expanding", "new location", "opens new", "growth"}, CategoryGrowth},
	{[]string{"review bomb", "one-star", "negative reviews"}, CategoryReputationChange},
	{[]string{"review", "rating", "testimonial"}, CategoryReview},
	{[]string{"permit", "zoning", "building application"}, CategoryPermit},
	{[]string{"job posting", "now hiring", "job opening", "careers"}, CategoryJobPosting},
	{[]string{"bankruptcy", "layoff", "closing", "foreclosure"}, CategoryDistress},
	{[]string{"violation", "fine", "osha", "recall", "compliance"}, CategoryRegulatory},
}

// InferCategory derives a category from free text when the source feed does
// not carry one. Defaults to news.
func InferCategory(text string) Category {
	lower := strings.ToLower(text)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return CategoryNews
}
