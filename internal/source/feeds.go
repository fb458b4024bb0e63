package source

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signals-cli/internal/fetch"
	"github.com/sells-group/signals-cli/internal/model"
)

// PermitsAdapter reads a public building-permit JSON feed. New roofing
// permits are strong intent signals for neighboring prospects.
type PermitsAdapter struct {
	fetcher *fetch.Fetcher
	feedURL string
}

func NewPermitsAdapter(f *fetch.Fetcher, cat FeedCatalog) *PermitsAdapter {
	return &PermitsAdapter{fetcher: f, feedURL: cat.FeedURL}
}

func (a *PermitsAdapter) Name() string { return "permits" }

type permitRecord struct {
	PermitID         string `json:"permit_id"`
	Description      string `json:"description"`
	Address          string `json:"address"`
	City             string `json:"city"`
	Contractor       string `json:"contractor"`
	ContractorDomain string `json:"contractor_domain"`
	IssuedAt         string `json:"issued_at"`
	URL              string `json:"url"`
}

func (a *PermitsAdapter) Fetch(ctx context.Context) ([]model.Signal, error) {
	if a.feedURL == "" {
		return nil, nil
	}

	var records []permitRecord
	if err := a.fetcher.GetJSON(ctx, a.feedURL, &records); err != nil {
		return nil, eris.Wrap(err, "permits: fetch feed")
	}

	var signals []model.Signal
	for _, rec := range records {
		geography := rec.City
		if geography == "" {
			geography = rec.Address
		}
		signals = append(signals, model.Signal{
			Source:     a.Name(),
			Category:   model.CategoryPermit,
			Title:      "Permit " + rec.PermitID + ": " + rec.Description,
			Summary:    rec.Contractor,
			URL:        a.recordURL(rec.URL, rec.PermitID),
			Geography:  geography,
			LeadDomain: rec.ContractorDomain,
			ObservedAt: parseFeedTime(rec.IssuedAt),
		})
	}
	return signals, nil
}

func (a *PermitsAdapter) recordURL(recURL, id string) string {
	if recURL != "" {
		return recURL
	}
	return a.feedURL + "#" + id
}

// JobsAdapter reads a job-board JSON feed. A company hiring crews is a
// growth signal.
type JobsAdapter struct {
	fetcher *fetch.Fetcher
	feedURL string
}

func NewJobsAdapter(f *fetch.Fetcher, cat FeedCatalog) *JobsAdapter {
	return &JobsAdapter{fetcher: f, feedURL: cat.FeedURL}
}

func (a *JobsAdapter) Name() string { return "jobs" }

type jobRecord struct {
	Title         string `json:"title"`
	Company       string `json:"company"`
	CompanyDomain string `json:"company_domain"`
	Location      string `json:"location"`
	PostedAt      string `json:"posted_at"`
	URL           string `json:"url"`
}

func (a *JobsAdapter) Fetch(ctx context.Context) ([]model.Signal, error) {
	if a.feedURL == "" {
		return nil, nil
	}

	var records []jobRecord
	if err := a.fetcher.GetJSON(ctx, a.feedURL, &records); err != nil {
		return nil, eris.Wrap(err, "jobs: fetch feed")
	}

	var signals []model.Signal
	for _, rec := range records {
		signals = append(signals, model.Signal{
			Source:     a.Name(),
			Category:   model.CategoryJobPosting,
			Title:      rec.Company + " hiring: " + rec.Title,
			Summary:    rec.Title + " in " + rec.Location,
			URL:        rec.URL,
			Geography:  rec.Location,
			LeadDomain: rec.CompanyDomain,
			ObservedAt: parseFeedTime(rec.PostedAt),
		})
	}
	return signals, nil
}

// ReviewsAdapter reads a review-velocity feed. A rating drop is a
// reputation-change signal; a review surge is a plain review signal.
type ReviewsAdapter struct {
	fetcher *fetch.Fetcher
	feedURL string
}

func NewReviewsAdapter(f *fetch.Fetcher, cat FeedCatalog) *ReviewsAdapter {
	return &ReviewsAdapter{fetcher: f, feedURL: cat.FeedURL}
}

func (a *ReviewsAdapter) Name() string { return "reviews" }

type reviewRecord struct {
	Business    string  `json:"business"`
	Domain      string  `json:"domain"`
	Location    string  `json:"location"`
	RatingDelta float64 `json:"rating_delta"`
	ReviewDelta int     `json:"review_delta"`
	ObservedAt  string  `json:"observed_at"`
	URL         string  `json:"url"`
}

func (a *ReviewsAdapter) Fetch(ctx context.Context) ([]model.Signal, error) {
	if a.feedURL == "" {
		return nil, nil
	}

	var records []reviewRecord
	if err := a.fetcher.GetJSON(ctx, a.feedURL, &records); err != nil {
		return nil, eris.Wrap(err, "reviews: fetch feed")
	}

	var signals []model.Signal
	for _, rec := range records {
		category := model.CategoryReview
		if rec.RatingDelta < 0 {
			category = model.CategoryReputationChange
		}
		signals = append(signals, model.Signal{
			Source:     a.Name(),
			Category:   category,
			Title:      rec.Business + " review activity",
			Summary:    reviewSummary(rec),
			URL:        rec.URL,
			Geography:  rec.Location,
			LeadDomain: rec.Domain,
			ObservedAt: parseFeedTime(rec.ObservedAt),
		})
	}
	return signals, nil
}

func reviewSummary(rec reviewRecord) string {
	if rec.RatingDelta < 0 {
		return "rating dropped"
	}
	return "review volume up"
}

// ForumAdapter reads a classifieds JSON feed of local listings. The
// posting section carries the intent: a business for sale is a distress
// signal, a trades job is hiring, a commercial housing listing is
// expansion.
type ForumAdapter struct {
	fetcher *fetch.Fetcher
	feedURL string
}

func NewForumAdapter(f *fetch.Fetcher, cat FeedCatalog) *ForumAdapter {
	return &ForumAdapter{fetcher: f, feedURL: cat.FeedURL}
}

func (a *ForumAdapter) Name() string { return "forum" }

type forumRecord struct {
	ListingID string `json:"listing_id"`
	Section   string `json:"section"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Location  string `json:"location"`
	PostedAt  string `json:"posted_at"`
	URL       string `json:"url"`
}

func (a *ForumAdapter) Fetch(ctx context.Context) ([]model.Signal, error) {
	if a.feedURL == "" {
		return nil, nil
	}

	var records []forumRecord
	if err := a.fetcher.GetJSON(ctx, a.feedURL, &records); err != nil {
		return nil, eris.Wrap(err, "forum: fetch feed")
	}

	var signals []model.Signal
	for _, rec := range records {
		if rec.Title == "" {
			continue
		}
		signals = append(signals, model.Signal{
			Source:     a.Name(),
			Category:   forumCategory(rec),
			Title:      rec.Title,
			Summary:    rec.Body,
			URL:        rec.URL,
			Geography:  rec.Location,
			ObservedAt: parseFeedTime(rec.PostedAt),
		})
	}
	return signals, nil
}

func forumCategory(rec forumRecord) model.Category {
	switch rec.Section {
	case "business_for_sale":
		return model.CategoryDistress
	case "trades_jobs":
		return model.CategoryJobPosting
	case "housing_commercial":
		return model.CategoryGrowth
	default:
		return model.InferCategory(rec.Title + " " + rec.Body)
	}
}

// FilingsAdapter reads a regulatory-filings JSON feed. Filing text is
// classified by keyword: expansion language is growth, contraction
// language is distress, anything else stays regulatory.
type FilingsAdapter struct {
	fetcher *fetch.Fetcher
	feedURL string
}

func NewFilingsAdapter(f *fetch.Fetcher, cat FeedCatalog) *FilingsAdapter {
	return &FilingsAdapter{fetcher: f, feedURL: cat.FeedURL}
}

func (a *FilingsAdapter) Name() string { return "filings" }

type filingRecord struct {
	Company    string `json:"company"`
	FilingType string `json:"filing_type"`
	Summary    string `json:"summary"`
	Region     string `json:"region"`
	FiledAt    string `json:"filed_at"`
	URL        string `json:"url"`
}

var (
	filingExpansionTerms   = []string{"new location", "expansion", "expand", "opening", "new market", "capital expenditure", "increase capacity"}
	filingContractionTerms = []string{"closure", "closing", "layoff", "bankruptcy", "restructuring", "impairment", "discontinue"}
)

func (a *FilingsAdapter) Fetch(ctx context.Context) ([]model.Signal, error) {
	if a.feedURL == "" {
		return nil, nil
	}

	var records []filingRecord
	if err := a.fetcher.GetJSON(ctx, a.feedURL, &records); err != nil {
		return nil, eris.Wrap(err, "filings: fetch feed")
	}

	var signals []model.Signal
	for _, rec := range records {
		if rec.Company == "" {
			continue
		}
		signals = append(signals, model.Signal{
			Source:     a.Name(),
			Category:   filingCategory(rec.Summary),
			Title:      rec.Company + " filed " + rec.FilingType,
			Summary:    rec.Summary,
			URL:        rec.URL,
			Geography:  rec.Region,
			ObservedAt: parseFeedTime(rec.FiledAt),
		})
	}
	return signals, nil
}

func filingCategory(summary string) model.Category {
	text := strings.ToLower(summary)
	for _, term := range filingContractionTerms {
		if strings.Contains(text, term) {
			return model.CategoryDistress
		}
	}
	for _, term := range filingExpansionTerms {
		if strings.Contains(text, term) {
			return model.CategoryGrowth
		}
	}
	return model.CategoryRegulatory
}

func parseFeedTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
