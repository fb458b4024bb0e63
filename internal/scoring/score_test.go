package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/signals-cli/internal/config"
	"github.com/sells-group/signals-cli/internal/model"
)

func testScorer() *Scorer {
	s := New(config.ScoringConfig{
		Threshold:     65,
		TargetRegions: []string{"Miami", "Tampa", "FL"},
		NicheTerms:    []string{"roof", "roofing"},
	})
	s.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestHurricaneInRegionScoresCritical(t *testing.T) {
	s := testScorer()
	sig := &model.Signal{
		Category:   model.CategoryHurricane,
		Title:      "Hurricane warning: roofing damage expected",
		Geography:  "Miami-Dade, FL",
		ObservedAt: time.Date(2026, 8, 28, 6, 0, 0, 0, time.UTC),
	}

	b := s.Score(sig)
	assert.Equal(t, float64(95), b.Urgency)
	assert.Equal(t, float64(100), b.Recency)
	assert.Equal(t, float64(100), b.Geography)
	assert.Equal(t, float64(100), b.Niche)
	assert.GreaterOrEqual(t, b.Total, 90.0)
	assert.True(t, s.Qualifies(b.Total))
	assert.Equal(t, model.TierCritical, model.TierForScore(b.Total))
}

func TestOutOfRegionStaleSignalBelowThreshold(t *testing.T) {
	s := testScorer()
	sig := &model.Signal{
		Category:   model.CategoryNews,
		Title:      "Hardware store opens downtown",
		Geography:  "Boise, ID",
		ObservedAt: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}

	b := s.Score(sig)
	assert.False(t, s.Qualifies(b.Total))
	assert.Equal(t, float64(0), b.Geography)
	assert.Equal(t, float64(0), b.Niche)
	assert.Equal(t, float64(10), b.Recency)
}

func TestRecencyBuckets(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{6 * time.Hour, 100},
		{24 * time.Hour, 100},
		{2 * 24 * time.Hour, 80},
		{5 * 24 * time.Hour, 55},
		{10 * 24 * time.Hour, 30},
		{21 * 24 * time.Hour, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, recency(tt.age), "age %s", tt.age)
	}
}

func TestUrgencyTable(t *testing.T) {
	tests := []struct {
		category model.Category
		want     float64
	}{
		{model.CategoryHurricane, 95},
		{model.CategoryGrowth, 80},
		{model.CategoryCompetitorShift, 75},
		{model.CategoryReview, 70},
		{model.CategoryReputationChange, 70},
		{model.CategoryNews, 60},
		{model.CategoryPermit, 55},
		{model.CategoryJobPosting, 55},
		{model.CategorySynthetic, 50},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, urgency(tt.category), "category %s", tt.category)
	}
}

func TestScoreAlwaysWithinBounds(t *testing.T) {
	s := testScorer()
	categories := []model.Category{
		model.CategoryHurricane, model.CategoryNews, model.CategorySynthetic,
	}
	ages := []time.Duration{0, 48 * time.Hour, 90 * 24 * time.Hour}
	geos := []string{"", "Miami, FL", "Anchorage, AK"}

	for _, cat := range categories {
		for _, age := range ages {
			for _, geo := range geos {
				sig := &model.Signal{
					Category:   cat,
					Title:      "roofing signal",
					Geography:  geo,
					ObservedAt: s.now().Add(-age),
				}
				b := s.Score(sig)
				assert.GreaterOrEqual(t, b.Total, 0.0)
				assert.LessOrEqual(t, b.Total, 100.0)
			}
		}
	}
}

func TestPromoteBuildsUnenrichedLead(t *testing.T) {
	sig := &model.Signal{
		ID:         "sig-1",
		Category:   model.CategoryGrowth,
		LeadDomain: "acmeroofing.com",
		LeadEmail:  "info@acmeroofing.com",
	}
	lead := Promote(sig, 78.5)

	assert.Equal(t, "sig-1", lead.SignalID)
	assert.Equal(t, model.StateUnenriched, lead.State)
	assert.Equal(t, model.TierHigh, lead.Tier)
	assert.Equal(t, "acmeroofing.com", lead.LeadDomain)
	assert.Equal(t, "info@acmeroofing.com", lead.LeadEmail)
}
