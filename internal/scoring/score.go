// Package scoring converts raw signals into composite lead scores and
// promotes those above threshold into lead events.
package scoring

import (
	"strings"
	"time"

	"github.com/sells-group/signals-cli/internal/config"
	"github.com/sells-group/signals-cli/internal/model"
)

// Component weights. Urgency dominates because a hurricane in the target
// region is worth chasing even when the signal is a few days old.
const (
	weightUrgency   = 0.30
	weightRecency   = 0.25
	weightGeography = 0.25
	weightNiche     = 0.20
)

var urgencyByCategory = map[model.Category]float64{
	model.CategoryHurricane:        95,
	model.CategoryStormWatch:       85,
	model.CategoryGrowth:           80,
	model.CategoryCompetitorShift:  75,
	model.CategoryReview:           70,
	model.CategoryReputationChange: 70,
	model.CategoryNews:             60,
	model.CategoryPermit:           55,
	model.CategoryJobPosting:       55,
}

const defaultUrgency = 50

// Scorer computes composite scores from configured regions and niche terms.
type Scorer struct {
	threshold float64
	regions   []string
	niche     []string
	now       func() time.Time
}

// New builds a Scorer from config.
func New(cfg config.ScoringConfig) *Scorer {
	return &Scorer{
		threshold: cfg.Threshold,
		regions:   lowerAll(cfg.TargetRegions),
		niche:     lowerAll(cfg.NicheTerms),
		now:       time.Now,
	}
}

// Breakdown holds the component scores for one signal.
type Breakdown struct {
	Urgency   float64
	Recency   float64
	Geography float64
	Niche     float64
	Total     float64
}

// Score computes the composite 0-100 score for a signal.
func (s *Scorer) Score(sig *model.Signal) Breakdown {
	b := Breakdown{
		Urgency:   urgency(sig.Category),
		Recency:   recency(s.now().UTC().Sub(sig.ObservedAt.UTC())),
		Geography: s.geography(sig.Geography),
		Niche:     s.nicheScore(sig),
	}
	b.Total = clamp(weightUrgency*b.Urgency +
		weightRecency*b.Recency +
		weightGeography*b.Geography +
		weightNiche*b.Niche)
	return b
}

// Qualifies reports whether a score clears the promotion threshold.
func (s *Scorer) Qualifies(score float64) bool {
	return score >= s.threshold
}

// Promote builds the lead event for a qualifying signal.
func Promote(sig *model.Signal, score float64) *model.LeadEvent {
	return &model.LeadEvent{
		SignalID:   sig.ID,
		Score:      score,
		Category:   sig.Category,
		Tier:       model.TierForScore(score),
		State:      model.StateUnenriched,
		LeadDomain: sig.LeadDomain,
		LeadEmail:  sig.LeadEmail,
	}
}

func urgency(cat model.Category) float64 {
	if u, ok := urgencyByCategory[cat]; ok {
		return u
	}
	return defaultUrgency
}

// recency buckets: the value of a signal decays fast over the first two
// weeks and flattens afterward.
func recency(age time.Duration) float64 {
	switch {
	case age <= 24*time.Hour:
		return 100
	case age <= 3*24*time.Hour:
		return 80
	case age <= 7*24*time.Hour:
		return 55
	case age <= 14*24*time.Hour:
		return 30
	default:
		return 10
	}
}

func (s *Scorer) geography(tag string) float64 {
	if tag == "" || len(s.regions) == 0 {
		return 0
	}
	lower := strings.ToLower(tag)
	for _, region := range s.regions {
		if strings.Contains(lower, region) {
			return 100
		}
	}
	return 0
}

func (s *Scorer) nicheScore(sig *model.Signal) float64 {
	if len(s.niche) == 0 {
		return 0
	}
	text := strings.ToLower(string(sig.Category) + " " + sig.Title + " " + sig.Summary)
	for _, term := range s.niche {
		if strings.Contains(text, term) {
			return 100
		}
	}
	return 0
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(strings.ToLower(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
