package source

import (
	"context"
	"time"

	"github.com/sells-group/signals-cli/internal/model"
)

// SyntheticAdapter emits a deterministic batch of demo signals so the
// pipeline can be exercised end to end without live feeds. Titles carry
// the current date so each day produces a fresh batch past dedupe.
type SyntheticAdapter struct {
	now func() time.Time
}

func NewSyntheticAdapter() *SyntheticAdapter {
	return &SyntheticAdapter{now: time.Now}
}

func (a *SyntheticAdapter) Name() string { return "synthetic" }

func (a *SyntheticAdapter) Fetch(_ context.Context) ([]model.Signal, error) {
	now := a.now().UTC()
	day := now.Format("2006-01-02")

	return []model.Signal{
		{
			Source:     a.Name(),
			Category:   model.CategoryHurricane,
			Title:      "Hurricane warning for Miami-Dade (" + day + ")",
			Summary:    "Synthetic hurricane alert for pipeline demos",
			URL:        "https://example.com/synthetic/hurricane/" + day,
			Geography:  "Miami, FL",
			ObservedAt: now,
		},
		{
			Source:     a.Name(),
			Category:   model.CategoryGrowth,
			Title:      "Sunshine Roofing opens second Tampa location (" + day + ")",
			Summary:    "Synthetic growth signal for pipeline demos",
			URL:        "https://example.com/synthetic/growth/" + day,
			Geography:  "Tampa, FL",
			LeadDomain: "sunshineroofingfl.example",
			ObservedAt: now.Add(-48 * time.Hour),
		},
		{
			Source:     a.Name(),
			Category:   model.CategoryPermit,
			Title:      "Re-roofing permit filed in Orlando (" + day + ")",
			Summary:    "Synthetic permit signal for pipeline demos",
			URL:        "https://example.com/synthetic/permit/" + day,
			Geography:  "Orlando, FL",
			ObservedAt: now.Add(-10 * 24 * time.Hour),
		},
	}, nil
}
