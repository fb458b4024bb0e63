package source

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signals-cli/internal/fetch"
	"github.com/sells-group/signals-cli/internal/model"
)

// WeatherAdapter reads an NWS-style active alert feed and emits hurricane
// and storm signals for the configured areas.
type WeatherAdapter struct {
	fetcher *fetch.Fetcher
	feedURL string
	areas   []string
}

func NewWeatherAdapter(f *fetch.Fetcher, cat WeatherCatalog) *WeatherAdapter {
	return &WeatherAdapter{fetcher: f, feedURL: cat.FeedURL, areas: cat.Areas}
}

func (a *WeatherAdapter) Name() string { return "weather" }

type alertFeed struct {
	Features []struct {
		ID         string `json:"id"`
		Properties struct {
			Event       string `json:"event"`
			Headline    string `json:"headline"`
			Description string `json:"description"`
			AreaDesc    string `json:"areaDesc"`
			Effective   string `json:"effective"`
			Severity    string `json:"severity"`
		} `json:"properties"`
	} `json:"features"`
}

func (a *WeatherAdapter) Fetch(ctx context.Context) ([]model.Signal, error) {
	var signals []model.Signal

	for _, area := range a.areas {
		endpoint := a.feedURL + "?area=" + url.QueryEscape(area)

		var feed alertFeed
		if err := a.fetcher.GetJSON(ctx, endpoint, &feed); err != nil {
			return nil, eris.Wrapf(err, "weather: fetch alerts for %s", area)
		}

		for _, f := range feed.Features {
			p := f.Properties
			category := model.InferCategory(p.Event)
			if category == model.CategoryNews {
				// only weather-relevant alerts become signals
				continue
			}

			title := p.Headline
			if title == "" {
				title = p.Event
			}

			observed := time.Now().UTC()
			if t, err := time.Parse(time.RFC3339, p.Effective); err == nil {
				observed = t.UTC()
			}

			signals = append(signals, model.Signal{
				Source:     a.Name(),
				Category:   category,
				Title:      title,
				Summary:    truncate(p.Description, 500),
				URL:        f.ID,
				Geography:  p.AreaDesc,
				ObservedAt: observed,
			})
		}
	}
	return signals, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
