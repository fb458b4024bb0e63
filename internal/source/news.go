package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signals-cli/internal/model"
	"github.com/sells-group/signals-cli/pkg/websearch"
)

// NewsAdapter turns configured news queries into signals via web search.
// The category is inferred from the result text.
type NewsAdapter struct {
	search  websearch.Client
	queries []string
}

func NewNewsAdapter(search websearch.Client, cat NewsCatalog) *NewsAdapter {
	return &NewsAdapter{search: search, queries: cat.Queries}
}

func (a *NewsAdapter) Name() string { return "news" }

func (a *NewsAdapter) Fetch(ctx context.Context) ([]model.Signal, error) {
	var signals []model.Signal

	for _, query := range a.queries {
		results, err := a.search.Search(ctx, query)
		if err != nil {
			return nil, eris.Wrapf(err, "news: search %q", query)
		}

		for _, r := range results {
			if r.Title == "" || r.URL == "" {
				continue
			}
			signals = append(signals, model.Signal{
				Source:     a.Name(),
				Category:   model.InferCategory(r.Title + " " + r.Snippet),
				Title:      r.Title,
				Summary:    r.Snippet,
				URL:        r.URL,
				ObservedAt: time.Now().UTC(),
			})
		}
	}
	return signals, nil
}
