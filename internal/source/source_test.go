package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/signals-cli/internal/config"
	"github.com/sells-group/signals-cli/internal/fetch"
	"github.com/sells-group/signals-cli/internal/model"
	"github.com/sells-group/signals-cli/internal/store"
	"github.com/sells-group/signals-cli/pkg/websearch"
)

func testStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testFetcher() *fetch.Fetcher {
	return fetch.New(config.FetchConfig{TimeoutSecs: 5, MaxRetries: 1, RatePerSecond: 100, UserAgent: "test"})
}

func TestWeatherAdapterParsesAlerts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "FL", r.URL.Query().Get("area"))
		w.Write([]byte(`{"features": [
			{"id": "https://api.weather.gov/alerts/1",
			 "properties": {"event": "Hurricane Warning", "headline": "Hurricane Warning for Miami-Dade",
			  "description": "Dangerous storm approaching", "areaDesc": "Miami-Dade, FL",
			  "effective": "2026-08-27T10:00:00Z", "severity": "Extreme"}},
			{"id": "https://api.weather.gov/alerts/2",
			 "properties": {"event": "Rip Current Statement", "headline": "Rip currents",
			  "areaDesc": "Broward, FL", "effective": "2026-08-27T10:00:00Z"}}
		]}`))
	}))
	defer srv.Close()

	a := NewWeatherAdapter(testFetcher(), WeatherCatalog{FeedURL: srv.URL, Areas: []string{"FL"}})
	signals, err := a.Fetch(context.Background())
	require.NoError(t, err)

	// the rip current statement carries no tracked category and is dropped
	require.Len(t, signals, 1)
	assert.Equal(t, model.CategoryHurricane, signals[0].Category)
	assert.Equal(t, "Hurricane Warning for Miami-Dade", signals[0].Title)
	assert.Equal(t, "Miami-Dade, FL", signals[0].Geography)
	assert.Equal(t, 2026, signals[0].ObservedAt.Year())
}

type stubSearch struct {
	results []websearch.Result
	err     error
}

func (s *stubSearch) Search(_ context.Context, _ string) ([]websearch.Result, error) {
	return s.results, s.err
}

func TestNewsAdapterInfersCategories(t *testing.T) {
	search := &stubSearch{results: []websearch.Result{
		{Title: "Sunshine Roofing expanding into Tampa", URL: "https://example.com/1", Snippet: "opening a new location"},
		{Title: "Local contractor acquired by national chain", URL: "https://example.com/2", Snippet: "merger completed"},
		{Title: "", URL: "https://example.com/3"},
	}}

	a := NewNewsAdapter(search, NewsCatalog{Queries: []string{"roofing florida"}})
	signals, err := a.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, signals, 2)
	assert.Equal(t, model.CategoryGrowth, signals[0].Category)
	assert.Equal(t, model.CategoryCompetitorShift, signals[1].Category)
}

func TestPermitsAdapter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"permit_id": "P-100", "description": "roof replacement", "city": "Orlando",
			"contractor": "Acme Roofing", "contractor_domain": "acmeroofing.com",
			"issued_at": "2026-08-25", "url": "https://permits.example/P-100"}]`))
	}))
	defer srv.Close()

	a := NewPermitsAdapter(testFetcher(), FeedCatalog{FeedURL: srv.URL})
	signals, err := a.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, signals, 1)
	assert.Equal(t, model.CategoryPermit, signals[0].Category)
	assert.Equal(t, "Orlando", signals[0].Geography)
	assert.Equal(t, "acmeroofing.com", signals[0].LeadDomain)
}

func TestReviewsAdapterRatingDrop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"business": "Acme Roofing", "domain": "acmeroofing.com", "location": "Miami, FL",
			 "rating_delta": -0.4, "review_delta": 12, "observed_at": "2026-08-26", "url": "https://reviews.example/1"},
			{"business": "Sunshine Roofing", "location": "Tampa, FL",
			 "rating_delta": 0.1, "review_delta": 30, "observed_at": "2026-08-26", "url": "https://reviews.example/2"}
		]`))
	}))
	defer srv.Close()

	a := NewReviewsAdapter(testFetcher(), FeedCatalog{FeedURL: srv.URL})
	signals, err := a.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, signals, 2)
	assert.Equal(t, model.CategoryReputationChange, signals[0].Category)
	assert.Equal(t, model.CategoryReview, signals[1].Category)
}

func TestForumAdapterSectionCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"listing_id": "cl-1", "section": "business_for_sale", "title": "Established roofing company for sale",
			 "body": "Owner retiring", "location": "Miami, FL", "posted_at": "2026-08-26", "url": "https://forum.example/cl-1"},
			{"listing_id": "cl-2", "section": "trades_jobs", "title": "Roofers wanted, crews forming",
			 "location": "Fort Lauderdale, FL", "posted_at": "2026-08-26", "url": "https://forum.example/cl-2"},
			{"listing_id": "cl-3", "section": "services", "title": "Roof repair and hurricane prep specials",
			 "body": "Storm surge season is here", "location": "Palm Beach, FL", "posted_at": "2026-08-26", "url": "https://forum.example/cl-3"},
			{"listing_id": "cl-4", "section": "services", "title": "", "url": "https://forum.example/cl-4"}
		]`))
	}))
	defer srv.Close()

	a := NewForumAdapter(testFetcher(), FeedCatalog{FeedURL: srv.URL})
	signals, err := a.Fetch(context.Background())
	require.NoError(t, err)

	// the untitled listing is dropped
	require.Len(t, signals, 3)
	assert.Equal(t, model.CategoryDistress, signals[0].Category)
	assert.Equal(t, model.CategoryJobPosting, signals[1].Category)
	assert.Equal(t, model.CategoryHurricane, signals[2].Category)
	assert.Equal(t, "Miami, FL", signals[0].Geography)
}

func TestFilingsAdapterKeywordClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"company": "National Builder Corp", "filing_type": "8-K", "region": "Florida",
			 "summary": "Announced expansion into new market with capital expenditure program",
			 "filed_at": "2026-08-25", "url": "https://filings.example/1"},
			{"company": "Coastal Retail Inc", "filing_type": "10-Q", "region": "Florida",
			 "summary": "Store closure program and workforce layoff in the southeast",
			 "filed_at": "2026-08-25", "url": "https://filings.example/2"},
			{"company": "Gulf Supply Co", "filing_type": "10-K", "region": "Florida",
			 "summary": "Annual report for fiscal year 2025",
			 "filed_at": "2026-08-25", "url": "https://filings.example/3"}
		]`))
	}))
	defer srv.Close()

	a := NewFilingsAdapter(testFetcher(), FeedCatalog{FeedURL: srv.URL})
	signals, err := a.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, signals, 3)
	assert.Equal(t, model.CategoryGrowth, signals[0].Category)
	assert.Equal(t, model.CategoryDistress, signals[1].Category)
	assert.Equal(t, model.CategoryRegulatory, signals[2].Category)
	assert.Equal(t, "National Builder Corp filed 8-K", signals[0].Title)
}

func TestSyntheticAdapterDeterministic(t *testing.T) {
	a := NewSyntheticAdapter()
	a.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }

	first, err := a.Fetch(context.Background())
	require.NoError(t, err)
	second, err := a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

type fakeAdapter struct {
	name    string
	signals []model.Signal
	err     error
	calls   int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(_ context.Context) ([]model.Signal, error) {
	f.calls++
	return f.signals, f.err
}

func newTestRegistry(adapters ...Adapter) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
		enabled:  make(map[string]bool),
	}
	for _, a := range adapters {
		r.Register(a)
		r.enabled[a.Name()] = true
	}
	return r
}

func demoSignal(title string) model.Signal {
	return model.Signal{
		Source:     "fake",
		Category:   model.CategoryGrowth,
		Title:      title,
		URL:        "https://example.com/" + title,
		ObservedAt: time.Now().UTC(),
	}
}

func TestRunCycleInsertsAndDedupes(t *testing.T) {
	st := testStore(t)
	fake := &fakeAdapter{name: "fake", signals: []model.Signal{demoSignal("a"), demoSignal("b")}}
	runner := NewRunner(newTestRegistry(fake), st, 5, 2, 0)

	results, err := runner.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Fetched)
	assert.Equal(t, 2, results[0].Inserted)

	// same batch again dedupes to zero inserts
	for i := range fake.signals {
		fake.signals[i].ID = ""
	}
	results, err = runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, results[0].Inserted)
}

func TestRunCycleOneFailureDoesNotAbort(t *testing.T) {
	st := testStore(t)
	bad := &fakeAdapter{name: "bad", err: eris.New("feed down")}
	good := &fakeAdapter{name: "good", signals: []model.Signal{demoSignal("c")}}
	runner := NewRunner(newTestRegistry(bad, good), st, 5, 2, 0)

	results, err := runner.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Error, "feed down")
	assert.Equal(t, 1, results[1].Inserted)
}

func TestRunCycleDisablesAfterFiveFailures(t *testing.T) {
	st := testStore(t)
	bad := &fakeAdapter{name: "bad", err: eris.New("feed down")}
	runner := NewRunner(newTestRegistry(bad), st, 5, 1, 0)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := runner.RunCycle(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, bad.calls)

	health, err := st.GetAdapterHealth(ctx, "bad")
	require.NoError(t, err)
	assert.True(t, health.Disabled)

	// disabled adapters are skipped, not invoked
	results, err := runner.RunCycle(ctx)
	require.NoError(t, err)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, 5, bad.calls)

	// operator reset re-enables the adapter
	require.NoError(t, st.ResetAdapter(ctx, "bad"))
	_, err = runner.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, bad.calls)
}

func TestRunCycleHonorsCacheTTL(t *testing.T) {
	st := testStore(t)
	fake := &fakeAdapter{name: "fake", signals: []model.Signal{demoSignal("d")}}
	runner := NewRunner(newTestRegistry(fake), st, 5, 1, time.Hour)

	ctx := context.Background()
	_, err := runner.RunCycle(ctx)
	require.NoError(t, err)
	results, err := runner.RunCycle(ctx)
	require.NoError(t, err)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, 1, fake.calls)
}

func TestLoadCatalogDefaults(t *testing.T) {
	cat, err := LoadCatalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Weather.FeedURL)

	cat, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cat.News.Queries)
}
