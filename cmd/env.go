package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signals-cli/internal/enrich"
	"github.com/sells-group/signals-cli/internal/fetch"
	"github.com/sells-group/signals-cli/internal/metrics"
	"github.com/sells-group/signals-cli/internal/outreach"
	"github.com/sells-group/signals-cli/internal/pipeline"
	"github.com/sells-group/signals-cli/internal/scoring"
	"github.com/sells-group/signals-cli/internal/source"
	"github.com/sells-group/signals-cli/internal/store"
	"github.com/sells-group/signals-cli/pkg/websearch"
)

// env holds the wired application graph shared by the subcommands.
type env struct {
	Store     store.Store
	Gate      *outreach.Gate
	Engine    *enrich.Engine
	Runner    *source.Runner
	Pipeline  *pipeline.Pipeline
	Collector *metrics.Collector
}

func (e *env) Close() {
	_ = e.Store.Close()
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "signals.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	fetcher := fetch.New(cfg.Fetch)

	searchOpts := []websearch.Option{
		websearch.WithBreaker(cfg.Search.BreakerThreshold,
			time.Duration(cfg.Search.BreakerResetSecs)*time.Second),
	}
	if cfg.Search.BaseURL != "" {
		searchOpts = append(searchOpts, websearch.WithBaseURL(cfg.Search.BaseURL))
	}
	if cfg.Fetch.UserAgent != "" {
		searchOpts = append(searchOpts, websearch.WithUserAgent(cfg.Fetch.UserAgent))
	}
	search := websearch.New(searchOpts...)

	catalog, err := source.LoadCatalog(cfg.Sources.CatalogPath)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load source catalog")
	}
	registry := source.NewRegistry(cfg, fetcher, search, catalog)
	runner := source.NewRunner(registry, st, cfg.Sources.FailureLimit, cfg.Pipeline.Workers,
		time.Duration(cfg.Sources.CacheTTLMinutes)*time.Minute)

	scorer := scoring.New(cfg.Scoring)

	gate := outreach.NewGate(st, outreach.NewDeliverer(cfg.Outreach.EmailMode), cfg.Outreach)

	engine := enrich.NewEngine(
		st, fetcher,
		enrich.NewDomainDiscoverer(fetcher, search, st),
		enrich.NewEmailDiscoverer(fetcher, cfg.Enrich.VerifyMX),
		enrich.NewPhoneExtractor(fetcher),
		gate,
		cfg.Enrich,
		cfg.Pipeline.Workers,
	)

	pipe := pipeline.New(st, runner, scorer, engine, gate, cfg.Pipeline)

	return &env{
		Store:     st,
		Gate:      gate,
		Engine:    engine,
		Runner:    runner,
		Pipeline:  pipe,
		Collector: metrics.NewCollector(st, pipe.EffectiveMode),
	}, nil
}
