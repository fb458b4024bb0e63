package source

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/signals-cli/internal/store"
)

// AdapterResult summarizes one adapter's part of a cycle.
type AdapterResult struct {
	Adapter  string `json:"adapter"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	Skipped  bool   `json:"skipped"`
	Error    string `json:"error,omitempty"`
}

// Runner executes one ingestion pass over all enabled adapters. Adapter
// failures are recorded against health but never abort the cycle.
type Runner struct {
	registry     *Registry
	store        store.Store
	failureLimit int
	workers      int
	cacheTTL     time.Duration

	mu        sync.Mutex
	lastFetch map[string]time.Time
}

// NewRunner builds a Runner. failureLimit is the consecutive-failure
// count that disables an adapter until reset.
func NewRunner(reg *Registry, st store.Store, failureLimit, workers int, cacheTTL time.Duration) *Runner {
	if workers <= 0 {
		workers = 4
	}
	return &Runner{
		registry:     reg,
		store:        st,
		failureLimit: failureLimit,
		workers:      workers,
		cacheTTL:     cacheTTL,
		lastFetch:    make(map[string]time.Time),
	}
}

// RunCycle fetches from every enabled adapter concurrently and persists
// the deduplicated signals. Returns per-adapter results in registration
// order.
func (r *Runner) RunCycle(ctx context.Context) ([]AdapterResult, error) {
	names := r.registry.Names()
	results := make([]AdapterResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, name := range names {
		g.Go(func() error {
			results[i] = r.runAdapter(gctx, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (r *Runner) runAdapter(ctx context.Context, name string) AdapterResult {
	res := AdapterResult{Adapter: name}
	log := zap.L().With(zap.String("adapter", name))

	if !r.registry.Enabled(name) {
		res.Skipped = true
		return res
	}

	health, err := r.store.GetAdapterHealth(ctx, name)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if health.Disabled {
		log.Warn("adapter disabled, skipping",
			zap.Int("consecutive_failures", health.ConsecutiveFailures))
		res.Skipped = true
		return res
	}

	if r.withinCacheTTL(name) {
		log.Debug("within cache ttl, skipping fetch")
		res.Skipped = true
		return res
	}

	adapter, err := r.registry.Get(name)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	signals, fetchErr := adapter.Fetch(ctx)

	errMsg := ""
	if fetchErr != nil {
		errMsg = fetchErr.Error()
	}
	health, err = r.store.RecordAdapterResult(ctx, name, errMsg, r.failureLimit)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	if fetchErr != nil {
		log.Warn("adapter fetch failed",
			zap.Int("consecutive_failures", health.ConsecutiveFailures),
			zap.Bool("disabled", health.Disabled),
			zap.Error(fetchErr))
		res.Error = fetchErr.Error()
		return res
	}

	r.markFetched(name)
	res.Fetched = len(signals)

	for i := range signals {
		inserted, err := r.store.InsertSignal(ctx, &signals[i])
		if err != nil {
			log.Warn("insert signal failed", zap.String("title", signals[i].Title), zap.Error(err))
			continue
		}
		if inserted {
			res.Inserted++
		}
	}

	log.Info("adapter cycle complete",
		zap.Int("fetched", res.Fetched),
		zap.Int("inserted", res.Inserted))
	return res
}

func (r *Runner) withinCacheTTL(name string) bool {
	if r.cacheTTL <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.lastFetch[name]
	return ok && time.Since(last) < r.cacheTTL
}

func (r *Runner) markFetched(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFetch[name] = time.Now()
}
