package source

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/signals-cli/internal/config"
	"github.com/sells-group/signals-cli/internal/fetch"
	"github.com/sells-group/signals-cli/pkg/websearch"
)

// Registry maps adapter names to their implementations.
type Registry struct {
	adapters map[string]Adapter
	order    []string // insertion order for deterministic iteration
	enabled  map[string]bool
}

// NewRegistry creates a registry populated with every adapter. The
// enabled list from config controls which adapters a cycle runs; an
// empty list enables all except synthetic.
func NewRegistry(cfg *config.Config, fetcher *fetch.Fetcher, search websearch.Client, cat Catalog) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
		enabled:  make(map[string]bool),
	}

	r.Register(NewWeatherAdapter(fetcher, cat.Weather))
	r.Register(NewNewsAdapter(search, cat.News))
	r.Register(NewPermitsAdapter(fetcher, cat.Permits))
	r.Register(NewJobsAdapter(fetcher, cat.Jobs))
	r.Register(NewReviewsAdapter(fetcher, cat.Reviews))
	r.Register(NewForumAdapter(fetcher, cat.Forum))
	r.Register(NewFilingsAdapter(fetcher, cat.Filings))
	r.Register(NewSyntheticAdapter())

	if len(cfg.Sources.Enabled) == 0 {
		for _, name := range r.order {
			r.enabled[name] = name != "synthetic"
		}
	} else {
		for _, name := range cfg.Sources.Enabled {
			r.enabled[name] = true
		}
	}
	return r
}

// Register adds an adapter to the registry.
func (r *Registry) Register(a Adapter) {
	name := a.Name()
	r.adapters[name] = a
	r.order = append(r.order, name)
}

// Get returns an adapter by name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, eris.Errorf("source: unknown adapter %q", name)
	}
	return a, nil
}

// Enabled reports whether an adapter is switched on in config.
func (r *Registry) Enabled(name string) bool {
	return r.enabled[name]
}

// Names returns all registered adapter names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
