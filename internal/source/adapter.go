// Package source defines the signal adapters, their registry, and the
// cycle runner that pulls raw signals from every enabled source.
package source

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/signals-cli/internal/model"
)

// Adapter produces raw signals from one upstream feed. Implementations
// must be safe to call from concurrent cycles.
type Adapter interface {
	// Name is the stable identifier used for health tracking and config.
	Name() string
	// Fetch pulls the current batch of signals from the source.
	Fetch(ctx context.Context) ([]model.Signal, error)
}

// Catalog holds per-adapter feed configuration, loaded from sources.yaml.
type Catalog struct {
	Weather WeatherCatalog `yaml:"weather"`
	News    NewsCatalog    `yaml:"news"`
	Permits FeedCatalog    `yaml:"permits"`
	Jobs    FeedCatalog    `yaml:"jobs"`
	Reviews FeedCatalog    `yaml:"reviews"`
	Forum   FeedCatalog    `yaml:"forum"`
	Filings FeedCatalog    `yaml:"filings"`
}

// WeatherCatalog configures the weather alert adapter.
type WeatherCatalog struct {
	FeedURL string   `yaml:"feed_url"`
	Areas   []string `yaml:"areas"`
}

// NewsCatalog configures the news search adapter.
type NewsCatalog struct {
	Queries []string `yaml:"queries"`
}

// FeedCatalog configures a plain JSON feed adapter.
type FeedCatalog struct {
	FeedURL string `yaml:"feed_url"`
}

// DefaultCatalog returns the built-in feed configuration used when no
// sources.yaml is present.
func DefaultCatalog() Catalog {
	return Catalog{
		Weather: WeatherCatalog{
			FeedURL: "https://api.weather.gov/alerts/active",
			Areas:   []string{"FL"},
		},
		News: NewsCatalog{
			Queries: []string{
				"roofing company expansion Florida",
				"roofing contractor acquired Florida",
			},
		},
	}
}

// LoadCatalog reads a catalog from a YAML file. A missing path returns
// the default catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultCatalog(), nil
		}
		return Catalog{}, eris.Wrapf(err, "source: read catalog %s", path)
	}

	cat := DefaultCatalog()
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalog{}, eris.Wrapf(err, "source: parse catalog %s", path)
	}
	return cat, nil
}
