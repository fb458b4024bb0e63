package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Enrich   EnrichConfig   `yaml:"enrich" mapstructure:"enrich"`
	Outreach OutreachConfig `yaml:"outreach" mapstructure:"outreach"`
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PipelineConfig holds cycle-level knobs.
type PipelineConfig struct {
	Mode             string `yaml:"mode" mapstructure:"mode"`
	CycleTimeoutSecs int    `yaml:"cycle_timeout_secs" mapstructure:"cycle_timeout_secs"`
	Workers          int    `yaml:"workers" mapstructure:"workers"`
}

// ScoringConfig configures signal scoring and promotion.
type ScoringConfig struct {
	Threshold          float64  `yaml:"threshold" mapstructure:"threshold"`
	RecencyHorizonDays int      `yaml:"recency_horizon_days" mapstructure:"recency_horizon_days"`
	TargetRegions      []string `yaml:"target_regions" mapstructure:"target_regions"`
	NicheTerms         []string `yaml:"niche_terms" mapstructure:"niche_terms"`
}

// EnrichConfig configures the enrichment state machine.
type EnrichConfig struct {
	AttemptBudget int  `yaml:"attempt_budget" mapstructure:"attempt_budget"`
	StalenessDays int  `yaml:"staleness_days" mapstructure:"staleness_days"`
	MaxPerCycle   int  `yaml:"max_per_cycle" mapstructure:"max_per_cycle"`
	VerifyMX      bool `yaml:"verify_mx" mapstructure:"verify_mx"`
}

// OutreachConfig configures the outreach gate and delivery routing.
type OutreachConfig struct {
	Mode          string   `yaml:"mode" mapstructure:"mode"` // AUTO or REVIEW
	EmailMode     string   `yaml:"email_mode" mapstructure:"email_mode"`
	CustomerEmail string   `yaml:"customer_email" mapstructure:"customer_email"`
	DoNotContact  string   `yaml:"do_not_contact" mapstructure:"do_not_contact"`
	SelfDomains   []string `yaml:"self_domains" mapstructure:"self_domains"`
	SelfNames     []string `yaml:"self_names" mapstructure:"self_names"`
	MaxPerCycle   int      `yaml:"max_per_cycle" mapstructure:"max_per_cycle"`
	MaxPerHour    int      `yaml:"max_per_hour" mapstructure:"max_per_hour"`
}

// SourcesConfig configures signal source adapters.
type SourcesConfig struct {
	CatalogPath     string   `yaml:"catalog_path" mapstructure:"catalog_path"`
	Enabled         []string `yaml:"enabled" mapstructure:"enabled"`
	CacheTTLMinutes int      `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
	FailureLimit    int      `yaml:"failure_limit" mapstructure:"failure_limit"`
}

// FetchConfig configures the shared HTTP fetcher.
type FetchConfig struct {
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig configures the web-search fallback client.
type SearchConfig struct {
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ServerConfig configures the operator control surface.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path falls
// back to config.yaml in the working directory, which may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("SIGNALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("pipeline.mode", "full")
	v.SetDefault("pipeline.cycle_timeout_secs", 600)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("scoring.threshold", 65)
	v.SetDefault("scoring.recency_horizon_days", 14)
	v.SetDefault("enrich.attempt_budget", 3)
	v.SetDefault("enrich.staleness_days", 30)
	v.SetDefault("enrich.max_per_cycle", 5)
	v.SetDefault("enrich.verify_mx", false)
	v.SetDefault("outreach.mode", "REVIEW")
	v.SetDefault("outreach.email_mode", "dry_run")
	v.SetDefault("outreach.max_per_cycle", 10)
	v.SetDefault("outreach.max_per_hour", 50)
	v.SetDefault("sources.cache_ttl_minutes", 30)
	v.SetDefault("sources.failure_limit", 5)
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_second", 2)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; SignalsBot/1.0)")
	v.SetDefault("search.base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.breaker_threshold", 3)
	v.SetDefault("search.breaker_reset_secs", 300)

	// Read config file (optional unless a path was given)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
