package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Navigation NavigationConfig `yaml:"navigation" mapstructure:"navigation"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Fallback   FallbackConfig   `yaml:"fallback" mapstructure:"fallback"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	Bind               string   `yaml:"bind" mapstructure:"bind"`
	Envelope           string   `yaml:"envelope" mapstructure:"envelope"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// BrowserConfig configures the headless browser.
type BrowserConfig struct {
	ExecPath          string `yaml:"exec_path" mapstructure:"exec_path"`
	Headless          bool   `yaml:"headless" mapstructure:"headless"`
	UserAgent         string `yaml:"user_agent" mapstructure:"user_agent"`
	LaunchTimeoutSecs int    `yaml:"launch_timeout_secs" mapstructure:"launch_timeout_secs"`
}

// NavigationConfig configures page loads.
type NavigationConfig struct {
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffMs        int     `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// PipelineConfig configures the aggregation run.
type PipelineConfig struct {
	// Sources lists adapters in merge priority order.
	Sources           []string `yaml:"sources" mapstructure:"sources"`
	MaxResults        int      `yaml:"max_results" mapstructure:"max_results"`
	SourceConcurrency int      `yaml:"source_concurrency" mapstructure:"source_concurrency"`
	Country           string   `yaml:"country" mapstructure:"country"`
}

// SourcesConfig holds per-adapter settings.
type SourcesConfig struct {
	MapDirectory     MapDirectoryConfig     `yaml:"map_directory" mapstructure:"map_directory"`
	ListingDirectory ListingDirectoryConfig `yaml:"listing_directory" mapstructure:"listing_directory"`
	SearchEngine     SearchEngineConfig     `yaml:"search_engine" mapstructure:"search_engine"`
}

// MapDirectoryConfig configures the map directory adapter.
type MapDirectoryConfig struct {
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	ScrollIterations int    `yaml:"scroll_iterations" mapstructure:"scroll_iterations"`
	ScrollPauseMs    int    `yaml:"scroll_pause_ms" mapstructure:"scroll_pause_ms"`
	DetailPages      bool   `yaml:"detail_pages" mapstructure:"detail_pages"`
}

// ListingDirectoryConfig configures the listing directory adapter.
type ListingDirectoryConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	MaxPages int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// SearchEngineConfig configures the search engine adapter.
type SearchEngineConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// EnrichConfig configures contact enrichment.
type EnrichConfig struct {
	Concurrency       int      `yaml:"concurrency" mapstructure:"concurrency"`
	BatchDelayMs      int      `yaml:"batch_delay_ms" mapstructure:"batch_delay_ms"`
	MaxAttempts       int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBackoffMs    int      `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	NavigationRetries int      `yaml:"navigation_retries" mapstructure:"navigation_retries"`
	VerifyMX          bool     `yaml:"verify_mx" mapstructure:"verify_mx"`
	DNSServers        []string `yaml:"dns_servers" mapstructure:"dns_servers"`
}

// FallbackConfig configures the search-based fallback resolver.
type FallbackConfig struct {
	Enabled         bool     `yaml:"enabled" mapstructure:"enabled"`
	MaxRecords      int      `yaml:"max_records" mapstructure:"max_records"`
	Trigger         string   `yaml:"trigger" mapstructure:"trigger"`
	SearchBaseURL   string   `yaml:"search_base_url" mapstructure:"search_base_url"`
	ExcludedDomains []string `yaml:"excluded_domains" mapstructure:"excluded_domains"`
}

// OutputConfig configures the persisted artifact.
type OutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LISTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.bind", "")
	v.SetDefault("server.envelope", "object")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 600)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.launch_timeout_secs", 30)
	v.SetDefault("navigation.timeout_secs", 60)
	v.SetDefault("navigation.max_retries", 3)
	v.SetDefault("navigation.backoff_ms", 2000)
	v.SetDefault("navigation.rate_per_sec", 0)
	v.SetDefault("navigation.breaker_threshold", 5)
	v.SetDefault("navigation.breaker_reset_secs", 60)
	v.SetDefault("pipeline.sources", []string{"map_directory", "listing_directory", "search_engine"})
	v.SetDefault("pipeline.max_results", 30)
	v.SetDefault("pipeline.source_concurrency", 1)
	v.SetDefault("pipeline.country", "Canada")
	v.SetDefault("sources.map_directory.base_url", "https://www.google.com")
	v.SetDefault("sources.map_directory.scroll_iterations", 5)
	v.SetDefault("sources.map_directory.scroll_pause_ms", 1500)
	v.SetDefault("sources.map_directory.detail_pages", false)
	v.SetDefault("sources.listing_directory.base_url", "https://www.yellowpages.ca")
	v.SetDefault("sources.listing_directory.max_pages", 3)
	v.SetDefault("sources.search_engine.base_url", "https://html.duckduckgo.com")
	v.SetDefault("enrich.concurrency", 5)
	v.SetDefault("enrich.batch_delay_ms", 2000)
	v.SetDefault("enrich.max_attempts", 3)
	v.SetDefault("enrich.retry_backoff_ms", 1000)
	v.SetDefault("enrich.navigation_retries", 2)
	v.SetDefault("enrich.verify_mx", false)
	v.SetDefault("enrich.dns_servers", []string{"8.8.8.8:53", "1.1.1.1:53"})
	v.SetDefault("fallback.enabled", true)
	v.SetDefault("fallback.max_records", 0)
	v.SetDefault("fallback.trigger", "any")
	v.SetDefault("fallback.search_base_url", "https://www.google.com")
	v.SetDefault("fallback.excluded_domains", []string{
		"yellowpages.ca", "yelp.com", "yelp.ca", "facebook.com", "tripadvisor.com",
		"tripadvisor.ca", "instagram.com", "linkedin.com", "youtube.com", "wikipedia.org",
		"googleusercontent.com", "gstatic.com",
	})
	v.SetDefault("output.path", "results.json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var knownSources = map[string]bool{
	"map_directory":     true,
	"listing_directory": true,
	"search_engine":     true,
}

// Validate checks the settings the given command mode depends on. Mode is
// "scrape" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "scrape":
		if strings.TrimSpace(c.Output.Path) == "" {
			errs = append(errs, "output.path is required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.Envelope != "object" && c.Server.Envelope != "array" {
			errs = append(errs, fmt.Sprintf("server.envelope must be object or array, got %q", c.Server.Envelope))
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(c.Pipeline.Sources) == 0 {
		errs = append(errs, "pipeline.sources must name at least one source")
	}
	seen := make(map[string]bool, len(c.Pipeline.Sources))
	for _, s := range c.Pipeline.Sources {
		if !knownSources[s] {
			errs = append(errs, fmt.Sprintf("pipeline.sources: unknown source %q", s))
		}
		if seen[s] {
			errs = append(errs, fmt.Sprintf("pipeline.sources: duplicate source %q", s))
		}
		seen[s] = true
	}
	if c.Pipeline.MaxResults < 1 {
		errs = append(errs, "pipeline.max_results must be >= 1")
	}
	if c.Pipeline.SourceConcurrency < 1 || c.Pipeline.SourceConcurrency > 3 {
		errs = append(errs, "pipeline.source_concurrency must be between 1 and 3")
	}
	if c.Navigation.TimeoutSecs < 1 {
		errs = append(errs, "navigation.timeout_secs must be >= 1")
	}
	if c.Navigation.MaxRetries < 1 {
		errs = append(errs, "navigation.max_retries must be >= 1")
	}
	if c.Navigation.BackoffMs < 0 || c.Navigation.RatePerSec < 0 {
		errs = append(errs, "navigation.backoff_ms and navigation.rate_per_sec must be >= 0")
	}
	if c.Enrich.Concurrency < 1 || c.Enrich.Concurrency > 20 {
		errs = append(errs, "enrich.concurrency must be between 1 and 20")
	}
	if c.Enrich.MaxAttempts < 1 {
		errs = append(errs, "enrich.max_attempts must be >= 1")
	}
	if c.Enrich.BatchDelayMs < 0 {
		errs = append(errs, "enrich.batch_delay_ms must be >= 0")
	}
	if c.Fallback.Trigger != "any" && c.Fallback.Trigger != "contact" {
		errs = append(errs, fmt.Sprintf("fallback.trigger must be any or contact, got %q", c.Fallback.Trigger))
	}
	if c.Fallback.MaxRecords < 0 {
		errs = append(errs, "fallback.max_records must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
