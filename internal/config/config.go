// Package config loads and validates webtools configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WEBTOOLS_SERVER_PORT.
const EnvPrefix = "WEBTOOLS"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Search    SearchConfig    `mapstructure:"search"`
	Batch     BatchConfig     `mapstructure:"batch"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// LoggingConfig toggles zap development features and the optional file sink.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	// File enables JSON logs to a rotating file in addition to stderr.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// HTTPConfig configures outbound requests.
type HTTPConfig struct {
	UserAgent              string `mapstructure:"user_agent"`
	AcceptLanguage         string `mapstructure:"accept_language"`
	MaxBodyBytes           int    `mapstructure:"max_body_bytes"`
	FetchTimeoutSeconds    int    `mapstructure:"fetch_timeout_seconds"`
	MetadataTimeoutSeconds int    `mapstructure:"metadata_timeout_seconds"`
	FeedTimeoutSeconds     int    `mapstructure:"feed_timeout_seconds"`
	SitemapTimeoutSeconds  int    `mapstructure:"sitemap_timeout_seconds"`
	SearchTimeoutSeconds   int    `mapstructure:"search_timeout_seconds"`
}

// ClassConfig is the initial budget of one rate-limit class.
type ClassConfig struct {
	MaxRequests int `mapstructure:"max_requests"`
	WindowMs    int `mapstructure:"window_ms"`
}

// Window returns the refill window as a duration.
func (c ClassConfig) Window() time.Duration {
	return time.Duration(c.WindowMs) * time.Millisecond
}

// RateLimitConfig holds the per-class budgets.
type RateLimitConfig struct {
	Fetch  ClassConfig `mapstructure:"fetch"`
	Search ClassConfig `mapstructure:"search"`
}

// SearchConfig configures the search proxy.
type SearchConfig struct {
	// DefaultBaseURL is used when a call does not name an endpoint.
	DefaultBaseURL   string `mapstructure:"default_base_url"`
	FetchConcurrency int    `mapstructure:"fetch_concurrency"`
}

// BatchConfig bounds batch fan-out.
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// Load builds a Config from disk/environment. An empty path reads
// config.{yaml,json,toml} from the working directory or /etc/webtools when
// present.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/webtools/")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_age_days", 7)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.accept_language", "en-US,en;q=0.9")
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("http.fetch_timeout_seconds", 15)
	v.SetDefault("http.metadata_timeout_seconds", 10)
	v.SetDefault("http.feed_timeout_seconds", 15)
	v.SetDefault("http.sitemap_timeout_seconds", 20)
	v.SetDefault("http.search_timeout_seconds", 15)
	v.SetDefault("ratelimit.fetch.max_requests", 20)
	v.SetDefault("ratelimit.fetch.window_ms", 60000)
	v.SetDefault("ratelimit.search.max_requests", 10)
	v.SetDefault("ratelimit.search.window_ms", 60000)
	v.SetDefault("search.default_base_url", "")
	v.SetDefault("search.fetch_concurrency", 3)
	v.SetDefault("batch.concurrency", 4)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0")
	}
	timeouts := map[string]int{
		"http.fetch_timeout_seconds":    c.HTTP.FetchTimeoutSeconds,
		"http.metadata_timeout_seconds": c.HTTP.MetadataTimeoutSeconds,
		"http.feed_timeout_seconds":     c.HTTP.FeedTimeoutSeconds,
		"http.sitemap_timeout_seconds":  c.HTTP.SitemapTimeoutSeconds,
		"http.search_timeout_seconds":   c.HTTP.SearchTimeoutSeconds,
	}
	for key, v := range timeouts {
		if v <= 0 {
			return fmt.Errorf("%s must be > 0", key)
		}
	}
	for name, class := range map[string]ClassConfig{
		"fetch":  c.RateLimit.Fetch,
		"search": c.RateLimit.Search,
	} {
		if class.MaxRequests <= 0 {
			return fmt.Errorf("ratelimit.%s.max_requests must be > 0", name)
		}
		if class.WindowMs <= 0 {
			return fmt.Errorf("ratelimit.%s.window_ms must be > 0", name)
		}
	}
	if c.Search.FetchConcurrency <= 0 {
		return fmt.Errorf("search.fetch_concurrency must be > 0")
	}
	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be > 0")
	}
	return nil
}

// Seconds converts a whole-second setting to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
