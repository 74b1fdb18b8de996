package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Harsh-eth/PostPilot/feed"
)

// Config holds all application configuration.
type Config struct {
	BackendURL         string         `yaml:"backend_url"`
	APIKey             string         `yaml:"api_key"`
	CacheCapacity      int            `yaml:"cache_capacity"`
	HistoryDBPath      string         `yaml:"history_db_path"`
	HistoryLimit       int            `yaml:"history_limit"`
	MaxAttempts        int            `yaml:"max_attempts"`
	BaseDelayMS        int            `yaml:"base_delay_ms"`
	RequestTimeoutSecs int            `yaml:"request_timeout_secs"`
	FeedPath           string         `yaml:"feed_path"`
	DebounceMS         int            `yaml:"debounce_ms"`
	BridgeAddr         string         `yaml:"bridge_addr"`
	HealthIntervalSecs int            `yaml:"health_interval_secs"`
	LogLevel           string         `yaml:"log_level"`
	Selectors          feed.Selectors `yaml:"selectors"`
}

// Load reads configuration from a YAML file and applies defaults. A
// missing file yields the defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("POSTPILOT_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// BaseDelay returns the retry backoff base as a duration.
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

// Debounce returns the rescan debounce as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// HealthInterval returns the liveness probe interval.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.HealthIntervalSecs) * time.Second
}

func applyDefaults(cfg *Config) {
	if cfg.BackendURL == "" {
		cfg.BackendURL = "http://localhost:8787"
	}
	if cfg.CacheCapacity == 0 {
		cfg.CacheCapacity = 100
	}
	if cfg.HistoryDBPath == "" {
		cfg.HistoryDBPath = "./postpilot.db"
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 5
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelayMS == 0 {
		cfg.BaseDelayMS = 500
	}
	if cfg.RequestTimeoutSecs == 0 {
		cfg.RequestTimeoutSecs = 60
	}
	if cfg.DebounceMS == 0 {
		cfg.DebounceMS = 250
	}
	if cfg.BridgeAddr == "" {
		cfg.BridgeAddr = "127.0.0.1:8788"
	}
	if cfg.HealthIntervalSecs == 0 {
		cfg.HealthIntervalSecs = 300
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	defaults := feed.DefaultSelectors()
	if cfg.Selectors.Item == "" {
		cfg.Selectors.Item = defaults.Item
	}
	if cfg.Selectors.Text == "" {
		cfg.Selectors.Text = defaults.Text
	}
	if cfg.Selectors.Author == "" {
		cfg.Selectors.Author = defaults.Author
	}
	if cfg.Selectors.Permalink == "" {
		cfg.Selectors.Permalink = defaults.Permalink
	}
	if cfg.Selectors.ActionGroup == "" {
		cfg.Selectors.ActionGroup = defaults.ActionGroup
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	if key := os.Getenv("POSTPILOT_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if backendURL := os.Getenv("POSTPILOT_BACKEND_URL"); backendURL != "" {
		cfg.BackendURL = backendURL
	}
	if dbPath := os.Getenv("POSTPILOT_DB"); dbPath != "" {
		cfg.HistoryDBPath = dbPath
	}
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend_url %q is not a valid URL", cfg.BackendURL)
	}
	if cfg.CacheCapacity < 0 {
		return fmt.Errorf("cache_capacity must not be negative, got %d", cfg.CacheCapacity)
	}
	if cfg.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative, got %d", cfg.HistoryLimit)
	}
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	return nil
}
