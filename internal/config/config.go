// Package config provides configuration management for the analytics server.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Policy defaults applied when the corresponding setting is unset.
const (
	// defaultPerShareThreshold is the magnitude below which an untagged
	// premium is assumed to be per-share (see normalize package).
	defaultPerShareThreshold = 50.0
	// defaultRateLimit is the vendor budget: requests per window.
	defaultRateLimit = 5
	// defaultRateWindow is the vendor's rolling rate-limit window.
	defaultRateWindow = "60s"
	// defaultBatchDeadline bounds all upstream fetches for one analysis.
	defaultBatchDeadline = "50s"
	// defaultCacheTTL is how long a fetched quote stays fresh.
	defaultCacheTTL = "5m"
	// defaultPort is the HTTP listen port.
	defaultPort = 8080
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Vendor      VendorConfig      `yaml:"vendor"`
	Fetch       FetchConfig       `yaml:"fetch"`
	Normalize   NormalizeConfig   `yaml:"normalize"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Server      ServerConfig      `yaml:"server"`
	Portfolio   PortfolioConfig   `yaml:"portfolio"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // demo | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// VendorConfig defines market-data vendor API settings.
type VendorConfig struct {
	Provider    string `yaml:"provider"` // tradier | mock
	APIKey      string `yaml:"api_key"`
	APIEndpoint string `yaml:"api_endpoint"`
	Sandbox     bool   `yaml:"sandbox"`
}

// FetchConfig defines quote-fetch budget and cache settings.
type FetchConfig struct {
	RateLimit     int    `yaml:"rate_limit"`     // requests per window
	RateWindow    string `yaml:"rate_window"`    // e.g. "60s"
	BatchDeadline string `yaml:"batch_deadline"` // e.g. "50s"
	CacheTTL      string `yaml:"cache_ttl"`      // e.g. "5m"
	CachePath     string `yaml:"cache_path"`     // optional JSON snapshot path
}

// NormalizeConfig defines normalization policy knobs.
type NormalizeConfig struct {
	PerShareThreshold float64 `yaml:"per_share_threshold"`
}

// StrategyConfig defines the classifier and roll-trigger thresholds. Zero
// values fall back to the strategy package defaults.
type StrategyConfig struct {
	RollPriceRatio     float64 `yaml:"roll_price_ratio"`
	RollDeltaThreshold float64 `yaml:"roll_delta_threshold"`
	MoneynessProxyPct  float64 `yaml:"moneyness_proxy_pct"`
	LetExpireDTE       int     `yaml:"let_expire_dte"`
	CallZoneRatio      float64 `yaml:"call_zone_ratio"`
	PutZoneRatio       float64 `yaml:"put_zone_ratio"`
	DefaultCallRatio   float64 `yaml:"default_call_ratio"`
	DefaultPutRatio    float64 `yaml:"default_put_ratio"`
}

// ServerConfig defines HTTP server settings.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// PortfolioConfig defines where raw extracted portfolio records are read
// from.
type PortfolioConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Environment.Mode == "" {
		c.Environment.Mode = "demo"
	}
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Vendor.Provider == "" {
		c.Vendor.Provider = "mock"
	}
	if c.Fetch.RateLimit == 0 {
		c.Fetch.RateLimit = defaultRateLimit
	}
	if c.Fetch.RateWindow == "" {
		c.Fetch.RateWindow = defaultRateWindow
	}
	if c.Fetch.BatchDeadline == "" {
		c.Fetch.BatchDeadline = defaultBatchDeadline
	}
	if c.Fetch.CacheTTL == "" {
		c.Fetch.CacheTTL = defaultCacheTTL
	}
	if c.Normalize.PerShareThreshold == 0 {
		c.Normalize.PerShareThreshold = defaultPerShareThreshold
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Portfolio.Path == "" {
		c.Portfolio.Path = "portfolio.json"
	}
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Environment.Mode != "demo" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'demo' or 'live'")
	}

	switch c.Vendor.Provider {
	case "mock":
	case "tradier":
		if c.Vendor.APIKey == "" {
			return fmt.Errorf("vendor.api_key is required for the tradier provider")
		}
	default:
		return fmt.Errorf("vendor.provider must be 'tradier' or 'mock'")
	}

	if c.Environment.Mode == "live" && c.Vendor.Provider == "mock" {
		return fmt.Errorf("environment.mode 'live' requires a real vendor provider")
	}

	if c.Fetch.RateLimit <= 0 {
		return fmt.Errorf("fetch.rate_limit must be > 0")
	}
	if _, err := time.ParseDuration(c.Fetch.RateWindow); err != nil {
		return fmt.Errorf("fetch.rate_window invalid: %w", err)
	}
	if _, err := time.ParseDuration(c.Fetch.BatchDeadline); err != nil {
		return fmt.Errorf("fetch.batch_deadline invalid: %w", err)
	}
	if _, err := time.ParseDuration(c.Fetch.CacheTTL); err != nil {
		return fmt.Errorf("fetch.cache_ttl invalid: %w", err)
	}

	if c.Normalize.PerShareThreshold <= 0 {
		return fmt.Errorf("normalize.per_share_threshold must be > 0")
	}

	if c.Strategy.RollPriceRatio < 0 || (c.Strategy.RollPriceRatio > 0 && c.Strategy.RollPriceRatio <= 1) {
		return fmt.Errorf("strategy.roll_price_ratio must be > 1 when set")
	}
	if c.Strategy.RollDeltaThreshold < 0 || c.Strategy.RollDeltaThreshold > 1 {
		return fmt.Errorf("strategy.roll_delta_threshold must be in [0,1]")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0,65535]")
	}

	if c.Portfolio.Path == "" {
		return fmt.Errorf("portfolio.path is required")
	}

	return nil
}

// IsDemo returns true when the server runs against the mock provider.
func (c *Config) IsDemo() bool {
	return c.Environment.Mode == "demo"
}

// RateWindowDuration returns the parsed vendor rate-limit window.
func (c *Config) RateWindowDuration() time.Duration {
	return c.duration(c.Fetch.RateWindow, 60*time.Second)
}

// BatchDeadlineDuration returns the parsed overall fetch deadline.
func (c *Config) BatchDeadlineDuration() time.Duration {
	return c.duration(c.Fetch.BatchDeadline, 50*time.Second)
}

// CacheTTLDuration returns the parsed quote cache TTL.
func (c *Config) CacheTTLDuration() time.Duration {
	return c.duration(c.Fetch.CacheTTL, 5*time.Minute)
}

func (c *Config) duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
