package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Costlens   CostlensConfig   `yaml:"costlens"`
	Channels   ChannelsConfig   `yaml:"channels"`
	Feed       FeedConfig       `yaml:"feed"`
	Parameters ParametersConfig `yaml:"parameters"`
	Form       FormConfig       `yaml:"form"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type CostlensConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ChannelsConfig struct {
	EventBuffer int `yaml:"event_buffer"`
	EmitBuffer  int `yaml:"emit_buffer"`
}

// FeedConfig describes the persistent connection to the analytics service.
// The endpoint always comes from deployment configuration, never from code.
type FeedConfig struct {
	URL              string          `yaml:"url"`
	HandshakeTimeout time.Duration   `yaml:"handshake_timeout"`
	ReadTimeout      time.Duration   `yaml:"read_timeout"`
	PingInterval     time.Duration   `yaml:"ping_interval"`
	WriteTimeout     time.Duration   `yaml:"write_timeout"`
	Reconnect        ReconnectConfig `yaml:"reconnect"`
	RateLimit        RateLimitConfig `yaml:"rate_limit"`
}

type ReconnectConfig struct {
	Delay time.Duration `yaml:"delay"`
}

// RateLimitConfig paces dial attempts against the analytics service.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

// ParametersConfig holds the initial simulation parameters pushed into the
// parameter store at startup.
type ParametersConfig struct {
	Exchange   string  `yaml:"exchange"`
	Symbol     string  `yaml:"symbol"`
	OrderType  string  `yaml:"order_type"`
	Quantity   float64 `yaml:"quantity"`
	Volatility float64 `yaml:"volatility"`
	FeeTier    string  `yaml:"fee_tier"`
}

// FormConfig enumerates the values the edit form offers. The enumeration is
// static configuration; the client never derives it from server data.
type FormConfig struct {
	Exchanges  []string `yaml:"exchanges"`
	Symbols    []string `yaml:"symbols"`
	OrderTypes []string `yaml:"order_types"`
	FeeTiers   []string `yaml:"fee_tiers"`
}

type DashboardConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Address         string        `yaml:"address"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	LogHistory      int           `yaml:"log_history"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Region        string `yaml:"region"`
	Namespace     string `yaml:"namespace"`
	DashboardName string `yaml:"dashboard_name"`
}

var configEnvPaths = map[string]string{
	environmentProduction: "config/config.production.yml",
	environmentStaging:    "config/config.staging.yml",
}

const defaultConfigPath = "config/config.yml"

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, defaultConfigPath, configEnvPaths)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Channels: ChannelsConfig{
			EventBuffer: 256,
			EmitBuffer:  64,
		},
		Feed: FeedConfig{
			HandshakeTimeout: 30 * time.Second,
			ReadTimeout:      60 * time.Second,
			PingInterval:     30 * time.Second,
			WriteTimeout:     5 * time.Second,
			Reconnect:        ReconnectConfig{Delay: 5 * time.Second},
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override connection settings from environment variables if available
	if v := os.Getenv("ANALYTICS_WS_URL"); v != "" {
		config.Feed.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("DASHBOARD_ADDR"); v != "" {
		config.Dashboard.Address = strings.TrimSpace(v)
	}
	if config.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Costlens.Name == "" {
		return fmt.Errorf("costlens.name is required")
	}

	if cfg.Costlens.Version == "" {
		return fmt.Errorf("costlens.version is required")
	}

	if cfg.Channels.EventBuffer <= 0 {
		return fmt.Errorf("channels.event_buffer must be greater than 0")
	}
	if cfg.Channels.EmitBuffer <= 0 {
		return fmt.Errorf("channels.emit_buffer must be greater than 0")
	}

	if cfg.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if !isValidFeedURL(cfg.Feed.URL) {
		return fmt.Errorf("feed.url '%s' is invalid; expected a ws:// or wss:// endpoint", cfg.Feed.URL)
	}
	if IsProductionLike(AppEnvironment()) && !strings.HasPrefix(cfg.Feed.URL, "wss://") {
		return fmt.Errorf("feed.url must use wss:// in %s", AppEnvironment())
	}
	if cfg.Feed.Reconnect.Delay <= 0 {
		return fmt.Errorf("feed.reconnect.delay must be greater than 0")
	}

	if cfg.Parameters.Quantity <= 0 {
		return fmt.Errorf("parameters.quantity must be greater than 0")
	}
	if cfg.Parameters.Volatility <= 0 || cfg.Parameters.Volatility > 2 {
		return fmt.Errorf("parameters.volatility must be in (0, 2]")
	}
	if !contains(cfg.Form.OrderTypes, cfg.Parameters.OrderType) {
		return fmt.Errorf("parameters.order_type '%s' is not in form.order_types", cfg.Parameters.OrderType)
	}
	if !contains(cfg.Form.FeeTiers, cfg.Parameters.FeeTier) {
		return fmt.Errorf("parameters.fee_tier '%s' is not in form.fee_tiers", cfg.Parameters.FeeTier)
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Region == "" {
		return fmt.Errorf("metrics.cloudwatch.region is required when CloudWatch is enabled")
	}

	return nil
}

func isValidFeedURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Host == "" {
		return false
	}
	return parsed.Scheme == "ws" || parsed.Scheme == "wss"
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
