// Package config defines the top-level configuration for the order book
// watcher and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BOOKWATCH_* environment variables.
type Config struct {
	Feed      FeedConfig      `toml:"feed"`
	Engine    EngineConfig    `toml:"engine"`
	Analytics AnalyticsConfig `toml:"analytics"`
	Alerts    AlertsConfig    `toml:"alerts"`
	Redis     RedisConfig     `toml:"redis"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	LogLevel  string          `toml:"log_level"`
}

// FeedConfig holds the market-data stream parameters.
type FeedConfig struct {
	BaseURL          string   `toml:"base_url"`
	Symbols          []string `toml:"symbols"`
	DepthLevels      int      `toml:"depth_levels"`
	MaxRetries       int      `toml:"max_retries"`
	BackoffBase      duration `toml:"backoff_base"`
	BackoffCap       duration `toml:"backoff_cap"`
	HandshakeTimeout duration `toml:"handshake_timeout"`
}

// EngineConfig holds the per-subscription processing parameters.
type EngineConfig struct {
	TickInterval duration `toml:"tick_interval"`
	TapeCapacity int      `toml:"tape_capacity"`
}

// AnalyticsConfig holds the thresholds for the derived signals.
type AnalyticsConfig struct {
	WallMultiplier    float64  `toml:"wall_multiplier"`
	WallTopN          int      `toml:"wall_top_n"`
	FlowWindow        duration `toml:"flow_window"`
	ImbalanceLevels   int      `toml:"imbalance_levels"`
	IcebergWindow     duration `toml:"iceberg_window"`
	IcebergMinRepeats int      `toml:"iceberg_min_repeats"`

	// WhaleThresholds maps symbol to the absolute trade quantity that
	// raises a whale alert. Symbols without an entry never alert.
	WhaleThresholds map[string]float64 `toml:"whale_thresholds"`
}

// AlertsConfig holds the alert surface and notification throttle parameters.
type AlertsConfig struct {
	Visible      int      `toml:"visible"`
	Retained     int      `toml:"retained"`
	TTL          duration `toml:"ttl"`
	NotifyLimit  int      `toml:"notify_limit"`
	NotifyWindow duration `toml:"notify_window"`
}

// RedisConfig holds Redis connection parameters. The bus, snapshot cache,
// and per-symbol publisher lock are all optional; with Enabled false the
// watcher runs standalone.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds the read API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "500ms", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			BaseURL:          "wss://stream.binance.com:9443",
			Symbols:          []string{"BTCUSDT"},
			DepthLevels:      20,
			MaxRetries:       5,
			BackoffBase:      duration{time.Second},
			BackoffCap:       duration{30 * time.Second},
			HandshakeTimeout: duration{15 * time.Second},
		},
		Engine: EngineConfig{
			TickInterval: duration{500 * time.Millisecond},
			TapeCapacity: 500,
		},
		Analytics: AnalyticsConfig{
			WallMultiplier:    3.0,
			WallTopN:          5,
			FlowWindow:        duration{5 * time.Second},
			ImbalanceLevels:   10,
			IcebergWindow:     duration{10 * time.Second},
			IcebergMinRepeats: 5,
			WhaleThresholds: map[string]float64{
				"BTCUSDT": 10,
			},
		},
		Alerts: AlertsConfig{
			Visible:      3,
			Retained:     10,
			TTL:          duration{5 * time.Second},
			NotifyLimit:  5,
			NotifyWindow: duration{time.Minute},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Server: ServerConfig{
			Enabled:     false,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"whale", "status"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed
	if c.Feed.BaseURL == "" {
		errs = append(errs, "feed: base_url must not be empty")
	} else if !strings.HasPrefix(c.Feed.BaseURL, "ws://") && !strings.HasPrefix(c.Feed.BaseURL, "wss://") {
		errs = append(errs, fmt.Sprintf("feed: base_url must be a ws:// or wss:// URL, got %q", c.Feed.BaseURL))
	}
	if len(c.Feed.Symbols) == 0 {
		errs = append(errs, "feed: at least one symbol is required")
	}
	for _, s := range c.Feed.Symbols {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, "feed: symbols must not contain empty entries")
			break
		}
	}
	if c.Feed.DepthLevels != 5 && c.Feed.DepthLevels != 10 && c.Feed.DepthLevels != 20 {
		errs = append(errs, fmt.Sprintf("feed: depth_levels must be 5, 10 or 20, got %d", c.Feed.DepthLevels))
	}
	if c.Feed.MaxRetries < 1 {
		errs = append(errs, "feed: max_retries must be >= 1")
	}
	if c.Feed.BackoffBase.Duration <= 0 {
		errs = append(errs, "feed: backoff_base must be positive")
	}
	if c.Feed.BackoffCap.Duration < c.Feed.BackoffBase.Duration {
		errs = append(errs, "feed: backoff_cap must not be below backoff_base")
	}

	// Engine
	if c.Engine.TickInterval.Duration <= 0 {
		errs = append(errs, "engine: tick_interval must be positive")
	}
	if c.Engine.TapeCapacity < 1 {
		errs = append(errs, "engine: tape_capacity must be >= 1")
	}

	// Analytics
	if c.Analytics.WallMultiplier <= 1 {
		errs = append(errs, "analytics: wall_multiplier must be > 1")
	}
	if c.Analytics.WallTopN < 1 {
		errs = append(errs, "analytics: wall_top_n must be >= 1")
	}
	if c.Analytics.FlowWindow.Duration <= 0 {
		errs = append(errs, "analytics: flow_window must be positive")
	}
	if c.Analytics.ImbalanceLevels < 1 {
		errs = append(errs, "analytics: imbalance_levels must be >= 1")
	}
	if c.Analytics.IcebergWindow.Duration <= 0 {
		errs = append(errs, "analytics: iceberg_window must be positive")
	}
	if c.Analytics.IcebergMinRepeats < 2 {
		errs = append(errs, "analytics: iceberg_min_repeats must be >= 2")
	}
	for sym, threshold := range c.Analytics.WhaleThresholds {
		if threshold <= 0 {
			errs = append(errs, fmt.Sprintf("analytics: whale_thresholds[%s] must be > 0", sym))
		}
	}

	// Alerts
	if c.Alerts.Visible < 1 {
		errs = append(errs, "alerts: visible must be >= 1")
	}
	if c.Alerts.Retained < c.Alerts.Visible {
		errs = append(errs, "alerts: retained must be >= visible")
	}
	if c.Alerts.TTL.Duration <= 0 {
		errs = append(errs, "alerts: ttl must be positive")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify — chat ID and token must be set together.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
