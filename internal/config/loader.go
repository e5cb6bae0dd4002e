package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BOOKWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BOOKWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.BaseURL, "BOOKWATCH_FEED_BASE_URL")
	setStringSlice(&cfg.Feed.Symbols, "BOOKWATCH_FEED_SYMBOLS")
	setInt(&cfg.Feed.DepthLevels, "BOOKWATCH_FEED_DEPTH_LEVELS")
	setInt(&cfg.Feed.MaxRetries, "BOOKWATCH_FEED_MAX_RETRIES")
	setDuration(&cfg.Feed.BackoffBase, "BOOKWATCH_FEED_BACKOFF_BASE")
	setDuration(&cfg.Feed.BackoffCap, "BOOKWATCH_FEED_BACKOFF_CAP")
	setDuration(&cfg.Feed.HandshakeTimeout, "BOOKWATCH_FEED_HANDSHAKE_TIMEOUT")

	// ── Engine ──
	setDuration(&cfg.Engine.TickInterval, "BOOKWATCH_ENGINE_TICK_INTERVAL")
	setInt(&cfg.Engine.TapeCapacity, "BOOKWATCH_ENGINE_TAPE_CAPACITY")

	// ── Analytics ──
	setFloat64(&cfg.Analytics.WallMultiplier, "BOOKWATCH_ANALYTICS_WALL_MULTIPLIER")
	setInt(&cfg.Analytics.WallTopN, "BOOKWATCH_ANALYTICS_WALL_TOP_N")
	setDuration(&cfg.Analytics.FlowWindow, "BOOKWATCH_ANALYTICS_FLOW_WINDOW")
	setInt(&cfg.Analytics.ImbalanceLevels, "BOOKWATCH_ANALYTICS_IMBALANCE_LEVELS")
	setDuration(&cfg.Analytics.IcebergWindow, "BOOKWATCH_ANALYTICS_ICEBERG_WINDOW")
	setInt(&cfg.Analytics.IcebergMinRepeats, "BOOKWATCH_ANALYTICS_ICEBERG_MIN_REPEATS")

	// ── Alerts ──
	setInt(&cfg.Alerts.Visible, "BOOKWATCH_ALERTS_VISIBLE")
	setInt(&cfg.Alerts.Retained, "BOOKWATCH_ALERTS_RETAINED")
	setDuration(&cfg.Alerts.TTL, "BOOKWATCH_ALERTS_TTL")
	setInt(&cfg.Alerts.NotifyLimit, "BOOKWATCH_ALERTS_NOTIFY_LIMIT")
	setDuration(&cfg.Alerts.NotifyWindow, "BOOKWATCH_ALERTS_NOTIFY_WINDOW")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BOOKWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BOOKWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BOOKWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BOOKWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BOOKWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BOOKWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BOOKWATCH_REDIS_TLS_ENABLED")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BOOKWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BOOKWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BOOKWATCH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BOOKWATCH_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BOOKWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BOOKWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BOOKWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BOOKWATCH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "BOOKWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
