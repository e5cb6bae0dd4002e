package app

import (
	"context"
	"fmt"
	"log/slog"

	"bookwatch/internal/cache/redis"
	"bookwatch/internal/config"
	"bookwatch/internal/domain"
	"bookwatch/internal/notify"
)

// Dependencies bundles every domain-level dependency the watcher needs. It
// is constructed by Wire and torn down by the returned cleanup function.
// All Redis-backed fields are nil when redis.enabled is false; the watcher
// then runs standalone with in-process state only.
type Dependencies struct {
	SignalBus   domain.SignalBus
	BookCache   domain.BookCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// AlertLog is the durable whale-alert history, written via Redis
	// streams alongside the ephemeral pub/sub fan-out.
	AlertLog *redis.SignalBus

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		bus := redis.NewSignalBus(redisClient)
		deps.SignalBus = bus
		deps.AlertLog = bus
		deps.BookCache = redis.NewBookCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
