package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bookwatch/internal/alerts"
	"bookwatch/internal/analytics"
	"bookwatch/internal/config"
	"bookwatch/internal/domain"
	"bookwatch/internal/engine"
	"bookwatch/internal/feed"
	"bookwatch/internal/notify"
	"bookwatch/internal/server"
	"bookwatch/internal/server/handler"
	"bookwatch/internal/server/ws"
)

// symbolLockTTL bounds how long a crashed watcher can hold a symbol's
// publisher lock before another instance may take over.
const symbolLockTTL = time.Hour

// alertLogStream is the Redis stream holding the durable whale-alert
// history.
const alertLogStream = "bookwatch:alerts:log"

// watch builds the engine and runs one subscription per configured symbol
// until the context is cancelled.
func (a *App) watch(ctx context.Context, deps *Dependencies) error {
	eng := engine.New(engineConfig(a.cfg), engine.Deps{
		Bus:      deps.SignalBus,
		Cache:    deps.BookCache,
		OnAlert:  a.alertHook(ctx, deps),
		OnStatus: a.statusHook(ctx, deps),
	}, a.logger)
	defer eng.Close()

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}

	for _, symbol := range a.cfg.Feed.Symbols {
		g.Go(func() error {
			if deps.LockManager != nil {
				unlock, err := deps.LockManager.Acquire(ctx, "symbol:"+symbol, symbolLockTTL)
				if errors.Is(err, domain.ErrLockHeld) {
					a.logger.WarnContext(ctx, "symbol already watched by another instance, skipping",
						slog.String("symbol", symbol))
					return nil
				}
				if err != nil {
					return err
				}
				defer unlock()
			}

			sub, err := eng.Subscribe(ctx, symbol)
			if err != nil {
				return err
			}
			defer sub.Close()

			<-ctx.Done()
			return ctx.Err()
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startServer runs the read API and, when a bus is wired, the WebSocket
// bridge for live reports.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Symbols:   a.cfg.Feed.Symbols,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			err := hub.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimiter: deps.RateLimiter,
	}, server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Status: handler.NewStatusHandler(a.cfg.Feed.Symbols, time.Now().UTC()),
		Book:   handler.NewBookHandler(deps.BookCache, a.logger),
		Alerts: handler.NewAlertsHandler(alertStream(deps), a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// alertStream avoids handing the handler a typed-nil interface when Redis is
// disabled.
func alertStream(deps *Dependencies) handler.StreamReader {
	if deps.AlertLog == nil {
		return nil
	}
	return deps.AlertLog
}

// alertHook routes a whale alert to the operator channels and the durable
// history, throttled per symbol when a rate limiter is wired.
func (a *App) alertHook(ctx context.Context, deps *Dependencies) func(domain.WhaleAlert) {
	return func(alert domain.WhaleAlert) {
		if deps.AlertLog != nil {
			if payload, err := json.Marshal(alert); err == nil {
				if err := deps.AlertLog.StreamAppend(ctx, alertLogStream, payload); err != nil {
					a.logger.WarnContext(ctx, "alert history append failed",
						slog.String("error", err.Error()))
				}
			}
		}

		if deps.RateLimiter != nil {
			allowed, err := deps.RateLimiter.Allow(ctx, "notify:whale:"+alert.Symbol,
				a.cfg.Alerts.NotifyLimit, a.cfg.Alerts.NotifyWindow.Duration)
			if err != nil {
				a.logger.WarnContext(ctx, "notify rate limit check failed",
					slog.String("error", err.Error()))
			} else if !allowed {
				a.logger.DebugContext(ctx, "whale notification throttled",
					slog.String("symbol", alert.Symbol))
				return
			}
		}

		title, message := notify.FormatWhale(alert)
		if err := deps.Notifier.Notify(ctx, notify.EventWhale, title, message); err != nil {
			a.logger.WarnContext(ctx, "whale notification failed",
				slog.String("error", err.Error()))
		}
	}
}

// statusHook notifies operators when a feed gives up reconnecting. Routine
// transitions are logged by the engine and skipped here.
func (a *App) statusHook(ctx context.Context, deps *Dependencies) func(string, domain.Status) {
	return func(symbol string, status domain.Status) {
		if status != domain.StatusError {
			return
		}
		title, message := notify.FormatStatus(symbol, status)
		if err := deps.Notifier.Notify(ctx, notify.EventStatus, title, message); err != nil {
			a.logger.WarnContext(ctx, "status notification failed",
				slog.String("error", err.Error()))
		}
	}
}

// engineConfig maps the file/env configuration onto the engine's knobs.
func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Feed: feed.Config{
			BaseURL:          cfg.Feed.BaseURL,
			DepthLevels:      cfg.Feed.DepthLevels,
			MaxRetries:       cfg.Feed.MaxRetries,
			BackoffBase:      cfg.Feed.BackoffBase.Duration,
			BackoffCap:       cfg.Feed.BackoffCap.Duration,
			HandshakeTimeout: cfg.Feed.HandshakeTimeout.Duration,
		},
		TickInterval:    cfg.Engine.TickInterval.Duration,
		TapeCapacity:    cfg.Engine.TapeCapacity,
		FlowWindow:      cfg.Analytics.FlowWindow.Duration,
		ImbalanceLevels: cfg.Analytics.ImbalanceLevels,
		Walls: analytics.WallConfig{
			Multiplier: cfg.Analytics.WallMultiplier,
			TopN:       cfg.Analytics.WallTopN,
		},
		Iceberg: analytics.IcebergConfig{
			Window:     cfg.Analytics.IcebergWindow.Duration,
			MinRepeats: cfg.Analytics.IcebergMinRepeats,
		},
		Alerts: alerts.Config{
			Visible:  cfg.Alerts.Visible,
			Retained: cfg.Alerts.Retained,
			TTL:      cfg.Alerts.TTL.Duration,
		},
		WhaleThresholds: cfg.Analytics.WhaleThresholds,
	}
}
