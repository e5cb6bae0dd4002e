package domain

import (
	"context"
	"time"
)

// SignalBus is the pub/sub boundary between the engine and external
// consumers (the dashboard UI, loggers). Implemented by cache/redis.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan BusMessage, error)
}

// BusMessage is one message delivered by a bus subscription. Channel is the
// concrete channel the message was published on, which differs from the
// subscribed name when the subscription used a pattern.
type BusMessage struct {
	Channel string
	Payload []byte
}

// StreamMessage is one entry read back from a durable bus stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// BookCache stores the live book snapshot for a symbol so out-of-process
// consumers can read it without holding a feed subscription.
type BookCache interface {
	SetSnapshot(ctx context.Context, snap BookSnapshot) error
	GetSnapshot(ctx context.Context, symbol string) (BookSnapshot, error)
	GetBBO(ctx context.Context, symbol string) (bestBid, bestAsk float64, err error)
}

// RateLimiter throttles keyed operations, such as outbound alert
// notifications per symbol.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed mutual exclusion. Acquire returns an
// unlock function on success and ErrLockHeld when another party holds the
// lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
