package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"bookwatch/internal/domain"
)

// BookCache implements domain.BookCache using Redis hashes per symbol.
//
// Key schema:
//
//	book:{symbol}:bids  - hash mapping price -> quantity
//	book:{symbol}:asks  - hash mapping price -> quantity
//	book:{symbol}:bbo   - hash with "bid", "ask" and "last" fields
//	book:{symbol}:meta  - hash with "ts" field (snapshot timestamp)
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying()}
}

func bookBidsKey(symbol string) string { return "book:" + symbol + ":bids" }
func bookAsksKey(symbol string) string { return "book:" + symbol + ":asks" }
func bookBBOKey(symbol string) string  { return "book:" + symbol + ":bbo" }
func bookMetaKey(symbol string) string { return "book:" + symbol + ":meta" }

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// SetSnapshot atomically replaces the cached book for the snapshot's symbol.
// It clears existing data and repopulates the level hashes, the BBO hash and
// the metadata hash in one transaction.
func (bc *BookCache) SetSnapshot(ctx context.Context, snap domain.BookSnapshot) error {
	bidsKey := bookBidsKey(snap.Symbol)
	asksKey := bookAsksKey(snap.Symbol)
	bboKey := bookBBOKey(snap.Symbol)
	metaKey := bookMetaKey(snap.Symbol)

	pipe := bc.rdb.TxPipeline()

	pipe.Del(ctx, bidsKey, asksKey, bboKey, metaKey)

	for price, qty := range snap.Bids {
		pipe.HSet(ctx, bidsKey, formatFloat(price), formatFloat(qty))
	}
	for price, qty := range snap.Asks {
		pipe.HSet(ctx, asksKey, formatFloat(price), formatFloat(qty))
	}

	if snap.BestBid > 0 {
		pipe.HSet(ctx, bboKey, "bid", formatFloat(snap.BestBid))
	}
	if snap.BestAsk > 0 {
		pipe.HSet(ctx, bboKey, "ask", formatFloat(snap.BestAsk))
	}
	if snap.LastPrice > 0 {
		pipe.HSet(ctx, bboKey, "last", formatFloat(snap.LastPrice))
	}

	pipe.HSet(ctx, metaKey, "ts", strconv.FormatInt(snap.Time.UnixNano(), 10))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set book snapshot %s: %w", snap.Symbol, err)
	}
	return nil
}

// GetSnapshot reconstructs a BookSnapshot from Redis. The trade tape is not
// cached; the returned snapshot carries levels and prices only. It returns
// domain.ErrNotFound if no snapshot data exists for the symbol.
func (bc *BookCache) GetSnapshot(ctx context.Context, symbol string) (domain.BookSnapshot, error) {
	pipe := bc.rdb.Pipeline()

	bidsCmd := pipe.HGetAll(ctx, bookBidsKey(symbol))
	asksCmd := pipe.HGetAll(ctx, bookAsksKey(symbol))
	bboCmd := pipe.HGetAll(ctx, bookBBOKey(symbol))
	metaCmd := pipe.HGetAll(ctx, bookMetaKey(symbol))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.BookSnapshot{}, fmt.Errorf("redis: get book snapshot %s: %w", symbol, err)
	}

	metaVals, _ := metaCmd.Result()
	if len(metaVals) == 0 {
		return domain.BookSnapshot{}, domain.ErrNotFound
	}

	snap := domain.BookSnapshot{
		Symbol: symbol,
		Bids:   parseLevelHash(bidsCmd.Val()),
		Asks:   parseLevelHash(asksCmd.Val()),
	}

	if tsStr, ok := metaVals["ts"]; ok {
		if tsNano, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			snap.Time = time.Unix(0, tsNano).UTC()
		}
	}

	bboVals, _ := bboCmd.Result()
	if s, ok := bboVals["bid"]; ok {
		snap.BestBid, _ = strconv.ParseFloat(s, 64)
	}
	if s, ok := bboVals["ask"]; ok {
		snap.BestAsk, _ = strconv.ParseFloat(s, 64)
	}
	if s, ok := bboVals["last"]; ok {
		snap.LastPrice, _ = strconv.ParseFloat(s, 64)
	}

	return snap, nil
}

func parseLevelHash(vals map[string]string) map[float64]float64 {
	out := make(map[float64]float64, len(vals))
	for priceStr, qtyStr := range vals {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseFloat(qtyStr, 64)
		if err != nil {
			continue
		}
		out[price] = qty
	}
	return out
}

// GetBBO retrieves the current best bid and ask from the BBO hash. It
// returns domain.ErrNotFound if no BBO data exists.
func (bc *BookCache) GetBBO(ctx context.Context, symbol string) (bestBid, bestAsk float64, err error) {
	vals, err := bc.rdb.HGetAll(ctx, bookBBOKey(symbol)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: get bbo %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return 0, 0, domain.ErrNotFound
	}

	if s, ok := vals["bid"]; ok {
		bestBid, _ = strconv.ParseFloat(s, 64)
	}
	if s, ok := vals["ask"]; ok {
		bestAsk, _ = strconv.ParseFloat(s, 64)
	}
	return bestBid, bestAsk, nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
