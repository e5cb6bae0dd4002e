// Package book holds the canonical in-memory order book for one symbol.
//
// The book has a single logical writer (the feed processing loop) and is
// read on a separate cadence by the analytics tick. A reader-writer lock
// guards the price maps so snapshot reads never observe a map mid-mutation.
package book

import (
	"sync"
	"time"

	"bookwatch/internal/domain"
)

// Book is the mutable order book state for a single symbol.
type Book struct {
	mu sync.RWMutex

	symbol    string
	bids      map[float64]float64
	asks      map[float64]float64
	bestBid   float64 // 0 when no bids
	bestAsk   float64 // 0 when no asks
	lastPrice float64 // 0 until the first trade
	tape      *TradeTape
}

// New creates an empty book for symbol with the given trade tape capacity.
func New(symbol string, tapeCapacity int) *Book {
	return &Book{
		symbol: symbol,
		bids:   make(map[float64]float64),
		asks:   make(map[float64]float64),
		tape:   NewTradeTape(tapeCapacity),
	}
}

// Symbol returns the symbol this book tracks.
func (b *Book) Symbol() string { return b.symbol }

// ApplyDepth applies a batch of level updates to one side. A quantity of 0
// removes the level; removing an absent level is a silent no-op. The best
// price for the affected side is recomputed once after the whole batch.
// Map size is bounded by the feed's published depth window, so the linear
// recompute stays cheap.
func (b *Book) ApplyDepth(side domain.Side, levels []domain.PriceLevel) {
	if len(levels) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	m := b.bids
	if side == domain.SideAsk {
		m = b.asks
	}
	for _, lvl := range levels {
		if lvl.Quantity == 0 {
			delete(m, lvl.Price)
			continue
		}
		m[lvl.Price] = lvl.Quantity
	}

	if side == domain.SideBid {
		b.bestBid = maxKey(b.bids)
	} else {
		b.bestAsk = minKey(b.asks)
	}
}

// ApplyTrade appends the trade to the tape and updates the last price.
func (b *Book) ApplyTrade(tr domain.Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tape.Append(tr)
	b.lastPrice = tr.Price
}

// BestBid returns the highest resting bid price, or 0 when the side is empty.
func (b *Book) BestBid() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bestBid
}

// BestAsk returns the lowest resting ask price, or 0 when the side is empty.
func (b *Book) BestAsk() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bestAsk
}

// LastPrice returns the price of the most recent trade, or 0 before any.
func (b *Book) LastPrice() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastPrice
}

// Depth returns the current number of resting levels per side.
func (b *Book) Depth() (bids, asks int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bids), len(b.asks)
}

// Snapshot returns a copied view of the book for one analytics pass. The
// returned maps and slice are owned by the caller.
func (b *Book) Snapshot() domain.BookSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bids := make(map[float64]float64, len(b.bids))
	for p, q := range b.bids {
		bids[p] = q
	}
	asks := make(map[float64]float64, len(b.asks))
	for p, q := range b.asks {
		asks[p] = q
	}

	return domain.BookSnapshot{
		Symbol:    b.symbol,
		Bids:      bids,
		Asks:      asks,
		BestBid:   b.bestBid,
		BestAsk:   b.bestAsk,
		LastPrice: b.lastPrice,
		Trades:    b.tape.All(),
		Time:      time.Now().UTC(),
	}
}

// Reset clears all state. Used on symbol change and on resync after the
// feed's retry budget is exhausted; the book is rebuilt from scratch by
// the next depth messages, never patched across symbols.
func (b *Book) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.bids)
	clear(b.asks)
	b.bestBid = 0
	b.bestAsk = 0
	b.lastPrice = 0
	b.tape.Reset()
}

func maxKey(m map[float64]float64) float64 {
	var best float64
	for p := range m {
		if p > best {
			best = p
		}
	}
	return best
}

func minKey(m map[float64]float64) float64 {
	var best float64
	for p := range m {
		if best == 0 || p < best {
			best = p
		}
	}
	return best
}
