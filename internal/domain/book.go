// Package domain defines the shared data types of the order book engine.
// Everything here is plain data; behavior lives in the packages that own
// the respective lifecycle (internal/book, internal/analytics, ...).
package domain

import "time"

// Side identifies one side of the order book.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// PriceLevel is a single price+quantity entry on one side of the book.
// A quantity of exactly 0 is a tombstone meaning "remove this level";
// it is never a valid resting level.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// BookSnapshot is a read-only view of one symbol's book, sufficient for a
// single analytics pass. Maps are keyed by price; the slices and maps are
// copies owned by the caller.
type BookSnapshot struct {
	Symbol    string
	Bids      map[float64]float64
	Asks      map[float64]float64
	BestBid   float64 // 0 when the bid side is empty
	BestAsk   float64 // 0 when the ask side is empty
	LastPrice float64 // 0 until the first trade
	Trades    []Trade // oldest first
	Time      time.Time
}

// Crossed reports whether both best prices are set and bid >= ask. Partial
// depth feeds produce transiently crossed books; callers must not treat
// this as an arbitrage signal.
func (s BookSnapshot) Crossed() bool {
	return s.BestBid > 0 && s.BestAsk > 0 && s.BestBid >= s.BestAsk
}
