package feed

import (
	"encoding/json"
	"strconv"

	"bookwatch/internal/domain"
)

// DepthUpdate is one partial-depth message: the feed republishes a bounded
// snapshot window (top-N levels per side) on every tick rather than true
// incremental deltas. Quantities of 0 signal level removal.
type DepthUpdate struct {
	Bids []domain.PriceLevel
	Asks []domain.PriceLevel
}

// Event is one typed message from the stream. Exactly one field is set.
type Event struct {
	Depth *DepthUpdate
	Trade *domain.Trade
}

// streamEnvelope is the combined-stream wrapper: {"stream": ..., "data": {...}}.
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// depthMessage is a partial book snapshot with [priceString, qtyString]
// pairs per side.
type depthMessage struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// tradeMessage is a single aggregate trade. BuyerIsMaker true means the
// resting order was a buy, so the taker sold.
type tradeMessage struct {
	EventType    string `json:"e"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	BuyerIsMaker bool   `json:"m"`
}

// parseEvent decodes a raw frame into a typed event. It unwraps the
// combined-stream envelope when present and returns ok=false for frames
// that are malformed or not a depth/trade message; such frames are dropped
// by the caller, never propagated as errors.
func parseEvent(raw []byte) (Event, bool) {
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Stream != "" {
		raw = env.Data
	}

	// A trade frame carries an event-type tag; depth snapshots do not.
	var probe struct {
		EventType    string `json:"e"`
		LastUpdateID *int64 `json:"lastUpdateId"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Event{}, false
	}

	switch {
	case probe.EventType == "aggTrade" || probe.EventType == "trade":
		var msg tradeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return Event{}, false
		}
		price, errP := strconv.ParseFloat(msg.Price, 64)
		qty, errQ := strconv.ParseFloat(msg.Quantity, 64)
		if errP != nil || errQ != nil || price <= 0 || qty <= 0 {
			return Event{}, false
		}
		return Event{Trade: &domain.Trade{
			Price:    price,
			Quantity: qty,
			Time:     msg.TradeTime,
			Taker:    domain.TakerFromMakerFlag(msg.BuyerIsMaker),
		}}, true

	case probe.LastUpdateID != nil:
		var msg depthMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return Event{}, false
		}
		bids := levelsFromStrings(msg.Bids)
		asks := levelsFromStrings(msg.Asks)
		if bids == nil && asks == nil {
			return Event{}, false
		}
		return Event{Depth: &DepthUpdate{Bids: bids, Asks: asks}}, true
	}

	return Event{}, false
}

// levelsFromStrings converts [price, qty] string pairs. Malformed pairs
// are skipped; zero quantities are kept as removal tombstones.
func levelsFromStrings(pairs [][]string) []domain.PriceLevel {
	if len(pairs) == 0 {
		return nil
	}
	out := make([]domain.PriceLevel, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		price, errP := strconv.ParseFloat(pair[0], 64)
		qty, errQ := strconv.ParseFloat(pair[1], 64)
		if errP != nil || errQ != nil || price <= 0 || qty < 0 {
			continue
		}
		out = append(out, domain.PriceLevel{Price: price, Quantity: qty})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
