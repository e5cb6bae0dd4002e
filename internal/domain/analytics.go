package domain

import "fmt"

// LiquidityWall is an unusually large resting order at a single price
// level, a potential support/resistance signal. Strength is normalized to
// [0,1]; 1 means the level is at or beyond twice the detection threshold.
type LiquidityWall struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Strength float64 `json:"strength"`
	Side     Side    `json:"side"`
}

// NetFlowSample is the taker buy/sell volume balance over a trailing time
// window of the trade tape.
type NetFlowSample struct {
	BuyVolume   float64 `json:"buy_volume"`
	SellVolume  float64 `json:"sell_volume"`
	NetFlow     float64 `json:"net_flow"`     // buy - sell
	FlowPercent float64 `json:"flow_percent"` // [-100, 100], 0 on zero volume
}

// WhaleAlert flags a single trade whose size exceeds the configured
// per-symbol threshold.
type WhaleAlert struct {
	ID       string    `json:"id"`
	Time     int64     `json:"time"` // unix milliseconds
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Side     TakerSide `json:"side"`
	Symbol   string    `json:"symbol"`
}

// WhaleAlertID builds the deterministic alert identifier. Duplicate
// emissions of the same trade across overlapping detection windows produce
// the same ID, which is what the alert surface dedups on.
func WhaleAlertID(symbol string, timeMs int64, price float64) string {
	return fmt.Sprintf("whale:%s:%d:%.8f", symbol, timeMs, price)
}
