package domain

// TakerSide is the side of the order that crossed the spread and triggered
// a trade, as opposed to the resting maker order.
type TakerSide string

const (
	TakerBuy  TakerSide = "buy"
	TakerSell TakerSide = "sell"
)

// Trade is a single executed trade from the feed.
type Trade struct {
	Price    float64
	Quantity float64
	Time     int64 // unix milliseconds
	Taker    TakerSide
}

// TakerFromMakerFlag maps the feed's maker flag onto the taker side. When
// the buyer is the maker the resting order was a buy, so the taker sold.
func TakerFromMakerFlag(buyerIsMaker bool) TakerSide {
	if buyerIsMaker {
		return TakerSell
	}
	return TakerBuy
}
