package notify

import (
	"fmt"
	"time"

	"bookwatch/internal/domain"
)

// Event types recognised by the Notifier filter.
const (
	EventWhale  = "whale"
	EventStatus = "status"
)

// FormatWhale renders a whale alert as a notification title and body.
func FormatWhale(a domain.WhaleAlert) (title, message string) {
	side := "buy"
	if a.Side == domain.TakerSell {
		side = "sell"
	}
	title = fmt.Sprintf("Whale %s on %s", side, a.Symbol)
	message = fmt.Sprintf("%s %s of %s @ %s at %s",
		a.Symbol, side,
		trimFloat(a.Quantity), trimFloat(a.Price),
		time.UnixMilli(a.Time).UTC().Format(time.RFC3339))
	return title, message
}

// FormatStatus renders a feed status transition, used for the terminal
// error state where an operator has to intervene.
func FormatStatus(symbol string, status domain.Status) (title, message string) {
	title = fmt.Sprintf("Feed %s on %s", status, symbol)
	message = fmt.Sprintf("stream for %s entered status %q", symbol, status)
	return title, message
}

func trimFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}
