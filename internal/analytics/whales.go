package analytics

import "bookwatch/internal/domain"

// DetectWhales returns one alert per trade newer than lastAlertMs with
// quantity at or above threshold. The threshold is absolute and symbol
// specific; it is configured externally, never derived from the tape. The
// alert side is the taker side. A non-positive threshold disables
// detection.
func DetectWhales(trades []domain.Trade, threshold float64, lastAlertMs int64, symbol string) []domain.WhaleAlert {
	if threshold <= 0 {
		return nil
	}

	var alerts []domain.WhaleAlert
	for _, tr := range trades {
		if tr.Time <= lastAlertMs || tr.Quantity < threshold {
			continue
		}
		alerts = append(alerts, domain.WhaleAlert{
			ID:       domain.WhaleAlertID(symbol, tr.Time, tr.Price),
			Time:     tr.Time,
			Price:    tr.Price,
			Quantity: tr.Quantity,
			Side:     tr.Taker,
			Symbol:   symbol,
		})
	}
	return alerts
}
