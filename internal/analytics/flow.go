package analytics

import (
	"time"

	"bookwatch/internal/domain"
)

// DefaultFlowWindow is the trailing window for net order flow.
const DefaultFlowWindow = 5 * time.Second

// NetFlow accumulates taker buy and sell volume over the trailing window
// ending at now. Trades are oldest first (the tape's order); the scan runs
// newest backward and stops at the first trade outside the window. Zero
// volume in the window yields a neutral sample with FlowPercent 0.
func NetFlow(trades []domain.Trade, now time.Time, window time.Duration) domain.NetFlowSample {
	if window <= 0 {
		window = DefaultFlowWindow
	}
	cutoff := now.UnixMilli() - window.Milliseconds()

	var sample domain.NetFlowSample
	for i := len(trades) - 1; i >= 0; i-- {
		tr := trades[i]
		if tr.Time < cutoff {
			break
		}
		if tr.Taker == domain.TakerBuy {
			sample.BuyVolume += tr.Quantity
		} else {
			sample.SellVolume += tr.Quantity
		}
	}

	sample.NetFlow = sample.BuyVolume - sample.SellVolume
	total := sample.BuyVolume + sample.SellVolume
	if total > 0 {
		sample.FlowPercent = sample.NetFlow / total * 100
		if sample.FlowPercent > 100 {
			sample.FlowPercent = 100
		} else if sample.FlowPercent < -100 {
			sample.FlowPercent = -100
		}
	}
	return sample
}
