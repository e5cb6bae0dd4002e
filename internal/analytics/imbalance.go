package analytics

import "sort"

// DefaultImbalanceLevels is the per-side depth considered for imbalance.
const DefaultImbalanceLevels = 10

// Imbalance returns the normalized resting-volume balance near the top of
// the book: (bidVol-askVol)/(bidVol+askVol) over the top levels of each
// side by proximity to best (highest bids, lowest asks). Positive means
// bid-heavy. An empty book yields 0.
func Imbalance(bids, asks map[float64]float64, levels int) float64 {
	if levels <= 0 {
		levels = DefaultImbalanceLevels
	}

	bidVol := topVolume(bids, levels, true)
	askVol := topVolume(asks, levels, false)

	total := bidVol + askVol
	if total == 0 {
		return 0
	}
	return (bidVol - askVol) / total
}

func topVolume(levels map[float64]float64, n int, descending bool) float64 {
	if len(levels) == 0 {
		return 0
	}

	prices := make([]float64, 0, len(levels))
	for p := range levels {
		prices = append(prices, p)
	}
	if descending {
		sort.Sort(sort.Reverse(sort.Float64Slice(prices)))
	} else {
		sort.Float64s(prices)
	}
	if len(prices) > n {
		prices = prices[:n]
	}

	var vol float64
	for _, p := range prices {
		vol += levels[p]
	}
	return vol
}
