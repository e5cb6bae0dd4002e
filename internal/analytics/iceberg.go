package analytics

import (
	"math"
	"time"

	"bookwatch/internal/domain"
)

const (
	// DefaultIcebergWindow is the trailing window scanned for repeated
	// same-sized executions.
	DefaultIcebergWindow = 10 * time.Second

	// DefaultIcebergMinRepeats is how many trades must share a rounded
	// quantity before the pattern counts as an iceberg signature.
	DefaultIcebergMinRepeats = 5
)

// IcebergConfig tunes iceberg pattern detection.
type IcebergConfig struct {
	Window     time.Duration
	MinRepeats int
}

// DefaultIcebergConfig returns the standard detection parameters.
func DefaultIcebergConfig() IcebergConfig {
	return IcebergConfig{Window: DefaultIcebergWindow, MinRepeats: DefaultIcebergMinRepeats}
}

// DetectIceberg reports whether the trailing window contains MinRepeats or
// more trades sharing the same quantity rounded to one decimal — the
// signature of a large order being executed in concealed equal slices.
// This is a heuristic hint, not a proof; false positives are acceptable.
func DetectIceberg(trades []domain.Trade, now time.Time, cfg IcebergConfig) bool {
	if cfg.Window <= 0 {
		cfg.Window = DefaultIcebergWindow
	}
	if cfg.MinRepeats <= 0 {
		cfg.MinRepeats = DefaultIcebergMinRepeats
	}
	cutoff := now.UnixMilli() - cfg.Window.Milliseconds()

	counts := make(map[float64]int)
	for i := len(trades) - 1; i >= 0; i-- {
		tr := trades[i]
		if tr.Time < cutoff {
			break
		}
		rounded := math.Round(tr.Quantity*10) / 10
		counts[rounded]++
		if counts[rounded] >= cfg.MinRepeats {
			return true
		}
	}
	return false
}
