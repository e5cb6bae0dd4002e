// Package analytics derives streaming signals from book snapshots and the
// trade tape. Every function is pure with respect to its inputs and total:
// degenerate inputs (empty book, zero volume) yield neutral results, never
// errors. The multipliers here encode domain judgment calls, not
// algorithmic necessities, so they are all externally configurable.
package analytics

import (
	"sort"

	"bookwatch/internal/domain"
)

const (
	// DefaultWallMultiplier flags levels above this multiple of the
	// same-side mean quantity.
	DefaultWallMultiplier = 3.0

	// DefaultWallTopN bounds how many walls a single pass returns.
	DefaultWallTopN = 5
)

// WallConfig tunes liquidity wall detection.
type WallConfig struct {
	Multiplier float64 // threshold as a multiple of the side mean
	TopN       int     // maximum walls returned across both sides
}

// DefaultWallConfig returns the standard detection parameters.
func DefaultWallConfig() WallConfig {
	return WallConfig{Multiplier: DefaultWallMultiplier, TopN: DefaultWallTopN}
}

// DetectLiquidityWalls flags levels whose quantity exceeds the same-side
// mean by cfg.Multiplier. Strength normalizes how far above the threshold
// a level sits: quantity/(mean·2·multiplier), clamped to 1. The result is
// the TopN strongest walls across both sides, ties broken by larger
// quantity, then by price for determinism.
func DetectLiquidityWalls(bids, asks map[float64]float64, cfg WallConfig) []domain.LiquidityWall {
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = DefaultWallMultiplier
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultWallTopN
	}

	walls := sideWalls(bids, domain.SideBid, cfg, nil)
	walls = sideWalls(asks, domain.SideAsk, cfg, walls)
	if len(walls) == 0 {
		return nil
	}

	sort.Slice(walls, func(i, j int) bool {
		if walls[i].Strength != walls[j].Strength {
			return walls[i].Strength > walls[j].Strength
		}
		if walls[i].Quantity != walls[j].Quantity {
			return walls[i].Quantity > walls[j].Quantity
		}
		return walls[i].Price < walls[j].Price
	})
	if len(walls) > cfg.TopN {
		walls = walls[:cfg.TopN]
	}
	return walls
}

func sideWalls(levels map[float64]float64, side domain.Side, cfg WallConfig, out []domain.LiquidityWall) []domain.LiquidityWall {
	if len(levels) == 0 {
		return out
	}

	var sum float64
	for _, q := range levels {
		sum += q
	}
	mean := sum / float64(len(levels))
	if mean <= 0 {
		return out
	}

	threshold := mean * cfg.Multiplier
	norm := mean * cfg.Multiplier * 2
	for p, q := range levels {
		if q <= threshold {
			continue
		}
		strength := q / norm
		if strength > 1 {
			strength = 1
		}
		out = append(out, domain.LiquidityWall{
			Price:    p,
			Quantity: q,
			Strength: strength,
			Side:     side,
		})
	}
	return out
}
