// Package settlement determines race winners and claimable payouts from
// finalized asset prices. Settle is idempotent: the same race snapshot
// always produces an identical result.
package settlement

import (
	"errors"
	"math"

	"momentum-engine/internal/domain"
	"momentum-engine/internal/pool"
)

// ErrNotFinal is returned when any asset is missing its end price.
// Callers retry on the next snapshot refresh.
var ErrNotFinal = errors.New("race not fully finalized")

// PerfEpsilon is the performance tie window in percentage points.
// Assets within this distance of the best performance are joint winners.
const PerfEpsilon = 1e-3

// Race intensity classes derived from the performance spread.
// Display-only, never used in payout math.
const (
	IntensityExtreme = "extreme"
	IntensityHigh    = "high"
	IntensityMedium  = "medium"
	IntensityLow     = "low"
)

// Result is the settlement of one race. Computable only once every asset
// carries an end price; immutable thereafter.
type Result struct {
	RaceID string

	// PerformancePct holds (end-start)/start*100 per asset, zero for
	// invalid assets.
	PerformancePct []float64

	// WinningAssetIndices lists every asset within PerfEpsilon of the best
	// performance. Ties are supported, never arbitrarily broken.
	WinningAssetIndices []int

	// InvalidAssets lists assets whose start price was missing or
	// non-positive. They are excluded from winner selection; their
	// presence signals bad upstream data.
	InvalidAssets []int

	FeeMicros         int64
	NetPoolMicros     int64
	WinningPoolMicros int64 // combined pools of all winning assets

	PerformanceSpreadPct float64
	Intensity            string
}

// Settle computes the settlement of a race whose assets all carry final end
// prices. Returns ErrNotFinal otherwise; never returns a partial result.
func Settle(race *domain.Race) (*Result, error) {
	if race == nil || !race.Finalized() {
		return nil, ErrNotFinal
	}

	n := len(race.Assets)
	res := &Result{
		RaceID:         race.RaceID,
		PerformancePct: make([]float64, n),
	}

	// Performance per asset. A non-positive start price cannot produce a
	// meaningful return, so the asset is flagged invalid and sits out of
	// winner selection instead of silently defaulting to zero.
	valid := make([]bool, n)
	for i, a := range race.Assets {
		if a.StartPrice <= 0 {
			res.InvalidAssets = append(res.InvalidAssets, i)
			continue
		}
		valid[i] = true
		res.PerformancePct[i] = (*a.EndPrice - a.StartPrice) / a.StartPrice * 100
	}

	// Winner selection over valid assets only.
	maxPerf := math.Inf(-1)
	minPerf := math.Inf(1)
	anyValid := false
	for i := range race.Assets {
		if !valid[i] {
			continue
		}
		anyValid = true
		if res.PerformancePct[i] > maxPerf {
			maxPerf = res.PerformancePct[i]
		}
		if res.PerformancePct[i] < minPerf {
			minPerf = res.PerformancePct[i]
		}
	}

	if anyValid {
		for i := range race.Assets {
			if valid[i] && math.Abs(res.PerformancePct[i]-maxPerf) < PerfEpsilon {
				res.WinningAssetIndices = append(res.WinningAssetIndices, i)
			}
		}
		res.PerformanceSpreadPct = maxPerf - minPerf
	}
	res.Intensity = classifySpread(res.PerformanceSpreadPct)

	res.FeeMicros, res.NetPoolMicros = pool.FeeAndNet(race.TotalPoolMicros, race.FeeBps)
	for _, i := range res.WinningAssetIndices {
		if i < len(race.AssetPoolMicros) {
			res.WinningPoolMicros += race.AssetPoolMicros[i]
		}
	}

	return res, nil
}

// IsWinner reports whether the wager's asset is among the winning assets.
func (r *Result) IsWinner(wager *domain.Wager) bool {
	if wager == nil {
		return false
	}
	for _, i := range r.WinningAssetIndices {
		if i == wager.AssetIndex {
			return true
		}
	}
	return false
}

// ClaimableFor returns the wager's claimable payout in micro-units.
//
// Ties split the ENTIRE net pool pro-rata over the combined winning pool:
// claimable = amount * netPool / sum(winning asset pools). With a single
// winner this reduces to the plain pari-mutuel share; with N tied winners
// every winning wager is paid from the same net pool at the same rate, and
// the total paid out never exceeds the net pool.
func (r *Result) ClaimableFor(wager *domain.Wager) int64 {
	if !r.IsWinner(wager) {
		return 0
	}
	return pool.WinnersShare(wager.AmountMicros, r.WinningPoolMicros, r.NetPoolMicros)
}

// classifySpread maps a max-min performance spread to an intensity class.
func classifySpread(spreadPct float64) string {
	switch {
	case spreadPct > 5:
		return IntensityExtreme
	case spreadPct > 2:
		return IntensityHigh
	case spreadPct > 1:
		return IntensityMedium
	default:
		return IntensityLow
	}
}
