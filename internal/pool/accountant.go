// Package pool computes pari-mutuel payout previews and positions from
// pool sizes and stakes. All money math is integer micro-units; floats
// appear only in display-oriented percentage fields.
package pool

import (
	"math/big"
	"time"

	"momentum-engine/internal/domain"
	"momentum-engine/internal/phase"
)

// Preview note codes. Purely advisory, never affect payout math.
const (
	NoteLeadingPool   = "leading pool"
	NoteCompetitive   = "competitive"
	NoteUnderdog      = "underdog - high risk"
	NoteWaitingPools  = "waiting for pools"
	NoteInvalidStake  = "enter a positive stake"
	NoteUnknownAsset  = "unknown asset"
	NoteBettingClosed = "betting closed"
)

// PayoutPreview is the result of simulating an additional stake against the
// current pools. A preview with zero TotalPayoutMicros and a non-odds Note
// is the neutral degraded result for invalid or not-ready inputs.
type PayoutPreview struct {
	TotalPayoutMicros int64
	ProfitMicros      int64
	YourSharePct      float64 // share of the winner pool, [0, 100]
	FieldCutMicros    int64   // payout portion drawn from other assets' pools
	NetPoolMicros     int64
	FeePct            float64
	WinnerPoolMicros  int64
	Note              string
}

// Position is the post-lock view of a placed wager: its share of the chosen
// asset's pool and the payout if that asset wins outright.
type Position struct {
	AssetIndex            int
	AmountMicros          int64
	SharePct              float64
	PotentialPayoutMicros int64
	PotentialProfitMicros int64
}

// PreviewPayout simulates adding stakeMicros on assetIndex to the race's
// pools and returns the bettor's projected payout. existingStakeMicros is
// the bettor's prior stake on the same asset, zero for a first bet.
//
// Total function: every invalid or unready input degrades to a zero result
// with an explanatory Note, never an error. Called on every keystroke of
// the bet input, so it allocates only for the widening multiply.
func PreviewPayout(stakeMicros int64, assetIndex int, race *domain.Race, existingStakeMicros int64) PayoutPreview {
	if stakeMicros <= 0 {
		return PayoutPreview{Note: NoteInvalidStake}
	}
	if race == nil || assetIndex < 0 || assetIndex >= len(race.AssetPoolMicros) {
		return PayoutPreview{Note: NoteUnknownAsset}
	}
	if existingStakeMicros < 0 {
		existingStakeMicros = 0
	}

	newWinnerPool := race.AssetPoolMicros[assetIndex] + stakeMicros
	newTotalPool := race.TotalPoolMicros + stakeMicros
	if newWinnerPool <= 0 || newTotalPool <= 0 {
		return PayoutPreview{Note: NoteWaitingPools}
	}

	feeBps := clampBps(race.FeeBps)
	_, netMicros := FeeAndNet(newTotalPool, feeBps)

	yourMicros := existingStakeMicros + stakeMicros

	// Share denominator floors at 1: a sole bettor owns the whole pool.
	denom := newWinnerPool
	if denom < 1 {
		denom = 1
	}

	payout := mulDiv(yourMicros, netMicros, denom)

	profit := payout - stakeMicros
	if profit < 0 {
		profit = 0
	}

	// Money staked on the other assets before this stake landed.
	otherPool := race.TotalPoolMicros - race.AssetPoolMicros[assetIndex]
	if otherPool < 0 {
		otherPool = 0
	}
	fieldCut := mulDiv(yourMicros, otherPool, denom)

	sharePct := float64(yourMicros) / float64(denom) * 100
	if sharePct > 100 {
		sharePct = 100
	}

	return PayoutPreview{
		TotalPayoutMicros: payout,
		ProfitMicros:      profit,
		YourSharePct:      sharePct,
		FieldCutMicros:    fieldCut,
		NetPoolMicros:     netMicros,
		FeePct:            float64(feeBps) / 100,
		WinnerPoolMicros:  newWinnerPool,
		Note:              classifyShare(sharePct),
	}
}

// PreviewAt is PreviewPayout gated by the race phase: once the race locks
// there is nothing to preview and the result reports betting closed.
func PreviewAt(now time.Time, stakeMicros int64, assetIndex int, race *domain.Race, existingStakeMicros int64) PayoutPreview {
	if race != nil && phase.Resolve(now, race) != domain.PhaseCommit {
		return PayoutPreview{Note: NoteBettingClosed}
	}
	return PreviewPayout(stakeMicros, assetIndex, race, existingStakeMicros)
}

// PositionOf computes the post-lock view of a placed wager. Pools are fixed
// at lock time, so no hypothetical stake is added.
func PositionOf(race *domain.Race, wager *domain.Wager) Position {
	pos := Position{AssetIndex: wager.AssetIndex, AmountMicros: wager.AmountMicros}
	if race == nil || wager.AssetIndex < 0 || wager.AssetIndex >= len(race.AssetPoolMicros) {
		return pos
	}
	if wager.AmountMicros <= 0 || race.TotalPoolMicros <= 0 {
		return pos
	}

	denom := race.AssetPoolMicros[wager.AssetIndex]
	if denom < 1 {
		denom = 1
	}

	_, netMicros := FeeAndNet(race.TotalPoolMicros, race.FeeBps)

	pos.SharePct = float64(wager.AmountMicros) / float64(denom) * 100
	if pos.SharePct > 100 {
		pos.SharePct = 100
	}
	pos.PotentialPayoutMicros = mulDiv(wager.AmountMicros, netMicros, denom)
	if profit := pos.PotentialPayoutMicros - wager.AmountMicros; profit > 0 {
		pos.PotentialProfitMicros = profit
	}
	return pos
}

// FeeAndNet splits a total pool into protocol fee and net payout pool.
// feeBps is clamped to [0, 10000], so the net pool is never negative.
func FeeAndNet(totalPoolMicros, feeBps int64) (feeMicros, netMicros int64) {
	if totalPoolMicros <= 0 {
		return 0, 0
	}
	feeMicros = mulDiv(totalPoolMicros, clampBps(feeBps), 10000)
	return feeMicros, totalPoolMicros - feeMicros
}

// WinnersShare returns floor(amountMicros * netPoolMicros / winnerPoolMicros),
// the pari-mutuel payout for a stake inside the winning pool.
func WinnersShare(amountMicros, winnerPoolMicros, netPoolMicros int64) int64 {
	if amountMicros <= 0 || winnerPoolMicros <= 0 || netPoolMicros <= 0 {
		return 0
	}
	return mulDiv(amountMicros, netPoolMicros, winnerPoolMicros)
}

// classifyShare maps a winner-pool share to an advisory note.
func classifyShare(sharePct float64) string {
	switch {
	case sharePct >= 50:
		return NoteLeadingPool
	case sharePct >= 30:
		return NoteCompetitive
	default:
		return NoteUnderdog
	}
}

// clampBps bounds a fee to [0, 10000] basis points. Fees are validated
// upstream; the clamp keeps net pools non-negative on bad snapshot data.
func clampBps(bps int64) int64 {
	if bps < 0 {
		return 0
	}
	if bps > 10000 {
		return 10000
	}
	return bps
}

// mulDiv returns floor(a * b / den) without intermediate int64 overflow.
func mulDiv(a, b, den int64) int64 {
	if den == 0 {
		return 0
	}
	var prod big.Int
	prod.Mul(big.NewInt(a), big.NewInt(b))
	prod.Div(&prod, big.NewInt(den))
	return prod.Int64()
}
