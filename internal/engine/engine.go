// Package engine is the facade tying the pure race logic to storage and the
// chain: race reads with derived phase, payout previews, wager recording,
// settlement and claim resolution.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"momentum-engine/internal/claim"
	"momentum-engine/internal/domain"
	"momentum-engine/internal/idhash"
	"momentum-engine/internal/observability"
	"momentum-engine/internal/phase"
	"momentum-engine/internal/pool"
	"momentum-engine/internal/settlement"
	"momentum-engine/internal/storage"
)

// Engine errors.
var (
	// ErrBettingClosed means the race has left the commit phase.
	ErrBettingClosed = errors.New("betting closed")
	// ErrUnknownAsset means the asset index is outside the race's field.
	ErrUnknownAsset = errors.New("unknown asset")
	// ErrClaimsUnavailable means no claimer is configured.
	ErrClaimsUnavailable = errors.New("claims unavailable")
	// ErrAssetSwitch means a wager update moved to a different asset.
	ErrAssetSwitch = errors.New("wager asset cannot change")
	// ErrStakeDecrease means a wager update lowered the cumulative stake.
	ErrStakeDecrease = errors.New("wager stake cannot decrease")
)

// Claimer resolves a player's winnings against the chain.
type Claimer interface {
	Claim(ctx context.Context, raceID, player string) (*claim.Outcome, error)
}

// Engine exposes the wagering operations over stored race snapshots.
type Engine struct {
	races   storage.RaceStore
	wagers  storage.WagerStore
	claimer Claimer
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// Options contains configuration for creating an Engine.
type Options struct {
	RaceStore  storage.RaceStore
	WagerStore storage.WagerStore
	Claimer    Claimer
	Logger     *zap.Logger
	Metrics    *observability.Metrics // optional
	Now        func() time.Time       // defaults to time.Now
}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		races:   opts.RaceStore,
		wagers:  opts.WagerStore,
		claimer: opts.Claimer,
		logger:  logger,
		metrics: opts.Metrics,
		now:     now,
	}
}

// RaceView is a race snapshot with its derived lifecycle state.
type RaceView struct {
	Race             *domain.Race
	Phase            domain.Phase
	TimeRemainingSec int64
	Progress         float64
}

// Race returns a single race with derived phase data.
func (e *Engine) Race(ctx context.Context, raceID string) (*RaceView, error) {
	race, err := e.races.GetByID(ctx, raceID)
	if err != nil {
		return nil, err
	}
	return e.view(race), nil
}

// ActiveRaces returns races that have not settled yet, with derived phase
// data, ordered by settle time.
func (e *Engine) ActiveRaces(ctx context.Context) ([]*RaceView, error) {
	now := e.now()
	races, err := e.races.GetActive(ctx, now.Unix())
	if err != nil {
		return nil, err
	}
	views := make([]*RaceView, len(races))
	for i, race := range races {
		views[i] = e.view(race)
	}
	return views, nil
}

func (e *Engine) view(race *domain.Race) *RaceView {
	now := e.now()
	return &RaceView{
		Race:             race,
		Phase:            phase.Resolve(now, race),
		TimeRemainingSec: phase.TimeRemaining(now, race),
		Progress:         phase.ProgressFraction(now, race),
	}
}

// PreviewPayout previews the payout for a hypothetical stake on a race
// asset, including the player's existing stake when player is non-empty.
func (e *Engine) PreviewPayout(ctx context.Context, raceID, player string, assetIndex int, stakeMicros int64) (pool.PayoutPreview, error) {
	race, err := e.races.GetByID(ctx, raceID)
	if err != nil {
		return pool.PayoutPreview{}, err
	}

	var existing int64
	if player != "" {
		wager, err := e.wagers.GetByRaceAndPlayer(ctx, raceID, player)
		switch {
		case err == nil:
			if wager.AssetIndex == assetIndex {
				existing = wager.AmountMicros
			}
		case errors.Is(err, storage.ErrNotFound):
			// no prior stake
		default:
			return pool.PayoutPreview{}, err
		}
	}

	return pool.PreviewAt(e.now(), stakeMicros, assetIndex, race, existing), nil
}

// Position returns a player's live position in a race.
func (e *Engine) Position(ctx context.Context, raceID, player string) (pool.Position, error) {
	race, err := e.races.GetByID(ctx, raceID)
	if err != nil {
		return pool.Position{}, err
	}
	wager, err := e.wagers.GetByRaceAndPlayer(ctx, raceID, player)
	if err != nil {
		return pool.Position{}, err
	}
	return pool.PositionOf(race, wager), nil
}

// RecordWager mirrors an observed on-chain wager into storage. The race
// must still be in the commit phase and the asset must exist. AmountMicros
// is the cumulative on-chain stake: a repeat record for the same (race,
// player) updates the stored amount, which may never decrease, and the
// asset may never change.
func (e *Engine) RecordWager(ctx context.Context, wager *domain.Wager) error {
	if wager == nil {
		return storage.ErrInvalidInput
	}
	race, err := e.races.GetByID(ctx, wager.RaceID)
	if err != nil {
		return err
	}
	if phase.Resolve(e.now(), race) != domain.PhaseCommit {
		return ErrBettingClosed
	}
	if wager.AssetIndex < 0 || wager.AssetIndex >= len(race.Assets) {
		return ErrUnknownAsset
	}

	existing, err := e.wagers.GetByRaceAndPlayer(ctx, wager.RaceID, wager.Player)
	switch {
	case err == nil:
		if existing.AssetIndex != wager.AssetIndex {
			return ErrAssetSwitch
		}
		if wager.AmountMicros < existing.AmountMicros {
			return ErrStakeDecrease
		}
		wager.CreatedAt = existing.CreatedAt
		wager.UpdatedAt = e.now().UnixMilli()
		wager.Claimed = existing.Claimed
		return e.wagers.UpdateAmount(ctx, wager.RaceID, wager.Player, wager.AmountMicros)
	case errors.Is(err, storage.ErrNotFound):
		// first wager for this player
	default:
		return err
	}

	if wager.CreatedAt == 0 {
		wager.CreatedAt = e.now().UnixMilli()
	}
	if wager.UpdatedAt == 0 {
		wager.UpdatedAt = wager.CreatedAt
	}
	return e.wagers.Insert(ctx, wager)
}

// Settle resolves a race to its settlement result. The race account must
// carry end prices for every asset.
func (e *Engine) Settle(ctx context.Context, raceID string) (*settlement.Result, error) {
	race, err := e.races.GetByID(ctx, raceID)
	if err != nil {
		return nil, err
	}
	result, err := settlement.Settle(race)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.RacesSettled.Inc()
	}
	return result, nil
}

// Claim resolves a player's winnings for a race and reconciles the local
// wager record with the on-chain outcome.
func (e *Engine) Claim(ctx context.Context, raceID, player string) (*claim.Outcome, error) {
	if e.claimer == nil {
		return nil, ErrClaimsUnavailable
	}
	start := e.now()
	outcome, err := e.claimer.Claim(ctx, raceID, player)
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		kind := string(outcome.Kind)
		if outcome.Status == claim.StatusClaimed {
			kind = ""
		}
		e.metrics.ClaimsResolved.WithLabelValues(string(outcome.Status), kind).Inc()
		e.metrics.ClaimDuration.Observe(e.now().Sub(start).Seconds())
	}

	if outcome.Status == claim.StatusClaimed {
		if e.metrics != nil && outcome.AmountMicros > 0 {
			e.metrics.ClaimPayoutSum.Add(float64(outcome.AmountMicros))
		}
		claimID := idhash.ComputeClaimID(raceID, player, outcome.Signature)
		e.logger.Info("claim resolved",
			zap.String("claim_id", claimID),
			zap.String("race", raceID),
			zap.String("player", player),
			zap.Int64("amount_micros", outcome.AmountMicros))

		if err := e.wagers.MarkClaimed(ctx, raceID, player); err != nil &&
			!errors.Is(err, storage.ErrNotFound) {
			// The chain is authoritative; a lagging local record is not a
			// claim failure.
			e.logger.Warn("failed to mark local wager claimed",
				zap.String("race", raceID), zap.String("player", player), zap.Error(err))
		}
	}

	return outcome, nil
}

// Wager returns the recorded wager of a player in a race.
func (e *Engine) Wager(ctx context.Context, raceID, player string) (*domain.Wager, error) {
	return e.wagers.GetByRaceAndPlayer(ctx, raceID, player)
}

// Wagers lists the recorded wagers of a race in placement order.
func (e *Engine) Wagers(ctx context.Context, raceID string) ([]*domain.Wager, error) {
	return e.wagers.GetByRace(ctx, raceID)
}

// PlayerWagers lists a player's recorded wagers across all races.
func (e *Engine) PlayerWagers(ctx context.Context, player string) ([]*domain.Wager, error) {
	return e.wagers.GetByPlayer(ctx, player)
}

// Winnings reports what a player's wager would pay for a settled race.
func (e *Engine) Winnings(ctx context.Context, raceID, player string) (int64, error) {
	race, err := e.races.GetByID(ctx, raceID)
	if err != nil {
		return 0, err
	}
	result, err := settlement.Settle(race)
	if err != nil {
		return 0, err
	}
	wager, err := e.wagers.GetByRaceAndPlayer(ctx, raceID, player)
	if err != nil {
		return 0, err
	}
	if !result.IsWinner(wager) {
		return 0, nil
	}
	return result.ClaimableFor(wager), nil
}

// String implements fmt.Stringer for diagnostics.
func (v *RaceView) String() string {
	return fmt.Sprintf("race %s phase=%s remaining=%ds", v.Race.RaceID, v.Phase, v.TimeRemainingSec)
}
