package storage

import (
	"context"

	"momentum-engine/internal/domain"
)

// RaceStore provides access to race snapshot storage. Snapshots mirror the
// on-chain race accounts and are overwritten on every feed update.
type RaceStore interface {
	// Upsert inserts or replaces the snapshot for race.RaceID.
	Upsert(ctx context.Context, race *domain.Race) error

	// GetByID retrieves a race by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, raceID string) (*domain.Race, error)

	// GetActive retrieves races whose settle time is after now, ordered by
	// settle time ASC.
	GetActive(ctx context.Context, now int64) ([]*domain.Race, error)

	// GetByTimeRange retrieves races starting within [start, end] (inclusive),
	// ordered by start time ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Race, error)
}

// WagerStore provides access to wager storage. One wager per (race, player).
type WagerStore interface {
	// Insert adds a new wager. Returns ErrDuplicateKey if (race_id, player)
	// exists.
	Insert(ctx context.Context, wager *domain.Wager) error

	// UpdateAmount replaces the cumulative stake for (raceID, player).
	// Returns ErrNotFound if the wager does not exist.
	UpdateAmount(ctx context.Context, raceID, player string, amountMicros int64) error

	// MarkClaimed sets the claimed flag for (raceID, player).
	// Returns ErrNotFound if the wager does not exist.
	MarkClaimed(ctx context.Context, raceID, player string) error

	// GetByRaceAndPlayer retrieves a single wager. Returns ErrNotFound if
	// not exists.
	GetByRaceAndPlayer(ctx context.Context, raceID, player string) (*domain.Wager, error)

	// GetByRace retrieves all wagers for a race, ordered by created_at ASC.
	GetByRace(ctx context.Context, raceID string) ([]*domain.Wager, error)

	// GetByPlayer retrieves all wagers placed by a player, ordered by
	// created_at ASC.
	GetByPlayer(ctx context.Context, player string) ([]*domain.Wager, error)
}

// PriceTickStore provides access to price_ticks storage.
type PriceTickStore interface {
	// InsertBulk adds multiple ticks. Fails the entire batch on duplicate
	// (race_id, asset_index, slot).
	InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error

	// GetByRace retrieves all ticks for a race, ordered by slot ASC.
	GetByRace(ctx context.Context, raceID string) ([]*domain.PriceTick, error)

	// GetByTimeRange retrieves ticks for one asset of a race within
	// [start, end] (inclusive, timestamp ms), ordered by slot ASC.
	GetByTimeRange(ctx context.Context, raceID string, assetIndex int, start, end int64) ([]*domain.PriceTick, error)
}
