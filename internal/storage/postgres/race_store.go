package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"momentum-engine/internal/domain"
	"momentum-engine/internal/storage"
)

// RaceStore implements storage.RaceStore using PostgreSQL.
type RaceStore struct {
	pool *Pool
}

// NewRaceStore creates a new RaceStore.
func NewRaceStore(pool *Pool) *RaceStore {
	return &RaceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RaceStore = (*RaceStore)(nil)

const raceColumns = `
	race_id, pubkey, start_ts, lock_ts, settle_ts, assets,
	total_pool_micros, asset_pool_micros, fee_bps, participant_count, updated_at
`

// Upsert inserts or replaces the snapshot for race.RaceID.
func (s *RaceStore) Upsert(ctx context.Context, race *domain.Race) error {
	if race == nil || race.RaceID == "" {
		return storage.ErrInvalidInput
	}

	assets, err := json.Marshal(race.Assets)
	if err != nil {
		return fmt.Errorf("marshal race assets: %w", err)
	}

	query := `
		INSERT INTO races (
			race_id, pubkey, start_ts, lock_ts, settle_ts, assets,
			total_pool_micros, asset_pool_micros, fee_bps, participant_count, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (race_id) DO UPDATE SET
			pubkey = EXCLUDED.pubkey,
			start_ts = EXCLUDED.start_ts,
			lock_ts = EXCLUDED.lock_ts,
			settle_ts = EXCLUDED.settle_ts,
			assets = EXCLUDED.assets,
			total_pool_micros = EXCLUDED.total_pool_micros,
			asset_pool_micros = EXCLUDED.asset_pool_micros,
			fee_bps = EXCLUDED.fee_bps,
			participant_count = EXCLUDED.participant_count,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
		race.RaceID,
		race.Pubkey,
		race.StartTs,
		race.LockTs,
		race.SettleTs,
		assets,
		race.TotalPoolMicros,
		race.AssetPoolMicros,
		race.FeeBps,
		race.ParticipantCount,
		race.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert race: %w", err)
	}
	return nil
}

// GetByID retrieves a race by its ID. Returns ErrNotFound if not exists.
func (s *RaceStore) GetByID(ctx context.Context, raceID string) (*domain.Race, error) {
	query := `SELECT ` + raceColumns + ` FROM races WHERE race_id = $1`

	row := s.pool.QueryRow(ctx, query, raceID)
	race, err := scanRace(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get race by id: %w", err)
	}
	return race, nil
}

// GetActive retrieves races whose settle time is after now, ordered by
// settle time ASC.
func (s *RaceStore) GetActive(ctx context.Context, now int64) ([]*domain.Race, error) {
	query := `
		SELECT ` + raceColumns + `
		FROM races
		WHERE settle_ts > $1
		ORDER BY settle_ts ASC, race_id ASC
	`

	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("get active races: %w", err)
	}
	defer rows.Close()

	return scanRaces(rows)
}

// GetByTimeRange retrieves races starting within [start, end] (inclusive).
func (s *RaceStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Race, error) {
	query := `
		SELECT ` + raceColumns + `
		FROM races
		WHERE start_ts >= $1 AND start_ts <= $2
		ORDER BY start_ts ASC, race_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get races by time range: %w", err)
	}
	defer rows.Close()

	return scanRaces(rows)
}

// scanRace scans a single row into a Race.
func scanRace(row pgx.Row) (*domain.Race, error) {
	var race domain.Race
	var assets []byte

	err := row.Scan(
		&race.RaceID,
		&race.Pubkey,
		&race.StartTs,
		&race.LockTs,
		&race.SettleTs,
		&assets,
		&race.TotalPoolMicros,
		&race.AssetPoolMicros,
		&race.FeeBps,
		&race.ParticipantCount,
		&race.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(assets, &race.Assets); err != nil {
		return nil, fmt.Errorf("unmarshal race assets: %w", err)
	}
	return &race, nil
}

// scanRaces scans multiple rows into a slice of Race.
func scanRaces(rows pgx.Rows) ([]*domain.Race, error) {
	var races []*domain.Race

	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan race row: %w", err)
		}
		races = append(races, race)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate race rows: %w", err)
	}

	return races, nil
}
