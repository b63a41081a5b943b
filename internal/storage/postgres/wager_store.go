package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"momentum-engine/internal/domain"
	"momentum-engine/internal/storage"
)

// WagerStore implements storage.WagerStore using PostgreSQL.
type WagerStore struct {
	pool *Pool
}

// NewWagerStore creates a new WagerStore.
func NewWagerStore(pool *Pool) *WagerStore {
	return &WagerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WagerStore = (*WagerStore)(nil)

// Insert adds a new wager. Returns ErrDuplicateKey if (race_id, player) exists.
func (s *WagerStore) Insert(ctx context.Context, wager *domain.Wager) error {
	if wager == nil || wager.RaceID == "" || wager.Player == "" {
		return storage.ErrInvalidInput
	}
	if wager.AmountMicros <= 0 || wager.AssetIndex < 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO wagers (
			race_id, player, asset_index, amount_micros, claimed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		wager.RaceID,
		wager.Player,
		wager.AssetIndex,
		wager.AmountMicros,
		wager.Claimed,
		wager.CreatedAt,
		wager.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert wager: %w", err)
	}
	return nil
}

// UpdateAmount replaces the cumulative stake for (raceID, player).
func (s *WagerStore) UpdateAmount(ctx context.Context, raceID, player string, amountMicros int64) error {
	if raceID == "" || player == "" || amountMicros <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE wagers
		SET amount_micros = $3, updated_at = $4
		WHERE race_id = $1 AND player = $2
	`

	tag, err := s.pool.Exec(ctx, query, raceID, player, amountMicros, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("update wager amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkClaimed sets the claimed flag for (raceID, player).
func (s *WagerStore) MarkClaimed(ctx context.Context, raceID, player string) error {
	query := `
		UPDATE wagers
		SET claimed = TRUE, updated_at = $3
		WHERE race_id = $1 AND player = $2
	`

	tag, err := s.pool.Exec(ctx, query, raceID, player, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("mark wager claimed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByRaceAndPlayer retrieves a single wager. Returns ErrNotFound if not exists.
func (s *WagerStore) GetByRaceAndPlayer(ctx context.Context, raceID, player string) (*domain.Wager, error) {
	query := `
		SELECT race_id, player, asset_index, amount_micros, claimed, created_at, updated_at
		FROM wagers
		WHERE race_id = $1 AND player = $2
	`

	row := s.pool.QueryRow(ctx, query, raceID, player)
	wager, err := scanWager(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wager: %w", err)
	}
	return wager, nil
}

// GetByRace retrieves all wagers for a race, ordered by created_at ASC.
func (s *WagerStore) GetByRace(ctx context.Context, raceID string) ([]*domain.Wager, error) {
	query := `
		SELECT race_id, player, asset_index, amount_micros, claimed, created_at, updated_at
		FROM wagers
		WHERE race_id = $1
		ORDER BY created_at ASC, player ASC
	`

	rows, err := s.pool.Query(ctx, query, raceID)
	if err != nil {
		return nil, fmt.Errorf("get wagers by race: %w", err)
	}
	defer rows.Close()

	return scanWagers(rows)
}

// GetByPlayer retrieves all wagers placed by a player, ordered by created_at ASC.
func (s *WagerStore) GetByPlayer(ctx context.Context, player string) ([]*domain.Wager, error) {
	query := `
		SELECT race_id, player, asset_index, amount_micros, claimed, created_at, updated_at
		FROM wagers
		WHERE player = $1
		ORDER BY created_at ASC, race_id ASC
	`

	rows, err := s.pool.Query(ctx, query, player)
	if err != nil {
		return nil, fmt.Errorf("get wagers by player: %w", err)
	}
	defer rows.Close()

	return scanWagers(rows)
}

// scanWager scans a single row into a Wager.
func scanWager(row pgx.Row) (*domain.Wager, error) {
	var w domain.Wager
	err := row.Scan(
		&w.RaceID,
		&w.Player,
		&w.AssetIndex,
		&w.AmountMicros,
		&w.Claimed,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// scanWagers scans multiple rows into a slice of Wager.
func scanWagers(rows pgx.Rows) ([]*domain.Wager, error) {
	var wagers []*domain.Wager

	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wager row: %w", err)
		}
		wagers = append(wagers, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wager rows: %w", err)
	}

	return wagers, nil
}
