package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"momentum-engine/internal/domain"
	"momentum-engine/internal/storage"
)

// PriceTickStore implements storage.PriceTickStore using ClickHouse.
type PriceTickStore struct {
	conn *Conn
}

// NewPriceTickStore creates a new PriceTickStore.
func NewPriceTickStore(conn *Conn) *PriceTickStore {
	return &PriceTickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceTickStore = (*PriceTickStore)(nil)

// InsertBulk adds multiple ticks. Fails the entire batch on duplicate
// (race_id, asset_index, slot). MergeTree does not enforce uniqueness, so
// duplicates are checked explicitly before the batch is sent.
func (s *PriceTickStore) InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	type key struct {
		raceID     string
		assetIndex int
		slot       int64
	}
	seen := make(map[key]struct{}, len(ticks))
	for _, tick := range ticks {
		if tick == nil || tick.RaceID == "" {
			return storage.ErrInvalidInput
		}
		k := key{tick.RaceID, tick.AssetIndex, tick.Slot}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, tick := range ticks {
		exists, err := s.exists(ctx, tick.RaceID, tick.AssetIndex, tick.Slot)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_ticks (
			race_id, asset_index, mint, price, slot, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, tick := range ticks {
		err = batch.Append(
			tick.RaceID, uint8(tick.AssetIndex), tick.Mint,
			tick.Price, uint64(tick.Slot), uint64(tick.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRace retrieves all ticks for a race, ordered by slot ASC.
func (s *PriceTickStore) GetByRace(ctx context.Context, raceID string) ([]*domain.PriceTick, error) {
	query := `
		SELECT race_id, asset_index, mint, price, slot, timestamp_ms
		FROM price_ticks
		WHERE race_id = ?
		ORDER BY slot ASC, asset_index ASC
	`

	rows, err := s.conn.Query(ctx, query, raceID)
	if err != nil {
		return nil, fmt.Errorf("query ticks by race: %w", err)
	}
	defer rows.Close()

	return scanPriceTicks(rows)
}

// GetByTimeRange retrieves ticks for one asset of a race within [start, end]
// (inclusive, timestamp ms), ordered by slot ASC.
func (s *PriceTickStore) GetByTimeRange(ctx context.Context, raceID string, assetIndex int, start, end int64) ([]*domain.PriceTick, error) {
	query := `
		SELECT race_id, asset_index, mint, price, slot, timestamp_ms
		FROM price_ticks
		WHERE race_id = ? AND asset_index = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY slot ASC
	`

	rows, err := s.conn.Query(ctx, query, raceID, uint8(assetIndex), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query ticks by time range: %w", err)
	}
	defer rows.Close()

	return scanPriceTicks(rows)
}

// exists checks whether a tick with this key is already stored.
func (s *PriceTickStore) exists(ctx context.Context, raceID string, assetIndex int, slot int64) (bool, error) {
	query := `
		SELECT count() FROM price_ticks
		WHERE race_id = ? AND asset_index = ? AND slot = ?
	`

	var count uint64
	row := s.conn.QueryRow(ctx, query, raceID, uint8(assetIndex), uint64(slot))
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanPriceTicks scans multiple rows.
func scanPriceTicks(rows driver.Rows) ([]*domain.PriceTick, error) {
	var ticks []*domain.PriceTick

	for rows.Next() {
		var tick domain.PriceTick
		var assetIndex uint8
		var slot, timestampMs uint64

		err := rows.Scan(
			&tick.RaceID, &assetIndex, &tick.Mint,
			&tick.Price, &slot, &timestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price tick row: %w", err)
		}

		tick.AssetIndex = int(assetIndex)
		tick.Slot = int64(slot)
		tick.Timestamp = int64(timestampMs)
		ticks = append(ticks, &tick)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price tick rows: %w", err)
	}

	return ticks, nil
}
