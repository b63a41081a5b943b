package memory

import (
	"context"
	"sort"
	"sync"

	"momentum-engine/internal/domain"
	"momentum-engine/internal/storage"
)

// PriceTickStore is an in-memory implementation of storage.PriceTickStore.
type PriceTickStore struct {
	mu   sync.RWMutex
	data map[tickKey]*domain.PriceTick
}

type tickKey struct {
	raceID     string
	assetIndex int
	slot       int64
}

// NewPriceTickStore creates a new in-memory price tick store.
func NewPriceTickStore() *PriceTickStore {
	return &PriceTickStore{
		data: make(map[tickKey]*domain.PriceTick),
	}
}

// InsertBulk adds multiple ticks. Fails the entire batch on any duplicate
// (race_id, asset_index, slot).
func (s *PriceTickStore) InsertBulk(_ context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before writing anything.
	seen := make(map[tickKey]struct{}, len(ticks))
	for _, tick := range ticks {
		if tick == nil || tick.RaceID == "" {
			return storage.ErrInvalidInput
		}
		k := tickKey{tick.RaceID, tick.AssetIndex, tick.Slot}
		if _, dup := seen[k]; dup {
			return storage.ErrDuplicateKey
		}
		if _, dup := s.data[k]; dup {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, tick := range ticks {
		tickCopy := *tick
		s.data[tickKey{tick.RaceID, tick.AssetIndex, tick.Slot}] = &tickCopy
	}
	return nil
}

// GetByRace retrieves all ticks for a race, ordered by slot ASC.
func (s *PriceTickStore) GetByRace(_ context.Context, raceID string) ([]*domain.PriceTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceTick
	for _, tick := range s.data {
		if tick.RaceID == raceID {
			tickCopy := *tick
			result = append(result, &tickCopy)
		}
	}

	sortTicks(result)
	return result, nil
}

// GetByTimeRange retrieves ticks for one asset of a race within [start, end]
// (inclusive, timestamp ms), ordered by slot ASC.
func (s *PriceTickStore) GetByTimeRange(_ context.Context, raceID string, assetIndex int, start, end int64) ([]*domain.PriceTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceTick
	for _, tick := range s.data {
		if tick.RaceID == raceID && tick.AssetIndex == assetIndex &&
			tick.Timestamp >= start && tick.Timestamp <= end {
			tickCopy := *tick
			result = append(result, &tickCopy)
		}
	}

	sortTicks(result)
	return result, nil
}

func sortTicks(ticks []*domain.PriceTick) {
	sort.Slice(ticks, func(i, j int) bool {
		if ticks[i].Slot != ticks[j].Slot {
			return ticks[i].Slot < ticks[j].Slot
		}
		return ticks[i].AssetIndex < ticks[j].AssetIndex
	})
}

// Verify interface compliance at compile time.
var _ storage.PriceTickStore = (*PriceTickStore)(nil)
