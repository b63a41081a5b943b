package memory

import (
	"context"
	"sort"
	"sync"

	"momentum-engine/internal/domain"
	"momentum-engine/internal/storage"
)

// RaceStore is an in-memory implementation of storage.RaceStore.
type RaceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Race // keyed by race_id
}

// NewRaceStore creates a new in-memory race store.
func NewRaceStore() *RaceStore {
	return &RaceStore{
		data: make(map[string]*domain.Race),
	}
}

// Upsert inserts or replaces the snapshot for race.RaceID.
func (s *RaceStore) Upsert(_ context.Context, race *domain.Race) error {
	if race == nil || race.RaceID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[race.RaceID] = copyRace(race)
	return nil
}

// GetByID retrieves a race by its ID. Returns ErrNotFound if not exists.
func (s *RaceStore) GetByID(_ context.Context, raceID string) (*domain.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	race, exists := s.data[raceID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRace(race), nil
}

// GetActive retrieves races whose settle time is after now, ordered by
// settle time ASC.
func (s *RaceStore) GetActive(_ context.Context, now int64) ([]*domain.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Race
	for _, race := range s.data {
		if race.SettleTs > now {
			result = append(result, copyRace(race))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SettleTs != result[j].SettleTs {
			return result[i].SettleTs < result[j].SettleTs
		}
		return result[i].RaceID < result[j].RaceID
	})

	return result, nil
}

// GetByTimeRange retrieves races starting within [start, end] (inclusive).
func (s *RaceStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Race
	for _, race := range s.data {
		if race.StartTs >= start && race.StartTs <= end {
			result = append(result, copyRace(race))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartTs != result[j].StartTs {
			return result[i].StartTs < result[j].StartTs
		}
		return result[i].RaceID < result[j].RaceID
	})

	return result, nil
}

// copyRace deep-copies a race so callers cannot mutate stored state.
func copyRace(r *domain.Race) *domain.Race {
	c := *r
	c.Assets = make([]domain.RaceAsset, len(r.Assets))
	for i, a := range r.Assets {
		c.Assets[i] = a
		if a.EndPrice != nil {
			end := *a.EndPrice
			c.Assets[i].EndPrice = &end
		}
	}
	c.AssetPoolMicros = append([]int64(nil), r.AssetPoolMicros...)
	return &c
}

// Verify interface compliance at compile time.
var _ storage.RaceStore = (*RaceStore)(nil)
