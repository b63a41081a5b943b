package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"momentum-engine/internal/domain"
	"momentum-engine/internal/storage"
)

// WagerStore is an in-memory implementation of storage.WagerStore.
type WagerStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Wager // keyed by race_id|player
}

// NewWagerStore creates a new in-memory wager store.
func NewWagerStore() *WagerStore {
	return &WagerStore{
		data: make(map[string]*domain.Wager),
	}
}

func wagerKey(raceID, player string) string {
	return raceID + "|" + player
}

// Insert adds a new wager. Returns ErrDuplicateKey if (race_id, player) exists.
func (s *WagerStore) Insert(_ context.Context, wager *domain.Wager) error {
	if wager == nil || wager.RaceID == "" || wager.Player == "" {
		return storage.ErrInvalidInput
	}
	if wager.AmountMicros <= 0 || wager.AssetIndex < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := wagerKey(wager.RaceID, wager.Player)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	wagerCopy := *wager
	s.data[key] = &wagerCopy
	return nil
}

// UpdateAmount replaces the cumulative stake for (raceID, player).
func (s *WagerStore) UpdateAmount(_ context.Context, raceID, player string, amountMicros int64) error {
	if raceID == "" || player == "" || amountMicros <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wager, exists := s.data[wagerKey(raceID, player)]
	if !exists {
		return storage.ErrNotFound
	}
	wager.AmountMicros = amountMicros
	wager.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// MarkClaimed sets the claimed flag for (raceID, player).
func (s *WagerStore) MarkClaimed(_ context.Context, raceID, player string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wager, exists := s.data[wagerKey(raceID, player)]
	if !exists {
		return storage.ErrNotFound
	}
	wager.Claimed = true
	wager.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// GetByRaceAndPlayer retrieves a single wager. Returns ErrNotFound if not exists.
func (s *WagerStore) GetByRaceAndPlayer(_ context.Context, raceID, player string) (*domain.Wager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wager, exists := s.data[wagerKey(raceID, player)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	wagerCopy := *wager
	return &wagerCopy, nil
}

// GetByRace retrieves all wagers for a race, ordered by created_at ASC.
func (s *WagerStore) GetByRace(_ context.Context, raceID string) ([]*domain.Wager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Wager
	for _, w := range s.data {
		if w.RaceID == raceID {
			wagerCopy := *w
			result = append(result, &wagerCopy)
		}
	}

	sortWagers(result)
	return result, nil
}

// GetByPlayer retrieves all wagers placed by a player, ordered by created_at ASC.
func (s *WagerStore) GetByPlayer(_ context.Context, player string) ([]*domain.Wager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Wager
	for _, w := range s.data {
		if w.Player == player {
			wagerCopy := *w
			result = append(result, &wagerCopy)
		}
	}

	sortWagers(result)
	return result, nil
}

func sortWagers(wagers []*domain.Wager) {
	sort.Slice(wagers, func(i, j int) bool {
		if wagers[i].CreatedAt != wagers[j].CreatedAt {
			return wagers[i].CreatedAt < wagers[j].CreatedAt
		}
		if wagers[i].RaceID != wagers[j].RaceID {
			return wagers[i].RaceID < wagers[j].RaceID
		}
		return wagers[i].Player < wagers[j].Player
	})
}

// Verify interface compliance at compile time.
var _ storage.WagerStore = (*WagerStore)(nil)
