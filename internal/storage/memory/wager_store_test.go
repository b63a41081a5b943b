package memory

import (
	"context"
	"errors"
	"testing"

	"momentum-engine/internal/domain"
	"momentum-engine/internal/storage"
)

func testWager(raceID, player string, createdAt int64) *domain.Wager {
	return &domain.Wager{
		RaceID:       raceID,
		Player:       player,
		AssetIndex:   1,
		AmountMicros: 100_000_000,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

func TestWagerStore_InsertAndGet(t *testing.T) {
	store := NewWagerStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testWager("r1", "p1", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByRaceAndPlayer(ctx, "r1", "p1")
	if err != nil {
		t.Fatalf("GetByRaceAndPlayer failed: %v", err)
	}
	if got.AmountMicros != 100_000_000 || got.Claimed {
		t.Errorf("Unexpected wager: %+v", got)
	}
}

func TestWagerStore_DuplicateKey(t *testing.T) {
	store := NewWagerStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testWager("r1", "p1", 1000)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, testWager("r1", "p1", 2000))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestWagerStore_UpdateAmount(t *testing.T) {
	store := NewWagerStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testWager("r1", "p1", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.UpdateAmount(ctx, "r1", "p1", 250_000_000); err != nil {
		t.Fatalf("UpdateAmount failed: %v", err)
	}

	got, err := store.GetByRaceAndPlayer(ctx, "r1", "p1")
	if err != nil {
		t.Fatalf("GetByRaceAndPlayer failed: %v", err)
	}
	if got.AmountMicros != 250_000_000 {
		t.Errorf("AmountMicros = %d, want 250_000_000", got.AmountMicros)
	}
	if got.UpdatedAt <= 1000 {
		t.Errorf("UpdatedAt = %d, expected refresh", got.UpdatedAt)
	}

	if err := store.UpdateAmount(ctx, "r1", "ghost", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateAmount(ctx, "r1", "p1", 0); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestWagerStore_InvalidInput(t *testing.T) {
	store := NewWagerStore()
	ctx := context.Background()

	cases := []*domain.Wager{
		nil,
		{Player: "p1", AmountMicros: 1},
		{RaceID: "r1", AmountMicros: 1},
		{RaceID: "r1", Player: "p1", AmountMicros: 0},
		{RaceID: "r1", Player: "p1", AmountMicros: -5},
		{RaceID: "r1", Player: "p1", AmountMicros: 1, AssetIndex: -1},
	}
	for i, w := range cases {
		if err := store.Insert(ctx, w); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestWagerStore_MarkClaimed(t *testing.T) {
	store := NewWagerStore()
	ctx := context.Background()

	_ = store.Insert(ctx, testWager("r1", "p1", 1000))

	if err := store.MarkClaimed(ctx, "r1", "p1"); err != nil {
		t.Fatalf("MarkClaimed failed: %v", err)
	}

	got, _ := store.GetByRaceAndPlayer(ctx, "r1", "p1")
	if !got.Claimed {
		t.Error("Expected Claimed = true")
	}
	if got.UpdatedAt == 1000 {
		t.Error("Expected UpdatedAt refreshed on claim")
	}

	// Claiming again is a no-op, not an error.
	if err := store.MarkClaimed(ctx, "r1", "p1"); err != nil {
		t.Errorf("Second MarkClaimed failed: %v", err)
	}
}

func TestWagerStore_MarkClaimedNotFound(t *testing.T) {
	store := NewWagerStore()

	err := store.MarkClaimed(context.Background(), "r1", "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestWagerStore_GetByRace(t *testing.T) {
	store := NewWagerStore()
	ctx := context.Background()

	_ = store.Insert(ctx, testWager("r1", "p2", 2000))
	_ = store.Insert(ctx, testWager("r1", "p1", 1000))
	_ = store.Insert(ctx, testWager("r2", "p1", 1500))

	wagers, err := store.GetByRace(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRace failed: %v", err)
	}
	if len(wagers) != 2 {
		t.Fatalf("Expected 2 wagers, got %d", len(wagers))
	}
	if wagers[0].Player != "p1" || wagers[1].Player != "p2" {
		t.Errorf("Wrong order: %s, %s", wagers[0].Player, wagers[1].Player)
	}
}

func TestWagerStore_GetByPlayer(t *testing.T) {
	store := NewWagerStore()
	ctx := context.Background()

	_ = store.Insert(ctx, testWager("r1", "p1", 1000))
	_ = store.Insert(ctx, testWager("r2", "p1", 2000))
	_ = store.Insert(ctx, testWager("r1", "p2", 1500))

	wagers, err := store.GetByPlayer(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByPlayer failed: %v", err)
	}
	if len(wagers) != 2 {
		t.Fatalf("Expected 2 wagers, got %d", len(wagers))
	}
	if wagers[0].RaceID != "r1" || wagers[1].RaceID != "r2" {
		t.Errorf("Wrong order: %s, %s", wagers[0].RaceID, wagers[1].RaceID)
	}
}

func TestWagerStore_CopyOnRead(t *testing.T) {
	store := NewWagerStore()
	ctx := context.Background()

	_ = store.Insert(ctx, testWager("r1", "p1", 1000))

	got, _ := store.GetByRaceAndPlayer(ctx, "r1", "p1")
	got.AmountMicros = 0

	again, _ := store.GetByRaceAndPlayer(ctx, "r1", "p1")
	if again.AmountMicros != 100_000_000 {
		t.Errorf("Store mutated through read result: %d", again.AmountMicros)
	}
}
