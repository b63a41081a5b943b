package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"momentum-engine/internal/domain"
	"momentum-engine/internal/storage"
	"momentum-engine/internal/storage/postgres"
)

func testRace(id string, startTs, settleTs int64) *domain.Race {
	return &domain.Race{
		RaceID:   id,
		Pubkey:   id,
		StartTs:  startTs,
		LockTs:   startTs + 300,
		SettleTs: settleTs,
		Assets: []domain.RaceAsset{
			{Symbol: "SOL", Mint: "mint1", StartPrice: 150.0, CurrentPrice: 151.2},
			{Symbol: "ETH", Mint: "mint2", StartPrice: 3000.0, EndPrice: ptr(3090.0)},
		},
		TotalPoolMicros:  1_100_000_000,
		AssetPoolMicros:  []int64{700_000_000, 400_000_000},
		FeeBps:           500,
		ParticipantCount: 42,
		UpdatedAt:        1_700_000_000_000,
	}
}

func TestRaceStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRaceStore(pool)
	ctx := context.Background()

	race := testRace("r1", 1000, 2000)
	require.NoError(t, store.Upsert(ctx, race))

	got, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, race.TotalPoolMicros, got.TotalPoolMicros)
	require.Equal(t, race.AssetPoolMicros, got.AssetPoolMicros)
	require.Len(t, got.Assets, 2)
	require.Equal(t, "SOL", got.Assets[0].Symbol)
	require.Nil(t, got.Assets[0].EndPrice)
	require.NotNil(t, got.Assets[1].EndPrice)
	require.Equal(t, 3090.0, *got.Assets[1].EndPrice)
	require.True(t, got.PoolsConsistent())
}

func TestRaceStore_UpsertReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRaceStore(pool)
	ctx := context.Background()

	race := testRace("r1", 1000, 2000)
	require.NoError(t, store.Upsert(ctx, race))

	race.TotalPoolMicros = 2_000_000_000
	race.AssetPoolMicros = []int64{1_200_000_000, 800_000_000}
	race.ParticipantCount = 55
	require.NoError(t, store.Upsert(ctx, race))

	got, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, int64(2_000_000_000), got.TotalPoolMicros)
	require.Equal(t, int64(55), got.ParticipantCount)
}

func TestRaceStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRaceStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRaceStore_GetActiveAndTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRaceStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRace("past", 100, 500)))
	require.NoError(t, store.Upsert(ctx, testRace("soon", 900, 1500)))
	require.NoError(t, store.Upsert(ctx, testRace("later", 1000, 3000)))

	active, err := store.GetActive(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "soon", active[0].RaceID)
	require.Equal(t, "later", active[1].RaceID)

	ranged, err := store.GetByTimeRange(ctx, 100, 900)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	require.Equal(t, "past", ranged[0].RaceID)
	require.Equal(t, "soon", ranged[1].RaceID)
}
