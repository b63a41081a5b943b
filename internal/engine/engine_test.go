package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"momentum-engine/internal/claim"
	"momentum-engine/internal/domain"
	"momentum-engine/internal/pool"
	"momentum-engine/internal/settlement"
	"momentum-engine/internal/storage"
	"momentum-engine/internal/storage/memory"
)

type fakeClaimer struct {
	outcome *claim.Outcome
	err     error
	calls   int
}

func (f *fakeClaimer) Claim(_ context.Context, _, _ string) (*claim.Outcome, error) {
	f.calls++
	return f.outcome, f.err
}

func ptr(v float64) *float64 { return &v }

func commitRace() *domain.Race {
	return &domain.Race{
		RaceID:   "r1",
		Pubkey:   "r1",
		StartTs:  1000,
		LockTs:   1300,
		SettleTs: 1600,
		Assets: []domain.RaceAsset{
			{Symbol: "SOL", Mint: "m1", StartPrice: 150.0, CurrentPrice: 151.0},
			{Symbol: "ETH", Mint: "m2", StartPrice: 3000.0, CurrentPrice: 2990.0},
		},
		TotalPoolMicros: 1_000_000_000,
		AssetPoolMicros: []int64{700_000_000, 300_000_000},
		FeeBps:          500,
	}
}

func settledRace() *domain.Race {
	race := commitRace()
	race.Assets[0].EndPrice = ptr(153.0) // +2.0%
	race.Assets[1].EndPrice = ptr(3030.0) // +1.0%
	return race
}

func newTestEngine(t *testing.T, claimer Claimer, nowUnix int64) (*Engine, *memory.RaceStore, *memory.WagerStore) {
	t.Helper()
	races := memory.NewRaceStore()
	wagers := memory.NewWagerStore()
	e := New(Options{
		RaceStore:  races,
		WagerStore: wagers,
		Claimer:    claimer,
		Now:        func() time.Time { return time.Unix(nowUnix, 0) },
	})
	return e, races, wagers
}

func TestRaceViewDerivesPhase(t *testing.T) {
	e, races, _ := newTestEngine(t, nil, 1100)
	require.NoError(t, races.Upsert(context.Background(), commitRace()))

	view, err := e.Race(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, domain.PhaseCommit, view.Phase)
	require.Equal(t, int64(200), view.TimeRemainingSec) // until lock
	require.InDelta(t, 1.0/3.0, view.Progress, 1e-9)

	_, err = e.Race(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestActiveRacesOrdered(t *testing.T) {
	e, races, _ := newTestEngine(t, nil, 1100)
	ctx := context.Background()

	early := commitRace()
	late := commitRace()
	late.RaceID = "r2"
	late.SettleTs = 2000
	done := commitRace()
	done.RaceID = "r0"
	done.SettleTs = 900

	require.NoError(t, races.Upsert(ctx, late))
	require.NoError(t, races.Upsert(ctx, early))
	require.NoError(t, races.Upsert(ctx, done))

	views, err := e.ActiveRaces(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, "r1", views[0].Race.RaceID)
	require.Equal(t, "r2", views[1].Race.RaceID)
}

func TestPreviewPayoutWorkedExample(t *testing.T) {
	e, races, _ := newTestEngine(t, nil, 1100)
	require.NoError(t, races.Upsert(context.Background(), commitRace()))

	preview, err := e.PreviewPayout(context.Background(), "r1", "", 0, 100_000_000)
	require.NoError(t, err)
	require.Equal(t, int64(149_285_714), preview.TotalPayoutMicros)
	require.Equal(t, int64(49_285_714), preview.ProfitMicros)
	require.Equal(t, int64(1_045_000_000), preview.NetPoolMicros)
}

func TestPreviewPayoutIncludesExistingStake(t *testing.T) {
	e, races, wagers := newTestEngine(t, nil, 1100)
	ctx := context.Background()
	require.NoError(t, races.Upsert(ctx, commitRace()))
	require.NoError(t, wagers.Insert(ctx, &domain.Wager{
		RaceID: "r1", Player: "p1", AssetIndex: 0, AmountMicros: 50_000_000, CreatedAt: 1,
	}))

	withExisting, err := e.PreviewPayout(ctx, "r1", "p1", 0, 100_000_000)
	require.NoError(t, err)
	without, err := e.PreviewPayout(ctx, "r1", "", 0, 100_000_000)
	require.NoError(t, err)
	require.Greater(t, withExisting.TotalPayoutMicros, without.TotalPayoutMicros)

	// A stake on another asset does not count toward this one.
	other, err := e.PreviewPayout(ctx, "r1", "p1", 1, 100_000_000)
	require.NoError(t, err)
	fresh, err := e.PreviewPayout(ctx, "r1", "", 1, 100_000_000)
	require.NoError(t, err)
	require.Equal(t, fresh, other)
}

func TestPreviewPayoutAfterLock(t *testing.T) {
	e, races, _ := newTestEngine(t, nil, 1400)
	require.NoError(t, races.Upsert(context.Background(), commitRace()))

	preview, err := e.PreviewPayout(context.Background(), "r1", "", 0, 100_000_000)
	require.NoError(t, err)
	require.Equal(t, pool.NoteBettingClosed, preview.Note)
	require.Zero(t, preview.TotalPayoutMicros)
}

func TestRecordWager(t *testing.T) {
	e, races, wagers := newTestEngine(t, nil, 1100)
	ctx := context.Background()
	require.NoError(t, races.Upsert(ctx, commitRace()))

	wager := &domain.Wager{RaceID: "r1", Player: "p1", AssetIndex: 0, AmountMicros: 10_000_000}
	require.NoError(t, e.RecordWager(ctx, wager))
	require.NotZero(t, wager.CreatedAt)

	stored, err := wagers.GetByRaceAndPlayer(ctx, "r1", "p1")
	require.NoError(t, err)
	require.Equal(t, int64(10_000_000), stored.AmountMicros)

	// Unknown asset
	err = e.RecordWager(ctx, &domain.Wager{RaceID: "r1", Player: "p2", AssetIndex: 2, AmountMicros: 1})
	require.ErrorIs(t, err, ErrUnknownAsset)
}

func TestRecordWagerCumulativeIncrease(t *testing.T) {
	e, races, wagers := newTestEngine(t, nil, 1100)
	ctx := context.Background()
	require.NoError(t, races.Upsert(ctx, commitRace()))

	first := &domain.Wager{RaceID: "r1", Player: "p1", AssetIndex: 0, AmountMicros: 10_000_000}
	require.NoError(t, e.RecordWager(ctx, first))

	// The on-chain amount is cumulative; a repeat record raises the total.
	raised := &domain.Wager{RaceID: "r1", Player: "p1", AssetIndex: 0, AmountMicros: 25_000_000}
	require.NoError(t, e.RecordWager(ctx, raised))
	require.Equal(t, first.CreatedAt, raised.CreatedAt)

	stored, err := wagers.GetByRaceAndPlayer(ctx, "r1", "p1")
	require.NoError(t, err)
	require.Equal(t, int64(25_000_000), stored.AmountMicros)

	// An equal amount is an idempotent replay, not an error.
	require.NoError(t, e.RecordWager(ctx, &domain.Wager{
		RaceID: "r1", Player: "p1", AssetIndex: 0, AmountMicros: 25_000_000,
	}))

	// The stake never shrinks.
	err = e.RecordWager(ctx, &domain.Wager{RaceID: "r1", Player: "p1", AssetIndex: 0, AmountMicros: 1})
	require.ErrorIs(t, err, ErrStakeDecrease)

	// The asset never changes.
	err = e.RecordWager(ctx, &domain.Wager{RaceID: "r1", Player: "p1", AssetIndex: 1, AmountMicros: 30_000_000})
	require.ErrorIs(t, err, ErrAssetSwitch)

	stored, err = wagers.GetByRaceAndPlayer(ctx, "r1", "p1")
	require.NoError(t, err)
	require.Equal(t, int64(25_000_000), stored.AmountMicros)
	require.Equal(t, 0, stored.AssetIndex)
}

func TestRecordWagerAfterLock(t *testing.T) {
	e, races, _ := newTestEngine(t, nil, 1300) // lock instant belongs to performance
	require.NoError(t, races.Upsert(context.Background(), commitRace()))

	err := e.RecordWager(context.Background(), &domain.Wager{
		RaceID: "r1", Player: "p1", AssetIndex: 0, AmountMicros: 1,
	})
	require.ErrorIs(t, err, ErrBettingClosed)
}

func TestSettle(t *testing.T) {
	e, races, _ := newTestEngine(t, nil, 1700)
	ctx := context.Background()
	require.NoError(t, races.Upsert(ctx, settledRace()))

	result, err := e.Settle(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, []int{0}, result.WinningAssetIndices)
	require.InDelta(t, 2.0, result.PerformancePct[0], 1e-9)

	// Not finalized
	require.NoError(t, races.Upsert(ctx, commitRace()))
	_, err = e.Settle(ctx, "r1")
	require.ErrorIs(t, err, settlement.ErrNotFinal)
}

func TestClaimMarksLocalWager(t *testing.T) {
	claimer := &fakeClaimer{outcome: &claim.Outcome{
		Status:       claim.StatusClaimed,
		Signature:    "sig1",
		AmountMicros: 42_000_000,
	}}
	e, races, wagers := newTestEngine(t, claimer, 1700)
	ctx := context.Background()
	require.NoError(t, races.Upsert(ctx, settledRace()))
	require.NoError(t, wagers.Insert(ctx, &domain.Wager{
		RaceID: "r1", Player: "p1", AssetIndex: 0, AmountMicros: 100_000_000, CreatedAt: 1,
	}))

	outcome, err := e.Claim(ctx, "r1", "p1")
	require.NoError(t, err)
	require.Equal(t, claim.StatusClaimed, outcome.Status)
	require.Equal(t, 1, claimer.calls)

	stored, err := wagers.GetByRaceAndPlayer(ctx, "r1", "p1")
	require.NoError(t, err)
	require.True(t, stored.Claimed)
}

func TestClaimFailureLeavesWagerUnclaimed(t *testing.T) {
	claimer := &fakeClaimer{outcome: &claim.Outcome{
		Status: claim.StatusFailed,
		Kind:   claim.KindUserCancelled,
		Err:    errors.New("declined"),
	}}
	e, races, wagers := newTestEngine(t, claimer, 1700)
	ctx := context.Background()
	require.NoError(t, races.Upsert(ctx, settledRace()))
	require.NoError(t, wagers.Insert(ctx, &domain.Wager{
		RaceID: "r1", Player: "p1", AssetIndex: 0, AmountMicros: 100_000_000, CreatedAt: 1,
	}))

	outcome, err := e.Claim(ctx, "r1", "p1")
	require.NoError(t, err)
	require.Equal(t, claim.StatusFailed, outcome.Status)

	stored, _ := wagers.GetByRaceAndPlayer(ctx, "r1", "p1")
	require.False(t, stored.Claimed)
}

func TestWinnings(t *testing.T) {
	e, races, wagers := newTestEngine(t, nil, 1700)
	ctx := context.Background()
	require.NoError(t, races.Upsert(ctx, settledRace()))
	require.NoError(t, wagers.Insert(ctx, &domain.Wager{
		RaceID: "r1", Player: "winner", AssetIndex: 0, AmountMicros: 350_000_000, CreatedAt: 1,
	}))
	require.NoError(t, wagers.Insert(ctx, &domain.Wager{
		RaceID: "r1", Player: "loser", AssetIndex: 1, AmountMicros: 100_000_000, CreatedAt: 2,
	}))

	// Net pool 950M, winner pool 700M: 350M * 950M / 700M = 475M.
	amount, err := e.Winnings(ctx, "r1", "winner")
	require.NoError(t, err)
	require.Equal(t, int64(475_000_000), amount)

	amount, err = e.Winnings(ctx, "r1", "loser")
	require.NoError(t, err)
	require.Zero(t, amount)

	_, err = e.Winnings(ctx, "r1", "ghost")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
