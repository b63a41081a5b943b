package domain

// Phase is the derived lifecycle phase of a race.
// It is a pure function of (now, LockTs, SettleTs), recomputed on every
// read and never stored.
type Phase string

const (
	// PhaseCommit accepts new and increased wagers.
	PhaseCommit Phase = "commit"
	// PhasePerformance means pools are locked and the race is running.
	PhasePerformance Phase = "performance"
	// PhaseSettled means the race is final and claims are allowed.
	PhaseSettled Phase = "settled"
)

// RaceAsset is one competing asset in a race.
type RaceAsset struct {
	Symbol       string   // display symbol, e.g. "SOL"
	Mint         string   // token mint address (base58)
	StartPrice   float64  // price fixed when the race opened
	EndPrice     *float64 // price fixed at settlement (nil until final)
	CurrentPrice float64  // latest observed price
}

// Race is a read-mostly snapshot of an on-chain race account.
// All pool quantities are integer micro-units (1e6 micro = 1 display unit)
// so money math never touches floating point.
type Race struct {
	RaceID           string      // deterministic race identifier
	Pubkey           string      // race account address (base58)
	StartTs          int64       // unix seconds, race opens
	LockTs           int64       // unix seconds, betting closes
	SettleTs         int64       // unix seconds, race settles
	Assets           []RaceAsset // ordered, index-addressed
	TotalPoolMicros  int64
	AssetPoolMicros  []int64 // per-asset subtotals, sum to TotalPoolMicros
	FeeBps           int64   // fee in basis points, e.g. 500 = 5%
	ParticipantCount int64
	UpdatedAt        int64 // snapshot refresh timestamp (ms)
}

// PoolsConsistent reports whether per-asset pools sum to the total pool
// and no pool is negative.
func (r *Race) PoolsConsistent() bool {
	var sum int64
	for _, p := range r.AssetPoolMicros {
		if p < 0 {
			return false
		}
		sum += p
	}
	return sum == r.TotalPoolMicros && r.TotalPoolMicros >= 0
}

// Finalized reports whether every asset carries an end price, i.e. the
// race can be settled.
func (r *Race) Finalized() bool {
	if len(r.Assets) == 0 {
		return false
	}
	for _, a := range r.Assets {
		if a.EndPrice == nil {
			return false
		}
	}
	return true
}
