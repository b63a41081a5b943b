package domain

// Wager is one player's cumulative stake on a single asset of a single race.
// A player may increase an existing wager during the commit phase, never
// decrease it or switch assets. Once the race locks the wager is immutable
// except for Claimed, which flips false->true exactly once after an
// on-chain verified claim.
type Wager struct {
	RaceID       string
	Player       string // player wallet address (base58)
	AssetIndex   int
	AmountMicros int64 // cumulative stake in micro-units
	Claimed      bool
	CreatedAt    int64 // record creation timestamp (ms)
	UpdatedAt    int64 // last stake increase or claim timestamp (ms)
}
