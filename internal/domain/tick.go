package domain

// PriceTick is one observed price for one race asset.
// Corresponds to price_ticks table in ClickHouse.
type PriceTick struct {
	RaceID     string
	AssetIndex int
	Mint       string  // token mint address (base58)
	Price      float64 // observed price in display currency
	Slot       int64   // Solana slot of the observation
	Timestamp  int64   // Unix timestamp in milliseconds
}
