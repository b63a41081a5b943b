package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeClaimID computes a deterministic claim record ID using SHA256.
// Formula: SHA256(race_id|player|signature)
// Returns hex-encoded hash (64 characters). The same resolved claim always
// maps to the same ID, so repeated reconciliations stay idempotent.
func ComputeClaimID(raceID, player, signature string) string {
	data := fmt.Sprintf("%s|%s|%s", raceID, player, signature)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeWagerID computes a deterministic wager record ID using SHA256.
// Formula: SHA256(race_id|player|asset_index)
func ComputeWagerID(raceID, player string, assetIndex int) string {
	data := fmt.Sprintf("%s|%s|%d", raceID, player, assetIndex)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
