package program

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// wagerSeed prefixes every wager PDA derivation.
const wagerSeed = "wager"

// ErrNoBump means no off-curve address exists for the seed set. Practically
// unreachable, but the bump search is bounded so it has to be representable.
var ErrNoBump = errors.New("no valid bump seed found")

// DeriveWagerAddress computes the PDA holding a player's wager for a race:
// seeds ["wager", race, player] under the race program.
func DeriveWagerAddress(programID, racePubkey, player string) (string, error) {
	race, err := decodePubkey(racePubkey)
	if err != nil {
		return "", fmt.Errorf("race pubkey: %w", err)
	}
	playerKey, err := decodePubkey(player)
	if err != nil {
		return "", fmt.Errorf("player pubkey: %w", err)
	}
	addr, _, err := deriveAddress([][]byte{[]byte(wagerSeed), race[:], playerKey[:]}, programID)
	return addr, err
}

// deriveAddress finds the program-derived address for a seed set, walking
// bump seeds from 255 down until the hash lands off the ed25519 curve.
func deriveAddress(seeds [][]byte, programID string) (string, uint8, error) {
	program, err := decodePubkey(programID)
	if err != nil {
		return "", 0, fmt.Errorf("program id: %w", err)
	}

	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(program[:])
		h.Write([]byte("ProgramDerivedAddress"))

		candidate := h.Sum(nil)
		if !isOnCurve(candidate) {
			return base58.Encode(candidate), uint8(bump), nil
		}
	}

	return "", 0, ErrNoBump
}

// isOnCurve reports whether the 32 bytes form a valid ed25519 point. PDAs
// must not, so nobody can hold their private key.
func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// ValidateAddress checks that s is a well-formed base58 32-byte address.
func ValidateAddress(s string) error {
	_, err := decodePubkey(s)
	return err
}
