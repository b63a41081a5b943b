// Package program decodes the race program's on-chain accounts and derives
// its program-derived addresses. Account data arrives base64-encoded from
// RPC and follows borsh-style little-endian layouts.
package program

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/mr-tron/base58"

	"momentum-engine/internal/domain"
)

// Account discriminators, first 8 bytes of account data.
var (
	raceDiscriminator  = [8]byte{0x92, 0x1b, 0x5e, 0xa7, 0x03, 0xd0, 0x4c, 0x11}
	wagerDiscriminator = [8]byte{0x3c, 0xf8, 0x21, 0x6e, 0xb2, 0x44, 0x9a, 0x5d}
)

// Decode errors.
var (
	ErrBadDiscriminator = errors.New("unexpected account discriminator")
	ErrTruncatedAccount = errors.New("account data truncated")
)

// priceScale converts on-chain micro-prices to display prices.
const priceScale = 1e6

// Race account layout:
//   - discriminator: 8 bytes
//   - authority: Pubkey (32 bytes)
//   - start_ts, lock_ts, settle_ts: i64 each
//   - fee_bps: u16
//   - participant_count: u32
//   - total_pool_micros: u64
//   - asset_count: u8
//   - per asset: mint (32 bytes), start_price_micros u64,
//     current_price_micros u64 (oracle-updated),
//     end_price Option<u64> (1 tag byte + 8 when set), pool_micros u64
const raceHeaderLen = 8 + 32 + 8*3 + 2 + 4 + 8 + 1

// DecodeRace parses a race account into a domain snapshot. The account's
// own address doubles as the race identifier.
func DecodeRace(pubkey, dataBase64 string) (*domain.Race, error) {
	data, err := base64.StdEncoding.DecodeString(dataBase64)
	if err != nil {
		return nil, fmt.Errorf("decode race account data: %w", err)
	}
	if len(data) < raceHeaderLen {
		return nil, ErrTruncatedAccount
	}
	if [8]byte(data[:8]) != raceDiscriminator {
		return nil, ErrBadDiscriminator
	}

	race := &domain.Race{
		RaceID: pubkey,
		Pubkey: pubkey,
	}

	offset := 8 + 32 // skip discriminator + authority
	race.StartTs = int64(binary.LittleEndian.Uint64(data[offset:]))
	offset += 8
	race.LockTs = int64(binary.LittleEndian.Uint64(data[offset:]))
	offset += 8
	race.SettleTs = int64(binary.LittleEndian.Uint64(data[offset:]))
	offset += 8
	race.FeeBps = int64(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2
	race.ParticipantCount = int64(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	race.TotalPoolMicros = int64(binary.LittleEndian.Uint64(data[offset:]))
	offset += 8

	assetCount := int(data[offset])
	offset++

	race.Assets = make([]domain.RaceAsset, 0, assetCount)
	race.AssetPoolMicros = make([]int64, 0, assetCount)

	for i := 0; i < assetCount; i++ {
		if len(data) < offset+32+8+8+1 {
			return nil, ErrTruncatedAccount
		}

		var asset domain.RaceAsset
		asset.Mint = base58.Encode(data[offset : offset+32])
		offset += 32

		asset.StartPrice = float64(binary.LittleEndian.Uint64(data[offset:])) / priceScale
		offset += 8

		asset.CurrentPrice = float64(binary.LittleEndian.Uint64(data[offset:])) / priceScale
		offset += 8

		// end_price is a borsh Option<u64>.
		switch data[offset] {
		case 0:
			offset++
		case 1:
			offset++
			if len(data) < offset+8 {
				return nil, ErrTruncatedAccount
			}
			end := float64(binary.LittleEndian.Uint64(data[offset:])) / priceScale
			asset.EndPrice = &end
			offset += 8
		default:
			return nil, fmt.Errorf("asset %d: invalid end_price option tag %d", i, data[offset])
		}

		if len(data) < offset+8 {
			return nil, ErrTruncatedAccount
		}
		pool := int64(binary.LittleEndian.Uint64(data[offset:]))
		offset += 8

		race.Assets = append(race.Assets, asset)
		race.AssetPoolMicros = append(race.AssetPoolMicros, pool)
	}

	return race, nil
}

// Wager account layout:
//   - discriminator: 8 bytes
//   - race: Pubkey (32 bytes)
//   - player: Pubkey (32 bytes)
//   - asset_index: u8
//   - amount_micros: u64
//   - claimed: u8 (0 | 1)
const wagerAccountLen = 8 + 32 + 32 + 1 + 8 + 1

// DecodeWager parses a wager account.
func DecodeWager(dataBase64 string) (*domain.Wager, error) {
	data, err := base64.StdEncoding.DecodeString(dataBase64)
	if err != nil {
		return nil, fmt.Errorf("decode wager account data: %w", err)
	}
	if len(data) < wagerAccountLen {
		return nil, ErrTruncatedAccount
	}
	if [8]byte(data[:8]) != wagerDiscriminator {
		return nil, ErrBadDiscriminator
	}

	offset := 8
	wager := &domain.Wager{}
	wager.RaceID = base58.Encode(data[offset : offset+32])
	offset += 32
	wager.Player = base58.Encode(data[offset : offset+32])
	offset += 32
	wager.AssetIndex = int(data[offset])
	offset++
	wager.AmountMicros = int64(binary.LittleEndian.Uint64(data[offset:]))
	offset += 8
	wager.Claimed = data[offset] == 1

	return wager, nil
}

// EncodeRace serializes a race snapshot into account data, the inverse of
// DecodeRace. Used by tests and fixtures; the program owns real accounts.
func EncodeRace(race *domain.Race, authority [32]byte) (string, error) {
	if len(race.Assets) != len(race.AssetPoolMicros) {
		return "", fmt.Errorf("asset/pool length mismatch: %d vs %d", len(race.Assets), len(race.AssetPoolMicros))
	}

	buf := make([]byte, 0, raceHeaderLen+len(race.Assets)*(32+8+8+9+8))
	buf = append(buf, raceDiscriminator[:]...)
	buf = append(buf, authority[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(race.StartTs))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(race.LockTs))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(race.SettleTs))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(race.FeeBps))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(race.ParticipantCount))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(race.TotalPoolMicros))
	buf = append(buf, byte(len(race.Assets)))

	for i, asset := range race.Assets {
		mint, err := decodePubkey(asset.Mint)
		if err != nil {
			return "", fmt.Errorf("asset %d mint: %w", i, err)
		}
		buf = append(buf, mint[:]...)
		buf = binary.LittleEndian.AppendUint64(buf, microPrice(asset.StartPrice))
		buf = binary.LittleEndian.AppendUint64(buf, microPrice(asset.CurrentPrice))
		if asset.EndPrice != nil {
			buf = append(buf, 1)
			buf = binary.LittleEndian.AppendUint64(buf, microPrice(*asset.EndPrice))
		} else {
			buf = append(buf, 0)
		}
		buf = binary.LittleEndian.AppendUint64(buf, uint64(race.AssetPoolMicros[i]))
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}

// EncodeWager serializes a wager account, the inverse of DecodeWager.
func EncodeWager(wager *domain.Wager) (string, error) {
	race, err := decodePubkey(wager.RaceID)
	if err != nil {
		return "", fmt.Errorf("race pubkey: %w", err)
	}
	player, err := decodePubkey(wager.Player)
	if err != nil {
		return "", fmt.Errorf("player pubkey: %w", err)
	}

	buf := make([]byte, 0, wagerAccountLen)
	buf = append(buf, wagerDiscriminator[:]...)
	buf = append(buf, race[:]...)
	buf = append(buf, player[:]...)
	buf = append(buf, byte(wager.AssetIndex))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(wager.AmountMicros))
	if wager.Claimed {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}

// microPrice converts a display price to on-chain micro-units, rounding to
// the nearest micro.
func microPrice(p float64) uint64 {
	return uint64(math.Round(p * priceScale))
}

// decodePubkey decodes a base58 address into its 32 raw bytes.
func decodePubkey(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := base58.Decode(s)
	if err != nil {
		return out, fmt.Errorf("decode base58: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("pubkey length %d, want 32", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
