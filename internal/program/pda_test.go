package program

import (
	"testing"

	"github.com/mr-tron/base58"
)

func TestDeriveWagerAddressDeterministic(t *testing.T) {
	programID := testPubkey(11)
	race := testPubkey(7)
	player := testPubkey(3)

	a, err := DeriveWagerAddress(programID, race, player)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := DeriveWagerAddress(programID, race, player)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a != b {
		t.Errorf("derivation not deterministic: %s vs %s", a, b)
	}
	if err := ValidateAddress(a); err != nil {
		t.Errorf("derived address invalid: %v", err)
	}
}

func TestDeriveWagerAddressOffCurve(t *testing.T) {
	addr, err := DeriveWagerAddress(testPubkey(11), testPubkey(7), testPubkey(3))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if isOnCurve(raw) {
		t.Error("derived address lies on the curve")
	}
}

func TestDeriveWagerAddressDistinctPlayers(t *testing.T) {
	a, err := DeriveWagerAddress(testPubkey(11), testPubkey(7), testPubkey(3))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := DeriveWagerAddress(testPubkey(11), testPubkey(7), testPubkey(4))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a == b {
		t.Error("different players derived the same address")
	}
}

func TestDeriveWagerAddressRejectsBadInput(t *testing.T) {
	if _, err := DeriveWagerAddress("short", testPubkey(7), testPubkey(3)); err == nil {
		t.Error("expected error for bad program id")
	}
	if _, err := DeriveWagerAddress(testPubkey(11), "!!!", testPubkey(3)); err == nil {
		t.Error("expected error for bad race pubkey")
	}
}

func TestValidateAddress(t *testing.T) {
	if err := ValidateAddress(testPubkey(1)); err != nil {
		t.Errorf("valid address rejected: %v", err)
	}
	if err := ValidateAddress(base58.Encode([]byte{1, 2, 3})); err == nil {
		t.Error("short address accepted")
	}
	if err := ValidateAddress("0OIl"); err == nil {
		t.Error("non-base58 address accepted")
	}
}
