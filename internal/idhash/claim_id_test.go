package idhash

import "testing"

func TestComputeClaimID_Deterministic(t *testing.T) {
	a := ComputeClaimID("race1", "player1", "sig1")
	b := ComputeClaimID("race1", "player1", "sig1")
	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestComputeClaimID_Distinct(t *testing.T) {
	base := ComputeClaimID("race1", "player1", "sig1")
	variants := []string{
		ComputeClaimID("race2", "player1", "sig1"),
		ComputeClaimID("race1", "player2", "sig1"),
		ComputeClaimID("race1", "player1", "sig2"),
		ComputeClaimID("race1", "player1", ""),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base", i)
		}
	}
}

func TestComputeClaimID_NoFieldAmbiguity(t *testing.T) {
	// Separator must prevent "ab|c" vs "a|bc" collisions.
	a := ComputeClaimID("ab", "c", "x")
	b := ComputeClaimID("a", "bc", "x")
	if a == b {
		t.Error("field boundary ambiguity")
	}
}

func TestComputeWagerID(t *testing.T) {
	a := ComputeWagerID("race1", "player1", 0)
	b := ComputeWagerID("race1", "player1", 1)
	if a == b {
		t.Error("different asset indices produced the same ID")
	}
	if a != ComputeWagerID("race1", "player1", 0) {
		t.Error("wager ID not deterministic")
	}
}
