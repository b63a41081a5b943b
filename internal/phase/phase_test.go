package phase

import (
	"testing"
	"time"

	"momentum-engine/internal/domain"
)

func testRace() *domain.Race {
	return &domain.Race{
		RaceID:   "race-1",
		StartTs:  1000,
		LockTs:   1060,
		SettleTs: 1120,
	}
}

func at(ts int64) time.Time {
	return time.Unix(ts, 0)
}

func TestResolve_Phases(t *testing.T) {
	race := testRace()

	tests := []struct {
		name string
		ts   int64
		want domain.Phase
	}{
		{"before start", 900, domain.PhaseCommit},
		{"mid commit", 1030, domain.PhaseCommit},
		{"one second before lock", 1059, domain.PhaseCommit},
		{"exactly at lock", 1060, domain.PhasePerformance},
		{"mid performance", 1090, domain.PhasePerformance},
		{"exactly at settle", 1120, domain.PhaseSettled},
		{"long after settle", 9999, domain.PhaseSettled},
	}

	for _, tt := range tests {
		if got := Resolve(at(tt.ts), race); got != tt.want {
			t.Errorf("%s: Resolve(%d) = %s, want %s", tt.name, tt.ts, got, tt.want)
		}
	}
}

func TestResolve_LockBoundaryRejectsCommit(t *testing.T) {
	race := testRace()

	// A bet placed at the exact lock instant must already see performance.
	if got := Resolve(at(race.LockTs), race); got == domain.PhaseCommit {
		t.Errorf("Resolve at LockTs = %s, must not be commit", got)
	}
}

func TestTimeRemaining(t *testing.T) {
	race := testRace()

	if got := TimeRemaining(at(1030), race); got != 30 {
		t.Errorf("commit remaining = %d, want 30", got)
	}
	if got := TimeRemaining(at(1060), race); got != 60 {
		t.Errorf("performance remaining at lock = %d, want 60", got)
	}
	if got := TimeRemaining(at(1120), race); got != 0 {
		t.Errorf("settled remaining = %d, want 0", got)
	}
	if got := TimeRemaining(at(99999), race); got != 0 {
		t.Errorf("remaining long after settle = %d, want 0", got)
	}
}

func TestTimeRemaining_NeverNegative(t *testing.T) {
	// Inverted timestamps must clamp, not go negative.
	race := &domain.Race{StartTs: 1000, LockTs: 900, SettleTs: 800}

	for _, ts := range []int64{0, 850, 950, 1100} {
		if got := TimeRemaining(at(ts), race); got < 0 {
			t.Errorf("TimeRemaining(%d) = %d, want >= 0", ts, got)
		}
	}
}

func TestProgressFraction(t *testing.T) {
	race := testRace()

	if got := ProgressFraction(at(1030), race); got != 0.5 {
		t.Errorf("commit progress = %f, want 0.5", got)
	}
	if got := ProgressFraction(at(1090), race); got != 0.5 {
		t.Errorf("performance progress = %f, want 0.5", got)
	}
	if got := ProgressFraction(at(1200), race); got != 1 {
		t.Errorf("settled progress = %f, want 1", got)
	}

	// Before start the commit window has not elapsed at all.
	if got := ProgressFraction(at(900), race); got != 0 {
		t.Errorf("pre-start progress = %f, want 0", got)
	}
}

func TestProgressFraction_Bounds(t *testing.T) {
	race := testRace()

	for ts := int64(800); ts <= 1300; ts += 7 {
		got := ProgressFraction(at(ts), race)
		if got < 0 || got > 1 {
			t.Fatalf("ProgressFraction(%d) = %f, out of [0,1]", ts, got)
		}
	}
}

func TestProgressFraction_DegenerateWindow(t *testing.T) {
	// Zero-length commit window: progress reports complete, no NaN.
	race := &domain.Race{StartTs: 1000, LockTs: 1000, SettleTs: 1060}

	got := ProgressFraction(at(999), race)
	if got != got { // NaN check
		t.Fatal("ProgressFraction returned NaN for zero-length window")
	}
	if got != 1 {
		t.Errorf("degenerate window progress = %f, want 1", got)
	}
}
