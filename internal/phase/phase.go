// Package phase derives a race's lifecycle phase from its timestamps and
// wall-clock time. All functions are pure and safe to call on every tick.
package phase

import (
	"time"

	"momentum-engine/internal/domain"
)

// Resolve returns the phase of the race at the given instant.
// Boundary ties resolve to the later phase: at exactly LockTs the race is
// already in performance, so a bet can never land at the lock instant.
func Resolve(now time.Time, race *domain.Race) domain.Phase {
	ts := now.Unix()
	switch {
	case ts >= race.SettleTs:
		return domain.PhaseSettled
	case ts >= race.LockTs:
		return domain.PhasePerformance
	default:
		return domain.PhaseCommit
	}
}

// TimeRemaining returns whole seconds left in the current phase window.
// Never negative; settled races always report zero.
func TimeRemaining(now time.Time, race *domain.Race) int64 {
	var end int64
	switch Resolve(now, race) {
	case domain.PhaseCommit:
		end = race.LockTs
	case domain.PhasePerformance:
		end = race.SettleTs
	default:
		return 0
	}
	if left := end - now.Unix(); left > 0 {
		return left
	}
	return 0
}

// ProgressFraction returns elapsed/total within the current phase window,
// clamped to [0, 1]. Degenerate windows (zero or inverted) report full
// progress rather than dividing by zero.
func ProgressFraction(now time.Time, race *domain.Race) float64 {
	var start, end int64
	switch Resolve(now, race) {
	case domain.PhaseCommit:
		start, end = race.StartTs, race.LockTs
	case domain.PhasePerformance:
		start, end = race.LockTs, race.SettleTs
	default:
		return 1
	}

	total := end - start
	if total <= 0 {
		return 1
	}

	frac := float64(now.Unix()-start) / float64(total)
	if frac < 0 {
		return 0
	}
	if frac > 1 {
		return 1
	}
	return frac
}
