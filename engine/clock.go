package engine

import "time"

// SessionClock tracks elapsed play time for one session with explicit,
// caller-driven pause and resume. All methods take the current time so the
// clock never schedules anything itself and tests can drive it directly.
type SessionClock struct {
	start  time.Time
	paused bool
	frozen time.Duration // elapsed value captured at Pause
}

// NewSessionClock returns a running clock started at now.
func NewSessionClock(now time.Time) *SessionClock {
	return &SessionClock{start: now}
}

// Elapsed returns play time excluding paused spans.
func (c *SessionClock) Elapsed(now time.Time) time.Duration {
	if c.paused {
		return c.frozen
	}
	return now.Sub(c.start)
}

// Pause freezes elapsed time. Pausing an already-paused clock is a no-op.
func (c *SessionClock) Pause(now time.Time) {
	if c.paused {
		return
	}
	c.frozen = now.Sub(c.start)
	c.paused = true
}

// Resume rebases the start so elapsed time continues from the frozen value.
// Resuming a running clock is a no-op.
func (c *SessionClock) Resume(now time.Time) {
	if !c.paused {
		return
	}
	c.start = now.Add(-c.frozen)
	c.paused = false
}

// Paused reports whether the clock is frozen.
func (c *SessionClock) Paused() bool { return c.paused }

// Default scoring knobs.
const (
	DefaultTimeBonusCap = 500
	DefaultMovePenalty  = 2
	DefaultHintPenalty  = 25
)

// TimeBonus returns a linear bonus up to cap: the full cap at zero elapsed,
// shrinking to zero at the target, and zero beyond it.
func TimeBonus(elapsed, target time.Duration, cap int) int {
	if target <= 0 || elapsed < 0 || elapsed > target {
		return 0
	}
	remaining := float64(target-elapsed) / float64(target)
	return int(float64(cap)*remaining + 0.5)
}

// FinalScore composes the session score. Never negative.
func FinalScore(base, timeBonus, movesPenalty, hintsUsed, hintPenalty int) int {
	score := base + timeBonus - movesPenalty - hintsUsed*hintPenalty
	if score < 0 {
		return 0
	}
	return score
}
