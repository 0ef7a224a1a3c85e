package engine

import "math"

// DifficultyMetrics is one player's rolling performance summary. Values are
// updated incrementally by the service layer after each completed session
// and amortized, never deleted.
type DifficultyMetrics struct {
	AverageSolveTimeMs float64
	AverageMoves       float64
	SuccessRate        float64 // 0..1
	HintsUsageRate     float64 // hints per session
	Completions        int
}

// Fixed performance baselines. A player matching these exactly scores 1.0
// and keeps their requested difficulty.
const (
	baselineSolveTimeMs = 300000 // 5 minutes
	baselineMoves       = 60
)

// Performance component weights.
const (
	weightTime    = 0.3
	weightMoves   = 0.3
	weightSuccess = 0.4
)

// Multiplier clamp bounds.
const (
	minDifficultyMultiplier = 0.5
	maxDifficultyMultiplier = 1.5
)

// OptimalDifficulty scales the requested base difficulty by the player's
// performance. Each component normalizes against its fixed baseline into a
// 0-2 score (faster solves, fewer moves, and higher success all push above
// 1), the weighted sum is clamped to [0.5, 1.5], and the result is
// round(base x multiplier).
//
// A nil metrics value (unknown player) returns base unchanged: the cold
// start deliberately makes no adjustment until real data exists.
func OptimalDifficulty(m *DifficultyMetrics, base int) int {
	if m == nil || m.Completions == 0 {
		return base
	}

	timeScore := normalizeInverse(m.AverageSolveTimeMs, baselineSolveTimeMs)
	movesScore := normalizeInverse(m.AverageMoves, baselineMoves)
	successScore := clamp02(m.SuccessRate * 2)

	perf := weightTime*timeScore + weightMoves*movesScore + weightSuccess*successScore
	mult := perf
	if mult < minDifficultyMultiplier {
		mult = minDifficultyMultiplier
	}
	if mult > maxDifficultyMultiplier {
		mult = maxDifficultyMultiplier
	}
	return int(math.Round(float64(base) * mult))
}

// normalizeInverse maps value against baseline so that lower-is-better:
// value == baseline scores 1.0, half the baseline scores 2.0, clamped to
// [0, 2]. Non-positive values score the neutral 1.0.
func normalizeInverse(value, baseline float64) float64 {
	if value <= 0 {
		return 1.0
	}
	return clamp02(baseline / value)
}

func clamp02(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 2 {
		return 2
	}
	return v
}
