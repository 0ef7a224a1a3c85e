// Package database persists completion records and player difficulty
// metrics. Two backends implement the same Store interface: Postgres via
// pgx for deployments and embedded SQLite for local or single-node runs.
package database

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/MindFlowInteractive/quest-api-sub002/internal/models"
)

// Store is the persistence collaborator of the engine and the analyzer.
// Reads may block on I/O; every method honors ctx cancellation.
type Store interface {
	// AppendCompletedAttempt writes one finished attempt.
	AppendCompletedAttempt(ctx context.Context, rec models.CompletionRecord) error

	// FetchLastNCompletions returns up to n records for the user, newest
	// first.
	FetchLastNCompletions(ctx context.Context, userID uuid.UUID, n int) ([]models.CompletionRecord, error)

	// FetchPopulationAggregate summarizes all records newer than the window.
	FetchPopulationAggregate(ctx context.Context, window time.Duration) (models.PopulationStatistics, error)

	// UpsertDifficultyMetrics persists a player's rolling metrics.
	UpsertDifficultyMetrics(ctx context.Context, m models.PlayerDifficultyMetrics) error

	// FetchDifficultyMetrics loads a player's metrics; (nil, nil) when the
	// player has none yet.
	FetchDifficultyMetrics(ctx context.Context, userID uuid.UUID) (*models.PlayerDifficultyMetrics, error)

	Close()
}

// aggregate folds raw samples into a population summary. Shared by backends
// whose SQL dialect lacks stddev aggregates.
type aggregate struct {
	n          int
	sumScore   float64
	sumScore2  float64
	sumTime    float64
	sumTime2   float64
	completed  int
	windowDays int
}

func (a *aggregate) add(score, timeMs float64, isCompleted bool) {
	a.n++
	a.sumScore += score
	a.sumScore2 += score * score
	a.sumTime += timeMs
	a.sumTime2 += timeMs * timeMs
	if isCompleted {
		a.completed++
	}
}

func (a *aggregate) result() models.PopulationStatistics {
	out := models.PopulationStatistics{
		SampleSize: a.n,
		WindowDays: a.windowDays,
		ComputedAt: time.Now(),
	}
	if a.n == 0 {
		return out
	}
	n := float64(a.n)
	out.MeanScore = a.sumScore / n
	out.MeanTimeMs = a.sumTime / n
	out.MeanAccuracy = float64(a.completed) / n
	if a.n > 1 {
		out.StdDevScore = sampleStdDev(a.sumScore, a.sumScore2, n)
		out.StdDevTimeMs = sampleStdDev(a.sumTime, a.sumTime2, n)
	}
	return out
}

// sampleStdDev computes the Bessel-corrected standard deviation from running
// sums.
func sampleStdDev(sum, sum2, n float64) float64 {
	variance := (sum2 - sum*sum/n) / (n - 1)
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}
