// Package stats implements the statistical anti-cheat analyzer: per-user and
// population baselines, z-score outlier detection, trend regression, and a
// rules-based anomaly/risk assessment. The analyzer only reports; blocking or
// banning belongs to a moderation workflow.
package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/MindFlowInteractive/quest-api-sub002/internal/apperr"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/cache"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/models"
)

// Refresh parameters.
const (
	userHistoryLimit = 100
	populationWindow = 30 * 24 * time.Hour
)

// Outlier thresholds per comparison basis.
const (
	PopulationZThreshold = 2.5
	PersonalZThreshold   = 3.0
)

// HistoryStore is the slice of the persistence layer the analyzer reads.
type HistoryStore interface {
	FetchLastNCompletions(ctx context.Context, userID uuid.UUID, n int) ([]models.CompletionRecord, error)
	FetchPopulationAggregate(ctx context.Context, window time.Duration) (models.PopulationStatistics, error)
}

// Service computes and caches statistics and analyzes solution attempts.
type Service struct {
	store HistoryStore
	cache cache.StatsCache
	log   *logrus.Logger
}

// NewService wires the analyzer to its store and cache.
func NewService(store HistoryStore, statsCache cache.StatsCache, log *logrus.Logger) *Service {
	return &Service{store: store, cache: statsCache, log: log}
}

// GetUserStatistics returns the cached per-user aggregate, refreshing from
// the store on miss. A user with no completions yields (nil, nil): the
// caller degrades to a population-only comparison.
func (s *Service) GetUserStatistics(ctx context.Context, userID uuid.UUID) (*models.UserStatistics, error) {
	if cached, ok := s.cache.GetUserStats(ctx, userID); ok {
		return &cached, nil
	}

	recs, err := s.store.FetchLastNCompletions(ctx, userID, userHistoryLimit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindData, err, "refresh user statistics")
	}
	if len(recs) == 0 {
		return nil, nil
	}

	computed := computeUserStatistics(userID, recs)
	s.cache.SetUserStats(ctx, computed)
	return &computed, nil
}

// GetPopulationStatistics returns the cached population aggregate, refreshing
// from the store on miss.
func (s *Service) GetPopulationStatistics(ctx context.Context) (models.PopulationStatistics, error) {
	if cached, ok := s.cache.GetPopulationStats(ctx); ok {
		return cached, nil
	}

	pop, err := s.store.FetchPopulationAggregate(ctx, populationWindow)
	if err != nil {
		return models.PopulationStatistics{}, apperr.Wrap(apperr.KindData, err, "refresh population statistics")
	}
	s.cache.SetPopulationStats(ctx, pop)
	return pop, nil
}

// computeUserStatistics folds the fetched records (newest first) into the
// cached aggregate. RecentScores comes out oldest first for trend analysis.
func computeUserStatistics(userID uuid.UUID, recs []models.CompletionRecord) models.UserStatistics {
	n := len(recs)
	scores := make([]float64, n)
	times := make([]float64, n)
	completed := 0
	for i, rec := range recs {
		// Reverse into chronological order.
		scores[n-1-i] = float64(rec.Score)
		times[n-1-i] = float64(rec.CompletionTimeMs)
		if rec.IsCompleted {
			completed++
		}
	}

	meanScore, stdScore := stat.MeanStdDev(scores, nil)
	meanTime, stdTime := stat.MeanStdDev(times, nil)
	if n < 2 {
		stdScore, stdTime = 0, 0
	}
	accuracy := float64(completed) / float64(n)

	return models.UserStatistics{
		UserID:        userID,
		SampleSize:    n,
		MeanScore:     meanScore,
		StdDevScore:   stdScore,
		MeanTimeMs:    meanTime,
		StdDevTimeMs:  stdTime,
		MeanAccuracy:  accuracy,
		SkillEstimate: meanScore * (0.5 + 0.5*accuracy),
		RecentScores:  scores,
		ComputedAt:    time.Now(),
	}
}

// absorbSample folds one new performance sample into a cached user aggregate
// so repeat analyses inside the TTL see the attempt without a store round
// trip. Standard deviations are left as computed; only the running means and
// the score series move.
func absorbSample(stats *models.UserStatistics, sample PerformanceSample) {
	n := float64(stats.SampleSize + 1)
	stats.MeanScore += (sample.Score - stats.MeanScore) / n
	stats.MeanTimeMs += (sample.TimeMs - stats.MeanTimeMs) / n
	stats.MeanAccuracy += (sample.Accuracy - stats.MeanAccuracy) / n
	stats.SampleSize++
	stats.RecentScores = append(stats.RecentScores, sample.Score)
	if len(stats.RecentScores) > userHistoryLimit {
		stats.RecentScores = stats.RecentScores[len(stats.RecentScores)-userHistoryLimit:]
	}
	stats.SkillEstimate = stats.MeanScore * (0.5 + 0.5*stats.MeanAccuracy)
}
