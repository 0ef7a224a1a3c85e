package stats

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MindFlowInteractive/quest-api-sub002/internal/apperr"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/cache"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/models"
)

// fakeHistoryStore serves canned completions and aggregates, optionally
// failing to exercise degradation paths.
type fakeHistoryStore struct {
	completions map[uuid.UUID][]models.CompletionRecord
	population  models.PopulationStatistics
	userErr     error
	popErr      error
	userFetches int
	popFetches  int
}

func (f *fakeHistoryStore) FetchLastNCompletions(_ context.Context, userID uuid.UUID, n int) ([]models.CompletionRecord, error) {
	f.userFetches++
	if f.userErr != nil {
		return nil, f.userErr
	}
	recs := f.completions[userID]
	if len(recs) > n {
		recs = recs[:n]
	}
	return recs, nil
}

func (f *fakeHistoryStore) FetchPopulationAggregate(_ context.Context, _ time.Duration) (models.PopulationStatistics, error) {
	f.popFetches++
	if f.popErr != nil {
		return models.PopulationStatistics{}, f.popErr
	}
	return f.population, nil
}

// completionSeries builds records newest-first, the order the store returns.
func completionSeries(userID uuid.UUID, scoresOldestFirst []float64) []models.CompletionRecord {
	n := len(scoresOldestFirst)
	recs := make([]models.CompletionRecord, n)
	base := time.Now().Add(-time.Duration(n) * time.Hour)
	for i, score := range scoresOldestFirst {
		recs[n-1-i] = models.CompletionRecord{
			ID:               uuid.New(),
			UserID:           userID,
			Score:            int(score),
			CompletionTimeMs: 120000,
			IsCompleted:      true,
			CreatedAt:        base.Add(time.Duration(i) * time.Hour),
		}
	}
	return recs
}

func defaultPopulation() models.PopulationStatistics {
	return models.PopulationStatistics{
		SampleSize:   500,
		MeanScore:    100,
		StdDevScore:  30,
		MeanTimeMs:   300000,
		StdDevTimeMs: 90000,
		MeanAccuracy: 0.8,
		WindowDays:   30,
		ComputedAt:   time.Now(),
	}
}

func newTestService(store *fakeHistoryStore) *Service {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewService(store, cache.NewMemoryCache(), log)
}

func TestUserStatisticsComputedAndCached(t *testing.T) {
	user := uuid.New()
	store := &fakeHistoryStore{
		completions: map[uuid.UUID][]models.CompletionRecord{
			user: completionSeries(user, []float64{80, 90, 100, 110, 120}),
		},
		population: defaultPopulation(),
	}
	svc := newTestService(store)
	ctx := context.Background()

	stats, err := svc.GetUserStatistics(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 5, stats.SampleSize)
	assert.InDelta(t, 100, stats.MeanScore, 0.001)
	assert.Equal(t, []float64{80, 90, 100, 110, 120}, stats.RecentScores)
	assert.InDelta(t, 1.0, stats.MeanAccuracy, 0.001)

	// Second call is served from the cache.
	_, err = svc.GetUserStatistics(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, store.userFetches)
}

func TestUserStatisticsEmptyHistory(t *testing.T) {
	store := &fakeHistoryStore{population: defaultPopulation()}
	svc := newTestService(store)

	stats, err := svc.GetUserStatistics(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestPopulationStatisticsCached(t *testing.T) {
	store := &fakeHistoryStore{population: defaultPopulation()}
	svc := newTestService(store)
	ctx := context.Background()

	pop, err := svc.GetPopulationStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500, pop.SampleSize)
	_, err = svc.GetPopulationStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.popFetches)
}

// TestZScoreOutlierIff checks the flag is set exactly when |z| exceeds the
// basis threshold.
func TestZScoreOutlierIff(t *testing.T) {
	pop := defaultPopulation()
	cases := []struct {
		score   float64
		outlier bool
	}{
		{100, false},           // z = 0
		{100 + 2.5*30, false},  // z = 2.5, not strictly greater
		{100 + 2.51*30, true},  // z just past threshold
		{100 - 2.51*30, true},  // negative side
		{100 + 2.49*30, false}, // just inside
	}
	for _, tc := range cases {
		flags := populationOutliers(PerformanceSample{Score: tc.score, TimeMs: pop.MeanTimeMs, Accuracy: pop.MeanAccuracy}, pop)
		var scoreFlag *OutlierFlag
		for i := range flags {
			if flags[i].Metric == "score" {
				scoreFlag = &flags[i]
			}
		}
		require.NotNil(t, scoreFlag)
		assert.Equal(t, tc.outlier, scoreFlag.IsOutlier, "score %.2f", tc.score)
	}
}

func TestPersonalOutlierUsesStricterThreshold(t *testing.T) {
	personal := &models.UserStatistics{
		SampleSize:   20,
		MeanScore:    100,
		StdDevScore:  10,
		MeanTimeMs:   120000,
		StdDevTimeMs: 20000,
	}
	// z = 2.8: population threshold would flag at 2.5 but personal needs 3.0.
	flags := personalOutliers(PerformanceSample{Score: 128, TimeMs: 120000}, personal)
	assert.False(t, flags[0].IsOutlier)

	flags = personalOutliers(PerformanceSample{Score: 131, TimeMs: 120000}, personal)
	assert.True(t, flags[0].IsOutlier)
	assert.Equal(t, PersonalZThreshold, flags[0].Threshold)
}

// TestImplausiblePerformanceScenario covers 1500 points in 45 seconds
// against a 100±30 population.
func TestImplausiblePerformanceScenario(t *testing.T) {
	store := &fakeHistoryStore{population: defaultPopulation()}
	svc := newTestService(store)

	result, err := svc.Analyze(context.Background(), uuid.New(), PerformanceSample{
		Score:    1500,
		TimeMs:   45000,
		Accuracy: 1.0,
	})
	require.NoError(t, err)

	assert.Equal(t, RiskHigh, result.Severity)
	assert.GreaterOrEqual(t, result.AnomalyScore, severityHighAt)
	found := false
	for _, reason := range result.Risk.Reasons {
		if containsImplausible(reason) {
			found = true
		}
	}
	assert.True(t, found, "risk reasons should name the implausible performance: %v", result.Risk.Reasons)
	assert.Equal(t, BasisPopulationOnly, result.ComparisonBasis)
	assert.NotEmpty(t, result.Recommendations)
}

func containsImplausible(s string) bool {
	return len(s) >= 11 && s[:11] == "implausible"
}

func TestAnalyzeUsesBothBasesWithHistory(t *testing.T) {
	user := uuid.New()
	store := &fakeHistoryStore{
		completions: map[uuid.UUID][]models.CompletionRecord{
			user: completionSeries(user, []float64{90, 95, 100, 105, 110, 100, 95}),
		},
		population: defaultPopulation(),
	}
	svc := newTestService(store)

	result, err := svc.Analyze(context.Background(), user, PerformanceSample{Score: 102, TimeMs: 120000, Accuracy: 1.0})
	require.NoError(t, err)
	assert.Equal(t, BasisBoth, result.ComparisonBasis)
	require.NotNil(t, result.Trend)
	assert.Equal(t, RiskLow, result.Severity)

	bases := map[string]bool{}
	for _, f := range result.Outliers {
		bases[f.Basis] = true
	}
	assert.True(t, bases["population"] && bases["personal"])
}

func TestAnalyzeDegradesToPopulationOnlyOnUserDataError(t *testing.T) {
	store := &fakeHistoryStore{
		population: defaultPopulation(),
		userErr:    apperr.Data("history shard down"),
	}
	svc := newTestService(store)

	result, err := svc.Analyze(context.Background(), uuid.New(), PerformanceSample{Score: 100, TimeMs: 300000, Accuracy: 0.8})
	require.NoError(t, err)
	assert.Equal(t, BasisPopulationOnly, result.ComparisonBasis)
	assert.False(t, result.LowConfidence)
	assert.Nil(t, result.Personal)
}

func TestAnalyzeLowConfidenceOnPopulationDataError(t *testing.T) {
	store := &fakeHistoryStore{
		popErr:  apperr.Data("aggregate query failed"),
		userErr: apperr.Data("history shard down"),
	}
	svc := newTestService(store)

	result, err := svc.Analyze(context.Background(), uuid.New(), PerformanceSample{Score: 100, TimeMs: 300000, Accuracy: 0.8})
	require.NoError(t, err)
	assert.True(t, result.LowConfidence)
	assert.Equal(t, BasisNone, result.ComparisonBasis)
	assert.Empty(t, result.Outliers)
}

func TestAnalyzeAbsorbsSampleIntoCache(t *testing.T) {
	user := uuid.New()
	store := &fakeHistoryStore{
		completions: map[uuid.UUID][]models.CompletionRecord{
			user: completionSeries(user, []float64{100, 100, 100, 100, 100}),
		},
		population: defaultPopulation(),
	}
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, user, PerformanceSample{Score: 130, TimeMs: 120000, Accuracy: 1.0})
	require.NoError(t, err)

	stats, err := svc.GetUserStatistics(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 6, stats.SampleSize)
	assert.InDelta(t, 105, stats.MeanScore, 0.001)
	assert.Equal(t, 130.0, stats.RecentScores[len(stats.RecentScores)-1])
	// The store was only hit once; the absorbed update lives in the cache.
	assert.Equal(t, 1, store.userFetches)
}
