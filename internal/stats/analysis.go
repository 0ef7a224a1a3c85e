package stats

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/MindFlowInteractive/quest-api-sub002/internal/apperr"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/models"
)

// PerformanceSample is the attempt under analysis.
type PerformanceSample struct {
	Score    float64 `json:"score"`
	TimeMs   float64 `json:"timeMs"`
	Accuracy float64 `json:"accuracy"` // 0..1
}

// Comparison bases reported on an analysis.
const (
	BasisPopulationOnly = "population-only"
	BasisBoth           = "population+personal"
	BasisNone           = "none"
)

// OutlierFlag is one metric's z-score verdict against a comparison basis.
type OutlierFlag struct {
	Metric    string  `json:"metric"` // score, time, accuracy
	Basis     string  `json:"basis"`  // population, personal
	ZScore    float64 `json:"zScore"`
	Threshold float64 `json:"threshold"`
	IsOutlier bool    `json:"isOutlier"`
}

// Prediction is the regression-based next-value estimate, emitted only when
// the fit explains most of the variance.
type Prediction struct {
	Value float64 `json:"value"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// TrendAnalysis summarizes the player's recent score trajectory.
type TrendAnalysis struct {
	Direction    string      `json:"direction"` // improving, declining, stable
	Slope        float64     `json:"slope"`
	Acceleration float64     `json:"acceleration"`
	Volatility   float64     `json:"volatility"` // coefficient of variation
	RSquared     float64     `json:"rSquared"`
	Prediction   *Prediction `json:"prediction,omitempty"`
}

// Risk levels derived from the anomaly score.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// RiskAssessment is the rules-based verdict handed to moderation.
type RiskAssessment struct {
	Level   string   `json:"level"`
	Reasons []string `json:"reasons,omitempty"`
}

// AnalysisResult is produced once per analyzed attempt and never mutated.
type AnalysisResult struct {
	UserID          uuid.UUID                   `json:"userId"`
	Sample          PerformanceSample           `json:"sample"`
	ComparisonBasis string                      `json:"comparisonBasis"`
	Population      models.PopulationStatistics `json:"population"`
	Personal        *models.UserStatistics      `json:"personal,omitempty"`
	Outliers        []OutlierFlag               `json:"outliers,omitempty"`
	Trend           *TrendAnalysis              `json:"trend,omitempty"`
	AnomalyScore    float64                     `json:"anomalyScore"`
	Severity        string                      `json:"severity"`
	Risk            RiskAssessment              `json:"risk"`
	Recommendations []string                    `json:"recommendations,omitempty"`
	LowConfidence   bool                        `json:"lowConfidence"`
}

// Anomaly score weights and thresholds.
const (
	outlierWeightCap         = 0.4
	accelerationThreshold    = 2.0
	accelerationWeight       = 0.3
	volatilityThreshold      = 1.5
	volatilityWeight         = 0.2
	consistencyThreshold     = 0.3
	consistencyWeight        = 0.2
	implausibleScoreFloor    = 1000.0
	implausibleTimeCeilingMs = 60000.0
	implausibleWeight        = 0.5

	severityMediumAt = 0.4
	severityHighAt   = 0.7

	trendMinSamples    = 5
	slopeThreshold     = 0.1
	predictionMinR2    = 0.5
	predictionQuantile = 0.975 // two-sided 95% interval
)

// Analyze scores one attempt against the population and, when history
// exists, the user's own baseline. Store failures degrade: a missing
// population yields a low-confidence result, a missing personal history a
// population-only comparison. After analysis the user's cached running
// average absorbs the sample.
func (s *Service) Analyze(ctx context.Context, userID uuid.UUID, sample PerformanceSample) (*AnalysisResult, error) {
	result := &AnalysisResult{
		UserID: userID,
		Sample: sample,
	}

	pop, popErr := s.GetPopulationStatistics(ctx)
	if popErr != nil {
		if !apperr.IsData(popErr) {
			return nil, popErr
		}
		s.log.WithError(popErr).Warn("population statistics unavailable, degrading analysis")
		result.LowConfidence = true
		result.ComparisonBasis = BasisNone
	}
	result.Population = pop

	var personal *models.UserStatistics
	if userID != uuid.Nil {
		var userErr error
		personal, userErr = s.GetUserStatistics(ctx, userID)
		if userErr != nil {
			if !apperr.IsData(userErr) {
				return nil, userErr
			}
			s.log.WithError(userErr).WithField("user", userID).Warn("user statistics unavailable, using population only")
			personal = nil
		}
	}
	result.Personal = personal

	if !result.LowConfidence {
		result.ComparisonBasis = BasisPopulationOnly
		result.Outliers = populationOutliers(sample, pop)
		if personal != nil && personal.SampleSize >= 2 {
			result.ComparisonBasis = BasisBoth
			result.Outliers = append(result.Outliers, personalOutliers(sample, personal)...)
		}
	}

	if personal != nil {
		result.Trend = analyzeTrend(personal.RecentScores)
	}

	result.AnomalyScore = anomalyScore(sample, result.Outliers, result.Trend)
	result.Severity = severityOf(result.AnomalyScore)
	result.Risk = assessRisk(result)
	result.Recommendations = recommend(result)

	s.absorbIntoCache(ctx, userID, personal, sample)
	return result, nil
}

// absorbIntoCache updates the user's cached running average with the sample.
func (s *Service) absorbIntoCache(ctx context.Context, userID uuid.UUID, personal *models.UserStatistics, sample PerformanceSample) {
	if userID == uuid.Nil || personal == nil {
		return
	}
	updated := *personal
	updated.RecentScores = append([]float64(nil), personal.RecentScores...)
	absorbSample(&updated, sample)
	s.cache.SetUserStats(ctx, updated)
}

// zScore is (x-mean)/stddev, or 0 when the spread is degenerate.
func zScore(x, mean, stddev float64) float64 {
	if stddev <= 0 {
		return 0
	}
	return (x - mean) / stddev
}

func populationOutliers(sample PerformanceSample, pop models.PopulationStatistics) []OutlierFlag {
	flags := []OutlierFlag{
		outlierFlag("score", "population", zScore(sample.Score, pop.MeanScore, pop.StdDevScore), PopulationZThreshold),
		outlierFlag("time", "population", zScore(sample.TimeMs, pop.MeanTimeMs, pop.StdDevTimeMs), PopulationZThreshold),
		outlierFlag("accuracy", "population", zScore(sample.Accuracy, pop.MeanAccuracy, accuracySpread(pop.MeanAccuracy, pop.SampleSize)), PopulationZThreshold),
	}
	return flags
}

func personalOutliers(sample PerformanceSample, personal *models.UserStatistics) []OutlierFlag {
	return []OutlierFlag{
		outlierFlag("score", "personal", zScore(sample.Score, personal.MeanScore, personal.StdDevScore), PersonalZThreshold),
		outlierFlag("time", "personal", zScore(sample.TimeMs, personal.MeanTimeMs, personal.StdDevTimeMs), PersonalZThreshold),
	}
}

// accuracySpread estimates the per-sample accuracy standard deviation from
// the Bernoulli proportion, since the store aggregate does not carry one.
func accuracySpread(meanAccuracy float64, n int) float64 {
	if n <= 1 {
		return 0
	}
	return math.Sqrt(meanAccuracy * (1 - meanAccuracy))
}

func outlierFlag(metric, basis string, z, threshold float64) OutlierFlag {
	return OutlierFlag{
		Metric:    metric,
		Basis:     basis,
		ZScore:    z,
		Threshold: threshold,
		IsOutlier: math.Abs(z) > threshold,
	}
}

// analyzeTrend fits an OLS line over the chronological score series. Returns
// nil when fewer than trendMinSamples points exist.
func analyzeTrend(scores []float64) *TrendAnalysis {
	n := len(scores)
	if n < trendMinSamples {
		return nil
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, scores, nil, false)
	r2 := stat.RSquared(xs, scores, nil, alpha, beta)

	t := &TrendAnalysis{
		Slope:        beta,
		Acceleration: meanSecondDifference(scores),
		Volatility:   coefficientOfVariation(scores),
		RSquared:     r2,
	}
	switch {
	case beta > slopeThreshold:
		t.Direction = "improving"
	case beta < -slopeThreshold:
		t.Direction = "declining"
	default:
		t.Direction = "stable"
	}

	if r2 > predictionMinR2 {
		next := alpha + beta*float64(n)
		residual := residualStdDev(xs, scores, alpha, beta)
		q := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(predictionQuantile)
		t.Prediction = &Prediction{
			Value: next,
			Lower: next - q*residual,
			Upper: next + q*residual,
		}
	}
	return t
}

// meanSecondDifference is the average discrete acceleration of the series.
func meanSecondDifference(series []float64) float64 {
	if len(series) < 3 {
		return 0
	}
	sum := 0.0
	for i := 2; i < len(series); i++ {
		sum += series[i] - 2*series[i-1] + series[i-2]
	}
	return sum / float64(len(series)-2)
}

// coefficientOfVariation is stddev/|mean|, 0 for a degenerate mean.
func coefficientOfVariation(series []float64) float64 {
	mean, std := stat.MeanStdDev(series, nil)
	if mean == 0 {
		return 0
	}
	return std / math.Abs(mean)
}

func residualStdDev(xs, ys []float64, alpha, beta float64) float64 {
	if len(xs) <= 2 {
		return 0
	}
	sum := 0.0
	for i := range xs {
		r := ys[i] - (alpha + beta*xs[i])
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(xs)-2))
}

// anomalyScore composes the weighted plausibility signals, clamped to [0,1].
func anomalyScore(sample PerformanceSample, outliers []OutlierFlag, trend *TrendAnalysis) float64 {
	score := outlierComponent(outliers)

	if trend != nil {
		if math.Abs(trend.Acceleration) > accelerationThreshold {
			score += accelerationWeight
		}
		if trend.Volatility > volatilityThreshold {
			score += volatilityWeight
		}
		if consistency(trend.Volatility) < consistencyThreshold {
			score += consistencyWeight
		}
	}
	if sample.Score > implausibleScoreFloor && sample.TimeMs < implausibleTimeCeilingMs {
		score += implausibleWeight
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// outlierComponent grows with how far the worst flag exceeds its threshold,
// capped at outlierWeightCap. No flagged outlier contributes nothing.
func outlierComponent(outliers []OutlierFlag) float64 {
	worst := 0.0
	for _, f := range outliers {
		if !f.IsOutlier {
			continue
		}
		excess := (math.Abs(f.ZScore) - f.Threshold) / f.Threshold
		severity := 0.2 + 0.1*excess
		if severity > worst {
			worst = severity
		}
	}
	return math.Min(worst, outlierWeightCap)
}

// consistency maps volatility onto 0..1, where a steady performer scores
// near 1.
func consistency(volatility float64) float64 {
	c := 1 - volatility
	if c < 0 {
		return 0
	}
	return c
}

func severityOf(anomaly float64) string {
	switch {
	case anomaly >= severityHighAt:
		return RiskHigh
	case anomaly >= severityMediumAt:
		return RiskMedium
	default:
		return RiskLow
	}
}

// assessRisk derives the moderation verdict deterministically from the
// anomaly score, outlier confidence, and trend acceleration.
func assessRisk(result *AnalysisResult) RiskAssessment {
	risk := RiskAssessment{Level: result.Severity}
	for _, f := range result.Outliers {
		if f.IsOutlier {
			risk.Reasons = append(risk.Reasons,
				fmt.Sprintf("%s is a %s outlier (z=%.2f, threshold %.1f)", f.Metric, f.Basis, f.ZScore, f.Threshold))
		}
	}
	if result.Trend != nil && math.Abs(result.Trend.Acceleration) > accelerationThreshold {
		risk.Reasons = append(risk.Reasons,
			fmt.Sprintf("score acceleration %.2f exceeds %.1f", result.Trend.Acceleration, accelerationThreshold))
	}
	if result.Sample.Score > implausibleScoreFloor && result.Sample.TimeMs < implausibleTimeCeilingMs {
		risk.Reasons = append(risk.Reasons,
			fmt.Sprintf("implausible performance: score %.0f in %.0fs", result.Sample.Score, result.Sample.TimeMs/1000))
	}
	if result.LowConfidence {
		risk.Reasons = append(risk.Reasons, "population baseline unavailable, verdict is best-effort")
	}
	return risk
}

// recommend emits the moderation follow-ups for the verdict.
func recommend(result *AnalysisResult) []string {
	var out []string
	switch result.Severity {
	case RiskHigh:
		out = append(out, "hold score submission for manual review")
		out = append(out, "compare attempt replay against recorded move timings")
	case RiskMedium:
		out = append(out, "increase sampling rate for this player's next attempts")
	}
	if result.ComparisonBasis == BasisPopulationOnly && result.UserID != uuid.Nil && !result.LowConfidence {
		out = append(out, "insufficient personal history, re-evaluate after more completions")
	}
	if result.LowConfidence {
		out = append(out, "retry analysis once statistics backends recover")
	}
	return out
}
