package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/MindFlowInteractive/quest-api-sub002/internal/apperr"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/models"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS puzzle_completions (
	id UUID PRIMARY KEY,
	puzzle_id UUID NOT NULL,
	user_id UUID NOT NULL,
	kind TEXT NOT NULL,
	completion_time_ms BIGINT NOT NULL,
	attempts_count INT NOT NULL,
	is_completed BOOLEAN NOT NULL,
	difficulty_rating INT NOT NULL,
	hints_used INT NOT NULL,
	score INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_completions_user_created
	ON puzzle_completions (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_completions_created
	ON puzzle_completions (created_at);

CREATE TABLE IF NOT EXISTS player_difficulty_metrics (
	user_id UUID PRIMARY KEY,
	average_solve_time_ms DOUBLE PRECISION NOT NULL,
	average_moves DOUBLE PRECISION NOT NULL,
	success_rate DOUBLE PRECISION NOT NULL,
	hints_usage_rate DOUBLE PRECISION NOT NULL,
	completions INT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// NewPostgresStore connects, applies the schema, and returns the store.
func NewPostgresStore(ctx context.Context, dsn string, log *logrus.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindData, err, "connect postgres")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, apperr.Wrap(apperr.KindData, err, "apply postgres schema")
	}
	log.WithField("backend", "postgres").Info("completion store ready")
	return &PostgresStore{pool: pool, log: log}, nil
}

func (s *PostgresStore) AppendCompletedAttempt(ctx context.Context, rec models.CompletionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO puzzle_completions
			(id, puzzle_id, user_id, kind, completion_time_ms, attempts_count,
			 is_completed, difficulty_rating, hints_used, score, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.ID, rec.PuzzleID, rec.UserID, rec.Kind, rec.CompletionTimeMs,
		rec.AttemptsCount, rec.IsCompleted, rec.DifficultyRating,
		rec.HintsUsed, rec.Score, rec.CreatedAt)
	if err != nil {
		return apperr.Wrap(apperr.KindData, err, "append completion")
	}
	return nil
}

func (s *PostgresStore) FetchLastNCompletions(ctx context.Context, userID uuid.UUID, n int) ([]models.CompletionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, puzzle_id, user_id, kind, completion_time_ms, attempts_count,
		       is_completed, difficulty_rating, hints_used, score, created_at
		FROM puzzle_completions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, n)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindData, err, "fetch completions for %s", userID)
	}
	defer rows.Close()

	var out []models.CompletionRecord
	for rows.Next() {
		var rec models.CompletionRecord
		if err := rows.Scan(&rec.ID, &rec.PuzzleID, &rec.UserID, &rec.Kind,
			&rec.CompletionTimeMs, &rec.AttemptsCount, &rec.IsCompleted,
			&rec.DifficultyRating, &rec.HintsUsed, &rec.Score, &rec.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindData, err, "scan completion row")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindData, err, "iterate completion rows")
	}
	return out, nil
}

func (s *PostgresStore) FetchPopulationAggregate(ctx context.Context, window time.Duration) (models.PopulationStatistics, error) {
	since := time.Now().Add(-window)
	var (
		out   models.PopulationStatistics
		stdS  *float64
		stdT  *float64
		meanS *float64
		meanT *float64
		acc   *float64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT count(*),
		       avg(score), stddev_samp(score),
		       avg(completion_time_ms), stddev_samp(completion_time_ms),
		       avg(CASE WHEN is_completed THEN 1.0 ELSE 0.0 END)
		FROM puzzle_completions
		WHERE created_at >= $1`, since).
		Scan(&out.SampleSize, &meanS, &stdS, &meanT, &stdT, &acc)
	if err != nil {
		return out, apperr.Wrap(apperr.KindData, err, "population aggregate")
	}
	if meanS != nil {
		out.MeanScore = *meanS
	}
	if stdS != nil {
		out.StdDevScore = *stdS
	}
	if meanT != nil {
		out.MeanTimeMs = *meanT
	}
	if stdT != nil {
		out.StdDevTimeMs = *stdT
	}
	if acc != nil {
		out.MeanAccuracy = *acc
	}
	out.WindowDays = int(window.Hours() / 24)
	out.ComputedAt = time.Now()
	return out, nil
}

func (s *PostgresStore) UpsertDifficultyMetrics(ctx context.Context, m models.PlayerDifficultyMetrics) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO player_difficulty_metrics
			(user_id, average_solve_time_ms, average_moves, success_rate,
			 hints_usage_rate, completions, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
		ON CONFLICT (user_id) DO UPDATE SET
			average_solve_time_ms = EXCLUDED.average_solve_time_ms,
			average_moves = EXCLUDED.average_moves,
			success_rate = EXCLUDED.success_rate,
			hints_usage_rate = EXCLUDED.hints_usage_rate,
			completions = EXCLUDED.completions,
			updated_at = now()`,
		m.UserID, m.AverageSolveTimeMs, m.AverageMoves, m.SuccessRate,
		m.HintsUsageRate, m.Completions)
	if err != nil {
		return apperr.Wrap(apperr.KindData, err, "upsert difficulty metrics for %s", m.UserID)
	}
	return nil
}

func (s *PostgresStore) FetchDifficultyMetrics(ctx context.Context, userID uuid.UUID) (*models.PlayerDifficultyMetrics, error) {
	var m models.PlayerDifficultyMetrics
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, average_solve_time_ms, average_moves, success_rate,
		       hints_usage_rate, completions, updated_at
		FROM player_difficulty_metrics WHERE user_id = $1`, userID).
		Scan(&m.UserID, &m.AverageSolveTimeMs, &m.AverageMoves, &m.SuccessRate,
			&m.HintsUsageRate, &m.Completions, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindData, err, "fetch difficulty metrics for %s", userID)
	}
	return &m, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
