package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/MindFlowInteractive/quest-api-sub002/internal/apperr"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/models"
)

// SQLiteStore implements Store on an embedded database. Used for local and
// single-node deployments; the schema is applied on open.
type SQLiteStore struct {
	db  *sql.DB
	log *logrus.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS puzzle_completions (
	id TEXT PRIMARY KEY,
	puzzle_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	completion_time_ms INTEGER NOT NULL,
	attempts_count INTEGER NOT NULL,
	is_completed INTEGER NOT NULL,
	difficulty_rating INTEGER NOT NULL,
	hints_used INTEGER NOT NULL,
	score INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_completions_user_created
	ON puzzle_completions (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_completions_created
	ON puzzle_completions (created_at);

CREATE TABLE IF NOT EXISTS player_difficulty_metrics (
	user_id TEXT PRIMARY KEY,
	average_solve_time_ms REAL NOT NULL,
	average_moves REAL NOT NULL,
	success_rate REAL NOT NULL,
	hints_usage_rate REAL NOT NULL,
	completions INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema.
func NewSQLiteStore(path string, log *logrus.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindData, err, "open sqlite %s", path)
	}
	// modernc sqlite serializes writes; a single connection avoids lock
	// contention errors under concurrent appends.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.KindData, err, "apply sqlite schema")
	}
	log.WithField("backend", "sqlite").WithField("path", path).Info("completion store ready")
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) AppendCompletedAttempt(ctx context.Context, rec models.CompletionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO puzzle_completions
			(id, puzzle_id, user_id, kind, completion_time_ms, attempts_count,
			 is_completed, difficulty_rating, hints_used, score, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID.String(), rec.PuzzleID.String(), rec.UserID.String(), rec.Kind,
		rec.CompletionTimeMs, rec.AttemptsCount, rec.IsCompleted,
		rec.DifficultyRating, rec.HintsUsed, rec.Score, rec.CreatedAt.UnixMilli())
	if err != nil {
		return apperr.Wrap(apperr.KindData, err, "append completion")
	}
	return nil
}

func (s *SQLiteStore) FetchLastNCompletions(ctx context.Context, userID uuid.UUID, n int) ([]models.CompletionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, puzzle_id, user_id, kind, completion_time_ms, attempts_count,
		       is_completed, difficulty_rating, hints_used, score, created_at
		FROM puzzle_completions
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, userID.String(), n)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindData, err, "fetch completions for %s", userID)
	}
	defer rows.Close()

	var out []models.CompletionRecord
	for rows.Next() {
		rec, err := scanSQLiteCompletion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindData, err, "iterate completion rows")
	}
	return out, nil
}

func scanSQLiteCompletion(rows *sql.Rows) (models.CompletionRecord, error) {
	var (
		rec                  models.CompletionRecord
		id, puzzleID, userID string
		createdAtMs          int64
	)
	if err := rows.Scan(&id, &puzzleID, &userID, &rec.Kind,
		&rec.CompletionTimeMs, &rec.AttemptsCount, &rec.IsCompleted,
		&rec.DifficultyRating, &rec.HintsUsed, &rec.Score, &createdAtMs); err != nil {
		return rec, apperr.Wrap(apperr.KindData, err, "scan completion row")
	}
	var err error
	if rec.ID, err = uuid.Parse(id); err != nil {
		return rec, apperr.Wrap(apperr.KindData, err, "parse completion id")
	}
	if rec.PuzzleID, err = uuid.Parse(puzzleID); err != nil {
		return rec, apperr.Wrap(apperr.KindData, err, "parse puzzle id")
	}
	if rec.UserID, err = uuid.Parse(userID); err != nil {
		return rec, apperr.Wrap(apperr.KindData, err, "parse user id")
	}
	rec.CreatedAt = time.UnixMilli(createdAtMs)
	return rec, nil
}

func (s *SQLiteStore) FetchPopulationAggregate(ctx context.Context, window time.Duration) (models.PopulationStatistics, error) {
	since := time.Now().Add(-window).UnixMilli()
	rows, err := s.db.QueryContext(ctx, `
		SELECT score, completion_time_ms, is_completed
		FROM puzzle_completions
		WHERE created_at >= ?`, since)
	if err != nil {
		return models.PopulationStatistics{}, apperr.Wrap(apperr.KindData, err, "population aggregate")
	}
	defer rows.Close()

	// SQLite has no stddev aggregate; fold the samples in Go.
	agg := aggregate{windowDays: int(window.Hours() / 24)}
	for rows.Next() {
		var (
			score, timeMs float64
			isCompleted   bool
		)
		if err := rows.Scan(&score, &timeMs, &isCompleted); err != nil {
			return models.PopulationStatistics{}, apperr.Wrap(apperr.KindData, err, "scan aggregate row")
		}
		agg.add(score, timeMs, isCompleted)
	}
	if err := rows.Err(); err != nil {
		return models.PopulationStatistics{}, apperr.Wrap(apperr.KindData, err, "iterate aggregate rows")
	}
	return agg.result(), nil
}

func (s *SQLiteStore) UpsertDifficultyMetrics(ctx context.Context, m models.PlayerDifficultyMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_difficulty_metrics
			(user_id, average_solve_time_ms, average_moves, success_rate,
			 hints_usage_rate, completions, updated_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT (user_id) DO UPDATE SET
			average_solve_time_ms = excluded.average_solve_time_ms,
			average_moves = excluded.average_moves,
			success_rate = excluded.success_rate,
			hints_usage_rate = excluded.hints_usage_rate,
			completions = excluded.completions,
			updated_at = excluded.updated_at`,
		m.UserID.String(), m.AverageSolveTimeMs, m.AverageMoves, m.SuccessRate,
		m.HintsUsageRate, m.Completions, time.Now().UnixMilli())
	if err != nil {
		return apperr.Wrap(apperr.KindData, err, "upsert difficulty metrics for %s", m.UserID)
	}
	return nil
}

func (s *SQLiteStore) FetchDifficultyMetrics(ctx context.Context, userID uuid.UUID) (*models.PlayerDifficultyMetrics, error) {
	var (
		m           models.PlayerDifficultyMetrics
		id          string
		updatedAtMs int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, average_solve_time_ms, average_moves, success_rate,
		       hints_usage_rate, completions, updated_at
		FROM player_difficulty_metrics WHERE user_id = ?`, userID.String()).
		Scan(&id, &m.AverageSolveTimeMs, &m.AverageMoves, &m.SuccessRate,
			&m.HintsUsageRate, &m.Completions, &updatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindData, err, "fetch difficulty metrics for %s", userID)
	}
	m.UserID = userID
	m.UpdatedAt = time.UnixMilli(updatedAtMs)
	return &m, nil
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}
