// Package models holds the shared data structures exchanged between the
// service packages and the transport layer.
package models

import (
	"time"

	"github.com/google/uuid"
)

// CompletionRecord is one persisted puzzle attempt. Written once when a
// session finishes; read back by the difficulty adjuster and the analyzer.
type CompletionRecord struct {
	ID               uuid.UUID `json:"id"`
	PuzzleID         uuid.UUID `json:"puzzleId"`
	UserID           uuid.UUID `json:"userId"`
	Kind             string    `json:"kind"`
	CompletionTimeMs int64     `json:"completionTimeMs"`
	AttemptsCount    int       `json:"attemptsCount"`
	IsCompleted      bool      `json:"isCompleted"`
	DifficultyRating int       `json:"difficultyRating"`
	HintsUsed        int       `json:"hintsUsed"`
	Score            int       `json:"score"`
	CreatedAt        time.Time `json:"createdAt"`
}

// UserStatistics is the cached per-user aggregate over the last completions.
type UserStatistics struct {
	UserID        uuid.UUID `json:"userId"`
	SampleSize    int       `json:"sampleSize"`
	MeanScore     float64   `json:"meanScore"`
	StdDevScore   float64   `json:"stdDevScore"`
	MeanTimeMs    float64   `json:"meanTimeMs"`
	StdDevTimeMs  float64   `json:"stdDevTimeMs"`
	MeanAccuracy  float64   `json:"meanAccuracy"` // completed / attempted, 0..1
	SkillEstimate float64   `json:"skillEstimate"`
	RecentScores  []float64 `json:"recentScores"` // oldest first
	ComputedAt    time.Time `json:"computedAt"`
}

// PopulationStatistics is the cached population-wide aggregate over a
// trailing window.
type PopulationStatistics struct {
	SampleSize   int       `json:"sampleSize"`
	MeanScore    float64   `json:"meanScore"`
	StdDevScore  float64   `json:"stdDevScore"`
	MeanTimeMs   float64   `json:"meanTimeMs"`
	StdDevTimeMs float64   `json:"stdDevTimeMs"`
	MeanAccuracy float64   `json:"meanAccuracy"`
	WindowDays   int       `json:"windowDays"`
	ComputedAt   time.Time `json:"computedAt"`
}

// PlayerDifficultyMetrics is the persisted form of a player's rolling
// performance summary.
type PlayerDifficultyMetrics struct {
	UserID             uuid.UUID `json:"userId"`
	AverageSolveTimeMs float64   `json:"averageSolveTimeMs"`
	AverageMoves       float64   `json:"averageMoves"`
	SuccessRate        float64   `json:"successRate"`
	HintsUsageRate     float64   `json:"hintsUsageRate"`
	Completions        int       `json:"completions"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// CreatePuzzleRequest asks for a new session. PlayerID is optional; when set
// the requested difficulty is adjusted by the player's metrics.
type CreatePuzzleRequest struct {
	Kind       string     `json:"kind"`
	Difficulty int        `json:"difficulty"`
	PlayerID   *uuid.UUID `json:"playerId,omitempty"`
}

// MoveRequest submits one move against a session. Payload is kind-specific
// and decoded by the orchestrator.
type MoveRequest struct {
	ActorID uuid.UUID              `json:"actorId"`
	Payload map[string]interface{} `json:"payload"`
}

// HintRequest asks for a hint at a specificity level (1..3).
type HintRequest struct {
	Level int `json:"level"`
}

// SolutionCheckRequest asks whether the session's current state is solved.
// Metadata feeds the anti-cheat analysis of the attempt.
type SolutionCheckRequest struct {
	Metadata *SolutionMetadata `json:"solutionMetadata,omitempty"`
}

// SolutionMetadata carries the caller-reported context of a solution attempt.
type SolutionMetadata struct {
	ClientElapsedMs int64 `json:"clientElapsedMs,omitempty"`
}
