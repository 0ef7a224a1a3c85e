// Package difficulty maintains per-player performance metrics and resolves
// requested difficulty through the engine's scaling formula.
package difficulty

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MindFlowInteractive/quest-api-sub002/engine"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/models"
)

// MetricsStore is the slice of the persistence layer the adjuster needs.
type MetricsStore interface {
	UpsertDifficultyMetrics(ctx context.Context, m models.PlayerDifficultyMetrics) error
	FetchDifficultyMetrics(ctx context.Context, userID uuid.UUID) (*models.PlayerDifficultyMetrics, error)
}

// Report is one completed session's contribution to a player's metrics.
// Metrics are updated only through explicit reports, never inferred.
type Report struct {
	SolveTimeMs int64
	Moves       int
	Solved      bool
	HintsUsed   int
}

// Adjuster holds every known player's rolling metrics. Each entry is guarded
// by the adjuster's lock; persistence is write-through and best-effort.
type Adjuster struct {
	mu      sync.RWMutex
	players map[uuid.UUID]*engine.DifficultyMetrics
	store   MetricsStore
	log     *logrus.Logger
}

// NewAdjuster returns an adjuster backed by store. A nil store keeps the
// metrics purely in memory.
func NewAdjuster(store MetricsStore, log *logrus.Logger) *Adjuster {
	return &Adjuster{
		players: make(map[uuid.UUID]*engine.DifficultyMetrics),
		store:   store,
		log:     log,
	}
}

// OptimalDifficulty resolves the requested base difficulty for a player.
// Unknown players (and uuid.Nil) get base back unchanged.
func (a *Adjuster) OptimalDifficulty(ctx context.Context, playerID uuid.UUID, base int) int {
	if playerID == uuid.Nil {
		return base
	}
	m := a.metricsFor(ctx, playerID)
	return engine.OptimalDifficulty(m, base)
}

// ReportCompletion folds one finished session into the player's running
// averages and writes the updated metrics through to the store.
func (a *Adjuster) ReportCompletion(ctx context.Context, playerID uuid.UUID, rep Report) {
	if playerID == uuid.Nil {
		return
	}

	a.mu.Lock()
	m := a.players[playerID]
	if m == nil {
		m = a.loadLocked(ctx, playerID)
	}
	m.Completions++
	n := float64(m.Completions)
	m.AverageSolveTimeMs += (float64(rep.SolveTimeMs) - m.AverageSolveTimeMs) / n
	m.AverageMoves += (float64(rep.Moves) - m.AverageMoves) / n
	solved := 0.0
	if rep.Solved {
		solved = 1.0
	}
	m.SuccessRate += (solved - m.SuccessRate) / n
	m.HintsUsageRate += (float64(rep.HintsUsed) - m.HintsUsageRate) / n
	snapshot := *m
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.UpsertDifficultyMetrics(ctx, models.PlayerDifficultyMetrics{
			UserID:             playerID,
			AverageSolveTimeMs: snapshot.AverageSolveTimeMs,
			AverageMoves:       snapshot.AverageMoves,
			SuccessRate:        snapshot.SuccessRate,
			HintsUsageRate:     snapshot.HintsUsageRate,
			Completions:        snapshot.Completions,
			UpdatedAt:          time.Now(),
		}); err != nil {
			a.log.WithError(err).WithField("player", playerID).Warn("persist difficulty metrics failed")
		}
	}
}

// Metrics returns a copy of the player's current metrics, or nil for an
// unknown player.
func (a *Adjuster) Metrics(ctx context.Context, playerID uuid.UUID) *engine.DifficultyMetrics {
	m := a.metricsFor(ctx, playerID)
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

// metricsFor resolves metrics from memory, falling back to the store once.
// Returns nil when the player has no history anywhere.
func (a *Adjuster) metricsFor(ctx context.Context, playerID uuid.UUID) *engine.DifficultyMetrics {
	a.mu.RLock()
	m, ok := a.players[playerID]
	a.mu.RUnlock()
	if ok {
		return m
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if m, ok := a.players[playerID]; ok {
		return m
	}
	loaded := a.loadFromStore(ctx, playerID)
	if loaded == nil {
		return nil
	}
	a.players[playerID] = loaded
	return loaded
}

// loadLocked resolves or creates the player's entry. Caller holds the write
// lock.
func (a *Adjuster) loadLocked(ctx context.Context, playerID uuid.UUID) *engine.DifficultyMetrics {
	m := a.loadFromStore(ctx, playerID)
	if m == nil {
		m = &engine.DifficultyMetrics{}
	}
	a.players[playerID] = m
	return m
}

func (a *Adjuster) loadFromStore(ctx context.Context, playerID uuid.UUID) *engine.DifficultyMetrics {
	if a.store == nil {
		return nil
	}
	persisted, err := a.store.FetchDifficultyMetrics(ctx, playerID)
	if err != nil {
		a.log.WithError(err).WithField("player", playerID).Warn("load difficulty metrics failed")
		return nil
	}
	if persisted == nil {
		return nil
	}
	return &engine.DifficultyMetrics{
		AverageSolveTimeMs: persisted.AverageSolveTimeMs,
		AverageMoves:       persisted.AverageMoves,
		SuccessRate:        persisted.SuccessRate,
		HintsUsageRate:     persisted.HintsUsageRate,
		Completions:        persisted.Completions,
	}
}
