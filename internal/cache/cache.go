// Package cache provides the TTL caches backing the statistical analyzer:
// per-user statistics (short TTL) and population statistics (long TTL). An
// in-process implementation is the default; a Redis implementation serves
// multi-node deployments.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MindFlowInteractive/quest-api-sub002/internal/models"
)

// TTLs for the two statistics classes.
const (
	UserStatsTTL       = 5 * time.Minute
	PopulationStatsTTL = 30 * time.Minute
)

// StatsCache stores computed statistics between refreshes. A miss (expired
// or absent) returns ok=false; backend failures also surface as misses so
// the analyzer recomputes instead of failing.
type StatsCache interface {
	GetUserStats(ctx context.Context, userID uuid.UUID) (models.UserStatistics, bool)
	SetUserStats(ctx context.Context, stats models.UserStatistics)
	GetPopulationStats(ctx context.Context) (models.PopulationStatistics, bool)
	SetPopulationStats(ctx context.Context, stats models.PopulationStatistics)
	InvalidateUser(ctx context.Context, userID uuid.UUID)
}

// MemoryCache is the in-process StatsCache. Expiry is checked on read; no
// background sweeper runs.
type MemoryCache struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]memoryEntry[models.UserStatistics]
	population *memoryEntry[models.PopulationStatistics]
	now        func() time.Time
}

type memoryEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		users: make(map[uuid.UUID]memoryEntry[models.UserStatistics]),
		now:   time.Now,
	}
}

func (c *MemoryCache) GetUserStats(_ context.Context, userID uuid.UUID) (models.UserStatistics, bool) {
	c.mu.RLock()
	entry, ok := c.users[userID]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return models.UserStatistics{}, false
	}
	return entry.value, true
}

func (c *MemoryCache) SetUserStats(_ context.Context, stats models.UserStatistics) {
	c.mu.Lock()
	c.users[stats.UserID] = memoryEntry[models.UserStatistics]{
		value:     stats,
		expiresAt: c.now().Add(UserStatsTTL),
	}
	c.mu.Unlock()
}

func (c *MemoryCache) GetPopulationStats(_ context.Context) (models.PopulationStatistics, bool) {
	c.mu.RLock()
	entry := c.population
	c.mu.RUnlock()
	if entry == nil || c.now().After(entry.expiresAt) {
		return models.PopulationStatistics{}, false
	}
	return entry.value, true
}

func (c *MemoryCache) SetPopulationStats(_ context.Context, stats models.PopulationStatistics) {
	c.mu.Lock()
	c.population = &memoryEntry[models.PopulationStatistics]{
		value:     stats,
		expiresAt: c.now().Add(PopulationStatsTTL),
	}
	c.mu.Unlock()
}

func (c *MemoryCache) InvalidateUser(_ context.Context, userID uuid.UUID) {
	c.mu.Lock()
	delete(c.users, userID)
	c.mu.Unlock()
}
