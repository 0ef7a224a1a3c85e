package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/MindFlowInteractive/quest-api-sub002/internal/models"
)

func TestMemoryCacheUserStatsRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	user := uuid.New()

	_, ok := c.GetUserStats(ctx, user)
	assert.False(t, ok)

	c.SetUserStats(ctx, models.UserStatistics{UserID: user, MeanScore: 120})
	got, ok := c.GetUserStats(ctx, user)
	assert.True(t, ok)
	assert.Equal(t, 120.0, got.MeanScore)
}

func TestMemoryCacheUserStatsExpire(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	user := uuid.New()

	now := time.Now()
	c.now = func() time.Time { return now }
	c.SetUserStats(ctx, models.UserStatistics{UserID: user})

	now = now.Add(UserStatsTTL - time.Second)
	_, ok := c.GetUserStats(ctx, user)
	assert.True(t, ok, "entry expired before its TTL")

	now = now.Add(2 * time.Second)
	_, ok = c.GetUserStats(ctx, user)
	assert.False(t, ok, "entry survived past its TTL")
}

func TestMemoryCachePopulationTTLLongerThanUser(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }
	c.SetPopulationStats(ctx, models.PopulationStatistics{MeanScore: 100})
	c.SetUserStats(ctx, models.UserStatistics{UserID: uuid.Nil})

	now = now.Add(10 * time.Minute)
	_, userOK := c.GetUserStats(ctx, uuid.Nil)
	pop, popOK := c.GetPopulationStats(ctx)
	assert.False(t, userOK)
	assert.True(t, popOK)
	assert.Equal(t, 100.0, pop.MeanScore)
}

func TestMemoryCacheInvalidateUser(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	user := uuid.New()

	c.SetUserStats(ctx, models.UserStatistics{UserID: user})
	c.InvalidateUser(ctx, user)
	_, ok := c.GetUserStats(ctx, user)
	assert.False(t, ok)
}
