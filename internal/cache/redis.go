package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MindFlowInteractive/quest-api-sub002/internal/models"
)

// RedisCache implements StatsCache on a shared Redis instance so multiple
// service nodes see the same statistics. All failures degrade to cache
// misses; the analyzer recomputes from the store.
type RedisCache struct {
	rdb *redis.Client
	log *logrus.Logger
}

const populationStatsKey = "quest:stats:population"

// NewRedisCache connects and verifies the server is reachable.
func NewRedisCache(ctx context.Context, addr, password string, db int, log *logrus.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	log.WithField("addr", addr).Info("redis stats cache ready")
	return &RedisCache{rdb: rdb, log: log}, nil
}

func userStatsKey(userID uuid.UUID) string {
	return "quest:stats:user:" + userID.String()
}

func (c *RedisCache) GetUserStats(ctx context.Context, userID uuid.UUID) (models.UserStatistics, bool) {
	var stats models.UserStatistics
	data, err := c.rdb.Get(ctx, userStatsKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).Warn("redis get user stats failed")
		}
		return stats, false
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		c.log.WithError(err).Warn("corrupt cached user stats")
		return stats, false
	}
	return stats, true
}

func (c *RedisCache) SetUserStats(ctx context.Context, stats models.UserStatistics) {
	data, err := json.Marshal(stats)
	if err != nil {
		c.log.WithError(err).Warn("marshal user stats failed")
		return
	}
	if err := c.rdb.Set(ctx, userStatsKey(stats.UserID), data, UserStatsTTL).Err(); err != nil {
		c.log.WithError(err).Warn("redis set user stats failed")
	}
}

func (c *RedisCache) GetPopulationStats(ctx context.Context) (models.PopulationStatistics, bool) {
	var stats models.PopulationStatistics
	data, err := c.rdb.Get(ctx, populationStatsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).Warn("redis get population stats failed")
		}
		return stats, false
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		c.log.WithError(err).Warn("corrupt cached population stats")
		return stats, false
	}
	return stats, true
}

func (c *RedisCache) SetPopulationStats(ctx context.Context, stats models.PopulationStatistics) {
	data, err := json.Marshal(stats)
	if err != nil {
		c.log.WithError(err).Warn("marshal population stats failed")
		return
	}
	if err := c.rdb.Set(ctx, populationStatsKey, data, PopulationStatsTTL).Err(); err != nil {
		c.log.WithError(err).Warn("redis set population stats failed")
	}
}

func (c *RedisCache) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	if err := c.rdb.Del(ctx, userStatsKey(userID)).Err(); err != nil {
		c.log.WithError(err).Warn("redis invalidate user stats failed")
	}
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
