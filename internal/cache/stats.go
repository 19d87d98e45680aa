package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"storefront/internal/models"
)

type StatsLoader interface {
	AccountStats(ctx context.Context, userID string) (models.AccountStats, error)
}

// StatsCache is a read-through cache of per-customer order statistics.
type StatsCache struct {
	store  Store
	loader StatsLoader
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatsCache returns a cache over loader. A nil store disables caching.
func NewStatsCache(store Store, loader StatsLoader, ttl time.Duration, logger *zap.Logger) *StatsCache {
	return &StatsCache{store: store, loader: loader, ttl: ttl, logger: logger.Named("cache")}
}

func statsKey(userID string) string { return "account_stats:" + userID }

func (c *StatsCache) AccountStats(ctx context.Context, userID string) (models.AccountStats, error) {
	if c.store == nil {
		return c.loader.AccountStats(ctx, userID)
	}

	data, err := c.store.Get(ctx, statsKey(userID))
	switch {
	case err == nil:
		var stats models.AccountStats
		if jsonErr := json.Unmarshal(data, &stats); jsonErr == nil {
			return stats, nil
		}
		c.logger.Warn("discarding unreadable cached stats", zap.String("user_id", userID))
	case !errors.Is(err, ErrMiss):
		c.logger.Warn("stats cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	stats, err := c.loader.AccountStats(ctx, userID)
	if err != nil {
		return models.AccountStats{}, err
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := c.store.Set(ctx, statsKey(userID), data, c.ttl); err != nil {
			c.logger.Warn("stats cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return stats, nil
}

// Invalidate drops a customer's cached stats after their orders change.
func (c *StatsCache) Invalidate(ctx context.Context, userID string) {
	if c.store == nil || userID == "" {
		return
	}
	if err := c.store.Del(ctx, statsKey(userID)); err != nil {
		c.logger.Warn("stats cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}
