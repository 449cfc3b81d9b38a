// Package cache provides a Redis read-through cache for activity lookups.
//
// The ingestion path checks activity existence on every event from every
// embedded script; the cache keeps that check off PostgreSQL. Unknown IDs
// are negatively cached so retry storms against deleted popups don't reach
// the primary store either.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/popup-engine/internal/domain"
	"github.com/ignite/popup-engine/internal/instrument"
	"github.com/ignite/popup-engine/internal/pkg/logger"
	"github.com/ignite/popup-engine/internal/service/metrics"
)

const notFoundSentinel = "__not_found__"

// ActivityCache wraps a metrics.ActivityStore with a Redis cache. It
// implements metrics.ActivityStore itself and degrades to the underlying
// store when Redis is unreachable.
type ActivityCache struct {
	client      *redis.Client
	store       metrics.ActivityStore
	ttl         time.Duration
	negativeTTL time.Duration
}

// New creates an activity cache in front of store.
func New(client *redis.Client, store metrics.ActivityStore, ttl time.Duration) *ActivityCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &ActivityCache{
		client:      client,
		store:       store,
		ttl:         ttl,
		negativeTTL: ttl / 2,
	}
}

func activityKey(id string) string { return "activity:" + id }

func (c *ActivityCache) Get(ctx context.Context, id string) (*domain.Activity, error) {
	key := activityKey(id)

	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		instrument.ActivityCacheHitsTotal.Inc()
		if val == notFoundSentinel {
			return nil, metrics.ErrActivityNotFound
		}
		var a domain.Activity
		if jsonErr := json.Unmarshal([]byte(val), &a); jsonErr == nil {
			return &a, nil
		}
		// Corrupt entry: fall through to the store and rewrite it.
	case errors.Is(err, redis.Nil):
		// miss
	default:
		// Redis down is not fatal for ingestion; log and go to the store.
		logger.Warn("activity cache read failed", "activity_id", id, "error", err.Error())
	}
	instrument.ActivityCacheMissesTotal.Inc()

	a, err := c.store.Get(ctx, id)
	if errors.Is(err, metrics.ErrActivityNotFound) {
		c.set(ctx, key, notFoundSentinel, c.negativeTTL)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	data, jsonErr := json.Marshal(a)
	if jsonErr != nil {
		return nil, fmt.Errorf("marshal activity for cache: %w", jsonErr)
	}
	c.set(ctx, key, string(data), c.ttl)
	return a, nil
}

// Invalidate drops the cached entry for an activity; called on activity
// deletion so the negative entry takes over promptly.
func (c *ActivityCache) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, activityKey(id)).Err(); err != nil {
		logger.Warn("activity cache invalidate failed", "activity_id", id, "error", err.Error())
	}
}

func (c *ActivityCache) set(ctx context.Context, key, val string, ttl time.Duration) {
	if err := c.client.Set(ctx, key, val, ttl).Err(); err != nil {
		logger.Warn("activity cache write failed", "key", key, "error", err.Error())
	}
}
