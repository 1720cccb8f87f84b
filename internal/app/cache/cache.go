// Package cache provides an optional read-through cache for the redirect
// path. A miss or a redis failure always falls back to the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shortreg/internal/app/model"
)

const (
	keyPrefix  = "shortreg:url:"
	defaultTTL = 5 * time.Minute
)

// URLCache keeps resolved short URLs in redis, keyed by code.
type URLCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New builds a cache over an established client. A non-positive ttl uses
// the default.
func New(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *URLCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &URLCache{rdb: rdb, ttl: ttl, logger: logger}
}

// Get returns the cached record for code, or nil on a miss. Redis errors
// are logged and reported as misses.
func (c *URLCache) Get(ctx context.Context, code string) *model.ShortURL {
	data, err := c.rdb.Get(ctx, keyPrefix+code).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redirect cache read failed", zap.String("code", code), zap.Error(err))
		}
		return nil
	}

	var rec model.ShortURL
	if err := json.Unmarshal(data, &rec); err != nil {
		c.logger.Warn("redirect cache entry corrupt", zap.String("code", code), zap.Error(err))
		return nil
	}
	return &rec
}

// Set stores the record under its code for the cache TTL.
func (c *URLCache) Set(ctx context.Context, rec *model.ShortURL) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+rec.Code, data, c.ttl).Err(); err != nil {
		c.logger.Warn("redirect cache write failed", zap.String("code", rec.Code), zap.Error(err))
	}
}

// Invalidate drops the cached record after an update or delete.
func (c *URLCache) Invalidate(ctx context.Context, code string) {
	if err := c.rdb.Del(ctx, keyPrefix+code).Err(); err != nil {
		c.logger.Warn("redirect cache invalidation failed", zap.String("code", code), zap.Error(err))
	}
}
