package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/config"
)

// PayloadCache keeps recently served chart payloads in Redis so repeat
// requests can be answered before the refresh job runs. Stale is ok,
// bad UX is not.
type PayloadCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewPayloadCache connects to Redis and verifies it is reachable.
func NewPayloadCache(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*PayloadCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &PayloadCache{rdb: rdb, ttl: cfg.TTL, logger: logger}, nil
}

// ChartKey builds the cache key for one formatted chart payload.
func ChartKey(pair, chartType, resolution string) string {
	return "chart:" + pair + ":" + chartType + ":" + resolution
}

// Get returns the cached payload bytes, ok=false on miss. Cache errors
// degrade to a miss.
func (c *PayloadCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("payload cache get failed", "key", key, "error", err)
		return nil, false
	}
	return data, true
}

// Set stores a payload with the configured TTL. Errors are logged, not
// surfaced; the cache is best effort.
func (c *PayloadCache) Set(ctx context.Context, key string, payload []byte) {
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("payload cache set failed", "key", key, "error", err)
	}
}

// Close releases the Redis connection.
func (c *PayloadCache) Close() error {
	return c.rdb.Close()
}
