// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

const redisKeyPrefix = "bypass:"

// RedisCache implements LinkCache on Redis with server-side expiry, so no
// lazy eviction pass is needed. Hit counts are tracked on the entry value.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    utils.Logger
}

// RedisOptions configures the Redis cache backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache creates a Redis-backed link cache and verifies connectivity.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, utils.WrapError(utils.ErrCodeCacheFailure, "redis ping failed", err)
	}

	return &RedisCache{
		client: client,
		ttl:    opts.TTL,
		log:    utils.NewComponentLogger("redis-cache"),
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, originalURL string) (*Entry, error) {
	key := redisKeyPrefix + utils.FingerprintURL(originalURL)

	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		c.log.Warnf("redis lookup failed: %v", err)
		return nil, nil
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// Corrupt value; drop it and treat as a miss.
		_ = c.client.Del(ctx, key).Err()
		return nil, nil
	}

	entry.HitCount++
	if data, err := json.Marshal(entry); err == nil {
		// KeepTTL preserves the original expiry across hit-count rewrites.
		_ = c.client.Set(ctx, key, data, redis.KeepTTL).Err()
	}

	return &entry, nil
}

func (c *RedisCache) Put(ctx context.Context, originalURL, resolvedURL, method string) error {
	entry := Entry{
		OriginalURL: originalURL,
		ResolvedURL: resolvedURL,
		MethodUsed:  method,
		CreatedAt:   time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return utils.WrapError(utils.ErrCodeCacheFailure, "failed to encode cache entry", err)
	}

	key := redisKeyPrefix + utils.FingerprintURL(originalURL)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return utils.WrapError(utils.ErrCodeCacheFailure, "redis set failed", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
