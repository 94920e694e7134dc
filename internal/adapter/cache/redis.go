package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nhp/internal/domain"
	"nhp/internal/logger"
)

// RedisClient is the subset of the go-redis client the cache needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisCache shares classifications between processes. Failures are logged and treated as misses.
type RedisCache struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client RedisClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "nhp:classification:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (domain.ClassificationResult, bool) {
	log := logger.FromContext(ctx)

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn("classification cache read failed", "error", err)
		}
		return domain.ClassificationResult{}, false
	}

	var result domain.ClassificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		log.Debug("failed to unmarshal cached classification", "error", err)
		return domain.ClassificationResult{}, false
	}
	return result, true
}

func (c *RedisCache) Put(ctx context.Context, key string, result domain.ClassificationResult) {
	log := logger.FromContext(ctx)

	data, err := json.Marshal(result)
	if err != nil {
		log.Warn("failed to marshal classification for cache", "error", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		log.Warn("failed to cache classification", "error", err)
	}
}

// Clear deletes every key under the prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 200).Result()
		if err != nil {
			return fmt.Errorf("failed to scan classification cache: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to clear classification cache: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
