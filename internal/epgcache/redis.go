// SPDX-License-Identifier: MIT

package epgcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/metrics"
)

const redisKeyPrefix = "streamhaven:epg:"

// RedisCache is a Redis-backed ProgrammeCache, for deployments where
// several instances share one guide.
type RedisCache struct {
	client *redis.Client
	logger zerolog.Logger
	stats  struct {
		hits      atomic.Int64
		misses    atomic.Int64
		sets      atomic.Int64
		evictions atomic.Int64
	}
}

// RedisConfig holds connection settings for the shared guide cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache connects to Redis and verifies the connection before
// returning. Callers typically fall back to NewMemoryCache on error.
func NewRedisCache(cfg RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("epgcache: redis connection failed: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("guide cache on redis")
	return &RedisCache{client: client, logger: logger}, nil
}

func (c *RedisCache) Get(key string) ([]content.EPGEntry, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		c.stats.misses.Add(1)
		metrics.CacheOpsTotal.WithLabelValues("epg", "miss").Inc()
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		c.stats.misses.Add(1)
		metrics.CacheOpsTotal.WithLabelValues("epg", "miss").Inc()
		return nil, false
	}

	var entries []content.EPGEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("corrupt cached guide entry dropped")
		c.Delete(key)
		c.stats.misses.Add(1)
		metrics.CacheOpsTotal.WithLabelValues("epg", "miss").Inc()
		return nil, false
	}

	c.stats.hits.Add(1)
	metrics.CacheOpsTotal.WithLabelValues("epg", "hit").Inc()
	return entries, true
}

func (c *RedisCache) Set(key string, entries []content.EPGEntry, ttl time.Duration) {
	raw, err := json.Marshal(entries)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("guide entry not cacheable")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
		return
	}
	c.stats.sets.Add(1)
}

func (c *RedisCache) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis delete failed")
	}
}

func (c *RedisCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, redisKeyPrefix+"*", 256).Result()
		if err != nil {
			c.logger.Warn().Err(err).Msg("redis scan failed during clear")
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn().Err(err).Msg("redis delete failed during clear")
				return
			}
			c.stats.evictions.Add(int64(len(keys)))
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

func (c *RedisCache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.stats.hits.Load(),
		Misses:    c.stats.misses.Load(),
		Sets:      c.stats.sets.Load(),
		Evictions: c.stats.evictions.Load(),
	}
}

// Close releases the underlying Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
