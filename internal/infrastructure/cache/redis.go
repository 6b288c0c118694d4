package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/config"
)

// ErrCacheMiss indicates the key was not found in cache
var ErrCacheMiss = errors.New("cache miss")

var cacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vesting_indexer_cache_lookups_total",
		Help: "Snapshot cache lookups by result",
	},
	[]string{"result"},
)

// RedisCache stores JSON values under a per-deployment key prefix. It is
// constructed explicitly and injected; Close releases the connection pool.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg config.RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", cfg.Addr()),
		zap.String("key_prefix", cfg.KeyPrefix),
		zap.Duration("ttl", cfg.TTL),
	)

	return NewRedisCacheFromClient(client, cfg.TTL, cfg.KeyPrefix, logger), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, prefix string, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		logger: logger,
		ttl:    ttl,
		prefix: prefix,
	}
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get decodes the value under key into dest, or returns ErrCacheMiss
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		return ErrCacheMiss
	case err != nil:
		cacheLookupsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to get %s from cache: %w", key, err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		// A value written by an older layout is treated as absent
		c.logger.Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		_ = c.Delete(ctx, key)
		return ErrCacheMiss
	}

	cacheLookupsTotal.WithLabelValues("hit").Inc()
	return nil
}

// Set stores value under key with the configured TTL
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in cache: %w", key, err)
	}

	return nil
}

// Delete removes key
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from cache: %w", key, err)
	}
	return nil
}

// HealthCheck checks if Redis is reachable
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
