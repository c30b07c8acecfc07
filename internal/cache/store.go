package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a context-aware cache that may live outside the process.
// Misses and backend failures both read as a miss.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, value T)
	Delete(ctx context.Context, key string)
}

// Local adapts an in-process Cache to Store.
type Local[T any] struct {
	c Cache[T]
}

func NewLocal[T any](c Cache[T]) *Local[T] {
	return &Local[T]{c: c}
}

func (l *Local[T]) Get(_ context.Context, key string) (T, bool) { return l.c.Get(key) }

func (l *Local[T]) Set(_ context.Context, key string, value T) { l.c.Set(key, value) }

func (l *Local[T]) Delete(_ context.Context, key string) { l.c.Delete(key) }

// redisCmdable is the subset of *redis.Client used by RedisCache.
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache stores JSON encoded values in Redis under a key prefix.
type RedisCache[T any] struct {
	client redisCmdable
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache binds a RedisCache to client. A zero ttl keeps keys forever.
func NewRedisCache[T any](client redisCmdable, prefix string, ttl time.Duration, logger *slog.Logger) *RedisCache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache[T]{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var v T
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "Redis cache read failed", "key", c.prefix+key, "error", err)
		}
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.WarnContext(ctx, "Redis cache entry is not valid JSON", "key", c.prefix+key, "error", err)
		return v, false
	}
	return v, true
}

// Set logs failures instead of returning them; a failed cache write only
// costs a later miss.
func (c *RedisCache[T]) Set(ctx context.Context, key string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.ErrorContext(ctx, "Redis cache marshal failed", "key", c.prefix+key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache write failed", "key", c.prefix+key, "error", err)
	}
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache delete failed", "key", c.prefix+key, "error", err)
	}
}

// NewRedisClient opens a pooled Redis client and checks it with PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}
