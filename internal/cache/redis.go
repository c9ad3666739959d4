package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/bobmcallan/holdwise/internal/common"
)

// RedisStore is a Store backed by Redis, letting several processes share
// resolution and enrichment results. Values are stored as JSON.
type RedisStore[V any] struct {
	client *redis.Client
	prefix string
	logger *common.Logger
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// NewRedisStore namespaces keys under prefix on a shared client.
func NewRedisStore[V any](client *redis.Client, prefix string, logger *common.Logger) *RedisStore[V] {
	return &RedisStore[V]{client: client, prefix: prefix, logger: logger}
}

func (r *RedisStore[V]) key(k string) string {
	return r.prefix + ":" + k
}

// Get returns the decoded value for key. Redis errors are logged and
// reported as a miss.
func (r *RedisStore[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		}
		return zero, false
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("redis value undecodable")
		return zero, false
	}
	return v, true
}

// Set stores value under key. Failures are logged and otherwise ignored.
func (r *RedisStore[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("redis value unencodable")
		return
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}
