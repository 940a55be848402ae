package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/eventrank/pkg/metrics"
)

const (
	defaultRedisPrefix = "eventrank:emb:"
	fieldHash          = "hash"
	fieldVec           = "vec"
)

// Redis is a Cache backed by one Redis hash per entity holding the content
// hash and the little-endian vector blob.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithPrefix sets the key prefix.
func WithPrefix(p string) RedisOption {
	return func(r *Redis) {
		if p != "" {
			r.prefix = p
		}
	}
}

// WithTTL expires entries after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl >= 0 {
			r.ttl = ttl
		}
	}
}

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get implements Reader.
func (r *Redis) Get(ctx context.Context, key, hash string) ([]float32, bool, error) {
	vals, err := r.client.HMGet(ctx, r.prefix+key, fieldHash, fieldVec).Result()
	if err != nil {
		metrics.RecordCacheOperation("redis", "get", "error")
		return nil, false, fmt.Errorf("cache: redis get %s: %w", key, err)
	}

	storedHash, _ := vals[0].(string)
	blob, _ := vals[1].(string)
	if storedHash == "" || storedHash != hash || blob == "" {
		metrics.RecordCacheOperation("redis", "get", "miss")
		return nil, false, nil
	}

	vec, err := decodeVector([]byte(blob))
	if err != nil {
		metrics.RecordCacheOperation("redis", "get", "error")
		return nil, false, err
	}
	metrics.RecordCacheOperation("redis", "get", "hit")
	return vec, true, nil
}

// Put implements Cache. Hash and vector are written atomically.
func (r *Redis) Put(ctx context.Context, key, hash string, vec []float32) error {
	if key == "" {
		return ErrEmptyKey
	}
	k := r.prefix + key

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, fieldHash, hash, fieldVec, encodeVector(vec))
		if r.ttl > 0 {
			pipe.Expire(ctx, k, r.ttl)
		}
		return nil
	})
	if err != nil {
		metrics.RecordCacheOperation("redis", "put", "error")
		return fmt.Errorf("cache: redis put %s: %w", key, err)
	}
	metrics.RecordCacheOperation("redis", "put", "ok")
	return nil
}
