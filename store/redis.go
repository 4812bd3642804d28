package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultScanCount int64 = 1000

type RedisStore struct {
	client    *redis.Client
	scanCount int64
}

type RedisOption func(*RedisStore)

// WithScanCount sets the COUNT hint passed to SCAN.
func WithScanCount(n int64) RedisOption {
	return func(r *RedisStore) {
		if n > 0 {
			r.scanCount = n
		}
	}
}

// NewRedisStore connects to the Redis instance described by rawURL
// (redis://, rediss:// or unix://) and verifies it with a PING.
func NewRedisStore(ctx context.Context, rawURL string, opts ...RedisOption) (*RedisStore, error) {
	options, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(options)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r := &RedisStore{
		client:    client,
		scanCount: defaultScanCount,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Keys walks the keyspace with SCAN. SCAN may return a key more than once,
// so results are de-duplicated.
func (r *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string

	iter := r.client.Scan(ctx, 0, pattern, r.scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *RedisStore) TTL(ctx context.Context, key string) (int64, error) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// go-redis hands the -1/-2 replies back unscaled
	if d < 0 {
		return int64(d), nil
	}
	return int64(d / time.Second), nil
}

// Delete removes a key from Redis
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisStore) Set(ctx context.Context, key string, value interface{}) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisStore) SetWithExpiry(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.client.SetEx(ctx, key, value, ttl).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
