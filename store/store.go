package store

import (
	"context"
	"time"
)

// TTL sentinels, matching what Redis returns from the TTL command.
const (
	NoExpiry   int64 = -1
	KeyMissing int64 = -2
)

type Store interface {
	// Keys returns every key matching a glob pattern, in no particular order
	Keys(ctx context.Context, pattern string) ([]string, error)

	// TTL returns the remaining time to live in seconds, or one of the sentinels
	TTL(ctx context.Context, key string) (int64, error)

	// Delete removes a key
	Delete(ctx context.Context, key string) error

	// Set stores a value without expiry
	Set(ctx context.Context, key string, value interface{}) error

	// SetWithExpiry stores a value that expires after ttl
	SetWithExpiry(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Close() error
}
