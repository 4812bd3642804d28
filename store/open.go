package store

import (
	"context"
	"strings"
)

// Open picks a backend from the URL scheme. postgres:// and postgresql://
// select the database store; anything else is handed to Redis.
func Open(ctx context.Context, rawURL string, opts ...RedisOption) (Store, error) {
	lower := strings.ToLower(rawURL)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return NewDatabaseStore(ctx, rawURL)
	}
	return NewRedisStore(ctx, rawURL, opts...)
}
