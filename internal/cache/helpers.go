package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"cookiegram/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by GetJSON when the key is absent or Redis is not configured.
var ErrMiss = errors.New("cache miss")

// GetJSON decodes the value at key into dest.
func GetJSON(ctx context.Context, key string, dest any) error {
	if client == nil {
		return ErrMiss
	}
	raw, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// SetJSON stores value at key with ttl. It is a no-op without Redis.
func SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, raw, ttl).Err()
}

// Aside serves dest from the cache or fills it with fetch and stores the result.
// Cache errors are logged and never fail the read; fetch errors are returned as is.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	err := GetJSON(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrMiss) {
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := SetJSON(ctx, key, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

// Invalidate deletes keys, ignoring errors.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed", slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}
