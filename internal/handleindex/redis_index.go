// Package handleindex keeps the exported handles in a Redis hash so later
// migration steps can ask whether a handle was already imported without
// reading handles.csv.
package handleindex

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/GreedyKomodoDragon/handle-exporter/internal/handles"
)

// DefaultKey is the hash used when Options.Key is empty
const DefaultKey = "handle-exporter:handles"

// Options configures the Redis connection
type Options struct {
	Addr       string
	Password   string
	DB         int
	TLSEnabled bool
	Key        string
}

// RedisIndex maps handles to identifiers in a single Redis hash
type RedisIndex struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

// NewRedisIndex creates a RedisIndex. No connection is made until first use.
func NewRedisIndex(opts Options, logger *slog.Logger) (*RedisIndex, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}

	redisOpts := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.TLSEnabled {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &RedisIndex{
		client: redis.NewClient(redisOpts),
		key:    opts.Key,
		logger: logger,
	}, nil
}

// Ping checks the connection
func (i *RedisIndex) Ping(ctx context.Context) error {
	if err := i.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	return nil
}

// Reset removes every handle from the index
func (i *RedisIndex) Reset(ctx context.Context) error {
	if err := i.client.Del(ctx, i.key).Err(); err != nil {
		return fmt.Errorf("failed to reset handle index: %w", err)
	}
	i.logger.Debug("Handle index reset", "key", i.key)
	return nil
}

// Add stores rec, replacing any identifier already recorded for its handle
func (i *RedisIndex) Add(ctx context.Context, rec handles.Record) error {
	if err := i.client.HSet(ctx, i.key, rec.Handle, rec.Identifier).Err(); err != nil {
		return fmt.Errorf("failed to index handle %q: %w", rec.Handle, err)
	}
	return nil
}

// Lookup returns the identifier recorded for handle
func (i *RedisIndex) Lookup(ctx context.Context, handle string) (string, bool, error) {
	identifier, err := i.client.HGet(ctx, i.key, handle).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up handle %q: %w", handle, err)
	}
	return identifier, true, nil
}

// Count returns the number of indexed handles
func (i *RedisIndex) Count(ctx context.Context) (int64, error) {
	n, err := i.client.HLen(ctx, i.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count handles: %w", err)
	}
	return n, nil
}

// Key returns the Redis key of the hash
func (i *RedisIndex) Key() string {
	return i.key
}

// Close closes the Redis connection pool
func (i *RedisIndex) Close() error {
	return i.client.Close()
}
