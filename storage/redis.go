package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces document keys when no prefix is given.
const DefaultRedisPrefix = "gocreds"

// RedisBackend stores each document as one Redis string value keyed by
// prefix and path. Its Read and Write methods match the store's read and
// write function signatures.
type RedisBackend struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisBackend returns a backend using client. An empty prefix selects DefaultRedisPrefix.
func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{redis: client, prefix: prefix}
}

func (b *RedisBackend) key(path string) string {
	return b.prefix + ":doc:" + path
}

// Read returns the document stored for path. A missing key is reported as
// an error wrapping fs.ErrNotExist.
func (b *RedisBackend) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := b.redis.Get(ctx, b.key(path)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
		}
		return nil, fmt.Errorf("redis read %s: %w", path, err)
	}
	return data, nil
}

// Write replaces the document stored for path. The key never expires.
func (b *RedisBackend) Write(ctx context.Context, path string, data []byte) error {
	if err := b.redis.Set(ctx, b.key(path), data, 0).Err(); err != nil {
		return fmt.Errorf("redis write %s: %w", path, err)
	}
	return nil
}
