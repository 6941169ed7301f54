package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores entries under prefix in a shared Redis, so every instance
// sees the same invalidations.
type Redis[V any] struct {
	client redis.UniversalClient
	codec  Codec[V]
	prefix string
	ttl    time.Duration
}

var _ Cache[any] = (*Redis[any])(nil)

// NewRedis creates a cache over client. A nil codec means JSON. The client
// belongs to the caller and is not closed by Close.
func NewRedis[V any](client redis.UniversalClient, prefix string, ttl time.Duration, codec Codec[V]) *Redis[V] {
	if codec == nil {
		codec = JSON[V]{}
	}
	if ttl == 0 {
		ttl = defaultTTL
	}
	return &Redis[V]{client: client, codec: codec, prefix: prefix, ttl: ttl}
}

func (r *Redis[V]) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, err
	}
	return r.codec.Decode(data)
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := r.codec.Encode(value)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = r.ttl
	}
	// Redis treats 0 as no expiry.
	return r.client.Set(ctx, r.key(key), data, max(ttl, 0)).Err()
}

func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Purge removes every entry under the prefix with SCAN, which does not
// block the server.
func (r *Redis[V]) Purge(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.key("*"), 100).Result()
		if err != nil {
			return total, err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return total, err
			}
			total += len(keys)
		}
		if cursor = next; cursor == 0 {
			return total, nil
		}
	}
}

func (r *Redis[V]) Close() error { return nil }
