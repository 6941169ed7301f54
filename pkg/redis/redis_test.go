package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/pkg/redis"
)

func TestOpen_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := redis.Open(ctx, redis.Config{})
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)

	for _, url := range []string{"http://localhost:6379", "localhost:6379", "postgres://x"} {
		_, err := redis.Open(ctx, redis.Config{URL: url})
		assert.ErrorIs(t, err, redis.ErrFailedToParseURL, url)
	}

	_, err = redis.Open(ctx, redis.Config{URL: "redis://localhost:6379/notanumber"})
	assert.ErrorIs(t, err, redis.ErrFailedToParseURL)
}

func TestOpen_Miniredis(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	ctx := context.Background()

	client, err := redis.Open(ctx, redis.Config{URL: "redis://" + srv.Addr() + "/0", PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	got, err := srv.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	assert.NoError(t, redis.Healthcheck(client)(ctx))
}

func TestOpen_Unreachable(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := redis.Open(context.Background(), redis.Config{
		URL:           "redis://" + addr,
		RetryAttempts: 2,
		RetryInterval: 10 * time.Millisecond,
		DialTimeout:   100 * time.Millisecond,
	})
	assert.ErrorIs(t, err, redis.ErrConnectionFailed)
}

func TestOpen_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := redis.Open(ctx, redis.Config{URL: "redis://" + addr, RetryAttempts: 3, RetryInterval: time.Second})
	assert.ErrorIs(t, err, redis.ErrConnectionFailed)
}

func TestHealthcheck_Nil(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, redis.Healthcheck(nil)(context.Background()), redis.ErrHealthcheckFailed)
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client, err := redis.Open(context.Background(), redis.Config{URL: "redis://" + srv.Addr()})
	require.NoError(t, err)

	require.NoError(t, redis.Shutdown(client)(context.Background()))
	assert.Error(t, client.Ping(context.Background()).Err())
}
