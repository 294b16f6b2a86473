package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestLock_ExclusiveUntilReleased(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	ctx := context.Background()

	release, err := Lock(ctx, rdb, "lock:a", time.Minute)
	require.NoError(t, err)

	_, err = Lock(ctx, rdb, "lock:a", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, release(ctx))

	release2, err := Lock(ctx, rdb, "lock:a", time.Minute)
	require.NoError(t, err)
	require.NoError(t, release2(ctx))
}

func TestLock_StaleReleaseDoesNotDropNewOwner(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	ctx := context.Background()

	stale, err := Lock(ctx, rdb, "lock:b", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	_, err = Lock(ctx, rdb, "lock:b", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	ok, err := Exists(ctx, rdb, "lock:b")
	require.NoError(t, err)
	assert.True(t, ok)
}
