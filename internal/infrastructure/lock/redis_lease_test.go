package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelsync-service/pkg/logger"
)

func setupLease(t *testing.T) (*RedisLease, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedisLease(client, logger.NewNopLogger()), mr
}

func TestRedisLease_ExclusiveUntilReleased(t *testing.T) {
	lease, mr := setupLease(t)
	ctx := context.Background()

	release, ok, err := lease.Acquire(ctx, "email_scan", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists(KeyPrefix+"email_scan"))

	_, ok, err = lease.Acquire(ctx, "email_scan", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// other jobs are independent
	_, ok, err = lease.Acquire(ctx, "flight_status", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists(KeyPrefix+"email_scan"))

	_, ok, err = lease.Acquire(ctx, "email_scan", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLease_ExpiresAfterTTL(t *testing.T) {
	lease, mr := setupLease(t)
	ctx := context.Background()

	_, ok, err := lease.Acquire(ctx, "share_cleanup", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = lease.Acquire(ctx, "share_cleanup", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLease_StaleReleaseKeepsNewHolder(t *testing.T) {
	lease, mr := setupLease(t)
	ctx := context.Background()

	stale, ok, err := lease.Acquire(ctx, "checkin_sync", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = lease.Acquire(ctx, "checkin_sync", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists(KeyPrefix+"checkin_sync"))
}

func TestRedisLease_UnavailableRedis(t *testing.T) {
	lease, mr := setupLease(t)
	mr.Close()

	_, ok, err := lease.Acquire(context.Background(), "email_scan", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0", logger.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	_, err = NewRedisClient(context.Background(), "not a url", logger.NewNopLogger())
	assert.Error(t, err)
}
