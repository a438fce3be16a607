package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisFromClient(rdb)
}

func TestAcquireLock_Exclusive(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniRedis(t)

	token, err := client.AcquireLock(ctx, "sync:lock", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, token, mustGet(t, mr, "sync:lock"))

	_, err = client.AcquireLock(ctx, "sync:lock", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, client.ReleaseLock(ctx, "sync:lock", token))
	assert.False(t, mr.Exists("sync:lock"))

	_, err = client.AcquireLock(ctx, "sync:lock", time.Minute)
	assert.NoError(t, err)
}

func TestReleaseLock_ForeignTokenKeepsLock(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniRedis(t)

	_, err := client.AcquireLock(ctx, "sync:lock", time.Minute)
	require.NoError(t, err)

	require.NoError(t, client.ReleaseLock(ctx, "sync:lock", "someone-else"))
	assert.True(t, mr.Exists("sync:lock"))
}

func TestAcquireLock_Expires(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniRedis(t)

	_, err := client.AcquireLock(ctx, "sync:lock", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = client.AcquireLock(ctx, "sync:lock", time.Second)
	assert.NoError(t, err)
}

func TestAcquireLock_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := NewRedisFromClient(db)

	mock.Regexp().ExpectSetNX("sync:lock", `.+`, time.Minute).SetErr(errors.New("connection refused"))

	_, err := client.AcquireLock(context.Background(), "sync:lock", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockHeld)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
