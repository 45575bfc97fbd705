package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adops-backend/internal/common/errors"
	"adops-backend/internal/redis"
)

func setupManager(t *testing.T) (*RedisManager, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewRedisManager(client), mr
}

func TestRedisManager_Acquire(t *testing.T) {
	manager, mr := setupManager(t)
	ctx := context.Background()

	t.Run("exactly one of two acquirers wins", func(t *testing.T) {
		first, err := manager.Acquire(ctx, "sync:7:google_ads", 300*time.Second)
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := manager.Acquire(ctx, "sync:7:google_ads", 300*time.Second)
		assert.Nil(t, second)
		assert.True(t, errors.IsType(err, errors.ErrTypeConflict))
	})

	t.Run("uses the lock key namespace", func(t *testing.T) {
		_, err := manager.Acquire(ctx, "sync:42", 10*time.Second)
		require.NoError(t, err)
		assert.True(t, mr.Exists("lock:sync:42"))
		assert.Equal(t, 10*time.Second, mr.TTL("lock:sync:42"))
	})

	t.Run("non-positive timeout falls back to default", func(t *testing.T) {
		_, err := manager.Acquire(ctx, "defaulted", 0)
		require.NoError(t, err)
		assert.Equal(t, DefaultTimeout, mr.TTL("lock:defaulted"))
	})
}

func TestRedisManager_ReleaseThenReacquire(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	lock, err := manager.Acquire(ctx, "campaign:9", 10*time.Second)
	require.NoError(t, err)

	released, err := lock.Release(ctx)
	require.NoError(t, err)
	assert.True(t, released)

	again, err := manager.Acquire(ctx, "campaign:9", 10*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, again)
}

func TestRedisManager_ExpiredLockCanBeReacquired(t *testing.T) {
	manager, mr := setupManager(t)
	ctx := context.Background()

	_, err := manager.Acquire(ctx, "sync:7:naver", 5*time.Second)
	require.NoError(t, err)

	// crashed holder: never releases, TTL runs out
	mr.FastForward(6 * time.Second)

	lock, err := manager.Acquire(ctx, "sync:7:naver", 5*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, lock)
}

func TestRedisManager_ReleaseWithStaleToken(t *testing.T) {
	manager, mr := setupManager(t)
	ctx := context.Background()

	stale, err := manager.Acquire(ctx, "sync:7:kakao", 5*time.Second)
	require.NoError(t, err)

	// lease expires and a new holder takes over
	mr.FastForward(6 * time.Second)
	_, err = manager.Acquire(ctx, "sync:7:kakao", 5*time.Second)
	require.NoError(t, err)

	released, err := stale.Release(ctx)
	require.NoError(t, err)
	assert.False(t, released, "stale token must not release the new holder's lock")
	assert.True(t, mr.Exists("lock:sync:7:kakao"), "new holder's lock must survive")
}

func TestRedisManager_DoubleRelease(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	lock, err := manager.Acquire(ctx, "once", 10*time.Second)
	require.NoError(t, err)

	released, err := lock.Release(ctx)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = lock.Release(ctx)
	require.NoError(t, err)
	assert.False(t, released)
}

func TestNew_Factory(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	t.Run("redis backend", func(t *testing.T) {
		manager, err := New("redis", client)
		require.NoError(t, err)
		assert.IsType(t, &RedisManager{}, manager)
	})

	t.Run("empty backend defaults to redis", func(t *testing.T) {
		manager, err := New("", client)
		require.NoError(t, err)
		assert.IsType(t, &RedisManager{}, manager)
	})

	t.Run("redsync backend", func(t *testing.T) {
		manager, err := New("redsync", client)
		require.NoError(t, err)
		assert.IsType(t, &RedsyncManager{}, manager)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := New("zookeeper", client)
		assert.Error(t, err)
	})
}
