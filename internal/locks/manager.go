// Package locks provides distributed mutual-exclusion leases backed by the
// shared Redis store. A lease is created with an atomic set-if-absent under
// "lock:{name}" and expires on its own, so a crashed holder cannot block
// others past the timeout window.
//
// Acquisition hands back an opaque ownership token; release is a server-side
// compare-and-delete that no-ops when the token no longer matches the current
// holder. This closes the hazard of one caller releasing a lock it does not
// hold.
package locks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"adops-backend/internal/common/errors"
	"adops-backend/internal/redis"
)

// DefaultTimeout bounds a generic lease when the caller does not choose one.
const DefaultTimeout = 10 * time.Second

const lockKeyPrefix = "lock:"

// releaseScript deletes the lock only while the caller still owns it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Lock is a held lease. Release it on every exit path of the protected
// operation, success or failure.
type Lock interface {
	// Name returns the lease name the lock was acquired under.
	Name() string

	// Release removes the lease. It reports false without error when the
	// lease already expired or was taken over by another holder.
	Release(ctx context.Context) (bool, error)
}

// Manager acquires distributed leases.
type Manager interface {
	// Acquire attempts an atomic create-if-absent with the given expiry.
	// A lease held by someone else yields a conflict error. A non-positive
	// timeout falls back to DefaultTimeout.
	Acquire(ctx context.Context, name string, timeout time.Duration) (Lock, error)

	Close() error
}

// RedisManager implements Manager with a single SET NX EX per acquisition
// and a Lua compare-and-delete per release.
type RedisManager struct {
	redis *redis.Client
}

// NewRedisManager creates a lock manager on the shared Redis client.
func NewRedisManager(redisClient *redis.Client) *RedisManager {
	return &RedisManager{redis: redisClient}
}

func (m *RedisManager) Acquire(ctx context.Context, name string, timeout time.Duration) (Lock, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	token := uuid.NewString()
	created, err := m.redis.SetNX(ctx, lockKeyPrefix+name, token, timeout)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, errors.ConflictError("lock already held").WithContext("lock", name)
	}

	return &redisLock{
		manager: m,
		name:    name,
		token:   token,
	}, nil
}

func (m *RedisManager) Close() error {
	return nil
}

type redisLock struct {
	manager *RedisManager
	name    string
	token   string
}

func (l *redisLock) Name() string {
	return l.name
}

func (l *redisLock) Release(ctx context.Context) (bool, error) {
	result, err := l.manager.redis.Eval(ctx, releaseScript, []string{lockKeyPrefix + l.name}, l.token)
	if err != nil {
		return false, err
	}

	deleted, ok := result.(int64)
	return ok && deleted > 0, nil
}
