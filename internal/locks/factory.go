package locks

import (
	"fmt"

	"adops-backend/internal/redis"
)

// New creates a lock manager for the configured backend: "redis" for the
// token-based SET NX implementation, "redsync" for the Redlock algorithm.
func New(backend string, redisClient *redis.Client) (Manager, error) {
	switch backend {
	case "", "redis":
		return NewRedisManager(redisClient), nil
	case "redsync":
		return NewRedsyncManager(redisClient)
	default:
		return nil, fmt.Errorf("unknown lock backend: %s", backend)
	}
}
