// Package redis wraps go-redis with the key-value operations the backend
// relies on: JSON get/set with TTLs, atomic increments, set-if-absent, and
// prefix-scoped bulk deletion. Store transport failures surface as a distinct
// "unavailable" error and are never reported as a cache miss.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"adops-backend/internal/common/errors"
)

// DefaultTTL is applied when a Set call passes a non-positive TTL.
const DefaultTTL = time.Hour

type Client struct {
	rdb    *redis.Client
	config *Config
}

type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// NewClient connects to Redis and verifies the connection with a ping.
// The returned client owns the connection pool; call Close on shutdown.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{
		rdb:    rdb,
		config: config,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// Get reads the JSON payload stored at key into dest. It returns false when
// the key is absent or expired. A store failure returns an unavailable error,
// never a miss.
func (c *Client) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.UnavailableError("cache get failed", err).WithContext("key", key)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, errors.InternalError("failed to decode cached value", err).WithContext("key", key)
	}
	return true, nil
}

// Set stores value as JSON at key. A non-positive ttl falls back to DefaultTTL.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.InternalError("failed to encode cache value", err).WithContext("key", key)
	}

	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return errors.UnavailableError("cache set failed", err).WithContext("key", key)
	}
	return nil
}

// Delete removes key, reporting whether it existed.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	removed, err := c.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, errors.UnavailableError("cache delete failed", err).WithContext("key", key)
	}
	return removed > 0, nil
}

// DeleteByPattern removes every key matching prefix followed by a glob
// wildcard and returns the number of keys deleted. Keys are enumerated with
// SCAN and removed in a single DEL batch.
func (c *Client) DeleteByPattern(ctx context.Context, prefix string) (int, error) {
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, errors.UnavailableError("cache scan failed", err).WithContext("pattern", prefix+"*")
	}

	if len(keys) == 0 {
		return 0, nil
	}

	removed, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, errors.UnavailableError("cache bulk delete failed", err).WithContext("pattern", prefix+"*")
	}
	return int(removed), nil
}

// Increment atomically adds amount to the integer at key, creating the key
// at amount when absent.
func (c *Client) Increment(ctx context.Context, key string, amount int64) (int64, error) {
	value, err := c.rdb.IncrBy(ctx, key, amount).Result()
	if err != nil {
		return 0, errors.UnavailableError("cache increment failed", err).WithContext("key", key)
	}
	return value, nil
}

// IncrementWithExpire increments the counter at key and re-arms its expiry
// to window from now, as a single transactional round trip. Every call
// extends the window, so a steadily hit counter never resets until traffic
// stops for a full window.
func (c *Client) IncrementWithExpire(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.UnavailableError("cache increment failed", err).WithContext("key", key)
	}
	return incr.Val(), nil
}

// SetNX stores value at key only when the key is absent, reporting whether
// this call created it. Used for lock acquisition.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	created, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, errors.UnavailableError("cache setnx failed", err).WithContext("key", key)
	}
	return created, nil
}

// GetString reads a raw string value, returning false when absent.
func (c *Client) GetString(ctx context.Context, key string) (string, bool, error) {
	value, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.UnavailableError("cache get failed", err).WithContext("key", key)
	}
	return value, true, nil
}

// Eval runs a server-side Lua script. Lock release and the rate-limit
// check-and-increment use this for atomicity.
func (c *Client) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	result, err := c.rdb.Eval(ctx, script, keys, args...).Result()
	if err != nil {
		return nil, errors.UnavailableError("cache script failed", err)
	}
	return result, nil
}

// GetGoRedisClient exposes the underlying go-redis client for integrations
// that need it directly, such as the redsync lock backend.
func (c *Client) GetGoRedisClient() *redis.Client {
	return c.rdb
}
