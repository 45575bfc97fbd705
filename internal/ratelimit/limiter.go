// Package ratelimit enforces a per-(client, endpoint) request cap on a
// rolling window. Counters live in the shared Redis store under
// "ratelimit:{clientId}:{endpoint}" and their expiry is re-armed on every
// increment, so sustained traffic keeps a window alive until it goes quiet
// for a full window.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"adops-backend/internal/common/errors"
	"adops-backend/internal/common/logging"
	"adops-backend/internal/redis"
)

const keyPrefix = "ratelimit:"

// allowScript combines the threshold check and the increment in one script
// so two racing requests cannot both slip under the cap.
const allowScript = `
local count = tonumber(redis.call("get", KEYS[1]) or "0")
if count >= tonumber(ARGV[1]) then
	return -1
end
count = redis.call("incr", KEYS[1])
redis.call("expire", KEYS[1], ARGV[2])
return count`

type Config struct {
	Limit   int           `json:"limit"`
	Window  time.Duration `json:"window"`
	Enabled bool          `json:"enabled"`
}

type Limiter struct {
	redis  *redis.Client
	config *Config
	logger logging.Logger
}

func NewLimiter(redisClient *redis.Client, config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Limit:   100,
			Window:  time.Minute,
			Enabled: true,
		}
	}

	return &Limiter{
		redis:  redisClient,
		config: config,
		logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "ratelimit"}),
	}
}

func key(clientID, endpoint string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, clientID, endpoint)
}

// Count returns the current window counter, 0 when the window is absent or
// expired.
func (l *Limiter) Count(ctx context.Context, clientID, endpoint string) (int64, error) {
	value, found, err := l.redis.GetString(ctx, key(clientID, endpoint))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.InternalError("rate limit counter is not an integer", err)
	}
	return count, nil
}

// Increment bumps the counter and re-arms its expiry to the configured
// window, returning the new count.
func (l *Limiter) Increment(ctx context.Context, clientID, endpoint string) (int64, error) {
	return l.redis.IncrementWithExpire(ctx, key(clientID, endpoint), l.config.Window)
}

// Allow atomically checks the counter against the limit and increments it
// when under. It returns whether the request may proceed and the count after
// the call.
func (l *Limiter) Allow(ctx context.Context, clientID, endpoint string) (bool, int64, error) {
	if !l.config.Enabled {
		return true, 0, nil
	}

	windowSeconds := int(l.config.Window.Seconds())
	result, err := l.redis.Eval(ctx, allowScript, []string{key(clientID, endpoint)}, l.config.Limit, windowSeconds)
	if err != nil {
		return false, 0, err
	}

	count, ok := result.(int64)
	if !ok {
		return false, 0, errors.InternalError("unexpected rate limit script result", nil)
	}

	if count < 0 {
		return false, int64(l.config.Limit), nil
	}
	return true, count, nil
}

// HTTPMiddleware rejects requests over the cap with 429. Administrative
// paths bypass rate limiting entirely; limiter transport failures fail open.
func (l *Limiter) HTTPMiddleware(keyFunc func(*http.Request) string, bypassPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			for _, prefix := range bypassPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			clientID := keyFunc(r)
			if clientID == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, count, err := l.Allow(r.Context(), clientID, r.URL.Path)
			if err != nil {
				// fail open so a Redis outage does not take the API down
				l.logger.Warn("rate limit check failed, allowing request", logging.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(l.config.Limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.config.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(l.config.Window.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"detail":"Rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey identifies the caller for rate limiting: the authenticated user
// id when present, the remote address otherwise.
func ClientKey(r *http.Request) string {
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return userID
	}

	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}
	return ip
}
