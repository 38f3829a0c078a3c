package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counts requests in the trailing window with a sorted set keyed by
// timestamp, so quota frees up continuously instead of resetting at
// window boundaries.
var slidingWindowScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
local count = redis.call("ZCARD", KEYS[1])
if count < tonumber(ARGV[3]) then
  redis.call("ZADD", KEYS[1], ARGV[2], ARGV[2] .. "-" .. ARGV[4])
  redis.call("PEXPIRE", KEYS[1], ARGV[5])
  return count + 1
end
return count + 1
`)

// SlidingWindowLimiter limits requests per key over a trailing time
// window, backed by Redis so limits hold across instances.
type SlidingWindowLimiter struct {
	limit  int
	window time.Duration

	redisClient *redis.Client
	redisPrefix string
	now         func() time.Time
	seq         atomic.Int64
}

// NewSlidingWindowLimiter creates a Redis-backed sliding-window limiter.
func NewSlidingWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration) (*SlidingWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	if client == nil {
		return nil, errors.New("rate limiter redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "contentforge:ratelimit"
	}
	return &SlidingWindowLimiter{
		limit:       limit,
		window:      window,
		redisClient: client,
		redisPrefix: prefix,
		now:         time.Now,
	}, nil
}

// Allow returns true when the key is within quota and records the hit.
// On Redis failures, it fails closed and returns false.
func (l *SlidingWindowLimiter) Allow(key string) bool {
	allowed, _ := l.AllowN(key)
	return allowed
}

// AllowN is Allow plus the observed count in the current window, so
// callers can populate Retry-After style response headers.
func (l *SlidingWindowLimiter) AllowN(key string) (bool, int64) {
	if l == nil {
		return false, 0
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	nowMs := l.now().UTC().UnixMilli()
	cutoffMs := nowMs - l.window.Milliseconds()
	redisKey := fmt.Sprintf("%s:%s", l.redisPrefix, key)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	count, err := slidingWindowScript.Run(ctx, l.redisClient, []string{redisKey},
		cutoffMs, nowMs, l.limit, l.seq.Add(1), l.window.Milliseconds()).Int64()
	if err != nil {
		return false, 0
	}
	return count <= int64(l.limit), count
}

// Limit returns the configured per-window quota.
func (l *SlidingWindowLimiter) Limit() int {
	return l.limit
}

// Window returns the trailing window duration.
func (l *SlidingWindowLimiter) Window() time.Duration {
	return l.window
}
