// Package ratelimit throttles clients with Redis: a sliding window caps the
// request rate, and a lockout refuses clients after repeated failed attempts.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter is a sliding window rate limiter backed by a Redis sorted set per
// key. A Lua script trims expired entries, counts and adds atomically.
type Limiter struct {
	client *redis.Client
	logger *zap.Logger
	script *redis.Script
	window time.Duration
	now    func() time.Time
}

var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, math.floor(window / 1000) + 1)
    return 1
else
    return 0
end
`)

func New(client *redis.Client, logger *zap.Logger) *Limiter {
	return &Limiter{
		client: client,
		logger: logger,
		script: slidingWindowScript,
		window: time.Second,
		now:    time.Now,
	}
}

func key(scope, id string) string {
	return fmt.Sprintf("rl:%s:%s", scope, id)
}

// Allow reports whether one more call for id fits in limit calls per second
// within scope. A limit of zero or less disables limiting. Redis failures
// fail open.
func (l *Limiter) Allow(ctx context.Context, scope, id string, limit int) bool {
	if limit <= 0 {
		return true
	}

	now := l.now().UnixMilli()
	result, err := l.script.Run(ctx, l.client, []string{key(scope, id)},
		now, l.window.Milliseconds(), limit, uuid.NewString(),
	).Int64()
	if err != nil {
		l.logger.Error("rate limiter script failed", zap.Error(err), zap.String("client", id))
		return true
	}

	if result == 0 {
		l.logger.Debug("rate limited", zap.String("scope", scope), zap.String("client", id), zap.Int("limit", limit))
		return false
	}
	return true
}
