package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Lockout states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// Lockout is a per-client circuit breaker over failed attempts (bad
// passwords, bad webhook signatures), kept in a Redis hash.
//
//   - Closed: requests pass and failures are counted.
//   - Open: requests are refused until the cooldown has elapsed.
//   - Half-open: a single trial attempt is let through. Success closes the
//     circuit, failure opens it again. A trial that never reports back frees
//     the slot after another cooldown.
type Lockout struct {
	client    *redis.Client
	logger    *zap.Logger
	script    *redis.Script
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// Returns 0 to refuse, 1 to allow, 2 when this caller claimed the half-open
// trial. The check and the claim happen in one step so concurrent callers
// cannot both get the trial.
var claimScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local cooldown = tonumber(ARGV[2])

local d = redis.call('HMGET', key, 'state', 'last_failed_at', 'trial_at')
local state = d[1]

if state == 'open' then
    if now - (tonumber(d[2]) or 0) < cooldown then
        return 0
    end
elseif state == 'half-open' then
    if now - (tonumber(d[3]) or 0) < cooldown then
        return 0
    end
else
    return 1
end

redis.call('HSET', key, 'state', 'half-open', 'trial_at', now)
return 2
`)

// LockoutState is the current view of one client's circuit.
type LockoutState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewLockout(client *redis.Client, logger *zap.Logger, threshold int, cooldown time.Duration) *Lockout {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Lockout{
		client:    client,
		logger:    logger,
		script:    claimScript,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func lockoutKey(scope, id string) string {
	return fmt.Sprintf("lockout:%s:%s", scope, id)
}

// Cooldown is how long an open circuit refuses attempts.
func (l *Lockout) Cooldown() time.Duration {
	return l.cooldown
}

func (l *Lockout) cooledDown(lastFailedAt int64) bool {
	return l.now().Unix()-lastFailedAt >= int64(l.cooldown.Seconds())
}

// Allow reports whether id may make another attempt in scope. Redis failures
// fail open.
func (l *Lockout) Allow(ctx context.Context, scope, id string) bool {
	res, err := l.script.Run(ctx, l.client, []string{lockoutKey(scope, id)},
		l.now().Unix(), int64(l.cooldown.Seconds()),
	).Int64()
	if err != nil {
		l.logger.Error("lockout script failed", zap.Error(err), zap.String("client", id))
		return true
	}

	if res == 2 {
		l.logger.Info("lockout half-open", zap.String("scope", scope), zap.String("client", id))
	}
	return res != 0
}

// RecordSuccess closes the circuit for id and forgets its failures.
func (l *Lockout) RecordSuccess(ctx context.Context, scope, id string) {
	key := lockoutKey(scope, id)

	state, _ := l.client.HGet(ctx, key, "state").Result()
	if state == "" {
		return
	}

	l.client.Del(ctx, key)
	if state == StateHalfOpen {
		l.logger.Info("lockout closed", zap.String("scope", scope), zap.String("client", id))
	}
}

// RecordFailure counts a failed attempt and opens the circuit once the
// threshold is reached, or straight away from half-open.
func (l *Lockout) RecordFailure(ctx context.Context, scope, id string) {
	key := lockoutKey(scope, id)

	failures, err := l.client.HIncrBy(ctx, key, "failures", 1).Result()
	if err != nil {
		l.logger.Error("failed to record lockout failure", zap.Error(err))
		return
	}

	l.client.HSet(ctx, key, "last_failed_at", l.now().Unix())
	// Idle entries expire after twice the cooldown.
	l.client.Expire(ctx, key, 2*l.cooldown)

	state, _ := l.client.HGet(ctx, key, "state").Result()

	switch {
	case state == StateHalfOpen:
		l.client.HSet(ctx, key, "state", StateOpen)
		l.logger.Warn("lockout re-opened", zap.String("scope", scope), zap.String("client", id))
	case failures >= int64(l.threshold):
		l.client.HSet(ctx, key, "state", StateOpen)
		l.logger.Warn("lockout opened",
			zap.String("scope", scope),
			zap.String("client", id),
			zap.Int64("failures", failures),
			zap.Int("threshold", l.threshold),
		)
	case state == "":
		l.client.HSet(ctx, key, "state", StateClosed)
	}
}

// state returns the current circuit for id in scope.
func (l *Lockout) state(ctx context.Context, scope, id string) LockoutState {
	data, err := l.client.HGetAll(ctx, lockoutKey(scope, id)).Result()
	if err != nil || len(data) == 0 {
		return LockoutState{State: StateClosed}
	}

	failures, _ := strconv.Atoi(data["failures"])
	state := data["state"]
	if state == "" {
		state = StateClosed
	}

	lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
	if state == StateOpen && l.cooledDown(lastFailedAt) {
		state = StateHalfOpen
	}

	res := LockoutState{State: state, Failures: failures}
	if lastFailedAt > 0 {
		res.LastFailedAt = time.Unix(lastFailedAt, 0).UTC().Format(time.RFC3339)
	}
	return res
}
