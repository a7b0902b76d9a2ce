package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redisKeyPrefix = "roombook:ratelimit:"
	redisTimeout   = 250 * time.Millisecond
)

// tokenIssueScript checks every window and counts the issue in one step, so
// concurrent logins cannot all pass a check made before any of them count.
// KEYS are the window counters, ARGV holds one limit per key followed by the
// window length in milliseconds. It returns {index of the exhausted key or 0,
// its remaining TTL in ms}. Nothing is counted when a window is exhausted.
var tokenIssueScript = redis.NewScript(`
local window_ms = tonumber(ARGV[#KEYS + 1])
for i, key in ipairs(KEYS) do
  local limit = tonumber(ARGV[i])
  if limit > 0 then
    local count = tonumber(redis.call('GET', key) or '0')
    if count >= limit then
      return {i, redis.call('PTTL', key)}
    end
  end
end
for _, key in ipairs(KEYS) do
  if redis.call('INCR', key) == 1 then
    redis.call('PEXPIRE', key, window_ms)
  end
end
return {0, 0}
`)

// RedisLimiter shares the token windows across server instances. A token
// issue is counted by CheckTokenIssue when it is allowed. Each counter expires
// one window after its first use. Redis failures fail open.
type RedisLimiter struct {
	client *redis.Client
	config *Config
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisLimiter(ctx context.Context, opts RedisOptions, cfg *Config) (*RedisLimiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	client := redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error connecting to redis at %s: %w", opts.Addr, err)
	}
	return &RedisLimiter{client: client, config: cfg}, nil
}

func (rl *RedisLimiter) CheckTokenIssue(ctx context.Context, username, ip string) LimitResult {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	keys := []string{redisKey("user", normalizeIdentifier(username)), redisKey("ip", ip)}
	reasons := []string{"user_hourly_limit", "ip_hourly_limit"}
	vals, err := tokenIssueScript.Run(ctx, rl.client, keys,
		rl.config.MaxPerUserPerHour, rl.config.MaxPerIPPerHour, window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		rl.logRedisError(ctx, "token issue script", err)
		return LimitResult{Allowed: true}
	}
	if len(vals) != 2 {
		rl.logRedisError(ctx, "token issue script", fmt.Errorf("unexpected result %v", vals))
		return LimitResult{Allowed: true}
	}

	exhausted, ttlMs := vals[0], vals[1]
	if exhausted == 0 {
		return LimitResult{Allowed: true}
	}
	if exhausted < 1 || int(exhausted) > len(reasons) {
		rl.logRedisError(ctx, "token issue script", fmt.Errorf("unexpected key index %d", exhausted))
		return LimitResult{Allowed: true}
	}
	retryAfter := time.Duration(ttlMs) * time.Millisecond
	if retryAfter <= 0 {
		retryAfter = window
	}
	return LimitResult{Allowed: false, RetryAfter: retryAfter, Reason: reasons[exhausted-1]}
}

// RecordTokenIssue is a no-op: the allowed check already counted the issue.
func (rl *RedisLimiter) RecordTokenIssue(context.Context, string, string) {}

func (rl *RedisLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

func (rl *RedisLimiter) logRedisError(ctx context.Context, op string, err error) {
	log.Ctx(ctx).Error().Err(err).Str("op", op).Msg("Redis rate limiter error")
}

func redisKey(kind, value string) string {
	return hashKey(redisKeyPrefix+"token:"+kind+":", value)
}
