// Package ratelimit provides Redis-backed sliding-window rate limiting.
//
// When constructed without a Redis client the limiter runs in noop mode
// and permits every request, so single-binary deployments work without
// Redis. MemoryLimiter offers a process-local token bucket for callers
// that need throttling without shared state.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule describes one rate limit: at most Limit requests per Window,
// tracked under keys namespaced by Prefix.
type Rule struct {
	Prefix string
	Limit  int
	Window time.Duration
}

// Result is the outcome of a limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// FormatHeaders returns the standard X-RateLimit response headers.
func (r Result) FormatHeaders() map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(r.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(r.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(r.ResetAt.Unix(), 10),
	}
}

// Limiter enforces sliding-window rate limits in Redis.
// A nil Redis client puts the limiter in noop mode.
type Limiter struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a Limiter. Pass a nil client to disable limiting.
func New(client *redis.Client, logger *slog.Logger) *Limiter {
	return &Limiter{client: client, logger: logger}
}

// Allow records a request for key under rule and reports whether it is
// within the limit. Redis failures are logged and fail open.
func (l *Limiter) Allow(ctx context.Context, rule Rule, key string) Result {
	if l.client == nil {
		return Result{
			Allowed:   true,
			Limit:     rule.Limit,
			Remaining: rule.Limit,
			ResetAt:   time.Now().Add(rule.Window),
		}
	}

	now := time.Now()
	windowStart := now.Add(-rule.Window)
	redisKey := fmt.Sprintf("ratelimit:%s:%s", rule.Prefix, key)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart.UnixMicro(), 10))
	// Member granularity is one microsecond; concurrent requests in the
	// same microsecond collapse into a single entry.
	member := strconv.FormatInt(now.UnixMicro(), 10)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMicro()), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rule.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("rate limiter redis failure, failing open", "key", redisKey, "error", err)
		return Result{
			Allowed:   true,
			Limit:     rule.Limit,
			Remaining: rule.Limit,
			ResetAt:   now.Add(rule.Window),
		}
	}

	count := int(countCmd.Val())
	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= rule.Limit,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetAt:   now.Add(rule.Window),
	}
}

// Close releases the underlying Redis client.
func (l *Limiter) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
