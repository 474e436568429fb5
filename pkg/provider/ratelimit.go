package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// AcquireResult is the outcome of a rate-limit check (spec §4.4).
type AcquireResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

// LimiterStats is the per-provider statistics spec §4.4 requires the rate
// limiter to expose: allowed/denied counts and the last-acquire timestamp.
type LimiterStats struct {
	Allowed     int64
	Denied      int64
	LastAcquire time.Time
}

func (s *LimiterStats) record(allowed bool, now time.Time) {
	if allowed {
		s.Allowed++
	} else {
		s.Denied++
	}
	s.LastAcquire = now
}

// Limiter is the common interface for the local and Redis-backed token
// bucket implementations.
type Limiter interface {
	TryAcquire(ctx context.Context, providerID string, n int) (AcquireResult, error)
}

// providerBucket pairs a per-provider rate.Limiter with the last time it was
// touched, so LocalLimiter can evict idle providers the same way the
// teacher's per-visitor rate limiter evicts idle IPs.
type providerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	stats    LimiterStats
}

// LocalLimiter holds one golang.org/x/time/rate.Limiter per provider, for
// single-instance deployments (spec §5: one lock per provider_id).
type LocalLimiter struct {
	mu         sync.Mutex
	ratePerSec float64
	maxTokens  float64
	buckets    map[string]*providerBucket
}

func NewLocalLimiter(ratePerSec, maxTokens float64) *LocalLimiter {
	l := &LocalLimiter{ratePerSec: ratePerSec, maxTokens: maxTokens, buckets: make(map[string]*providerBucket)}
	go l.cleanupIdle()
	return l
}

func (l *LocalLimiter) getBucket(providerID string) *providerBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[providerID]
	if !ok {
		b = &providerBucket{limiter: rate.NewLimiter(rate.Limit(l.ratePerSec), int(l.maxTokens))}
		l.buckets[providerID] = b
	}
	b.lastSeen = time.Now()
	return b
}

func (l *LocalLimiter) cleanupIdle() {
	for {
		time.Sleep(time.Minute)
		l.mu.Lock()
		for id, b := range l.buckets {
			if time.Since(b.lastSeen) > 10*time.Minute {
				delete(l.buckets, id)
			}
		}
		l.mu.Unlock()
	}
}

func (l *LocalLimiter) TryAcquire(_ context.Context, providerID string, n int) (AcquireResult, error) {
	b := l.getBucket(providerID)
	now := time.Now()

	reservation := b.limiter.ReserveN(now, n)
	if !reservation.OK() {
		return AcquireResult{}, fmt.Errorf("provider: rate limit request exceeds burst capacity")
	}

	delay := reservation.Delay()
	if delay <= 0 {
		l.mu.Lock()
		b.stats.record(true, now)
		l.mu.Unlock()
		return AcquireResult{Allowed: true}, nil
	}

	reservation.Cancel()
	l.mu.Lock()
	b.stats.record(false, now)
	l.mu.Unlock()
	return AcquireResult{Allowed: false, RetryAfter: delay}, nil
}

// Stats returns the allowed/denied counters and last-acquire timestamp for
// providerID, or false if no acquire has been attempted against it yet.
func (l *LocalLimiter) Stats(providerID string) (LimiterStats, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[providerID]
	if !ok {
		return LimiterStats{}, false
	}
	return b.stats, true
}

// redisTokenBucketScript performs the same refill-then-consume arithmetic
// as LocalLimiter but atomically in Redis, so multiple process instances
// share one provider-scoped bucket.
var redisTokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    local added = elapsed * rate
    tokens = tokens + added
    if tokens > capacity then
        tokens = capacity
    end
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, 3600)

return {allowed, tokens}
`)

// RedisLimiter is the distributed token-bucket limiter used when the
// platform runs more than one instance. The token bucket itself lives in
// Redis and is shared across instances; the allowed/denied counters are
// this process's own view (spec §4.4 asks for statistics, not consensus).
type RedisLimiter struct {
	client     *redis.Client
	ratePerSec float64
	maxTokens  float64

	mu    sync.Mutex
	stats map[string]*LimiterStats
}

func NewRedisLimiter(client *redis.Client, ratePerSec, maxTokens float64) *RedisLimiter {
	return &RedisLimiter{client: client, ratePerSec: ratePerSec, maxTokens: maxTokens, stats: make(map[string]*LimiterStats)}
}

func (l *RedisLimiter) TryAcquire(ctx context.Context, providerID string, n int) (AcquireResult, error) {
	key := fmt.Sprintf("provider_limiter:%s", providerID)
	now := float64(time.Now().UnixMicro()) / 1e6

	res, err := redisTokenBucketScript.Run(ctx, l.client, []string{key}, l.ratePerSec, l.maxTokens, n, now).Result()
	if err != nil {
		return AcquireResult{}, fmt.Errorf("provider: redis rate limiter: %w", err)
	}

	results, ok := res.([]interface{})
	if !ok || len(results) != 2 {
		return AcquireResult{}, fmt.Errorf("provider: unexpected redis limiter response")
	}

	allowed, _ := results[0].(int64)
	if allowed == 1 {
		l.recordStat(providerID, true)
		return AcquireResult{Allowed: true}, nil
	}

	remaining, _ := results[1].(string)
	var tokensLeft float64
	fmt.Sscanf(remaining, "%f", &tokensLeft)
	deficit := float64(n) - tokensLeft
	if deficit < 0 {
		deficit = 0
	}
	retryAfter := time.Duration(deficit/l.ratePerSec*1000) * time.Millisecond
	l.recordStat(providerID, false)
	return AcquireResult{Allowed: false, RetryAfter: retryAfter}, nil
}

func (l *RedisLimiter) recordStat(providerID string, allowed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stats[providerID]
	if !ok {
		s = &LimiterStats{}
		l.stats[providerID] = s
	}
	s.record(allowed, time.Now())
}

// Stats returns the allowed/denied counters and last-acquire timestamp this
// process instance observed for providerID, or false if it has not
// attempted an acquire against it yet.
func (l *RedisLimiter) Stats(providerID string) (LimiterStats, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stats[providerID]
	if !ok {
		return LimiterStats{}, false
	}
	return *s, true
}
