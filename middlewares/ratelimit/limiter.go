package ratelimit

import (
	"context"
	_ "embed"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Limiter reports whether the request identified by key exceeds the
// limit. A request that is not limited is counted.
type Limiter interface {
	Limit(ctx context.Context, key string) (bool, error)
}

//go:embed slide_window.lua
var luaSlideWindow string

// RedisSlidingWindowLimiter allows Rate requests per key within any
// window of Interval, shared by every instance using the same redis.
type RedisSlidingWindowLimiter struct {
	Cmd      redis.Cmdable
	Interval time.Duration
	Rate     int
}

func InitRedisSlidingWindowLimiter(cmd redis.Cmdable, interval time.Duration, rate int) *RedisSlidingWindowLimiter {
	return &RedisSlidingWindowLimiter{Cmd: cmd, Interval: interval, Rate: rate}
}

func (r *RedisSlidingWindowLimiter) Limit(ctx context.Context, key string) (bool, error) {
	return r.Cmd.Eval(ctx, luaSlideWindow, []string{key},
		r.Interval.Milliseconds(), r.Rate, time.Now().UnixMilli(), uuid.NewString()).Bool()
}

// LocalSlidingWindowLimiter is the single-process counterpart of
// RedisSlidingWindowLimiter. Idle keys are evicted after Interval.
type LocalSlidingWindowLimiter struct {
	interval time.Duration
	rate     int
	windows  *cache.Cache
	mu       sync.Mutex
}

func InitLocalSlidingWindowLimiter(interval time.Duration, rate int) *LocalSlidingWindowLimiter {
	return &LocalSlidingWindowLimiter{
		interval: interval,
		rate:     rate,
		windows:  cache.New(interval, 2*interval),
	}
}

func (l *LocalSlidingWindowLimiter) Limit(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	var hits []time.Time
	if v, ok := l.windows.Get(key); ok {
		hits = v.([]time.Time)
	}
	start := now.Add(-l.interval)
	i := 0
	for i < len(hits) && !hits[i].After(start) {
		i++
	}
	hits = hits[i:]
	if len(hits) >= l.rate {
		l.windows.SetDefault(key, hits)
		return true, nil
	}
	l.windows.SetDefault(key, append(hits, now))
	return false, nil
}
