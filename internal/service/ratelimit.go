package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/neria/manager/internal/pkg/apperrors"
	"github.com/neria/manager/internal/pkg/logger"
)

const defaultRateWindow = 60 * time.Second

// RateLimiter admits at most maxPerMinute calls per key and window.
type RateLimiter interface {
	Consume(ctx context.Context, key string, maxPerMinute int) error
}

func errRateLimited() error {
	return apperrors.TooManyRequests("Rate limit exceeded")
}

const limiterShards = 32

type rateWindow struct {
	start time.Time
	count int
}

type limiterShard struct {
	mu        sync.Mutex
	windows   map[string]*rateWindow
	lastSweep time.Time
}

// sweep drops expired windows at most once per window length. Callers hold mu.
func (s *limiterShard) sweep(now time.Time, window time.Duration) {
	if now.Sub(s.lastSweep) < window {
		return
	}
	s.lastSweep = now
	for key, w := range s.windows {
		if now.Sub(w.start) >= window {
			delete(s.windows, key)
		}
	}
}

// FixedWindowLimiter counts calls in windows that open on the first call for
// a key, not on wall-clock minute boundaries.
type FixedWindowLimiter struct {
	shards [limiterShards]limiterShard
	window time.Duration
	now    func() time.Time
}

func NewFixedWindowLimiter(window time.Duration) *FixedWindowLimiter {
	if window <= 0 {
		window = defaultRateWindow
	}
	l := &FixedWindowLimiter{window: window, now: time.Now}
	for i := range l.shards {
		l.shards[i].windows = make(map[string]*rateWindow)
	}
	return l
}

func (l *FixedWindowLimiter) shard(key string) *limiterShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.shards[h.Sum32()%limiterShards]
}

func (l *FixedWindowLimiter) Consume(ctx context.Context, key string, maxPerMinute int) error {
	limit := max(1, maxPerMinute)
	now := l.now()

	s := l.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now, l.window)
	w := s.windows[key]
	if w == nil || now.Sub(w.start) >= l.window {
		w = &rateWindow{start: now}
		s.windows[key] = w
	}
	w.count++
	if w.count > limit {
		return errRateLimited()
	}
	return nil
}

// RateCounter is the shared-store primitive behind RedisRateLimiter.
type RateCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisRateLimiter applies the same window rule across every gateway replica.
// When the counter store is unreachable the call is admitted and a warning logged.
type RedisRateLimiter struct {
	counter RateCounter
	window  time.Duration
}

func NewRedisRateLimiter(counter RateCounter, window time.Duration) *RedisRateLimiter {
	if window <= 0 {
		window = defaultRateWindow
	}
	return &RedisRateLimiter{counter: counter, window: window}
}

func (l *RedisRateLimiter) Consume(ctx context.Context, key string, maxPerMinute int) error {
	limit := int64(max(1, maxPerMinute))
	n, err := l.counter.Incr(ctx, key, l.window)
	if err != nil {
		logger.LogError(ctx, err, "rate limit counter unavailable", "key", key)
		return nil
	}
	if n > limit {
		return errRateLimited()
	}
	return nil
}
