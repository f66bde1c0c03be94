package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter keeps one token bucket per key. Buckets refill evenly over the
// window and start full.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *LocalLimiter) bucket(key string, limit Rate) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.limiters[key]
	if !ok {
		every := rate.Every(limit.Window / time.Duration(max(limit.Requests, 1)))
		b = rate.NewLimiter(every, limit.Requests)
		l.limiters[key] = b
	}
	return b
}

func (l *LocalLimiter) Allow(_ context.Context, key string, limit Rate) (bool, Info) {
	now := time.Now()
	b := l.bucket(key, limit)
	allowed := b.AllowN(now, 1)

	return allowed, Info{
		Limit:     limit.Requests,
		Remaining: max(int(b.TokensAt(now)), 0),
		Reset:     now.Add(limit.Window),
	}
}

func (l *LocalLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
	return nil
}
