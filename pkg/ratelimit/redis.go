package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisLimiter is a sliding window limiter over a sorted set per key.
type RedisLimiter struct {
	redis     *redis.Client
	keyPrefix string
}

func NewRedisLimiter(client *redis.Client, keyPrefix string) *RedisLimiter {
	return &RedisLimiter{
		redis:     client,
		keyPrefix: keyPrefix,
	}
}

func (l *RedisLimiter) formatKey(key string) string {
	return fmt.Sprintf("%s:ratelimit:%s", l.keyPrefix, key)
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit Rate) (bool, Info) {
	now := time.Now()
	windowKey := l.formatKey(key)

	pipe := l.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, windowKey, "0", strconv.FormatInt(now.Add(-limit.Window).UnixNano(), 10))
	count := pipe.ZCard(ctx, windowKey)
	pipe.ZAdd(ctx, windowKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})
	pipe.Expire(ctx, windowKey, limit.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open: a Redis outage must not stop redemptions.
		logrus.WithError(err).WithField("key", key).Warn("Rate limiter unavailable, allowing request")
		return true, Info{
			Limit:     limit.Requests,
			Remaining: 0,
			Reset:     now.Add(limit.Window),
		}
	}

	remaining := limit.Requests - int(count.Val()) - 1
	return remaining >= 0, Info{
		Limit:     limit.Requests,
		Remaining: max(remaining, 0),
		Reset:     now.Add(limit.Window),
	}
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.redis.Del(ctx, l.formatKey(key)).Err()
}
