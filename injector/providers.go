package injector

import (
	"github.com/redis/go-redis/v9"
	"github.com/safatanc/gsalt-rewards/internal/app/events"
	"github.com/safatanc/gsalt-rewards/internal/app/locks"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/safatanc/gsalt-rewards/pkg/ratelimit"
	"github.com/safatanc/gsalt-rewards/pkg/signature"
)

func provideSignatureCodec(cfg infrastructures.RewardsConfig) (*signature.Codec, error) {
	return signature.NewCodec(cfg.SigningSecret)
}

func providePublisher(client *redis.Client, cfg infrastructures.RewardsConfig) *events.RedisPublisher {
	return events.NewRedisPublisher(client, cfg.EventChannelPrefix)
}

func provideLocker(client *redis.Client, cfg infrastructures.RewardsConfig) *locks.RedisLocker {
	return locks.NewRedisLocker(client, cfg.EventChannelPrefix)
}

func provideLimiter(client *redis.Client, cfg infrastructures.RewardsConfig) *ratelimit.RedisLimiter {
	return ratelimit.NewRedisLimiter(client, cfg.EventChannelPrefix)
}
