package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/sirupsen/logrus"
)

// Locker serialises work on a key across callers. The returned release
// function must be called once the critical section is done.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

var ErrLocked = errors.NewConflictError("LOCKED", "Another operation on this resource is in progress")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a single-instance SET NX lock shared by every replica.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisLocker(client *redis.Client, keyPrefix string) *RedisLocker {
	return &RedisLocker{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lockKey := fmt.Sprintf("%s:lock:%s", l.keyPrefix, key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to acquire lock")
	}
	if !ok {
		return nil, ErrLocked
	}

	return func() {
		l.release(context.Background(), lockKey, token)
	}, nil
}

// release logs failures; the key still expires after its TTL.
func (l *RedisLocker) release(ctx context.Context, lockKey, token string) {
	if err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
		logrus.WithError(err).WithField("lock_key", lockKey).Warn("Failed to release lock, waiting for TTL")
	}
}

// LocalLocker guards keys within one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, ErrLocked
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
