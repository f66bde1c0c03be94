package locks

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerExcludesSecondHolder(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "raffle:1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "raffle:1", time.Minute)
	require.ErrorIs(t, err, ErrLocked)
	assert.True(t, errors.IsConflict(err))

	other, err := l.Acquire(ctx, "raffle:2", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.Acquire(ctx, "raffle:1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestRedisLockerLogsFailedRelease(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisLocker(client, "test")
	l.release(context.Background(), "test:lock:raffle:1", "token")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "test:lock:raffle:1", entry.Data["lock_key"])
	assert.Contains(t, entry.Data, logrus.ErrorKey)
}
