package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type failingPublisher struct {
	attempts int
}

func (p *failingPublisher) Publish(context.Context, string, any) error {
	p.attempts++
	return errors.New("bus down")
}

func setupOutbox(t *testing.T, publisher Publisher) (*Outbox, *time.Time) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.OutboxEvent{}))

	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	outbox := NewOutbox(db, publisher)
	outbox.now = func() time.Time { return clock }
	return outbox, &clock
}

func enqueue(t *testing.T, o *Outbox, evts ...models.Event) {
	t.Helper()
	require.NoError(t, o.db.Transaction(func(tx *gorm.DB) error {
		return o.Enqueue(tx, evts...)
	}))
}

func TestOutboxRetriesUntilPublished(t *testing.T) {
	failing := &failingPublisher{}
	outbox, clock := setupOutbox(t, failing)
	ctx := context.Background()

	enqueue(t, outbox, models.Event{RoutingKey: models.RoutingTicketWon, EntityName: "raffle_tickets", EntityID: "T-1", OccurredAt: *clock})

	n, err := outbox.Flush(ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, n)

	var row models.OutboxEvent
	require.NoError(t, outbox.db.First(&row).Error)
	assert.Equal(t, 1, row.Attempts)
	assert.Nil(t, row.PublishedAt)
	require.NotNil(t, row.LastError)
	assert.Contains(t, *row.LastError, "bus down")

	// Not due again until the retry delay passes.
	n, err = outbox.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, failing.attempts)

	memory := NewMemoryPublisher()
	outbox.publisher = memory
	*clock = clock.Add(2 * time.Second)

	n, err = outbox.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Equal(t, 1, memory.Count(models.RoutingTicketWon))

	var delivered models.Event
	require.NoError(t, json.Unmarshal(memory.Published()[0].Payload.(json.RawMessage), &delivered))
	assert.Equal(t, "T-1", delivered.EntityID)

	n, err = outbox.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, memory.Count(models.RoutingTicketWon))

	require.NoError(t, outbox.db.First(&row, row.ID).Error)
	assert.NotNil(t, row.PublishedAt)
	assert.Equal(t, 2, row.Attempts)
}

func TestOutboxPublishesInInsertionOrder(t *testing.T) {
	memory := NewMemoryPublisher()
	outbox, clock := setupOutbox(t, memory)

	enqueue(t, outbox,
		models.Event{RoutingKey: models.RoutingRedemptionCreated, OccurredAt: *clock},
		models.Event{RoutingKey: models.RoutingTicketsGenerated, OccurredAt: *clock},
	)
	outbox.Notify(context.Background())

	published := memory.Published()
	require.Len(t, published, 2)
	assert.Equal(t, models.RoutingRedemptionCreated, published[0].RoutingKey)
	assert.Equal(t, models.RoutingTicketsGenerated, published[1].RoutingKey)
}

func TestOutboxDiscardsRolledBackEvents(t *testing.T) {
	memory := NewMemoryPublisher()
	outbox, clock := setupOutbox(t, memory)

	err := outbox.db.Transaction(func(tx *gorm.DB) error {
		if err := outbox.Enqueue(tx, models.Event{RoutingKey: models.RoutingRedemptionVoided, OccurredAt: *clock}); err != nil {
			return err
		}
		return errors.New("void failed")
	})
	require.Error(t, err)

	var pending int64
	require.NoError(t, outbox.db.Model(&models.OutboxEvent{}).Count(&pending).Error)
	assert.Zero(t, pending)

	n, err := outbox.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, memory.Published())
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, retryDelay(1))
	assert.Equal(t, 1500*time.Millisecond, retryDelay(2))
	assert.Equal(t, maxRetryDelay, retryDelay(50))
}
