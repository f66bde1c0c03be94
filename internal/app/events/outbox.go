package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	outboxBatchSize = 100
	outboxLease     = 30 * time.Second
	maxRetryDelay   = 5 * time.Minute
)

// Outbox stores events inside the caller's transaction and relays them to
// the Publisher once committed. A row is marked published only after the
// bus accepted it; failed rows are retried with exponential delays.
type Outbox struct {
	db        *gorm.DB
	publisher Publisher
	now       func() time.Time
}

func NewOutbox(db *gorm.DB, publisher Publisher) *Outbox {
	return &Outbox{
		db:        db,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue writes events with tx. They are lost only if tx rolls back.
func (o *Outbox) Enqueue(tx *gorm.DB, events ...models.Event) error {
	if len(events) == 0 {
		return nil
	}

	now := o.now()
	rows := make([]models.OutboxEvent, 0, len(events))
	for _, event := range events {
		body, err := json.Marshal(event)
		if err != nil {
			return err
		}
		rows = append(rows, models.OutboxEvent{
			RoutingKey:  event.RoutingKey,
			Payload:     datatypes.JSON(body),
			AvailableAt: now,
			CreatedAt:   now,
		})
	}
	return tx.Create(&rows).Error
}

// Flush publishes due events in insertion order and returns how many went
// out. Each row is leased before publishing so concurrent flushers skip it.
func (o *Outbox) Flush(ctx context.Context) (int, error) {
	now := o.now()

	var pending []models.OutboxEvent
	err := o.db.WithContext(ctx).
		Where("published_at IS NULL AND available_at <= ?", now).
		Order("id ASC").
		Limit(outboxBatchSize).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	var errs error
	published := 0
	for _, row := range pending {
		claim := o.db.WithContext(ctx).Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL AND available_at <= ?", row.ID, now).
			Update("available_at", now.Add(outboxLease))
		if claim.Error != nil {
			errs = multierr.Append(errs, claim.Error)
			continue
		}
		if claim.RowsAffected == 0 {
			continue
		}

		if err := o.publisher.Publish(ctx, row.RoutingKey, json.RawMessage(row.Payload)); err != nil {
			errs = multierr.Combine(errs, err, o.reschedule(ctx, row, err))
			continue
		}

		publishedAt := o.now()
		err := o.db.WithContext(ctx).Model(&models.OutboxEvent{}).
			Where("id = ?", row.ID).
			Updates(map[string]any{
				"published_at": publishedAt,
				"attempts":     row.Attempts + 1,
				"last_error":   nil,
			}).Error
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		published++
	}

	return published, errs
}

func (o *Outbox) reschedule(ctx context.Context, row models.OutboxEvent, cause error) error {
	attempts := row.Attempts + 1
	message := cause.Error()

	logrus.WithFields(logrus.Fields{
		"outbox_id":   row.ID,
		"routing_key": row.RoutingKey,
		"attempts":    attempts,
	}).WithError(cause).Warn("Failed to publish domain event, will retry")

	return o.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"attempts":     attempts,
			"last_error":   message,
			"available_at": o.now().Add(retryDelay(attempts)),
		}).Error
}

// retryDelay grows exponentially with the attempt count up to maxRetryDelay.
func retryDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.RandomizationFactor = 0
	b.MaxInterval = maxRetryDelay
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// Notify flushes right after a commit so events normally leave without
// waiting for the relay. Failures stay pending for Run.
func (o *Outbox) Notify(ctx context.Context) {
	if _, err := o.Flush(ctx); err != nil {
		logrus.WithError(err).Warn("Outbox flush failed, relay will retry")
	}
}

// Run relays pending events on every tick until ctx is done.
func (o *Outbox) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		logrus.Warn("Outbox relay disabled, interval is not positive")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := o.Flush(ctx); err != nil {
				logrus.WithError(err).Warn("Outbox relay pass failed")
			} else if n > 0 {
				logrus.WithField("published", n).Debug("Outbox relay published events")
			}
		}
	}
}
