package models

import (
	"time"

	"gorm.io/datatypes"
)

// OutboxEvent is a domain event written in the transaction that produced it.
// It stays pending until the relay publishes it.
type OutboxEvent struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	RoutingKey  string         `gorm:"type:varchar(64);not null" json:"routing_key"`
	Payload     datatypes.JSON `gorm:"not null" json:"payload"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	LastError   *string        `gorm:"type:text" json:"last_error,omitempty"`
	AvailableAt time.Time      `gorm:"not null;index" json:"available_at"`
	PublishedAt *time.Time     `gorm:"index" json:"published_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
