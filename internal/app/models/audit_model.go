package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionCreate       AuditAction = "CREATE"
	AuditActionUpdate       AuditAction = "UPDATE"
	AuditActionStatusChange AuditAction = "STATUS_CHANGE"
	AuditActionRedeem       AuditAction = "REDEEM"
	AuditActionVoid         AuditAction = "VOID"
	AuditActionDraw         AuditAction = "DRAW"
	AuditActionFraudAttempt AuditAction = "FRAUD_ATTEMPT"
)

// AuditLog is an append-only record of a change to any rewards entity
type AuditLog struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	EntityType string         `json:"entity_type" gorm:"type:varchar(50);not null;index:idx_audit_entity"`
	EntityID   string         `json:"entity_id" gorm:"type:varchar(64);not null;index:idx_audit_entity"`
	Action     AuditAction    `json:"action" gorm:"type:varchar(30);not null"`
	OldData    datatypes.JSON `json:"old_data,omitempty"`
	NewData    datatypes.JSON `json:"new_data,omitempty"`
	ChangedBy  *uuid.UUID     `json:"changed_by,omitempty" gorm:"type:uuid"`
	ChangedAt  time.Time      `json:"changed_at" gorm:"not null;index"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// StatusHistory keeps every status transition of coupons, tickets and raffles
type StatusHistory struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	EntityType string         `json:"entity_type" gorm:"type:varchar(50);not null;index:idx_status_history_entity"`
	EntityID   string         `json:"entity_id" gorm:"type:varchar(64);not null;index:idx_status_history_entity"`
	FromStatus *string        `json:"from_status,omitempty" gorm:"type:varchar(20)"`
	ToStatus   string         `json:"to_status" gorm:"type:varchar(20);not null"`
	Reason     *string        `json:"reason,omitempty" gorm:"type:text"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedBy  *uuid.UUID     `json:"created_by,omitempty" gorm:"type:uuid"`
	CreatedAt  time.Time      `json:"created_at" gorm:"not null"`
}

func (h *StatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
