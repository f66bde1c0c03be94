package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EngagementType string

const (
	EngagementTypeImpression  EngagementType = "IMPRESSION"
	EngagementTypeView        EngagementType = "VIEW"
	EngagementTypeClick       EngagementType = "CLICK"
	EngagementTypeInteraction EngagementType = "INTERACTION"
	EngagementTypeCompletion  EngagementType = "COMPLETION"
)

var engagementMultipliers = map[EngagementType]decimal.Decimal{
	EngagementTypeImpression:  decimal.RequireFromString("1.0"),
	EngagementTypeView:        decimal.RequireFromString("1.2"),
	EngagementTypeClick:       decimal.RequireFromString("1.5"),
	EngagementTypeInteraction: decimal.RequireFromString("1.8"),
	EngagementTypeCompletion:  decimal.RequireFromString("2.0"),
}

// RewardMultiplier returns the ticket multiplier for the engagement type; unknown types earn nothing.
func (t EngagementType) RewardMultiplier() decimal.Decimal {
	if m, ok := engagementMultipliers[t]; ok {
		return m
	}
	return decimal.Zero
}

func (t EngagementType) IsValid() bool {
	_, ok := engagementMultipliers[t]
	return ok
}

type EngagementStatus string

const (
	EngagementStatusStarted   EngagementStatus = "STARTED"
	EngagementStatusCompleted EngagementStatus = "COMPLETED"
	EngagementStatusAbandoned EngagementStatus = "ABANDONED"
)

type Engagement struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_engagement_user_ad,priority:1" json:"user_id"`
	AdvertisementID string           `gorm:"type:varchar(64);not null;uniqueIndex:idx_engagement_user_ad,priority:2" json:"advertisement_id"`
	Type            EngagementType   `gorm:"type:varchar(20);not null" json:"type"`
	Status          EngagementStatus `gorm:"type:varchar(20);not null" json:"status"`
	BaseTickets     int              `gorm:"not null;default:0" json:"base_tickets"`
	StartedAt       time.Time        `gorm:"not null" json:"started_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *Engagement) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (e *Engagement) EntityName() string { return "engagements" }
func (e *Engagement) EntityID() string   { return e.ID.String() }

// EngagementStartRequest names the advertisement only. Type and base tickets
// come from the advertisement record.
type EngagementStartRequest struct {
	AdvertisementID string `json:"advertisement_id" validate:"required,max=64"`
}

type AdvertisementStatus string

const (
	AdvertisementStatusActive   AdvertisementStatus = "ACTIVE"
	AdvertisementStatusInactive AdvertisementStatus = "INACTIVE"
)

// Advertisement is the server side catalogue entry an engagement is started
// against. It fixes the engagement type and how many tickets it is worth.
type Advertisement struct {
	ID          string              `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name        string              `gorm:"type:varchar(255);not null" json:"name"`
	Type        EngagementType      `gorm:"type:varchar(20);not null" json:"type"`
	BaseTickets int                 `gorm:"not null;default:0" json:"base_tickets"`
	Status      AdvertisementStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Advertisement) EntityName() string { return "advertisements" }
func (a *Advertisement) EntityID() string   { return a.ID }

func (a *Advertisement) IsActive() bool {
	return a.Status == AdvertisementStatusActive
}

type AdvertisementCreateRequest struct {
	ID          string         `json:"id" validate:"required,max=64"`
	Name        string         `json:"name" validate:"required,max=255"`
	Type        EngagementType `json:"type" validate:"required,oneof=IMPRESSION VIEW CLICK INTERACTION COMPLETION"`
	BaseTickets int            `json:"base_tickets" validate:"min=0,max=10"`
}

type AdvertisementStatusUpdateRequest struct {
	Status AdvertisementStatus `json:"status" validate:"required,oneof=ACTIVE INACTIVE"`
}
