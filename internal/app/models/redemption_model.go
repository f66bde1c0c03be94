package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RedemptionStatus string

const (
	RedemptionStatusCompleted RedemptionStatus = "COMPLETED"
	RedemptionStatusVoided    RedemptionStatus = "VOIDED"
)

type Redemption struct {
	ID                   uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	CouponID             uuid.UUID        `gorm:"type:uuid;not null;index" json:"coupon_id"`
	CampaignID           int64            `gorm:"not null;index" json:"campaign_id"`
	StationID            string           `gorm:"type:varchar(64);not null" json:"station_id"`
	EmployeeID           *string          `gorm:"type:varchar(64)" json:"employee_id,omitempty"`
	FuelType             *string          `gorm:"type:varchar(32)" json:"fuel_type,omitempty"`
	PurchaseAmount       decimal.Decimal  `gorm:"type:decimal(18,2);not null" json:"purchase_amount"`
	DiscountApplied      decimal.Decimal  `gorm:"type:decimal(18,2);not null" json:"discount_applied"`
	Status               RedemptionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	TransactionReference string           `gorm:"type:varchar(255);not null;uniqueIndex" json:"transaction_reference"`
	RedeemedAt           time.Time        `gorm:"not null" json:"redeemed_at"`
	VoidedAt             *time.Time       `json:"voided_at,omitempty"`
	VoidReason           *string          `gorm:"type:text" json:"void_reason,omitempty"`
	CreatedAt            time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Redemption) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *Redemption) EntityName() string { return "redemptions" }
func (r *Redemption) EntityID() string   { return r.ID.String() }

// RedemptionContext describes the point-of-sale circumstances of a redemption.
type RedemptionContext struct {
	UserID               uuid.UUID       `json:"user_id" validate:"required"`
	Token                string          `json:"token" validate:"required,max=255"`
	StationID            string          `json:"station_id" validate:"required,max=64"`
	EmployeeID           *string         `json:"employee_id,omitempty" validate:"omitempty,max=64"`
	FuelType             *string         `json:"fuel_type,omitempty" validate:"omitempty,max=32"`
	PurchaseAmount       decimal.Decimal `json:"purchase_amount"`
	TransactionReference string          `json:"transaction_reference" validate:"required,max=255"`
}

type RedemptionRequest struct {
	CouponID             string          `json:"coupon_id" validate:"required,uuid"`
	Token                string          `json:"token" validate:"required,max=255"`
	StationID            string          `json:"station_id" validate:"required,max=64"`
	EmployeeID           *string         `json:"employee_id,omitempty" validate:"omitempty,max=64"`
	FuelType             *string         `json:"fuel_type,omitempty" validate:"omitempty,max=32"`
	PurchaseAmount       decimal.Decimal `json:"purchase_amount"`
	TransactionReference string          `json:"transaction_reference" validate:"required,max=255"`
}

type RedemptionVoidRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// RedemptionOutcome is what a successful redeem hands back to the caller.
type RedemptionOutcome struct {
	Redemption *Redemption     `json:"redemption"`
	Coupon     *Coupon         `json:"coupon"`
	Tickets    []*RaffleTicket `json:"tickets"`
	Replayed   bool            `json:"replayed"`
}

// ToContext binds the request to the authenticated user.
func (r *RedemptionRequest) ToContext(userID uuid.UUID) *RedemptionContext {
	return &RedemptionContext{
		UserID:               userID,
		Token:                r.Token,
		StationID:            r.StationID,
		EmployeeID:           r.EmployeeID,
		FuelType:             r.FuelType,
		PurchaseAmount:       r.PurchaseAmount,
		TransactionReference: r.TransactionReference,
	}
}
