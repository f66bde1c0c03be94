package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/pkg/signature"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CouponStatus string

const (
	CouponStatusActive    CouponStatus = "ACTIVE"
	CouponStatusUsedUp    CouponStatus = "USED_UP"
	CouponStatusExpired   CouponStatus = "EXPIRED"
	CouponStatusCancelled CouponStatus = "CANCELLED"
	CouponStatusInactive  CouponStatus = "INACTIVE"
)

var couponTransitions = map[CouponStatus][]CouponStatus{
	CouponStatusActive:   {CouponStatusInactive, CouponStatusUsedUp, CouponStatusExpired, CouponStatusCancelled},
	CouponStatusInactive: {CouponStatusActive, CouponStatusExpired, CouponStatusCancelled},
	CouponStatusUsedUp:   {CouponStatusCancelled},
	CouponStatusExpired:  {CouponStatusCancelled},
}

func (s CouponStatus) CanTransitionTo(target CouponStatus) bool {
	for _, allowed := range couponTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s CouponStatus) IsTerminal() bool {
	return s == CouponStatusCancelled
}

type Coupon struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	CampaignID         int64              `gorm:"not null;index" json:"campaign_id"`
	Code               string             `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	QRToken            string             `gorm:"type:varchar(255);not null;index" json:"qr_token"`
	Signature          string             `gorm:"type:varchar(128);not null" json:"-"`
	DiscountAmount     *decimal.Decimal   `gorm:"type:decimal(18,2)" json:"discount_amount,omitempty"`
	DiscountPercentage *decimal.Decimal   `gorm:"type:decimal(5,2)" json:"discount_percentage,omitempty"`
	RaffleTickets      int                `gorm:"not null;default:0" json:"raffle_tickets"`
	ValidFrom          time.Time          `gorm:"not null" json:"valid_from"`
	ValidUntil         time.Time          `gorm:"not null;index" json:"valid_until"`
	CurrentUses        int                `gorm:"not null;default:0" json:"current_uses"`
	MaxUses            int                `gorm:"not null;default:1" json:"max_uses"`
	MaxUsesPerUser     *int               `json:"max_uses_per_user,omitempty"`
	Rules              ApplicabilityRules `gorm:"embedded;embeddedPrefix:rule_" json:"rules"`
	Status             CouponStatus       `gorm:"type:varchar(20);not null;index" json:"status"`
	Version            int64              `gorm:"not null;default:0" json:"version"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *Coupon) EntityName() string { return "coupons" }
func (c *Coupon) EntityID() string   { return c.ID.String() }

func (c *Coupon) Discount() (Discount, error) {
	return NewDiscount(c.DiscountAmount, c.DiscountPercentage)
}

func (c *Coupon) SetDiscount(d Discount) {
	c.DiscountAmount = d.Amount()
	c.DiscountPercentage = d.Percentage()
}

func (c *Coupon) HasRemainingUses() bool {
	return c.CurrentUses < c.MaxUses
}

func (c *Coupon) IsWithinValidity(now time.Time) bool {
	return !now.Before(c.ValidFrom) && !now.After(c.ValidUntil)
}

// SignatureFields returns the signed attributes for the presented token.
func (c *Coupon) SignatureFields(token string) signature.Fields {
	return signature.Fields{
		Token:              token,
		Code:               c.Code,
		CampaignID:         c.CampaignID,
		ValidFrom:          c.ValidFrom,
		ValidUntil:         c.ValidUntil,
		RaffleTickets:      c.RaffleTickets,
		DiscountAmount:     c.DiscountAmount,
		DiscountPercentage: c.DiscountPercentage,
	}
}

// StatusAfterUse is the status the coupon takes once one more use is recorded.
func (c *Coupon) StatusAfterUse() CouponStatus {
	if c.CurrentUses+1 >= c.MaxUses {
		return CouponStatusUsedUp
	}
	return c.Status
}

// CouponTokenRevision keeps a token that RefreshToken replaced, so a
// presented old token is reported as superseded rather than forged.
type CouponTokenRevision struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CouponID     uuid.UUID `gorm:"type:uuid;not null;index" json:"coupon_id"`
	QRToken      string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"qr_token"`
	SupersededAt time.Time `gorm:"not null" json:"superseded_at"`
}

type CouponStatusUpdateRequest struct {
	Status CouponStatus `json:"status" validate:"required,oneof=ACTIVE INACTIVE CANCELLED"`
	Reason *string      `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type CouponValidateRequest struct {
	Token          string           `json:"token" validate:"required,max=255"`
	StationID      string           `json:"station_id" validate:"required,max=64"`
	FuelType       *string          `json:"fuel_type,omitempty" validate:"omitempty,max=32"`
	PurchaseAmount *decimal.Decimal `json:"purchase_amount,omitempty"`
}
