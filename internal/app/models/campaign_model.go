package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CampaignStatus string

const (
	CampaignStatusDraft  CampaignStatus = "DRAFT"
	CampaignStatusActive CampaignStatus = "ACTIVE"
	CampaignStatusPaused CampaignStatus = "PAUSED"
	CampaignStatusEnded  CampaignStatus = "ENDED"
)

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusDraft:  {CampaignStatusActive, CampaignStatusEnded},
	CampaignStatusActive: {CampaignStatusPaused, CampaignStatusEnded},
	CampaignStatusPaused: {CampaignStatusActive, CampaignStatusEnded},
}

func (s CampaignStatus) CanTransitionTo(target CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Campaign ids are numeric because they are embedded into QR tokens.
type Campaign struct {
	ID                   int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                 string             `gorm:"type:varchar(255);not null" json:"name"`
	Description          *string            `gorm:"type:text" json:"description,omitempty"`
	DiscountAmount       *decimal.Decimal   `gorm:"type:decimal(18,2)" json:"discount_amount,omitempty"`
	DiscountPercentage   *decimal.Decimal   `gorm:"type:decimal(5,2)" json:"discount_percentage,omitempty"`
	DefaultRaffleTickets int                `gorm:"not null;default:0" json:"default_raffle_tickets"`
	MaxCoupons           int                `gorm:"not null" json:"max_coupons"`
	MaxUsesPerCoupon     int                `gorm:"not null;default:1" json:"max_uses_per_coupon"`
	MaxUsesPerUser       *int               `json:"max_uses_per_user,omitempty"`
	Rules                ApplicabilityRules `gorm:"embedded;embeddedPrefix:rule_" json:"rules"`
	ValidFrom            time.Time          `gorm:"not null" json:"valid_from"`
	ValidUntil           time.Time          `gorm:"not null" json:"valid_until"`
	Status               CampaignStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedBy            *uuid.UUID         `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt            time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Campaign) EntityName() string { return "campaigns" }
func (c *Campaign) EntityID() string   { return strconv.FormatInt(c.ID, 10) }

func (c *Campaign) Discount() (Discount, error) {
	return NewDiscount(c.DiscountAmount, c.DiscountPercentage)
}

func (c *Campaign) SetDiscount(d Discount) {
	c.DiscountAmount = d.Amount()
	c.DiscountPercentage = d.Percentage()
}

// AllowsRedemption reports whether coupons of the campaign may currently be redeemed.
func (c *Campaign) AllowsRedemption() bool {
	return c.Status == CampaignStatusActive
}

// CampaignStats is computed with count queries on demand rather than kept as
// counters on the campaign row.
type CampaignStats struct {
	CampaignID       int64 `json:"campaign_id"`
	CouponsIssued    int64 `json:"coupons_issued"`
	CouponsActive    int64 `json:"coupons_active"`
	CouponsUsedUp    int64 `json:"coupons_used_up"`
	TotalUses        int64 `json:"total_uses"`
	RedemptionsCount int64 `json:"redemptions_count"`
}

type CampaignCreateRequest struct {
	Name                 string             `json:"name" validate:"required,max=255"`
	Description          *string            `json:"description,omitempty" validate:"omitempty,max=1000"`
	DiscountAmount       *decimal.Decimal   `json:"discount_amount,omitempty"`
	DiscountPercentage   *decimal.Decimal   `json:"discount_percentage,omitempty"`
	DefaultRaffleTickets int                `json:"default_raffle_tickets" validate:"min=0"`
	MaxCoupons           int                `json:"max_coupons" validate:"required,min=1"`
	MaxUsesPerCoupon     int                `json:"max_uses_per_coupon" validate:"required,min=1"`
	MaxUsesPerUser       *int               `json:"max_uses_per_user,omitempty" validate:"omitempty,min=1"`
	Rules                ApplicabilityRules `json:"rules"`
	ValidFrom            time.Time          `json:"valid_from" validate:"required"`
	ValidUntil           time.Time          `json:"valid_until" validate:"required"`
	CreatedBy            *uuid.UUID         `json:"created_by,omitempty"`
}

type CampaignStatusUpdateRequest struct {
	Status CampaignStatus `json:"status" validate:"required,oneof=DRAFT ACTIVE PAUSED ENDED"`
}

type CouponGenerateRequest struct {
	Count int `json:"count" validate:"required,min=1,max=10000"`
}
