package services

import (
	"context"

	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/safatanc/gsalt-rewards/pkg/qrtoken"
	"github.com/safatanc/gsalt-rewards/pkg/signature"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	couponCodeLength      = 10
	couponInsertBatchSize = 200
)

type CampaignService struct {
	db        *gorm.DB
	validator *infrastructures.Validator
	codec     *signature.Codec
	audit     *AuditService
	now       pkg.Clock
}

func NewCampaignService(db *gorm.DB, validator *infrastructures.Validator, codec *signature.Codec, audit *AuditService) *CampaignService {
	return &CampaignService{
		db:        db,
		validator: validator,
		codec:     codec,
		audit:     audit,
		now:       pkg.SystemClock,
	}
}

func (s *CampaignService) CreateCampaign(ctx context.Context, req *models.CampaignCreateRequest) (*models.Campaign, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	discount, err := models.NewDiscount(req.DiscountAmount, req.DiscountPercentage)
	if err != nil {
		return nil, err
	}
	if err := req.Rules.Validate(); err != nil {
		return nil, errors.NewBadRequestError(err.Error())
	}
	if req.ValidUntil.Before(req.ValidFrom) {
		return nil, errors.NewBadRequestError("Campaign validity window ends before it starts")
	}

	campaign := &models.Campaign{
		Name:                 req.Name,
		Description:          req.Description,
		DefaultRaffleTickets: req.DefaultRaffleTickets,
		MaxCoupons:           req.MaxCoupons,
		MaxUsesPerCoupon:     req.MaxUsesPerCoupon,
		MaxUsesPerUser:       req.MaxUsesPerUser,
		Rules:                req.Rules,
		ValidFrom:            req.ValidFrom.UTC(),
		ValidUntil:           req.ValidUntil.UTC(),
		Status:               models.CampaignStatusDraft,
		CreatedBy:            req.CreatedBy,
	}
	campaign.SetDiscount(discount)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(campaign).Error; err != nil {
			return errors.NewInternalServerError(err, "Failed to create campaign")
		}
		if campaign.ID > qrtoken.MaxCampaignID {
			return errors.NewConflictError("CAMPAIGN_ID_EXHAUSTED", "Campaign id no longer fits the QR token format")
		}
		return s.audit.LogAudit(tx, campaign, models.AuditActionCreate, nil, campaign, req.CreatedBy)
	})
	if err != nil {
		return nil, err
	}

	return campaign, nil
}

func (s *CampaignService) GetCampaign(campaignID int64) (*models.Campaign, error) {
	var campaign models.Campaign
	err := s.db.Where("id = ?", campaignID).First(&campaign).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("Campaign not found")
		}
		return nil, errors.NewInternalServerError(err, "Failed to get campaign")
	}

	return &campaign, nil
}

func (s *CampaignService) GetCampaigns(pagination *models.PaginationRequest, status *models.CampaignStatus) (*models.Pagination[[]models.Campaign], error) {
	offset := normalizePagination(pagination)

	countQuery := s.db.Model(&models.Campaign{})
	if status != nil {
		countQuery = countQuery.Where("status = ?", *status)
	}

	var totalItems int64
	if err := countQuery.Count(&totalItems).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to count campaigns")
	}

	var campaigns []models.Campaign
	query := s.db.Order("created_at DESC").Limit(pagination.Limit).Offset(offset)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if err := query.Find(&campaigns).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get campaigns")
	}

	return paginate(pagination, totalItems, campaigns), nil
}

func (s *CampaignService) UpdateCampaignStatus(ctx context.Context, campaignID int64, req *models.CampaignStatusUpdateRequest) (*models.Campaign, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	campaign, err := s.GetCampaign(campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.CanTransitionTo(req.Status) {
		return nil, errors.NewConflictError("INVALID_CAMPAIGN_STATUS_TRANSITION",
			"Campaign cannot move from "+string(campaign.Status)+" to "+string(req.Status))
	}

	from := campaign.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Campaign{}).
			Where("id = ? AND status = ?", campaign.ID, from).
			Update("status", req.Status)
		if res.Error != nil {
			return errors.NewInternalServerError(res.Error, "Failed to update campaign status")
		}
		if res.RowsAffected == 0 {
			return errors.ErrConcurrentModification
		}
		campaign.Status = req.Status
		return s.audit.LogStatusChange(tx, campaign, string(from), string(req.Status), nil, nil, nil)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"from_status": from,
		"to_status":   campaign.Status,
	}).Info("Campaign status changed")

	return campaign, nil
}

// GenerateCoupons mints count signed coupons carrying the campaign defaults.
func (s *CampaignService) GenerateCoupons(ctx context.Context, campaignID int64, req *models.CouponGenerateRequest) ([]models.Coupon, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var coupons []models.Coupon
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var campaign models.Campaign
		if err := lockForUpdate(tx).Where("id = ?", campaignID).First(&campaign).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewNotFoundError("Campaign not found")
			}
			return errors.NewInternalServerError(err, "Failed to get campaign")
		}
		if campaign.Status == models.CampaignStatusEnded {
			return errors.NewConflictError("CAMPAIGN_ENDED", "Cannot generate coupons for an ended campaign")
		}

		var issued int64
		if err := tx.Model(&models.Coupon{}).Where("campaign_id = ?", campaign.ID).Count(&issued).Error; err != nil {
			return errors.NewInternalServerError(err, "Failed to count coupons")
		}
		if int(issued)+req.Count > campaign.MaxCoupons {
			return errors.NewConflictError("CAMPAIGN_COUPON_LIMIT",
				"Generating these coupons would exceed the campaign coupon limit")
		}

		coupons = make([]models.Coupon, 0, req.Count)
		for i := 0; i < req.Count; i++ {
			coupon, err := s.newCoupon(&campaign)
			if err != nil {
				return err
			}
			coupons = append(coupons, *coupon)
		}

		if err := tx.CreateInBatches(&coupons, couponInsertBatchSize).Error; err != nil {
			return errors.NewInternalServerError(err, "Failed to create coupons")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"campaign_id": campaignID,
		"count":       len(coupons),
	}).Info("Coupons generated")

	return coupons, nil
}

func (s *CampaignService) newCoupon(campaign *models.Campaign) (*models.Coupon, error) {
	code, err := pkg.RandomCode(couponCodeLength)
	if err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to generate coupon code")
	}

	coupon := &models.Coupon{
		CampaignID:         campaign.ID,
		Code:               code,
		DiscountAmount:     campaign.DiscountAmount,
		DiscountPercentage: campaign.DiscountPercentage,
		RaffleTickets:      campaign.DefaultRaffleTickets,
		ValidFrom:          campaign.ValidFrom,
		ValidUntil:         campaign.ValidUntil,
		MaxUses:            campaign.MaxUsesPerCoupon,
		MaxUsesPerUser:     campaign.MaxUsesPerUser,
		Rules:              campaign.Rules,
		Status:             models.CouponStatusActive,
	}
	if err := issueToken(s.codec, coupon, s.now()); err != nil {
		return nil, err
	}
	return coupon, nil
}

// GetCampaignStats derives usage figures from the coupon and redemption tables.
func (s *CampaignService) GetCampaignStats(campaignID int64) (*models.CampaignStats, error) {
	if _, err := s.GetCampaign(campaignID); err != nil {
		return nil, err
	}

	stats := &models.CampaignStats{CampaignID: campaignID}
	coupons := func() *gorm.DB { return s.db.Model(&models.Coupon{}).Where("campaign_id = ?", campaignID) }

	if err := coupons().Count(&stats.CouponsIssued).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to count coupons")
	}
	if err := coupons().Where("status = ?", models.CouponStatusActive).Count(&stats.CouponsActive).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to count active coupons")
	}
	if err := coupons().Where("status = ?", models.CouponStatusUsedUp).Count(&stats.CouponsUsedUp).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to count used up coupons")
	}
	if err := coupons().Select("COALESCE(SUM(current_uses), 0)").Scan(&stats.TotalUses).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to sum coupon uses")
	}
	if err := s.db.Model(&models.Redemption{}).
		Where("campaign_id = ? AND status = ?", campaignID, models.RedemptionStatusCompleted).
		Count(&stats.RedemptionsCount).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to count redemptions")
	}

	return stats, nil
}
