package services

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/events"
	"github.com/safatanc/gsalt-rewards/internal/app/metrics"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ErrCodeUserLimitReached       = "USER_LIMIT_REACHED"
	ErrCodeReferenceReused        = "TRANSACTION_REFERENCE_REUSED"
	ErrCodeRedemptionNotCompleted = "REDEMPTION_NOT_COMPLETED"
)

// errDuplicateReference aborts the usage transaction when a concurrent
// request already stored the same transaction reference.
var errDuplicateReference = stderrors.New("duplicate transaction reference")

type RedemptionService struct {
	db        *gorm.DB
	validator *infrastructures.Validator
	coupons   *CouponService
	issuance  *TicketIssuanceService
	audit     *AuditService
	outbox    *events.Outbox
	now       pkg.Clock
}

func NewRedemptionService(
	db *gorm.DB,
	validator *infrastructures.Validator,
	coupons *CouponService,
	issuance *TicketIssuanceService,
	audit *AuditService,
	outbox *events.Outbox,
) *RedemptionService {
	return &RedemptionService{
		db:        db,
		validator: validator,
		coupons:   coupons,
		issuance:  issuance,
		audit:     audit,
		outbox:    outbox,
		now:       pkg.SystemClock,
	}
}

// Redeem validates the presented coupon, records one use, stores the
// redemption and mints its raffle tickets in a single transaction. Repeating
// a request with the same transaction reference returns the stored outcome.
func (s *RedemptionService) Redeem(ctx context.Context, couponID uuid.UUID, rc *models.RedemptionContext) (outcome *models.RedemptionOutcome, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		switch {
		case err != nil && errors.IsConflict(err):
			status = "rejected"
		case err != nil:
			status = "failure"
		case outcome.Replayed:
			status = "replayed"
		}
		metrics.RecordRedeemDuration(status, time.Since(start).Seconds())
	}()

	if err := s.validator.Validate(rc); err != nil {
		return nil, err
	}
	if !rc.PurchaseAmount.IsPositive() {
		return nil, errors.NewBadRequestError("Purchase amount must be positive")
	}

	if existing, err := s.findByReference(s.db.WithContext(ctx), rc.TransactionReference); err != nil {
		return nil, err
	} else if existing != nil {
		return s.replay(existing, couponID, rc.UserID)
	}

	var redemption *models.Redemption
	var issued *models.IssuanceResult

	in := ValidationInput{
		Token:          rc.Token,
		StationID:      rc.StationID,
		FuelType:       rc.FuelType,
		PurchaseAmount: &rc.PurchaseAmount,
	}
	coupon, err := s.coupons.UseWith(ctx, couponID, in, func(tx *gorm.DB, coupon *models.Coupon) error {
		if err := s.checkUserLimit(tx, coupon, rc.UserID); err != nil {
			return err
		}

		discount, err := coupon.Discount()
		if err != nil {
			return err
		}

		now := s.now()
		redemption = &models.Redemption{
			UserID:               rc.UserID,
			CouponID:             coupon.ID,
			CampaignID:           coupon.CampaignID,
			StationID:            rc.StationID,
			EmployeeID:           rc.EmployeeID,
			FuelType:             rc.FuelType,
			PurchaseAmount:       rc.PurchaseAmount,
			DiscountApplied:      discount.ApplyTo(rc.PurchaseAmount),
			Status:               models.RedemptionStatusCompleted,
			TransactionReference: rc.TransactionReference,
			RedeemedAt:           now,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_reference"}},
			DoNothing: true,
		}).Create(redemption)
		if res.Error != nil {
			return errors.NewInternalServerError(res.Error, "Failed to create redemption")
		}
		if res.RowsAffected == 0 {
			return errDuplicateReference
		}

		issued, err = s.issuance.IssueFromRedemptionTx(tx, RedemptionTicketRequest{
			UserID:          rc.UserID,
			RedemptionID:    redemption.ID,
			PurchaseAmount:  redemption.PurchaseAmount,
			DiscountApplied: redemption.DiscountApplied,
			BaseTickets:     coupon.RaffleTickets,
		})
		if err != nil {
			return err
		}

		if err := s.audit.LogAudit(tx, redemption, models.AuditActionRedeem, nil, redemption, &rc.UserID); err != nil {
			return err
		}
		return s.outbox.Enqueue(tx, models.NewEvent(models.RoutingRedemptionCreated, redemption, redemption.RedeemedAt, map[string]any{
			"user_id":          redemption.UserID,
			"coupon_id":        redemption.CouponID,
			"campaign_id":      redemption.CampaignID,
			"station_id":       redemption.StationID,
			"purchase_amount":  redemption.PurchaseAmount,
			"discount_applied": redemption.DiscountApplied,
			"ticket_count":     len(issued.Tickets),
		}))
	})
	if stderrors.Is(err, errDuplicateReference) {
		existing, findErr := s.findByReference(s.db.WithContext(ctx), rc.TransactionReference)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, errors.ErrConcurrentModification
		}
		return s.replay(existing, couponID, rc.UserID)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"redemption_id":         redemption.ID,
		"coupon_id":             coupon.ID,
		"user_id":               rc.UserID,
		"station_id":            rc.StationID,
		"transaction_reference": rc.TransactionReference,
		"tickets":               len(issued.Tickets),
	}).Info("Coupon redeemed")

	return &models.RedemptionOutcome{
		Redemption: redemption,
		Coupon:     coupon,
		Tickets:    issued.Tickets,
	}, nil
}

// checkUserLimit runs inside the usage transaction. Every use bumps the
// coupon version, so two racing redemptions by one user cannot both pass.
func (s *RedemptionService) checkUserLimit(tx *gorm.DB, coupon *models.Coupon, userID uuid.UUID) error {
	if coupon.MaxUsesPerUser == nil {
		return nil
	}

	var used int64
	if err := tx.Model(&models.Redemption{}).
		Where("coupon_id = ? AND user_id = ?", coupon.ID, userID).
		Count(&used).Error; err != nil {
		return errors.NewInternalServerError(err, "Failed to count user redemptions")
	}
	if int(used) >= *coupon.MaxUsesPerUser {
		return errors.NewConflictError(ErrCodeUserLimitReached, "User has reached the usage limit for this coupon")
	}
	return nil
}

func (s *RedemptionService) findByReference(db *gorm.DB, reference string) (*models.Redemption, error) {
	var redemption models.Redemption
	err := db.Where("transaction_reference = ?", reference).First(&redemption).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get redemption")
	}
	return &redemption, nil
}

// replay rebuilds the outcome of an already stored redemption.
func (s *RedemptionService) replay(redemption *models.Redemption, couponID, userID uuid.UUID) (*models.RedemptionOutcome, error) {
	if redemption.CouponID != couponID || redemption.UserID != userID {
		return nil, errors.NewConflictError(ErrCodeReferenceReused, "Transaction reference was already used for another redemption")
	}

	coupon, err := s.coupons.getCoupon(s.db, redemption.CouponID)
	if err != nil {
		return nil, err
	}

	issued, err := s.issuance.GetIssuance(redemption.UserID, models.TicketSourceRedemption, redemption.ID.String())
	if err != nil {
		return nil, err
	}

	return &models.RedemptionOutcome{
		Redemption: redemption,
		Coupon:     coupon,
		Tickets:    issued.Tickets,
		Replayed:   true,
	}, nil
}

func (s *RedemptionService) GetRedemption(redemptionID string) (*models.Redemption, error) {
	redemptionUUID, err := uuid.Parse(redemptionID)
	if err != nil {
		return nil, errors.NewBadRequestError("Invalid redemption ID format")
	}

	var redemption models.Redemption
	err = s.db.Where("id = ?", redemptionUUID).First(&redemption).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("Redemption not found")
		}
		return nil, errors.NewInternalServerError(err, "Failed to get redemption")
	}

	return &redemption, nil
}

func (s *RedemptionService) GetRedemptionsByUser(userID uuid.UUID, pagination *models.PaginationRequest) (*models.Pagination[[]models.Redemption], error) {
	offset := normalizePagination(pagination)

	var totalItems int64
	if err := s.db.Model(&models.Redemption{}).Where("user_id = ?", userID).Count(&totalItems).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to count redemptions")
	}

	var redemptions []models.Redemption
	err := s.db.Where("user_id = ?", userID).
		Order("redeemed_at DESC").
		Limit(pagination.Limit).
		Offset(offset).
		Find(&redemptions).Error
	if err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get redemptions")
	}

	return paginate(pagination, totalItems, redemptions), nil
}

// Void marks a completed redemption as voided. The coupon use and the minted
// tickets are kept.
func (s *RedemptionService) Void(ctx context.Context, redemptionID string, req *models.RedemptionVoidRequest, actor *uuid.UUID) (*models.Redemption, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	redemption, err := s.GetRedemption(redemptionID)
	if err != nil {
		return nil, err
	}
	if redemption.Status != models.RedemptionStatusCompleted {
		return nil, errors.NewConflictError(ErrCodeRedemptionNotCompleted, "Only completed redemptions can be voided")
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Redemption{}).
			Where("id = ? AND status = ?", redemption.ID, models.RedemptionStatusCompleted).
			Updates(map[string]any{
				"status":      models.RedemptionStatusVoided,
				"voided_at":   now,
				"void_reason": req.Reason,
			})
		if res.Error != nil {
			return errors.NewInternalServerError(res.Error, "Failed to void redemption")
		}
		if res.RowsAffected == 0 {
			return errors.NewConflictError(ErrCodeRedemptionNotCompleted, "Redemption was changed concurrently")
		}

		redemption.Status = models.RedemptionStatusVoided
		redemption.VoidedAt = &now
		redemption.VoidReason = &req.Reason
		if err := s.audit.LogStatusChange(tx, redemption, string(models.RedemptionStatusCompleted), string(models.RedemptionStatusVoided), &req.Reason, nil, actor); err != nil {
			return err
		}
		return s.outbox.Enqueue(tx, models.NewEvent(models.RoutingRedemptionVoided, redemption, now, map[string]any{
			"coupon_id": redemption.CouponID,
			"user_id":   redemption.UserID,
			"reason":    req.Reason,
		}))
	})
	if err != nil {
		return nil, err
	}
	s.outbox.Notify(ctx)

	return redemption, nil
}
