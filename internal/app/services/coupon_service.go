package services

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/events"
	"github.com/safatanc/gsalt-rewards/internal/app/metrics"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/safatanc/gsalt-rewards/pkg/qrtoken"
	"github.com/safatanc/gsalt-rewards/pkg/signature"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	ErrCodeCouponExhausted       = "COUPON_EXHAUSTED"
	ErrCodeCouponNotUsable       = "COUPON_NOT_USABLE"
	ErrCodeCouponTokenMismatch   = "COUPON_TOKEN_MISMATCH"
	ErrCodeInvalidCouponStatus   = "INVALID_COUPON_STATUS_TRANSITION"
	ErrCodeCouponTokenNotRenewed = "COUPON_TOKEN_NOT_RENEWABLE"
)

// errUsageConflict marks a lost compare-and-swap; it is the only failure the
// usage path retries.
var errUsageConflict = stderrors.New("coupon usage version conflict")

// UsageHook runs inside the transaction that records a coupon use, after the
// counter has been incremented. Returning an error rolls the use back.
type UsageHook func(tx *gorm.DB, coupon *models.Coupon) error

type CouponService struct {
	db        *gorm.DB
	validator *infrastructures.Validator
	coupons   *CouponValidator
	codec     *signature.Codec
	audit     *AuditService
	outbox    *events.Outbox
	retries   uint64
	now       pkg.Clock
}

func NewCouponService(
	db *gorm.DB,
	validator *infrastructures.Validator,
	coupons *CouponValidator,
	codec *signature.Codec,
	audit *AuditService,
	outbox *events.Outbox,
	cfg infrastructures.RewardsConfig,
) *CouponService {
	return &CouponService{
		db:        db,
		validator: validator,
		coupons:   coupons,
		codec:     codec,
		audit:     audit,
		outbox:    outbox,
		retries:   cfg.UsageConflictRetries,
		now:       pkg.SystemClock,
	}
}

func (s *CouponService) GetCoupon(couponID string) (*models.Coupon, error) {
	couponUUID, err := uuid.Parse(couponID)
	if err != nil {
		return nil, errors.NewBadRequestError("Invalid coupon ID format")
	}
	return s.getCoupon(s.db, couponUUID)
}

func (s *CouponService) getCoupon(db *gorm.DB, couponID uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	err := db.Where("id = ?", couponID).First(&coupon).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("Coupon not found")
		}
		return nil, errors.NewInternalServerError(err, "Failed to get coupon")
	}

	return &coupon, nil
}

func (s *CouponService) GetCouponByCode(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.Where("code = ?", code).First(&coupon).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("Coupon not found")
		}
		return nil, errors.NewInternalServerError(err, "Failed to get coupon")
	}

	return &coupon, nil
}

func (s *CouponService) GetCoupons(pagination *models.PaginationRequest, campaignID *int64, status *models.CouponStatus) (*models.Pagination[[]models.Coupon], error) {
	offset := normalizePagination(pagination)

	filter := func(q *gorm.DB) *gorm.DB {
		if campaignID != nil {
			q = q.Where("campaign_id = ?", *campaignID)
		}
		if status != nil {
			q = q.Where("status = ?", *status)
		}
		return q
	}

	var totalItems int64
	if err := filter(s.db.Model(&models.Coupon{})).Count(&totalItems).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to count coupons")
	}

	var coupons []models.Coupon
	if err := filter(s.db.Order("created_at DESC")).Limit(pagination.Limit).Offset(offset).Find(&coupons).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get coupons")
	}

	return paginate(pagination, totalItems, coupons), nil
}

// ValidateCoupon is the read-only check exposed to the point of sale.
func (s *CouponService) ValidateCoupon(ctx context.Context, req *models.CouponValidateRequest) (*models.ValidationResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return s.coupons.Validate(ctx, ValidationInput{
		Token:          req.Token,
		StationID:      req.StationID,
		FuelType:       req.FuelType,
		PurchaseAmount: req.PurchaseAmount,
	})
}

// Use records one use of the coupon.
func (s *CouponService) Use(ctx context.Context, couponID uuid.UUID, in ValidationInput) (*models.Coupon, error) {
	return s.UseWith(ctx, couponID, in, nil)
}

// UseWith re-validates the coupon and increments its usage counter with a
// version checked update, moving it to USED_UP in the same statement when the
// last use is taken. A lost race is retried a bounded number of times by
// re-fetching and re-validating; every other failure is returned as is.
func (s *CouponService) UseWith(ctx context.Context, couponID uuid.UUID, in ValidationInput, hook UsageHook) (*models.Coupon, error) {
	var used *models.Coupon

	attempt := func() error {
		coupon, err := s.usableCoupon(ctx, couponID, in)
		if err != nil {
			return backoff.Permanent(err)
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.recordUse(tx, coupon); err != nil {
				return err
			}
			if hook != nil {
				if err := hook(tx, coupon); err != nil {
					return err
				}
			}
			used = coupon
			return nil
		})
		if stderrors.Is(err, errUsageConflict) {
			metrics.RecordUsageConflict()
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	policy.MaxInterval = 100 * time.Millisecond
	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, s.retries), ctx))
	if stderrors.Is(err, errUsageConflict) {
		logrus.WithField("coupon_id", couponID).Warn("Coupon usage retries exhausted")
		return nil, errors.ErrConcurrentModification
	}
	if err != nil {
		return nil, err
	}

	s.outbox.Notify(ctx)
	return used, nil
}

// usableCoupon runs the full validation and turns any failure into the
// error a caller of Use expects.
func (s *CouponService) usableCoupon(ctx context.Context, couponID uuid.UUID, in ValidationInput) (*models.Coupon, error) {
	result, err := s.coupons.Validate(ctx, in)
	if err != nil {
		return nil, err
	}
	if result.Coupon == nil {
		return nil, errors.NewNotFoundError("Coupon not found")
	}
	if result.Coupon.ID != couponID {
		return nil, errors.NewBadRequestError("QR token does not belong to this coupon").WithCode(ErrCodeCouponTokenMismatch)
	}
	if result.Coupon.Status == models.CouponStatusUsedUp || !result.Coupon.HasRemainingUses() {
		return nil, errors.NewConflictError(ErrCodeCouponExhausted, "Coupon has no remaining uses")
	}
	if !result.CanBeUsed {
		return nil, errors.NewConflictError(ErrCodeCouponNotUsable, "Coupon cannot be used: "+strings.Join(result.Errors, ", "))
	}
	return result.Coupon, nil
}

// recordUse is the compare-and-swap. Zero affected rows means another
// writer got there first.
func (s *CouponService) recordUse(tx *gorm.DB, coupon *models.Coupon) error {
	now := s.now()
	from := coupon.Status
	to := coupon.StatusAfterUse()

	res := tx.Model(&models.Coupon{}).
		Where("id = ? AND version = ? AND current_uses < max_uses", coupon.ID, coupon.Version).
		Updates(map[string]any{
			"current_uses": gorm.Expr("current_uses + 1"),
			"version":      gorm.Expr("version + 1"),
			"status":       to,
			"updated_at":   now,
		})
	if res.Error != nil {
		return errors.NewInternalServerError(res.Error, "Failed to record coupon use")
	}
	if res.RowsAffected == 0 {
		return errUsageConflict
	}

	coupon.CurrentUses++
	coupon.Version++
	coupon.Status = to
	coupon.UpdatedAt = now

	if from == to {
		return nil
	}
	if err := s.audit.LogStatusChange(tx, coupon, string(from), string(to), nil, nil, nil); err != nil {
		return err
	}
	return s.outbox.Enqueue(tx, statusEvent(coupon, from, to, now))
}

// UpdateStatus applies an administrative status change.
func (s *CouponService) UpdateStatus(ctx context.Context, couponID string, req *models.CouponStatusUpdateRequest, actor *uuid.UUID) (*models.Coupon, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	coupon, err := s.GetCoupon(couponID)
	if err != nil {
		return nil, err
	}
	if !coupon.Status.CanTransitionTo(req.Status) {
		return nil, errors.NewConflictError(ErrCodeInvalidCouponStatus,
			"Coupon cannot move from "+string(coupon.Status)+" to "+string(req.Status))
	}

	return s.transition(ctx, coupon, req.Status, req.Reason, actor)
}

func (s *CouponService) Activate(ctx context.Context, couponID string, actor *uuid.UUID) (*models.Coupon, error) {
	return s.UpdateStatus(ctx, couponID, &models.CouponStatusUpdateRequest{Status: models.CouponStatusActive}, actor)
}

func (s *CouponService) Deactivate(ctx context.Context, couponID string, actor *uuid.UUID) (*models.Coupon, error) {
	return s.UpdateStatus(ctx, couponID, &models.CouponStatusUpdateRequest{Status: models.CouponStatusInactive}, actor)
}

func (s *CouponService) Cancel(ctx context.Context, couponID string, reason *string, actor *uuid.UUID) (*models.Coupon, error) {
	return s.UpdateStatus(ctx, couponID, &models.CouponStatusUpdateRequest{Status: models.CouponStatusCancelled, Reason: reason}, actor)
}

func (s *CouponService) transition(ctx context.Context, coupon *models.Coupon, to models.CouponStatus, reason *string, actor *uuid.UUID) (*models.Coupon, error) {
	now := s.now()
	from := coupon.Status

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Coupon{}).
			Where("id = ? AND version = ?", coupon.ID, coupon.Version).
			Updates(map[string]any{
				"status":     to,
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			})
		if res.Error != nil {
			return errors.NewInternalServerError(res.Error, "Failed to update coupon status")
		}
		if res.RowsAffected == 0 {
			return errors.ErrConcurrentModification
		}
		coupon.Status = to
		coupon.Version++
		coupon.UpdatedAt = now
		if err := s.audit.LogStatusChange(tx, coupon, string(from), string(to), reason, nil, actor); err != nil {
			return err
		}
		return s.outbox.Enqueue(tx, statusEvent(coupon, from, to, now))
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"coupon_id":   coupon.ID,
		"from_status": from,
		"to_status":   to,
	}).Info("Coupon status changed")

	s.outbox.Notify(ctx)
	return coupon, nil
}

// ExpireDue moves every ACTIVE or INACTIVE coupon whose validity window has
// ended to EXPIRED and returns how many were changed.
func (s *CouponService) ExpireDue(ctx context.Context) (int, error) {
	now := s.now()

	var due []models.Coupon
	if err := s.db.WithContext(ctx).
		Where("status IN ? AND valid_until < ?", []models.CouponStatus{models.CouponStatusActive, models.CouponStatusInactive}, now).
		Find(&due).Error; err != nil {
		return 0, errors.NewInternalServerError(err, "Failed to find expired coupons")
	}

	expired := 0
	for i := range due {
		coupon := &due[i]
		if _, err := s.transition(ctx, coupon, models.CouponStatusExpired, nil, nil); err != nil {
			if errors.HasCode(err, errors.CodeConcurrentModification) {
				continue
			}
			return expired, err
		}
		expired++
	}

	return expired, nil
}

// RefreshToken re-issues the QR token and signature with a fresh timestamp
// and salt so that a long lived coupon passes the staleness check again.
func (s *CouponService) RefreshToken(ctx context.Context, couponID string) (*models.Coupon, error) {
	coupon, err := s.GetCoupon(couponID)
	if err != nil {
		return nil, err
	}
	if coupon.Status != models.CouponStatusActive && coupon.Status != models.CouponStatusInactive {
		return nil, errors.NewConflictError(ErrCodeCouponTokenNotRenewed, "Only active or inactive coupons can get a new token")
	}

	now := s.now()
	previousVersion := coupon.Version
	previousToken := coupon.QRToken
	if err := issueToken(s.codec, coupon, now); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Coupon{}).
			Where("id = ? AND version = ?", coupon.ID, previousVersion).
			Updates(map[string]any{
				"qr_token":   coupon.QRToken,
				"signature":  coupon.Signature,
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			})
		if res.Error != nil {
			return errors.NewInternalServerError(res.Error, "Failed to refresh coupon token")
		}
		if res.RowsAffected == 0 {
			return errors.ErrConcurrentModification
		}

		revision := &models.CouponTokenRevision{
			CouponID:     coupon.ID,
			QRToken:      previousToken,
			SupersededAt: now,
		}
		if err := tx.Create(revision).Error; err != nil {
			return errors.NewInternalServerError(err, "Failed to record superseded token")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	coupon.Version++

	return coupon, nil
}

// issueToken stamps a new token and the matching signature on coupon.
func issueToken(codec *signature.Codec, coupon *models.Coupon, now time.Time) error {
	salt, err := pkg.RandomCode(qrtoken.SaltLength)
	if err != nil {
		return errors.NewInternalServerError(err, "Failed to generate token salt")
	}
	token, err := qrtoken.Build(coupon.CampaignID, now, salt, coupon.Code)
	if err != nil {
		return errors.NewInternalServerError(err, "Failed to build QR token")
	}

	coupon.QRToken = token
	coupon.Signature = codec.Sign(coupon.SignatureFields(token))
	return nil
}

func statusEvent(coupon *models.Coupon, from, to models.CouponStatus, at time.Time) models.Event {
	return models.NewEvent(models.RoutingCouponStatusChanged, coupon, at, map[string]any{
		"campaign_id": coupon.CampaignID,
		"from_status": from,
		"to_status":   to,
	})
}
