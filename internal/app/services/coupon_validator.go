package services

import (
	"context"
	"time"

	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/metrics"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/safatanc/gsalt-rewards/pkg/qrtoken"
	"github.com/safatanc/gsalt-rewards/pkg/signature"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// ValidationError is one failed check. Several are combined with multierr.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Code + ": " + e.Message
}

func fail(code, message string) error {
	return &ValidationError{Code: code, Message: message}
}

// ValidationInput is what the point of sale presents for a coupon.
type ValidationInput struct {
	Token          string
	StationID      string
	FuelType       *string
	PurchaseAmount *decimal.Decimal
}

// CouponValidator runs every applicability, status, signature and expiry
// check against a presented token and reports all failures at once.
type CouponValidator struct {
	db     *gorm.DB
	codec  *signature.Codec
	audit  *AuditService
	maxAge time.Duration
	loc    *time.Location
	now    pkg.Clock
}

func NewCouponValidator(db *gorm.DB, codec *signature.Codec, audit *AuditService, cfg infrastructures.RewardsConfig) *CouponValidator {
	return &CouponValidator{
		db:     db,
		codec:  codec,
		audit:  audit,
		maxAge: cfg.TokenMaxAge,
		loc:    loadLocation(cfg.Timezone),
		now:    pkg.SystemClock,
	}
}

// loadLocation resolves the zone time-of-day rules are written in.
func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logrus.WithError(err).WithField("timezone", name).Warn("Unknown timezone, checking time ranges in UTC")
		return time.UTC
	}
	return loc
}

// Validate returns an error only for infrastructure failures; business
// failures are reported in the result.
func (v *CouponValidator) Validate(ctx context.Context, in ValidationInput) (*models.ValidationResult, error) {
	now := v.now()
	token, parseErr := qrtoken.Parse(in.Token)

	coupon, err := v.findCoupon(ctx, in.Token, token, parseErr == nil)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		metrics.RecordValidationFailure(models.ValidationCouponNotFound)
		return &models.ValidationResult{Errors: []string{models.ValidationCouponNotFound}}, nil
	}

	var errs error
	if parseErr != nil {
		errs = multierr.Append(errs, fail(models.ValidationInvalidTokenFormat, parseErr.Error()))
	}
	superseded, err := v.isSuperseded(ctx, coupon, in.Token)
	if err != nil {
		return nil, err
	}
	if superseded {
		errs = multierr.Append(errs, fail(models.ValidationTokenSuperseded, "QR token was replaced by a newer one"))
	} else {
		errs = multierr.Append(errs, v.checkSignature(ctx, coupon, in.Token))
	}
	if parseErr == nil && token.IsExpired(v.maxAge, now) {
		errs = multierr.Append(errs, fail(models.ValidationTokenExpired, "QR token is older than the allowed age"))
	}
	errs = multierr.Append(errs, checkStatus(coupon, now))

	campaign, err := v.findCampaign(ctx, coupon.CampaignID)
	if err != nil {
		return nil, err
	}
	errs = multierr.Append(errs, checkCampaign(campaign))
	errs = multierr.Append(errs, checkApplicability(coupon.Rules, in, now.In(v.loc)))

	result := &models.ValidationResult{
		Coupon: coupon,
		Errors: []string{},
	}
	for _, e := range multierr.Errors(errs) {
		if ve, ok := e.(*ValidationError); ok {
			result.Errors = append(result.Errors, ve.Code)
			metrics.RecordValidationFailure(ve.Code)
		}
	}
	result.IsValid = len(result.Errors) == 0
	result.CanBeUsed = result.IsValid && coupon.HasRemainingUses()

	return result, nil
}

// findCoupon looks the coupon up by the stored token first and falls back to
// the code embedded in a well formed token. A nil coupon means not found.
func (v *CouponValidator) findCoupon(ctx context.Context, raw string, token qrtoken.Token, parsed bool) (*models.Coupon, error) {
	var coupon models.Coupon
	err := v.db.WithContext(ctx).Where("qr_token = ?", raw).First(&coupon).Error
	if err == nil {
		return &coupon, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, errors.NewInternalServerError(err, "Failed to get coupon")
	}
	if !parsed {
		return nil, nil
	}

	err = v.db.WithContext(ctx).Where("code = ?", token.CouponCode).First(&coupon).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get coupon")
	}
	return &coupon, nil
}

// isSuperseded reports whether raw is a token this coupon carried before a refresh.
func (v *CouponValidator) isSuperseded(ctx context.Context, coupon *models.Coupon, raw string) (bool, error) {
	if raw == coupon.QRToken {
		return false, nil
	}

	var count int64
	err := v.db.WithContext(ctx).Model(&models.CouponTokenRevision{}).
		Where("coupon_id = ? AND qr_token = ?", coupon.ID, raw).
		Count(&count).Error
	if err != nil {
		return false, errors.NewInternalServerError(err, "Failed to check token history")
	}
	return count > 0, nil
}

func (v *CouponValidator) checkSignature(ctx context.Context, coupon *models.Coupon, raw string) error {
	if v.codec.Verify(coupon.SignatureFields(raw), coupon.Signature) {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"fraud_signal": true,
		"coupon_id":    coupon.ID,
		"campaign_id":  coupon.CampaignID,
		"token":        raw,
	}).Warn("Coupon signature mismatch")

	if err := v.audit.LogAudit(v.db.WithContext(ctx), coupon, models.AuditActionFraudAttempt, nil, map[string]any{"token": raw}, nil); err != nil {
		logrus.WithError(err).Error("Failed to record fraud attempt")
	}

	return fail(models.ValidationInvalidSignature, "Coupon signature does not match")
}

func (v *CouponValidator) findCampaign(ctx context.Context, campaignID int64) (*models.Campaign, error) {
	var campaign models.Campaign
	err := v.db.WithContext(ctx).Where("id = ?", campaignID).First(&campaign).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get campaign")
	}
	return &campaign, nil
}

func checkCampaign(campaign *models.Campaign) error {
	if campaign == nil {
		return fail(models.ValidationCampaignNotActive, "Campaign no longer exists")
	}
	if !campaign.AllowsRedemption() {
		return fail(models.ValidationCampaignNotActive, "Campaign is "+string(campaign.Status))
	}
	return nil
}

func checkStatus(coupon *models.Coupon, now time.Time) error {
	var errs error
	if coupon.Status != models.CouponStatusActive {
		errs = multierr.Append(errs, fail(models.ValidationCouponNotActive, "Coupon is "+string(coupon.Status)))
	}
	if now.Before(coupon.ValidFrom) {
		errs = multierr.Append(errs, fail(models.ValidationCouponNotYetValid, "Coupon is not yet valid"))
	}
	if now.After(coupon.ValidUntil) {
		errs = multierr.Append(errs, fail(models.ValidationCouponExpired, "Coupon has expired"))
	}
	return errs
}

func checkApplicability(rules models.ApplicabilityRules, in ValidationInput, now time.Time) error {
	var errs error

	allowed, excluded := rules.StationAllowed(in.StationID)
	switch {
	case excluded:
		errs = multierr.Append(errs, fail(models.ValidationStationExcluded, "Coupon cannot be used at this station"))
	case !allowed:
		errs = multierr.Append(errs, fail(models.ValidationStationNotAllowed, "Coupon is not valid at this station"))
	}

	if in.FuelType != nil && !rules.FuelTypeAllowed(*in.FuelType) {
		errs = multierr.Append(errs, fail(models.ValidationFuelTypeNotAllowed, "Coupon is not valid for this fuel type"))
	}

	if in.PurchaseAmount != nil {
		if rules.MinPurchase != nil && in.PurchaseAmount.LessThan(*rules.MinPurchase) {
			errs = multierr.Append(errs, fail(models.ValidationPurchaseBelowMin, "Purchase is below the minimum of "+rules.MinPurchase.StringFixed(2)))
		}
		if rules.MaxPurchase != nil && in.PurchaseAmount.GreaterThan(*rules.MaxPurchase) {
			errs = multierr.Append(errs, fail(models.ValidationPurchaseAboveMax, "Purchase is above the maximum of "+rules.MaxPurchase.StringFixed(2)))
		}
	}

	if !rules.WithinTimeRanges(now) {
		errs = multierr.Append(errs, fail(models.ValidationOutsideTimeRange, "Coupon is not valid at this time of day"))
	}

	return errs
}
