package models

// Validation error codes reported to the caller. Several can be present at once.
const (
	ValidationCouponNotFound     = "COUPON_NOT_FOUND"
	ValidationInvalidTokenFormat = "INVALID_TOKEN_FORMAT"
	ValidationInvalidSignature   = "INVALID_SIGNATURE"
	ValidationTokenSuperseded    = "TOKEN_SUPERSEDED"
	ValidationTokenExpired       = "TOKEN_EXPIRED"
	ValidationCouponNotActive    = "COUPON_NOT_ACTIVE"
	ValidationCouponNotYetValid  = "COUPON_NOT_YET_VALID"
	ValidationCouponExpired      = "COUPON_EXPIRED"
	ValidationCampaignNotActive  = "CAMPAIGN_NOT_ACTIVE"
	ValidationStationExcluded    = "STATION_EXCLUDED"
	ValidationStationNotAllowed  = "STATION_NOT_ALLOWED"
	ValidationFuelTypeNotAllowed = "FUEL_TYPE_NOT_ALLOWED"
	ValidationPurchaseBelowMin   = "PURCHASE_BELOW_MINIMUM"
	ValidationPurchaseAboveMax   = "PURCHASE_ABOVE_MAXIMUM"
	ValidationOutsideTimeRange   = "OUTSIDE_TIME_RANGE"
)

// ValidationResult is the outcome of validating a presented coupon token.
// Coupon is nil only when the coupon could not be found.
type ValidationResult struct {
	IsValid   bool     `json:"is_valid"`
	CanBeUsed bool     `json:"can_be_used"`
	Coupon    *Coupon  `json:"coupon,omitempty"`
	Errors    []string `json:"errors"`
}

func (r *ValidationResult) HasError(code string) bool {
	for _, c := range r.Errors {
		if c == code {
			return true
		}
	}
	return false
}
