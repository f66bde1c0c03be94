// Package qrtoken builds and parses the scannable coupon token
//
//	PREFIX_VERSION_{campaignId:6}_{timestamp:14}_{salt:8}_{couponCode}
//
// for example GSL_v1_000123_20240101000000_ABCDEF12_PROMO1.
package qrtoken

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	Prefix          = "GSL"
	Version         = "v1"
	SaltLength      = 8
	DefaultMaxAge   = 24 * time.Hour
	MaxCampaignID   = 999999
	timestampLayout = "20060102150405"
	campaignDigits  = 6
	segmentCount    = 6
)

var (
	ErrMalformed        = errors.New("qrtoken: malformed token")
	ErrUnknownPrefix    = errors.New("qrtoken: unknown prefix")
	ErrUnknownVersion   = errors.New("qrtoken: unsupported version")
	ErrInvalidCampaign  = errors.New("qrtoken: invalid campaign id")
	ErrInvalidTimestamp = errors.New("qrtoken: invalid timestamp")
	ErrInvalidSalt      = errors.New("qrtoken: invalid salt")
	ErrInvalidCode      = errors.New("qrtoken: invalid coupon code")
)

// Token is the decoded form of a token string. IssuedAt is always UTC.
type Token struct {
	CampaignID int64
	IssuedAt   time.Time
	Salt       string
	CouponCode string
}

// Build encodes a token. The coupon code must not contain the separator.
func Build(campaignID int64, issuedAt time.Time, salt, couponCode string) (string, error) {
	t := Token{
		CampaignID: campaignID,
		IssuedAt:   issuedAt.UTC(),
		Salt:       salt,
		CouponCode: couponCode,
	}
	if err := t.validate(); err != nil {
		return "", err
	}
	return t.String(), nil
}

func (t Token) String() string {
	return strings.Join([]string{
		Prefix,
		Version,
		fmt.Sprintf("%0*d", campaignDigits, t.CampaignID),
		t.IssuedAt.UTC().Format(timestampLayout),
		t.Salt,
		t.CouponCode,
	}, "_")
}

// Parse decodes raw. Every structural deviation is reported as an error
// wrapping one of the package sentinels.
func Parse(raw string) (Token, error) {
	parts := strings.Split(raw, "_")
	if len(parts) != segmentCount {
		return Token{}, fmt.Errorf("%w: expected %d segments, got %d", ErrMalformed, segmentCount, len(parts))
	}
	if parts[0] != Prefix {
		return Token{}, fmt.Errorf("%w: %q", ErrUnknownPrefix, parts[0])
	}
	if parts[1] != Version {
		return Token{}, fmt.Errorf("%w: %q", ErrUnknownVersion, parts[1])
	}
	if len(parts[2]) != campaignDigits || !isDigits(parts[2]) {
		return Token{}, fmt.Errorf("%w: %q", ErrInvalidCampaign, parts[2])
	}
	campaignID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrInvalidCampaign, err)
	}
	if len(parts[3]) != len(timestampLayout) || !isDigits(parts[3]) {
		return Token{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, parts[3])
	}
	issuedAt, err := time.ParseInLocation(timestampLayout, parts[3], time.UTC)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}

	t := Token{
		CampaignID: campaignID,
		IssuedAt:   issuedAt,
		Salt:       parts[4],
		CouponCode: parts[5],
	}
	if err := t.validate(); err != nil {
		return Token{}, err
	}
	return t, nil
}

// IsExpired reports whether the token is older than maxAge at now. A
// non-positive maxAge falls back to DefaultMaxAge.
func (t Token) IsExpired(maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return now.Sub(t.IssuedAt) > maxAge
}

// IsExpiredByTimestamp parses raw and applies the staleness check. It is
// independent of the coupon's own validity window.
func IsExpiredByTimestamp(raw string, maxAge time.Duration, now time.Time) (bool, error) {
	t, err := Parse(raw)
	if err != nil {
		return false, err
	}
	return t.IsExpired(maxAge, now), nil
}

func (t Token) validate() error {
	if t.CampaignID < 0 || t.CampaignID > MaxCampaignID {
		return fmt.Errorf("%w: %d out of range", ErrInvalidCampaign, t.CampaignID)
	}
	if len(t.Salt) != SaltLength || !isAlphanumeric(t.Salt) {
		return fmt.Errorf("%w: %q", ErrInvalidSalt, t.Salt)
	}
	if t.CouponCode == "" || !isAlphanumeric(t.CouponCode) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, t.CouponCode)
	}
	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r == '-':
		default:
			return false
		}
	}
	return true
}
