package models

import (
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/shopspring/decimal"
)

type DiscountKind string

const (
	DiscountKindNone       DiscountKind = "NONE"
	DiscountKindFixed      DiscountKind = "FIXED"
	DiscountKindPercentage DiscountKind = "PERCENTAGE"
)

var hundred = decimal.NewFromInt(100)

// Discount is either a fixed amount, a percentage, or nothing. The zero value
// is "no discount"; the only way to build any other value is NewDiscount.
type Discount struct {
	kind  DiscountKind
	value decimal.Decimal
}

// NewDiscount accepts at most one of amount and percentage.
func NewDiscount(amount, percentage *decimal.Decimal) (Discount, error) {
	switch {
	case amount != nil && percentage != nil:
		return Discount{}, errors.NewBadRequestError("Discount amount and percentage are mutually exclusive")
	case amount != nil:
		if !amount.IsPositive() {
			return Discount{}, errors.NewBadRequestError("Discount amount must be positive")
		}
		return Discount{kind: DiscountKindFixed, value: *amount}, nil
	case percentage != nil:
		if !percentage.IsPositive() || percentage.GreaterThan(hundred) {
			return Discount{}, errors.NewBadRequestError("Discount percentage must be within (0, 100]")
		}
		return Discount{kind: DiscountKindPercentage, value: *percentage}, nil
	default:
		return Discount{}, nil
	}
}

func (d Discount) Kind() DiscountKind {
	if d.kind == "" {
		return DiscountKindNone
	}
	return d.kind
}

// Amount returns the fixed amount, or nil for any other kind.
func (d Discount) Amount() *decimal.Decimal {
	if d.kind != DiscountKindFixed {
		return nil
	}
	v := d.value
	return &v
}

// Percentage returns the percentage, or nil for any other kind.
func (d Discount) Percentage() *decimal.Decimal {
	if d.kind != DiscountKindPercentage {
		return nil
	}
	v := d.value
	return &v
}

// ApplyTo computes the discount granted on purchaseAmount. A fixed discount
// never exceeds the purchase itself.
func (d Discount) ApplyTo(purchaseAmount decimal.Decimal) decimal.Decimal {
	switch d.kind {
	case DiscountKindFixed:
		return decimal.Min(d.value, purchaseAmount)
	case DiscountKindPercentage:
		return purchaseAmount.Mul(d.value).Div(hundred).Round(2)
	default:
		return decimal.Zero
	}
}
