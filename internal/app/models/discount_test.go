package models

import (
	"testing"

	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestNewDiscount(t *testing.T) {
	tests := []struct {
		name       string
		amount     *decimal.Decimal
		percentage *decimal.Decimal
		kind       DiscountKind
		wantErr    bool
	}{
		{"none", nil, nil, DiscountKindNone, false},
		{"fixed", dec("5.00"), nil, DiscountKindFixed, false},
		{"percentage", nil, dec("15"), DiscountKindPercentage, false},
		{"both is rejected", dec("5.00"), dec("15"), "", true},
		{"zero amount", dec("0"), nil, "", true},
		{"percentage above hundred", nil, dec("100.01"), "", true},
		{"negative percentage", nil, dec("-1"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDiscount(tt.amount, tt.percentage)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.CodeBadRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, d.Kind())
		})
	}
}

func TestDiscountApplyTo(t *testing.T) {
	fixed, err := NewDiscount(dec("5.00"), nil)
	require.NoError(t, err)
	assert.True(t, fixed.ApplyTo(decimal.NewFromInt(40)).Equal(decimal.NewFromInt(5)))
	assert.True(t, fixed.ApplyTo(decimal.NewFromInt(3)).Equal(decimal.NewFromInt(3)))
	assert.Nil(t, fixed.Percentage())

	pct, err := NewDiscount(nil, dec("12.5"))
	require.NoError(t, err)
	assert.True(t, pct.ApplyTo(decimal.RequireFromString("19.99")).Equal(decimal.RequireFromString("2.5")))
	assert.Nil(t, pct.Amount())

	assert.True(t, Discount{}.ApplyTo(decimal.NewFromInt(40)).IsZero())
}
