package signature

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFields() Fields {
	amount := decimal.RequireFromString("15.00")
	return Fields{
		Token:          "GSL_v1_000123_20240101000000_ABCDEF12_PROMO1",
		Code:           "PROMO1",
		CampaignID:     123,
		ValidFrom:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil:     time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
		RaffleTickets:  2,
		DiscountAmount: &amount,
	}
}

func TestNewCodecRejectsEmptySecret(t *testing.T) {
	_, err := NewCodec("")
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestCanonicalWritesZeroForAbsentFields(t *testing.T) {
	f := sampleFields()
	assert.Equal(t,
		"GSL_v1_000123_20240101000000_ABCDEF12_PROMO1|PROMO1|123|2024-01-01T00:00:00Z|2024-12-31T23:59:59Z|2|15.00|0",
		f.Canonical())
}

func TestCanonicalNormalisesTimezoneAndScale(t *testing.T) {
	a := sampleFields()
	b := sampleFields()
	b.ValidFrom = a.ValidFrom.In(time.FixedZone("WIB", 7*3600))
	scaled := decimal.RequireFromString("15")
	b.DiscountAmount = &scaled

	assert.Equal(t, a.Canonical(), b.Canonical())
}

func TestSignVerifyRoundTrip(t *testing.T) {
	codec, err := NewCodec("top-secret")
	require.NoError(t, err)

	f := sampleFields()
	sig := codec.Sign(f)
	assert.True(t, codec.Verify(f, sig))
	assert.Equal(t, sig, codec.Sign(f), "signing is deterministic")
}

func TestVerifyFailsOnAnySignatureByteMutation(t *testing.T) {
	codec, err := NewCodec("top-secret")
	require.NoError(t, err)

	f := sampleFields()
	sig := codec.Sign(f)

	for i := 0; i < len(sig); i++ {
		mutated := []byte(sig)
		mutated[i] ^= 0x01
		assert.False(t, codec.Verify(f, string(mutated)), "mutation at byte %d must fail", i)
	}
}

func TestVerifyFailsOnSignedFieldMutation(t *testing.T) {
	codec, err := NewCodec("top-secret")
	require.NoError(t, err)

	base := sampleFields()
	sig := codec.Sign(base)

	pct := decimal.RequireFromString("10")
	mutations := map[string]func(f *Fields){
		"token":      func(f *Fields) { f.Token = "GSL_v1_000123_20240101000000_ABCDEF13_PROMO1" },
		"code":       func(f *Fields) { f.Code = "PROMO2" },
		"campaign":   func(f *Fields) { f.CampaignID = 124 },
		"validFrom":  func(f *Fields) { f.ValidFrom = f.ValidFrom.Add(time.Second) },
		"validUntil": func(f *Fields) { f.ValidUntil = f.ValidUntil.Add(time.Hour) },
		"tickets":    func(f *Fields) { f.RaffleTickets = 3 },
		"amount":     func(f *Fields) { f.DiscountAmount = nil },
		"percentage": func(f *Fields) { f.DiscountPercentage = &pct },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			f := sampleFields()
			mutate(&f)
			assert.False(t, codec.Verify(f, sig))
		})
	}
}

func TestVerifyFailsWithDifferentSecret(t *testing.T) {
	a, _ := NewCodec("secret-a")
	b, _ := NewCodec("secret-b")

	f := sampleFields()
	assert.False(t, b.Verify(f, a.Sign(f)))
}
