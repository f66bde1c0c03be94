package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedeemTwoUseCoupon(t *testing.T) {
	env := newTestEnv(t)
	coupon := env.generateCoupon(t, env.activeCampaign(t, withMaxUses(2), withFixedDiscount("5")))
	ctx := context.Background()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	first, err := env.redemptions.Redeem(ctx, coupon.ID, env.redemptionContext(coupon, alice, "40", "POS-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Coupon.CurrentUses)
	assert.Equal(t, models.CouponStatusActive, first.Coupon.Status)
	assert.True(t, first.Redemption.DiscountApplied.Equal(decimal.NewFromInt(5)))

	second, err := env.redemptions.Redeem(ctx, coupon.ID, env.redemptionContext(coupon, bob, "40", "POS-2"))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Coupon.CurrentUses)
	assert.Equal(t, models.CouponStatusUsedUp, second.Coupon.Status)

	_, err = env.redemptions.Redeem(ctx, coupon.ID, env.redemptionContext(coupon, carol, "40", "POS-3"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrCodeCouponExhausted))

	var redemptions int64
	require.NoError(t, env.db.Model(&models.Redemption{}).Where("coupon_id = ?", coupon.ID).Count(&redemptions).Error)
	assert.Equal(t, int64(2), redemptions)
	assert.Equal(t, 2, env.publisher.Count(models.RoutingRedemptionCreated))
}

func TestRedeemMintsTicketsFromFormula(t *testing.T) {
	env := newTestEnv(t)
	coupon := env.generateCoupon(t, env.activeCampaign(t, withFixedDiscount("15"), withRaffleTickets(1)))
	user := uuid.New()

	outcome, err := env.redemptions.Redeem(context.Background(), coupon.ID, env.redemptionContext(coupon, user, "60", "POS-1"))
	require.NoError(t, err)

	// one base ticket, one for the 60 spent against a threshold of 50, one for the 15 discount
	require.Len(t, outcome.Tickets, 3)
	for _, ticket := range outcome.Tickets {
		assert.Equal(t, user, ticket.UserID)
		assert.Equal(t, models.TicketStatusActive, ticket.Status)
		assert.Equal(t, models.TicketSourceRedemption, ticket.SourceType)
		assert.Equal(t, outcome.Redemption.ID.String(), ticket.SourceReference)
		assert.Regexp(t, `^TKT-[A-Z0-9]{12}$`, ticket.TicketNumber)
	}
	assert.Equal(t, 1, env.publisher.Count(models.RoutingTicketsGenerated))
}

func TestRedeemReplaysSameReference(t *testing.T) {
	env := newTestEnv(t)
	coupon := env.generateCoupon(t, env.activeCampaign(t, withMaxUses(5), withRaffleTickets(2)))
	ctx := context.Background()
	user := uuid.New()
	rc := env.redemptionContext(coupon, user, "30", "POS-42")

	first, err := env.redemptions.Redeem(ctx, coupon.ID, rc)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	again, err := env.redemptions.Redeem(ctx, coupon.ID, rc)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Redemption.ID, again.Redemption.ID)
	assert.Equal(t, 1, again.Coupon.CurrentUses)
	require.Len(t, again.Tickets, len(first.Tickets))
	for i := range first.Tickets {
		assert.Equal(t, first.Tickets[i].ID, again.Tickets[i].ID)
	}

	_, err = env.redemptions.Redeem(ctx, coupon.ID, env.redemptionContext(coupon, uuid.New(), "30", "POS-42"))
	assert.True(t, errors.HasCode(err, ErrCodeReferenceReused))
	assert.Equal(t, 1, env.publisher.Count(models.RoutingRedemptionCreated))
}

func TestRedeemEnforcesPerUserLimit(t *testing.T) {
	env := newTestEnv(t)
	coupon := env.generateCoupon(t, env.activeCampaign(t, withMaxUses(3), withMaxUsesPerUser(1)))
	ctx := context.Background()
	user := uuid.New()

	_, err := env.redemptions.Redeem(ctx, coupon.ID, env.redemptionContext(coupon, user, "30", "POS-1"))
	require.NoError(t, err)

	_, err = env.redemptions.Redeem(ctx, coupon.ID, env.redemptionContext(coupon, user, "30", "POS-2"))
	assert.True(t, errors.HasCode(err, ErrCodeUserLimitReached))

	stored, err := env.coupons.GetCoupon(coupon.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentUses)
}

func TestRedeemRejectsNonPositivePurchase(t *testing.T) {
	env := newTestEnv(t)
	coupon := env.generateCoupon(t, env.activeCampaign(t))

	_, err := env.redemptions.Redeem(context.Background(), coupon.ID, env.redemptionContext(coupon, uuid.New(), "0", "POS-1"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeBadRequest))
}

func TestVoidKeepsUseAndTickets(t *testing.T) {
	env := newTestEnv(t)
	coupon := env.generateCoupon(t, env.activeCampaign(t, withRaffleTickets(2)))
	ctx := context.Background()
	actor := uuid.New()

	outcome, err := env.redemptions.Redeem(ctx, coupon.ID, env.redemptionContext(coupon, uuid.New(), "30", "POS-1"))
	require.NoError(t, err)

	voided, err := env.redemptions.Void(ctx, outcome.Redemption.ID.String(), &models.RedemptionVoidRequest{Reason: "pump fault"}, &actor)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionStatusVoided, voided.Status)
	require.NotNil(t, voided.VoidedAt)

	_, err = env.redemptions.Void(ctx, outcome.Redemption.ID.String(), &models.RedemptionVoidRequest{Reason: "again"}, &actor)
	assert.True(t, errors.HasCode(err, ErrCodeRedemptionNotCompleted))

	stored, err := env.coupons.GetCoupon(coupon.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentUses)

	for _, ticket := range outcome.Tickets {
		current, err := env.tickets.GetTicket(ticket.ID.String())
		require.NoError(t, err)
		assert.Equal(t, models.TicketStatusActive, current.Status)
	}
	assert.Equal(t, 1, env.publisher.Count(models.RoutingRedemptionVoided))
}

func TestGetRedemptionsByUser(t *testing.T) {
	env := newTestEnv(t)
	coupon := env.generateCoupon(t, env.activeCampaign(t, withMaxUses(3)))
	user := uuid.New()

	for _, ref := range []string{"POS-1", "POS-2"} {
		_, err := env.redemptions.Redeem(context.Background(), coupon.ID, env.redemptionContext(coupon, user, "30", ref))
		require.NoError(t, err)
	}

	page, err := env.redemptions.GetRedemptionsByUser(user, &models.PaginationRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalItems)
	assert.Len(t, page.Items, 2)
	assert.False(t, page.HasNext)
}
