package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mintTickets issues n tickets to user through the redemption path.
func (e *testEnv) mintTickets(t *testing.T, user uuid.UUID, n int) []*models.RaffleTicket {
	t.Helper()
	result, err := e.issuance.IssueFromRedemption(context.Background(), RedemptionTicketRequest{
		UserID:         user,
		RedemptionID:   uuid.New(),
		PurchaseAmount: decimal.Zero,
		BaseTickets:    n,
	})
	require.NoError(t, err)
	require.Len(t, result.Tickets, n)
	return result.Tickets
}

func TestTicketSideTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.mintTickets(t, uuid.New(), 1)[0]
	id := ticket.ID.String()

	suspended, err := env.tickets.UpdateStatus(ctx, id, &models.TicketStatusUpdateRequest{Status: models.TicketStatusSuspended})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusSuspended, suspended.Status)
	assert.Equal(t, int64(1), suspended.Version)

	_, err = env.tickets.UpdateStatus(ctx, id, &models.TicketStatusUpdateRequest{Status: models.TicketStatusCancelled})
	assert.True(t, errors.HasCode(err, models.ErrCodeInvalidTicketStatus))

	active, err := env.tickets.UpdateStatus(ctx, id, &models.TicketStatusUpdateRequest{Status: models.TicketStatusActive})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusActive, active.Status)

	cancelled, err := env.tickets.UpdateStatus(ctx, id, &models.TicketStatusUpdateRequest{Status: models.TicketStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusCancelled, cancelled.Status)

	history, err := env.audit.GetStatusHistory("raffle_tickets", id)
	require.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Equal(t, 3, env.publisher.Count(models.RoutingTicketStatusChanged))
}

func TestTicketTransfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, recipient := uuid.New(), uuid.New()
	ticket := env.mintTickets(t, owner, 1)[0]
	id := ticket.ID.String()

	_, err := env.tickets.Transfer(ctx, id, recipient, &models.TicketTransferRequest{ToUserID: uuid.NewString()})
	assert.True(t, errors.HasCode(err, models.ErrCodeNotTicketOwner))

	_, err = env.tickets.Transfer(ctx, id, owner, &models.TicketTransferRequest{ToUserID: owner.String()})
	assert.True(t, errors.HasCode(err, models.ErrCodeTicketSelfTransfer))

	moved, err := env.tickets.Transfer(ctx, id, owner, &models.TicketTransferRequest{ToUserID: recipient.String()})
	require.NoError(t, err)
	assert.Equal(t, recipient, moved.UserID)

	transfers, err := env.tickets.GetTransfers(id)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, owner, transfers[0].FromUserID)
	assert.Equal(t, recipient, transfers[0].ToUserID)

	page, err := env.tickets.GetUserTickets(recipient, nil, &models.PaginationRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalItems)
}

func TestExpireDueTickets(t *testing.T) {
	env := newTestEnv(t)
	env.issuance.lifetime = time.Hour
	tickets := env.mintTickets(t, uuid.New(), 2)

	_, err := env.tickets.UpdateStatus(context.Background(), tickets[1].ID.String(), &models.TicketStatusUpdateRequest{Status: models.TicketStatusSuspended})
	require.NoError(t, err)

	env.tickets.now = pkg.FixedClock(testNow.Add(2 * time.Hour))
	n, err := env.tickets.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expired, err := env.tickets.GetTicket(tickets[0].ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusExpired, expired.Status)

	suspended, err := env.tickets.GetTicket(tickets[1].ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusSuspended, suspended.Status)
}

func TestExpirySweeperSweepsCouponsAndTickets(t *testing.T) {
	env := newTestEnv(t)
	env.issuance.lifetime = time.Hour
	env.generateCoupon(t, env.activeCampaign(t))
	env.mintTickets(t, uuid.New(), 1)

	env.setClock(testNow.Add(100 * time.Hour))
	sweeper := NewExpirySweeper(env.coupons, env.tickets, env.cfg)

	coupons, tickets, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, coupons)
	assert.Equal(t, 1, tickets)

	coupons, tickets, err = sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, coupons)
	assert.Zero(t, tickets)
}

func TestClaimPrizeRequiresWinningTicket(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()
	ticket := env.mintTickets(t, owner, 1)[0]

	_, err := env.tickets.ClaimPrize(context.Background(), ticket.ID.String(), owner)
	assert.True(t, errors.HasCode(err, models.ErrCodeTicketNotWinner))
}
