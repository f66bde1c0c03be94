package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ticketNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func activeTicket() *RaffleTicket {
	return &RaffleTicket{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		TicketNumber: "TKT-TEST",
		Status:       TicketStatusActive,
	}
}

func TestUseInRaffleGuards(t *testing.T) {
	raffleID := uuid.New()

	ticket := activeTicket()
	event, err := ticket.UseInRaffle(raffleID, ticketNow)
	require.NoError(t, err)
	assert.Equal(t, RoutingTicketUsed, event.RoutingKey)
	assert.Equal(t, TicketStatusUsed, ticket.Status)
	assert.True(t, ticket.IsUsedIn(raffleID))

	_, err = ticket.UseInRaffle(uuid.New(), ticketNow)
	assert.True(t, errors.HasCode(err, ErrCodeTicketNotActive))

	// An active ticket that still carries a raffle reference is never reused.
	stale := activeTicket()
	stale.RaffleID = &raffleID
	_, err = stale.UseInRaffle(uuid.New(), ticketNow)
	assert.True(t, errors.HasCode(err, ErrCodeTicketAlreadyUsed))

	suspended := activeTicket()
	suspended.Status = TicketStatusSuspended
	_, err = suspended.UseInRaffle(raffleID, ticketNow)
	assert.True(t, errors.HasCode(err, ErrCodeTicketNotActive))
}

func TestMarkAsWinnerGuards(t *testing.T) {
	raffleID := uuid.New()
	prizeID := uuid.New()

	unused := activeTicket()
	_, err := unused.MarkAsWinner(raffleID, prizeID, "Full tank", ticketNow)
	assert.True(t, errors.HasCode(err, ErrCodeTicketNotInRaffle))

	ticket := activeTicket()
	_, err = ticket.UseInRaffle(raffleID, ticketNow)
	require.NoError(t, err)

	_, err = ticket.MarkAsWinner(uuid.New(), prizeID, "Full tank", ticketNow)
	assert.True(t, errors.HasCode(err, ErrCodeTicketNotInRaffle))
	assert.False(t, ticket.IsWinner)

	event, err := ticket.MarkAsWinner(raffleID, prizeID, "Full tank", ticketNow)
	require.NoError(t, err)
	assert.Equal(t, RoutingTicketWon, event.RoutingKey)
	assert.True(t, ticket.IsWinner)
	assert.Equal(t, prizeID, *ticket.PrizeID)

	_, err = ticket.MarkAsWinner(raffleID, uuid.New(), "Car wash", ticketNow)
	assert.True(t, errors.HasCode(err, ErrCodeTicketAlreadyWinner))
	assert.Equal(t, prizeID, *ticket.PrizeID)
}

func TestClaimPrizeGuards(t *testing.T) {
	raffleID := uuid.New()
	ticket := activeTicket()

	_, err := ticket.ClaimPrize(ticket.UserID, ticketNow)
	assert.True(t, errors.HasCode(err, ErrCodeTicketNotWinner))

	_, err = ticket.UseInRaffle(raffleID, ticketNow)
	require.NoError(t, err)
	_, err = ticket.MarkAsWinner(raffleID, uuid.New(), "Full tank", ticketNow)
	require.NoError(t, err)

	_, err = ticket.ClaimPrize(uuid.New(), ticketNow)
	assert.True(t, errors.HasCode(err, ErrCodeNotTicketOwner))

	_, err = ticket.ClaimPrize(ticket.UserID, ticketNow)
	require.NoError(t, err)
	assert.True(t, ticket.IsClaimed)

	_, err = ticket.ClaimPrize(ticket.UserID, ticketNow)
	assert.True(t, errors.HasCode(err, ErrCodePrizeAlreadyClaimed))
}
