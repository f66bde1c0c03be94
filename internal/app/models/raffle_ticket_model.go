package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"gorm.io/gorm"
)

// Conflict codes raised by ticket transitions.
const (
	ErrCodeTicketNotActive     = "TICKET_NOT_ACTIVE"
	ErrCodeTicketAlreadyUsed   = "TICKET_ALREADY_USED"
	ErrCodeTicketNotInRaffle   = "TICKET_NOT_IN_RAFFLE"
	ErrCodeTicketAlreadyWinner = "TICKET_ALREADY_WINNER"
	ErrCodeTicketNotWinner     = "TICKET_NOT_WINNER"
	ErrCodePrizeAlreadyClaimed = "PRIZE_ALREADY_CLAIMED"
	ErrCodeNotTicketOwner      = "NOT_TICKET_OWNER"
	ErrCodeInvalidTicketStatus = "INVALID_TICKET_STATUS_TRANSITION"
	ErrCodeTicketSelfTransfer  = "TICKET_SELF_TRANSFER"
	ErrCodeTicketNotExpiredYet = "TICKET_NOT_EXPIRED"
)

type TicketStatus string

const (
	TicketStatusActive    TicketStatus = "ACTIVE"
	TicketStatusUsed      TicketStatus = "USED"
	TicketStatusExpired   TicketStatus = "EXPIRED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
	TicketStatusSuspended TicketStatus = "SUSPENDED"
)

type TicketSourceType string

const (
	TicketSourceRedemption TicketSourceType = "REDEMPTION"
	TicketSourceEngagement TicketSourceType = "ENGAGEMENT"
)

// RaffleTicket is one unit of chance. Winner and claimed are sub-states of
// USED tracked through the prize fields.
type RaffleTicket struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	IssuanceID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"issuance_id"`
	SourceType       TicketSourceType `gorm:"type:varchar(20);not null" json:"source_type"`
	SourceReference  string           `gorm:"type:varchar(64);not null" json:"source_reference"`
	TicketNumber     string           `gorm:"type:varchar(32);not null;uniqueIndex" json:"ticket_number"`
	Status           TicketStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	RaffleID         *uuid.UUID       `gorm:"type:uuid;index" json:"raffle_id,omitempty"`
	UsedAt           *time.Time       `json:"used_at,omitempty"`
	IsWinner         bool             `gorm:"not null;default:false" json:"is_winner"`
	PrizeID          *uuid.UUID       `gorm:"type:uuid" json:"prize_id,omitempty"`
	PrizeDescription *string          `gorm:"type:text" json:"prize_description,omitempty"`
	IsClaimed        bool             `gorm:"not null;default:false" json:"is_claimed"`
	ClaimedAt        *time.Time       `json:"claimed_at,omitempty"`
	ExpiresAt        *time.Time       `gorm:"index" json:"expires_at,omitempty"`
	Version          int64            `gorm:"not null;default:0" json:"version"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (t *RaffleTicket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (t *RaffleTicket) EntityName() string { return "raffle_tickets" }
func (t *RaffleTicket) EntityID() string   { return t.ID.String() }

func (t *RaffleTicket) IsActive() bool {
	return t.Status == TicketStatusActive
}

func (t *RaffleTicket) IsUsed() bool {
	return t.RaffleID != nil && t.UsedAt != nil
}

func (t *RaffleTicket) IsUsedIn(raffleID uuid.UUID) bool {
	return t.IsUsed() && *t.RaffleID == raffleID
}

// UseInRaffle consumes the ticket into a raffle entry.
func (t *RaffleTicket) UseInRaffle(raffleID uuid.UUID, now time.Time) (Event, error) {
	if !t.IsActive() {
		return Event{}, errors.NewConflictError(ErrCodeTicketNotActive, "Ticket is not active")
	}
	if t.RaffleID != nil {
		return Event{}, errors.NewConflictError(ErrCodeTicketAlreadyUsed, "Ticket has already been used in a raffle")
	}

	t.Status = TicketStatusUsed
	t.RaffleID = &raffleID
	t.UsedAt = &now
	t.UpdatedAt = now

	return NewEvent(RoutingTicketUsed, t, now, map[string]any{
		"raffle_id": raffleID,
		"user_id":   t.UserID,
	}), nil
}

// MarkAsWinner binds a prize to a ticket that was entered into the same raffle.
func (t *RaffleTicket) MarkAsWinner(raffleID, prizeID uuid.UUID, prizeDescription string, now time.Time) (Event, error) {
	if !t.IsUsedIn(raffleID) {
		return Event{}, errors.NewConflictError(ErrCodeTicketNotInRaffle, "Ticket was not used in this raffle")
	}
	if t.IsWinner {
		return Event{}, errors.NewConflictError(ErrCodeTicketAlreadyWinner, "Ticket has already won a prize")
	}

	t.IsWinner = true
	t.PrizeID = &prizeID
	t.PrizeDescription = &prizeDescription
	t.UpdatedAt = now

	return NewEvent(RoutingTicketWon, t, now, map[string]any{
		"raffle_id": raffleID,
		"prize_id":  prizeID,
		"user_id":   t.UserID,
	}), nil
}

func (t *RaffleTicket) ClaimPrize(claimant uuid.UUID, now time.Time) (Event, error) {
	if t.UserID != claimant {
		return Event{}, errors.NewConflictError(ErrCodeNotTicketOwner, "Only the ticket owner can claim the prize")
	}
	if !t.IsWinner {
		return Event{}, errors.NewConflictError(ErrCodeTicketNotWinner, "Ticket is not a winning ticket")
	}
	if t.IsClaimed {
		return Event{}, errors.NewConflictError(ErrCodePrizeAlreadyClaimed, "Prize has already been claimed")
	}

	t.IsClaimed = true
	t.ClaimedAt = &now
	t.UpdatedAt = now

	return NewEvent(RoutingTicketClaimed, t, now, map[string]any{
		"prize_id": t.PrizeID,
		"user_id":  t.UserID,
	}), nil
}

// TransferTo moves an unused active ticket to another user and returns the history row.
func (t *RaffleTicket) TransferTo(newOwner uuid.UUID, now time.Time) (*TicketTransfer, Event, error) {
	if !t.IsActive() {
		return nil, Event{}, errors.NewConflictError(ErrCodeTicketNotActive, "Only active tickets can be transferred")
	}
	if t.RaffleID != nil {
		return nil, Event{}, errors.NewConflictError(ErrCodeTicketAlreadyUsed, "Ticket has already been used in a raffle")
	}
	if t.UserID == newOwner {
		return nil, Event{}, errors.NewConflictError(ErrCodeTicketSelfTransfer, "Ticket already belongs to this user")
	}

	transfer := &TicketTransfer{
		TicketID:      t.ID,
		FromUserID:    t.UserID,
		ToUserID:      newOwner,
		TransferredAt: now,
	}
	t.UserID = newOwner
	t.UpdatedAt = now

	return transfer, NewEvent(RoutingTicketTransferred, t, now, map[string]any{
		"from_user_id": transfer.FromUserID,
		"to_user_id":   newOwner,
	}), nil
}

func (t *RaffleTicket) Suspend(now time.Time) (Event, error) {
	return t.sideTransition(TicketStatusActive, TicketStatusSuspended, now)
}

func (t *RaffleTicket) Reactivate(now time.Time) (Event, error) {
	return t.sideTransition(TicketStatusSuspended, TicketStatusActive, now)
}

func (t *RaffleTicket) Cancel(now time.Time) (Event, error) {
	return t.sideTransition(TicketStatusActive, TicketStatusCancelled, now)
}

// Expire is time driven; it refuses tickets whose expiry date has not passed.
func (t *RaffleTicket) Expire(now time.Time) (Event, error) {
	if t.ExpiresAt == nil || now.Before(*t.ExpiresAt) {
		return Event{}, errors.NewConflictError(ErrCodeTicketNotExpiredYet, "Ticket has not reached its expiry date")
	}
	return t.sideTransition(TicketStatusActive, TicketStatusExpired, now)
}

func (t *RaffleTicket) sideTransition(from, to TicketStatus, now time.Time) (Event, error) {
	if t.Status != from {
		return Event{}, errors.NewConflictError(ErrCodeInvalidTicketStatus, "Ticket cannot move from "+string(t.Status)+" to "+string(to))
	}
	previous := t.Status
	t.Status = to
	t.UpdatedAt = now

	return NewEvent(RoutingTicketStatusChanged, t, now, map[string]any{
		"from_status": previous,
		"to_status":   to,
		"user_id":     t.UserID,
	}), nil
}

// TicketIssuance is the idempotency record of one minting. The unique index
// on (user, source type, source reference) is what makes repeated events safe.
type TicketIssuance struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_ticket_issuance_source" json:"user_id"`
	SourceType      TicketSourceType `gorm:"type:varchar(20);not null;uniqueIndex:idx_ticket_issuance_source" json:"source_type"`
	SourceReference string           `gorm:"type:varchar(64);not null;uniqueIndex:idx_ticket_issuance_source" json:"source_reference"`
	TicketCount     int              `gorm:"not null" json:"ticket_count"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (i *TicketIssuance) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// IssuanceResult reports the tickets behind an issuance record. Created is
// false when the record already existed and nothing new was minted.
type IssuanceResult struct {
	Issuance *TicketIssuance `json:"issuance"`
	Tickets  []*RaffleTicket `json:"tickets"`
	Created  bool            `json:"created"`
}

type TicketTransfer struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TicketID      uuid.UUID `gorm:"type:uuid;not null;index" json:"ticket_id"`
	FromUserID    uuid.UUID `gorm:"type:uuid;not null" json:"from_user_id"`
	ToUserID      uuid.UUID `gorm:"type:uuid;not null" json:"to_user_id"`
	TransferredAt time.Time `gorm:"not null" json:"transferred_at"`
}

func (tt *TicketTransfer) BeforeCreate(tx *gorm.DB) error {
	if tt.ID == uuid.Nil {
		tt.ID = uuid.New()
	}
	return nil
}

type TicketTransferRequest struct {
	ToUserID string `json:"to_user_id" validate:"required,uuid"`
}

type TicketStatusUpdateRequest struct {
	Status TicketStatus `json:"status" validate:"required,oneof=ACTIVE SUSPENDED CANCELLED"`
}
