package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RaffleStatus string

const (
	RaffleStatusOpen      RaffleStatus = "OPEN"
	RaffleStatusClosed    RaffleStatus = "CLOSED"
	RaffleStatusCompleted RaffleStatus = "COMPLETED"
	RaffleStatusCancelled RaffleStatus = "CANCELLED"
)

type PrizeStatus string

const (
	PrizeStatusPending    PrizeStatus = "PENDING"
	PrizeStatusAwarded    PrizeStatus = "AWARDED"
	PrizeStatusUnassigned PrizeStatus = "UNASSIGNED"
)

type Raffle struct {
	ID                   uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Name                 string        `gorm:"type:varchar(255);not null" json:"name"`
	Description          *string       `gorm:"type:text" json:"description,omitempty"`
	RegistrationStart    time.Time     `gorm:"not null" json:"registration_start"`
	RegistrationEnd      time.Time     `gorm:"not null" json:"registration_end"`
	DrawDate             time.Time     `gorm:"not null" json:"draw_date"`
	MinParticipants      int           `gorm:"not null;default:0" json:"min_participants"`
	MaxParticipants      *int          `json:"max_participants,omitempty"`
	OnePrizePerUser      bool          `gorm:"not null" json:"one_prize_per_user"`
	RequiresVerification bool          `gorm:"not null;default:false" json:"requires_verification"`
	Status               RaffleStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	DrawSeed             *int64        `json:"draw_seed,omitempty"`
	DrawnAt              *time.Time    `json:"drawn_at,omitempty"`
	Version              int64         `gorm:"not null;default:0" json:"version"`
	Prizes               []RafflePrize `gorm:"foreignKey:RaffleID" json:"prizes,omitempty"`
	CreatedAt            time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Raffle) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *Raffle) EntityName() string { return "raffles" }
func (r *Raffle) EntityID() string   { return r.ID.String() }

// AcceptsEntries reports whether users can currently spend tickets on the raffle.
func (r *Raffle) AcceptsEntries(now time.Time) bool {
	return r.Status == RaffleStatusOpen && !now.Before(r.RegistrationStart) && !now.After(r.RegistrationEnd)
}

// RafflePrize is one ordered prize slot.
type RafflePrize struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RaffleID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_raffle_prize_position" json:"raffle_id"`
	Position    int              `gorm:"not null;uniqueIndex:idx_raffle_prize_position" json:"position"`
	Name        string           `gorm:"type:varchar(255);not null" json:"name"`
	Description *string          `gorm:"type:text" json:"description,omitempty"`
	Value       *decimal.Decimal `gorm:"type:decimal(18,2)" json:"value,omitempty"`
	Status      PrizeStatus      `gorm:"type:varchar(20);not null" json:"status"`
	NeedsReview bool             `gorm:"not null;default:false" json:"needs_review"`
}

func (p *RafflePrize) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// RaffleEntry records the tickets a user spent on a raffle.
type RaffleEntry struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RaffleID    uuid.UUID `gorm:"type:uuid;not null;index" json:"raffle_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	TicketCount int       `gorm:"not null" json:"ticket_count"`
	EnteredAt   time.Time `gorm:"not null" json:"entered_at"`
}

func (e *RaffleEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type Winner struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RaffleID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_winner_prize;uniqueIndex:idx_winner_ticket" json:"raffle_id"`
	PrizeID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_winner_prize" json:"prize_id"`
	TicketID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_winner_ticket" json:"ticket_id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Position  int        `gorm:"not null" json:"position"`
	IsClaimed bool       `gorm:"not null;default:false" json:"is_claimed"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (w *Winner) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// DrawResult is the outcome of drawWinners.
type DrawResult struct {
	Raffle           *Raffle       `json:"raffle"`
	Winners          []Winner      `json:"winners"`
	UnassignedPrizes []RafflePrize `json:"unassigned_prizes"`
	Seed             int64         `json:"seed"`
	EligibleTickets  int           `json:"eligible_tickets"`
}

type RafflePrizeRequest struct {
	Name        string           `json:"name" validate:"required,max=255"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=1000"`
	Value       *decimal.Decimal `json:"value,omitempty"`
}

type RaffleCreateRequest struct {
	Name                 string               `json:"name" validate:"required,max=255"`
	Description          *string              `json:"description,omitempty" validate:"omitempty,max=1000"`
	RegistrationStart    time.Time            `json:"registration_start" validate:"required"`
	RegistrationEnd      time.Time            `json:"registration_end" validate:"required"`
	DrawDate             time.Time            `json:"draw_date" validate:"required"`
	MinParticipants      int                  `json:"min_participants" validate:"min=0"`
	MaxParticipants      *int                 `json:"max_participants,omitempty" validate:"omitempty,min=1"`
	OnePrizePerUser      bool                 `json:"one_prize_per_user"`
	RequiresVerification bool                 `json:"requires_verification"`
	Prizes               []RafflePrizeRequest `json:"prizes" validate:"required,min=1,dive"`
}

type RaffleEntryRequest struct {
	TicketIDs []string `json:"ticket_ids" validate:"required,min=1,dive,uuid"`
}

type RaffleDrawRequest struct {
	Seed *int64 `json:"seed,omitempty"`
}
