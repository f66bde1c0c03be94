package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/events"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RaffleTicketService persists the ticket state machine. The transition rules
// live on models.RaffleTicket; this service loads, applies and stores them
// with a version check, then publishes the resulting events.
type RaffleTicketService struct {
	db        *gorm.DB
	validator *infrastructures.Validator
	audit     *AuditService
	outbox    *events.Outbox
	now       pkg.Clock
}

func NewRaffleTicketService(db *gorm.DB, validator *infrastructures.Validator, audit *AuditService, outbox *events.Outbox) *RaffleTicketService {
	return &RaffleTicketService{
		db:        db,
		validator: validator,
		audit:     audit,
		outbox:    outbox,
		now:       pkg.SystemClock,
	}
}

func (s *RaffleTicketService) GetTicket(ticketID string) (*models.RaffleTicket, error) {
	ticketUUID, err := uuid.Parse(ticketID)
	if err != nil {
		return nil, errors.NewBadRequestError("Invalid ticket ID format")
	}
	return getTicket(s.db, ticketUUID)
}

func getTicket(db *gorm.DB, ticketID uuid.UUID) (*models.RaffleTicket, error) {
	var ticket models.RaffleTicket
	err := db.Where("id = ?", ticketID).First(&ticket).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("Raffle ticket not found")
		}
		return nil, errors.NewInternalServerError(err, "Failed to get raffle ticket")
	}

	return &ticket, nil
}

func (s *RaffleTicketService) GetUserTickets(userID uuid.UUID, status *models.TicketStatus, pagination *models.PaginationRequest) (*models.Pagination[[]models.RaffleTicket], error) {
	offset := normalizePagination(pagination)

	filter := func(q *gorm.DB) *gorm.DB {
		q = q.Where("user_id = ?", userID)
		if status != nil {
			q = q.Where("status = ?", *status)
		}
		return q
	}

	var totalItems int64
	if err := filter(s.db.Model(&models.RaffleTicket{})).Count(&totalItems).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to count raffle tickets")
	}

	var tickets []models.RaffleTicket
	if err := filter(s.db.Order("created_at DESC")).Limit(pagination.Limit).Offset(offset).Find(&tickets).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get raffle tickets")
	}

	return paginate(pagination, totalItems, tickets), nil
}

// saveTicket writes the mutable columns of ticket if the stored version still
// equals expectedVersion.
func saveTicket(tx *gorm.DB, ticket *models.RaffleTicket, expectedVersion int64) error {
	res := tx.Model(&models.RaffleTicket{}).
		Where("id = ? AND version = ?", ticket.ID, expectedVersion).
		Updates(map[string]any{
			"user_id":           ticket.UserID,
			"status":            ticket.Status,
			"raffle_id":         ticket.RaffleID,
			"used_at":           ticket.UsedAt,
			"is_winner":         ticket.IsWinner,
			"prize_id":          ticket.PrizeID,
			"prize_description": ticket.PrizeDescription,
			"is_claimed":        ticket.IsClaimed,
			"claimed_at":        ticket.ClaimedAt,
			"version":           expectedVersion + 1,
			"updated_at":        ticket.UpdatedAt,
		})
	if res.Error != nil {
		return errors.NewInternalServerError(res.Error, "Failed to update raffle ticket")
	}
	if res.RowsAffected == 0 {
		return errors.ErrConcurrentModification
	}
	ticket.Version = expectedVersion + 1
	return nil
}

// mutate loads a ticket, applies change and stores it in one transaction.
func (s *RaffleTicketService) mutate(ctx context.Context, ticketID string, change func(tx *gorm.DB, t *models.RaffleTicket, now time.Time) (models.Event, error)) (*models.RaffleTicket, error) {
	ticketUUID, err := uuid.Parse(ticketID)
	if err != nil {
		return nil, errors.NewBadRequestError("Invalid ticket ID format")
	}

	var ticket *models.RaffleTicket
	var event models.Event
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := getTicket(tx, ticketUUID)
		if err != nil {
			return err
		}
		ticket = t

		version := ticket.Version
		from := ticket.Status
		if event, err = change(tx, ticket, s.now()); err != nil {
			return err
		}
		if err := saveTicket(tx, ticket, version); err != nil {
			return err
		}
		if from != ticket.Status {
			if err := s.audit.LogStatusChange(tx, ticket, string(from), string(ticket.Status), nil, nil, nil); err != nil {
				return err
			}
		}
		return s.outbox.Enqueue(tx, event)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"ticket_id": ticket.ID,
		"event":     event.RoutingKey,
		"status":    ticket.Status,
	}).Info("Raffle ticket updated")

	s.outbox.Notify(ctx)
	return ticket, nil
}

// ClaimPrize lets the owner of a winning ticket claim its prize.
func (s *RaffleTicketService) ClaimPrize(ctx context.Context, ticketID string, claimant uuid.UUID) (*models.RaffleTicket, error) {
	return s.mutate(ctx, ticketID, func(tx *gorm.DB, t *models.RaffleTicket, now time.Time) (models.Event, error) {
		event, err := t.ClaimPrize(claimant, now)
		if err != nil {
			return event, err
		}

		res := tx.Model(&models.Winner{}).
			Where("ticket_id = ? AND is_claimed = ?", t.ID, false).
			Updates(map[string]any{"is_claimed": true, "claimed_at": now})
		if res.Error != nil {
			return event, errors.NewInternalServerError(res.Error, "Failed to update winner")
		}
		return event, nil
	})
}

func (s *RaffleTicketService) Transfer(ctx context.Context, ticketID string, owner uuid.UUID, req *models.TicketTransferRequest) (*models.RaffleTicket, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	newOwner, err := uuid.Parse(req.ToUserID)
	if err != nil {
		return nil, errors.NewBadRequestError("Invalid user ID format")
	}

	return s.mutate(ctx, ticketID, func(tx *gorm.DB, t *models.RaffleTicket, now time.Time) (models.Event, error) {
		if t.UserID != owner {
			return models.Event{}, errors.NewConflictError(models.ErrCodeNotTicketOwner, "Only the ticket owner can transfer it")
		}
		transfer, event, err := t.TransferTo(newOwner, now)
		if err != nil {
			return event, err
		}
		if err := tx.Create(transfer).Error; err != nil {
			return event, errors.NewInternalServerError(err, "Failed to record ticket transfer")
		}
		return event, nil
	})
}

func (s *RaffleTicketService) GetTransfers(ticketID string) ([]models.TicketTransfer, error) {
	ticket, err := s.GetTicket(ticketID)
	if err != nil {
		return nil, err
	}

	var transfers []models.TicketTransfer
	if err := s.db.Where("ticket_id = ?", ticket.ID).Order("transferred_at ASC").Find(&transfers).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get ticket transfers")
	}
	return transfers, nil
}

// UpdateStatus applies an administrative side transition.
func (s *RaffleTicketService) UpdateStatus(ctx context.Context, ticketID string, req *models.TicketStatusUpdateRequest) (*models.RaffleTicket, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	return s.mutate(ctx, ticketID, func(_ *gorm.DB, t *models.RaffleTicket, now time.Time) (models.Event, error) {
		switch req.Status {
		case models.TicketStatusSuspended:
			return t.Suspend(now)
		case models.TicketStatusActive:
			return t.Reactivate(now)
		case models.TicketStatusCancelled:
			return t.Cancel(now)
		default:
			return models.Event{}, errors.NewBadRequestError("Unsupported ticket status " + string(req.Status))
		}
	})
}

// ExpireDue expires every ACTIVE ticket whose expiry date has passed.
func (s *RaffleTicketService) ExpireDue(ctx context.Context) (int, error) {
	var due []models.RaffleTicket
	if err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.TicketStatusActive, s.now()).
		Find(&due).Error; err != nil {
		return 0, errors.NewInternalServerError(err, "Failed to find expired tickets")
	}

	expired := 0
	for _, t := range due {
		_, err := s.mutate(ctx, t.ID.String(), func(_ *gorm.DB, ticket *models.RaffleTicket, now time.Time) (models.Event, error) {
			return ticket.Expire(now)
		})
		if err != nil {
			if errors.IsConflict(err) {
				continue
			}
			return expired, err
		}
		expired++
	}

	return expired, nil
}
