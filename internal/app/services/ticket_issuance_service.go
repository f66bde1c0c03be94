package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/events"
	"github.com/safatanc/gsalt-rewards/internal/app/metrics"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ticketNumberPrefix = "TKT-"
	ticketNumberLength = 12

	ErrCodeEngagementNotCompleted = "ENGAGEMENT_NOT_COMPLETED"
)

// TicketRules are the knobs of the redemption ticket formula.
type TicketRules struct {
	BonusThreshold         decimal.Decimal
	DiscountBonusThreshold decimal.Decimal
	MaxTickets             int
}

// RedemptionTickets computes
//
//	base + floor(purchase / bonusThreshold) + (1 if discount >= discountBonusThreshold)
//
// capped at MaxTickets. A non-positive threshold disables the purchase bonus.
func (r TicketRules) RedemptionTickets(purchaseAmount, discountApplied decimal.Decimal, baseTickets int) int {
	tickets := max(baseTickets, 0)

	if r.BonusThreshold.IsPositive() && purchaseAmount.IsPositive() {
		tickets += int(purchaseAmount.Div(r.BonusThreshold).Floor().IntPart())
	}
	if discountApplied.GreaterThanOrEqual(r.DiscountBonusThreshold) && discountApplied.IsPositive() {
		tickets++
	}

	if r.MaxTickets > 0 && tickets > r.MaxTickets {
		tickets = r.MaxTickets
	}
	return tickets
}

// EngagementTickets is base × the type's multiplier, rounded down.
func EngagementTickets(baseTickets int, engagementType models.EngagementType) int {
	if baseTickets <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(baseTickets)).Mul(engagementType.RewardMultiplier()).Floor().IntPart())
}

// RedemptionTicketRequest carries the outcome of one redemption.
type RedemptionTicketRequest struct {
	UserID          uuid.UUID
	RedemptionID    uuid.UUID
	PurchaseAmount  decimal.Decimal
	DiscountApplied decimal.Decimal
	BaseTickets     int
}

// TicketIssuanceService mints raffle tickets. Minting is idempotent on
// (user, source type, source reference): the issuance record carries a unique
// index, so a repeated event finds the existing record and returns its tickets.
type TicketIssuanceService struct {
	db       *gorm.DB
	outbox   *events.Outbox
	rules    TicketRules
	lifetime time.Duration
	now      pkg.Clock
}

func NewTicketIssuanceService(db *gorm.DB, outbox *events.Outbox, cfg infrastructures.RewardsConfig) *TicketIssuanceService {
	return &TicketIssuanceService{
		db:     db,
		outbox: outbox,
		rules: TicketRules{
			BonusThreshold:         cfg.BonusThreshold,
			DiscountBonusThreshold: cfg.DiscountBonusThreshold,
			MaxTickets:             cfg.MaxTicketsPerRedemption,
		},
		lifetime: cfg.TicketLifetime,
		now:      pkg.SystemClock,
	}
}

// IssueFromRedemption mints the redemption's tickets in its own transaction.
func (s *TicketIssuanceService) IssueFromRedemption(ctx context.Context, req RedemptionTicketRequest) (*models.IssuanceResult, error) {
	var result *models.IssuanceResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.IssueFromRedemptionTx(tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.outbox.Notify(ctx)
	return result, nil
}

// IssueFromRedemptionTx mints inside the caller's transaction. The
// tickets-generated event commits with it; the caller notifies the outbox.
func (s *TicketIssuanceService) IssueFromRedemptionTx(tx *gorm.DB, req RedemptionTicketRequest) (*models.IssuanceResult, error) {
	count := s.rules.RedemptionTickets(req.PurchaseAmount, req.DiscountApplied, req.BaseTickets)
	return s.issue(tx, req.UserID, models.TicketSourceRedemption, req.RedemptionID.String(), count)
}

// IssueFromEngagement mints tickets for a completed engagement.
func (s *TicketIssuanceService) IssueFromEngagement(ctx context.Context, engagementID uuid.UUID) (*models.IssuanceResult, error) {
	var result *models.IssuanceResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var engagement models.Engagement
		if err := tx.Where("id = ?", engagementID).First(&engagement).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewNotFoundError("Engagement not found")
			}
			return errors.NewInternalServerError(err, "Failed to get engagement")
		}

		var err error
		result, err = s.IssueFromEngagementTx(tx, &engagement)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.outbox.Notify(ctx)
	return result, nil
}

// IssueFromEngagementTx awards tickets only once the engagement is COMPLETED,
// capped like a redemption.
func (s *TicketIssuanceService) IssueFromEngagementTx(tx *gorm.DB, engagement *models.Engagement) (*models.IssuanceResult, error) {
	if engagement.Status != models.EngagementStatusCompleted {
		return nil, errors.NewConflictError(ErrCodeEngagementNotCompleted, "Engagement has not been completed")
	}
	count := EngagementTickets(engagement.BaseTickets, engagement.Type)
	if s.rules.MaxTickets > 0 && count > s.rules.MaxTickets {
		count = s.rules.MaxTickets
	}
	return s.issue(tx, engagement.UserID, models.TicketSourceEngagement, engagement.ID.String(), count)
}

// GetIssuance returns the tickets already minted for a source, if any.
func (s *TicketIssuanceService) GetIssuance(userID uuid.UUID, sourceType models.TicketSourceType, sourceReference string) (*models.IssuanceResult, error) {
	return s.existing(s.db, userID, sourceType, sourceReference)
}

func (s *TicketIssuanceService) issue(tx *gorm.DB, userID uuid.UUID, sourceType models.TicketSourceType, sourceReference string, count int) (*models.IssuanceResult, error) {
	now := s.now()
	issuance := &models.TicketIssuance{
		UserID:          userID,
		SourceType:      sourceType,
		SourceReference: sourceReference,
		TicketCount:     count,
		CreatedAt:       now,
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(issuance)
	if res.Error != nil {
		return nil, errors.NewInternalServerError(res.Error, "Failed to record ticket issuance")
	}
	if res.RowsAffected == 0 {
		logrus.WithFields(logrus.Fields{
			"user_id":          userID,
			"source_type":      sourceType,
			"source_reference": sourceReference,
		}).Info("Ticket issuance already recorded, returning existing tickets")
		return s.existing(tx, userID, sourceType, sourceReference)
	}

	var expiresAt *time.Time
	if s.lifetime > 0 {
		at := now.Add(s.lifetime)
		expiresAt = &at
	}

	tickets := make([]*models.RaffleTicket, 0, count)
	for i := 0; i < count; i++ {
		suffix, err := pkg.RandomCode(ticketNumberLength)
		if err != nil {
			return nil, errors.NewInternalServerError(err, "Failed to generate ticket number")
		}
		tickets = append(tickets, &models.RaffleTicket{
			UserID:          userID,
			IssuanceID:      issuance.ID,
			SourceType:      sourceType,
			SourceReference: sourceReference,
			TicketNumber:    ticketNumberPrefix + suffix,
			Status:          models.TicketStatusActive,
			ExpiresAt:       expiresAt,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	slices.SortFunc(tickets, func(a, b *models.RaffleTicket) int {
		return strings.Compare(a.TicketNumber, b.TicketNumber)
	})
	if len(tickets) > 0 {
		if err := tx.Create(&tickets).Error; err != nil {
			return nil, errors.NewInternalServerError(err, "Failed to create raffle tickets")
		}
		if err := s.outbox.Enqueue(tx, ticketsGeneratedEvent(issuance, tickets)); err != nil {
			return nil, errors.NewInternalServerError(err, "Failed to enqueue tickets generated event")
		}
	}

	metrics.RecordTicketsMinted(string(sourceType), len(tickets))
	logrus.WithFields(logrus.Fields{
		"user_id":          userID,
		"source_type":      sourceType,
		"source_reference": sourceReference,
		"tickets":          len(tickets),
	}).Info("Raffle tickets issued")

	return &models.IssuanceResult{Issuance: issuance, Tickets: tickets, Created: true}, nil
}

func ticketsGeneratedEvent(issuance *models.TicketIssuance, tickets []*models.RaffleTicket) models.Event {
	ticketIDs := make([]uuid.UUID, len(tickets))
	for i, t := range tickets {
		ticketIDs[i] = t.ID
	}
	return models.Event{
		RoutingKey: models.RoutingTicketsGenerated,
		EntityName: "ticket_issuances",
		EntityID:   issuance.ID.String(),
		OccurredAt: issuance.CreatedAt,
		Payload: map[string]any{
			"user_id":          issuance.UserID,
			"source_type":      issuance.SourceType,
			"source_reference": issuance.SourceReference,
			"ticket_ids":       ticketIDs,
		},
	}
}

func (s *TicketIssuanceService) existing(db *gorm.DB, userID uuid.UUID, sourceType models.TicketSourceType, sourceReference string) (*models.IssuanceResult, error) {
	var issuance models.TicketIssuance
	err := db.Where("user_id = ? AND source_type = ? AND source_reference = ?", userID, sourceType, sourceReference).
		First(&issuance).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("No tickets were issued for this source")
		}
		return nil, errors.NewInternalServerError(err, "Failed to get ticket issuance")
	}

	var tickets []*models.RaffleTicket
	if err := db.Where("issuance_id = ?", issuance.ID).Order("ticket_number ASC").Find(&tickets).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get issued tickets")
	}

	return &models.IssuanceResult{Issuance: &issuance, Tickets: tickets}, nil
}
