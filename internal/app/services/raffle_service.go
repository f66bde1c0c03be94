package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/events"
	"github.com/safatanc/gsalt-rewards/internal/app/locks"
	"github.com/safatanc/gsalt-rewards/internal/app/metrics"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/safatanc/gsalt-rewards/pkg/draw"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ErrCodeRaffleNotOpen           = "RAFFLE_NOT_OPEN"
	ErrCodeRaffleNotClosed         = "RAFFLE_NOT_CLOSED"
	ErrCodeRaffleAlreadyDrawn      = "RAFFLE_ALREADY_DRAWN"
	ErrCodeRaffleFull              = "RAFFLE_FULL"
	ErrCodeRaffleMinParticipants   = "RAFFLE_MIN_PARTICIPANTS_NOT_MET"
	ErrCodeInvalidRaffleTransition = "INVALID_RAFFLE_STATUS_TRANSITION"
	ErrCodeUserNotVerified         = "USER_NOT_VERIFIED"

	drawLockTTL = 5 * time.Minute
)

type RaffleService struct {
	db        *gorm.DB
	validator *infrastructures.Validator
	verifier  UserVerifier
	locker    locks.Locker
	audit     *AuditService
	outbox    *events.Outbox
	now       pkg.Clock
	seed      func() int64
}

func NewRaffleService(
	db *gorm.DB,
	validator *infrastructures.Validator,
	verifier UserVerifier,
	locker locks.Locker,
	audit *AuditService,
	outbox *events.Outbox,
) *RaffleService {
	return &RaffleService{
		db:        db,
		validator: validator,
		verifier:  verifier,
		locker:    locker,
		audit:     audit,
		outbox:    outbox,
		now:       pkg.SystemClock,
		seed:      func() int64 { return time.Now().UnixNano() },
	}
}

// lockForUpdate adds SELECT ... FOR UPDATE; drivers without row locks ignore it.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (s *RaffleService) CreateRaffle(ctx context.Context, req *models.RaffleCreateRequest, actor *uuid.UUID) (*models.Raffle, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if !req.RegistrationStart.Before(req.RegistrationEnd) {
		return nil, errors.NewBadRequestError("Registration must start before it ends")
	}
	if req.DrawDate.Before(req.RegistrationEnd) {
		return nil, errors.NewBadRequestError("Draw date must not be before the end of registration")
	}
	if req.MaxParticipants != nil && *req.MaxParticipants < req.MinParticipants {
		return nil, errors.NewBadRequestError("Maximum participants is below the minimum")
	}

	raffle := &models.Raffle{
		Name:                 req.Name,
		Description:          req.Description,
		RegistrationStart:    req.RegistrationStart.UTC(),
		RegistrationEnd:      req.RegistrationEnd.UTC(),
		DrawDate:             req.DrawDate.UTC(),
		MinParticipants:      req.MinParticipants,
		MaxParticipants:      req.MaxParticipants,
		OnePrizePerUser:      req.OnePrizePerUser,
		RequiresVerification: req.RequiresVerification,
		Status:               models.RaffleStatusOpen,
	}
	for i, p := range req.Prizes {
		raffle.Prizes = append(raffle.Prizes, models.RafflePrize{
			Position:    i + 1,
			Name:        p.Name,
			Description: p.Description,
			Value:       p.Value,
			Status:      models.PrizeStatusPending,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(raffle).Error; err != nil {
			return errors.NewInternalServerError(err, "Failed to create raffle")
		}
		return s.audit.LogAudit(tx, raffle, models.AuditActionCreate, nil, raffle, actor)
	})
	if err != nil {
		return nil, err
	}

	return raffle, nil
}

func (s *RaffleService) GetRaffle(raffleID string) (*models.Raffle, error) {
	raffleUUID, err := uuid.Parse(raffleID)
	if err != nil {
		return nil, errors.NewBadRequestError("Invalid raffle ID format")
	}
	return getRaffle(s.db, raffleUUID)
}

func getRaffle(db *gorm.DB, raffleID uuid.UUID) (*models.Raffle, error) {
	var raffle models.Raffle
	err := db.Preload("Prizes", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Where("id = ?", raffleID).
		First(&raffle).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("Raffle not found")
		}
		return nil, errors.NewInternalServerError(err, "Failed to get raffle")
	}

	return &raffle, nil
}

func (s *RaffleService) GetRaffles(pagination *models.PaginationRequest, status *models.RaffleStatus) (*models.Pagination[[]models.Raffle], error) {
	offset := normalizePagination(pagination)

	countQuery := s.db.Model(&models.Raffle{})
	if status != nil {
		countQuery = countQuery.Where("status = ?", *status)
	}

	var totalItems int64
	if err := countQuery.Count(&totalItems).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to count raffles")
	}

	var raffles []models.Raffle
	query := s.db.Order("draw_date ASC").Limit(pagination.Limit).Offset(offset)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if err := query.Find(&raffles).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get raffles")
	}

	return paginate(pagination, totalItems, raffles), nil
}

// EnterRaffle spends the given ACTIVE tickets of userID on the raffle.
func (s *RaffleService) EnterRaffle(ctx context.Context, raffleID string, userID uuid.UUID, req *models.RaffleEntryRequest) (*models.RaffleEntry, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	raffleUUID, err := uuid.Parse(raffleID)
	if err != nil {
		return nil, errors.NewBadRequestError("Invalid raffle ID format")
	}
	ticketIDs := make([]uuid.UUID, 0, len(req.TicketIDs))
	seen := make(map[uuid.UUID]bool, len(req.TicketIDs))
	for _, raw := range req.TicketIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.NewBadRequestError("Invalid ticket ID format")
		}
		if !seen[id] {
			seen[id] = true
			ticketIDs = append(ticketIDs, id)
		}
	}

	now := s.now()
	var entry *models.RaffleEntry

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var raffle models.Raffle
		if err := lockForUpdate(tx).Where("id = ?", raffleUUID).First(&raffle).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewNotFoundError("Raffle not found")
			}
			return errors.NewInternalServerError(err, "Failed to get raffle")
		}
		if !raffle.AcceptsEntries(now) {
			return errors.NewConflictError(ErrCodeRaffleNotOpen, "Raffle is not accepting entries")
		}
		if raffle.RequiresVerification {
			verified, err := s.verifier.IsUserVerified(ctx, userID)
			if err != nil {
				return err
			}
			if !verified {
				return errors.NewForbiddenError("Raffle requires a verified account").WithCode(ErrCodeUserNotVerified)
			}
		}
		if err := checkCapacity(tx, &raffle, userID); err != nil {
			return err
		}

		var tickets []*models.RaffleTicket
		if err := lockForUpdate(tx).Where("id IN ?", ticketIDs).Find(&tickets).Error; err != nil {
			return errors.NewInternalServerError(err, "Failed to get raffle tickets")
		}
		if len(tickets) != len(ticketIDs) {
			return errors.NewNotFoundError("One or more raffle tickets were not found")
		}

		for _, t := range tickets {
			if t.UserID != userID {
				return errors.NewConflictError(models.ErrCodeNotTicketOwner, "Ticket "+t.TicketNumber+" belongs to another user")
			}
			version := t.Version
			event, err := t.UseInRaffle(raffle.ID, now)
			if err != nil {
				return err
			}
			if err := saveTicket(tx, t, version); err != nil {
				return err
			}
			if err := s.outbox.Enqueue(tx, event); err != nil {
				return errors.NewInternalServerError(err, "Failed to enqueue ticket event")
			}
		}

		entry = &models.RaffleEntry{
			RaffleID:    raffle.ID,
			UserID:      userID,
			TicketCount: len(tickets),
			EnteredAt:   now,
		}
		if err := tx.Create(entry).Error; err != nil {
			return errors.NewInternalServerError(err, "Failed to create raffle entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"raffle_id": raffleUUID,
		"user_id":   userID,
		"tickets":   entry.TicketCount,
	}).Info("Raffle entered")

	s.outbox.Notify(ctx)
	return entry, nil
}

// checkCapacity refuses a new participant once MaxParticipants distinct users
// have entered. Users already in the raffle may add more tickets.
func checkCapacity(tx *gorm.DB, raffle *models.Raffle, userID uuid.UUID) error {
	if raffle.MaxParticipants == nil {
		return nil
	}

	var already int64
	if err := tx.Model(&models.RaffleEntry{}).
		Where("raffle_id = ? AND user_id = ?", raffle.ID, userID).
		Count(&already).Error; err != nil {
		return errors.NewInternalServerError(err, "Failed to count raffle entries")
	}
	if already > 0 {
		return nil
	}

	participants, err := countParticipants(tx, raffle.ID)
	if err != nil {
		return err
	}
	if participants >= int64(*raffle.MaxParticipants) {
		return errors.NewConflictError(ErrCodeRaffleFull, "Raffle has reached its participant limit")
	}
	return nil
}

func countParticipants(tx *gorm.DB, raffleID uuid.UUID) (int64, error) {
	var participants int64
	if err := tx.Model(&models.RaffleEntry{}).
		Where("raffle_id = ?", raffleID).
		Distinct("user_id").
		Count(&participants).Error; err != nil {
		return 0, errors.NewInternalServerError(err, "Failed to count raffle participants")
	}
	return participants, nil
}

func (s *RaffleService) CloseRaffle(ctx context.Context, raffleID string, actor *uuid.UUID) (*models.Raffle, error) {
	return s.transition(ctx, raffleID, []models.RaffleStatus{models.RaffleStatusOpen}, models.RaffleStatusClosed, actor)
}

// CancelRaffle stops a raffle that has not been drawn. Tickets already
// entered stay USED.
func (s *RaffleService) CancelRaffle(ctx context.Context, raffleID string, actor *uuid.UUID) (*models.Raffle, error) {
	return s.transition(ctx, raffleID, []models.RaffleStatus{models.RaffleStatusOpen, models.RaffleStatusClosed}, models.RaffleStatusCancelled, actor)
}

func (s *RaffleService) transition(ctx context.Context, raffleID string, from []models.RaffleStatus, to models.RaffleStatus, actor *uuid.UUID) (*models.Raffle, error) {
	raffle, err := s.GetRaffle(raffleID)
	if err != nil {
		return nil, err
	}
	previous := raffle.Status

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Raffle{}).
			Where("id = ? AND status IN ? AND version = ?", raffle.ID, from, raffle.Version).
			Updates(map[string]any{
				"status":  to,
				"version": gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return errors.NewInternalServerError(res.Error, "Failed to update raffle status")
		}
		if res.RowsAffected == 0 {
			return errors.NewConflictError(ErrCodeInvalidRaffleTransition,
				"Raffle cannot move from "+string(previous)+" to "+string(to))
		}
		raffle.Status = to
		raffle.Version++
		return s.audit.LogStatusChange(tx, raffle, string(previous), string(to), nil, nil, actor)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"raffle_id":   raffle.ID,
		"from_status": previous,
		"to_status":   to,
	}).Info("Raffle status changed")

	return raffle, nil
}

// DrawWinners selects winners for a CLOSED raffle. Draws of the same raffle
// are serialised through the locker, and everything the draw writes is
// committed in one transaction, so a crashed draw leaves no winners behind
// and can simply be run again. A raffle that already has winners is never
// redrawn.
func (s *RaffleService) DrawWinners(ctx context.Context, raffleID string, seed *int64) (result *models.DrawResult, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.RecordDrawDuration(status, time.Since(start).Seconds())
	}()

	raffleUUID, err := uuid.Parse(raffleID)
	if err != nil {
		return nil, errors.NewBadRequestError("Invalid raffle ID format")
	}

	release, err := s.locker.Acquire(ctx, "raffle-draw:"+raffleUUID.String(), drawLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	drawSeed := s.seed()
	if seed != nil {
		drawSeed = *seed
	}
	now := s.now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		raffle, err := getRaffle(lockForUpdate(tx), raffleUUID)
		if err != nil {
			return err
		}
		if err := s.checkDrawable(tx, raffle); err != nil {
			return err
		}

		candidates, err := s.eligibleCandidates(ctx, tx, raffle)
		if err != nil {
			return err
		}

		picks := draw.Select(drawSeed, len(raffle.Prizes), candidates, draw.Options{OnePrizePerUser: raffle.OnePrizePerUser})

		result = &models.DrawResult{
			Seed:             drawSeed,
			EligibleTickets:  len(candidates),
			Winners:          make([]models.Winner, 0, len(picks.Picks)),
			UnassignedPrizes: []models.RafflePrize{},
		}

		for _, pick := range picks.Picks {
			prize := &raffle.Prizes[pick.Slot]
			winner, event, err := s.award(tx, raffle, prize, pick.Candidate.TicketID, now)
			if err != nil {
				return err
			}
			result.Winners = append(result.Winners, *winner)
			if err := s.outbox.Enqueue(tx, event); err != nil {
				return errors.NewInternalServerError(err, "Failed to enqueue ticket event")
			}
		}

		for _, slot := range picks.Unassigned {
			prize := &raffle.Prizes[slot]
			prize.Status = models.PrizeStatusUnassigned
			prize.NeedsReview = true
			if err := tx.Model(prize).Updates(map[string]any{
				"status":       prize.Status,
				"needs_review": true,
			}).Error; err != nil {
				return errors.NewInternalServerError(err, "Failed to flag unassigned prize")
			}
			result.UnassignedPrizes = append(result.UnassignedPrizes, *prize)
		}

		res := tx.Model(&models.Raffle{}).
			Where("id = ? AND version = ?", raffle.ID, raffle.Version).
			Updates(map[string]any{
				"status":    models.RaffleStatusCompleted,
				"draw_seed": drawSeed,
				"drawn_at":  now,
				"version":   gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return errors.NewInternalServerError(res.Error, "Failed to complete raffle")
		}
		if res.RowsAffected == 0 {
			return errors.ErrConcurrentModification
		}
		raffle.Status = models.RaffleStatusCompleted
		raffle.DrawSeed = &drawSeed
		raffle.DrawnAt = &now
		raffle.Version++
		result.Raffle = raffle

		if err := s.audit.LogAudit(tx, raffle, models.AuditActionDraw, nil, result, nil); err != nil {
			return err
		}
		err = s.audit.LogStatusChange(tx, raffle, string(models.RaffleStatusClosed), string(models.RaffleStatusCompleted), nil, map[string]any{
			"seed":              drawSeed,
			"eligible_tickets":  len(candidates),
			"winners":           len(result.Winners),
			"unassigned_prizes": len(result.UnassignedPrizes),
		}, nil)
		if err != nil {
			return err
		}
		return s.outbox.Enqueue(tx, models.NewEvent(models.RoutingWinnersSelected, raffle, now, map[string]any{
			"seed":              drawSeed,
			"winners":           result.Winners,
			"unassigned_prizes": result.UnassignedPrizes,
		}))
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"raffle_id":         raffleUUID,
		"seed":              drawSeed,
		"eligible_tickets":  result.EligibleTickets,
		"winners":           len(result.Winners),
		"unassigned_prizes": len(result.UnassignedPrizes),
	}).Info("Raffle winners drawn")
	if len(result.UnassignedPrizes) > 0 {
		logrus.WithField("raffle_id", raffleUUID).Warn("Raffle has prizes without winners, manual review required")
	}

	s.outbox.Notify(ctx)

	return result, nil
}

func (s *RaffleService) checkDrawable(tx *gorm.DB, raffle *models.Raffle) error {
	switch raffle.Status {
	case models.RaffleStatusClosed:
	case models.RaffleStatusCompleted:
		return errors.NewConflictError(ErrCodeRaffleAlreadyDrawn, "Raffle has already been drawn")
	default:
		return errors.NewConflictError(ErrCodeRaffleNotClosed, "Raffle must be closed before drawing")
	}

	var existing int64
	if err := tx.Model(&models.Winner{}).Where("raffle_id = ?", raffle.ID).Count(&existing).Error; err != nil {
		return errors.NewInternalServerError(err, "Failed to count winners")
	}
	if existing > 0 {
		return errors.NewConflictError(ErrCodeRaffleAlreadyDrawn, "Raffle already has winners")
	}

	participants, err := countParticipants(tx, raffle.ID)
	if err != nil {
		return err
	}
	if participants < int64(raffle.MinParticipants) {
		return errors.NewConflictError(ErrCodeRaffleMinParticipants, "Raffle has not reached its minimum participants")
	}
	return nil
}

// eligibleCandidates returns the tickets entered into the raffle that have
// not won yet, restricted to verified owners when the raffle asks for it.
func (s *RaffleService) eligibleCandidates(ctx context.Context, tx *gorm.DB, raffle *models.Raffle) ([]draw.Candidate, error) {
	var tickets []models.RaffleTicket
	if err := tx.Where("raffle_id = ? AND status = ? AND is_winner = ?", raffle.ID, models.TicketStatusUsed, false).
		Find(&tickets).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get eligible tickets")
	}

	verified := map[uuid.UUID]bool{}
	candidates := make([]draw.Candidate, 0, len(tickets))
	for _, t := range tickets {
		if raffle.RequiresVerification {
			ok, checked := verified[t.UserID]
			if !checked {
				var err error
				if ok, err = s.verifier.IsUserVerified(ctx, t.UserID); err != nil {
					return nil, err
				}
				verified[t.UserID] = ok
			}
			if !ok {
				continue
			}
		}
		candidates = append(candidates, draw.Candidate{TicketID: t.ID, UserID: t.UserID})
	}
	return candidates, nil
}

func (s *RaffleService) award(tx *gorm.DB, raffle *models.Raffle, prize *models.RafflePrize, ticketID uuid.UUID, now time.Time) (*models.Winner, models.Event, error) {
	ticket, err := getTicket(tx, ticketID)
	if err != nil {
		return nil, models.Event{}, err
	}

	version := ticket.Version
	event, err := ticket.MarkAsWinner(raffle.ID, prize.ID, prize.Name, now)
	if err != nil {
		return nil, event, err
	}
	if err := saveTicket(tx, ticket, version); err != nil {
		return nil, event, err
	}

	winner := &models.Winner{
		RaffleID: raffle.ID,
		PrizeID:  prize.ID,
		TicketID: ticket.ID,
		UserID:   ticket.UserID,
		Position: prize.Position,
	}
	if err := tx.Create(winner).Error; err != nil {
		return nil, event, errors.NewInternalServerError(err, "Failed to create winner")
	}

	prize.Status = models.PrizeStatusAwarded
	if err := tx.Model(prize).Update("status", prize.Status).Error; err != nil {
		return nil, event, errors.NewInternalServerError(err, "Failed to update prize")
	}

	return winner, event, nil
}

func (s *RaffleService) GetWinners(raffleID string) ([]models.Winner, error) {
	raffle, err := s.GetRaffle(raffleID)
	if err != nil {
		return nil, err
	}

	var winners []models.Winner
	if err := s.db.Where("raffle_id = ?", raffle.ID).Order("position ASC").Find(&winners).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get winners")
	}
	return winners, nil
}
