package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/events"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ErrCodeEngagementNotStarted     = "ENGAGEMENT_NOT_STARTED"
	ErrCodeAdvertisementNotActive   = "ADVERTISEMENT_NOT_ACTIVE"
	ErrCodeAdvertisementExists      = "ADVERTISEMENT_ALREADY_EXISTS"
)

type EngagementService struct {
	db        *gorm.DB
	validator *infrastructures.Validator
	issuance  *TicketIssuanceService
	outbox    *events.Outbox
	now       pkg.Clock
}

func NewEngagementService(db *gorm.DB, validator *infrastructures.Validator, issuance *TicketIssuanceService, outbox *events.Outbox) *EngagementService {
	return &EngagementService{
		db:        db,
		validator: validator,
		issuance:  issuance,
		outbox:    outbox,
		now:       pkg.SystemClock,
	}
}

func (s *EngagementService) CreateAdvertisement(ctx context.Context, req *models.AdvertisementCreateRequest) (*models.Advertisement, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	ad := &models.Advertisement{
		ID:          req.ID,
		Name:        req.Name,
		Type:        req.Type,
		BaseTickets: req.BaseTickets,
		Status:      models.AdvertisementStatusActive,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ad)
	if res.Error != nil {
		return nil, errors.NewInternalServerError(res.Error, "Failed to create advertisement")
	}
	if res.RowsAffected == 0 {
		return nil, errors.NewConflictError(ErrCodeAdvertisementExists, "Advertisement already exists")
	}

	return ad, nil
}

func (s *EngagementService) GetAdvertisement(advertisementID string) (*models.Advertisement, error) {
	var ad models.Advertisement
	err := s.db.Where("id = ?", advertisementID).First(&ad).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("Advertisement not found")
		}
		return nil, errors.NewInternalServerError(err, "Failed to get advertisement")
	}

	return &ad, nil
}

func (s *EngagementService) GetAdvertisements(pagination *models.PaginationRequest, status *models.AdvertisementStatus) (*models.Pagination[[]models.Advertisement], error) {
	offset := normalizePagination(pagination)

	countQuery := s.db.Model(&models.Advertisement{})
	if status != nil {
		countQuery = countQuery.Where("status = ?", *status)
	}

	var totalItems int64
	if err := countQuery.Count(&totalItems).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to count advertisements")
	}

	var ads []models.Advertisement
	query := s.db.Order("created_at DESC").Limit(pagination.Limit).Offset(offset)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if err := query.Find(&ads).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get advertisements")
	}

	return paginate(pagination, totalItems, ads), nil
}

// UpdateAdvertisementStatus toggles whether new engagements may start.
// Engagements already started keep the values they snapshotted.
func (s *EngagementService) UpdateAdvertisementStatus(ctx context.Context, advertisementID string, req *models.AdvertisementStatusUpdateRequest) (*models.Advertisement, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	ad, err := s.GetAdvertisement(advertisementID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(ad).Update("status", req.Status).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to update advertisement status")
	}
	ad.Status = req.Status

	return ad, nil
}

// StartEngagement opens the user's engagement with an advertisement. Type and
// base tickets are copied from the advertisement. A user has at most one
// engagement per advertisement; starting again returns the existing one.
func (s *EngagementService) StartEngagement(ctx context.Context, userID uuid.UUID, req *models.EngagementStartRequest) (*models.Engagement, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	ad, err := s.GetAdvertisement(req.AdvertisementID)
	if err != nil {
		return nil, err
	}
	if !ad.IsActive() {
		return nil, errors.NewConflictError(ErrCodeAdvertisementNotActive, "Advertisement is not accepting engagements")
	}

	engagement := &models.Engagement{
		UserID:          userID,
		AdvertisementID: ad.ID,
		Type:            ad.Type,
		Status:          models.EngagementStatusStarted,
		BaseTickets:     ad.BaseTickets,
		StartedAt:       s.now(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(engagement)
	if res.Error != nil {
		return nil, errors.NewInternalServerError(res.Error, "Failed to create engagement")
	}
	if res.RowsAffected == 0 {
		var existing models.Engagement
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND advertisement_id = ?", userID, ad.ID).
			First(&existing).Error
		if err != nil {
			return nil, errors.NewInternalServerError(err, "Failed to get engagement")
		}
		return &existing, nil
	}

	return engagement, nil
}

func (s *EngagementService) GetEngagement(engagementID string) (*models.Engagement, error) {
	engagementUUID, err := uuid.Parse(engagementID)
	if err != nil {
		return nil, errors.NewBadRequestError("Invalid engagement ID format")
	}

	var engagement models.Engagement
	err = s.db.Where("id = ?", engagementUUID).First(&engagement).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("Engagement not found")
		}
		return nil, errors.NewInternalServerError(err, "Failed to get engagement")
	}

	return &engagement, nil
}

// CompleteEngagement marks the engagement COMPLETED and mints its tickets.
// Completing an already completed engagement returns the tickets minted the
// first time.
func (s *EngagementService) CompleteEngagement(ctx context.Context, engagementID string, userID uuid.UUID) (*models.Engagement, *models.IssuanceResult, error) {
	engagement, err := s.GetEngagement(engagementID)
	if err != nil {
		return nil, nil, err
	}
	if engagement.UserID != userID {
		return nil, nil, errors.NewForbiddenError("Engagement belongs to another user")
	}
	if engagement.Status == models.EngagementStatusAbandoned {
		return nil, nil, errors.NewConflictError(ErrCodeEngagementNotStarted, "Engagement was abandoned")
	}

	var result *models.IssuanceResult
	justCompleted := false
	now := s.now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if engagement.Status == models.EngagementStatusStarted {
			res := tx.Model(&models.Engagement{}).
				Where("id = ? AND status = ?", engagement.ID, models.EngagementStatusStarted).
				Updates(map[string]any{
					"status":       models.EngagementStatusCompleted,
					"completed_at": now,
				})
			if res.Error != nil {
				return errors.NewInternalServerError(res.Error, "Failed to complete engagement")
			}
			justCompleted = res.RowsAffected == 1
			engagement.Status = models.EngagementStatusCompleted
			engagement.CompletedAt = &now
		}

		var err error
		result, err = s.issuance.IssueFromEngagementTx(tx, engagement)
		if err != nil {
			return err
		}

		if justCompleted {
			err = s.outbox.Enqueue(tx, models.NewEvent(models.RoutingEngagementCompleted, engagement, now, map[string]any{
				"user_id":          engagement.UserID,
				"advertisement_id": engagement.AdvertisementID,
				"type":             engagement.Type,
			}))
			if err != nil {
				return errors.NewInternalServerError(err, "Failed to enqueue engagement event")
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if justCompleted {
		logrus.WithFields(logrus.Fields{
			"engagement_id":    engagement.ID,
			"user_id":          engagement.UserID,
			"advertisement_id": engagement.AdvertisementID,
			"type":             engagement.Type,
			"tickets":          len(result.Tickets),
		}).Info("Engagement completed")
	}
	s.outbox.Notify(ctx)

	return engagement, result, nil
}

func (s *EngagementService) AbandonEngagement(ctx context.Context, engagementID string, userID uuid.UUID) (*models.Engagement, error) {
	engagement, err := s.GetEngagement(engagementID)
	if err != nil {
		return nil, err
	}
	if engagement.UserID != userID {
		return nil, errors.NewForbiddenError("Engagement belongs to another user")
	}

	res := s.db.WithContext(ctx).Model(&models.Engagement{}).
		Where("id = ? AND status = ?", engagement.ID, models.EngagementStatusStarted).
		Update("status", models.EngagementStatusAbandoned)
	if res.Error != nil {
		return nil, errors.NewInternalServerError(res.Error, "Failed to abandon engagement")
	}
	if res.RowsAffected == 0 {
		return nil, errors.NewConflictError(ErrCodeEngagementNotStarted, "Only started engagements can be abandoned")
	}

	engagement.Status = models.EngagementStatusAbandoned
	return engagement, nil
}
