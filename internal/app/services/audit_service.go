package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{
		db: db,
	}
}

// conn returns tx when the caller is inside a transaction.
func (s *AuditService) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// LogAudit creates an audit log entry for a change to entity
func (s *AuditService) LogAudit(tx *gorm.DB, entity models.Identifiable, action models.AuditAction, oldData, newData any, changedBy *uuid.UUID) error {
	oldJSON, err := toJSON(oldData)
	if err != nil {
		return fmt.Errorf("failed to marshal old data: %w", err)
	}
	newJSON, err := toJSON(newData)
	if err != nil {
		return fmt.Errorf("failed to marshal new data: %w", err)
	}

	auditLog := &models.AuditLog{
		EntityType: entity.EntityName(),
		EntityID:   entity.EntityID(),
		Action:     action,
		OldData:    oldJSON,
		NewData:    newJSON,
		ChangedBy:  changedBy,
		ChangedAt:  time.Now(),
	}

	if err := s.conn(tx).Create(auditLog).Error; err != nil {
		return errors.NewInternalServerError(err, "Failed to create audit log")
	}

	return nil
}

// LogStatusChange appends a status history row for entity
func (s *AuditService) LogStatusChange(
	tx *gorm.DB,
	entity models.Identifiable,
	fromStatus, toStatus string,
	reason *string,
	metadata map[string]any,
	createdBy *uuid.UUID,
) error {
	metadataJSON, err := toJSON(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	history := &models.StatusHistory{
		EntityType: entity.EntityName(),
		EntityID:   entity.EntityID(),
		ToStatus:   toStatus,
		Reason:     reason,
		Metadata:   metadataJSON,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now(),
	}
	if fromStatus != "" {
		history.FromStatus = &fromStatus
	}

	if err := s.conn(tx).Create(history).Error; err != nil {
		return errors.NewInternalServerError(err, "Failed to create status history")
	}

	return nil
}

// GetStatusHistory retrieves the status history of one entity, newest first
func (s *AuditService) GetStatusHistory(entityType, entityID string) ([]*models.StatusHistory, error) {
	var history []*models.StatusHistory
	if err := s.db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Find(&history).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get status history")
	}

	return history, nil
}

// GetAuditLogs retrieves audit logs with pagination
func (s *AuditService) GetAuditLogs(pagination *models.PaginationRequest, entityType *string) (*models.Pagination[[]models.AuditLog], error) {
	if pagination.Limit <= 0 {
		pagination.Limit = 10
	}
	if pagination.Page <= 0 {
		pagination.Page = 1
	}

	offset := (pagination.Page - 1) * pagination.Limit

	countQuery := s.db.Model(&models.AuditLog{})
	if entityType != nil {
		countQuery = countQuery.Where("entity_type = ?", *entityType)
	}

	var totalItems int64
	if err := countQuery.Count(&totalItems).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to count audit logs")
	}

	var logs []models.AuditLog
	query := s.db.Order("changed_at DESC")
	if entityType != nil {
		query = query.Where("entity_type = ?", *entityType)
	}
	if pagination.Limit > 0 {
		query = query.Limit(pagination.Limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&logs).Error; err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to get audit logs")
	}

	return paginate(pagination, totalItems, logs), nil
}

func toJSON(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok && m == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// paginate builds the pagination envelope shared by every list endpoint.
func paginate[T any](pagination *models.PaginationRequest, totalItems int64, items T) *models.Pagination[T] {
	totalPages := int((totalItems + int64(pagination.Limit) - 1) / int64(pagination.Limit))

	return &models.Pagination[T]{
		Page:       pagination.Page,
		Limit:      pagination.Limit,
		TotalPages: totalPages,
		TotalItems: int(totalItems),
		HasNext:    pagination.Page < totalPages,
		HasPrev:    pagination.Page > 1,
		Items:      items,
	}
}

// normalizePagination applies the defaults used by every list endpoint.
func normalizePagination(pagination *models.PaginationRequest) (offset int) {
	if pagination.Limit <= 0 {
		pagination.Limit = 10
	}
	if pagination.Page <= 0 {
		pagination.Page = 1
	}
	return (pagination.Page - 1) * pagination.Limit
}
