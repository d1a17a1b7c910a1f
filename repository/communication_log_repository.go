package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/utils"
	"gorm.io/gorm"
)

// CommunicationLogRepositoryImpl implements CommunicationLogRepository interface.
// Rows are insert-only; no update path is exposed.
type CommunicationLogRepositoryImpl struct {
	*BaseRepository[models.CommunicationLog, models.CommunicationLogFilter]
}

// NewCommunicationLogRepository creates a new communication log repository
func NewCommunicationLogRepository(db *gorm.DB) CommunicationLogRepository {
	return &CommunicationLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CommunicationLog, models.CommunicationLogFilter](db),
	}
}

// ByUUID retrieves a communication log by UUID
func (r *CommunicationLogRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.CommunicationLog, error) {
	parsed, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}
	rows, err := r.ByFilter(ctx, models.CommunicationLogFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// CountByStatus counts logs matching filter grouped by status
func (r *CommunicationLogRepositoryImpl) CountByStatus(ctx context.Context, filter models.CommunicationLogFilter) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	query := r.applyFilter(r.getDB(ctx).Model(&models.CommunicationLog{}), filter)
	if err := query.Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count communication logs by status: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

func (r *CommunicationLogRepositoryImpl) applyFilter(query *gorm.DB, filter models.CommunicationLogFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.AdminID != nil {
		query = query.Where("admin_id = ?", *filter.AdminID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Category != nil {
		query = query.Where("? = ANY(target_audience_categories)", *filter.Category)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves communication logs based on filter criteria
func (r *CommunicationLogRepositoryImpl) ByFilter(ctx context.Context, filter models.CommunicationLogFilter, orderBy string, limit, offset int) ([]*models.CommunicationLog, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.CommunicationLog{}), filter)
	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.CommunicationLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find communication logs: %w", err)
	}
	return rows, nil
}

// Count returns the number of communication logs matching the filter
func (r *CommunicationLogRepositoryImpl) Count(ctx context.Context, filter models.CommunicationLogFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.CommunicationLog{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count communication logs: %w", err)
	}
	return count, nil
}

// Exists checks if any communication log matches the filter
func (r *CommunicationLogRepositoryImpl) Exists(ctx context.Context, filter models.CommunicationLogFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
