package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationSubscriptionRepositoryImpl implements NotificationSubscriptionRepository interface
type NotificationSubscriptionRepositoryImpl struct {
	*BaseRepository[models.NotificationSubscription, models.NotificationSubscriptionFilter]
}

// NewNotificationSubscriptionRepository creates a new notification subscription repository
func NewNotificationSubscriptionRepository(db *gorm.DB) NotificationSubscriptionRepository {
	return &NotificationSubscriptionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.NotificationSubscription, models.NotificationSubscriptionFilter](db),
	}
}

// ListByCitizen lists every subscription of a citizen ordered by category name
func (r *NotificationSubscriptionRepositoryImpl) ListByCitizen(ctx context.Context, citizenID uint) ([]*models.NotificationSubscription, error) {
	return r.ByFilter(ctx, models.NotificationSubscriptionFilter{CitizenID: &citizenID}, "category_name ASC", 0, 0)
}

// Upsert writes the subscription keyed by (citizen_id, category_name)
func (r *NotificationSubscriptionRepositoryImpl) Upsert(ctx context.Context, sub *models.NotificationSubscription) error {
	if sub.IsActive == nil {
		sub.IsActive = utils.ToPtr(true)
	}
	sub.UpdatedAt = utils.UTCNow()

	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "citizen_id"}, {Name: "category_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "updated_at"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to upsert subscription %q for citizen %d: %w", sub.CategoryName, sub.CitizenID, err)
	}
	return nil
}

func (r *NotificationSubscriptionRepositoryImpl) applyFilter(query *gorm.DB, filter models.NotificationSubscriptionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.CitizenID != nil {
		query = query.Where("citizen_id = ?", *filter.CitizenID)
	}
	if filter.CategoryName != nil {
		query = query.Where("category_name = ?", *filter.CategoryName)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves subscriptions based on filter criteria
func (r *NotificationSubscriptionRepositoryImpl) ByFilter(ctx context.Context, filter models.NotificationSubscriptionFilter, orderBy string, limit, offset int) ([]*models.NotificationSubscription, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.NotificationSubscription{}), filter)
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

	var rows []*models.NotificationSubscription
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find subscriptions: %w", err)
	}
	return rows, nil
}

// Count returns the number of subscriptions matching the filter
func (r *NotificationSubscriptionRepositoryImpl) Count(ctx context.Context, filter models.NotificationSubscriptionFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.NotificationSubscription{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return count, nil
}

// Exists checks if any subscription matches the filter
func (r *NotificationSubscriptionRepositoryImpl) Exists(ctx context.Context, filter models.NotificationSubscriptionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
