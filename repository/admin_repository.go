package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/wilaya-connect/models"
	"gorm.io/gorm"
)

type AdminRepositoryImpl struct {
	*BaseRepository[models.Admin, models.AdminFilter]
}

func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &AdminRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Admin, models.AdminFilter](db),
	}
}

func (r *AdminRepositoryImpl) ByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var admin models.Admin
	err := r.getDB(ctx).Where("username = ?", username).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load admin %q: %w", username, err)
	}
	return &admin, nil
}

func (r *AdminRepositoryImpl) scoped(ctx context.Context, filter models.AdminFilter) *gorm.DB {
	q := r.getDB(ctx).Model(&models.Admin{})
	if filter.ID != nil {
		q = q.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		q = q.Where("uuid = ?", *filter.UUID)
	}
	if filter.Username != nil {
		q = q.Where("username = ?", *filter.Username)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}
	return q
}

func (r *AdminRepositoryImpl) ByFilter(ctx context.Context, filter models.AdminFilter, orderBy string, limit, offset int) ([]*models.Admin, error) {
	if orderBy == "" {
		orderBy = "username ASC"
	}
	q := r.scoped(ctx, filter).Order(orderBy)
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	var admins []*models.Admin
	if err := q.Find(&admins).Error; err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	return admins, nil
}

func (r *AdminRepositoryImpl) Count(ctx context.Context, filter models.AdminFilter) (int64, error) {
	var n int64
	if err := r.scoped(ctx, filter).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return n, nil
}

func (r *AdminRepositoryImpl) Exists(ctx context.Context, filter models.AdminFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}
