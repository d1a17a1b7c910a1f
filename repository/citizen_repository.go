package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const findPushTargetsSQL = `SELECT c.id, c.push_tokens
FROM citizens c
WHERE cardinality(array_remove(c.push_tokens, '')) > 0
  AND EXISTS (
    SELECT 1 FROM notification_subscriptions s
    WHERE s.citizen_id = c.id
      AND s.is_active = TRUE
      AND s.category_name = ANY(?)
  )
ORDER BY c.id`

const findPhoneRecipientsSQL = `SELECT DISTINCT c.phone_number
FROM citizens c
WHERE c.phone_number <> ''
  AND EXISTS (
    SELECT 1 FROM notification_subscriptions s
    WHERE s.citizen_id = c.id
      AND s.is_active = TRUE
      AND s.category_name = ANY(?)
  )
ORDER BY c.phone_number`

// CitizenRepositoryImpl implements CitizenRepository interface
type CitizenRepositoryImpl struct {
	*BaseRepository[models.Citizen, models.CitizenFilter]
}

// NewCitizenRepository creates a new citizen repository
func NewCitizenRepository(db *gorm.DB) CitizenRepository {
	return &CitizenRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Citizen, models.CitizenFilter](db),
	}
}

// ByUUID retrieves a citizen by UUID
func (r *CitizenRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Citizen, error) {
	parsed, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}
	rows, err := r.ByFilter(ctx, models.CitizenFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByPhoneNumber retrieves a citizen by phone number
func (r *CitizenRepositoryImpl) ByPhoneNumber(ctx context.Context, phoneNumber string) (*models.Citizen, error) {
	rows, err := r.ByFilter(ctx, models.CitizenFilter{PhoneNumber: &phoneNumber}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FindBySubscribedCategories resolves the push audience for categoryNames.
// An empty category list yields an empty result without touching the database.
func (r *CitizenRepositoryImpl) FindBySubscribedCategories(ctx context.Context, categoryNames []string) ([]CitizenPushTarget, error) {
	names := utils.CleanStrings(categoryNames)
	if len(names) == 0 {
		return []CitizenPushTarget{}, nil
	}

	var rows []CitizenPushTarget
	if err := r.getDB(ctx).Raw(findPushTargetsSQL, pq.StringArray(names)).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find citizens by subscribed categories: %w", err)
	}

	targets := make([]CitizenPushTarget, 0, len(rows))
	for _, row := range rows {
		tokens := utils.CleanStrings(row.PushTokens)
		if len(tokens) == 0 {
			continue
		}
		targets = append(targets, CitizenPushTarget{ID: row.ID, PushTokens: tokens})
	}
	return targets, nil
}

// FindPhoneNumbersBySubscribedCategories resolves distinct phone numbers of
// citizens actively subscribed to any of categoryNames.
func (r *CitizenRepositoryImpl) FindPhoneNumbersBySubscribedCategories(ctx context.Context, categoryNames []string) ([]string, error) {
	names := utils.CleanStrings(categoryNames)
	if len(names) == 0 {
		return []string{}, nil
	}

	var phones []string
	if err := r.getDB(ctx).Raw(findPhoneRecipientsSQL, pq.StringArray(names)).Scan(&phones).Error; err != nil {
		return nil, fmt.Errorf("failed to find phone numbers by subscribed categories: %w", err)
	}
	return utils.CleanStrings(phones), nil
}

// AddPushToken appends token to the citizen's tokens unless it is already present
func (r *CitizenRepositoryImpl) AddPushToken(ctx context.Context, citizenID uint, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("push token is empty")
	}

	err := r.getDB(ctx).Exec(
		`UPDATE citizens SET push_tokens = array_append(push_tokens, ?), updated_at = ? WHERE id = ? AND NOT (? = ANY(push_tokens))`,
		token, utils.UTCNow(), citizenID, token,
	).Error
	if err != nil {
		return fmt.Errorf("failed to add push token for citizen %d: %w", citizenID, err)
	}
	return nil
}

// RemovePushToken removes every occurrence of token from the citizen's tokens
func (r *CitizenRepositoryImpl) RemovePushToken(ctx context.Context, citizenID uint, token string) error {
	err := r.getDB(ctx).Exec(
		`UPDATE citizens SET push_tokens = array_remove(push_tokens, ?), updated_at = ? WHERE id = ? AND ? = ANY(push_tokens)`,
		token, utils.UTCNow(), citizenID, token,
	).Error
	if err != nil {
		return fmt.Errorf("failed to remove push token for citizen %d: %w", citizenID, err)
	}
	return nil
}

func (r *CitizenRepositoryImpl) applyFilter(query *gorm.DB, filter models.CitizenFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.PhoneNumber != nil {
		query = query.Where("phone_number = ?", *filter.PhoneNumber)
	}
	if filter.HasPushToken != nil {
		if *filter.HasPushToken {
			query = query.Where("cardinality(array_remove(push_tokens, '')) > 0")
		} else {
			query = query.Where("cardinality(array_remove(push_tokens, '')) = 0")
		}
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves citizens based on filter criteria
func (r *CitizenRepositoryImpl) ByFilter(ctx context.Context, filter models.CitizenFilter, orderBy string, limit, offset int) ([]*models.Citizen, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Citizen{}), filter)
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

	var rows []*models.Citizen
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find citizens: %w", err)
	}
	return rows, nil
}

// Count returns the number of citizens matching the filter
func (r *CitizenRepositoryImpl) Count(ctx context.Context, filter models.CitizenFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Citizen{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count citizens: %w", err)
	}
	return count, nil
}

// Exists checks if any citizen matches the filter
func (r *CitizenRepositoryImpl) Exists(ctx context.Context, filter models.CitizenFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
