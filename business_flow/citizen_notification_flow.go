package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/wilaya-connect/app/dto"
	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/repository"
	"github.com/amirphl/wilaya-connect/utils"
	"gorm.io/gorm"
)

// CitizenNotificationFlow handles the citizen side of notifications: device
// tokens and per-category preferences
type CitizenNotificationFlow interface {
	RegisterPushToken(ctx context.Context, citizenID uint, req *dto.PushTokenRequest) (*dto.PushTokenResponse, error)
	RemovePushToken(ctx context.Context, citizenID uint, req *dto.PushTokenRequest) (*dto.PushTokenResponse, error)
	GetNotificationPreferences(ctx context.Context, citizenID uint) (*dto.NotificationPreferencesResponse, error)
	UpdateNotificationPreferences(ctx context.Context, citizenID uint, req *dto.UpdateNotificationPreferencesRequest) (*dto.NotificationPreferencesResponse, error)
}

type CitizenNotificationFlowImpl struct {
	citizenRepo repository.CitizenRepository
	subRepo     repository.NotificationSubscriptionRepository
	registry    TokenRegistry
	db          *gorm.DB
}

func NewCitizenNotificationFlow(
	citizenRepo repository.CitizenRepository,
	subRepo repository.NotificationSubscriptionRepository,
	registry TokenRegistry,
	db *gorm.DB,
) CitizenNotificationFlow {
	return &CitizenNotificationFlowImpl{
		citizenRepo: citizenRepo,
		subRepo:     subRepo,
		registry:    registry,
		db:          db,
	}
}

func (f *CitizenNotificationFlowImpl) ensureCitizen(ctx context.Context, citizenID uint) error {
	citizen, err := f.citizenRepo.ByID(ctx, citizenID)
	if err != nil {
		return NewBusinessError("CITIZEN_LOOKUP_FAILED", "Failed to look up citizen", err)
	}
	if citizen == nil {
		return NewBusinessError("CITIZEN_NOT_FOUND", "Citizen not found", ErrCitizenNotFound)
	}
	return nil
}

func (f *CitizenNotificationFlowImpl) RegisterPushToken(ctx context.Context, citizenID uint, req *dto.PushTokenRequest) (*dto.PushTokenResponse, error) {
	if req == nil || strings.TrimSpace(req.Token) == "" {
		return nil, NewBusinessError("PUSH_TOKEN_REQUIRED", "Push token is required", ErrInvalidPushToken)
	}
	if err := f.ensureCitizen(ctx, citizenID); err != nil {
		return nil, err
	}
	if err := f.registry.AddToken(ctx, citizenID, req.Token); err != nil {
		if IsInvalidPushToken(err) {
			return nil, NewBusinessError("PUSH_TOKEN_REQUIRED", "Push token is required", err)
		}
		return nil, NewBusinessError("PUSH_TOKEN_ADD_FAILED", "Failed to register push token", err)
	}
	return &dto.PushTokenResponse{Message: "Push token registered successfully."}, nil
}

func (f *CitizenNotificationFlowImpl) RemovePushToken(ctx context.Context, citizenID uint, req *dto.PushTokenRequest) (*dto.PushTokenResponse, error) {
	if req == nil || strings.TrimSpace(req.Token) == "" {
		return nil, NewBusinessError("PUSH_TOKEN_REQUIRED", "Push token is required", ErrInvalidPushToken)
	}
	if err := f.ensureCitizen(ctx, citizenID); err != nil {
		return nil, err
	}
	if err := f.registry.RemoveToken(ctx, citizenID, req.Token); err != nil {
		return nil, NewBusinessError("PUSH_TOKEN_REMOVE_FAILED", "Failed to remove push token", err)
	}
	return &dto.PushTokenResponse{Message: "Push token removed successfully."}, nil
}

func (f *CitizenNotificationFlowImpl) GetNotificationPreferences(ctx context.Context, citizenID uint) (*dto.NotificationPreferencesResponse, error) {
	if err := f.ensureCitizen(ctx, citizenID); err != nil {
		return nil, err
	}
	return f.preferences(ctx, citizenID)
}

// UpdateNotificationPreferences upserts every toggle in one transaction. Unknown
// categories reject the whole batch.
func (f *CitizenNotificationFlowImpl) UpdateNotificationPreferences(ctx context.Context, citizenID uint, req *dto.UpdateNotificationPreferencesRequest) (*dto.NotificationPreferencesResponse, error) {
	if req == nil || len(req.Preferences) == 0 {
		return nil, NewBusinessError("PREFERENCES_REQUIRED", "At least one preference is required", ErrPreferencesRequired)
	}

	// last toggle wins for repeated categories
	toggles := make(map[string]bool, len(req.Preferences))
	order := make([]string, 0, len(req.Preferences))
	for _, p := range req.Preferences {
		name := strings.TrimSpace(p.CategoryName)
		if !models.IsKnownCategory(name) {
			return nil, NewBusinessErrorf("UNKNOWN_CATEGORY", "Unknown notification category: %s", ErrUnknownCategory, name)
		}
		if _, seen := toggles[name]; !seen {
			order = append(order, name)
		}
		toggles[name] = p.IsActive
	}

	if err := f.ensureCitizen(ctx, citizenID); err != nil {
		return nil, err
	}

	upsertAll := func(txCtx context.Context) error {
		now := utils.UTCNow()
		for _, name := range order {
			sub := &models.NotificationSubscription{
				CitizenID:    citizenID,
				CategoryName: name,
				IsActive:     utils.ToPtr(toggles[name]),
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := f.subRepo.Upsert(txCtx, sub); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	if f.db != nil {
		err = repository.WithTransaction(ctx, f.db, upsertAll)
	} else {
		err = upsertAll(ctx)
	}
	if err != nil {
		return nil, NewBusinessError("PREFERENCES_UPDATE_FAILED", "Failed to update notification preferences", err)
	}

	return f.preferences(ctx, citizenID)
}

// preferences lists the whole catalog with the citizen's state; missing rows are inactive
func (f *CitizenNotificationFlowImpl) preferences(ctx context.Context, citizenID uint) (*dto.NotificationPreferencesResponse, error) {
	subs, err := f.subRepo.ListByCitizen(ctx, citizenID)
	if err != nil {
		return nil, NewBusinessError("PREFERENCES_FETCH_FAILED", "Failed to fetch notification preferences", err)
	}
	active := make(map[string]bool, len(subs))
	for _, s := range subs {
		active[s.CategoryName] = utils.IsTrue(s.IsActive)
	}

	out := make([]dto.NotificationPreferenceDTO, 0, len(models.AvailableCategories))
	for _, c := range models.AvailableCategories {
		c = c.WithDefaultDescription()
		out = append(out, dto.NotificationPreferenceDTO{
			CategoryID:   c.ID,
			CategoryName: c.Name,
			Description:  c.Description,
			IsActive:     active[c.Name],
		})
	}
	return &dto.NotificationPreferencesResponse{Preferences: out}, nil
}
