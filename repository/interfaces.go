package repository

import (
	"context"

	"github.com/amirphl/wilaya-connect/models"
	"github.com/lib/pq"
)

// contextKey scopes values this package stores in a context
type contextKey string

// TxContextKey carries the active *gorm.DB transaction
const TxContextKey contextKey = "tx"

// Repository is the read/write surface shared by every table repository
type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CitizenPushTarget is a citizen eligible for push delivery together with its tokens
type CitizenPushTarget struct {
	ID         uint           `gorm:"column:id"`
	PushTokens pq.StringArray `gorm:"column:push_tokens"`
}

// AdminRepository defines operations for admins
type AdminRepository interface {
	Repository[models.Admin, models.AdminFilter]
	// ByUsername returns nil, nil for an unknown username.
	ByUsername(ctx context.Context, username string) (*models.Admin, error)
}

// CitizenRepository is the citizen directory used by the dispatch engine
type CitizenRepository interface {
	Repository[models.Citizen, models.CitizenFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Citizen, error)
	ByPhoneNumber(ctx context.Context, phoneNumber string) (*models.Citizen, error)
	// FindBySubscribedCategories returns citizens holding at least one non-empty
	// push token and at least one active subscription to any of categoryNames.
	FindBySubscribedCategories(ctx context.Context, categoryNames []string) ([]CitizenPushTarget, error)
	// FindPhoneNumbersBySubscribedCategories is the phone-number analogue used by SMS and WhatsApp.
	FindPhoneNumbersBySubscribedCategories(ctx context.Context, categoryNames []string) ([]string, error)
	AddPushToken(ctx context.Context, citizenID uint, token string) error
	RemovePushToken(ctx context.Context, citizenID uint, token string) error
}

// NotificationSubscriptionRepository defines operations for notification preferences
type NotificationSubscriptionRepository interface {
	Repository[models.NotificationSubscription, models.NotificationSubscriptionFilter]
	ListByCitizen(ctx context.Context, citizenID uint) ([]*models.NotificationSubscription, error)
	// Upsert inserts or updates the (citizen, category) row in place.
	Upsert(ctx context.Context, sub *models.NotificationSubscription) error
}

// CommunicationLogRepository persists dispatch audit records
type CommunicationLogRepository interface {
	Repository[models.CommunicationLog, models.CommunicationLogFilter]
	ByUUID(ctx context.Context, uuid string) (*models.CommunicationLog, error)
	CountByStatus(ctx context.Context, filter models.CommunicationLogFilter) (map[string]int64, error)
}
