// Package models contains domain entities for the citizen engagement platform
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Citizen is a registered mobile-app user. PushTokens is stored as TEXT[]
// and holds every device token the citizen registered.
type Citizen struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_citizens_uuid" json:"uuid"`
	PhoneNumber string         `gorm:"size:20;not null;uniqueIndex:uk_citizens_phone_number" json:"phone_number"`
	Name        *string        `gorm:"size:255" json:"name,omitempty"`
	PushTokens  pq.StringArray `gorm:"type:text[];not null;default:'{}';index:idx_citizens_push_tokens_gin,using:gin" json:"push_tokens"`

	Subscriptions []NotificationSubscription `gorm:"foreignKey:CitizenID" json:"subscriptions,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_citizens_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Citizen) TableName() string {
	return "citizens"
}

// CitizenFilter represents filter criteria for citizen queries
type CitizenFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	PhoneNumber   *string
	HasPushToken  *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
