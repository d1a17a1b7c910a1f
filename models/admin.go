package models

import (
	"time"

	"github.com/google/uuid"
)

// Admin is a back-office user allowed to publish communications
type Admin struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_admins_uuid" json:"uuid"`
	Username    string    `gorm:"size:255;not null;uniqueIndex:uk_admins_username" json:"username"`
	DisplayName *string   `gorm:"size:255" json:"display_name,omitempty"`

	IsActive  *bool     `gorm:"default:true;index:idx_admins_is_active" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_admins_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Admin) TableName() string {
	return "admins"
}

// AdminFilter represents filter criteria for admin queries
type AdminFilter struct {
	ID       *uint
	UUID     *uuid.UUID
	Username *string
	IsActive *bool
}
