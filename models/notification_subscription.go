package models

import "time"

// NotificationSubscription links a citizen to a category by name.
// At most one row exists per (citizen_id, category_name).
type NotificationSubscription struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CitizenID    uint      `gorm:"not null;uniqueIndex:uk_notification_subscriptions_citizen_category,priority:1;index:idx_notification_subscriptions_citizen_id" json:"citizen_id"`
	CategoryName string    `gorm:"size:100;not null;uniqueIndex:uk_notification_subscriptions_citizen_category,priority:2;index:idx_notification_subscriptions_category_name" json:"category_name"`
	IsActive     *bool     `gorm:"not null;default:true;index:idx_notification_subscriptions_is_active" json:"is_active"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (NotificationSubscription) TableName() string {
	return "notification_subscriptions"
}

// NotificationSubscriptionFilter represents filter criteria for subscription queries
type NotificationSubscriptionFilter struct {
	ID           *uint
	CitizenID    *uint
	CategoryName *string
	IsActive     *bool
}
