package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Communication statuses
const (
	CommunicationStatusPending         = "PENDING"
	CommunicationStatusScheduled       = "SCHEDULED"
	CommunicationStatusSent            = "SENT"
	CommunicationStatusPartiallyFailed = "PARTIALLY_FAILED"
	CommunicationStatusFailed          = "FAILED"
)

// Channel names as used in logs, metrics and outcome maps
const (
	ChannelPush     = "push"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

// IsValidCommunicationStatus reports whether s is one of the known statuses
func IsValidCommunicationStatus(s string) bool {
	switch s {
	case CommunicationStatusPending, CommunicationStatusScheduled, CommunicationStatusSent,
		CommunicationStatusPartiallyFailed, CommunicationStatusFailed:
		return true
	}
	return false
}

// ChannelSet is the set of channels requested for one communication
type ChannelSet struct {
	SMS      bool `json:"sms"`
	Push     bool `json:"push"`
	WhatsApp bool `json:"whatsapp"`
}

// Any reports whether at least one channel is requested
func (c ChannelSet) Any() bool {
	return c.SMS || c.Push || c.WhatsApp
}

// Names lists the requested channels in a stable order
func (c ChannelSet) Names() []string {
	names := make([]string, 0, 3)
	if c.Push {
		names = append(names, ChannelPush)
	}
	if c.SMS {
		names = append(names, ChannelSMS)
	}
	if c.WhatsApp {
		names = append(names, ChannelWhatsApp)
	}
	return names
}

// ChannelTally is the persisted per-channel delivery summary
type ChannelTally struct {
	SuccessCount  int     `json:"success_count"`
	FailureCount  int     `json:"failure_count"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

// CommunicationLog is the immutable audit record of one dispatch invocation
type CommunicationLog struct {
	ID                       uint                                          `gorm:"primaryKey" json:"id"`
	UUID                     uuid.UUID                                     `gorm:"type:uuid;not null;uniqueIndex:uk_communication_logs_uuid" json:"uuid"`
	MessageContent           string                                        `gorm:"type:text;not null" json:"message_content"`
	Channels                 datatypes.JSONType[ChannelSet]                `gorm:"type:jsonb;not null" json:"channels"`
	TargetAudienceCategories pq.StringArray                                `gorm:"type:text[];not null;default:'{}'" json:"target_audience_categories"`
	TargetCitizenIDs         pq.StringArray                                `gorm:"type:text[];not null;default:'{}'" json:"target_citizen_ids"`
	Status                   string                                        `gorm:"size:32;not null;index:idx_communication_logs_status" json:"status"`
	ScheduledAt              *time.Time                                    `gorm:"index:idx_communication_logs_scheduled_at" json:"scheduled_at,omitempty"`
	SentAt                   *time.Time                                    `json:"sent_at,omitempty"`
	FCMMessageIDs            pq.StringArray                                `gorm:"column:fcm_message_ids;type:text[];not null;default:'{}'" json:"fcm_message_ids"`
	FCMSuccessCount          int                                           `gorm:"column:fcm_success_count;not null;default:0" json:"fcm_success_count"`
	FCMFailureCount          int                                           `gorm:"column:fcm_failure_count;not null;default:0" json:"fcm_failure_count"`
	FailureReason            *string                                       `gorm:"type:text" json:"failure_reason,omitempty"`
	ChannelOutcomes          datatypes.JSONType[map[string]ChannelTally]   `gorm:"type:jsonb" json:"channel_outcomes"`
	AdminID                  uint                                          `gorm:"not null;index:idx_communication_logs_admin_id" json:"admin_id"`
	CreatedAt                time.Time                                     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_communication_logs_created_at" json:"created_at"`
	UpdatedAt                time.Time                                     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (CommunicationLog) TableName() string {
	return "communication_logs"
}

// CommunicationLogFilter represents filter criteria for communication log queries
type CommunicationLogFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	AdminID       *uint
	Status        *string
	Category      *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
