// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "time"

// ChannelsDTO is the requested channel set of a communication
type ChannelsDTO struct {
	SMS      bool `json:"sms"`
	Push     bool `json:"push"`
	WhatsApp bool `json:"whatsapp"`
}

// SendCommunicationRequest represents the admin dispatch payload.
// Emptiness rules are checked by the dispatch flow, not the validator.
type SendCommunicationRequest struct {
	MessageContent   string      `json:"message_content" validate:"max=10000"`
	Channels         ChannelsDTO `json:"channels"`
	TargetCategories []string    `json:"target_categories" validate:"max=50,dive,max=100"`
	ScheduledAt      *time.Time  `json:"scheduled_at,omitempty" validate:"omitempty"`
	IdempotencyKey   string      `json:"-"`
}

// ChannelOutcomeDTO is the per-channel delivery summary
type ChannelOutcomeDTO struct {
	SuccessCount  int     `json:"success_count"`
	FailureCount  int     `json:"failure_count"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

// DispatchDetailsDTO carries whatever delivery details were gathered for a dispatch
type DispatchDetailsDTO struct {
	Status             string                       `json:"status"`
	MessageIDs         []string                     `json:"message_ids"`
	SuccessCount       int                          `json:"success_count"`
	FailureCount       int                          `json:"failure_count"`
	FailureReason      *string                      `json:"failure_reason,omitempty"`
	TargetCitizenCount int                          `json:"target_citizen_count"`
	Channels           map[string]ChannelOutcomeDTO `json:"channels,omitempty"`
}

// SendCommunicationResponse is the structured dispatch result
type SendCommunicationResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	LogID   *uint               `json:"log_id,omitempty"`
	LogUUID string              `json:"log_uuid,omitempty"`
	Details *DispatchDetailsDTO `json:"details,omitempty"`
}

// ListCommunicationsRequest represents query parameters for the admin log listing
type ListCommunicationsRequest struct {
	Page      int        `json:"page" validate:"omitempty,min=1"`
	PageSize  int        `json:"page_size" validate:"omitempty,min=1,max=100"`
	Status    *string    `json:"status,omitempty" validate:"omitempty"`
	Category  *string    `json:"category,omitempty" validate:"omitempty,max=100"`
	AdminID   *uint      `json:"admin_id,omitempty" validate:"omitempty"`
	StartDate *time.Time `json:"start_date,omitempty" validate:"omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty" validate:"omitempty"`
}

// CommunicationLogDTO represents a communication log for responses
type CommunicationLogDTO struct {
	ID                       uint                         `json:"id"`
	UUID                     string                       `json:"uuid"`
	MessageContent           string                       `json:"message_content"`
	Channels                 ChannelsDTO                  `json:"channels"`
	TargetAudienceCategories []string                     `json:"target_audience_categories"`
	TargetCitizenIDs         []string                     `json:"target_citizen_ids"`
	Status                   string                       `json:"status"`
	ScheduledAt              *string                      `json:"scheduled_at,omitempty"`
	SentAt                   *string                      `json:"sent_at,omitempty"`
	FCMMessageIDs            []string                     `json:"fcm_message_ids"`
	FCMSuccessCount          int                          `json:"fcm_success_count"`
	FCMFailureCount          int                          `json:"fcm_failure_count"`
	FailureReason            *string                      `json:"failure_reason,omitempty"`
	ChannelOutcomes          map[string]ChannelOutcomeDTO `json:"channel_outcomes,omitempty"`
	AdminID                  uint                         `json:"admin_id"`
	CreatedAt                string                       `json:"created_at"`
}

// PaginationInfo describes the page returned by a listing
type PaginationInfo struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// ListCommunicationsResponse wraps a page of communication logs
type ListCommunicationsResponse struct {
	Items        []CommunicationLogDTO `json:"items"`
	Pagination   PaginationInfo        `json:"pagination"`
	StatusCounts map[string]int64      `json:"status_counts"`
}
