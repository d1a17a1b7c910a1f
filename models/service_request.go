package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Service request statuses
const (
	ServiceRequestStatusPending    = "PENDING"
	ServiceRequestStatusInProgress = "IN_PROGRESS"
	ServiceRequestStatusResolved   = "RESOLVED"
	ServiceRequestStatusRejected   = "REJECTED"
)

// ServiceRequest is a citizen-submitted request handled by admins. Its
// History is an append-only log of typed entries stored as jsonb.
type ServiceRequest struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_service_requests_uuid" json:"uuid"`
	CitizenID       uint           `gorm:"not null;index:idx_service_requests_citizen_id" json:"citizen_id"`
	RequestType     string         `gorm:"size:100;not null" json:"request_type"`
	Description     string         `gorm:"type:text;not null" json:"description"`
	Attachments     pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"attachments"`
	Status          string         `gorm:"size:32;not null;default:'PENDING';index:idx_service_requests_status" json:"status"`
	ResolutionNotes *string        `gorm:"type:text" json:"resolution_notes,omitempty"`
	AdminNotes      *string        `gorm:"type:text" json:"admin_notes,omitempty"`
	AssignedAdminID *uint          `gorm:"index:idx_service_requests_assigned_admin_id" json:"assigned_admin_id,omitempty"`
	History         HistoryLog     `gorm:"column:history_log;type:jsonb;not null;default:'[]'" json:"history_log"`
	CreatedAt       time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (ServiceRequest) TableName() string {
	return "service_requests"
}

// ChangeStatus moves the request to newStatus and records the transition
func (r *ServiceRequest) ChangeStatus(adminID uint, adminName *string, newStatus string, notes *string, at time.Time) {
	r.History = append(r.History, StatusChangeEntry{
		HistoryMeta: HistoryMeta{Timestamp: at.UTC(), AdminID: adminID, AdminName: adminName},
		OldStatus:   r.Status,
		NewStatus:   newStatus,
		Notes:       notes,
	})
	r.Status = newStatus
}

// Assign sets (or clears, when assignee is nil) the assigned admin and records it
func (r *ServiceRequest) Assign(adminID uint, adminName *string, assignee *uint, assigneeName *string, at time.Time) {
	r.History = append(r.History, AssignmentEntry{
		HistoryMeta:         HistoryMeta{Timestamp: at.UTC(), AdminID: adminID, AdminName: adminName},
		AssignedToAdminID:   assignee,
		AssignedToAdminName: assigneeName,
	})
	r.AssignedAdminID = assignee
}

// ServiceRequestFilter represents filter criteria for service request queries
type ServiceRequestFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	CitizenID       *uint
	Status          *string
	AssignedAdminID *uint
}
