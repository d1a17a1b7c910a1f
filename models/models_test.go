package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "citizens", models.Citizen{}.TableName())
	assert.Equal(t, "notification_subscriptions", models.NotificationSubscription{}.TableName())
	assert.Equal(t, "communication_logs", models.CommunicationLog{}.TableName())
	assert.Equal(t, "service_requests", models.ServiceRequest{}.TableName())
	assert.Equal(t, "admins", models.Admin{}.TableName())
}

func TestCategoryCatalog(t *testing.T) {
	t.Run("FourteenUniqueEntries", func(t *testing.T) {
		require.Len(t, models.AvailableCategories, 14)
		ids := map[string]bool{}
		names := map[string]bool{}
		for _, c := range models.AvailableCategories {
			assert.False(t, ids[c.ID], "duplicate id %s", c.ID)
			assert.False(t, names[c.Name], "duplicate name %s", c.Name)
			ids[c.ID] = true
			names[c.Name] = true
		}
	})

	t.Run("LookupByName", func(t *testing.T) {
		c, ok := models.CategoryByName("Travaux Publics")
		require.True(t, ok)
		assert.Equal(t, "travaux-publics", c.ID)

		assert.True(t, models.IsKnownCategory("Santé Publique"))
		assert.False(t, models.IsKnownCategory("santé publique"))
		assert.False(t, models.IsKnownCategory(""))
	})

	t.Run("DefaultDescription", func(t *testing.T) {
		c, _ := models.CategoryByName("Urbanisme")
		assert.Equal(t, "Notifications concernant urbanisme.", c.WithDefaultDescription().Description)

		custom := models.Category{ID: "x", Name: "X", Description: "kept"}
		assert.Equal(t, "kept", custom.WithDefaultDescription().Description)
	})
}

func TestChannelSet(t *testing.T) {
	assert.False(t, models.ChannelSet{}.Any())
	assert.True(t, models.ChannelSet{WhatsApp: true}.Any())
	assert.Equal(t, []string{"push", "sms", "whatsapp"}, models.ChannelSet{SMS: true, Push: true, WhatsApp: true}.Names())
	assert.Equal(t, []string{"sms"}, models.ChannelSet{SMS: true}.Names())
}

func TestCommunicationStatus(t *testing.T) {
	for _, s := range []string{"PENDING", "SCHEDULED", "SENT", "PARTIALLY_FAILED", "FAILED"} {
		assert.True(t, models.IsValidCommunicationStatus(s), s)
	}
	assert.False(t, models.IsValidCommunicationStatus("sent"))
}

func TestHistoryLog(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	assignee := uint(7)

	log := models.HistoryLog{
		models.CreatedEntry{HistoryMeta: models.HistoryMeta{Timestamp: at, AdminID: 1}, Description: "Lampadaire en panne"},
		models.StatusChangeEntry{HistoryMeta: models.HistoryMeta{Timestamp: at, AdminID: 1}, OldStatus: "PENDING", NewStatus: "IN_PROGRESS"},
		models.AssignmentEntry{HistoryMeta: models.HistoryMeta{Timestamp: at, AdminID: 1, AdminName: utils.ToPtr("Amina")}, AssignedToAdminID: &assignee},
		models.NoteAddedEntry{HistoryMeta: models.HistoryMeta{Timestamp: at, AdminID: 2}, Notes: "Équipe envoyée"},
	}

	t.Run("MarshalTagsAction", func(t *testing.T) {
		b, err := json.Marshal(log)
		require.NoError(t, err)

		var generic []map[string]any
		require.NoError(t, json.Unmarshal(b, &generic))
		require.Len(t, generic, 4)
		assert.Equal(t, "CREATED", generic[0]["action"])
		assert.Equal(t, "Lampadaire en panne", generic[0]["description"])
		assert.Equal(t, "STATUS_CHANGE", generic[1]["action"])
		assert.Equal(t, "IN_PROGRESS", generic[1]["new_status"])
		assert.NotContains(t, generic[1], "description")
		assert.Equal(t, "ASSIGNMENT", generic[2]["action"])
		assert.Equal(t, "NOTE_ADDED", generic[3]["action"])
	})

	t.Run("DecodeIntoVariants", func(t *testing.T) {
		b, err := json.Marshal(log)
		require.NoError(t, err)

		var decoded models.HistoryLog
		require.NoError(t, json.Unmarshal(b, &decoded))
		require.Len(t, decoded, 4)

		status, ok := decoded[1].(models.StatusChangeEntry)
		require.True(t, ok)
		assert.Equal(t, "PENDING", status.OldStatus)
		assert.True(t, status.Timestamp.Equal(at))

		assignment, ok := decoded[2].(models.AssignmentEntry)
		require.True(t, ok)
		require.NotNil(t, assignment.AssignedToAdminID)
		assert.Equal(t, uint(7), *assignment.AssignedToAdminID)
		assert.False(t, assignment.Unassigned())
		assert.Equal(t, "Amina", utils.DerefString(assignment.Meta().AdminName))
	})

	t.Run("UnknownActionRejected", func(t *testing.T) {
		var decoded models.HistoryLog
		err := json.Unmarshal([]byte(`[{"action":"DELETED","timestamp":"2026-03-01T10:00:00Z"}]`), &decoded)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DELETED")
	})

	t.Run("ValueAndScan", func(t *testing.T) {
		v, err := log.Value()
		require.NoError(t, err)

		var scanned models.HistoryLog
		require.NoError(t, scanned.Scan([]byte(v.(string))))
		assert.Len(t, scanned, 4)

		require.NoError(t, scanned.Scan(nil))
		assert.Empty(t, scanned)

		empty, err := models.HistoryLog(nil).Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", empty)
	})
}

func TestServiceRequestTransitions(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	req := &models.ServiceRequest{Status: models.ServiceRequestStatusPending}

	req.ChangeStatus(3, nil, models.ServiceRequestStatusInProgress, utils.ToPtr("pris en charge"), at)
	assert.Equal(t, models.ServiceRequestStatusInProgress, req.Status)

	assignee := uint(9)
	req.Assign(3, nil, &assignee, nil, at)
	req.Assign(3, nil, nil, nil, at)
	assert.Nil(t, req.AssignedAdminID)

	require.Len(t, req.History, 3)
	change := req.History[0].(models.StatusChangeEntry)
	assert.Equal(t, models.ServiceRequestStatusPending, change.OldStatus)
	assert.Equal(t, models.ServiceRequestStatusInProgress, change.NewStatus)
	assert.True(t, req.History[2].(models.AssignmentEntry).Unassigned())
	assert.Equal(t, models.HistoryActionAssignment, req.History[1].Action())
}
