package dto

// PushTokenRequest registers or removes a device token for the authenticated citizen
type PushTokenRequest struct {
	Token string `json:"token" validate:"required,min=1,max=4096"`
}

// PushTokenResponse is returned after a token add/remove
type PushTokenResponse struct {
	Message string `json:"message"`
}

// NotificationPreferenceItem is one category toggle
type NotificationPreferenceItem struct {
	CategoryName string `json:"category_name" validate:"required,max=100"`
	IsActive     bool   `json:"is_active"`
}

// UpdateNotificationPreferencesRequest upserts a batch of category toggles
type UpdateNotificationPreferencesRequest struct {
	Preferences []NotificationPreferenceItem `json:"preferences" validate:"required,min=1,max=50,dive"`
}

// NotificationPreferenceDTO is the state of one category for a citizen
type NotificationPreferenceDTO struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Description  string `json:"description"`
	IsActive     bool   `json:"is_active"`
}

// NotificationPreferencesResponse lists every catalog category with its state for the citizen
type NotificationPreferencesResponse struct {
	Preferences []NotificationPreferenceDTO `json:"preferences"`
}
