package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/amirphl/wilaya-connect/app/dto"
	businessflow "github.com/amirphl/wilaya-connect/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CitizenHandlerInterface defines the citizen app endpoints
type CitizenHandlerInterface interface {
	RegisterPushToken(c fiber.Ctx) error
	RemovePushToken(c fiber.Ctx) error
	GetNotificationPreferences(c fiber.Ctx) error
	UpdateNotificationPreferences(c fiber.Ctx) error
}

type CitizenHandler struct {
	flow      businessflow.CitizenNotificationFlow
	validator *validator.Validate
	timeout   time.Duration
}

func NewCitizenHandler(flow businessflow.CitizenNotificationFlow, timeout time.Duration) CitizenHandlerInterface {
	return &CitizenHandler{
		flow:      flow,
		validator: validator.New(),
		timeout:   timeout,
	}
}

func (h *CitizenHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CitizenHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (h *CitizenHandler) flowError(c fiber.Ctx, err error, action string) error {
	switch {
	case businessflow.IsCitizenNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Citizen not found", "CITIZEN_NOT_FOUND", nil)
	case businessflow.IsInvalidPushToken(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Push token is required", "PUSH_TOKEN_REQUIRED", nil)
	case businessflow.IsUnknownCategory(err):
		var bizErr *businessflow.BusinessError
		message := "Unknown notification category"
		if errors.As(err, &bizErr) {
			message = bizErr.Message
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, message, "UNKNOWN_CATEGORY", nil)
	case businessflow.IsPreferencesRequired(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "At least one preference is required", "PREFERENCES_REQUIRED", nil)
	}
	log.Println(action+" failed", err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to "+action, businessErrorCode(err, "INTERNAL_ERROR"), nil)
}

func (h *CitizenHandler) bindToken(c fiber.Ctx) (*dto.PushTokenRequest, error) {
	var req dto.PushTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return nil, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}
	return &req, nil
}

// RegisterPushToken adds a device token to the authenticated citizen
// @Summary Register Push Token
// @Tags Citizen
// @Accept json
// @Produce json
// @Param request body dto.PushTokenRequest true "Device token"
// @Success 200 {object} dto.APIResponse{data=dto.PushTokenResponse}
// @Router /api/v1/citizen/push-tokens [post]
func (h *CitizenHandler) RegisterPushToken(c fiber.Ctx) error {
	citizenID, ok := c.Locals("citizen_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Citizen ID not found in context", "MISSING_CITIZEN_ID", nil)
	}
	req, errResp := h.bindToken(c)
	if req == nil {
		return errResp
	}

	ctx, cancel := createRequestContext(c, "/api/v1/citizen/push-tokens", h.timeout)
	defer cancel()

	resp, err := h.flow.RegisterPushToken(ctx, citizenID, req)
	if err != nil {
		return h.flowError(c, err, "register push token")
	}
	return h.SuccessResponse(c, fiber.StatusOK, resp.Message, resp)
}

// RemovePushToken deletes a device token, typically on logout
// @Summary Remove Push Token
// @Tags Citizen
// @Accept json
// @Produce json
// @Param request body dto.PushTokenRequest true "Device token"
// @Success 200 {object} dto.APIResponse{data=dto.PushTokenResponse}
// @Router /api/v1/citizen/push-tokens [delete]
func (h *CitizenHandler) RemovePushToken(c fiber.Ctx) error {
	citizenID, ok := c.Locals("citizen_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Citizen ID not found in context", "MISSING_CITIZEN_ID", nil)
	}
	req, errResp := h.bindToken(c)
	if req == nil {
		return errResp
	}

	ctx, cancel := createRequestContext(c, "/api/v1/citizen/push-tokens", h.timeout)
	defer cancel()

	resp, err := h.flow.RemovePushToken(ctx, citizenID, req)
	if err != nil {
		return h.flowError(c, err, "remove push token")
	}
	return h.SuccessResponse(c, fiber.StatusOK, resp.Message, resp)
}

// GetNotificationPreferences lists every category with the citizen's subscription state
// @Summary Get Notification Preferences
// @Tags Citizen
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.NotificationPreferencesResponse}
// @Router /api/v1/citizen/notification-preferences [get]
func (h *CitizenHandler) GetNotificationPreferences(c fiber.Ctx) error {
	citizenID, ok := c.Locals("citizen_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Citizen ID not found in context", "MISSING_CITIZEN_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/citizen/notification-preferences", h.timeout)
	defer cancel()

	resp, err := h.flow.GetNotificationPreferences(ctx, citizenID)
	if err != nil {
		return h.flowError(c, err, "fetch notification preferences")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Notification preferences retrieved successfully", resp)
}

// UpdateNotificationPreferences toggles category subscriptions
// @Summary Update Notification Preferences
// @Tags Citizen
// @Accept json
// @Produce json
// @Param request body dto.UpdateNotificationPreferencesRequest true "Preference toggles"
// @Success 200 {object} dto.APIResponse{data=dto.NotificationPreferencesResponse}
// @Router /api/v1/citizen/notification-preferences [put]
func (h *CitizenHandler) UpdateNotificationPreferences(c fiber.Ctx) error {
	citizenID, ok := c.Locals("citizen_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Citizen ID not found in context", "MISSING_CITIZEN_ID", nil)
	}

	var req dto.UpdateNotificationPreferencesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/citizen/notification-preferences", h.timeout)
	defer cancel()

	resp, err := h.flow.UpdateNotificationPreferences(ctx, citizenID, &req)
	if err != nil {
		return h.flowError(c, err, "update notification preferences")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Notification preferences updated successfully", resp)
}
