package handlers

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/wilaya-connect/app/dto"
	businessflow "github.com/amirphl/wilaya-connect/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CommunicationHandlerInterface defines the admin communication endpoints
type CommunicationHandlerInterface interface {
	SendCommunication(c fiber.Ctx) error
	ListCommunications(c fiber.Ctx) error
	GetCommunication(c fiber.Ctx) error
	ExportCommunications(c fiber.Ctx) error
}

// CommunicationHandler handles dispatch and the communication log for admins
type CommunicationHandler struct {
	communicationFlow businessflow.CommunicationFlow
	validator         *validator.Validate
	timeout           time.Duration
}

func NewCommunicationHandler(flow businessflow.CommunicationFlow, timeout time.Duration) CommunicationHandlerInterface {
	return &CommunicationHandler{
		communicationFlow: flow,
		validator:         validator.New(),
		timeout:           timeout,
	}
}

func (h *CommunicationHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CommunicationHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SendCommunication dispatches (or schedules) a communication to the subscribers of the target categories
// @Summary Send Communication
// @Tags Admin Communications
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client key de-duplicating retried submissions"
// @Param request body dto.SendCommunicationRequest true "Communication payload"
// @Success 200 {object} dto.APIResponse{data=dto.SendCommunicationResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Duplicate submission"
// @Failure 500 {object} dto.APIResponse "Processed but not logged"
// @Router /api/v1/admin/communications [post]
func (h *CommunicationHandler) SendCommunication(c fiber.Ctx) error {
	var req dto.SendCommunicationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	adminID, ok := c.Locals("admin_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin ID not found in context", "MISSING_ADMIN_ID", nil)
	}
	req.IdempotencyKey = strings.TrimSpace(c.Get("Idempotency-Key"))

	ctx, cancel := createRequestContext(c, "/api/v1/admin/communications", h.timeout)
	defer cancel()

	resp, err := h.communicationFlow.ProcessAndSendCommunication(ctx, &req, adminID)
	if err != nil {
		message := "Failed to process communication"
		if resp != nil && resp.Message != "" {
			message = resp.Message
		}
		switch {
		case businessflow.IsDispatchValidationError(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, message, businessErrorCode(err, "VALIDATION_ERROR"), nil)
		case businessflow.IsDuplicateDispatch(err):
			return h.ErrorResponse(c, fiber.StatusConflict, message, "DUPLICATE_DISPATCH", nil)
		case businessflow.IsCommunicationNotLogged(err):
			log.Println("Communication processed but not logged", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, message, "COMMUNICATION_LOG_FAILED", resp.Details)
		case businessflow.IsCommunicationNotScheduled(err):
			log.Println("Communication scheduling failed", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, message, "COMMUNICATION_SCHEDULE_FAILED", nil)
		}
		log.Println("Send communication failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, message, "COMMUNICATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, resp.Message, resp)
}

// parseListRequest reads the shared list/export query parameters
func (h *CommunicationHandler) parseListRequest(c fiber.Ctx) (*dto.ListCommunicationsRequest, string, error) {
	req := &dto.ListCommunicationsRequest{}

	if v := c.Query("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return nil, "page", err
		}
		req.Page = page
	}
	if v := c.Query("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return nil, "page_size", err
		}
		req.PageSize = size
	}
	if v := c.Query("status"); v != "" {
		req.Status = &v
	}
	if v := c.Query("category"); v != "" {
		req.Category = &v
	}
	if v := c.Query("admin_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, "admin_id", err
		}
		adminID := uint(id)
		req.AdminID = &adminID
	}
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, "start_date", err
		}
		req.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, "end_date", err
		}
		req.EndDate = &t
	}
	return req, "", nil
}

func (h *CommunicationHandler) listErrorResponse(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	switch {
	case businessflow.IsInvalidPage(err), businessflow.IsInvalidPageSize(err),
		businessflow.IsInvalidStatusFilter(err), businessflow.IsStartDateAfterEndDate(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid filter", businessErrorCode(err, "INVALID_FILTER"), err.Error())
	}
	log.Println(fallbackMessage, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

// ListCommunications returns the paged communication log
// @Summary List Communications
// @Tags Admin Communications
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Param status query string false "PENDING|SCHEDULED|SENT|PARTIALLY_FAILED|FAILED"
// @Param category query string false "Target category name"
// @Param admin_id query int false "Publishing admin"
// @Param start_date query string false "created_at >= start_date (RFC3339)"
// @Param end_date query string false "created_at <= end_date (RFC3339)"
// @Success 200 {object} dto.APIResponse{data=dto.ListCommunicationsResponse}
// @Router /api/v1/admin/communications [get]
func (h *CommunicationHandler) ListCommunications(c fiber.Ctx) error {
	req, field, err := h.parseListRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid "+field+" parameter", "INVALID_QUERY", err.Error())
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/communications", h.timeout)
	defer cancel()

	resp, err := h.communicationFlow.ListCommunications(ctx, req)
	if err != nil {
		return h.listErrorResponse(c, err, "Failed to list communications", "COMMUNICATION_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Communications retrieved successfully", resp)
}

// GetCommunication returns one communication log entry
// @Summary Get Communication
// @Tags Admin Communications
// @Produce json
// @Param uuid path string true "Communication UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CommunicationLogDTO}
// @Failure 404 {object} dto.APIResponse "Communication not found"
// @Router /api/v1/admin/communications/{uuid} [get]
func (h *CommunicationHandler) GetCommunication(c fiber.Ctx) error {
	id := c.Params("uuid")
	if id == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Communication UUID is required", "MISSING_COMMUNICATION_UUID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/communications/"+id, h.timeout)
	defer cancel()

	resp, err := h.communicationFlow.GetCommunication(ctx, id)
	if err != nil {
		if businessflow.IsCommunicationNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Communication not found", "COMMUNICATION_NOT_FOUND", nil)
		}
		log.Println("Get communication failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch communication", "COMMUNICATION_FETCH_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Communication retrieved successfully", resp)
}

// ExportCommunications downloads the filtered communication log as XLSX
// @Summary Export Communications
// @Tags Admin Communications
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /api/v1/admin/communications/export [get]
func (h *CommunicationHandler) ExportCommunications(c fiber.Ctx) error {
	req, field, err := h.parseListRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid "+field+" parameter", "INVALID_QUERY", err.Error())
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/communications/export", 2*h.timeout)
	defer cancel()

	filename, data, err := h.communicationFlow.ExportCommunications(ctx, req)
	if err != nil {
		return h.listErrorResponse(c, err, "Failed to export communications", "COMMUNICATION_EXPORT_FAILED")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}
