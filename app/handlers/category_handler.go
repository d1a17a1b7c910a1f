package handlers

import (
	"log"

	"github.com/amirphl/wilaya-connect/app/dto"
	businessflow "github.com/amirphl/wilaya-connect/business_flow"
	"github.com/gofiber/fiber/v3"
)

// CategoryHandlerInterface defines the public category catalog endpoint
type CategoryHandlerInterface interface {
	ListCategories(c fiber.Ctx) error
}

type CategoryHandler struct {
	flow businessflow.CategoryFlow
}

func NewCategoryHandler(flow businessflow.CategoryFlow) CategoryHandlerInterface {
	return &CategoryHandler{flow: flow}
}

// ListCategories returns the notification category catalog
// @Summary List Categories
// @Tags Categories
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListCategoriesResponse}
// @Router /api/v1/categories [get]
func (h *CategoryHandler) ListCategories(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/categories", 0)
	defer cancel()

	resp, err := h.flow.ListCategories(ctx)
	if err != nil {
		log.Println("List categories failed", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to list categories",
			Error:   dto.ErrorDetail{Code: "CATEGORY_LIST_FAILED"},
		})
	}
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Categories retrieved successfully",
		Data:    resp,
	})
}
