// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	businessflow "github.com/amirphl/wilaya-connect/business_flow"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

const defaultRequestTimeout = 30 * time.Second

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must have at least " + err.Param() + " items or characters"
	case "max":
		return err.Field() + " must have at most " + err.Param() + " items or characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// validationMessages flattens validator errors into readable messages
func validationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, getValidationErrorMessage(fe))
	}
	return out
}

// businessErrorCode returns the machine-readable code of a flow error, or fallback
func businessErrorCode(err error, fallback string) string {
	var bizErr *businessflow.BusinessError
	if errors.As(err, &bizErr) && bizErr.Code != "" {
		return bizErr.Code
	}
	return fallback
}

// createRequestContext builds the flow context with request-scoped values.
// The caller must invoke the returned cancel function.
func createRequestContext(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(c.Context(), timeout)

	requestID := requestid.FromContext(c)
	if requestID == "" {
		requestID = c.Get("X-Request-ID")
	}
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID)
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx, cancel
}
