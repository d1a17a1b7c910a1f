// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/amirphl/wilaya-connect/app/dto"
	"github.com/amirphl/wilaya-connect/app/services"
	"github.com/amirphl/wilaya-connect/repository"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/gofiber/fiber/v3"
)

// AuthMiddleware handles JWT validation for the admin dashboard and the citizen app
type AuthMiddleware struct {
	tokenService services.TokenService
	adminRepo    repository.AdminRepository
}

// NewAuthMiddleware creates a new authentication middleware. When adminRepo is
// set, admin tokens are only honoured while the admin account is active.
func NewAuthMiddleware(tokenService services.TokenService, adminRepo repository.AdminRepository) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		adminRepo:    adminRepo,
	}
}

func unauthorized(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}

// bearerToken extracts the token from the Authorization header. On failure it
// returns the error code and message to send back.
func bearerToken(c fiber.Ctx) (token, code, message string) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", "MISSING_AUTHORIZATION_HEADER", "Authorization header is required"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "INVALID_AUTHORIZATION_FORMAT", "Invalid authorization header format. Expected 'Bearer <token>'"
	}
	token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "MISSING_ACCESS_TOKEN", "Access token is required"
	}
	return token, "", ""
}

func validationFailure(err error) (code, message string) {
	switch {
	case errors.Is(err, services.ErrTokenExpired):
		return "TOKEN_EXPIRED", "Access token has expired"
	case errors.Is(err, services.ErrTokenRevoked):
		return "TOKEN_REVOKED", "Access token has been revoked"
	case errors.Is(err, services.ErrTokenInvalid):
		return "TOKEN_INVALID", "Invalid access token"
	default:
		return "TOKEN_VALIDATION_FAILED", "Token validation failed"
	}
}

// AdminAuthenticate validates admin access tokens and stores the admin id in Locals
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, code, msg := bearerToken(c)
		if token == "" {
			return unauthorized(c, code, msg)
		}

		claims, err := m.tokenService.ValidateAdminToken(token)
		if err != nil {
			code, msg := validationFailure(err)
			return unauthorized(c, code, msg)
		}
		if claims.TokenType != "access" {
			return unauthorized(c, "TOKEN_TYPE_INVALID", "Refresh tokens cannot be used for API access")
		}

		if m.adminRepo != nil {
			admin, err := m.adminRepo.ByID(c.Context(), claims.AdminID)
			if err != nil {
				log.Printf("admin lookup failed for %d: %v", claims.AdminID, err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
					Success: false,
					Message: "Unable to verify admin account",
					Error:   dto.ErrorDetail{Code: "ADMIN_LOOKUP_FAILED"},
				})
			}
			if admin == nil || !utils.IsTrue(admin.IsActive) {
				return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
					Success: false,
					Message: "Admin account is inactive",
					Error:   dto.ErrorDetail{Code: "ADMIN_INACTIVE"},
				})
			}
		}

		c.Locals("admin_id", claims.AdminID)
		c.Locals("token_id", claims.TokenID)
		c.Locals("token_claims", claims)

		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// CitizenAuthenticate validates citizen app tokens
func (m *AuthMiddleware) CitizenAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, code, msg := bearerToken(c)
		if token == "" {
			return unauthorized(c, code, msg)
		}

		claims, err := m.tokenService.ValidateCitizenToken(token)
		if err != nil {
			code, msg := validationFailure(err)
			return unauthorized(c, code, msg)
		}
		if claims.TokenType != "access" {
			return unauthorized(c, "TOKEN_TYPE_INVALID", "Refresh tokens cannot be used for API access")
		}

		c.Locals("citizen_id", claims.CitizenID)
		c.Locals("token_id", claims.TokenID)
		c.Locals("token_claims", claims)

		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// GetAdminIDFromContext extracts admin ID from the request context
func GetAdminIDFromContext(c fiber.Ctx) (uint, bool) {
	adminID, ok := c.Locals("admin_id").(uint)
	return adminID, ok
}

// GetCitizenIDFromContext extracts citizen ID from the request context
func GetCitizenIDFromContext(c fiber.Ctx) (uint, bool) {
	citizenID, ok := c.Locals("citizen_id").(uint)
	return citizenID, ok
}

// RequireAdminAuth ensures admin authentication is present
func RequireAdminAuth(c fiber.Ctx) error {
	adminID, exists := GetAdminIDFromContext(c)
	if !exists {
		return unauthorized(c, "ADMIN_AUTHENTICATION_REQUIRED", "Admin authentication required")
	}
	if adminID == 0 {
		return unauthorized(c, "INVALID_ADMIN_ID", "Invalid admin ID")
	}
	return nil
}

// RequireCitizenAuth ensures citizen authentication is present
func RequireCitizenAuth(c fiber.Ctx) error {
	citizenID, exists := GetCitizenIDFromContext(c)
	if !exists {
		return unauthorized(c, "AUTHENTICATION_REQUIRED", "Authentication required")
	}
	if citizenID == 0 {
		return unauthorized(c, "INVALID_CITIZEN_ID", "Invalid citizen ID")
	}
	return nil
}
