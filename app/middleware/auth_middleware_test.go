package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/wilaya-connect/app/services"
	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/repository"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdminRepo struct {
	repository.AdminRepository
	admins map[uint]*models.Admin
	err    error
}

func (f *fakeAdminRepo) ByID(_ context.Context, id uint) (*models.Admin, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.admins[id], nil
}

func newAuthApp(t *testing.T) (*fiber.App, services.TokenService) {
	t.Helper()
	return newAuthAppWithAdmins(t, nil)
}

func newAuthAppWithAdmins(t *testing.T, admins repository.AdminRepository) (*fiber.App, services.TokenService) {
	t.Helper()
	tokens, err := services.NewTokenService(15*time.Minute, time.Hour, "test-issuer", "test-audience", false, "", "", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)

	auth := NewAuthMiddleware(tokens, admins)
	app := fiber.New()
	app.Get("/admin", auth.AdminAuthenticate(), func(c fiber.Ctx) error {
		id, _ := GetAdminIDFromContext(c)
		return c.JSON(fiber.Map{"admin_id": id})
	})
	app.Get("/citizen", auth.CitizenAuthenticate(), func(c fiber.Ctx) error {
		id, _ := GetCitizenIDFromContext(c)
		return c.JSON(fiber.Map{"citizen_id": id})
	})
	return app, tokens
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error.Code
}

func TestAdminAuthenticate(t *testing.T) {
	app, tokens := newAuthApp(t)

	adminAccess, adminRefresh, err := tokens.GenerateAdminTokens(3)
	require.NoError(t, err)
	citizenAccess, _, err := tokens.GenerateCitizenTokens(3)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{name: "missing header", wantStatus: fiber.StatusUnauthorized, wantCode: "MISSING_AUTHORIZATION_HEADER"},
		{name: "not bearer", header: "Basic abc", wantStatus: fiber.StatusUnauthorized, wantCode: "INVALID_AUTHORIZATION_FORMAT"},
		{name: "garbage", header: "Bearer not-a-jwt", wantStatus: fiber.StatusUnauthorized, wantCode: "TOKEN_INVALID"},
		{name: "citizen token", header: "Bearer " + citizenAccess, wantStatus: fiber.StatusUnauthorized, wantCode: "TOKEN_INVALID"},
		{name: "refresh token", header: "Bearer " + adminRefresh, wantStatus: fiber.StatusUnauthorized, wantCode: "TOKEN_TYPE_INVALID"},
		{name: "valid", header: "Bearer " + adminAccess, wantStatus: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, resp))
				return
			}
			var body map[string]uint
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, uint(3), body["admin_id"])
		})
	}
}

func TestCitizenAuthenticate(t *testing.T) {
	app, tokens := newAuthApp(t)

	access, _, err := tokens.GenerateCitizenTokens(11)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/citizen", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]uint
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, uint(11), body["citizen_id"])

	t.Run("revoked", func(t *testing.T) {
		require.NoError(t, tokens.RevokeToken(access))

		req := httptest.NewRequest(http.MethodGet, "/citizen", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "TOKEN_REVOKED", errorCode(t, resp))
	})
}

func TestAdminAuthenticate_AccountState(t *testing.T) {
	tests := []struct {
		name       string
		repo       *fakeAdminRepo
		wantStatus int
		wantCode   string
	}{
		{
			name:       "active",
			repo:       &fakeAdminRepo{admins: map[uint]*models.Admin{5: {ID: 5, IsActive: utils.ToPtr(true)}}},
			wantStatus: fiber.StatusOK,
		},
		{
			name:       "deactivated",
			repo:       &fakeAdminRepo{admins: map[uint]*models.Admin{5: {ID: 5, IsActive: utils.ToPtr(false)}}},
			wantStatus: fiber.StatusForbidden,
			wantCode:   "ADMIN_INACTIVE",
		},
		{
			name:       "unknown",
			repo:       &fakeAdminRepo{admins: map[uint]*models.Admin{}},
			wantStatus: fiber.StatusForbidden,
			wantCode:   "ADMIN_INACTIVE",
		},
		{
			name:       "lookup error",
			repo:       &fakeAdminRepo{err: errors.New("db down")},
			wantStatus: fiber.StatusServiceUnavailable,
			wantCode:   "ADMIN_LOOKUP_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, tokens := newAuthAppWithAdmins(t, tt.repo)
			access, _, err := tokens.GenerateAdminTokens(5)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+access)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, resp))
			}
		})
	}
}
