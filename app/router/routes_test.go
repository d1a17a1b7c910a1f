package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/wilaya-connect/app/dto"
	"github.com/amirphl/wilaya-connect/app/middleware"
	"github.com/amirphl/wilaya-connect/config"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct{}

func (stubHandler) ok(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{Success: true, Message: "ok"})
}

func (s stubHandler) SendCommunication(c fiber.Ctx) error             { return s.ok(c) }
func (s stubHandler) ListCommunications(c fiber.Ctx) error            { return s.ok(c) }
func (s stubHandler) GetCommunication(c fiber.Ctx) error              { return s.ok(c) }
func (s stubHandler) ExportCommunications(c fiber.Ctx) error          { return s.ok(c) }
func (s stubHandler) RegisterPushToken(c fiber.Ctx) error             { return s.ok(c) }
func (s stubHandler) RemovePushToken(c fiber.Ctx) error               { return s.ok(c) }
func (s stubHandler) GetNotificationPreferences(c fiber.Ctx) error    { return s.ok(c) }
func (s stubHandler) UpdateNotificationPreferences(c fiber.Ctx) error { return s.ok(c) }
func (s stubHandler) ListCategories(c fiber.Ctx) error                { return s.ok(c) }

func newTestRouter(t *testing.T, checks map[string]HealthCheck, globalLimit int) *fiber.App {
	t.Helper()
	h := stubHandler{}
	r := NewFiberRouter(
		Handlers{Communication: h, Citizen: h, Category: h},
		middleware.NewAuthMiddleware(nil, nil),
		Options{
			Server: config.ServerConfig{BodyLimit: 1 << 20},
			Security: config.SecurityConfig{
				GlobalRateLimit:   globalLimit,
				DispatchRateLimit: 10,
				RateLimitWindow:   time.Minute,
			},
			Deployment:   config.DeploymentConfig{Version: "1.2.3", Environment: "test"},
			AccessLog:    io.Discard,
			HealthChecks: checks,
		},
	)
	r.SetupRoutes()
	return r.GetApp()
}

type envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRouter_Health(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		app := newTestRouter(t, map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		}, 100)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

		body := decode(t, resp)
		assert.True(t, body.Success)
		assert.Equal(t, "ok", body.Data["status"])
		assert.Equal(t, "1.2.3", body.Data["version"])
		assert.Equal(t, "test", body.Data["environment"])
	})

	t.Run("Degraded", func(t *testing.T) {
		app := newTestRouter(t, map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}, 100)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		body := decode(t, resp)
		assert.False(t, body.Success)
		checks := body.Data["checks"].(map[string]any)
		assert.Equal(t, "ok", checks["database"])
		assert.Equal(t, "connection refused", checks["redis"])
	})
}

func TestRouter_PublicCategories(t *testing.T) {
	app := newTestRouter(t, nil, 100)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode(t, resp).Success)
}

func TestRouter_ProtectedGroupsRequireToken(t *testing.T) {
	app := newTestRouter(t, nil, 100)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/admin/communications/"},
		{http.MethodGet, "/api/v1/admin/communications/export"},
		{http.MethodPut, "/api/v1/citizen/notification-preferences"},
		{http.MethodPost, "/api/v1/citizen/push-tokens"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(tc.method, tc.path, nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "MISSING_AUTHORIZATION_HEADER", decode(t, resp).Error.Code)
		})
	}
}

func TestRouter_GlobalRateLimitSparesHealth(t *testing.T) {
	app := newTestRouter(t, nil, 2)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decode(t, resp).Error.Code)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_NotFound(t *testing.T) {
	app := newTestRouter(t, nil, 100)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/nowhere", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}
