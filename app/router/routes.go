// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/wilaya-connect/app/dto"
	"github.com/amirphl/wilaya-connect/app/handlers"
	"github.com/amirphl/wilaya-connect/app/middleware"
	"github.com/amirphl/wilaya-connect/config"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown(ctx context.Context) error
	GetApp() *fiber.App
}

// Handlers groups the endpoint handlers mounted by the router
type Handlers struct {
	Communication handlers.CommunicationHandlerInterface
	Citizen       handlers.CitizenHandlerInterface
	Category      handlers.CategoryHandlerInterface
}

// HealthCheck probes one dependency for the health endpoint
type HealthCheck func(ctx context.Context) error

// Options carries the configuration the router needs
type Options struct {
	Server          config.ServerConfig
	Security        config.SecurityConfig
	Metrics         config.MetricsConfig
	Deployment      config.DeploymentConfig
	AccessLog       io.Writer
	AccessLogFormat string // json (default) or text
	HealthChecks    map[string]HealthCheck
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
	auth     *middleware.AuthMiddleware
	opts     Options
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(h Handlers, auth *middleware.AuthMiddleware, opts Options) Router {
	cfg := fiber.Config{
		AppName:      "WilayaConnect API",
		ServerHeader: "WilayaConnect",
		ErrorHandler: errorHandler,
		BodyLimit:    opts.Server.BodyLimit,
		ReadTimeout:  opts.Server.ReadTimeout,
		WriteTimeout: opts.Server.WriteTimeout,
		IdleTimeout:  opts.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	}
	if len(opts.Server.TrustedProxies) > 0 {
		cfg.TrustProxy = true
		cfg.TrustProxyConfig = fiber.TrustProxyConfig{Proxies: opts.Server.TrustedProxies}
		cfg.ProxyHeader = opts.Server.ProxyHeader
	}
	if opts.AccessLog == nil {
		opts.AccessLog = os.Stdout
	}

	return &FiberRouter{
		app:      fiber.New(cfg),
		handlers: h,
		auth:     auth,
		opts:     opts,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	if r.opts.Metrics.Enabled {
		path := r.metricsPath()
		r.app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
		log.Printf("Prometheus metrics exposed on %s", path)
	}

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	api.Use(limiter.New(limiter.Config{
		Max:          r.opts.Security.GlobalRateLimit,
		Expiration:   r.opts.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string { return c.IP() },
		LimitReached: rateLimitReached,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		},
	}))

	api.Get("/categories", r.handlers.Category.ListCategories)

	admin := api.Group("/admin", r.auth.AdminAuthenticate())
	communications := admin.Group("/communications")

	// per-admin dispatch budget
	communications.Post("/", limiter.New(limiter.Config{
		Max:        r.opts.Security.DispatchRateLimit,
		Expiration: r.opts.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			if id, ok := middleware.GetAdminIDFromContext(c); ok {
				return "admin:" + strconv.FormatUint(uint64(id), 10)
			}
			return c.IP()
		},
		LimitReached: rateLimitReached,
	}), r.handlers.Communication.SendCommunication)
	communications.Get("/", r.handlers.Communication.ListCommunications)
	// must precede /:uuid
	communications.Get("/export", r.handlers.Communication.ExportCommunications)
	communications.Get("/:uuid", r.handlers.Communication.GetCommunication)

	citizen := api.Group("/citizen", r.auth.CitizenAuthenticate())
	citizen.Post("/push-tokens", r.handlers.Citizen.RegisterPushToken)
	citizen.Delete("/push-tokens", r.handlers.Citizen.RemovePushToken)
	citizen.Get("/notification-preferences", r.handlers.Citizen.GetNotificationPreferences)
	citizen.Put("/notification-preferences", r.handlers.Citizen.UpdateNotificationPreferences)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

func (r *FiberRouter) metricsPath() string {
	if r.opts.Metrics.Path != "" {
		return r.opts.Metrics.Path
	}
	return "/metrics"
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				requestid.FromContext(c),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             r.opts.Security.XFrameOptions,
		HSTSMaxAge:                r.opts.Security.HSTSMaxAge,
		ContentSecurityPolicy:     r.opts.Security.CSPPolicy,
		ReferrerPolicy:            r.opts.Security.ReferrerPolicy,
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.opts.Security.AllowedOrigins,
		AllowMethods:     r.opts.Security.AllowedMethods,
		AllowHeaders:     r.opts.Security.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: r.opts.Security.AllowCredentials,
		MaxAge:           r.opts.Security.CORSMaxAge,
	}))

	if r.opts.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	accessFormat := `{"time":"${time}","pid":"${pid}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n"
	if r.opts.AccessLogFormat == "text" {
		accessFormat = "${time} ${respHeader:X-Request-ID} ${ip} ${method} ${path} ${status} ${latency}\n"
	}
	r.app.Use(logger.New(logger.Config{
		Format:     accessFormat,
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Stream:     r.opts.AccessLog,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath || c.Path() == r.metricsPath()
		},
	}))

	if r.opts.Metrics.Enabled {
		r.app.Use(middleware.Metrics(r.metricsPath()))
	}
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	listen := fiber.ListenConfig{DisableStartupMessage: true}
	if r.opts.Security.TLSEnabled {
		listen.CertFile = r.opts.Security.TLSCertFile
		listen.CertKeyFile = r.opts.Security.TLSKeyFile
	}
	log.Printf("Starting server on %s (tls=%t)", address, r.opts.Security.TLSEnabled)
	return r.app.Listen(address, listen)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (r *FiberRouter) Shutdown(ctx context.Context) error {
	return r.app.ShutdownWithContext(ctx)
}

// GetApp returns the underlying Fiber app
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(r.opts.HealthChecks))
	healthy := true
	for name, check := range r.opts.HealthChecks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := fiber.StatusOK
	message := "Service is healthy"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		message = "Service is degraded"
	}

	return c.Status(status).JSON(dto.APIResponse{
		Success: healthy,
		Message: message,
		Data: fiber.Map{
			"status":      map[bool]string{true: "ok", false: "degraded"}[healthy],
			"checks":      checks,
			"timestamp":   utils.UTCNow().Unix(),
			"version":     r.opts.Deployment.Version,
			"commit":      r.opts.Deployment.CommitHash,
			"built_at":    r.opts.Deployment.BuildTime,
			"environment": r.opts.Deployment.Environment,
			"service":     "wilaya-connect-api",
		},
	})
}

func rateLimitReached(c fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
		Success: false,
		Message: "Too many requests. Please try again later.",
		Error: dto.ErrorDetail{
			Code: "RATE_LIMIT_EXCEEDED",
		},
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
			errorCode = strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
		}
	}

	log.Printf("Error %d: %v", code, err)

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
