// Package main provides the main entry point for the WilayaConnect dispatch service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/wilaya-connect/app/handlers"
	"github.com/amirphl/wilaya-connect/app/middleware"
	"github.com/amirphl/wilaya-connect/app/router"
	"github.com/amirphl/wilaya-connect/app/scheduler"
	"github.com/amirphl/wilaya-connect/app/services"
	businessflow "github.com/amirphl/wilaya-connect/business_flow"
	"github.com/amirphl/wilaya-connect/config"
	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/repository"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	db        *gorm.DB
	cache     *redis.Client
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logWriter := utils.NewLogWriter(utils.LogOptions{
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	log.SetOutput(logWriter)
	log.SetFlags(log.LstdFlags | log.LUTC)

	log.Printf("Starting WilayaConnect %s (%s)...", cfg.Deployment.Version, cfg.Deployment.Environment)

	app, err := initializeApplication(cfg, logWriter)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// stop taking requests before draining the workers they feed
	if err := app.router.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	for _, fn := range app.stopFuncs {
		fn()
	}
	if app.cache != nil {
		_ = app.cache.Close()
	}
	if sqlDB, err := app.db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logLevel string, w io.Writer) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormCfg := &gorm.Config{Logger: gormlogger.Discard}
	if cfg.SlowQueryLog || logLevel == "debug" {
		level := gormlogger.Warn
		switch logLevel {
		case "debug":
			level = gormlogger.Info
		case "error":
			level = gormlogger.Error
		}
		gormCfg.Logger = gormlogger.New(log.New(w, "gorm ", log.LstdFlags|log.LUTC), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(
			&models.Admin{},
			&models.Citizen{},
			&models.NotificationSubscription{},
			&models.CommunicationLog{},
			&models.ServiceRequest{},
		); err != nil {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// initializeProviders picks the channel gateways configured for this deployment
func initializeProviders(cfg *config.ProductionConfig, w io.Writer) (services.PushProvider, services.SMSProvider, services.WhatsAppProvider, error) {
	var push services.PushProvider
	switch cfg.Push.Provider {
	case "fcm":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		fcm, err := services.NewFCMPushProvider(ctx, cfg.Push, utils.NewComponentLogger(w, "[fcm]"))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize FCM provider: %w", err)
		}
		push = fcm
	default:
		push = services.NewMockPushProvider()
	}

	var sms services.SMSProvider
	switch cfg.SMS.Provider {
	case "http":
		sms = services.NewHTTPSMSProvider(&cfg.SMS, utils.NewComponentLogger(w, "[sms]"))
	default:
		sms = services.NewSimulatedSMSProvider(utils.NewComponentLogger(w, "[sms-sim]"))
	}

	var whatsapp services.WhatsAppProvider
	switch cfg.WhatsApp.Provider {
	case "cloud":
		whatsapp = services.NewCloudWhatsAppProvider(&cfg.WhatsApp, utils.NewComponentLogger(w, "[whatsapp]"))
	default:
		whatsapp = services.NewSimulatedWhatsAppProvider(utils.NewComponentLogger(w, "[whatsapp-sim]"))
	}

	log.Printf("Channel providers: push=%s sms=%s whatsapp=%s", cfg.Push.Provider, cfg.SMS.Provider, cfg.WhatsApp.Provider)
	return push, sms, whatsapp, nil
}

func initializeApplication(cfg *config.ProductionConfig, logWriter io.Writer) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, cfg.Logging.Level, logWriter)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	adminRepo := repository.NewAdminRepository(db)
	citizenRepo := repository.NewCitizenRepository(db)
	subRepo := repository.NewNotificationSubscriptionRepository(db)
	logRepo := repository.NewCommunicationLogRepository(db)

	if err := ensureBootstrapAdmin(adminRepo, cfg.Admin); err != nil {
		return nil, err
	}

	pushProvider, smsProvider, whatsappProvider, err := initializeProviders(cfg, logWriter)
	if err != nil {
		return nil, err
	}

	var tokenService services.TokenService
	if rc != nil {
		tokenService, err = services.NewTokenServiceWithRedis(
			cfg.JWT.AccessTokenTTL,
			cfg.JWT.RefreshTokenTTL,
			cfg.JWT.Issuer,
			cfg.JWT.Audience,
			cfg.JWT.UseRSAKeys,
			cfg.JWT.PrivateKey,
			cfg.JWT.PublicKey,
			cfg.JWT.SecretKey,
			rc,
		)
	} else {
		tokenService, err = services.NewTokenService(
			cfg.JWT.AccessTokenTTL,
			cfg.JWT.RefreshTokenTTL,
			cfg.JWT.Issuer,
			cfg.JWT.Audience,
			cfg.JWT.UseRSAKeys,
			cfg.JWT.PrivateKey,
			cfg.JWT.PublicKey,
			cfg.JWT.SecretKey,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	registry := businessflow.NewTokenRegistry(citizenRepo)
	resolver := businessflow.NewAudienceResolver(citizenRepo)

	pruner := scheduler.NewTokenPruner(
		registry,
		rc,
		cfg.Cache.RedisPrefix,
		cfg.Dispatch.PruneQueueSize,
		cfg.Dispatch.PruneWorkers,
		cfg.Dispatch.PruneTimeout,
		utils.NewComponentLogger(logWriter, "[token-pruner]"),
	)
	stopFuncs = append(stopFuncs, pruner.Start(context.Background()))

	var cacheMonitor *scheduler.CacheMonitor
	if rc != nil {
		cacheMonitor = scheduler.NewCacheMonitor(rc, cfg.Dispatch.CacheHealthInterval, utils.NewComponentLogger(logWriter, "[cache-monitor]"))
		stopFuncs = append(stopFuncs, cacheMonitor.Start(context.Background()))
	}

	dispatchLogger := utils.NewComponentLogger(logWriter, "[dispatch]")
	pushDispatcher := businessflow.NewPushDispatcher(pushProvider, pruner, cfg.Dispatch.ProviderTimeout, dispatchLogger)
	smsDispatcher := businessflow.NewSMSDispatcher(
		smsProvider,
		resolver,
		cfg.SMS.ResolveRecipients,
		cfg.SMS.MaxSegments,
		cfg.Dispatch.ProviderTimeout,
		dispatchLogger,
	)
	whatsappDispatcher := businessflow.NewWhatsAppDispatcher(
		whatsappProvider,
		resolver,
		cfg.WhatsApp.ResolveRecipients,
		cfg.WhatsApp.EmphasisHeader,
		cfg.Dispatch.ProviderTimeout,
		dispatchLogger,
	)

	communicationFlow := businessflow.NewCommunicationFlow(
		logRepo,
		resolver,
		pushDispatcher,
		smsDispatcher,
		whatsappDispatcher,
		rc,
		businessflow.CommunicationFlowOptions{
			RedisPrefix:    cfg.Cache.RedisPrefix,
			IdempotencyTTL: cfg.Dispatch.IdempotencyTTL,
			ExportMaxRows:  cfg.Dispatch.ExportMaxRows,
		},
		dispatchLogger,
	)

	citizenFlow := businessflow.NewCitizenNotificationFlow(citizenRepo, subRepo, registry, db)

	categoryFlow := businessflow.NewCategoryFlow(rc, cfg.Cache.RedisPrefix, cfg.Dispatch.CategoriesCacheTTL, utils.NewComponentLogger(logWriter, "[categories]"))

	authMiddleware := middleware.NewAuthMiddleware(tokenService, adminRepo)

	healthChecks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if cacheMonitor != nil {
		healthChecks["cache"] = func(context.Context) error {
			if !cacheMonitor.Healthy() {
				return fmt.Errorf("redis unreachable")
			}
			return nil
		}
	}

	var accessLog io.Writer = io.Discard
	if cfg.Logging.EnableAccessLog {
		accessLog = logWriter
	}

	appRouter := router.NewFiberRouter(
		router.Handlers{
			Communication: handlers.NewCommunicationHandler(communicationFlow, cfg.Server.RequestTimeout),
			Citizen:       handlers.NewCitizenHandler(citizenFlow, cfg.Server.RequestTimeout),
			Category:      handlers.NewCategoryHandler(categoryFlow),
		},
		authMiddleware,
		router.Options{
			Server:          cfg.Server,
			Security:        cfg.Security,
			Metrics:         cfg.Metrics,
			Deployment:      cfg.Deployment,
			AccessLog:       accessLog,
			AccessLogFormat: cfg.Logging.Format,
			HealthChecks:    healthChecks,
		},
	)

	return &Application{
		router:    appRouter,
		config:    cfg,
		db:        db,
		cache:     rc,
		stopFuncs: stopFuncs,
	}, nil
}

// ensureBootstrapAdmin creates the configured admin account when it does not exist yet
func ensureBootstrapAdmin(adminRepo repository.AdminRepository, cfg config.AdminConfig) error {
	if cfg.BootstrapUsername == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	existing, err := adminRepo.ByUsername(ctx, cfg.BootstrapUsername)
	if err != nil {
		return fmt.Errorf("failed to look up bootstrap admin: %w", err)
	}
	if existing != nil {
		return nil
	}

	admin := &models.Admin{
		UUID:     uuid.New(),
		Username: cfg.BootstrapUsername,
		IsActive: utils.ToPtr(true),
	}
	if cfg.BootstrapDisplayName != "" {
		admin.DisplayName = utils.ToPtr(cfg.BootstrapDisplayName)
	}
	if err := adminRepo.Save(ctx, admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	log.Printf("Bootstrap admin %q created (id=%d)", admin.Username, admin.ID)
	return nil
}
