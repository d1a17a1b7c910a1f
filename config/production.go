// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/wilaya-connect/utils"
	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Push       PushConfig       `json:"push"`
	SMS        SMSConfig        `json:"sms"`
	WhatsApp   WhatsAppConfig   `json:"whatsapp"`
	Dispatch   DispatchConfig   `json:"dispatch"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Admin      AdminConfig      `json:"admin"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	TLSEnabled  bool   `json:"tls_enabled"`
	TLSCertFile string `json:"tls_cert_file"`
	TLSKeyFile  string `json:"tls_key_file"`
	HSTSMaxAge  int    `json:"hsts_max_age"`

	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate limiting, requests per window
	GlobalRateLimit   int           `json:"global_rate_limit"`
	DispatchRateLimit int           `json:"dispatch_rate_limit"`
	RateLimitWindow   time.Duration `json:"rate_limit_window"`

	CSPPolicy      string `json:"csp_policy"`
	XFrameOptions  string `json:"x_frame_options"`
	ReferrerPolicy string `json:"referrer_policy"`
}

type JWTConfig struct {
	SecretKey       string        `json:"secret_key"`
	PrivateKey      string        `json:"private_key"`  // RSA private key in PEM format
	PublicKey       string        `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys      bool          `json:"use_rsa_keys"` // Whether to use RSA keys instead of secret key
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"`
	Issuer          string        `json:"issuer"`
	Audience        string        `json:"audience"`
}

// PushConfig configures the FCM push provider
type PushConfig struct {
	Provider        string        `json:"provider"` // fcm, mock
	ProjectID       string        `json:"project_id"`
	CredentialsFile string        `json:"credentials_file"`
	Endpoint        string        `json:"endpoint"`
	Timeout         time.Duration `json:"timeout"`
	MaxRetries      int           `json:"max_retries"`
	Concurrency     int           `json:"concurrency"`
}

type SMSConfig struct {
	Provider          string        `json:"provider"` // http, mock
	ProviderDomain    string        `json:"provider_domain"`
	APIKey            string        `json:"api_key"`
	SourceNumber      string        `json:"source_number"`
	ValidityPeriod    int           `json:"validity_period"`
	Timeout           time.Duration `json:"timeout"`
	MaxRetries        int           `json:"max_retries"`
	MaxSegments       int           `json:"max_segments"`
	ResolveRecipients bool          `json:"resolve_recipients"`
}

type WhatsAppConfig struct {
	Provider          string        `json:"provider"` // cloud, mock
	APIBaseURL        string        `json:"api_base_url"`
	PhoneNumberID     string        `json:"phone_number_id"`
	AccessToken       string        `json:"access_token"`
	Timeout           time.Duration `json:"timeout"`
	MaxRetries        int           `json:"max_retries"`
	EmphasisHeader    bool          `json:"emphasis_header"`
	ResolveRecipients bool          `json:"resolve_recipients"`
}

// DispatchConfig tunes the communication dispatch engine
type DispatchConfig struct {
	ProviderTimeout     time.Duration `json:"provider_timeout"`
	PruneQueueSize      int           `json:"prune_queue_size"`
	PruneWorkers        int           `json:"prune_workers"`
	PruneTimeout        time.Duration `json:"prune_timeout"`
	IdempotencyTTL      time.Duration `json:"idempotency_ttl"`
	ExportMaxRows       int           `json:"export_max_rows"`
	CategoriesCacheTTL  time.Duration `json:"categories_cache_ttl"`
	CacheHealthInterval time.Duration `json:"cache_health_interval"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	EnableAccessLog bool `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool   `json:"enabled"`
	Provider    string `json:"provider"` // redis
	RedisURL    string `json:"redis_url"`
	RedisDB     int    `json:"redis_db"`
	RedisPrefix string `json:"redis_prefix"`
}

// AdminConfig seeds the first back-office account on startup
type AdminConfig struct {
	BootstrapUsername    string `json:"bootstrap_username"`
	BootstrapDisplayName string `json:"bootstrap_display_name"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "wilaya_connect"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", false),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:    getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 1024*1024), // 1MB
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			TLSEnabled:        getEnvBool("TLS_ENABLED", false),
			TLSCertFile:       getEnvString("TLS_CERT_FILE", ""),
			TLSKeyFile:        getEnvString("TLS_KEY_FILE", ""),
			HSTSMaxAge:        getEnvInt("HSTS_MAX_AGE", 31536000), // 1 year
			AllowedOrigins:    getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"https://admin.wilaya-connect.dz"}),
			AllowedMethods:    getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:    getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", "X-Request-ID"}),
			AllowCredentials:  getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:        getEnvInt("CORS_MAX_AGE", utils.CORSMaxAge),
			GlobalRateLimit:   getEnvInt("GLOBAL_RATE_LIMIT", 600),
			DispatchRateLimit: getEnvInt("DISPATCH_RATE_LIMIT", 20),
			RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			CSPPolicy:         getEnvString("CSP_POLICY", "default-src 'self'"),
			XFrameOptions:     getEnvString("X_FRAME_OPTIONS", "DENY"),
			ReferrerPolicy:    getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
		},
		JWT: JWTConfig{
			SecretKey:       getEnvString("JWT_SECRET_KEY", ""),
			PrivateKey:      getEnvString("JWT_PRIVATE_KEY", ""),
			PublicKey:       getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys:      getEnvBool("JWT_USE_RSA_KEYS", false),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TOKEN_TTL", utils.AccessTokenTTL),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TOKEN_TTL", utils.RefreshTokenTTL),
			Issuer:          getEnvString("JWT_ISSUER", "wilaya-connect"),
			Audience:        getEnvString("JWT_AUDIENCE", "wilaya-connect-api"),
		},
		Push: PushConfig{
			Provider:        getEnvString("PUSH_PROVIDER", "mock"),
			ProjectID:       getEnvString("FCM_PROJECT_ID", ""),
			CredentialsFile: getEnvString("FCM_CREDENTIALS_FILE", ""),
			Endpoint:        getEnvString("FCM_ENDPOINT", "https://fcm.googleapis.com"),
			Timeout:         getEnvDuration("FCM_TIMEOUT", 15*time.Second),
			MaxRetries:      getEnvInt("FCM_MAX_RETRIES", 3),
			Concurrency:     getEnvInt("FCM_CONCURRENCY", 16),
		},
		SMS: SMSConfig{
			Provider:          getEnvString("SMS_PROVIDER", "mock"),
			ProviderDomain:    getEnvString("SMS_PROVIDER_DOMAIN", ""),
			APIKey:            getEnvString("SMS_API_KEY", ""),
			SourceNumber:      getEnvString("SMS_SOURCE_NUMBER", ""),
			ValidityPeriod:    getEnvInt("SMS_VALIDITY_PERIOD", 3600),
			Timeout:           getEnvDuration("SMS_TIMEOUT", 30*time.Second),
			MaxRetries:        getEnvInt("SMS_MAX_RETRIES", 3),
			MaxSegments:       getEnvInt("SMS_MAX_SEGMENTS", utils.SMSDefaultMaxSegments),
			ResolveRecipients: getEnvBool("SMS_RESOLVE_RECIPIENTS", false),
		},
		WhatsApp: WhatsAppConfig{
			Provider:          getEnvString("WHATSAPP_PROVIDER", "mock"),
			APIBaseURL:        getEnvString("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v19.0"),
			PhoneNumberID:     getEnvString("WHATSAPP_PHONE_NUMBER_ID", ""),
			AccessToken:       getEnvString("WHATSAPP_ACCESS_TOKEN", ""),
			Timeout:           getEnvDuration("WHATSAPP_TIMEOUT", 30*time.Second),
			MaxRetries:        getEnvInt("WHATSAPP_MAX_RETRIES", 3),
			EmphasisHeader:    getEnvBool("WHATSAPP_EMPHASIS_HEADER", true),
			ResolveRecipients: getEnvBool("WHATSAPP_RESOLVE_RECIPIENTS", false),
		},
		Dispatch: DispatchConfig{
			ProviderTimeout:     getEnvDuration("DISPATCH_PROVIDER_TIMEOUT", 2*time.Minute),
			PruneQueueSize:      getEnvInt("DISPATCH_PRUNE_QUEUE_SIZE", 1024),
			PruneWorkers:        getEnvInt("DISPATCH_PRUNE_WORKERS", 2),
			PruneTimeout:        getEnvDuration("DISPATCH_PRUNE_TIMEOUT", 5*time.Second),
			IdempotencyTTL:      getEnvDuration("DISPATCH_IDEMPOTENCY_TTL", 10*time.Minute),
			ExportMaxRows:       getEnvInt("DISPATCH_EXPORT_MAX_ROWS", 10000),
			CategoriesCacheTTL:  getEnvDuration("CATEGORIES_CACHE_TTL", 1*time.Hour),
			CacheHealthInterval: getEnvDuration("CACHE_HEALTH_INTERVAL", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Format:          getEnvString("LOG_FORMAT", "json"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/wilaya-connect/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", true),
			Provider:    getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "wilaya:"),
		},
		Admin: AdminConfig{
			BootstrapUsername:    getEnvString("ADMIN_BOOTSTRAP_USERNAME", ""),
			BootstrapDisplayName: getEnvString("ADMIN_BOOTSTRAP_DISPLAY_NAME", "Wilaya Administrator"),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads variables from path without overriding the process environment.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var problems []string

	if cfg.Database.Host == "" {
		problems = append(problems, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		problems = append(problems, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		problems = append(problems, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		problems = append(problems, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		problems = append(problems, "DB_PASSWORD is required")
	}

	if cfg.JWT.UseRSAKeys {
		if cfg.JWT.PrivateKey == "" || cfg.JWT.PublicKey == "" {
			problems = append(problems, "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when JWT_USE_RSA_KEYS is set")
		}
	} else if len(cfg.JWT.SecretKey) < 32 {
		problems = append(problems, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		problems = append(problems, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		problems = append(problems, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		problems = append(problems, "JWT_AUDIENCE is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		problems = append(problems, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		problems = append(problems, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		problems = append(problems, "SERVER_WRITE_TIMEOUT must be positive")
	}

	if cfg.Security.TLSEnabled {
		if cfg.Security.TLSCertFile == "" {
			problems = append(problems, "TLS_CERT_FILE is required when TLS is enabled")
		}
		if cfg.Security.TLSKeyFile == "" {
			problems = append(problems, "TLS_KEY_FILE is required when TLS is enabled")
		}
	}

	switch cfg.Push.Provider {
	case "mock":
	case "fcm":
		if cfg.Push.ProjectID == "" {
			problems = append(problems, "FCM_PROJECT_ID is required for the fcm push provider")
		}
		if cfg.Push.CredentialsFile == "" {
			problems = append(problems, "FCM_CREDENTIALS_FILE is required for the fcm push provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("PUSH_PROVIDER must be one of: fcm, mock (got %q)", cfg.Push.Provider))
	}

	switch cfg.SMS.Provider {
	case "mock":
	case "http":
		if cfg.SMS.ProviderDomain == "" {
			problems = append(problems, "SMS_PROVIDER_DOMAIN is required for the http SMS provider")
		}
		if cfg.SMS.APIKey == "" {
			problems = append(problems, "SMS_API_KEY is required for the http SMS provider")
		}
		if cfg.SMS.SourceNumber == "" {
			problems = append(problems, "SMS_SOURCE_NUMBER is required for the http SMS provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("SMS_PROVIDER must be one of: http, mock (got %q)", cfg.SMS.Provider))
	}
	if cfg.SMS.MaxSegments < 1 {
		problems = append(problems, "SMS_MAX_SEGMENTS must be at least 1")
	}

	switch cfg.WhatsApp.Provider {
	case "mock":
	case "cloud":
		if cfg.WhatsApp.PhoneNumberID == "" {
			problems = append(problems, "WHATSAPP_PHONE_NUMBER_ID is required for the cloud WhatsApp provider")
		}
		if cfg.WhatsApp.AccessToken == "" {
			problems = append(problems, "WHATSAPP_ACCESS_TOKEN is required for the cloud WhatsApp provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("WHATSAPP_PROVIDER must be one of: cloud, mock (got %q)", cfg.WhatsApp.Provider))
	}

	if cfg.Dispatch.PruneWorkers < 1 {
		problems = append(problems, "DISPATCH_PRUNE_WORKERS must be at least 1")
	}
	if cfg.Dispatch.PruneQueueSize < 1 {
		problems = append(problems, "DISPATCH_PRUNE_QUEUE_SIZE must be at least 1")
	}

	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			problems = append(problems, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}
	switch cfg.Logging.Output {
	case "", "stdout", "file", "both":
	default:
		problems = append(problems, "LOG_OUTPUT must be one of: stdout, file, both")
	}
	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		problems = append(problems, "LOG_FORMAT must be one of: json, text")
	}

	if cfg.Cache.Enabled && cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
		problems = append(problems, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}

	return nil
}
