package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Push notification constants
const (
	PushNotificationTitle = "Nouvelle Communication de WilayaConnect"

	// PushBodyMaxLength is the banner limit applied before the ellipsis is appended
	PushBodyMaxLength = 240

	TruncationIndicator = "..."

	PushErrorTokenNotRegistered = "messaging/registration-token-not-registered"
	PushErrorInvalidToken       = "messaging/invalid-registration-token"
)

// SMS constants
const (
	SMSGSM7SingleSegment  = 160
	SMSGSM7MultiSegment   = 153
	SMSUCS2SingleSegment  = 70
	SMSUCS2MultiSegment   = 67
	SMSDefaultMaxSegments = 3
)

// WhatsApp constants
const (
	WhatsAppBodyMaxLength = 4096
	WhatsAppHeader        = "*WilayaConnect*"
)

// Redis keys (prefixed with CacheConfig.RedisPrefix)
const (
	CategoriesCacheKey      = "categories:v1"
	DispatchIdempotencyKey  = "dispatch:idem:"
	TokenPruneDedupKey      = "push:prune:"
	DispatchIdempotencyTTL  = 10 * time.Minute
	TokenPruneDedupTTL      = time.Minute
	CategoriesCacheDuration = time.Hour
)
