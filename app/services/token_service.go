package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/amirphl/wilaya-connect/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token has been revoked")
)

const (
	roleAdmin   = "admin"
	roleCitizen = "citizen"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	revokedTokenKeyPrefix = "jwt:revoked:"
	revocationTimeout     = 2 * time.Second
)

// TokenService issues and checks the bearer tokens of both API audiences:
// back-office admins and citizens using the mobile app.
type TokenService interface {
	GenerateAdminTokens(adminID uint) (accessToken, refreshToken string, err error)
	ValidateAdminToken(token string) (*AdminTokenClaims, error)
	GenerateCitizenTokens(citizenID uint) (accessToken, refreshToken string, err error)
	ValidateCitizenToken(token string) (*CitizenTokenClaims, error)
	RefreshToken(refreshToken string) (newAccessToken, newRefreshToken string, err error)
	RevokeToken(token string) error
	IsTokenRevoked(token string) bool
}

type AdminTokenClaims struct {
	AdminID   uint      `json:"admin_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"`
	TokenID   string    `json:"jti"`
}

type CitizenTokenClaims struct {
	CitizenID uint      `json:"citizen_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"`
	TokenID   string    `json:"jti"`
}

// sessionClaims is the wire form of every token. The subject holds the numeric
// admin or citizen id; Role says which table it refers to.
type sessionClaims struct {
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func (c *sessionClaims) subjectID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrTokenInvalid
	}
	return uint(id), nil
}

type TokenServiceImpl struct {
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	issuer          string
	audience        string

	method    jwt.SigningMethod
	signKey   any
	verifyKey any

	rdb     *redis.Client
	mu      sync.RWMutex
	revoked map[string]time.Time // jti -> token expiry, used without Redis
}

// NewTokenService keeps revocations in process memory
func NewTokenService(accessTokenTTL, refreshTokenTTL time.Duration, issuer, audience string, useRSAKeys bool, privateKeyPEM, publicKeyPEM, secretKey string) (TokenService, error) {
	return newTokenService(accessTokenTTL, refreshTokenTTL, issuer, audience, useRSAKeys, privateKeyPEM, publicKeyPEM, secretKey, nil)
}

// NewTokenServiceWithRedis shares revocations between instances through rdb
func NewTokenServiceWithRedis(accessTokenTTL, refreshTokenTTL time.Duration, issuer, audience string, useRSAKeys bool, privateKeyPEM, publicKeyPEM, secretKey string, rdb *redis.Client) (TokenService, error) {
	return newTokenService(accessTokenTTL, refreshTokenTTL, issuer, audience, useRSAKeys, privateKeyPEM, publicKeyPEM, secretKey, rdb)
}

func newTokenService(accessTokenTTL, refreshTokenTTL time.Duration, issuer, audience string, useRSAKeys bool, privateKeyPEM, publicKeyPEM, secretKey string, rdb *redis.Client) (*TokenServiceImpl, error) {
	s := &TokenServiceImpl{
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		issuer:          issuer,
		audience:        audience,
		rdb:             rdb,
		revoked:         make(map[string]time.Time),
	}

	if !useRSAKeys {
		if secretKey == "" {
			return nil, fmt.Errorf("secret key is required when not using RSA keys")
		}
		s.method = jwt.SigningMethodHS256
		s.signKey = []byte(secretKey)
		s.verifyKey = s.signKey
		return s, nil
	}

	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, fmt.Errorf("both private and public keys are required")
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
	}
	s.method = jwt.SigningMethodRS256
	s.signKey = priv
	s.verifyKey = pub
	return s, nil
}

func (s *TokenServiceImpl) GenerateAdminTokens(adminID uint) (accessToken, refreshToken string, err error) {
	return s.issuePair(roleAdmin, adminID)
}

func (s *TokenServiceImpl) GenerateCitizenTokens(citizenID uint) (accessToken, refreshToken string, err error) {
	return s.issuePair(roleCitizen, citizenID)
}

func (s *TokenServiceImpl) issuePair(role string, id uint) (string, string, error) {
	now := utils.UTCNow()
	access, err := s.sign(role, id, tokenTypeAccess, now, s.accessTokenTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.sign(role, id, tokenTypeRefresh, now, s.refreshTokenTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *TokenServiceImpl) sign(role string, id uint, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	jti, err := newTokenID()
	if err != nil {
		return "", fmt.Errorf("failed to generate token id: %w", err)
	}
	claims := sessionClaims{
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatUint(uint64(id), 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.signKey)
}

func (s *TokenServiceImpl) ValidateAdminToken(token string) (*AdminTokenClaims, error) {
	c, err := s.verify(token, roleAdmin)
	if err != nil {
		return nil, err
	}
	id, err := c.subjectID()
	if err != nil {
		return nil, err
	}
	return &AdminTokenClaims{
		AdminID:   id,
		IssuedAt:  c.IssuedAt.UTC(),
		ExpiresAt: c.ExpiresAt.UTC(),
		TokenType: c.TokenType,
		TokenID:   c.ID,
	}, nil
}

func (s *TokenServiceImpl) ValidateCitizenToken(token string) (*CitizenTokenClaims, error) {
	c, err := s.verify(token, roleCitizen)
	if err != nil {
		return nil, err
	}
	id, err := c.subjectID()
	if err != nil {
		return nil, err
	}
	return &CitizenTokenClaims{
		CitizenID: id,
		IssuedAt:  c.IssuedAt.UTC(),
		ExpiresAt: c.ExpiresAt.UTC(),
		TokenType: c.TokenType,
		TokenID:   c.ID,
	}, nil
}

// RefreshToken exchanges a refresh token of either role for a new pair.
// Refresh tokens are single use.
func (s *TokenServiceImpl) RefreshToken(refreshToken string) (newAccessToken, newRefreshToken string, err error) {
	c, err := s.verify(refreshToken, "")
	if err != nil {
		return "", "", fmt.Errorf("invalid refresh token: %w", err)
	}
	if c.TokenType != tokenTypeRefresh {
		return "", "", fmt.Errorf("token is not a refresh token")
	}
	id, err := c.subjectID()
	if err != nil {
		return "", "", fmt.Errorf("invalid refresh token: %w", err)
	}
	if err := s.RevokeToken(refreshToken); err != nil {
		return "", "", err
	}
	return s.issuePair(c.Role, id)
}

// verify checks signature, issuer, audience and expiry, then the role (when
// role is non-empty) and the revocation list.
func (s *TokenServiceImpl) verify(token, role string) (*sessionClaims, error) {
	var c sessionClaims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return s.verifyKey, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, ErrTokenInvalid
	}

	if c.ID == "" || c.IssuedAt == nil || (c.Role != roleAdmin && c.Role != roleCitizen) {
		return nil, ErrTokenInvalid
	}
	if role != "" && c.Role != role {
		return nil, ErrTokenInvalid
	}
	if s.isRevoked(c.ID) {
		return nil, ErrTokenRevoked
	}
	return &c, nil
}

// RevokeToken denies the token's jti until the token would have expired anyway
func (s *TokenServiceImpl) RevokeToken(token string) error {
	jti, exp, err := peekIDAndExpiry(token)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	ttl := time.Until(exp)
	if ttl <= 0 {
		return nil
	}

	if s.rdb == nil {
		s.mu.Lock()
		s.revoked[jti] = exp
		s.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), revocationTimeout)
	defer cancel()
	if err := s.rdb.Set(ctx, revokedTokenKeyPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revoked token: %w", err)
	}
	return nil
}

// IsTokenRevoked treats unparseable tokens as revoked
func (s *TokenServiceImpl) IsTokenRevoked(token string) bool {
	jti, _, err := peekIDAndExpiry(token)
	if err != nil {
		return true
	}
	return s.isRevoked(jti)
}

func (s *TokenServiceImpl) isRevoked(jti string) bool {
	if s.rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), revocationTimeout)
		defer cancel()
		n, err := s.rdb.Exists(ctx, revokedTokenKeyPrefix+jti).Result()
		return err == nil && n > 0
	}

	s.mu.RLock()
	exp, ok := s.revoked[jti]
	s.mu.RUnlock()
	return ok && utils.UTCNow().Before(exp)
}

// peekIDAndExpiry reads jti and exp without checking the signature
func peekIDAndExpiry(token string) (string, time.Time, error) {
	var c sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return "", time.Time{}, err
	}
	if c.ID == "" || c.ExpiresAt == nil {
		return "", time.Time{}, ErrTokenInvalid
	}
	return c.ID, c.ExpiresAt.Time, nil
}

func newTokenID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
