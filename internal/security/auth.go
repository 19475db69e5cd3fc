// Package security provides request authentication for the HTTP API:
// static API keys plus JWT bearer tokens for service-to-service callers.
package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// AuthInfo contains authenticated caller information.
type AuthInfo struct {
	Subject  string            `json:"subject"`
	AuthType string            `json:"auth_type"` // "api_key" or "jwt"
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Claims represents JWT token claims.
type Claims struct {
	Subject  string            `json:"sub_name"`
	Metadata map[string]string `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// Config holds authentication configuration.
type Config struct {
	APIKeys   []string      `yaml:"api_keys"`
	JWTSecret string        `yaml:"jwt_secret"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`
}

// Authenticator validates API keys and JWT bearer tokens.
type Authenticator struct {
	config *Config
	logger *logrus.Logger
}

// NewAuthenticator creates an authenticator. With no API keys and no JWT
// secret configured, authentication is disabled and every request passes.
func NewAuthenticator(config *Config, logger *logrus.Logger) *Authenticator {
	if config.JWTExpiry == 0 {
		config.JWTExpiry = 24 * time.Hour
	}
	return &Authenticator{config: config, logger: logger}
}

// Enabled reports whether any credential source is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.config.APIKeys) > 0 || a.config.JWTSecret != ""
}

// Authenticate validates a token as an API key first, then as a JWT.
func (a *Authenticator) Authenticate(token string) (*AuthInfo, error) {
	if token == "" {
		return nil, errors.New("missing credentials")
	}

	if info, err := a.validateAPIKey(token); err == nil {
		return info, nil
	}

	if a.config.JWTSecret != "" {
		if claims, err := a.ValidateJWT(token); err == nil {
			return &AuthInfo{
				Subject:  claims.Subject,
				AuthType: "jwt",
				Metadata: claims.Metadata,
			}, nil
		}
	}

	a.logger.WithField("token_prefix", maskToken(token)).Warn("Authentication failed")
	return nil, errors.New("invalid credentials")
}

// validateAPIKey matches the token against the configured key list with
// constant-time comparison.
func (a *Authenticator) validateAPIKey(apiKey string) (*AuthInfo, error) {
	for _, validKey := range a.config.APIKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
			return &AuthInfo{
				Subject:  keyFingerprint(apiKey),
				AuthType: "api_key",
			}, nil
		}
	}
	return nil, errors.New("invalid API key")
}

// GenerateJWT issues a signed token for a service caller.
func (a *Authenticator) GenerateJWT(subject string, metadata map[string]string) (string, error) {
	if a.config.JWTSecret == "" {
		return "", errors.New("JWT secret not configured")
	}

	now := time.Now()
	claims := &Claims{
		Subject:  subject,
		Metadata: metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.JWTExpiry)),
			Issuer:    "triage-router",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.config.JWTSecret))
}

// ValidateJWT parses and verifies a token's signature and expiry.
func (a *Authenticator) ValidateJWT(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.config.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid JWT: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid JWT claims")
	}
	return claims, nil
}

// keyFingerprint derives a stable, non-reversible caller id from an API key.
func keyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("key-%x", sum[:4])
}

// maskToken truncates a credential for log output.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****"
}
