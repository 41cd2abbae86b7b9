// Package middleware provides request-scoped logging, tracing, metrics, rate limiting and token verification.
package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cookiegram/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any bearer token that fails verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenVerifier validates session tokens issued by the identity provider.
// The subject claim carries the caller's external (provider) user ID.
type TokenVerifier struct {
	key      any
	methods  []string
	issuer   string
	audience string
}

// NewTokenVerifier builds a verifier from config. An RS256 public key takes
// precedence over the HS256 shared secret.
func NewTokenVerifier(cfg *config.Config) (*TokenVerifier, error) {
	v := &TokenVerifier{issuer: cfg.JWTIssuer, audience: cfg.JWTAudience}

	switch {
	case strings.TrimSpace(cfg.JWTPublicKey) != "":
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTPublicKey))
		if err != nil {
			return nil, fmt.Errorf("parse JWT_PUBLIC_KEY: %w", err)
		}
		v.key = pub
		v.methods = []string{jwt.SigningMethodRS256.Alg()}
	case cfg.JWTSecret != "":
		v.key = []byte(cfg.JWTSecret)
		v.methods = []string{jwt.SigningMethodHS256.Alg()}
	default:
		return nil, errors.New("no token verification key configured")
	}

	return v, nil
}

// Verify checks signature, expiry and, when configured, issuer and audience.
// It returns the subject claim.
func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
