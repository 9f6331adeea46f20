// Package auth verifies admin bearer tokens for the catalog API.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/AndrewDeWitt/grimlog/internal/errors"
)

// RoleAdmin is the role required for catalog mutations.
const RoleAdmin = "admin"

// Config defines how admin tokens are minted and verified.
type Config struct {
	Issuer string
	Secret []byte
	Now    func() time.Time
}

type adminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type contextKey struct{}

// Subject returns the authenticated token subject from the request context.
func Subject(ctx context.Context) string {
	subject, _ := ctx.Value(contextKey{}).(string)
	return subject
}

// MintToken issues a signed admin token for the given subject.
func MintToken(cfg Config, subject string, ttl time.Duration) (string, error) {
	if len(cfg.Secret) == 0 {
		return "", fmt.Errorf("auth secret is not configured")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	claims := adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now()),
			ExpiresAt: jwt.NewNumericDate(now().Add(ttl)),
		},
		Role: RoleAdmin,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}

// Verify parses and validates a bearer token, returning its subject.
func Verify(cfg Config, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.New(apperrors.CodeAuthTokenMissing, "authorization token is required")
	}
	if len(cfg.Secret) == 0 {
		return "", fmt.Errorf("auth secret is not configured")
	}

	options := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Now != nil {
		options = append(options, jwt.WithTimeFunc(cfg.Now))
	}

	var claims adminClaims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return cfg.Secret, nil
	}, options...); err != nil {
		return "", apperrors.Wrap(apperrors.CodeAuthTokenInvalid, "authorization token is invalid", err)
	}
	if claims.Role != RoleAdmin {
		return "", apperrors.New(apperrors.CodeAuthForbidden, "admin role is required")
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid admin bearer token. The
// authenticated subject is placed on the request context.
func Middleware(cfg Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			apperrors.WriteHTTP(w, apperrors.New(apperrors.CodeAuthTokenMissing, "bearer token is required"))
			return
		}
		subject, err := Verify(cfg, token)
		if err != nil {
			apperrors.WriteHTTP(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, subject)))
	})
}
