package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"field-service-system/pkg/response"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserContextKey contextKey = "user"

const (
	RoleAdmin      = "admin"
	RoleTechnician = "technician"
)

type UserClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (c *UserClaims) IsAdmin() bool { return c.Role == RoleAdmin }

// Auth returns a middleware that verifies the Bearer token against secret
// and stores the claims in the request context. The secret is read from the
// environment once at startup and injected here, never re-read per request.
func Auth(secret []byte) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Error(w, http.StatusUnauthorized, "Missing Authorization header", "")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				response.Error(w, http.StatusUnauthorized, "Invalid token format", "Format must be Bearer <token>")
				return
			}

			claims, err := ParseToken(secret, tokenString)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "Invalid or expired token", err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// ParseToken validates tokenString and returns its claims. Shared with the
// notification service, which receives tokens via query parameter instead of
// the Authorization header.
func ParseToken(secret []byte, tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ClaimsFrom extracts the authenticated user from the request context.
func ClaimsFrom(r *http.Request) (*UserClaims, bool) {
	claims, ok := r.Context().Value(UserContextKey).(*UserClaims)
	return claims, ok
}
