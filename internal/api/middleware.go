package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/terra-clan/interview-engine/internal/auth"
	"github.com/terra-clan/interview-engine/internal/models"
)

// Authenticator resolves bearer tokens
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
	Touch(ctx context.Context, token string) error
}

// AuthMiddleware handles bearer token authentication
type AuthMiddleware struct {
	auth Authenticator
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(a Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: a}
}

// Authenticate verifies the token from the Authorization header, the X-API-Key header
// or the access_token query parameter (websocket clients), in that order.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "provide Authorization header with Bearer token")
			return
		}

		user, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				slog.Warn("invalid token attempt", "key_prefix", maskKey(token), "remote_addr", r.RemoteAddr)
				respondError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}
			slog.Error("failed to authenticate token", "error", err, "key_prefix", maskKey(token))
			respondError(w, http.StatusInternalServerError, "internal_error", "authentication error")
			return
		}

		// Update last_used_at asynchronously (don't block request)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.auth.Touch(ctx, token); err != nil {
				slog.Error("failed to update token last_used_at", "error", err, "user_id", user.ID)
			}
		}()

		slog.Debug("authenticated request", "user_id", user.ID, "type", user.Type, "key_prefix", maskKey(token))

		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user, token)))
	})
}

// RequireRole returns middleware that admits only the given account types
func (m *AuthMiddleware) RequireRole(types ...models.UserType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}

			if !user.HasRole(types...) {
				slog.Warn("role denied",
					"user_id", user.ID,
					"required", types,
					"has", user.Type,
				)
				respondError(w, http.StatusForbidden, "forbidden", "this endpoint is not available for your account type")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts the bearer token from the request
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			return strings.TrimSpace(authHeader[7:])
		}
		// Raw token in Authorization header
		return strings.TrimSpace(authHeader)
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	return r.URL.Query().Get("access_token")
}

// maskKey returns first 8 chars of key for safe logging
func maskKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:8] + "..."
}
