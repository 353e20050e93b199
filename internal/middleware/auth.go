package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/nestlink/guardian-server-go/internal/audit"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/repository"
	"github.com/nestlink/guardian-server-go/internal/util"
)

type contextKey string

const UserContextKey contextKey = "user"

func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserContextKey).(*model.User); ok {
		return user
	}
	return nil
}

// AuthMiddleware binds the request to a user via its device token.
type AuthMiddleware struct {
	userRepo repository.UserRepository
}

func NewAuthMiddleware(userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{userRepo: userRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		tokenHash := util.HashToken(token)
		user, err := m.userRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if user == nil {
			audit.LogFromRequest(r, audit.Event{
				Type: audit.EventAuthFailure,
				Details: map[string]interface{}{
					"reason": "invalid device token",
				},
			})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects authenticated requests whose user has a different
// role. It must be mounted after AuthMiddleware.
func RequireRole(role model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "Missing authentication token",
				})
				return
			}
			if user.Role != role {
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error": "This operation is not available for your account type",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return r.URL.Query().Get("token")
}
