package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"agency-crm/internal/auth"
	"agency-crm/internal/cache"
	"agency-crm/internal/models"
	"agency-crm/pkg/utils"
)

type contextKey string

const UserIDKey contextKey = "user_id"
const EmailKey contextKey = "email"
const RoleKey contextKey = "role"
const ClaimsKey contextKey = "claims"

// ProfileSource loads the current profile of an active user.
// It returns models.ErrNotFound for deactivated or deleted users.
type ProfileSource interface {
	GetProfile(ctx context.Context, id int) (*models.Profile, error)
}

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	users      ProfileSource
}

func NewAuthMiddleware(jwtManager *auth.JWTManager, users ProfileSource) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		users:      users,
	}
}

// bearerToken reads "Authorization: Bearer <token>", or the access_token query
// parameter for websocket upgrades where browsers cannot set headers
func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token, true
	}
	return "", false
}

// Authenticate validates the token and loads role and status from the database,
// so deactivation and role changes apply to live sessions
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			utils.Error(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if cache.IsRevoked(r.Context(), claims.ID) {
			utils.Error(w, http.StatusUnauthorized, "session has ended")
			return
		}

		profile, ok := cache.GetCachedProfile(r.Context(), claims.UserID)
		if !ok {
			profile, err = m.users.GetProfile(r.Context(), claims.UserID)
			if errors.Is(err, models.ErrNotFound) {
				utils.Error(w, http.StatusForbidden, "account suspended or removed")
				return
			}
			if err != nil {
				utils.Error(w, http.StatusServiceUnavailable, "could not verify account")
				return
			}
			cache.CacheProfile(r.Context(), profile)
		}

		ctx := context.WithValue(r.Context(), UserIDKey, profile.ID)
		ctx = context.WithValue(ctx, EmailKey, profile.Email)
		ctx = context.WithValue(ctx, RoleKey, profile.Role)
		ctx = context.WithValue(ctx, ClaimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole authenticates the request and then checks the role
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.Authenticate(AllowRoles(allowedRoles...)(next))
	}
}

// AllowRoles checks the role stored by Authenticate, so it must run after it
func AllowRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := GetRoleFromContext(r.Context())
			for _, allowed := range allowedRoles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.Error(w, http.StatusForbidden, "forbidden: insufficient permissions")
		})
	}
}

func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(models.RoleAdmin)(next)
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(UserIDKey).(int)
	return userID, ok
}

// GetRoleFromContext extracts role from request context
func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}
