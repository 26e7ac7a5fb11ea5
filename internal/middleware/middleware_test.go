package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"agency-crm/internal/auth"
	"agency-crm/internal/cache"
	"agency-crm/internal/config"
	"agency-crm/internal/metrics"
	"agency-crm/internal/models"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProfiles map[int]*models.Profile

func (f fakeProfiles) GetProfile(ctx context.Context, id int) (*models.Profile, error) {
	p, ok := f[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func setup(t *testing.T) (*AuthMiddleware, *auth.JWTManager) {
	t.Helper()
	var cfg config.Config
	cfg.JWT.Secret = "middleware-secret"
	cfg.JWT.Issuer = "agency-crm"
	cfg.JWT.ExpirationHours = 1
	jwtManager := auth.NewJWTManager(&cfg)

	profiles := fakeProfiles{
		1: {ID: 1, Email: "admin@agency.test", Role: models.RoleAdmin},
		2: {ID: 2, Email: "member@agency.test", Role: models.RoleMember},
	}
	return NewAuthMiddleware(jwtManager, profiles), jwtManager
}

func tokenFor(t *testing.T, m *auth.JWTManager, id int, role string) (string, *auth.Claims) {
	t.Helper()
	token, claims, err := m.GenerateToken(&models.User{ID: id, Role: role})
	require.NoError(t, err)
	return token, claims
}

func whoami(w http.ResponseWriter, r *http.Request) {
	role, _ := GetRoleFromContext(r.Context())
	if _, ok := GetUserIDFromContext(r.Context()); !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("X-User", role)
	w.WriteHeader(http.StatusOK)
}

func TestAuthenticate(t *testing.T) {
	m, jwtManager := setup(t)
	handler := m.Authenticate(http.HandlerFunc(whoami))
	adminToken, _ := tokenFor(t, jwtManager, 1, models.RoleAdmin)
	goneToken, _ := tokenFor(t, jwtManager, 99, models.RoleMember)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", "", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", "", http.StatusUnauthorized},
		{"bearer", "Bearer " + adminToken, "", http.StatusOK},
		{"query token", "", "?access_token=" + adminToken, http.StatusOK},
		{"inactive user", "Bearer " + goneToken, "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/session"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, models.RoleAdmin, rec.Header().Get("X-User"))
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestAuthenticateRejectsRevokedToken(t *testing.T) {
	m, jwtManager := setup(t)
	token, claims := tokenFor(t, jwtManager, 2, models.RoleMember)
	cache.RevokeToken(context.Background(), claims.ID, claims.TTL())

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	m.Authenticate(http.HandlerFunc(whoami)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	m, jwtManager := setup(t)
	handler := m.RequireAdmin(http.HandlerFunc(whoami))
	memberToken, _ := tokenFor(t, jwtManager, 2, models.RoleMember)
	adminToken, _ := tokenFor(t, jwtManager, 1, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+memberToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAllowRolesWithoutAuthentication(t *testing.T) {
	handler := AllowRoles(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPanicRecovery(t *testing.T) {
	handler := PanicRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "internal server error"}`, rec.Body.String())
}

func TestRequestLogger(t *testing.T) {
	var seen string
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leads", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/leads", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware)
	r.HandleFunc("/api/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/projects/{id}", "200")
	before := testutil.ToFloat64(counter)

	for _, path := range []string{"/api/projects/1", "/api/projects/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
