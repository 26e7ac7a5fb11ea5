package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agency-crm/internal/auth"
	"agency-crm/internal/config"
	"agency-crm/internal/middleware"
	"agency-crm/internal/models"
	"agency-crm/internal/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asUser(r *http.Request, id int) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, id))
}

type prefStore map[string]string

func (p prefStore) Get(ctx context.Context, userID int, key string) (string, time.Time, error) {
	v, ok := p[key]
	if !ok {
		return "", time.Time{}, models.ErrNotFound
	}
	return v, time.Now(), nil
}

func (p prefStore) Set(ctx context.Context, userID int, key, value string) (time.Time, error) {
	p[key] = value
	return time.Now(), nil
}

func TestPreferenceHandler(t *testing.T) {
	store := prefStore{}
	h := NewPreferenceHandler(services.NewPreferenceService(store))
	r := mux.NewRouter()
	r.HandleFunc("/api/preferences/columns/{table}", h.GetColumns).Methods(http.MethodGet)
	r.HandleFunc("/api/preferences/columns/{table}", h.SaveColumns).Methods(http.MethodPut)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/preferences/columns/projects", nil), 1))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"table":"projects","hidden":[]}`, rec.Body.String())

	body := strings.NewReader(`{"hidden":["alias","client_email"]}`)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPut, "/api/preferences/columns/projects", body), 1))
	require.Equal(t, http.StatusOK, rec.Code)

	var pref models.ColumnPreference
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pref))
	assert.Equal(t, []string{"alias", "client_email"}, pref.Hidden)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPut, "/api/preferences/columns/projects", strings.NewReader("{")), 1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/preferences/columns/Bad-Table", nil), 1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type emptyFeed struct{}

func (emptyFeed) DueBetween(ctx context.Context, from, to string) ([]*models.CalendarEvent, error) {
	return nil, nil
}

func (emptyFeed) ProjectDatesBetween(ctx context.Context, from, to string) ([]*models.CalendarEvent, error) {
	return []*models.CalendarEvent{{Kind: models.EventProjectStart, Title: "Website", ProjectID: 1}}, nil
}

func (emptyFeed) Overlapping(ctx context.Context, from, to string) ([]*models.CalendarEvent, error) {
	return nil, nil
}

func TestCalendarHandler(t *testing.T) {
	h := NewCalendarHandler(services.NewCalendarService(emptyFeed{}, emptyFeed{}, emptyFeed{}))

	rec := httptest.NewRecorder()
	h.Events(rec, httptest.NewRequest(http.MethodGet, "/api/calendar?from=2026-03-01&to=2026-03-31", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var events []models.CalendarEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "Website", events[0].Title)

	rec = httptest.NewRecorder()
	h.Events(rec, httptest.NewRequest(http.MethodGet, "/api/calendar?from=2026-03-31&to=2026-03-01", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// loginUsers holds a single account for the auth handler tests
type loginUsers struct {
	user *models.User
}

func (l *loginUsers) Create(ctx context.Context, u *models.User) error { return models.ErrConflict }

func (l *loginUsers) Get(ctx context.Context, id int) (*models.User, error) {
	if id != l.user.ID {
		return nil, models.ErrNotFound
	}
	return l.user, nil
}

func (l *loginUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if email != l.user.Email {
		return nil, models.ErrNotFound
	}
	return l.user, nil
}

func (l *loginUsers) GetProfile(ctx context.Context, id int) (*models.Profile, error) {
	return &models.Profile{ID: l.user.ID, Name: l.user.Name, Email: l.user.Email, Role: l.user.Role}, nil
}

func (l *loginUsers) List(ctx context.Context) ([]*models.User, error) {
	return []*models.User{l.user}, nil
}

func (l *loginUsers) Count(ctx context.Context) (int, error) { return 1, nil }
func (l *loginUsers) Update(ctx context.Context, u *models.User) error { return nil }
func (l *loginUsers) SetActive(ctx context.Context, id int, active bool) error { return nil }
func (l *loginUsers) Delete(ctx context.Context, id int) error { return nil }
func (l *loginUsers) SetTOTPSecret(ctx context.Context, id int, secret string) error { return nil }
func (l *loginUsers) EnableTOTP(ctx context.Context, id int) error { return nil }
func (l *loginUsers) DisableTOTP(ctx context.Context, id int) error { return nil }

func newAuthHandler(t *testing.T) (*AuthHandler, *auth.JWTManager) {
	t.Helper()
	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	users := &loginUsers{user: &models.User{ID: 5, Name: "Ana", Email: "ana@agency.test", PasswordHash: hash, Role: models.RoleAdmin, IsActive: true}}

	var cfg config.Config
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Issuer = "agency-crm"
	cfg.JWT.ExpirationHours = 1
	cfg.Auth.LoginTimeoutSeconds = 5
	cfg.Auth.ProfileTimeoutSeconds = 1

	jwtManager := auth.NewJWTManager(&cfg)
	svc := services.NewUserService(users, jwtManager, services.NewTOTPService(users), &cfg)
	return NewAuthHandler(svc), jwtManager
}

func TestLoginHandler(t *testing.T) {
	h, jwtManager := newAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"ana@agency.test","password":"correct-horse"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var res models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	claims, err := jwtManager.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, 5, claims.UserID)
	assert.NotContains(t, rec.Body.String(), "correct-horse")
	assert.NotContains(t, rec.Body.String(), "password")

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"ana@agency.test","password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionAndLogoutHandlers(t *testing.T) {
	h, jwtManager := newAuthHandler(t)
	_, claims, err := jwtManager.GenerateToken(&models.User{ID: 5, Email: "ana@agency.test", Role: models.RoleAdmin})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.ClaimsKey, claims))

	rec := httptest.NewRecorder()
	h.Session(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.NotNil(t, sess.Profile)
	assert.Equal(t, "Ana", sess.Profile.Name)

	rec = httptest.NewRecorder()
	h.Logout(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.Session(rec, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
