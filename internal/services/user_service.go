package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"agency-crm/internal/auth"
	"agency-crm/internal/cache"
	"agency-crm/internal/config"
	"agency-crm/internal/models"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const minPasswordLength = 8

// UserStore is implemented by repositories.UserRepository
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetProfile(ctx context.Context, id int) (*models.Profile, error)
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, u *models.User) error
	SetActive(ctx context.Context, userID int, isActive bool) error
	Delete(ctx context.Context, id int) error
}

type UserService struct {
	Repo           UserStore
	JWTManager     *auth.JWTManager
	TOTP           *TOTPService
	LoginTimeout   time.Duration
	ProfileTimeout time.Duration

	log zerolog.Logger
}

func NewUserService(repo UserStore, jwtManager *auth.JWTManager, totp *TOTPService, cfg *config.Config) *UserService {
	return &UserService{
		Repo:           repo,
		JWTManager:     jwtManager,
		TOTP:           totp,
		LoginTimeout:   cfg.LoginTimeout(),
		ProfileTimeout: cfg.ProfileTimeout(),
		log:            log.With().Str("component", "users").Logger(),
	}
}

// ============================================
// Authentication
// ============================================

// Login checks the credentials within the login timeout. Users with 2FA get a
// temporary token instead of a session.
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, invalid("email and password are required")
	}

	if s.LoginTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.LoginTimeout)
		defer cancel()
	}

	user, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrLoginTimeout
		}
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if user.TOTPEnabled {
		temp, err := s.JWTManager.GenerateTempToken(user)
		if err != nil {
			return nil, err
		}
		return &models.AuthResponse{Requires2FA: true, TempToken: temp}, nil
	}

	return s.issue(user)
}

// VerifyLogin2FA completes a login started by a user with 2FA enabled
func (s *UserService) VerifyLogin2FA(ctx context.Context, req *models.TOTPVerifyRequest) (*models.AuthResponse, error) {
	claims, err := s.JWTManager.ValidateTempToken(req.TempToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.Repo.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	if err := s.TOTP.Validate(user, req.Code); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*models.AuthResponse, error) {
	token, claims, err := s.JWTManager.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	expires := claims.ExpiresAt.Time
	s.log.Info().Int("user_id", user.ID).Msg("user logged in")
	return &models.AuthResponse{Token: token, ExpiresAt: &expires, User: user}, nil
}

// Session describes the caller's token. The profile is raced against the profile
// timeout and comes back nil when the lookup is slow or fails.
func (s *UserService) Session(ctx context.Context, claims *auth.Claims) *models.Session {
	sess := &models.Session{
		UserID: claims.UserID,
		Role:   claims.Role,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}

	sess.Profile = s.profileWithin(ctx, claims.UserID)
	if sess.Profile != nil {
		sess.Role = sess.Profile.Role
	}
	return sess
}

func (s *UserService) profileWithin(ctx context.Context, userID int) *models.Profile {
	if p, ok := cache.GetCachedProfile(ctx, userID); ok {
		return p
	}

	if s.ProfileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ProfileTimeout)
		defer cancel()
	}

	result := make(chan *models.Profile, 1)
	go func() {
		p, err := s.Repo.GetProfile(ctx, userID)
		if err != nil {
			s.log.Warn().Err(err).Int("user_id", userID).Msg("profile lookup failed")
			result <- nil
			return
		}
		result <- p
	}()

	select {
	case p := <-result:
		cache.CacheProfile(ctx, p)
		return p
	case <-ctx.Done():
		s.log.Warn().Int("user_id", userID).Dur("timeout", s.ProfileTimeout).Msg("profile lookup timed out")
		return nil
	}
}

// Logout revokes the token until it would have expired anyway
func (s *UserService) Logout(ctx context.Context, claims *auth.Claims) {
	cache.RevokeToken(ctx, claims.ID, claims.TTL())
}

// ============================================
// Team administration
// ============================================

func (s *UserService) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	user := &models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Role:     req.Role,
		IsActive: true,
	}
	if user.Role == "" {
		user.Role = models.RoleMember
	}
	if err := validateUser(user); err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, invalid("password must be at least %d characters", minPasswordLength)
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hashed

	if err := s.Repo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info().Int("user_id", user.ID).Str("role", user.Role).Msg("user created")
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id int) (*models.User, error) {
	return s.Repo.Get(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.Repo.List(ctx)
}

// UpdateUser changes name, email, role and optionally the password.
// Admins cannot demote themselves.
func (s *UserService) UpdateUser(ctx context.Context, id int, req *models.UpdateUserRequest, actorID int) (*models.User, error) {
	user, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Name = strings.TrimSpace(req.Name)
	user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Role != "" {
		if id == actorID && user.Role == models.RoleAdmin && req.Role != models.RoleAdmin {
			return nil, ErrSelfAction
		}
		user.Role = req.Role
	}
	if err := validateUser(user); err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	if req.Password != "" {
		if len(req.Password) < minPasswordLength {
			return nil, invalid("password must be at least %d characters", minPasswordLength)
		}
		if user.PasswordHash, err = auth.HashPassword(req.Password); err != nil {
			return nil, err
		}
	}

	if err := s.Repo.Update(ctx, user); err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	cache.InvalidateProfile(ctx, id)
	return user, nil
}

func (s *UserService) SetActive(ctx context.Context, id int, active bool, actorID int) error {
	if id == actorID {
		return ErrSelfAction
	}
	if err := s.Repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	cache.InvalidateProfile(ctx, id)
	s.log.Info().Int("user_id", id).Bool("active", active).Int("by", actorID).Msg("user status changed")
	return nil
}

func (s *UserService) DeleteUser(ctx context.Context, id int, actorID int) error {
	if id == actorID {
		return ErrSelfAction
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	cache.InvalidateProfile(ctx, id)
	return nil
}

// BootstrapAdmin creates the first admin when the users table is empty.
// It does nothing unless both email and password are configured.
func (s *UserService) BootstrapAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	n, err := s.Repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	_, err = s.CreateUser(ctx, &models.CreateUserRequest{
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
	return err
}

func validateUser(u *models.User) error {
	if u.Name == "" {
		return invalid("name is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return invalid("email is not valid")
	}
	if u.Role != models.RoleAdmin && u.Role != models.RoleMember {
		return invalid("role must be admin or member")
	}
	return nil
}
