package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"leadpilot-backend/internal/auth"
	"leadpilot-backend/internal/config"
	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Custom errors for auth service
var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrHashingPassword    = errors.New("failed to hash password")
	ErrCreatingToken      = errors.New("failed to create access token")
	ErrValidation         = errors.New("input validation failed") // Generic validation error
	ErrRegistrationClosed = errors.New("tenant already has users, ask an admin for an account")
	ErrForbidden          = errors.New("not allowed to create users for this tenant")
)

// Inviter is the authenticated dashboard user creating an account.
type Inviter struct {
	TenantID string
	Role     string
}

// Dashboard roles.
const (
	RoleAdmin    = "admin"
	RoleSalesRep = "sales_rep"
	RoleViewer   = "viewer"
)

const minPasswordLength = 8

type AuthService struct {
	store store.Store
	cfg   *config.Config
}

func NewAuthService(s store.Store, cfg *config.Config) *AuthService {
	return &AuthService{
		store: s,
		cfg:   cfg,
	}
}

func validRole(role string) bool {
	switch role {
	case RoleAdmin, RoleSalesRep, RoleViewer:
		return true
	}
	return false
}

// Register creates a dashboard user. Without an inviter it is self sign-up,
// which only bootstraps a tenant with no users and makes that user its admin;
// an empty tenant id selects the configured default tenant. An admin inviter
// adds users to its own tenant with the requested role, viewer by default.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, inviter *Inviter) (*models.User, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password cannot be empty", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	if req.Role != "" && !validRole(req.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, req.Role)
	}

	tenantID := strings.TrimSpace(req.TenantID)
	role := RoleAdmin
	if inviter != nil {
		if inviter.Role != RoleAdmin || (tenantID != "" && tenantID != inviter.TenantID) {
			return nil, ErrForbidden
		}
		tenantID = inviter.TenantID
		role = req.Role
		if role == "" {
			role = RoleViewer
		}
	}
	if tenantID == "" {
		tenantID = s.cfg.DefaultTenantID
	}
	if _, err := s.store.GetTenantByID(ctx, tenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if inviter == nil {
		n, err := s.store.CountUsers(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to count users: %w", err)
		}
		if n > 0 {
			return nil, ErrRegistrationClosed
		}
	}

	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Str("email", email).Msg("[AuthService] Register: error checking user existence")
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, ErrHashingPassword
	}

	user := &models.User{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Email:          email,
		FullName:       strings.TrimSpace(req.FullName),
		Role:           role,
		HashedPassword: hashedPassword,
		Active:         true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUserAlreadyExists
		}
		log.Error().Err(err).Str("email", email).Str("tenant_id", tenantID).Msg("[AuthService] Register: error creating user")
		return nil, fmt.Errorf("creating user failed: %w", err)
	}

	log.Info().Str("user_id", user.ID.String()).Str("tenant_id", tenantID).Msg("[AuthService] Register: user created")
	return user, nil
}

// Login verifies user credentials and returns an access token and user info.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials // Don't reveal if user exists or password is wrong
		}
		log.Error().Err(err).Str("email", email).Msg("[AuthService] Login: error retrieving user")
		return "", nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !user.Active || !auth.CheckPasswordHash(password, user.HashedPassword) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.NewAccessToken(user.ID, user.TenantID, user.Role, s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.String()).Msg("[AuthService] Login: error generating JWT")
		return "", nil, ErrCreatingToken
	}

	log.Info().Str("user_id", user.ID.String()).Msg("[AuthService] Login: user logged in")
	return token, user, nil
}
