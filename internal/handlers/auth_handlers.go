package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"leadpilot-backend/internal/auth"
	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/services"
	"leadpilot-backend/pkg/httputil"

	"github.com/rs/zerolog/log"
)

// AuthService defines the interface expected from the auth service.
type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest, inviter *services.Inviter) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
}

type AuthHandler struct {
	authService AuthService
}

func NewAuthHandler(authSvc AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authSvc,
	}
}

// HandleRegister handles POST /v1/auth/register. A self sign-up is logged in
// straight away; a user created by an admin is returned without a token.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	var inviter *services.Inviter
	if tenantID, ok := auth.GetTenantIDFromContext(r.Context()); ok {
		inviter = &services.Inviter{TenantID: tenantID, Role: auth.GetRoleFromContext(r.Context())}
	}

	user, err := h.authService.Register(r.Context(), req, inviter)
	if err != nil {
		log.Warn().Err(err).Str("email", req.Email).Msg("[AuthHandler] HandleRegister: registration failed")
		switch {
		case errors.Is(err, services.ErrRegistrationClosed), errors.Is(err, services.ErrForbidden):
			httputil.RespondError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, services.ErrUserAlreadyExists):
			httputil.RespondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, services.ErrValidation):
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrTenantNotFound):
			httputil.RespondError(w, http.StatusNotFound, err.Error())
		default:
			httputil.RespondError(w, http.StatusInternalServerError, "Registration failed due to an internal error")
		}
		return
	}
	if inviter != nil {
		httputil.RespondJSON(w, http.StatusCreated, models.UserResponse{
			ID:       user.ID,
			TenantID: user.TenantID,
			Email:    user.Email,
			FullName: user.FullName,
			Role:     user.Role,
		})
		return
	}

	token, _, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Error().Err(err).Str("email", req.Email).Msg("[AuthHandler] HandleRegister: login after registration failed")
		httputil.RespondError(w, http.StatusInternalServerError, "Registration failed due to an internal error")
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, models.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// HandleLogin handles POST /v1/auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, _, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			httputil.RespondError(w, http.StatusUnauthorized, err.Error())
		default:
			log.Error().Err(err).Str("email", req.Email).Msg("[AuthHandler] HandleLogin: login failed")
			httputil.RespondError(w, http.StatusInternalServerError, "Login failed due to an internal error")
		}
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.TokenResponse{AccessToken: token, TokenType: "bearer"})
}
