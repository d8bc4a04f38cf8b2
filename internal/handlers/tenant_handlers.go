package handlers

import (
	"context"
	"errors"
	"net/http"

	"leadpilot-backend/internal/integrations"
	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/services"
	"leadpilot-backend/pkg/httputil"

	"github.com/rs/zerolog/log"
)

// SlackVerifier checks a Slack bot token against the Slack API.
type SlackVerifier interface {
	Verify(ctx context.Context, botToken string) (*integrations.SlackIdentity, error)
}

type TenantHandler struct {
	tenants *services.TenantService
	slack   SlackVerifier
}

func NewTenantHandler(tenants *services.TenantService, slack SlackVerifier) *TenantHandler {
	return &TenantHandler{tenants: tenants, slack: slack}
}

// HandleGetTenant handles GET /v1/tenant
func (h *TenantHandler) HandleGetTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}
	tenant, err := h.tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, services.ErrTenantNotFound) {
			httputil.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("[TenantHandler] HandleGetTenant: failed to load tenant")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to get tenant")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, services.ToResponse(tenant))
}

// HandleUpdateSettings handles PUT /v1/tenant/settings
func (h *TenantHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}

	var req models.UpdateTenantSettingsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	tenant, err := h.tenants.UpdateSettings(r.Context(), tenantID, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrTenantNotFound):
			httputil.RespondError(w, http.StatusNotFound, err.Error())
		default:
			log.Error().Err(err).Str("tenant_id", tenantID).Msg("[TenantHandler] HandleUpdateSettings: failed to update settings")
			httputil.RespondError(w, http.StatusInternalServerError, "Failed to update tenant settings")
		}
		return
	}
	httputil.RespondJSON(w, http.StatusOK, services.ToResponse(tenant))
}

// HandleTestSlack handles POST /v1/tenant/slack/test. A rejected token is
// reported in the body, not as an HTTP error.
func (h *TenantHandler) HandleTestSlack(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}
	if h.slack == nil {
		httputil.RespondError(w, http.StatusNotImplemented, "Slack verification is not enabled")
		return
	}

	token, err := h.tenants.SlackToken(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, services.ErrTenantNotFound) {
			httputil.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("[TenantHandler] HandleTestSlack: failed to read slack token")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to read Slack settings")
		return
	}
	if token == "" {
		httputil.RespondError(w, http.StatusBadRequest, "No Slack bot token configured")
		return
	}

	identity, err := h.slack.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, integrations.ErrSlackUnauthorized) {
			httputil.RespondJSON(w, http.StatusOK, models.TestConnectionResult{Success: false, Message: err.Error()})
			return
		}
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("[TenantHandler] HandleTestSlack: verification failed")
		httputil.RespondError(w, http.StatusBadGateway, "Could not reach Slack")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.TestConnectionResult{
		Success: true,
		Message: "Connected to Slack workspace " + identity.Team + " as " + identity.BotName,
		Details: map[string]interface{}{
			"team_id":     identity.TeamID,
			"bot_name":    identity.BotName,
			"bot_user_id": identity.BotUserID,
		},
	})
}
