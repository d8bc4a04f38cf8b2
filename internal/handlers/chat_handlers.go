package handlers

import (
	"errors"
	"net/http"
	"strings"

	"leadpilot-backend/internal/lock"
	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/services"
	"leadpilot-backend/pkg/httputil"

	"github.com/rs/zerolog/log"
)

// ChatHandlers serves the public widget endpoints.
type ChatHandlers struct {
	chatService *services.ChatService
}

// NewChatHandlers creates a new ChatHandlers instance.
func NewChatHandlers(chatService *services.ChatService) *ChatHandlers {
	return &ChatHandlers{
		chatService: chatService,
	}
}

// HandleMessage handles POST /v1/chat/message.
func (h *ChatHandlers) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.TenantKey) == "" {
		httputil.RespondError(w, http.StatusBadRequest, "tenant_key is required")
		return
	}

	resp, err := h.chatService.HandleMessage(r.Context(), req, services.ClientInfo{
		UserAgent: r.UserAgent(),
		IPAddress: ClientIP(r),
	})
	if err != nil {
		respondChatError(w, err, req.TenantKey)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleWidgetConfig handles GET /v1/widget/config?tenant_key=.
func (h *ChatHandlers) HandleWidgetConfig(w http.ResponseWriter, r *http.Request) {
	tenantKey := strings.TrimSpace(r.URL.Query().Get("tenant_key"))
	if tenantKey == "" {
		httputil.RespondError(w, http.StatusBadRequest, "tenant_key is required")
		return
	}
	cfg, err := h.chatService.WidgetConfig(r.Context(), tenantKey)
	if err != nil {
		respondChatError(w, err, tenantKey)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, cfg)
}

func respondChatError(w http.ResponseWriter, err error, tenantKey string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrTenantNotFound):
		httputil.RespondError(w, http.StatusNotFound, "Invalid tenant key")
	case errors.Is(err, services.ErrTenantInactive):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrSessionLimit):
		httputil.RespondError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, lock.ErrLockTimeout):
		httputil.RespondError(w, http.StatusConflict, "Another message for this session is still being processed")
	default:
		log.Error().Err(err).Str("tenant_key", tenantKey).Msg("[ChatHandlers] chat request failed")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to process message")
	}
}
