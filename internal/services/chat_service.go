package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadpilot-backend/internal/lock"
	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrSessionLimit is returned when a session has used up its user turns.
var ErrSessionLimit = errors.New("session message limit reached")

const maxMessageLength = 4000

// ChatOptions bounds the public chat path. Zero values disable the bound.
type ChatOptions struct {
	MaxMessagesPerSession int
	TurnTimeout           time.Duration
}

// ClientInfo describes the widget visitor.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// ChatService handles one public chat turn end to end: tenant resolution,
// session locking, loading, the qualification pipeline and persistence.
type ChatService struct {
	store   store.Store
	tenants *TenantService
	agent   *AgentService
	locker  lock.Locker
	opts    ChatOptions
}

// NewChatService creates a new ChatService.
func NewChatService(s store.Store, tenants *TenantService, agent *AgentService, locker lock.Locker, opts ChatOptions) *ChatService {
	return &ChatService{
		store:   s,
		tenants: tenants,
		agent:   agent,
		locker:  locker,
		opts:    opts,
	}
}

func sessionLockKey(tenantID, sessionID string) string {
	return "session:" + tenantID + ":" + sessionID
}

// HandleMessage processes one visitor message and returns the assistant reply.
func (s *ChatService) HandleMessage(ctx context.Context, req models.ChatRequest, client ClientInfo) (*models.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message cannot be empty", ErrValidation)
	}
	if len(message) > maxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrValidation, maxMessageLength)
	}

	tenant, err := s.tenants.GetByKey(ctx, req.TenantKey)
	if err != nil {
		return nil, err
	}

	sessionID := ""
	if req.SessionID != nil {
		sessionID = strings.TrimSpace(*req.SessionID)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	release, err := s.locker.Lock(ctx, sessionLockKey(tenant.ID, sessionID))
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("[ChatService] HandleMessage: could not lock session")
		return nil, err
	}
	defer release()

	conv, err := s.store.GetConversation(ctx, tenant.ID, sessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	lead, err := s.store.GetLeadBySession(ctx, tenant.ID, sessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}

	if conv != nil && s.opts.MaxMessagesPerSession > 0 && conv.UserTurns() >= s.opts.MaxMessagesPerSession {
		return nil, ErrSessionLimit
	}
	isNew := conv == nil

	turnCtx := ctx
	if s.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, s.opts.TurnTimeout)
		defer cancel()
	}
	result, err := s.agent.ProcessTurn(turnCtx, message, sessionID, tenant, conv, lead)
	if err != nil {
		return nil, err
	}

	if isNew {
		if lang := strings.TrimSpace(req.Language); lang != "" {
			result.Conversation.Language = lang
		}
		result.Conversation.UserAgent = client.UserAgent
		result.Conversation.IPAddress = client.IPAddress
	}
	result.Conversation.UpdatedAt = result.Conversation.LastMessageAt

	params := store.SaveTurnParams{Conversation: result.Conversation}
	if result.LeadChanged {
		params.Lead = result.Lead
		params.ScoreEntry = result.ScoreEntry
	}
	if err := s.store.SaveTurn(ctx, params); err != nil {
		log.Error().Err(err).Str("tenant_id", tenant.ID).Str("session_id", sessionID).Msg("[ChatService] HandleMessage: failed to persist turn")
		return nil, fmt.Errorf("failed to save turn: %w", err)
	}

	resp := &models.ChatResponse{
		Message:   result.Reply,
		SessionID: sessionID,
	}
	if result.Lead != nil {
		grade := result.Lead.Grade
		resp.LeadCaptured = true
		resp.LeadGrade = &grade
	}
	return resp, nil
}

// WidgetConfig returns the public widget settings for a tenant key.
func (s *ChatService) WidgetConfig(ctx context.Context, tenantKey string) (*models.WidgetConfigResponse, error) {
	tenant, err := s.tenants.GetByKey(ctx, tenantKey)
	if err != nil {
		return nil, err
	}
	return &models.WidgetConfigResponse{
		TenantName: tenant.Name,
		Greeting:   tenant.Settings.Greeting,
		BrandColor: tenant.Settings.BrandColor,
		Language:   tenant.Language(),
	}, nil
}
