package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"leadpilot-backend/internal/metrics"
	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/scoring"
)

// FallbackReply is appended as the assistant turn whenever reply generation fails.
const FallbackReply = "I apologize, but I'm having trouble processing your request right now. Please try again."

const (
	defaultTopK          = 3
	defaultHistoryWindow = 10
	defaultSnippetSize   = 6

	scoreReasonCreated = "Lead created from conversation"
	scoreReasonUpdated = "Updated from conversation"
)

var (
	ErrTenantRequired  = errors.New("tenant is required")
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrSessionRequired = errors.New("session id is required")
)

// Retriever returns up to k knowledge chunks for a query, scoped to one tenant.
type Retriever interface {
	RetrieveChunks(ctx context.Context, query, tenantID string, k int) ([]models.KBChunk, error)
}

// ReplyGenerator produces the assistant reply for a system prompt and a
// window of history, oldest first.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, systemPrompt string, history []models.Message) (string, error)
}

// FieldExtractor pulls lead fields out of recent history. A nil result with a
// nil error means nothing new was found.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, history []models.Message) (*models.LeadFields, error)
}

// HotLeadNotifier accepts hot lead alerts. Delivery happens in the background;
// NotifyHotLead must not block on it.
type HotLeadNotifier interface {
	NotifyHotLead(alert models.HotLeadAlert)
}

// AgentOptions tunes the qualification pipeline. Zero values use the defaults.
type AgentOptions struct {
	TopK          int
	HistoryWindow int
	SnippetSize   int
	Now           func() time.Time
}

// TurnResult is the outcome of one processed turn. Conversation and Lead are
// fresh copies; the caller owns persisting them.
type TurnResult struct {
	Reply        string
	Conversation *models.Conversation
	Lead         *models.Lead // nil until the first successful extraction
	BecameHot    bool
	LeadChanged  bool
	LeadCreated  bool
	ScoreEntry   *models.ScoreHistoryEntry // set when LeadChanged
	Breakdown    *scoring.Breakdown
	UsedFallback bool
}

// AgentService runs the lead-qualification pipeline for a single chat turn.
// It holds no per-session state and performs no persistence.
type AgentService struct {
	retriever Retriever
	generator ReplyGenerator
	extractor FieldExtractor
	notifier  HotLeadNotifier
	opts      AgentOptions
}

// NewAgentService creates a new AgentService. notifier may be nil.
func NewAgentService(retriever Retriever, generator ReplyGenerator, extractor FieldExtractor, notifier HotLeadNotifier, opts AgentOptions) *AgentService {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistoryWindow
	}
	if opts.SnippetSize <= 0 {
		opts.SnippetSize = defaultSnippetSize
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &AgentService{
		retriever: retriever,
		generator: generator,
		extractor: extractor,
		notifier:  notifier,
		opts:      opts,
	}
}

// ProcessTurn appends the user message, generates a reply, and re-scores the
// lead when extraction finds new information. The passed conversation and
// lead are never modified. Collaborator failures degrade the turn but never
// abort it; only invalid input returns an error.
func (s *AgentService) ProcessTurn(ctx context.Context, message, sessionID string, tenant *models.Tenant, conv *models.Conversation, lead *models.Lead) (*TurnResult, error) {
	if tenant == nil {
		return nil, ErrTenantRequired
	}
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	start := time.Now()

	now := s.opts.Now()
	if conv == nil {
		conv = models.NewConversation(sessionID, tenant.ID, tenant.Language(), now)
	} else {
		conv = conv.Clone()
	}
	conv.Append(models.RoleUser, message, now)

	chunks := s.retrieve(ctx, message, tenant.ID)
	systemPrompt := BuildSystemPrompt(chunks, tenant.Name)

	result := &TurnResult{}
	reply, err := s.generator.GenerateReply(ctx, systemPrompt, conv.Last(s.opts.HistoryWindow))
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("[AgentService] ProcessTurn: reply generation failed, using fallback")
			metrics.RecordLLMFailure("generate")
		}
		reply = FallbackReply
		result.UsedFallback = true
	}
	replyAt := s.opts.Now()
	conv.Append(models.RoleAssistant, reply, replyAt)
	conv.LastMessageAt = replyAt

	result.Reply = reply
	result.Conversation = conv
	result.Lead = lead.Clone()

	s.qualify(ctx, message, sessionID, tenant, conv, result)

	metrics.RecordTurn(result.UsedFallback, time.Since(start).Seconds())
	return result, nil
}

func (s *AgentService) retrieve(ctx context.Context, query, tenantID string) []models.KBChunk {
	if s.retriever == nil {
		return nil
	}
	chunks, err := s.retriever.RetrieveChunks(ctx, query, tenantID, s.opts.TopK)
	if err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Msg("[AgentService] retrieve: continuing without context")
		return nil
	}
	if len(chunks) > s.opts.TopK {
		chunks = chunks[:s.opts.TopK]
	}
	return chunks
}

// qualify runs extraction, merge, scoring and transition detection, writing
// into result. Extraction failure leaves result.Lead as the prior lead.
func (s *AgentService) qualify(ctx context.Context, message, sessionID string, tenant *models.Tenant, conv *models.Conversation, result *TurnResult) {
	extracted, err := s.extractor.ExtractFields(ctx, conv.Last(s.opts.HistoryWindow))
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("[AgentService] qualify: extraction failed, lead unchanged")
		metrics.RecordLLMFailure("extract")
		return
	}

	var current models.LeadFields
	if result.Lead != nil {
		current = result.Lead.Fields
	}
	merged := current.Merge(extracted)
	if merged == current {
		return
	}

	res := scoring.ForTenant(tenant).Score(merged, scoring.Signals{
		UserTurns:      conv.UserTurns(),
		IntentKeywords: scoring.MatchIntent(message),
	})
	now := s.opts.Now()

	var oldGrade *models.LeadGrade
	reason := scoreReasonUpdated
	lead := result.Lead
	if lead == nil {
		lead = &models.Lead{
			ID:             uuid.New(),
			TenantID:       tenant.ID,
			ConversationID: sessionID,
			SessionID:      sessionID,
			Status:         models.LeadStatusNew,
			Notes:          []models.LeadNote{},
			Tags:           []string{},
			Source:         "chat",
			CreatedAt:      now,
		}
		reason = scoreReasonCreated
		result.LeadCreated = true
	} else {
		g := lead.Grade
		oldGrade = &g
	}

	lead.Fields = merged
	lead.Score = res.Score
	lead.Grade = res.Grade
	lead.UpdatedAt = now
	lead.LastContactAt = &now
	entry := models.ScoreHistoryEntry{Score: res.Score, Grade: res.Grade, Timestamp: now, Reason: reason}
	lead.ScoreHistory = append(lead.ScoreHistory, entry)

	leadID := lead.ID.String()
	conv.LeadID = &leadID

	result.Lead = lead
	result.LeadChanged = true
	result.ScoreEntry = &entry
	result.Breakdown = &res.Breakdown
	result.BecameHot = scoring.BecameHot(oldGrade, res.Grade)
	metrics.RecordScore(string(res.Grade), result.BecameHot)

	log.Info().
		Str("tenant_id", tenant.ID).
		Str("session_id", sessionID).
		Int("score", res.Score).
		Str("grade", string(res.Grade)).
		Bool("became_hot", result.BecameHot).
		Msg("[AgentService] qualify: lead scored")

	if result.BecameHot && s.notifier != nil {
		s.notifier.NotifyHotLead(models.HotLeadAlert{
			TenantID:       tenant.ID,
			TenantName:     tenant.Name,
			Recipients:     append([]string(nil), tenant.Settings.NotificationEmails...),
			SlackChannelID: tenant.Settings.SlackChannelID,
			Lead:           lead.Clone(),
			Snippet:        append([]models.Message(nil), conv.Last(s.opts.SnippetSize)...),
		})
	}
}
