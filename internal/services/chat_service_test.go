package services

import (
	"context"
	"testing"
	"time"

	"leadpilot-backend/internal/config"
	"leadpilot-backend/internal/crypto"
	"leadpilot-backend/internal/lock"
	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type chatFixture struct {
	store    *memory.Store
	tenants  *TenantService
	chat     *ChatService
	gen      *fakeGenerator
	ext      *fakeExtractor
	notifier *fakeNotifier
	tenant   *models.Tenant
}

func newChatFixture(t *testing.T, maxTurns int) *chatFixture {
	t.Helper()
	st := memory.New()
	box, err := crypto.NewSecretBox(testKey)
	require.NoError(t, err)
	tenants, err := NewTenantService(st, box, 16, 70, 40)
	require.NoError(t, err)

	tenant := &models.Tenant{
		ID:     "tenant-1",
		Key:    "acme-key",
		Name:   "Acme Studio",
		Active: true,
		Settings: models.TenantSettings{
			NotificationEmails: []string{"sales@acme.test"},
		},
	}
	require.NoError(t, st.CreateTenant(context.Background(), tenant))

	f := &chatFixture{
		store:    st,
		tenants:  tenants,
		gen:      &fakeGenerator{reply: "Happy to help!"},
		ext:      &fakeExtractor{},
		notifier: &fakeNotifier{},
		tenant:   tenant,
	}
	agent := NewAgentService(NewKBRetriever(st), f.gen, f.ext, f.notifier, AgentOptions{Now: fixedClock()})
	f.chat = NewChatService(st, tenants, agent, lock.NewMemoryLocker(time.Second), ChatOptions{
		MaxMessagesPerSession: maxTurns,
		TurnTimeout:           time.Second,
	})
	return f
}

func strPtr(s string) *string { return &s }

func TestHandleMessagePersistsTurnsAndLead(t *testing.T) {
	f := newChatFixture(t, 100)
	ctx := context.Background()
	f.ext.results = []*models.LeadFields{
		{Name: "Ana", Budget: "enterprise level", Timeline: "asap"},
		{Email: "ana@example.com", Phone: "555-0100"},
	}

	first, err := f.chat.HandleMessage(ctx, models.ChatRequest{
		Message:   "Hi, I'm Ana. Enterprise budget, need it asap",
		TenantKey: "acme-key",
		Language:  "es",
	}, ClientInfo{UserAgent: "widget/1.0", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.SessionID)
	assert.Equal(t, "Happy to help!", first.Message)
	assert.True(t, first.LeadCaptured)
	require.NotNil(t, first.LeadGrade)
	assert.Equal(t, models.GradeWarm, *first.LeadGrade)

	second, err := f.chat.HandleMessage(ctx, models.ChatRequest{
		Message:   "Reach me at ana@example.com or 555-0100",
		SessionID: strPtr(first.SessionID),
		TenantKey: "acme-key",
	}, ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, models.GradeHot, *second.LeadGrade)
	assert.Len(t, f.notifier.alerts, 1)

	conv, err := f.store.GetConversation(ctx, "tenant-1", first.SessionID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 4)
	assert.Equal(t, "es", conv.Language)
	assert.Equal(t, "10.0.0.1", conv.IPAddress)

	lead, err := f.store.GetLeadBySession(ctx, "tenant-1", first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 80, lead.Score)
	require.Len(t, lead.ScoreHistory, 2)
	assert.Equal(t, models.GradeWarm, lead.ScoreHistory[0].Grade)
	assert.Equal(t, models.GradeHot, lead.ScoreHistory[1].Grade)
}

func TestHandleMessageWithoutLeadInfo(t *testing.T) {
	f := newChatFixture(t, 100)
	resp, err := f.chat.HandleMessage(context.Background(), models.ChatRequest{
		Message:   "What are your opening hours?",
		TenantKey: "acme-key",
	}, ClientInfo{})
	require.NoError(t, err)
	assert.False(t, resp.LeadCaptured)
	assert.Nil(t, resp.LeadGrade)

	_, err = f.store.GetLeadBySession(context.Background(), "tenant-1", resp.SessionID)
	assert.Error(t, err)
}

func TestHandleMessageSessionLimit(t *testing.T) {
	f := newChatFixture(t, 2)
	ctx := context.Background()
	req := models.ChatRequest{Message: "hello", TenantKey: "acme-key", SessionID: strPtr("sess-limit")}

	_, err := f.chat.HandleMessage(ctx, req, ClientInfo{})
	require.NoError(t, err)
	_, err = f.chat.HandleMessage(ctx, req, ClientInfo{})
	require.NoError(t, err)
	_, err = f.chat.HandleMessage(ctx, req, ClientInfo{})
	assert.ErrorIs(t, err, ErrSessionLimit)
}

func TestHandleMessageRejects(t *testing.T) {
	f := newChatFixture(t, 100)
	ctx := context.Background()

	_, err := f.chat.HandleMessage(ctx, models.ChatRequest{Message: "  ", TenantKey: "acme-key"}, ClientInfo{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.chat.HandleMessage(ctx, models.ChatRequest{Message: "hi", TenantKey: "nope"}, ClientInfo{})
	assert.ErrorIs(t, err, ErrTenantNotFound)

	f.tenant.Active = false
	require.NoError(t, f.store.UpsertTenant(ctx, f.tenant))
	f.tenants.cache.Purge()
	_, err = f.chat.HandleMessage(ctx, models.ChatRequest{Message: "hi", TenantKey: "acme-key"}, ClientInfo{})
	assert.ErrorIs(t, err, ErrTenantInactive)
}

func TestHandleMessageLockTimeout(t *testing.T) {
	f := newChatFixture(t, 100)
	locker := lock.NewMemoryLocker(20 * time.Millisecond)
	f.chat.locker = locker

	release, err := locker.Lock(context.Background(), sessionLockKey("tenant-1", "busy"))
	require.NoError(t, err)
	defer release()

	_, err = f.chat.HandleMessage(context.Background(), models.ChatRequest{
		Message: "hi", TenantKey: "acme-key", SessionID: strPtr("busy"),
	}, ClientInfo{})
	assert.ErrorIs(t, err, lock.ErrLockTimeout)
}

func TestHandleMessageUsesKnowledgeBase(t *testing.T) {
	f := newChatFixture(t, 100)
	ctx := context.Background()
	kb := NewKBService(f.store, nil, nil)
	_, err := kb.AddDocument(ctx, "tenant-1", models.DocumentUploadRequest{
		Name: "pricing.md", Content: "Kitchen remodels start at $15,000.",
	}, "")
	require.NoError(t, err)

	_, err = f.chat.HandleMessage(ctx, models.ChatRequest{Message: "How much is a kitchen?", TenantKey: "acme-key"}, ClientInfo{})
	require.NoError(t, err)
	assert.Contains(t, f.gen.lastPrompt, "Kitchen remodels start at $15,000.")
}

func TestHandleMessageSessionIDSharedAcrossTenants(t *testing.T) {
	f := newChatFixture(t, 100)
	ctx := context.Background()
	require.NoError(t, f.store.CreateTenant(ctx, &models.Tenant{
		ID: "tenant-2", Key: "beta-key", Name: "Beta Builders", Active: true,
	}))
	shared := strPtr("shared-session")
	f.ext.results = []*models.LeadFields{nil, {Name: "Bo", Email: "bo@example.com"}}

	_, err := f.chat.HandleMessage(ctx, models.ChatRequest{Message: "hello", TenantKey: "acme-key", SessionID: shared}, ClientInfo{})
	require.NoError(t, err)

	for _, msg := range []string{"I'm Bo", "bo@example.com", "thanks"} {
		_, err := f.chat.HandleMessage(ctx, models.ChatRequest{Message: msg, TenantKey: "beta-key", SessionID: shared}, ClientInfo{})
		require.NoError(t, err)
	}

	convB, err := f.store.GetConversation(ctx, "tenant-2", "shared-session")
	require.NoError(t, err)
	assert.Equal(t, 3, convB.UserTurns())
	leadB, err := f.store.GetLeadBySession(ctx, "tenant-2", "shared-session")
	require.NoError(t, err)
	assert.Equal(t, "Bo", leadB.Fields.Name)

	convA, err := f.store.GetConversation(ctx, "tenant-1", "shared-session")
	require.NoError(t, err)
	assert.Equal(t, 1, convA.UserTurns())
	_, err = f.store.GetLeadBySession(ctx, "tenant-1", "shared-session")
	assert.Error(t, err)
}

func TestWidgetConfig(t *testing.T) {
	f := newChatFixture(t, 100)
	cfg, err := f.chat.WidgetConfig(context.Background(), "acme-key")
	require.NoError(t, err)
	assert.Equal(t, "Acme Studio", cfg.TenantName)
	assert.Equal(t, models.DefaultGreeting, cfg.Greeting)
	assert.Equal(t, models.DefaultBrandColor, cfg.BrandColor)
	assert.Equal(t, "en", cfg.Language)
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-secret",
		TokenExpiration: time.Hour,
		DefaultTenantID: "tenant-1",
	}
}
