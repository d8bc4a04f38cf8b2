package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leadpilot-backend/internal/auth"
	"leadpilot-backend/internal/config"
	"leadpilot-backend/internal/crypto"
	"leadpilot-backend/internal/handlers"
	"leadpilot-backend/internal/integrations"
	"leadpilot-backend/internal/lock"
	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/ratelimit"
	"leadpilot-backend/internal/services"
	"leadpilot-backend/internal/store/memory"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type staticGenerator struct{}

func (staticGenerator) GenerateReply(context.Context, string, []models.Message) (string, error) {
	return "Thanks! What's your timeline?", nil
}

type staticExtractor struct{ fields *models.LeadFields }

func (s staticExtractor) ExtractFields(context.Context, []models.Message) (*models.LeadFields, error) {
	return s.fields, nil
}

type fakeSlackVerifier struct{}

func (fakeSlackVerifier) Verify(_ context.Context, token string) (*integrations.SlackIdentity, error) {
	if token != "xoxb-1" {
		return nil, integrations.ErrSlackUnauthorized
	}
	return &integrations.SlackIdentity{Team: "Acme", TeamID: "T1", BotName: "leadbot", BotUserID: "U1"}, nil
}

type testServer struct {
	router  *chi.Mux
	store   *memory.Store
	tenants *services.TenantService
}

func newTestServer(t *testing.T, perMinute int) *testServer {
	t.Helper()
	st := memory.New()
	require.NoError(t, st.CreateTenant(context.Background(), &models.Tenant{
		ID: "tenant-1", Key: "acme-key", Name: "Acme Studio", Active: true,
	}))

	box, err := crypto.NewSecretBox([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	tenants, err := services.NewTenantService(st, box, 16, 70, 40)
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:          testSecret,
		TokenExpiration:    time.Hour,
		DefaultTenantID:    "tenant-1",
		CORSAllowedOrigins: []string{"*"},
	}
	extractor := staticExtractor{fields: &models.LeadFields{
		Name: "Ana", Email: "ana@example.com", Budget: "premium", Timeline: "asap",
	}}
	agent := services.NewAgentService(services.NewKBRetriever(st), staticGenerator{}, extractor, nil, services.AgentOptions{})
	chat := services.NewChatService(st, tenants, agent, lock.NewMemoryLocker(time.Second), services.ChatOptions{MaxMessagesPerSession: 50})
	limiter, err := ratelimit.NewMemoryLimiter(perMinute, 100)
	require.NoError(t, err)

	router := NewRouter(RouterDependencies{
		AuthHandler:   handlers.NewAuthHandler(services.NewAuthService(st, cfg)),
		ChatHandler:   handlers.NewChatHandlers(chat),
		LeadHandler:   handlers.NewLeadHandler(services.NewLeadService(st), tenants),
		KBHandler:     handlers.NewKBHandler(services.NewKBService(st, nil, nil)),
		TenantHandler: handlers.NewTenantHandler(tenants, fakeSlackVerifier{}),
		ChatLimiter:   limiter,
		Config:        cfg,
	})
	return &testServer{router: router, store: st, tenants: tenants}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func tokenFor(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.NewAccessToken(uuid.New(), "tenant-1", role, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, 60)

	rec := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatMessageCapturesLead(t *testing.T) {
	s := newTestServer(t, 60)

	rec := s.do(t, http.MethodPost, "/v1/chat/message",
		`{"message":"I'm Ana, premium budget, need it asap","tenant_key":"acme-key"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.ChatResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "Thanks! What's your timeline?", resp.Message)
	assert.True(t, resp.LeadCaptured)
	require.NotNil(t, resp.LeadGrade)
	assert.Equal(t, models.GradeHot, *resp.LeadGrade)

	conv, err := s.store.GetConversation(context.Background(), "tenant-1", resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", conv.IPAddress)
}

func TestChatMessageErrors(t *testing.T) {
	s := newTestServer(t, 60)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{"message":`, http.StatusBadRequest},
		{"missing tenant key", `{"message":"hi"}`, http.StatusBadRequest},
		{"empty message", `{"message":"  ","tenant_key":"acme-key"}`, http.StatusBadRequest},
		{"unknown tenant", `{"message":"hi","tenant_key":"nope"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/v1/chat/message", tc.body, "")
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}
}

func TestChatMessageRateLimited(t *testing.T) {
	s := newTestServer(t, 2)
	body := `{"message":"hello","tenant_key":"acme-key"}`

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/v1/chat/message", body, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/v1/chat/message", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/message", strings.NewReader(body))
	req.Header.Set("X-Real-IP", "203.0.113.9")
	other := httptest.NewRecorder()
	s.router.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code, "limits are per client IP")
}

func TestWidgetConfig(t *testing.T) {
	s := newTestServer(t, 60)

	rec := s.do(t, http.MethodGet, "/v1/widget/config?tenant_key=acme-key", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg models.WidgetConfigResponse
	decode(t, rec, &cfg)
	assert.Equal(t, "Acme Studio", cfg.TenantName)

	rec = s.do(t, http.MethodGet, "/v1/widget/config", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, 60)
	body := `{"email":"owner@acme.test","password":"correct horse","full_name":"Owner"}`

	rec := s.do(t, http.MethodPost, "/v1/auth/register", body, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tok models.TokenResponse
	decode(t, rec, &tok)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.NotEmpty(t, tok.AccessToken)

	rec = s.do(t, http.MethodPost, "/v1/auth/register", `{"email":"intruder@evil.test","password":"correct horse","role":"admin"}`, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/auth/login", `{"email":"owner@acme.test","password":"correct horse"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &tok)

	rec = s.do(t, http.MethodGet, "/v1/tenant", "", tok.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/auth/register", `{"email":"rep@acme.test","password":"correct horse","role":"sales_rep"}`, tok.AccessToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.UserResponse
	decode(t, rec, &created)
	assert.Equal(t, "sales_rep", created.Role)
	assert.Equal(t, "tenant-1", created.TenantID)

	rec = s.do(t, http.MethodPost, "/v1/auth/register", body, tok.AccessToken)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/auth/register", `{"email":"v2@acme.test","password":"correct horse"}`, tokenFor(t, "viewer"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/auth/register", `{"email":"v3@acme.test","password":"correct horse"}`, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/auth/login", `{"email":"owner@acme.test","password":"nope nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, 60)

	rec := s.do(t, http.MethodGet, "/v1/leads", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/leads", "", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := auth.NewAccessToken(uuid.New(), "tenant-1", services.RoleAdmin, "another-secret", time.Hour)
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, "/v1/leads", "", other)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLeadRoutes(t *testing.T) {
	s := newTestServer(t, 60)
	rec := s.do(t, http.MethodPost, "/v1/chat/message", `{"message":"I'm Ana","tenant_key":"acme-key"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	viewer := tokenFor(t, services.RoleViewer)
	rep := tokenFor(t, services.RoleSalesRep)

	rec = s.do(t, http.MethodGet, "/v1/leads?grade=HOT&limit=10", "", viewer)
	require.Equal(t, http.StatusOK, rec.Code)
	var leads []models.LeadResponse
	decode(t, rec, &leads)
	require.Len(t, leads, 1)
	leadPath := "/v1/leads/" + leads[0].ID.String()

	rec = s.do(t, http.MethodGet, "/v1/leads?grade=LUKEWARM", "", viewer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/v1/leads?limit=ten", "", viewer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, leadPath, "", viewer)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail models.LeadDetailResponse
	decode(t, rec, &detail)
	assert.Len(t, detail.Conversation.Messages, 2)
	assert.Equal(t, 70, detail.Lead.Score)

	rec = s.do(t, http.MethodPatch, leadPath, `{"status":"contacted"}`, viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, leadPath, `{"status":"contacted","notes":[{"note":"called"}],"tags":["vip"]}`, rep)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var lead models.Lead
	decode(t, rec, &lead)
	assert.Equal(t, models.LeadStatusContacted, lead.Status)
	assert.Equal(t, 70, lead.Score)

	rec = s.do(t, http.MethodPatch, leadPath, `{"status":"archived"}`, rep)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/v1/leads/not-a-uuid", "", viewer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/v1/leads/"+uuid.NewString(), "", viewer)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/leads/stats/summary", "", viewer)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.LeadStatsResponse
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.TotalLeads)
	assert.Equal(t, 1, stats.HotLeads)
}

func TestKnowledgeBaseRoutes(t *testing.T) {
	s := newTestServer(t, 60)
	admin := tokenFor(t, services.RoleAdmin)
	viewer := tokenFor(t, services.RoleViewer)
	body := `{"name":"faq.md","content":"We work weekends."}`

	rec := s.do(t, http.MethodPost, "/v1/knowledge-base/documents", body, viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/knowledge-base/documents", body, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc models.DocumentResponse
	decode(t, rec, &doc)
	assert.Equal(t, 1, doc.ChunksCount)

	rec = s.do(t, http.MethodPost, "/v1/knowledge-base/documents", `{"name":"","content":"x"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/knowledge-base/documents", "", viewer)
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []models.DocumentResponse
	decode(t, rec, &docs)
	assert.Len(t, docs, 1)

	rec = s.do(t, http.MethodGet, "/v1/knowledge-base/stats", "", viewer)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.KBStatsResponse
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.TotalChunks)

	rec = s.do(t, http.MethodPost, "/v1/knowledge-base/notion", `{"page_id":"p","token":"t"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "notion import is disabled without an importer")

	path := "/v1/knowledge-base/documents/" + doc.DocumentID.String()
	rec = s.do(t, http.MethodDelete, path, "", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, path, "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTenantRoutes(t *testing.T) {
	s := newTestServer(t, 60)
	admin := tokenFor(t, services.RoleAdmin)
	rep := tokenFor(t, services.RoleSalesRep)

	rec := s.do(t, http.MethodGet, "/v1/tenant", "", rep)
	require.Equal(t, http.StatusOK, rec.Code)
	var tenant models.TenantResponse
	decode(t, rec, &tenant)
	assert.Equal(t, "acme-key", tenant.Key)
	assert.False(t, tenant.SlackConfigured)

	rec = s.do(t, http.MethodPost, "/v1/tenant/slack/test", "", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no token stored yet")

	settings := `{"hot_threshold":80,"warm_threshold":50,"slack_channel_id":"C1","slack_bot_token":"xoxb-1"}`
	rec = s.do(t, http.MethodPut, "/v1/tenant/settings", settings, rep)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/v1/tenant/settings", settings, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &tenant)
	assert.Equal(t, 80, tenant.Settings.HotThreshold)
	assert.True(t, tenant.SlackConfigured)
	assert.NotContains(t, rec.Body.String(), "xoxb-1")

	rec = s.do(t, http.MethodPost, "/v1/tenant/slack/test", "", admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result models.TestConnectionResult
	decode(t, rec, &result)
	assert.True(t, result.Success)
	assert.Equal(t, "T1", result.Details["team_id"])

	token := "xoxb-revoked"
	_, err := s.tenants.UpdateSettings(context.Background(), "tenant-1", models.UpdateTenantSettingsRequest{SlackBotToken: &token})
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/v1/tenant/slack/test", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &result)
	assert.False(t, result.Success)

	rec = s.do(t, http.MethodPut, "/v1/tenant/settings", `{"hot_threshold":30,"warm_threshold":50}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
