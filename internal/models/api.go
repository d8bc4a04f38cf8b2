package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// RegisterRequest defines the expected body for the register endpoint.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	TenantID string `json:"tenant_id,omitempty"` // Defaults to the configured default tenant
	Role     string `json:"role,omitempty"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// --- Response Structs ---

// TokenResponse is returned by register and login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserResponse describes a user created by an admin.
type UserResponse struct {
	ID       uuid.UUID `json:"id"`
	TenantID string    `json:"tenant_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// --- Chat DTOs ---

// ChatRequest is the public widget payload for one user message.
type ChatRequest struct {
	Message   string  `json:"message"`
	SessionID *string `json:"session_id,omitempty"`
	TenantKey string  `json:"tenant_key"`
	Language  string  `json:"language,omitempty"`
}

// ChatResponse is returned after each processed turn.
type ChatResponse struct {
	Message      string     `json:"message"`
	SessionID    string     `json:"session_id"`
	LeadCaptured bool       `json:"lead_captured"`
	LeadGrade    *LeadGrade `json:"lead_grade,omitempty"`
}

// WidgetConfigResponse is what the embeddable widget loads on start.
type WidgetConfigResponse struct {
	TenantName string `json:"tenant_name"`
	Greeting   string `json:"greeting"`
	BrandColor string `json:"brand_color"`
	Language   string `json:"language"`
}

// --- Lead DTOs ---

// LeadResponse is the list view of a lead.
type LeadResponse struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Fields     LeadFields `json:"fields"`
	Score      int        `json:"score"`
	Grade      LeadGrade  `json:"grade"`
	Status     LeadStatus `json:"status"`
	AssignedTo *string    `json:"assigned_to,omitempty"`
	Tags       []string   `json:"tags"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// LeadDetailResponse carries a lead and its transcript.
type LeadDetailResponse struct {
	Lead              *Lead         `json:"lead"`
	Conversation      *Conversation `json:"conversation"`
	MissingFields     []string      `json:"missing_fields"`
	SuggestedQuestion string        `json:"suggested_question,omitempty"`
}

// LeadUpdateRequest holds the manually editable lead attributes.
// Nil fields are left untouched.
type LeadUpdateRequest struct {
	Status     *LeadStatus `json:"status,omitempty"`
	AssignedTo *string     `json:"assigned_to,omitempty"`
	Notes      []LeadNote  `json:"notes,omitempty"`
	Tags       []string    `json:"tags,omitempty"`
}

// LeadStatsResponse feeds the dashboard counters.
type LeadStatsResponse struct {
	TotalLeads int `json:"total_leads"`
	HotLeads   int `json:"hot_leads"`
	WarmLeads  int `json:"warm_leads"`
	ColdLeads  int `json:"cold_leads"`
	NewLeads   int `json:"new_leads"`
}

// --- Knowledge Base DTOs ---

// DocumentUploadRequest adds a text document to the knowledge base.
type DocumentUploadRequest struct {
	Name     string                 `json:"name"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NotionImportRequest imports one Notion page into the knowledge base.
type NotionImportRequest struct {
	PageID string `json:"page_id"`
	Token  string `json:"token"` // Notion internal integration secret, used once and not stored
	Name   string `json:"name,omitempty"`
}

// DocumentResponse describes a stored document.
type DocumentResponse struct {
	DocumentID  uuid.UUID `json:"document_id"`
	Name        string    `json:"name"`
	Source      string    `json:"source"`
	ChunksCount int       `json:"chunks_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// KBStatsResponse summarises a tenant's knowledge base.
type KBStatsResponse struct {
	TotalDocuments int `json:"total_documents"`
	TotalChunks    int `json:"total_chunks"`
}

// --- Tenant DTOs ---

// TenantResponse is the dashboard view of the caller's tenant.
type TenantResponse struct {
	ID              string         `json:"id"`
	Key             string         `json:"tenant_key"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Settings        TenantSettings `json:"settings"`
	SlackConfigured bool           `json:"slack_configured"`
	Active          bool           `json:"active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// UpdateTenantSettingsRequest replaces selected tenant settings.
type UpdateTenantSettingsRequest struct {
	Greeting           *string  `json:"greeting,omitempty"`
	LeadQuestions      []string `json:"lead_questions,omitempty"`
	HotThreshold       *int     `json:"hot_threshold,omitempty"`
	WarmThreshold      *int     `json:"warm_threshold,omitempty"`
	NotificationEmails []string `json:"notification_emails,omitempty"`
	BrandColor         *string  `json:"brand_color,omitempty"`
	Language           *string  `json:"language,omitempty"`
	SlackChannelID     *string  `json:"slack_channel_id,omitempty"`
	SlackBotToken      *string  `json:"slack_bot_token,omitempty"` // Write-only, stored encrypted
}

// TestConnectionResult reports whether an integration credential works.
type TestConnectionResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
