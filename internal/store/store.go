package store

import (
	"context"
	"errors"

	"leadpilot-backend/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when an insert violates a unique constraint.
var ErrConflict = errors.New("record already exists")

// SaveTurnParams is everything one chat turn writes. Lead and ScoreEntry are
// nil when the turn did not touch the lead.
type SaveTurnParams struct {
	Conversation *models.Conversation
	Lead         *models.Lead
	ScoreEntry   *models.ScoreHistoryEntry
}

// ListLeadsParams filters the tenant's lead list. Zero values mean no filter.
type ListLeadsParams struct {
	TenantID string
	Status   *models.LeadStatus
	Grade    *models.LeadGrade
	Limit    int
	Skip     int
}

// UpdateLeadParams carries manual lead edits. Score, grade and history are
// never part of a manual edit.
type UpdateLeadParams struct {
	ID         uuid.UUID
	TenantID   string
	Status     *models.LeadStatus
	AssignedTo *string
	Notes      []models.LeadNote // appended, not replaced
	Tags       []string          // replaces when non-nil
}

// LeadStats is the per-tenant lead summary.
type LeadStats struct {
	Total int
	Hot   int
	Warm  int
	Cold  int
	New   int
}

// KBStats is the per-tenant knowledge-base summary.
type KBStats struct {
	Documents int
	Chunks    int
}

// Store defines the interface for database operations.
// This allows for mocking in tests and potential DB backend switching.
type Store interface {
	// Tenant operations
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	UpsertTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenantByID(ctx context.Context, id string) (*models.Tenant, error)
	GetTenantByKey(ctx context.Context, key string) (*models.Tenant, error)
	UpdateTenantSettings(ctx context.Context, tenantID string, settings models.TenantSettings, encryptedSlackToken []byte) (*models.Tenant, error)

	// User operations
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	CountUsers(ctx context.Context, tenantID string) (int, error)

	// Conversation operations
	GetConversation(ctx context.Context, tenantID, sessionID string) (*models.Conversation, error)
	SaveTurn(ctx context.Context, arg SaveTurnParams) error

	// Lead operations
	GetLeadBySession(ctx context.Context, tenantID, sessionID string) (*models.Lead, error)
	GetLeadByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Lead, error)
	ListLeads(ctx context.Context, arg ListLeadsParams) ([]models.Lead, error)
	UpdateLead(ctx context.Context, arg UpdateLeadParams) (*models.Lead, error)
	GetLeadStats(ctx context.Context, tenantID string) (*LeadStats, error)

	// Knowledge base operations
	CreateDocument(ctx context.Context, doc *models.KBDocument, chunks []models.KBChunk) error
	ListDocuments(ctx context.Context, tenantID string) ([]models.KBDocument, error)
	DeleteDocument(ctx context.Context, tenantID string, id uuid.UUID) error
	ListRecentChunks(ctx context.Context, tenantID string, limit int) ([]models.KBChunk, error)
	GetKBStats(ctx context.Context, tenantID string) (*KBStats, error)
}
