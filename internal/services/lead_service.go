package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrLeadNotFound = errors.New("lead not found")

const (
	DefaultLeadPageSize = 50
	MaxLeadPageSize     = 100
)

// LeadFilter selects leads for the dashboard list.
type LeadFilter struct {
	Status *models.LeadStatus
	Grade  *models.LeadGrade
	Limit  int
	Skip   int
}

// LeadService serves the dashboard's lead views. Manual edits never touch
// score, grade or score history.
type LeadService struct {
	store store.Store
	now   func() time.Time
}

func NewLeadService(s store.Store) *LeadService {
	return &LeadService{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// List returns the tenant's leads newest first.
func (s *LeadService) List(ctx context.Context, tenantID string, f LeadFilter) ([]models.LeadResponse, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *f.Status)
	}
	if f.Grade != nil && !f.Grade.Valid() {
		return nil, fmt.Errorf("%w: unknown grade %q", ErrValidation, *f.Grade)
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLeadPageSize
	}
	if f.Limit > MaxLeadPageSize {
		f.Limit = MaxLeadPageSize
	}
	if f.Skip < 0 {
		f.Skip = 0
	}

	leads, err := s.store.ListLeads(ctx, store.ListLeadsParams{
		TenantID: tenantID,
		Status:   f.Status,
		Grade:    f.Grade,
		Limit:    f.Limit,
		Skip:     f.Skip,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	resp := make([]models.LeadResponse, len(leads))
	for i := range leads {
		resp[i] = toLeadResponse(&leads[i])
	}
	return resp, nil
}

// Get returns one lead with its transcript and the qualification gaps.
func (s *LeadService) Get(ctx context.Context, tenant *models.Tenant, id uuid.UUID) (*models.LeadDetailResponse, error) {
	lead, err := s.store.GetLeadByID(ctx, tenant.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}
	conv, err := s.store.GetConversation(ctx, tenant.ID, lead.SessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	missing := MissingFields(lead.Fields)
	if missing == nil {
		missing = []string{}
	}
	return &models.LeadDetailResponse{
		Lead:              lead,
		Conversation:      conv,
		MissingFields:     missing,
		SuggestedQuestion: NextQuestion(missing, tenant.Settings.LeadQuestions),
	}, nil
}

// Update applies manual edits from a dashboard user.
func (s *LeadService) Update(ctx context.Context, tenantID string, id uuid.UUID, author string, req models.LeadUpdateRequest) (*models.Lead, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *req.Status)
	}
	now := s.now()
	notes := make([]models.LeadNote, 0, len(req.Notes))
	for _, n := range req.Notes {
		text := strings.TrimSpace(n.Note)
		if text == "" {
			continue
		}
		if n.Author == "" {
			n.Author = author
		}
		notes = append(notes, models.LeadNote{Note: text, Author: n.Author, CreatedAt: now})
	}
	var tags []string
	if req.Tags != nil {
		tags = make([]string, 0, len(req.Tags))
		seen := make(map[string]bool)
		for _, t := range req.Tags {
			t = strings.TrimSpace(t)
			if t != "" && !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}

	lead, err := s.store.UpdateLead(ctx, store.UpdateLeadParams{
		ID:         id,
		TenantID:   tenantID,
		Status:     req.Status,
		AssignedTo: req.AssignedTo,
		Notes:      notes,
		Tags:       tags,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}
	log.Info().Str("tenant_id", tenantID).Str("lead_id", id.String()).Msg("[LeadService] Update: lead updated")
	return lead, nil
}

// Stats returns the dashboard counters.
func (s *LeadService) Stats(ctx context.Context, tenantID string) (*models.LeadStatsResponse, error) {
	st, err := s.store.GetLeadStats(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute lead stats: %w", err)
	}
	return &models.LeadStatsResponse{
		TotalLeads: st.Total,
		HotLeads:   st.Hot,
		WarmLeads:  st.Warm,
		ColdLeads:  st.Cold,
		NewLeads:   st.New,
	}, nil
}

func toLeadResponse(l *models.Lead) models.LeadResponse {
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.LeadResponse{
		ID:         l.ID,
		TenantID:   l.TenantID,
		Fields:     l.Fields,
		Score:      l.Score,
		Grade:      l.Grade,
		Status:     l.Status,
		AssignedTo: l.AssignedTo,
		Tags:       tags,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}
