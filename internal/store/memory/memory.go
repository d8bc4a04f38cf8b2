// Package memory is an in-process store.Store used by service and handler
// tests and by local runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/store"

	"github.com/google/uuid"
)

var _ store.Store = (*Store)(nil)

// Session ids are chosen by the widget, so they are only unique per tenant.
type convKey struct {
	tenantID  string
	sessionID string
}

// Store keeps every record in maps guarded by one mutex. Values are copied
// on the way in and out.
type Store struct {
	mu            sync.RWMutex
	tenants       map[string]*models.Tenant
	users         map[string]*models.User
	conversations map[convKey]*models.Conversation
	leads         map[uuid.UUID]*models.Lead
	documents     map[uuid.UUID]*models.KBDocument
	chunks        []models.KBChunk
	now           func() time.Time
}

func New() *Store {
	return &Store{
		tenants:       make(map[string]*models.Tenant),
		users:         make(map[string]*models.User),
		conversations: make(map[convKey]*models.Conversation),
		leads:         make(map[uuid.UUID]*models.Lead),
		documents:     make(map[uuid.UUID]*models.KBDocument),
		now:           time.Now,
	}
}

func cloneTenant(t *models.Tenant) *models.Tenant {
	cp := *t
	cp.Settings.LeadQuestions = append([]string(nil), t.Settings.LeadQuestions...)
	cp.Settings.NotificationEmails = append([]string(nil), t.Settings.NotificationEmails...)
	cp.EncryptedSlackToken = append([]byte(nil), t.EncryptedSlackToken...)
	if len(cp.EncryptedSlackToken) == 0 {
		cp.EncryptedSlackToken = nil
	}
	return &cp
}

func (s *Store) CreateTenant(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenant.ID]; ok {
		return store.ErrConflict
	}
	for _, t := range s.tenants {
		if t.Key == tenant.Key {
			return store.ErrConflict
		}
	}
	now := s.now()
	tenant.CreatedAt, tenant.UpdatedAt = now, now
	s.tenants[tenant.ID] = cloneTenant(tenant)
	return nil
}

func (s *Store) UpsertTenant(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tenants {
		if id != tenant.ID && t.Key == tenant.Key {
			return store.ErrConflict
		}
	}
	now := s.now()
	cp := cloneTenant(tenant)
	if existing, ok := s.tenants[tenant.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
		if cp.EncryptedSlackToken == nil {
			cp.EncryptedSlackToken = existing.EncryptedSlackToken
		}
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.tenants[tenant.ID] = cp
	tenant.CreatedAt, tenant.UpdatedAt = cp.CreatedAt, cp.UpdatedAt
	return nil
}

func (s *Store) GetTenantByID(_ context.Context, id string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := cloneTenant(t)
	cp.Settings.ApplyDefaults()
	return cp, nil
}

func (s *Store) GetTenantByKey(_ context.Context, key string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.Key == key {
			cp := cloneTenant(t)
			cp.Settings.ApplyDefaults()
			return cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateTenantSettings(_ context.Context, tenantID string, settings models.TenantSettings, encryptedSlackToken []byte) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	t.Settings = settings
	if encryptedSlackToken != nil {
		t.EncryptedSlackToken = append([]byte(nil), encryptedSlackToken...)
	}
	t.UpdatedAt = s.now()
	cp := cloneTenant(t)
	cp.Settings.ApplyDefaults()
	return cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) CountUsers(_ context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Email]; ok {
		return store.ErrConflict
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	s.users[user.Email] = &cp
	return nil
}

func (s *Store) GetConversation(_ context.Context, tenantID, sessionID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[convKey{tenantID, sessionID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *Store) SaveTurn(_ context.Context, arg store.SaveTurnParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := arg.Conversation
	key := convKey{c.TenantID, c.SessionID}
	if existing, ok := s.conversations[key]; ok {
		if len(c.Messages) < len(existing.Messages) {
			return nil
		}
		if c.LeadID == nil {
			c = c.Clone()
			c.LeadID = existing.LeadID
		}
	}
	if l := arg.Lead; l != nil {
		for id, other := range s.leads {
			if id != l.ID && other.TenantID == l.TenantID && other.SessionID == l.SessionID {
				return store.ErrConflict
			}
		}
		cp := l.Clone()
		if existing, ok := s.leads[l.ID]; ok {
			// Manual fields are owned by UpdateLead.
			cp.Status = existing.Status
			cp.AssignedTo = existing.AssignedTo
			cp.Notes = existing.Notes
			cp.Tags = existing.Tags
			cp.ScoreHistory = existing.ScoreHistory
		} else {
			cp.ScoreHistory = nil
		}
		if arg.ScoreEntry != nil {
			cp.ScoreHistory = append(cp.ScoreHistory, *arg.ScoreEntry)
		}
		s.leads[l.ID] = cp
	}
	s.conversations[key] = c.Clone()
	return nil
}

func (s *Store) findLead(tenantID string, match func(*models.Lead) bool) (*models.Lead, error) {
	for _, l := range s.leads {
		if l.TenantID == tenantID && match(l) {
			return l.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetLeadBySession(_ context.Context, tenantID, sessionID string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLead(tenantID, func(l *models.Lead) bool { return l.SessionID == sessionID })
}

func (s *Store) GetLeadByID(_ context.Context, tenantID string, id uuid.UUID) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLead(tenantID, func(l *models.Lead) bool { return l.ID == id })
}

func (s *Store) ListLeads(_ context.Context, arg store.ListLeadsParams) ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Lead{}
	for _, l := range s.leads {
		if l.TenantID != arg.TenantID {
			continue
		}
		if arg.Status != nil && l.Status != *arg.Status {
			continue
		}
		if arg.Grade != nil && l.Grade != *arg.Grade {
			continue
		}
		cp := l.Clone()
		cp.ScoreHistory = nil
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if arg.Skip >= len(out) {
		return []models.Lead{}, nil
	}
	out = out[arg.Skip:]
	limit := arg.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateLead(_ context.Context, arg store.UpdateLeadParams) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[arg.ID]
	if !ok || l.TenantID != arg.TenantID {
		return nil, store.ErrNotFound
	}
	if arg.Status != nil {
		l.Status = *arg.Status
	}
	if arg.AssignedTo != nil {
		v := *arg.AssignedTo
		l.AssignedTo = &v
	}
	l.Notes = append(l.Notes, arg.Notes...)
	if arg.Tags != nil {
		l.Tags = append([]string(nil), arg.Tags...)
	}
	l.UpdatedAt = s.now()
	return l.Clone(), nil
}

func (s *Store) GetLeadStats(_ context.Context, tenantID string) (*store.LeadStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &store.LeadStats{}
	for _, l := range s.leads {
		if l.TenantID != tenantID {
			continue
		}
		stats.Total++
		switch l.Grade {
		case models.GradeHot:
			stats.Hot++
		case models.GradeWarm:
			stats.Warm++
		case models.GradeCold:
			stats.Cold++
		}
		if l.Status == models.LeadStatusNew {
			stats.New++
		}
	}
	return stats, nil
}

func (s *Store) CreateDocument(_ context.Context, doc *models.KBDocument, chunks []models.KBChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return store.ErrConflict
	}
	doc.CreatedAt = s.now()
	doc.ChunksCount = len(chunks)
	cp := *doc
	s.documents[doc.ID] = &cp
	for _, c := range chunks {
		c.TenantID = doc.TenantID
		c.DocumentID = doc.ID
		c.DocumentName = doc.Name
		c.CreatedAt = doc.CreatedAt
		s.chunks = append(s.chunks, c)
	}
	return nil
}

func (s *Store) ListDocuments(_ context.Context, tenantID string) ([]models.KBDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.KBDocument{}
	for _, d := range s.documents {
		if d.TenantID == tenantID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteDocument(_ context.Context, tenantID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok || d.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(s.documents, id)
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocumentID != id {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	return nil
}

// ListRecentChunks walks chunks newest first; chunks of one document keep
// their index order.
func (s *Store) ListRecentChunks(_ context.Context, tenantID string, limit int) ([]models.KBChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.KBChunk
	for _, c := range s.chunks {
		if c.TenantID == tenantID {
			matched = append(matched, c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ChunkIndex < matched[j].ChunkIndex
	})
	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	if matched == nil {
		matched = []models.KBChunk{}
	}
	return matched, nil
}

func (s *Store) GetKBStats(_ context.Context, tenantID string) (*store.KBStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &store.KBStats{}
	for _, d := range s.documents {
		if d.TenantID == tenantID {
			stats.Documents++
		}
	}
	for _, c := range s.chunks {
		if c.TenantID == tenantID {
			stats.Chunks++
		}
	}
	return stats, nil
}
