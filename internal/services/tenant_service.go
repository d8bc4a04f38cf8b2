package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"leadpilot-backend/internal/auth"
	"leadpilot-backend/internal/config"
	"leadpilot-backend/internal/crypto"
	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/store"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantInactive = errors.New("tenant is inactive")
)

var brandColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const defaultTenantCacheTTL = time.Minute

type cachedTenant struct {
	tenant   *models.Tenant
	loadedAt time.Time
}

// TenantService resolves tenants for the public chat path and manages their
// settings. Lookups by widget key are cached; concurrent misses for the same
// key share one store read.
type TenantService struct {
	store store.Store
	box   *crypto.SecretBox
	cache *lru.Cache
	group singleflight.Group
	ttl   time.Duration
	hot   int
	warm  int
	now   func() time.Time
}

// NewTenantService creates a TenantService. hot and warm are the thresholds
// given to tenants created without their own.
func NewTenantService(s store.Store, box *crypto.SecretBox, cacheSize int, hot, warm int) (*TenantService, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant cache: %w", err)
	}
	if err := config.ValidateThresholds(hot, warm); err != nil {
		hot, warm = models.DefaultHotThreshold, models.DefaultWarmThreshold
	}
	return &TenantService{
		store: s,
		box:   box,
		cache: cache,
		ttl:   defaultTenantCacheTTL,
		hot:   hot,
		warm:  warm,
		now:   time.Now,
	}, nil
}

// GetByKey resolves an active tenant from its public widget key.
func (s *TenantService) GetByKey(ctx context.Context, key string) (*models.Tenant, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrTenantNotFound
	}
	if v, ok := s.cache.Get(key); ok {
		entry := v.(cachedTenant)
		if s.now().Sub(entry.loadedAt) < s.ttl {
			return activeCopy(entry.tenant)
		}
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		t, err := s.store.GetTenantByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, cachedTenant{tenant: t, loadedAt: s.now()})
		return t, nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		log.Error().Err(err).Str("tenant_key", key).Msg("[TenantService] GetByKey: store lookup failed")
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	return activeCopy(v.(*models.Tenant))
}

func activeCopy(t *models.Tenant) (*models.Tenant, error) {
	if !t.Active {
		return nil, ErrTenantInactive
	}
	cp := *t
	cp.Settings.LeadQuestions = append([]string(nil), t.Settings.LeadQuestions...)
	cp.Settings.NotificationEmails = append([]string(nil), t.Settings.NotificationEmails...)
	return &cp, nil
}

// GetByID loads a tenant for the dashboard.
func (s *TenantService) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	t, err := s.store.GetTenantByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	return t, nil
}

// UpdateSettings applies a partial settings update. The Slack bot token is
// sealed before it reaches the store.
func (s *TenantService) UpdateSettings(ctx context.Context, tenantID string, req models.UpdateTenantSettingsRequest) (*models.Tenant, error) {
	current, err := s.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	settings := current.Settings

	if req.Greeting != nil {
		settings.Greeting = strings.TrimSpace(*req.Greeting)
	}
	if req.LeadQuestions != nil {
		settings.LeadQuestions = req.LeadQuestions
	}
	if req.HotThreshold != nil {
		settings.HotThreshold = *req.HotThreshold
	}
	if req.WarmThreshold != nil {
		settings.WarmThreshold = *req.WarmThreshold
	}
	if err := config.ValidateThresholds(settings.HotThreshold, settings.WarmThreshold); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.NotificationEmails != nil {
		emails, err := normalizeEmails(req.NotificationEmails)
		if err != nil {
			return nil, err
		}
		settings.NotificationEmails = emails
	}
	if req.BrandColor != nil {
		if !brandColorPattern.MatchString(*req.BrandColor) {
			return nil, fmt.Errorf("%w: brand_color must look like #RRGGBB", ErrValidation)
		}
		settings.BrandColor = *req.BrandColor
	}
	if req.Language != nil {
		lang := strings.ToLower(strings.TrimSpace(*req.Language))
		if len(lang) < 2 || len(lang) > 5 {
			return nil, fmt.Errorf("%w: invalid language code", ErrValidation)
		}
		settings.Language = lang
	}
	if req.SlackChannelID != nil {
		settings.SlackChannelID = strings.TrimSpace(*req.SlackChannelID)
	}

	var sealed []byte
	if req.SlackBotToken != nil && strings.TrimSpace(*req.SlackBotToken) != "" {
		sealed, err = s.box.Seal(tenantID, strings.TrimSpace(*req.SlackBotToken))
		if err != nil {
			return nil, fmt.Errorf("failed to seal slack token: %w", err)
		}
	}

	updated, err := s.store.UpdateTenantSettings(ctx, tenantID, settings, sealed)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to update tenant settings: %w", err)
	}
	s.cache.Remove(updated.Key)
	log.Info().Str("tenant_id", tenantID).Msg("[TenantService] UpdateSettings: settings updated")
	return updated, nil
}

func normalizeEmails(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, err := mail.ParseAddress(e); err != nil {
			return nil, fmt.Errorf("%w: invalid notification email %q", ErrValidation, e)
		}
		out = append(out, e)
	}
	return out, nil
}

// SlackToken opens the tenant's sealed Slack bot token. An empty string means
// none is configured.
func (s *TenantService) SlackToken(ctx context.Context, tenantID string) (string, error) {
	t, err := s.GetByID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if len(t.EncryptedSlackToken) == 0 {
		return "", nil
	}
	token, err := s.box.Open(tenantID, t.EncryptedSlackToken)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("[TenantService] SlackToken: failed to open sealed token")
		return "", err
	}
	return token, nil
}

// ToResponse maps a tenant to its dashboard view. Secrets are never included.
func ToResponse(t *models.Tenant) models.TenantResponse {
	return models.TenantResponse{
		ID:              t.ID,
		Key:             t.Key,
		Name:            t.Name,
		Email:           t.Email,
		Settings:        t.Settings,
		SlackConfigured: len(t.EncryptedSlackToken) > 0,
		Active:          t.Active,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// EnsureDefaultTenant creates the default tenant when it is missing.
func (s *TenantService) EnsureDefaultTenant(ctx context.Context, id, name string) (*models.Tenant, error) {
	t, err := s.store.GetTenantByID(ctx, id)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load default tenant: %w", err)
	}
	t = &models.Tenant{
		ID:     id,
		Key:    uuid.NewString(),
		Name:   name,
		Active: true,
		Settings: models.TenantSettings{
			HotThreshold:  s.hot,
			WarmThreshold: s.warm,
		},
	}
	t.Settings.ApplyDefaults()
	if err := s.store.CreateTenant(ctx, t); err != nil && !errors.Is(err, store.ErrConflict) {
		return nil, fmt.Errorf("failed to create default tenant: %w", err)
	}
	log.Info().Str("tenant_id", id).Str("tenant_key", t.Key).Msg("[TenantService] EnsureDefaultTenant: created default tenant")
	return t, nil
}

// SeedResult reports what one seed entry changed.
type SeedResult struct {
	TenantID     string
	TenantKey    string
	UsersCreated int
	UsersSkipped int
}

// Seed upserts a tenant and creates its users. Existing users are left alone.
func (s *TenantService) Seed(ctx context.Context, seed config.TenantSeed) (*SeedResult, error) {
	id := seed.ID
	if id == "" {
		id = seed.Key
	}
	settings := models.TenantSettings{
		Greeting:           seed.Settings.Greeting,
		LeadQuestions:      seed.Settings.LeadQuestions,
		HotThreshold:       seed.Settings.HotThreshold,
		WarmThreshold:      seed.Settings.WarmThreshold,
		NotificationEmails: seed.Settings.NotificationEmails,
		BrandColor:         seed.Settings.BrandColor,
		Language:           seed.Settings.Language,
		SlackChannelID:     seed.Settings.SlackChannelID,
	}
	if settings.HotThreshold == 0 {
		settings.HotThreshold, settings.WarmThreshold = s.hot, s.warm
	}
	settings.ApplyDefaults()

	tenant := &models.Tenant{
		ID:       id,
		Key:      seed.Key,
		Name:     seed.Name,
		Email:    seed.Email,
		Settings: settings,
		Active:   true,
	}
	if seed.Settings.SlackBotToken != "" {
		sealed, err := s.box.Seal(id, seed.Settings.SlackBotToken)
		if err != nil {
			return nil, fmt.Errorf("failed to seal slack token: %w", err)
		}
		tenant.EncryptedSlackToken = sealed
	}
	if err := s.store.UpsertTenant(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to upsert tenant %s: %w", seed.Key, err)
	}
	s.cache.Remove(seed.Key)

	res := &SeedResult{TenantID: id, TenantKey: seed.Key}
	for _, u := range seed.Users {
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return nil, ErrHashingPassword
		}
		role := u.Role
		if !validRole(role) {
			role = RoleAdmin
		}
		err = s.store.CreateUser(ctx, &models.User{
			ID:             uuid.New(),
			TenantID:       id,
			Email:          strings.ToLower(strings.TrimSpace(u.Email)),
			FullName:       u.FullName,
			Role:           role,
			HashedPassword: hash,
			Active:         true,
		})
		switch {
		case errors.Is(err, store.ErrConflict):
			res.UsersSkipped++
		case err != nil:
			return nil, fmt.Errorf("failed to create user %s: %w", u.Email, err)
		default:
			res.UsersCreated++
		}
	}
	return res, nil
}
