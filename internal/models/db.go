package models

import (
	"time"

	"github.com/google/uuid"
)

// Default tenant settings, applied when a tenant row leaves them unset.
const (
	DefaultGreeting      = "Hi! I'm here to help you. What can I assist you with today?"
	DefaultHotThreshold  = 70
	DefaultWarmThreshold = 40
	DefaultBrandColor    = "#6366f1"
	DefaultLanguage      = "en"
)

// User represents a dashboard user in the database.
type User struct {
	ID             uuid.UUID `db:"id"`
	TenantID       string    `db:"tenant_id"`
	Email          string    `db:"email"`
	FullName       string    `db:"full_name"`
	Role           string    `db:"role"` // admin, sales_rep, viewer
	HashedPassword string    `db:"hashed_password"`
	Active         bool      `db:"active"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// TenantSettings holds the per-tenant knobs the qualification pipeline reads.
type TenantSettings struct {
	Greeting           string   `json:"greeting"`
	LeadQuestions      []string `json:"lead_questions"`
	HotThreshold       int      `json:"hot_threshold"` // 0 means unset: both thresholds take the defaults
	WarmThreshold      int      `json:"warm_threshold"` // 0 is valid once HotThreshold is set
	NotificationEmails []string `json:"notification_emails"`
	BrandColor         string   `json:"brand_color"`
	Language           string   `json:"language"`
	SlackChannelID     string   `json:"slack_channel_id,omitempty"`
}

// Tenant represents a business account. Conversations, leads and knowledge
// chunks are all scoped by TenantID.
type Tenant struct {
	ID        string         `db:"id"`
	Key       string         `db:"tenant_key"` // public key used by the chat widget
	Name      string         `db:"name"`
	Email     string         `db:"email"`
	Settings  TenantSettings `db:"settings"` // Stored as JSONB
	Active    bool           `db:"active"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`

	// EncryptedSlackToken is the AES-GCM sealed Slack bot token. Never serialised.
	EncryptedSlackToken []byte `db:"encrypted_slack_token" json:"-"`
}

// Thresholds returns the tenant's hot/warm thresholds, or the defaults when
// the pair is unset.
func (t *Tenant) Thresholds() (hot, warm int) {
	return ResolveThresholds(t.Settings.HotThreshold, t.Settings.WarmThreshold)
}

// ResolveThresholds treats a non-positive hot threshold as an unset pair and
// returns the defaults for both. A warm threshold of 0 is kept; negative warm
// values are raised to 0.
func ResolveThresholds(hot, warm int) (int, int) {
	if hot <= 0 {
		return DefaultHotThreshold, DefaultWarmThreshold
	}
	if warm < 0 {
		warm = 0
	}
	return hot, warm
}

// Language returns the tenant language or the default.
func (t *Tenant) Language() string {
	if t.Settings.Language == "" {
		return DefaultLanguage
	}
	return t.Settings.Language
}

// ApplyDefaults fills unset settings in place.
func (s *TenantSettings) ApplyDefaults() {
	if s.Greeting == "" {
		s.Greeting = DefaultGreeting
	}
	s.HotThreshold, s.WarmThreshold = ResolveThresholds(s.HotThreshold, s.WarmThreshold)
	if s.BrandColor == "" {
		s.BrandColor = DefaultBrandColor
	}
	if s.Language == "" {
		s.Language = DefaultLanguage
	}
}
