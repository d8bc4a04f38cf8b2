package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document consumed by `leadctl seed`.
type SeedFile struct {
	Tenants []TenantSeed `yaml:"tenants"`
}

// TenantSeed describes one tenant and its dashboard users.
type TenantSeed struct {
	ID       string       `yaml:"id"`
	Key      string       `yaml:"key"`
	Name     string       `yaml:"name"`
	Email    string       `yaml:"email"`
	Settings SettingsSeed `yaml:"settings"`
	Users    []UserSeed   `yaml:"users"`
}

// SettingsSeed mirrors the tenant settings. Zero values take the defaults.
type SettingsSeed struct {
	Greeting           string   `yaml:"greeting"`
	LeadQuestions      []string `yaml:"lead_questions"`
	HotThreshold       int      `yaml:"hot_threshold"`
	WarmThreshold      int      `yaml:"warm_threshold"`
	NotificationEmails []string `yaml:"notification_emails"`
	BrandColor         string   `yaml:"brand_color"`
	Language           string   `yaml:"language"`
	SlackChannelID     string   `yaml:"slack_channel_id"`
	SlackBotToken      string   `yaml:"slack_bot_token"`
}

// UserSeed is a dashboard user created with the tenant.
type UserSeed struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	FullName string `yaml:"full_name"`
	Role     string `yaml:"role"`
}

// LoadSeedFile reads and validates a seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates seed YAML.
func ParseSeed(data []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks required fields and threshold ordering.
func (s *SeedFile) Validate() error {
	if len(s.Tenants) == 0 {
		return fmt.Errorf("seed file has no tenants")
	}
	keys := make(map[string]bool)
	for i, t := range s.Tenants {
		if strings.TrimSpace(t.Key) == "" || strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("tenant %d: key and name are required", i)
		}
		if keys[t.Key] {
			return fmt.Errorf("tenant %d: duplicate key %q", i, t.Key)
		}
		keys[t.Key] = true

		hot, warm := t.Settings.HotThreshold, t.Settings.WarmThreshold
		if hot != 0 || warm != 0 {
			if err := ValidateThresholds(hot, warm); err != nil {
				return fmt.Errorf("tenant %q: %w", t.Key, err)
			}
		}
		for j, u := range t.Users {
			if u.Email == "" || len(u.Password) < 8 {
				return fmt.Errorf("tenant %q user %d: email and a password of at least 8 characters are required", t.Key, j)
			}
		}
	}
	return nil
}
