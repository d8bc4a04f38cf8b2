package config

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	HTTPPort        string
	TokenExpiration time.Duration
	EncryptionKey   []byte // Raw key bytes (32 for AES-256)

	DefaultTenantID   string
	DefaultTenantName string

	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIModel          string
	OpenAITemperature    float32
	OpenAIMaxTokens      int
	OpenAIEmbeddingModel string
	LLMTimeout           time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	NotifyMaxAttempts int
	NotifyBaseDelay   time.Duration

	RedisURL              string
	RateLimitPerMinute    int
	MaxMessagesPerSession int
	SessionLockTTL        time.Duration

	DefaultHotThreshold  int
	DefaultWarmThreshold int

	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("Could not load .env file. Using environment variables only.")
	}

	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		JWTSecret:         getEnv("JWT_SECRET", "default-super-secret-key"), // CHANGE THIS IN PRODUCTION!
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		TokenExpiration:   time.Hour * time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 168)),
		DefaultTenantID:   getEnv("DEFAULT_TENANT_ID", "default-tenant"),
		DefaultTenantName: getEnv("DEFAULT_TENANT_NAME", "Demo Business"),

		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4-turbo-preview"),
		OpenAITemperature:    float32(getEnvFloat("OPENAI_TEMPERATURE", 0.7)),
		OpenAIMaxTokens:      getEnvInt("OPENAI_MAX_TOKENS", 1000),
		OpenAIEmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		LLMTimeout:           getEnvDuration("LLM_TIMEOUT", 30*time.Second),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		NotifyMaxAttempts: getEnvInt("NOTIFY_MAX_ATTEMPTS", 3),
		NotifyBaseDelay:   getEnvDuration("NOTIFY_BASE_DELAY", time.Second),

		RedisURL:              getEnv("REDIS_URL", ""),
		RateLimitPerMinute:    getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		MaxMessagesPerSession: getEnvInt("MAX_MESSAGES_PER_SESSION", 100),
		SessionLockTTL:        getEnvDuration("SESSION_LOCK_TTL", 30*time.Second),

		DefaultHotThreshold:  getEnvInt("DEFAULT_HOT_THRESHOLD", 70),
		DefaultWarmThreshold: getEnvInt("DEFAULT_WARM_THRESHOLD", 40),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}
	cfg.SMTPFrom = getEnv("SMTP_FROM", cfg.SMTPUsername)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	// The encryption key MUST be 64 hex characters for 32 bytes.
	encryptionKeyHex := getEnv("ENCRYPTION_KEY", "")
	if encryptionKeyHex == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY environment variable is not set")
	}
	key, err := hex.DecodeString(encryptionKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ENCRYPTION_KEY from hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be 32 bytes (64 hex characters) long, got %d bytes", len(key))
	}
	cfg.EncryptionKey = key

	if err := ValidateThresholds(cfg.DefaultHotThreshold, cfg.DefaultWarmThreshold); err != nil {
		return nil, fmt.Errorf("invalid default thresholds: %w", err)
	}

	log.Info().
		Str("port", cfg.HTTPPort).
		Dur("token_exp", cfg.TokenExpiration).
		Str("model", cfg.OpenAIModel).
		Bool("redis", cfg.RedisURL != "").
		Msg("Loaded config")

	return cfg, nil
}

// ValidateThresholds checks 0 <= warm < hot <= 100.
func ValidateThresholds(hot, warm int) error {
	if warm < 0 || hot > 100 || warm >= hot {
		return fmt.Errorf("thresholds must satisfy 0 <= warm < hot <= 100 (hot=%d, warm=%d)", hot, warm)
	}
	return nil
}

// SetupLogger configures the global zerolog logger.
func SetupLogger(level, format string) {
	SetupLoggerTo(os.Stderr, level, format)
}

// SetupLoggerTo is SetupLogger with an explicit writer.
func SetupLoggerTo(w io.Writer, level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(format, "json") {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Debug().Str("key", key).Msg("Env variable not set, using default")
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Int("default", fallback).Msg("Invalid integer, using default")
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Float64("default", fallback).Msg("Invalid number, using default")
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Dur("default", fallback).Msg("Invalid duration, using default")
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
