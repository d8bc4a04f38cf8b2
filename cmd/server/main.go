package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadpilot-backend/internal/api"
	"leadpilot-backend/internal/config"
	"leadpilot-backend/internal/crypto"
	"leadpilot-backend/internal/handlers"
	"leadpilot-backend/internal/integrations"
	"leadpilot-backend/internal/llm"
	"leadpilot-backend/internal/lock"
	"leadpilot-backend/internal/notify"
	"leadpilot-backend/internal/ratelimit"
	"leadpilot-backend/internal/services"
	"leadpilot-backend/internal/store/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	tenantCacheSize = 256
	rateLimitKeys   = 10000
	lockWait        = 10 * time.Second
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	log.Info().Msg("Starting LeadPilot backend...")

	// 2. Initialize Database Connection Pool
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to create database connection pool")
	}
	defer dbpool.Close()

	if err := dbpool.Ping(dbCtx); err != nil {
		log.Fatal().Err(err).Msg("Unable to ping database")
	}

	pgStore := postgres.NewPostgresStore(dbpool)
	if err := pgStore.EnsureSchema(dbCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}
	log.Info().Msg("Database connection pool established and schema applied.")

	box, err := crypto.NewSecretBox(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create secret box")
	}

	// 3. Initialize Services
	tenantService, err := services.NewTenantService(pgStore, box, tenantCacheSize, cfg.DefaultHotThreshold, cfg.DefaultWarmThreshold)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create tenant service")
	}
	if _, err := tenantService.EnsureDefaultTenant(dbCtx, cfg.DefaultTenantID, cfg.DefaultTenantName); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure default tenant")
	}

	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		Model:          cfg.OpenAIModel,
		EmbeddingModel: cfg.OpenAIEmbeddingModel,
		Temperature:    cfg.OpenAITemperature,
		MaxTokens:      cfg.OpenAIMaxTokens,
		Timeout:        cfg.LLMTimeout,
	})

	senders := []notify.Sender{notify.NewSlackSender(tenantService, "")}
	if cfg.SMTPHost != "" && cfg.SMTPUsername != "" {
		emailSender, err := notify.NewEmailSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure SMTP")
		}
		senders = append(senders, emailSender)
	} else {
		log.Warn().Msg("SMTP credentials not set, hot lead emails are disabled.")
	}
	dispatcher := notify.NewDispatcher(notify.RetryPolicy{
		MaxAttempts: cfg.NotifyMaxAttempts,
		BaseDelay:   cfg.NotifyBaseDelay,
	}, senders...)

	var (
		locker  lock.Locker
		limiter ratelimit.Limiter
	)
	if cfg.RedisURL != "" {
		redisClient, err := lock.NewRedisClient(dbCtx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.SessionLockTTL, lockWait)
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitPerMinute)
		log.Info().Msg("Using Redis for session locks and rate limiting.")
	} else {
		locker = lock.NewMemoryLocker(lockWait)
		memLimiter, err := ratelimit.NewMemoryLimiter(cfg.RateLimitPerMinute, rateLimitKeys)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create rate limiter")
		}
		limiter = memLimiter
	}

	agentService := services.NewAgentService(services.NewKBRetriever(pgStore), llmClient, llmClient, dispatcher, services.AgentOptions{})
	chatService := services.NewChatService(pgStore, tenantService, agentService, locker, services.ChatOptions{
		MaxMessagesPerSession: cfg.MaxMessagesPerSession,
		TurnTimeout:           2 * cfg.LLMTimeout,
	})
	authService := services.NewAuthService(pgStore, cfg)
	leadService := services.NewLeadService(pgStore)
	kbService := services.NewKBService(pgStore, llmClient, integrations.NewNotionImporter())

	// 4. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		AuthHandler:   handlers.NewAuthHandler(authService),
		ChatHandler:   handlers.NewChatHandlers(chatService),
		LeadHandler:   handlers.NewLeadHandler(leadService, tenantService),
		KBHandler:     handlers.NewKBHandler(kbService),
		TenantHandler: handlers.NewTenantHandler(tenantService, integrations.NewSlackVerifier("")),
		ChatLimiter:   limiter,
		Config:        cfg,
	})

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second, // a turn makes two model calls
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("port", cfg.HTTPPort).Msg("Could not listen")
		}
	}()

	<-stopChan
	log.Info().Msg("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server graceful shutdown failed")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Pending notifications abandoned at shutdown")
	}
	log.Info().Msg("Server shutdown complete.")
}
