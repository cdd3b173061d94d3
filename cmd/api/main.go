package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/auroraspa/receptionist/cmd/mainconfig"
	"github.com/auroraspa/receptionist/internal/booking"
	"github.com/auroraspa/receptionist/internal/calendarport"
	appconfig "github.com/auroraspa/receptionist/internal/config"
	"github.com/auroraspa/receptionist/internal/httpapi"
	"github.com/auroraspa/receptionist/internal/idempotency"
	"github.com/auroraspa/receptionist/internal/llmport"
	"github.com/auroraspa/receptionist/internal/messagingport"
	"github.com/auroraspa/receptionist/internal/scoring"
	"github.com/auroraspa/receptionist/internal/spaclock"
	"github.com/auroraspa/receptionist/internal/store"
	"github.com/auroraspa/receptionist/internal/turnorchestrator"
	"github.com/auroraspa/receptionist/migrations"
	"github.com/auroraspa/receptionist/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting receptionist API server", "env", cfg.Env, "port", cfg.Port)

	if issues := cfg.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			logger.Error("configuration problem", "issue", issue)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	runAutoMigrate(pool, logger)

	pgStore := store.NewPGStore(pool)
	clock := spaclock.New(cfg.SpaTimezone)

	cal, err := buildCalendarPort(ctx, cfg, clock)
	if err != nil {
		logger.Error("failed to construct calendar port", "error", err)
		os.Exit(1)
	}

	messaging, err := buildMessagingPort(ctx, cfg)
	if err != nil {
		logger.Error("failed to construct messaging port", "error", err)
		os.Exit(1)
	}

	llmClient, err := buildLLMClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to construct LLM client", "error", err)
		os.Exit(1)
	}

	bookingOrch := booking.NewOrchestrator(cal, clock).
		WithNotifier(booking.NewNotifier(messaging, cfg.TelnyxFromNumber, emailFromAddress(cfg), emailFromName(cfg), logger)).
		WithStore(pgStore)
	turnOrch := turnorchestrator.New(pgStore, llmClient, bookingOrch, clock, logger)
	scorer := scoring.New(llmClient, logger)

	httpCfg := &httpapi.Config{
		Logger:                 logger,
		Store:                  pgStore,
		Turn:                   turnOrch,
		Clock:                  clock,
		Booking:                bookingOrch,
		Scorer:                 scorer,
		Idempotency:            idempotency.New(buildRedisClient(ctx, cfg, logger)),
		RealtimeProviderURL:    cfg.RealtimeProviderURL,
		RealtimeProviderHeader: realtimeProviderHeader(cfg),
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpapi.New(httpCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// runAutoMigrate applies pending SQL migrations embedded in the migrations
// package at process startup, mirroring the teacher's boot-time migrate step.
func runAutoMigrate(pool *pgxpool.Pool, logger *logging.Logger) {
	db := stdlib.OpenDBFromPool(pool)

	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logger.Error("auto-migrate: failed to open migrations source", "error", err)
		return
	}
	dbDriver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		logger.Error("auto-migrate: failed to create db driver", "error", err)
		return
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		logger.Error("auto-migrate: failed to create migrator", "error", err)
		return
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("auto-migrate: migration failed", "error", err)
		return
	}
	logger.Info("auto-migrate: database migrations applied")
}

// buildCalendarPort selects the calendar-of-record integration. The fake
// in-memory calendar is used whenever CALENDAR_PROVIDER is not "google" or
// no Google credentials are set, so a bare `go run` against an empty .env
// still boots for local demos.
func buildCalendarPort(ctx context.Context, cfg *appconfig.Config, clock *spaclock.Clock) (calendarport.Port, error) {
	if cfg.CalendarProvider != "google" || cfg.GoogleCredentials == "" {
		return calendarport.NewFake(), nil
	}
	return calendarport.NewGoogleCalendar(ctx, cfg.GoogleCalendarID, cfg.GoogleCredentials, clock, cfg.BusinessHoursStart, cfg.BusinessHoursEnd, cfg.SlotStepMinutes)
}

// buildMessagingPort wires the SMS and email providers independently: each
// is selected by its own config knob since a deployment can mix, e.g.,
// Telnyx SMS with SendGrid email.
func buildMessagingPort(ctx context.Context, cfg *appconfig.Config) (messagingport.Port, error) {
	var sms messagingport.SMSSender
	if cfg.TelnyxAPIKey != "" && cfg.TelnyxMessagingID != "" {
		sms = messagingport.NewTelnyxSMS(cfg.TelnyxAPIKey, cfg.TelnyxMessagingID, cfg.TelnyxFromNumber)
	} else {
		sms = &messagingport.Fake{}
	}

	email, err := buildEmailSender(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return messagingport.Composite{SMSSender: sms, EmailSender: email}, nil
}

func buildEmailSender(ctx context.Context, cfg *appconfig.Config) (messagingport.EmailSender, error) {
	switch cfg.EmailProvider {
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return &messagingport.Fake{}, nil
		}
		return messagingport.NewSendGridEmail(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName), nil
	default:
		if cfg.SESFromEmail == "" {
			return &messagingport.Fake{}, nil
		}
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return messagingport.NewSESEmail(sesv2.NewFromConfig(awsCfg), cfg.SESFromEmail, cfg.SESFromName), nil
	}
}

func emailFromAddress(cfg *appconfig.Config) string {
	if cfg.EmailProvider == "sendgrid" {
		return cfg.SendGridFromEmail
	}
	return cfg.SESFromEmail
}

func emailFromName(cfg *appconfig.Config) string {
	if cfg.EmailProvider == "sendgrid" {
		return cfg.SendGridFromName
	}
	return cfg.SESFromName
}

// buildLLMClient wires the primary provider plus an optional fallback and
// retry wrapping, per spec §4.7's anti-hallucination posture: a transient
// provider failure should degrade to a secondary model, not a hung call.
func buildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (llmport.Client, error) {
	primary, err := buildSingleLLMClient(ctx, cfg, cfg.LLMProvider)
	if err != nil {
		return nil, err
	}

	client := primary
	if cfg.LLMFallbackEnabled {
		secondary, err := buildSingleLLMClient(ctx, cfg, cfg.LLMFallbackProvider)
		if err != nil {
			logger.Error("failed to construct fallback LLM client, continuing without it", "error", err)
		} else {
			client = llmport.NewFallbackClient(primary, secondary, logger)
		}
	}

	return llmport.NewRetryingClient(client, cfg.LLMRetryMaxAttempts, cfg.LLMRetryBaseDelay, logger), nil
}

// buildRedisClient returns a configured Redis client, or nil when the
// configured address is empty or the server does not answer a ping
// (REDIS_ADDR defaults to localhost:6379 when unset), matching the
// teacher's "Redis is optional" posture.
func buildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, idempotency dedup disabled", "error", err)
		return nil
	}
	return client
}

func realtimeProviderHeader(cfg *appconfig.Config) http.Header {
	header := http.Header{}
	if cfg.RealtimeProviderAPIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.RealtimeProviderAPIKey)
	}
	return header
}

func buildSingleLLMClient(ctx context.Context, cfg *appconfig.Config, provider string) (llmport.Client, error) {
	switch provider {
	case "gemini":
		return llmport.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	default:
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return llmport.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), nil
	}
}
