package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration for the receptionist core.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	SpaTimezone        string
	BusinessHoursStart string
	BusinessHoursEnd   string
	SlotStepMinutes    int

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	UseMemoryQueue       bool
	WorkerCount          int
	ConversationQueueURL string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	ConversationJobsTable string

	LLMProvider         string // "bedrock" (default) or "gemini"
	BedrockModelID      string
	LLMFallbackEnabled  bool
	LLMFallbackProvider string
	GeminiAPIKey        string
	GeminiModelID       string
	LLMTimeout          time.Duration
	LLMRetryMaxAttempts int
	LLMRetryBaseDelay   time.Duration

	CalendarProvider  string // "google" is the only implementation shipped
	GoogleCalendarID  string
	GoogleCredentials string // inline service-account credentials JSON

	SMSProvider          string
	TelnyxAPIKey         string
	TelnyxMessagingID    string
	TelnyxWebhookSecret  string
	TelnyxFromNumber     string
	EmailProvider        string // "ses" (default) or "sendgrid"
	SendGridAPIKey       string
	SendGridFromEmail    string
	SendGridFromName     string
	SESFromEmail         string
	SESFromName          string

	VoiceVADThreshold      float64
	VoicePrefixPaddingMS   int
	VoiceSilenceDurationMS int
	VoiceDisconnectGraceMS int

	RealtimeProviderURL    string
	RealtimeProviderAPIKey string

	PublicBaseURL string
}

// Validate reports configuration problems without panicking, mirroring a
// startup diagnostic rather than a hard failure.
func (c *Config) Validate() []string {
	var issues []string

	if c.DatabaseURL == "" {
		issues = append(issues, "DATABASE_URL is empty — the conversation store cannot connect")
	}
	if c.LLMProvider == "bedrock" && c.BedrockModelID == "" {
		issues = append(issues, "BEDROCK_MODEL_ID is empty — the LLM port cannot be constructed")
	}
	if c.LLMProvider == "gemini" && c.GeminiAPIKey == "" {
		issues = append(issues, "GEMINI_API_KEY is empty — the LLM port cannot be constructed")
	}
	if c.LLMFallbackEnabled && c.LLMFallbackProvider == "gemini" && c.GeminiAPIKey == "" {
		issues = append(issues, "LLM_FALLBACK_ENABLED=true but GEMINI_API_KEY is empty")
	}

	telnyxOK := c.TelnyxAPIKey != "" && c.TelnyxMessagingID != ""
	if !telnyxOK {
		issues = append(issues, "no SMS provider configured: need TELNYX_API_KEY and TELNYX_MESSAGING_PROFILE_ID")
	}
	if telnyxOK && c.TelnyxFromNumber == "" {
		issues = append(issues, "TELNYX_FROM_NUMBER is empty — outbound SMS will fail")
	}

	if c.EmailProvider == "sendgrid" && c.SendGridAPIKey == "" {
		issues = append(issues, "EMAIL_PROVIDER=sendgrid but SENDGRID_API_KEY is empty")
	}
	if c.EmailProvider == "ses" && c.SESFromEmail == "" {
		issues = append(issues, "EMAIL_PROVIDER=ses but SES_FROM_EMAIL is empty")
	}

	return issues
}

// Load reads configuration from environment variables. Callers are expected
// to have already loaded a .env file (godotenv.Load, ignored if absent)
// before calling Load.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SpaTimezone:        getEnv("SPA_TIMEZONE", "America/New_York"),
		BusinessHoursStart: getEnv("BUSINESS_HOURS_START", "09:00"),
		BusinessHoursEnd:   getEnv("BUSINESS_HOURS_END", "19:00"),
		SlotStepMinutes:    getEnvAsInt("SLOT_STEP_MINUTES", 30),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		UseMemoryQueue:       getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),
		ConversationQueueURL: getEnv("CONVERSATION_QUEUE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ConversationJobsTable: getEnv("CONVERSATION_JOBS_TABLE", "conversation_jobs"),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "bedrock"))),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		LLMFallbackEnabled:  getEnvAsBool("LLM_FALLBACK_ENABLED", false),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", "gemini"))),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		LLMRetryMaxAttempts: getEnvAsInt("LLM_RETRY_MAX_ATTEMPTS", 3),
		LLMRetryBaseDelay:   getEnvAsDuration("LLM_RETRY_BASE_DELAY", 1*time.Second),

		CalendarProvider:  strings.ToLower(strings.TrimSpace(getEnv("CALENDAR_PROVIDER", "google"))),
		GoogleCalendarID:  getEnv("GOOGLE_CALENDAR_ID", ""),
		GoogleCredentials: getEnv("GOOGLE_CALENDAR_CREDENTIALS", ""),

		SMSProvider:         strings.ToLower(strings.TrimSpace(getEnv("SMS_PROVIDER", "telnyx"))),
		TelnyxAPIKey:        getEnv("TELNYX_API_KEY", ""),
		TelnyxMessagingID:   getEnv("TELNYX_MESSAGING_PROFILE_ID", ""),
		TelnyxWebhookSecret: getEnv("TELNYX_WEBHOOK_SECRET", ""),
		TelnyxFromNumber:    getEnv("TELNYX_FROM_NUMBER", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "ses"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Medspa Receptionist"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Medspa Receptionist"),

		VoiceVADThreshold:      getEnvAsFloat("VOICE_VAD_THRESHOLD", 0.6),
		VoicePrefixPaddingMS:   getEnvAsInt("VOICE_VAD_PREFIX_PADDING_MS", 300),
		VoiceSilenceDurationMS: getEnvAsInt("VOICE_VAD_SILENCE_MS", 600),
		VoiceDisconnectGraceMS: getEnvAsInt("VOICE_DISCONNECT_GRACE_MS", 3000),

		RealtimeProviderURL:    getEnv("REALTIME_PROVIDER_URL", ""),
		RealtimeProviderAPIKey: getEnv("REALTIME_PROVIDER_API_KEY", ""),

		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
