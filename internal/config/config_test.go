package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.LLMProvider != "bedrock" {
		t.Fatalf("expected default llm provider bedrock, got %q", cfg.LLMProvider)
	}
	if cfg.SpaTimezone != "America/New_York" {
		t.Fatalf("expected default timezone America/New_York, got %q", cfg.SpaTimezone)
	}
	if cfg.SlotStepMinutes != 30 {
		t.Fatalf("expected default slot step 30, got %d", cfg.SlotStepMinutes)
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("LLM_FALLBACK_ENABLED", "true")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Fatalf("expected overridden port 9090, got %q", cfg.Port)
	}
	if cfg.LLMProvider != "gemini" {
		t.Fatalf("expected overridden llm provider gemini, got %q", cfg.LLMProvider)
	}
	if !cfg.LLMFallbackEnabled {
		t.Fatalf("expected fallback enabled true")
	}
}

func TestValidateReportsMissingProviders(t *testing.T) {
	cfg := &Config{LLMProvider: "bedrock", EmailProvider: "ses"}

	issues := cfg.Validate()
	if len(issues) == 0 {
		t.Fatalf("expected validation issues for empty config")
	}
}

func TestValidateEmptyWhenSatisfied(t *testing.T) {
	cfg := &Config{
		DatabaseURL:       "postgres://localhost/db",
		LLMProvider:       "bedrock",
		BedrockModelID:    "anthropic.claude-3",
		TelnyxAPIKey:      "key",
		TelnyxMessagingID: "profile",
		TelnyxFromNumber:  "+15555550100",
		EmailProvider:     "ses",
		SESFromEmail:      "hello@example.com",
	}

	if issues := cfg.Validate(); len(issues) != 0 {
		t.Fatalf("expected no validation issues, got %v", issues)
	}
}
