package turnorchestrator

import (
	"fmt"

	"github.com/auroraspa/receptionist/internal/llmport"
	"github.com/auroraspa/receptionist/internal/store"
)

const criticalRules = `CRITICAL RULES:
- NEVER state availability times without first calling check_availability.
- NEVER book an appointment without a user selection from a returned slot list.
- Stay in character; never identify as an AI model or name any underlying AI provider.`

// BuildSystemPrompt returns the channel-specialized system prompt. SMS is
// terse and token-capped; email adds a salutation/signature and a higher
// cap.
func BuildSystemPrompt(channel store.Channel) string {
	base := "You are the virtual receptionist for a medical spa. Help customers learn about services, check availability, and book, reschedule, or cancel appointments.\n\n" + criticalRules

	switch channel {
	case store.ChannelEmail:
		return base + "\n\nThis is an email conversation: open with a brief salutation, keep the body under roughly 1000 tokens, and close with a short signature from \"The Front Desk\"."
	default:
		return base + "\n\nThis is an SMS conversation: keep replies under roughly 500 tokens, terse, and free of markdown formatting."
	}
}

// MaxOutputTokens returns the channel's output token cap (spec §4.4).
func MaxOutputTokens(channel store.Channel) int {
	if channel == store.ChannelEmail {
		return 1000
	}
	return 500
}

// ToolDeclarations returns the four booking tool schemas, identical across
// channels per spec §4.5.
func ToolDeclarations() []llmport.ToolDeclaration {
	return []llmport.ToolDeclaration{
		{
			Name:        "check_availability",
			Description: "Look up open appointment slots for a service on a given date.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"date":         map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"service_type": map[string]any{"type": "string"},
					"limit":        map[string]any{"type": "integer"},
				},
				"required": []string{"date", "service_type"},
			},
		},
		{
			Name:        "book_appointment",
			Description: "Book an appointment. start_time must come from a previously offered slot.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"customer_name":  map[string]any{"type": "string"},
					"customer_phone": map[string]any{"type": "string"},
					"customer_email": map[string]any{"type": "string"},
					"start_time":     map[string]any{"type": "string"},
					"service_type":   map[string]any{"type": "string"},
					"provider":       map[string]any{"type": "string"},
					"notes":          map[string]any{"type": "string"},
				},
				"required": []string{"customer_name", "customer_phone", "start_time", "service_type"},
			},
		},
		{
			Name:        "reschedule_appointment",
			Description: "Move an existing appointment to a new time.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"appointment_id": map[string]any{"type": "string"},
					"new_start_time": map[string]any{"type": "string"},
					"service_type":   map[string]any{"type": "string"},
					"provider":       map[string]any{"type": "string"},
				},
				"required": []string{"appointment_id", "new_start_time"},
			},
		},
		{
			Name:        "cancel_appointment",
			Description: "Cancel an existing appointment.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"appointment_id":      map[string]any{"type": "string"},
					"cancellation_reason": map[string]any{"type": "string"},
				},
				"required": []string{"appointment_id"},
			},
		},
	}
}

// bookingConfirmationText builds the deterministic shortcut's confirmation
// message (step 3 of spec §4.4), constructed from a template with no LLM
// involvement.
func bookingConfirmationText(serviceDisplayName, humanStartTime string) string {
	return fmt.Sprintf("You're all set! Your %s appointment is confirmed for %s. We'll see you then.", serviceDisplayName, humanStartTime)
}
