// Package scoring implements Conversation Scoring: a single structured
// JSON-object completion that classifies a finished conversation. See
// spec.md §4.6.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/auroraspa/receptionist/internal/llmport"
	"github.com/auroraspa/receptionist/internal/store"
	"github.com/auroraspa/receptionist/pkg/logging"
)

// Outcome codes, per spec §4.6.
const (
	OutcomeAppointmentScheduled   = "appointment_scheduled"
	OutcomeAppointmentRescheduled = "appointment_rescheduled"
	OutcomeAppointmentCancelled   = "appointment_cancelled"
	OutcomeInfoRequest            = "info_request"
	OutcomeEscalated              = "escalated"
	OutcomeAbandoned              = "abandoned"
	OutcomeUnresolved             = "unresolved"
)

var validOutcomes = map[string]bool{
	OutcomeAppointmentScheduled:   true,
	OutcomeAppointmentRescheduled: true,
	OutcomeAppointmentCancelled:   true,
	OutcomeInfoRequest:            true,
	OutcomeEscalated:              true,
	OutcomeAbandoned:              true,
	OutcomeUnresolved:             true,
}

// Sentiment codes, per spec §4.6.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
	SentimentMixed    = "mixed"
)

var validSentiments = map[string]bool{
	SentimentPositive: true,
	SentimentNeutral:  true,
	SentimentNegative: true,
	SentimentMixed:    true,
}

// Result is the classification persisted onto the Conversation.
type Result struct {
	SatisfactionScore int    `json:"satisfaction_score"`
	Sentiment         string `json:"sentiment"`
	Outcome           string `json:"outcome"`
	Summary           string `json:"summary"`
}

// defaultResult is the safe fallback on any scoring failure, per spec §4.6.
func defaultResult() Result {
	return Result{SatisfactionScore: 5, Sentiment: SentimentNeutral, Outcome: OutcomeUnresolved, Summary: ""}
}

const systemPrompt = `You classify a completed customer-service conversation for a medical spa's virtual receptionist. Respond with a single JSON object and nothing else, with exactly these fields:
{"satisfaction_score": <integer 1-10>, "sentiment": "positive"|"neutral"|"negative"|"mixed", "outcome": "appointment_scheduled"|"appointment_rescheduled"|"appointment_cancelled"|"info_request"|"escalated"|"abandoned"|"unresolved", "summary": "<one sentence>"}`

// Scorer runs Conversation Scoring against an llmport.Client.
type Scorer struct {
	llm    llmport.Client
	logger *logging.Logger
}

// New constructs a Scorer. It panics on a nil llm client.
func New(llm llmport.Client, logger *logging.Logger) *Scorer {
	if llm == nil {
		panic("scoring: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scorer{llm: llm, logger: logger}
}

// Score classifies a finished conversation's message history. It never
// returns an error: any failure (LLM error, malformed JSON, out-of-range
// field) yields the safe default per spec §4.6, logged at warn level.
func (s *Scorer) Score(ctx context.Context, channel store.Channel, messages []store.Message) Result {
	req := llmport.LLMRequest{
		System:         []string{systemPrompt},
		Messages:       buildTranscript(channel, messages),
		ResponseFormat: llmport.ResponseFormatJSONObject,
		MaxTokens:      300,
	}

	resp, err := s.llm.Complete(ctx, req)
	if err != nil {
		s.logger.Warn("conversation scoring llm call failed", "error", err)
		return defaultResult()
	}

	result, err := parseResult(resp.Text)
	if err != nil {
		s.logger.Warn("conversation scoring returned unparseable result", "error", err, "raw", resp.Text)
		return defaultResult()
	}
	return result
}

func buildTranscript(channel store.Channel, messages []store.Message) []llmport.ChatMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Channel: %s\n\nTranscript:\n", channel)
	for _, m := range messages {
		speaker := "Customer"
		if m.Direction == store.DirectionOutbound {
			speaker = "Receptionist"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, m.Content)
	}
	return []llmport.ChatMessage{{Role: llmport.ChatRoleUser, Content: b.String()}}
}

func parseResult(raw string) (Result, error) {
	var parsed Result
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Result{}, fmt.Errorf("scoring: invalid JSON: %w", err)
	}
	if parsed.SatisfactionScore < 1 || parsed.SatisfactionScore > 10 {
		return Result{}, fmt.Errorf("scoring: satisfaction_score %d out of range", parsed.SatisfactionScore)
	}
	if !validSentiments[parsed.Sentiment] {
		return Result{}, fmt.Errorf("scoring: unknown sentiment %q", parsed.Sentiment)
	}
	if !validOutcomes[parsed.Outcome] {
		return Result{}, fmt.Errorf("scoring: unknown outcome %q", parsed.Outcome)
	}
	return parsed, nil
}
