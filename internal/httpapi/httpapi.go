// Package httpapi exposes the inbound webhook surface and the voice
// WebSocket endpoint described in spec.md §6, wiring each request into the
// Turn Orchestrator or the Voice Session Bridge.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/auroraspa/receptionist/internal/booking"
	"github.com/auroraspa/receptionist/internal/idempotency"
	"github.com/auroraspa/receptionist/internal/scoring"
	"github.com/auroraspa/receptionist/internal/spaclock"
	"github.com/auroraspa/receptionist/internal/store"
	"github.com/auroraspa/receptionist/pkg/logging"
)

// turnRunner narrows turnorchestrator.Orchestrator to the one call the
// webhook handlers need.
type turnRunner interface {
	HandleInboundMessage(ctx context.Context, conversationID, inboundMessageID string, channel store.Channel, inboundContent string, now time.Time) (string, error)
}

// conversationStore is the union of every store call the package's
// handlers need: the webhook handlers use the customer/conversation/message
// calls directly, and the voice handler hands the same value to
// voicebridge.NewSession, which requires the rest for session finalization.
type conversationStore interface {
	FindOrCreateCustomer(ctx context.Context, id, name, phone, email string, synthesized bool, now time.Time) (*store.Customer, error)
	EnsureConversation(ctx context.Context, id string, channel store.Channel, customerID string, now time.Time) (*store.Conversation, error)
	AppendMessage(ctx context.Context, msg store.Message) error
	MutateMetadata(ctx context.Context, id string, fn func(store.Metadata) store.Metadata) error
	UpdateStatus(ctx context.Context, conversationID string, status store.ConversationStatus, completedAt *time.Time) error
	RecordScoring(ctx context.Context, conversationID string, satisfaction int, sentiment, outcome, summary string) error
	GetMessages(ctx context.Context, conversationID string) ([]store.Message, error)
	SaveVoiceDetails(ctx context.Context, vd store.VoiceDetails) error
}

var _ conversationStore = (*store.PGStore)(nil)

// Config wires every dependency the router needs to construct handlers.
type Config struct {
	Logger      *logging.Logger
	Store       conversationStore
	Turn        turnRunner
	Clock       *spaclock.Clock
	Booking     *booking.Orchestrator
	Scorer      *scoring.Scorer
	Idempotency *idempotency.Cache

	// RealtimeProviderURL and RealtimeProviderHeader locate and authenticate
	// against the realtime voice provider the Voice Session Bridge dials
	// out to for each call.
	RealtimeProviderURL    string
	RealtimeProviderHeader http.Header
}

func (c *Config) logger() *logging.Logger {
	if c.Logger == nil {
		return logging.Default()
	}
	return c.Logger
}

func (c *Config) clock() *spaclock.Clock {
	if c.Clock == nil {
		return spaclock.New("UTC")
	}
	return c.Clock
}

func (c *Config) now() time.Time {
	return c.clock().Now()
}

func (c *Config) newID() string {
	return spaclock.NewID()
}

// idempotency returns the configured dedup cache, or a disabled cache
// (every check reports "not seen before") when none was configured.
func (c *Config) idempotency() *idempotency.Cache {
	if c.Idempotency == nil {
		return idempotency.New(nil)
	}
	return c.Idempotency
}
