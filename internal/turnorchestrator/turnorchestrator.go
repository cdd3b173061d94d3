// Package turnorchestrator implements the Turn Orchestrator for text
// channels (SMS/email): one assistant response per inbound message, per
// spec.md §4.4.
package turnorchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/auroraspa/receptionist/internal/booking"
	"github.com/auroraspa/receptionist/internal/llmport"
	"github.com/auroraspa/receptionist/internal/services"
	"github.com/auroraspa/receptionist/internal/slotselect"
	"github.com/auroraspa/receptionist/internal/spaclock"
	"github.com/auroraspa/receptionist/internal/store"
	"github.com/auroraspa/receptionist/pkg/logging"
)

const maxToolLoopDepth = 3

const preemptiveCallID = "preemptive_call"

var turnTracer = otel.Tracer("receptionist.turnorchestrator")

var toolExecutionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "receptionist",
		Subsystem: "turn",
		Name:      "tool_executions_total",
		Help:      "Tool executions dispatched by the turn orchestrator, by tool name and outcome.",
	},
	[]string{"tool", "outcome"},
)

func init() {
	prometheus.MustRegister(toolExecutionsTotal)
}

// RegisterMetrics registers turn-orchestrator metrics with a custom
// registry, mirroring the teacher's per-package opt-in pattern.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil || reg == prometheus.DefaultRegisterer {
		return
	}
	reg.MustRegister(toolExecutionsTotal)
}

// conversationStore narrows store.PGStore to the calls this package needs.
type conversationStore interface {
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	GetMessages(ctx context.Context, id string) ([]store.Message, error)
	AppendMessage(ctx context.Context, msg store.Message) error
	MutateMetadata(ctx context.Context, id string, fn func(store.Metadata) store.Metadata) error
	TouchActivity(ctx context.Context, id string, at time.Time) error
}

var _ conversationStore = (*store.PGStore)(nil)

// Orchestrator handles exactly one assistant response per inbound message.
type Orchestrator struct {
	store   conversationStore
	llm     llmport.Client
	booking *booking.Orchestrator
	clock   *spaclock.Clock
	logger  *logging.Logger
}

// New constructs a turn Orchestrator. It panics on a nil store, llm client,
// or booking orchestrator, matching the teacher's constructor discipline.
func New(store conversationStore, llm llmport.Client, bookingOrch *booking.Orchestrator, clock *spaclock.Clock, logger *logging.Logger) *Orchestrator {
	if store == nil {
		panic("turnorchestrator: store cannot be nil")
	}
	if llm == nil {
		panic("turnorchestrator: llm client cannot be nil")
	}
	if bookingOrch == nil {
		panic("turnorchestrator: booking orchestrator cannot be nil")
	}
	if clock == nil {
		clock = spaclock.New("UTC")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{store: store, llm: llm, booking: bookingOrch, clock: clock, logger: logger}
}

// HandleInboundMessage runs one full turn for conversationID and returns
// the assistant's reply text. The caller (the channel's webhook handler)
// is expected to have already persisted the inbound message with
// inboundMessageID before invoking this, so it is present in GetMessages'
// history.
func (o *Orchestrator) HandleInboundMessage(ctx context.Context, conversationID, inboundMessageID string, channel store.Channel, inboundContent string, now time.Time) (string, error) {
	ctx, span := turnTracer.Start(ctx, "turnorchestrator.turn")
	defer span.End()

	// 1. Conversation loading.
	conv, err := o.store.GetConversation(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("turnorchestrator: failed to load conversation: %w", err)
	}
	history, err := o.store.GetMessages(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("turnorchestrator: failed to load message history: %w", err)
	}

	meta := conv.Metadata

	// Attempt to capture a slot selection from this inbound message against
	// any fresh offer before anything else runs.
	if updated, ok := slotselect.CaptureSelection(meta, inboundMessageID, inboundContent, now); ok {
		meta = updated
	}

	var syntheticToolCall *llmport.ToolCall
	var syntheticToolResult string

	// 2. Preemptive availability check.
	if HasBookingIntent(inboundContent) && (meta.PendingSlotOffers == nil || meta.PendingSlotOffers.Expired(now)) {
		if serviceType, date, ok := ExtractServiceAndDate(inboundContent, o.clock, now); ok {
			outcome, updatedMeta := o.booking.CheckAvailability(ctx, meta, preemptiveCallID, booking.CheckAvailabilityArgs{
				ServiceType: serviceType,
				Date:        date,
			}, now)
			meta = updatedMeta
			meta.PendingBookingIntent = true
			meta.PendingBookingService = serviceType

			payload, _ := json.Marshal(outcome.CheckAvailability)
			syntheticToolCall = &llmport.ToolCall{ID: preemptiveCallID, Name: "check_availability", Arguments: mustArgsJSON(serviceType, date)}
			syntheticToolResult = string(payload)
			toolExecutionsTotal.WithLabelValues("check_availability", "ok").Inc()
		}
	}

	// 3. Deterministic booking shortcut.
	if meta.PendingSlotOffers != nil && meta.PendingSlotOffers.SelectedSlot != nil && meta.CustomerName != "" && meta.CustomerPhone != "" {
		slot := *meta.PendingSlotOffers.SelectedSlot
		serviceType := meta.PendingSlotOffers.ServiceType

		outcome, updatedMeta := o.booking.BookAppointment(ctx, meta, booking.BookAppointmentArgs{
			CustomerName:  meta.CustomerName,
			CustomerPhone: meta.CustomerPhone,
			CustomerEmail: meta.CustomerEmail,
			StartTime:     o.clock.FormatISO(slot.Start),
			ServiceType:   serviceType,
		}, now)

		if outcome.Success {
			svc, _ := services.Lookup(serviceType)
			reply := bookingConfirmationText(svc.DisplayName, o.clock.FormatHumanTime(slot.Start))
			if err := o.persistTurn(ctx, conversationID, updatedMeta, reply, now); err != nil {
				return "", err
			}
			toolExecutionsTotal.WithLabelValues("book_appointment", "ok").Inc()
			return reply, nil
		}
		// Fall through to the LLM if the deterministic shortcut's booking
		// attempt failed; meta may now carry adjustment context.
		meta = updatedMeta
	}

	// 4. Single LLM call (plus bounded tool-execution loop).
	messages := []llmport.ChatMessage{}
	for _, m := range history {
		role := llmport.ChatRoleUser
		if m.Direction == store.DirectionOutbound {
			role = llmport.ChatRoleAssistant
		}
		messages = append(messages, llmport.ChatMessage{Role: role, Content: m.Content})
	}

	if syntheticToolCall != nil {
		messages = append(messages,
			llmport.ChatMessage{Role: llmport.ChatRoleAssistant, ToolCalls: []llmport.ToolCall{*syntheticToolCall}},
			llmport.ChatMessage{Role: llmport.ChatRoleTool, ToolCallID: syntheticToolCall.ID, Content: syntheticToolResult},
		)
	}

	req := llmport.LLMRequest{
		System:    []string{BuildSystemPrompt(channel)},
		Messages:  messages,
		Tools:     ToolDeclarations(),
		MaxTokens: MaxOutputTokens(channel),
	}

	var finalText string
	for depth := 0; depth <= maxToolLoopDepth; depth++ {
		resp, err := o.llm.Complete(ctx, req)
		if err != nil {
			return "", fmt.Errorf("turnorchestrator: llm completion failed: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			finalText = resp.Text
			break
		}

		if depth == maxToolLoopDepth {
			finalText = "I'm having trouble completing that request right now — could you try again in a moment?"
			o.logger.Warn("turn orchestrator exceeded tool loop depth", "conversation_id", conversationID)
			break
		}

		req.Messages = append(req.Messages, llmport.ChatMessage{Role: llmport.ChatRoleAssistant, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			result, updatedMeta := o.dispatchTool(ctx, meta, call, now)
			meta = updatedMeta
			payload, _ := json.Marshal(result)
			req.Messages = append(req.Messages, llmport.ChatMessage{Role: llmport.ChatRoleTool, ToolCallID: call.ID, Content: string(payload)})
		}
	}

	// 6. Persistence.
	if err := o.persistTurn(ctx, conversationID, meta, finalText, now); err != nil {
		return "", err
	}
	return finalText, nil
}

func (o *Orchestrator) dispatchTool(ctx context.Context, meta store.Metadata, call llmport.ToolCall, now time.Time) (booking.Outcome, store.Metadata) {
	switch call.Name {
	case "check_availability":
		var args struct {
			Date        string `json:"date"`
			ServiceType string `json:"service_type"`
			Limit       int    `json:"limit"`
		}
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			toolExecutionsTotal.WithLabelValues(call.Name, "invalid_arguments").Inc()
			return booking.Outcome{Success: false, Error: err.Error()}, meta
		}
		outcome, updated := o.booking.CheckAvailability(ctx, meta, call.ID, booking.CheckAvailabilityArgs{
			Date: args.Date, ServiceType: args.ServiceType, Limit: args.Limit,
		}, now)
		toolExecutionsTotal.WithLabelValues(call.Name, outcomeLabel(outcome)).Inc()
		return outcome, updated

	case "book_appointment":
		var args struct {
			CustomerName  string `json:"customer_name"`
			CustomerPhone string `json:"customer_phone"`
			CustomerEmail string `json:"customer_email"`
			StartTime     string `json:"start_time"`
			ServiceType   string `json:"service_type"`
			Provider      string `json:"provider"`
			Notes         string `json:"notes"`
		}
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			toolExecutionsTotal.WithLabelValues(call.Name, "invalid_arguments").Inc()
			return booking.Outcome{Success: false, Error: err.Error()}, meta
		}
		meta = meta.Clone()
		meta.CustomerName = args.CustomerName
		meta.CustomerPhone = args.CustomerPhone
		if args.CustomerEmail != "" {
			meta.CustomerEmail = args.CustomerEmail
		}
		outcome, updated := o.booking.BookAppointment(ctx, meta, booking.BookAppointmentArgs{
			CustomerName: args.CustomerName, CustomerPhone: args.CustomerPhone, CustomerEmail: args.CustomerEmail,
			StartTime: args.StartTime, ServiceType: args.ServiceType, Provider: args.Provider, Notes: args.Notes,
		}, now)
		toolExecutionsTotal.WithLabelValues(call.Name, outcomeLabel(outcome)).Inc()
		return outcome, updated

	case "reschedule_appointment":
		var args struct {
			AppointmentID string `json:"appointment_id"`
			NewStartTime  string `json:"new_start_time"`
			ServiceType   string `json:"service_type"`
			Provider      string `json:"provider"`
		}
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			toolExecutionsTotal.WithLabelValues(call.Name, "invalid_arguments").Inc()
			return booking.Outcome{Success: false, Error: err.Error()}, meta
		}
		outcome, updated := o.booking.RescheduleAppointment(ctx, meta, booking.RescheduleAppointmentArgs{
			AppointmentID: args.AppointmentID, NewStartTime: args.NewStartTime, ServiceType: args.ServiceType, Provider: args.Provider,
		}, now)
		toolExecutionsTotal.WithLabelValues(call.Name, outcomeLabel(outcome)).Inc()
		return outcome, updated

	case "cancel_appointment":
		var args struct {
			AppointmentID      string `json:"appointment_id"`
			CancellationReason string `json:"cancellation_reason"`
		}
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			toolExecutionsTotal.WithLabelValues(call.Name, "invalid_arguments").Inc()
			return booking.Outcome{Success: false, Error: err.Error()}, meta
		}
		outcome, updated := o.booking.CancelAppointment(ctx, meta, booking.CancelAppointmentArgs{
			AppointmentID: args.AppointmentID, CancellationReason: args.CancellationReason,
		})
		toolExecutionsTotal.WithLabelValues(call.Name, outcomeLabel(outcome)).Inc()
		return outcome, updated

	default:
		toolExecutionsTotal.WithLabelValues(call.Name, "unknown_tool").Inc()
		return booking.Outcome{Success: false, Error: fmt.Sprintf("unknown tool %q", call.Name)}, meta
	}
}

func outcomeLabel(o booking.Outcome) string {
	if o.Success {
		return "ok"
	}
	if o.Code != "" {
		return o.Code
	}
	return "error"
}

func (o *Orchestrator) persistTurn(ctx context.Context, conversationID string, meta store.Metadata, replyText string, now time.Time) error {
	if err := o.store.MutateMetadata(ctx, conversationID, func(store.Metadata) store.Metadata {
		return meta
	}); err != nil {
		return fmt.Errorf("turnorchestrator: failed to persist metadata: %w", err)
	}

	if err := o.store.AppendMessage(ctx, store.Message{
		ID:             spaclock.NewID(),
		ConversationID: conversationID,
		Direction:      store.DirectionOutbound,
		Content:        replyText,
		SentAt:         now,
		Processed:      true,
	}); err != nil {
		return fmt.Errorf("turnorchestrator: failed to append outbound message: %w", err)
	}

	if err := o.store.TouchActivity(ctx, conversationID, now); err != nil {
		return fmt.Errorf("turnorchestrator: failed to touch activity: %w", err)
	}
	return nil
}

func mustArgsJSON(serviceType, date string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"service_type": serviceType, "date": date})
	return raw
}
