package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/auroraspa/receptionist/internal/store"
)

// smsInbound is the minimal inbound SMS webhook payload per spec.md §6.
type smsInbound struct {
	From            string `json:"from"`
	To              string `json:"to"`
	Body            string `json:"body"`
	ProviderMessageID string `json:"provider_message_id"`
}

// smsWebhook resolves the customer by phone, finds or creates an active SMS
// conversation, appends the inbound message, runs one turn, and returns the
// outbound text as the webhook response.
func smsWebhook(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in smsInbound
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		phone := strings.TrimSpace(in.From)
		if phone == "" || strings.TrimSpace(in.Body) == "" {
			http.Error(w, "from and body are required", http.StatusBadRequest)
			return
		}

		ctx := r.Context()

		if alreadySeen, err := cfg.idempotency().MarkProcessed(ctx, "sms", in.ProviderMessageID); err != nil {
			cfg.logger().Warn("httpapi: idempotency check failed, processing anyway", "error", err)
		} else if alreadySeen {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"reply": ""})
			return
		}

		now := cfg.now()

		customer, err := cfg.Store.FindOrCreateCustomer(ctx, cfg.newID(), "", phone, "", false, now)
		if err != nil {
			cfg.logger().Error("httpapi: failed to resolve sms customer", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		conversationID := smsConversationID(phone)
		if _, err := cfg.Store.EnsureConversation(ctx, conversationID, store.ChannelSMS, customer.ID, now); err != nil {
			cfg.logger().Error("httpapi: failed to ensure sms conversation", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		messageID := cfg.newID()
		if err := cfg.Store.AppendMessage(ctx, store.Message{
			ID:             messageID,
			ConversationID: conversationID,
			Direction:      store.DirectionInbound,
			Content:        in.Body,
			SentAt:         now,
			Processed:      false,
		}); err != nil {
			cfg.logger().Error("httpapi: failed to append inbound sms", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		reply, err := cfg.Turn.HandleInboundMessage(ctx, conversationID, messageID, store.ChannelSMS, in.Body, now)
		if err != nil {
			cfg.logger().Error("httpapi: turn failed for sms", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"reply": reply})
	}
}
