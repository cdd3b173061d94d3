package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/auroraspa/receptionist/internal/store"
)

// emailInbound is the minimal inbound email webhook payload per spec.md §6.
type emailInbound struct {
	From              string `json:"from"`
	To                string `json:"to"`
	Subject           string `json:"subject"`
	BodyText          string `json:"body_text"`
	BodyHTML          string `json:"body_html"`
	ProviderMessageID string `json:"provider_message_id"`
}

// emailWebhook is the email analogue of smsWebhook, keyed by email with the
// synthesized-phone-placeholder rule from spec.md §3.
func emailWebhook(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in emailInbound
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		address := strings.TrimSpace(in.From)
		if address == "" || strings.TrimSpace(in.BodyText) == "" {
			http.Error(w, "from and body_text are required", http.StatusBadRequest)
			return
		}

		ctx := r.Context()

		if alreadySeen, err := cfg.idempotency().MarkProcessed(ctx, "email", in.ProviderMessageID); err != nil {
			cfg.logger().Warn("httpapi: idempotency check failed, processing anyway", "error", err)
		} else if alreadySeen {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"reply": ""})
			return
		}

		now := cfg.now()

		placeholderPhone := synthesizePhone(address)
		customer, err := cfg.Store.FindOrCreateCustomer(ctx, cfg.newID(), "", placeholderPhone, address, true, now)
		if err != nil {
			cfg.logger().Error("httpapi: failed to resolve email customer", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		conversationID := emailConversationID(address)
		if _, err := cfg.Store.EnsureConversation(ctx, conversationID, store.ChannelEmail, customer.ID, now); err != nil {
			cfg.logger().Error("httpapi: failed to ensure email conversation", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		content := in.Subject + "\n\n" + in.BodyText
		messageID := cfg.newID()
		if err := cfg.Store.AppendMessage(ctx, store.Message{
			ID:             messageID,
			ConversationID: conversationID,
			Direction:      store.DirectionInbound,
			Content:        content,
			SentAt:         now,
			Processed:      false,
		}); err != nil {
			cfg.logger().Error("httpapi: failed to append inbound email", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		reply, err := cfg.Turn.HandleInboundMessage(ctx, conversationID, messageID, store.ChannelEmail, content, now)
		if err != nil {
			cfg.logger().Error("httpapi: turn failed for email", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"reply": reply})
	}
}
