package httpapi

import (
	"net/http"

	"github.com/auroraspa/receptionist/internal/store"
	"github.com/auroraspa/receptionist/internal/voicebridge"
)

const voiceGreeting = "Thanks for calling, how can I help you today?"

// voiceWebSocket upgrades the inbound call to a client WebSocket, dials the
// realtime provider, and runs the bidirectional relay loop for the
// duration of the call.
func voiceWebSocket(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := cfg.logger()

		client, err := voicebridge.UpgradeClient(w, r)
		if err != nil {
			logger.Error("httpapi: failed to upgrade voice client", "error", err)
			return
		}

		ctx := r.Context()
		provider, err := voicebridge.DialProvider(ctx, cfg.RealtimeProviderURL, cfg.RealtimeProviderHeader)
		if err != nil {
			logger.Error("httpapi: failed to dial realtime provider", "error", err)
			_ = client.Close()
			return
		}

		conversationID := "voice:" + cfg.newID()
		now := cfg.now()
		if _, err := cfg.Store.EnsureConversation(ctx, conversationID, store.ChannelVoice, "", now); err != nil {
			logger.Error("httpapi: failed to ensure voice conversation", "error", err)
			_ = client.Close()
			_ = provider.Close()
			return
		}

		session := voicebridge.NewSession(conversationID, cfg.Store, cfg.Booking, cfg.Scorer, cfg.clock(), logger, provider, client, store.Metadata{})
		if err := session.Start(ctx, voiceGreeting); err != nil {
			logger.Error("httpapi: failed to start voice session", "error", err)
			_ = client.Close()
			_ = provider.Close()
			return
		}

		voicebridge.Pump(ctx, session, conversationID, client, provider, logger, cfg.clock().Now)
	}
}
