package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New builds the chi router for the receptionist process: the SMS/email
// webhooks, the voice WebSocket endpoint, a health check, and the
// Prometheus metrics endpoint.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(cfg.logger()))

	r.Get("/healthz", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/webhooks", func(wh chi.Router) {
		wh.Post("/sms", smsWebhook(cfg))
		wh.Post("/email", emailWebhook(cfg))
	})

	r.Get("/voice/ws", voiceWebSocket(cfg))

	return r
}
