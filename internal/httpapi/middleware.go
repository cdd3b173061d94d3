package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/auroraspa/receptionist/pkg/logging"
)

// requestLogger emits structured start/completion logs for every request,
// in the teacher's request-logging idiom.
func requestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			logger.Info("request started", "method", r.Method, "path", r.URL.Path, "request_id", reqID)
			next.ServeHTTP(w, r)
			logger.Info("request completed", "method", r.Method, "path", r.URL.Path, "request_id", reqID,
				"duration_ms", time.Since(start).Milliseconds())
		})
	}
}
