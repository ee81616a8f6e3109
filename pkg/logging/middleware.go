package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Middleware logs one line per request after the response has been written.
// Probe endpoints (/health, /ready, /metrics) are logged at debug level.
func Middleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				event := logger.Info()
				switch r.URL.Path {
				case "/health", "/ready", "/metrics":
					event = logger.Debug()
				}
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				event.
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Str("cache", ww.Header().Get("X-Cache")).
					Str("request_id", middleware.GetReqID(r.Context())).
					Dur("duration", time.Since(start)).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
