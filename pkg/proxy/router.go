package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/pattern-proxy/pkg/logging"
	"github.com/Sternrassler/pattern-proxy/pkg/metrics"
)

// readyTimeout bounds the store ping behind /ready.
const readyTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable. cache.Store implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter mounts the proxy endpoint and the operational endpoints.
// Methods other than GET on Path get chi's 405.
func NewRouter(h *Handler, ready Pinger, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.Middleware(logger))

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(ready))
	r.Handle("/metrics", metrics.Handler())
	r.Method(http.MethodGet, Path, h)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func readyHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "cache unavailable: %v", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}
