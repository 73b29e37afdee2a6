package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackbot/internal/shared"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Routes are the bot server's optional endpoints. Nil handlers are not mounted.
type Routes struct {
	// Webhook receives inbound chat messages on POST /chat/messages.
	Webhook http.Handler
	// Metrics is served on GET /metrics.
	Metrics http.Handler
	// Health is checked on GET /healthz; nil always reports ok.
	Health func(ctx context.Context) error
}

// NewRouter creates a chi router with request ids, recovery and request logging, and mounts each
// [Handler] on its routes.
func NewRouter(logger *log.Logger, handlers ...Handler) chi.Router {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger(shared.WithLogger(logger, "component", "http")))

	for _, h := range handlers {
		for _, route := range h.Routes() {
			r.Handle(route, h)
		}
	}

	return r
}

// NewBotRouter creates the router for a running bot: health, metrics and the chat webhook.
func NewBotRouter(logger *log.Logger, routes Routes, handlers ...Handler) chi.Router {
	r := NewRouter(logger, handlers...)

	r.Get("/healthz", healthHandler(routes.Health))
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}
	if routes.Webhook != nil {
		r.Method(http.MethodPost, "/chat/messages", routes.Webhook)
	}

	return r
}

// RequestLogger logs each request at debug level with its status and duration.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		body := map[string]string{"status": status}

		if check != nil {
			if err := check(r.Context()); err != nil {
				code = http.StatusServiceUnavailable
				body = map[string]string{"status": "unavailable", "error": err.Error()}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}
}
