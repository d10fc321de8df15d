package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/callgear-sync/cg-webhook/internal/handlers"
	"github.com/callgear-sync/cg-webhook/internal/logging"
	"github.com/callgear-sync/cg-webhook/internal/middleware"
)

// NewRouter registers the webhook, probe and metrics routes.
func NewRouter(h *handlers.WebhookHandler, logger *logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/", h.Root)
	r.Post("/webhook", h.HandleWebhook)

	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func accessLog(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.DebugContext(r.Context(), "http request",
				logging.Method(r.Method),
				logging.Path(r.URL.Path),
				logging.Status(status),
				logging.IP(r.RemoteAddr),
				logging.Duration(time.Since(start).Milliseconds()),
			)
		})
	}
}
