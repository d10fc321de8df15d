package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/callgear-sync/cg-webhook/internal/httputil"
	"github.com/callgear-sync/cg-webhook/internal/logging"
	"github.com/callgear-sync/cg-webhook/internal/metrics"
	"github.com/callgear-sync/cg-webhook/internal/models"
	"github.com/callgear-sync/cg-webhook/internal/normalizer"
	"github.com/callgear-sync/cg-webhook/internal/ratelimit"
	"github.com/callgear-sync/cg-webhook/internal/repository"
)

// WebhookProcessor is the part of service.WebhookService the handler needs.
type WebhookProcessor interface {
	Process(ctx context.Context, body []byte) (*models.NormalizedRecord, error)
	Ready(ctx context.Context) error
}

type Options struct {
	Version      string
	MaxBodyBytes int64
	RateLimiter  ratelimit.RateLimiter
	Logger       *logging.Logger
}

type WebhookHandler struct {
	service      WebhookProcessor
	limiter      ratelimit.RateLimiter
	maxBodyBytes int64
	version      string
	logger       *logging.Logger
}

func NewWebhookHandler(service WebhookProcessor, opts Options) *WebhookHandler {
	h := &WebhookHandler{
		service:      service,
		limiter:      opts.RateLimiter,
		maxBodyBytes: opts.MaxBodyBytes,
		version:      opts.Version,
		logger:       opts.Logger,
	}
	if h.limiter == nil {
		h.limiter = &ratelimit.NoOpRateLimiter{}
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = 1 << 20
	}
	if h.logger == nil {
		h.logger = logging.Default()
	}
	return h
}

// HandleWebhook accepts one notification. Invalid JSON is a 400, a failed insert a 500.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx := r.Context()
	clientIP := httputil.GetClientIP(r)

	allowed, err := h.limiter.Allow(ctx, clientIP)
	if err != nil {
		// Fail open: the limiter is protection, not a dependency.
		h.logger.WarnContext(ctx, "rate limiter unavailable", logging.IP(clientIP), logging.Error(err))
	} else if !allowed {
		metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeRateLimited).Inc()
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	defer r.Body.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeTooLarge).Inc()
			httputil.WriteError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	start := time.Now()
	record, err := h.service.Process(ctx, body)
	switch {
	case errors.Is(err, normalizer.ErrMalformedPayload):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		if !errors.Is(err, repository.ErrStorageFailure) {
			h.logger.ErrorContext(ctx, "unexpected processing error", logging.Error(err))
		}
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.InfoContext(ctx, "received notification",
		logging.IP(clientIP),
		logging.Notification(record),
		logging.Bytes(len(body)),
		logging.Duration(time.Since(start).Milliseconds()),
	)

	httputil.WriteJSON(w, http.StatusOK, models.WebhookResponse{Status: "success"})
}

// Root is the version probe.
func (h *WebhookHandler) Root(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, models.VersionResponse{
		Message: fmt.Sprintf("Webhook, V%s", h.version),
	})
}

func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.version,
	})
}

// Ready pings the store.
func (h *WebhookHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ready(ctx); err != nil {
		h.logger.WarnContext(ctx, "readiness check failed", logging.Error(err))
		httputil.WriteError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
