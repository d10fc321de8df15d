package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/callgear-sync/cg-webhook/internal/dlq"
	"github.com/callgear-sync/cg-webhook/internal/logging"
	"github.com/callgear-sync/cg-webhook/internal/metrics"
	"github.com/callgear-sync/cg-webhook/internal/models"
	"github.com/callgear-sync/cg-webhook/internal/normalizer"
	"github.com/callgear-sync/cg-webhook/internal/repository"
)

// WebhookService runs one notification through normalization and storage.
type WebhookService struct {
	normalizer *normalizer.Normalizer
	writer     repository.Writer
	dlq        dlq.Writer
	logger     *logging.Logger
}

func NewWebhookService(n *normalizer.Normalizer, writer repository.Writer, dlqWriter dlq.Writer, logger *logging.Logger) *WebhookService {
	if dlqWriter == nil {
		dlqWriter = dlq.NoOp{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookService{
		normalizer: n,
		writer:     writer,
		dlq:        dlqWriter,
		logger:     logger,
	}
}

// Process normalizes body and writes it as one row. Errors wrap either
// normalizer.ErrMalformedPayload or repository.ErrStorageFailure.
func (s *WebhookService) Process(ctx context.Context, body []byte) (*models.NormalizedRecord, error) {
	metrics.PayloadBytesTotal.Add(float64(len(body)))

	start := time.Now()
	record, err := s.normalizer.Normalize(body)
	metrics.NormalizationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeMalformed).Inc()
		s.logger.WarnContext(ctx, "rejected malformed payload",
			logging.Bytes(len(body)),
			logging.Error(err),
		)
		s.capture(ctx, body, err, dlq.ReasonMalformedPayload)
		return nil, err
	}

	start = time.Now()
	err = s.writer.Insert(ctx, record)
	metrics.StorageDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, repository.ErrStorageFailure) {
			err = fmt.Errorf("%w: %w", repository.ErrStorageFailure, err)
		}
		metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeStorageError).Inc()
		s.logger.ErrorContext(ctx, "failed to store notification",
			logging.Notification(record),
			logging.Error(err),
		)
		s.capture(ctx, body, err, dlq.ReasonStorageFailure)
		return nil, err
	}

	metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeStored).Inc()
	s.logger.DebugContext(ctx, "stored notification", logging.Notification(record))
	return record, nil
}

// Ready reports whether the store is reachable.
func (s *WebhookService) Ready(ctx context.Context) error {
	return s.writer.Ping(ctx)
}

// capture never fails the request; a lost DLQ entry is only logged.
func (s *WebhookService) capture(ctx context.Context, body []byte, cause error, reason string) {
	if err := s.dlq.Write(ctx, body, cause, reason); err != nil {
		metrics.DLQWrites.WithLabelValues(reason, "error").Inc()
		s.logger.ErrorContext(ctx, "failed to capture rejected payload",
			logging.Reason(reason),
			logging.Error(err),
		)
		return
	}
	metrics.DLQWrites.WithLabelValues(reason, "ok").Inc()
}
