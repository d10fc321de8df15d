// Package dlq captures webhook bodies that could not be stored, so they can be
// inspected later. Nothing in the service replays them.
package dlq

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/callgear-sync/cg-webhook/internal/config"
	"github.com/callgear-sync/cg-webhook/internal/logging"
)

// Capture reasons.
const (
	ReasonMalformedPayload = "malformed_payload"
	ReasonStorageFailure   = "storage_failure"
)

// Payload encodings recorded in FailedPayload.Encoding.
const (
	EncodingText   = "text"
	EncodingBase64 = "base64"
)

// Writer records a rejected body together with the error that rejected it.
type Writer interface {
	Write(ctx context.Context, payload []byte, err error, reason string) error
	Close() error
}

// FailedPayload is one captured body. Valid UTF-8 bodies are kept as text,
// anything else is base64 encoded.
type FailedPayload struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Reason    string    `json:"reason"`
	Error     string    `json:"error"`
	Encoding  string    `json:"encoding"`
	Payload   string    `json:"payload"`
	Size      int       `json:"size"`
}

func newFailedPayload(payload []byte, err error, reason, requestID string) FailedPayload {
	failed := FailedPayload{
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
		Reason:    reason,
		Size:      len(payload),
	}
	if err != nil {
		failed.Error = err.Error()
	}
	if utf8.Valid(payload) {
		failed.Encoding = EncodingText
		failed.Payload = string(payload)
	} else {
		failed.Encoding = EncodingBase64
		failed.Payload = encodeBase64(payload)
	}
	return failed
}

// Bytes returns the original body.
func (f FailedPayload) Bytes() ([]byte, error) {
	if f.Encoding == EncodingBase64 {
		return decodeBase64(f.Payload)
	}
	return []byte(f.Payload), nil
}

// NoOp discards everything. It is used when capture is disabled.
type NoOp struct{}

func (NoOp) Write(ctx context.Context, payload []byte, err error, reason string) error {
	return nil
}

func (NoOp) Close() error {
	return nil
}

// New builds the Writer selected by cfg.
func New(ctx context.Context, cfg config.DLQConfig, logger *logging.Logger) (Writer, error) {
	if !cfg.Enabled {
		return NoOp{}, nil
	}

	switch cfg.Backend {
	case "file":
		return NewQueue(cfg.BasePath, logger)
	case "jetstream":
		return NewJetStreamQueue(ctx, cfg.NatsURL, logger)
	default:
		return nil, fmt.Errorf("unknown dlq backend %q", cfg.Backend)
	}
}
