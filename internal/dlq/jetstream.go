package dlq

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/callgear-sync/cg-webhook/internal/logging"
	"github.com/callgear-sync/cg-webhook/internal/middleware"
)

const (
	StreamName    = "CGWEBHOOK_DLQ"
	SubjectPrefix = "cgwebhook.dlq"
)

// StreamConfig is the stream rejected payloads are published to.
var StreamConfig = jetstream.StreamConfig{
	Name:      StreamName,
	Subjects:  []string{SubjectPrefix + ".>"},
	MaxAge:    7 * 24 * time.Hour,
	MaxBytes:  1024 * 1024 * 1024,
	Retention: jetstream.LimitsPolicy,
	Storage:   jetstream.FileStorage,
}

// Subject returns the subject a payload captured for reason is published on.
func Subject(reason string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, reason)
}

// JetStreamQueue publishes rejected payloads to NATS JetStream.
// Safe to share between several webhook instances.
type JetStreamQueue struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	stream  jetstream.Stream
	logger  *logging.Logger
	written uint64
}

// NewJetStreamQueue connects to natsURL and creates or updates the DLQ stream.
func NewJetStreamQueue(ctx context.Context, natsURL string, logger *logging.Logger) (*JetStreamQueue, error) {
	if logger == nil {
		logger = logging.Default()
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("cg-webhook-dlq"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, StreamConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	logger.Info("dlq stream ready", "stream", StreamName)

	return &JetStreamQueue{
		conn:   conn,
		js:     js,
		stream: stream,
		logger: logger,
	}, nil
}

func (q *JetStreamQueue) Write(ctx context.Context, payload []byte, err error, reason string) error {
	if q == nil {
		return nil
	}

	failed := newFailedPayload(payload, err, reason, middleware.RequestIDFrom(ctx))

	data, marshalErr := json.Marshal(failed)
	if marshalErr != nil {
		return fmt.Errorf("marshal dlq entry: %w", marshalErr)
	}

	if _, pubErr := q.js.Publish(ctx, Subject(reason), data); pubErr != nil {
		return fmt.Errorf("publish dlq entry: %w", pubErr)
	}

	atomic.AddUint64(&q.written, 1)
	q.logger.InfoContext(ctx, "published rejected payload",
		logging.Reason(reason),
		logging.Bytes(len(payload)),
	)

	return nil
}

// Stats reports stream state alongside the count published by this process.
func (q *JetStreamQueue) Stats(ctx context.Context) map[string]interface{} {
	if q == nil {
		return map[string]interface{}{
			"enabled": false,
			"backend": "jetstream",
		}
	}

	info, err := q.stream.Info(ctx)
	if err != nil {
		return map[string]interface{}{
			"enabled":       true,
			"backend":       "jetstream",
			"written_local": atomic.LoadUint64(&q.written),
			"error":         err.Error(),
		}
	}

	return map[string]interface{}{
		"enabled":        true,
		"backend":        "jetstream",
		"written_local":  atomic.LoadUint64(&q.written),
		"total_messages": info.State.Msgs,
		"total_bytes":    info.State.Bytes,
		"first_seq":      info.State.FirstSeq,
		"last_seq":       info.State.LastSeq,
	}
}

// List reads up to limit captured payloads from the start of the stream.
func (q *JetStreamQueue) List(ctx context.Context, limit int) ([]FailedPayload, error) {
	if q == nil {
		return nil, fmt.Errorf("dlq not enabled")
	}
	if limit <= 0 {
		limit = 100
	}

	consumer, err := q.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{SubjectPrefix + ".>"},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create list consumer: %w", err)
	}

	msgs, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	var out []FailedPayload
	for msg := range msgs.Messages() {
		var failed FailedPayload
		if err := json.Unmarshal(msg.Data(), &failed); err != nil {
			q.logger.WarnContext(ctx, "failed to parse dlq message", logging.Error(err))
			continue
		}
		out = append(out, failed)
	}
	if err := msgs.Error(); err != nil && len(out) == 0 {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	return out, nil
}

// Purge removes every captured payload from the stream.
func (q *JetStreamQueue) Purge(ctx context.Context) error {
	if q == nil {
		return fmt.Errorf("dlq not enabled")
	}
	if err := q.stream.Purge(ctx); err != nil {
		return fmt.Errorf("purge dlq stream: %w", err)
	}
	return nil
}

func (q *JetStreamQueue) Close() error {
	if q == nil || q.conn == nil {
		return nil
	}
	return q.conn.Drain()
}
