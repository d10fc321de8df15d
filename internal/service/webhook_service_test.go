package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callgear-sync/cg-webhook/internal/dlq"
	"github.com/callgear-sync/cg-webhook/internal/logging"
	"github.com/callgear-sync/cg-webhook/internal/models"
	"github.com/callgear-sync/cg-webhook/internal/normalizer"
	"github.com/callgear-sync/cg-webhook/internal/repository"
)

type capturedPayload struct {
	payload []byte
	err     error
	reason  string
}

type mockDLQ struct {
	mu       sync.Mutex
	captured []capturedPayload
	writeErr error
}

func (m *mockDLQ) Write(ctx context.Context, payload []byte, err error, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captured = append(m.captured, capturedPayload{payload: payload, err: err, reason: reason})
	return m.writeErr
}

func (m *mockDLQ) Close() error { return nil }

// plainErrorWriter fails without wrapping ErrStorageFailure.
type plainErrorWriter struct{}

func (plainErrorWriter) Insert(ctx context.Context, record *models.NormalizedRecord) error {
	return errors.New("disk full")
}
func (plainErrorWriter) Ping(ctx context.Context) error { return errors.New("down") }
func (plainErrorWriter) Close()                         {}

func newTestService(writer repository.Writer, d dlq.Writer) *WebhookService {
	return NewWebhookService(normalizer.New(), writer, d, logging.Discard())
}

func TestProcess_Stores(t *testing.T) {
	repo := repository.NewMemoryRepository()
	d := &mockDLQ{}
	svc := newTestService(repo, d)

	record, err := svc.Process(context.Background(), []byte(`{"chat_id":"c1","messages":"hi"}`))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "c1", *record.ChatIdentifier)

	stored := repo.Records()
	require.Len(t, stored, 1)
	assert.JSONEq(t, `{"text":"hi"}`, string(stored[0].Messages))
	assert.Equal(t, normalizer.DefaultStatus, stored[0].Status)
	assert.Empty(t, d.captured)
}

func TestProcess_RepairsDoubledQuotes(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := newTestService(repo, nil)

	_, err := svc.Process(context.Background(), []byte(`{"chat_id":""c1"","status":""Closed""}`))
	require.NoError(t, err)

	stored := repo.Records()
	require.Len(t, stored, 1)
	assert.Equal(t, "c1", *stored[0].ChatIdentifier)
	assert.Equal(t, "Closed", stored[0].Status)
}

func TestProcess_MalformedPayload(t *testing.T) {
	repo := repository.NewMemoryRepository()
	d := &mockDLQ{}
	svc := newTestService(repo, d)

	body := []byte(`{"chat_id": `)
	record, err := svc.Process(context.Background(), body)
	require.Error(t, err)
	assert.Nil(t, record)
	assert.ErrorIs(t, err, normalizer.ErrMalformedPayload)
	assert.NotErrorIs(t, err, repository.ErrStorageFailure)

	assert.Empty(t, repo.Records(), "nothing is written for a malformed body")
	require.Len(t, d.captured, 1)
	assert.Equal(t, dlq.ReasonMalformedPayload, d.captured[0].reason)
	assert.True(t, bytes.Equal(body, d.captured[0].payload))
}

func TestProcess_LeadingZeroNumberIsMalformed(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := newTestService(repo, nil)

	_, err := svc.Process(context.Background(), []byte(`{"chat_id":"c1","messages":01}`))
	assert.ErrorIs(t, err, normalizer.ErrMalformedPayload)
	assert.NotErrorIs(t, err, repository.ErrStorageFailure)
	assert.Empty(t, repo.Records())
}

func TestProcess_StorageFailure(t *testing.T) {
	repo := repository.NewMemoryRepository()
	repo.FailWith(errors.New("connection refused"))
	d := &mockDLQ{}
	svc := newTestService(repo, d)

	record, err := svc.Process(context.Background(), []byte(`{"chat_id":"c1"}`))
	require.Error(t, err)
	assert.Nil(t, record)
	assert.ErrorIs(t, err, repository.ErrStorageFailure)
	assert.Contains(t, err.Error(), "connection refused")

	require.Len(t, d.captured, 1)
	assert.Equal(t, dlq.ReasonStorageFailure, d.captured[0].reason)
	assert.ErrorIs(t, d.captured[0].err, repository.ErrStorageFailure)
}

func TestProcess_UnwrappedWriterErrorIsStorageFailure(t *testing.T) {
	svc := newTestService(plainErrorWriter{}, nil)

	_, err := svc.Process(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrStorageFailure)
	assert.Contains(t, err.Error(), "disk full")
}

func TestProcess_DLQFailureDoesNotChangeOutcome(t *testing.T) {
	repo := repository.NewMemoryRepository()
	d := &mockDLQ{writeErr: errors.New("dlq unavailable")}
	svc := newTestService(repo, d)

	_, err := svc.Process(context.Background(), []byte(`not json`))
	require.Error(t, err)
	assert.ErrorIs(t, err, normalizer.ErrMalformedPayload)
	assert.Len(t, d.captured, 1)
}

func TestProcess_ConcurrentRequests(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := newTestService(repo, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Process(context.Background(), []byte(`{"chat_id":"c","messages":["a","b"]}`))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, repo.Records(), 50)
}

func TestReady(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := newTestService(repo, nil)
	assert.NoError(t, svc.Ready(context.Background()))

	repo.Close()
	assert.Error(t, svc.Ready(context.Background()))
}
