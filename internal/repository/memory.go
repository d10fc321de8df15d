package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/callgear-sync/cg-webhook/internal/models"
)

// MemoryRepository keeps records in memory. It backs tests and `serve --dry-run`.
type MemoryRepository struct {
	mu      sync.Mutex
	records []models.NormalizedRecord
	failErr error
	closed  bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// FailWith makes subsequent inserts fail with err; nil restores normal behaviour.
func (m *MemoryRepository) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MemoryRepository) Insert(ctx context.Context, record *models.NormalizedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("%w: repository closed", ErrStorageFailure)
	}
	if m.failErr != nil {
		return fmt.Errorf("%w: %w", ErrStorageFailure, m.failErr)
	}
	m.records = append(m.records, *record)
	return nil
}

func (m *MemoryRepository) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("repository closed")
	}
	return nil
}

func (m *MemoryRepository) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Records returns a copy of everything inserted so far.
func (m *MemoryRepository) Records() []models.NormalizedRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.NormalizedRecord, len(m.records))
	copy(out, m.records)
	return out
}
