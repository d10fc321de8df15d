package repository

import (
	"context"
	"errors"

	"github.com/callgear-sync/cg-webhook/internal/models"
)

// ErrStorageFailure wraps every error returned by a Writer's Insert.
var ErrStorageFailure = errors.New("storage failure")

// Writer persists one normalized notification as one row.
type Writer interface {
	Insert(ctx context.Context, record *models.NormalizedRecord) error
	Ping(ctx context.Context) error
	Close()
}
