package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callgear-sync/cg-webhook/internal/models"
)

// Options tunes the connection pool and per-insert deadline.
type Options struct {
	MaxConns         int32
	StatementTimeout time.Duration
}

// PostgresRepository writes notifications through a bounded pgx pool.
// Each Insert acquires its own connection and always gives it back.
type PostgresRepository struct {
	pool      *pgxpool.Pool
	insertSQL string
	timeout   time.Duration
}

func NewPostgresRepository(ctx context.Context, connString string, dest Destination, opts Options) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	config.MinConns = 0
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newWithPool(pool, dest, opts.StatementTimeout), nil
}

func newWithPool(pool *pgxpool.Pool, dest Destination, timeout time.Duration) *PostgresRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresRepository{
		pool:      pool,
		insertSQL: dest.InsertSQL(),
		timeout:   timeout,
	}
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Insert writes record as a single committed row.
// The connection is released and the transaction rolled back on every failure path.
func (r *PostgresRepository) Insert(ctx context.Context, record *models.NormalizedRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to acquire connection: %w", ErrStorageFailure, err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ErrStorageFailure, err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, r.insertSQL, Args(record)...); err != nil {
		return fmt.Errorf("%w: failed to insert notification: %w", ErrStorageFailure, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit notification: %w", ErrStorageFailure, err)
	}

	return nil
}
