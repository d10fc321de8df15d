package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/callgear-sync/cg-webhook/internal/config"
	"github.com/callgear-sync/cg-webhook/internal/dlq"
	"github.com/callgear-sync/cg-webhook/internal/handlers"
	"github.com/callgear-sync/cg-webhook/internal/logging"
	"github.com/callgear-sync/cg-webhook/internal/normalizer"
	"github.com/callgear-sync/cg-webhook/internal/ratelimit"
	"github.com/callgear-sync/cg-webhook/internal/repository"
	"github.com/callgear-sync/cg-webhook/internal/server"
	"github.com/callgear-sync/cg-webhook/internal/service"
)

var serveDryRun bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook HTTP server",
	Long: `Starts the HTTP server exposing POST /webhook, GET /, /healthz, /readyz and /metrics.

With --dry-run, notifications are normalized and kept in memory instead of
being written to PostgreSQL, so no database URL is needed.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDryRun, "dry-run", false, "keep notifications in memory instead of PostgreSQL")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg, os.Stdout)
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger, serveDryRun)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("starting cg-webhook",
		"version", Version,
		"addr", cfg.Server.Addr(),
		"table", cfg.Database.Table,
		"dry_run", serveDryRun,
		"rate_limit", cfg.RateLimit.Enabled,
		"dlq", cfg.DLQ.Enabled,
	)

	return server.New(cfg.Server, app.Router, logger).Run(ctx)
}

// app holds everything serve wires together.
type app struct {
	Router  http.Handler
	writer  repository.Writer
	limiter ratelimit.RateLimiter
	dlq     dlq.Writer
}

func buildApp(ctx context.Context, cfg *config.Config, logger *logging.Logger, dryRun bool) (*app, error) {
	writer, err := newWriter(ctx, cfg, logger, dryRun)
	if err != nil {
		return nil, err
	}

	limiter := newRateLimiter(cfg, logger)

	dlqWriter, err := dlq.New(ctx, cfg.DLQ, logger)
	if err != nil {
		writer.Close()
		_ = limiter.Close()
		return nil, fmt.Errorf("failed to initialize dlq: %w", err)
	}

	svc := service.NewWebhookService(
		normalizer.New(cfg.Normalizer.TimestampFormats...),
		writer,
		dlqWriter,
		logger,
	)

	h := handlers.NewWebhookHandler(svc, handlers.Options{
		Version:      Version,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		RateLimiter:  limiter,
		Logger:       logger,
	})

	return &app{
		Router:  server.NewRouter(h, logger),
		writer:  writer,
		limiter: limiter,
		dlq:     dlqWriter,
	}, nil
}

func (a *app) Close() {
	_ = a.dlq.Close()
	_ = a.limiter.Close()
	a.writer.Close()
}

func newWriter(ctx context.Context, cfg *config.Config, logger *logging.Logger, dryRun bool) (repository.Writer, error) {
	if dryRun {
		logger.Warn("dry run: notifications are not persisted")
		return repository.NewMemoryRepository(), nil
	}

	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	dest, err := repository.DestinationFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("invalid destination: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	repo, err := repository.NewPostgresRepository(connectCtx, cfg.Database.URL, dest, repository.Options{
		MaxConns:         cfg.Database.MaxConns,
		StatementTimeout: cfg.Database.StatementTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return repo, nil
}

// newRateLimiter falls back to no limiting when Redis is unreachable.
func newRateLimiter(cfg *config.Config, logger *logging.Logger) ratelimit.RateLimiter {
	if !cfg.RateLimit.Enabled {
		return &ratelimit.NoOpRateLimiter{}
	}

	if cfg.RateLimit.Backend == "memory" {
		logger.Info("rate limiting enabled (in-process)",
			"requests", cfg.RateLimit.Requests,
			"window", cfg.RateLimit.Window.String(),
		)
		return ratelimit.NewLocalRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	limiter, err := ratelimit.NewRedisRateLimiter(cfg.RateLimit.RedisURL, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	if err != nil {
		logger.Warn("failed to initialize redis rate limiter, continuing without rate limiting", logging.Error(err))
		return &ratelimit.NoOpRateLimiter{}
	}

	logger.Info("rate limiting enabled",
		"requests", cfg.RateLimit.Requests,
		"window", cfg.RateLimit.Window.String(),
	)
	return limiter
}
