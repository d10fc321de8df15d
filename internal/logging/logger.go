// Package logging configures slog for cg-webhook.
//
// A Logger's handler reads the request ID from the context of each record, so
// code that already holds the request context just calls InfoContext and friends.
package logging

import (
	"context"
	"io"
	"log/slog"

	"github.com/callgear-sync/cg-webhook/internal/config"
	"github.com/callgear-sync/cg-webhook/internal/middleware"
)

// ServiceName tags every line written by loggers built with New.
const ServiceName = "cg-webhook"

type Logger struct {
	*slog.Logger
}

// New builds the service logger from the logging section of the config.
func New(w io.Writer, cfg config.LoggingConfig) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	}

	l := slog.New(requestIDHandler{Handler: h}).With(slog.String(FieldService, ServiceName))
	return &Logger{Logger: l}
}

// Default wraps slog.Default for components constructed without a logger.
func Default() *Logger {
	return &Logger{Logger: slog.Default()}
}

func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ParseLevel maps the logging.level config value; unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}

// requestIDHandler stamps request_id on records whose context carries one.
type requestIDHandler struct {
	slog.Handler
}

func (h requestIDHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if id := middleware.RequestIDFrom(ctx); id != "" {
			r.AddAttrs(slog.String(FieldRequestID, id))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h requestIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestIDHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h requestIDHandler) WithGroup(name string) slog.Handler {
	return requestIDHandler{Handler: h.Handler.WithGroup(name)}
}
