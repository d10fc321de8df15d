package logging

import (
	"log/slog"

	"github.com/callgear-sync/cg-webhook/internal/models"
)

const (
	FieldService      = "service"
	FieldRequestID    = "request_id"
	FieldIP           = "ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatus       = "status"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
	FieldReason       = "reason"
	FieldBytes        = "bytes"
	FieldNotification = "notification"
)

func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status is the HTTP status code, not the notification status.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Reason is a DLQ capture reason.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

func Bytes(n int) slog.Attr {
	return slog.Int(FieldBytes, n)
}

// Notification groups what is safe to log about a normalized record: the chat,
// its status and whether a timestamp survived coercion. Visitor details and
// message bodies stay out of the logs.
func Notification(record *models.NormalizedRecord) slog.Attr {
	if record == nil {
		return slog.Group(FieldNotification)
	}
	chat := ""
	if record.ChatIdentifier != nil {
		chat = *record.ChatIdentifier
	}
	return slog.Group(FieldNotification,
		slog.String("chat_id", chat),
		slog.String("status", record.Status),
		slog.Bool("has_time", record.NotificationTime != nil),
		slog.Bool("has_messages", record.Messages != nil),
	)
}
