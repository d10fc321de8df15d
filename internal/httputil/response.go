package httputil

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// WriteError writes {"status":"error","error":message}.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Status: "error", Error: message})
}

// GetClientIP returns the first X-Forwarded-For entry, then X-Real-IP, then RemoteAddr.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
