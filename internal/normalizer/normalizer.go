// Package normalizer turns raw CallGear webhook bodies into records ready for storage.
//
// The sender is unreliable, so the rules are asymmetric: a body that is not JSON after
// the doubled-quote repair is rejected, but once it parses, no missing or oddly shaped
// field causes a failure. Such fields degrade to null or to a default.
package normalizer

import (
	"bytes"
	stdjson "encoding/json"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/callgear-sync/cg-webhook/internal/metrics"
	"github.com/callgear-sync/cg-webhook/internal/models"
)

// ErrMalformedPayload is returned when a body is not valid JSON after cleanup.
var ErrMalformedPayload = errors.New("malformed payload")

// DefaultStatus is stored when the event carries no status.
const DefaultStatus = "Open"

// Inbound field names.
const (
	FieldNotificationTime   = "notification_time"
	FieldChatID             = "chat_id"
	FieldVisitorPhoneNumber = "visitor_phone_number"
	FieldMessages           = "messages"
	FieldEmployeeFullName   = "employee_full_name"
	FieldVisitorInfo        = "visitor_info"
	FieldVisitorName        = "visitor_name"
	FieldVisitorID          = "visitor_id"
	FieldStatus             = "status"
)

var jsonNull = []byte("null")

// Normalizer converts raw request bodies into NormalizedRecords.
// It holds no per-request state and is safe for concurrent use.
type Normalizer struct {
	timestamps *TimestampParser
}

// New creates a Normalizer accepting the given timestamp layouts in order.
// An empty list selects DefaultTimestampLayouts.
func New(timestampLayouts ...string) *Normalizer {
	return &Normalizer{timestamps: NewTimestampParser(timestampLayouts...)}
}

// Normalize cleans, parses and coerces one request body.
// The only error it returns wraps ErrMalformedPayload.
func (n *Normalizer) Normalize(raw []byte) (*models.NormalizedRecord, error) {
	cleaned := CleanDoubledQuotes(raw)
	if len(cleaned) != len(raw) {
		metrics.RepairedPayloads.Inc()
	}

	event, err := ParseEvent(cleaned)
	if err != nil {
		return nil, err
	}
	return n.FromEvent(event), nil
}

// ParseEvent parses already cleaned text. A valid JSON document that is not an
// object yields an empty event rather than an error.
func ParseEvent(data []byte) (models.InboundEvent, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}

	// goccy accepts numbers such as 01 or 1.; the accept check uses the strict decoder.
	var doc interface{}
	if err := stdjson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if _, ok := doc.(map[string]interface{}); !ok {
		return models.InboundEvent{}, nil
	}

	var event models.InboundEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return event, nil
}

// FromEvent applies the per-field policies to a parsed event. It never fails.
func (n *Normalizer) FromEvent(event models.InboundEvent) *models.NormalizedRecord {
	record := &models.NormalizedRecord{
		ChatIdentifier:     stringField(event, FieldChatID),
		VisitorPhoneNumber: stringField(event, FieldVisitorPhoneNumber),
		Messages:           coerceMessages(event[FieldMessages]),
		EmployeeFullName:   stringField(event, FieldEmployeeFullName),
		Status:             DefaultStatus,
	}

	if ts := stringField(event, FieldNotificationTime); ts != nil {
		if t, ok := n.timestamps.Parse(*ts); ok {
			record.NotificationTime = &t
		}
	}

	if info := objectField(event, FieldVisitorInfo); info != nil {
		record.VisitorName = stringField(info, FieldVisitorName)
		record.VisitorID = stringField(info, FieldVisitorID)
	}

	if status := stringField(event, FieldStatus); status != nil {
		record.Status = *status
	}

	return record
}

func isAbsent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, jsonNull)
}

// stringField reads key as text. Strings pass through, other scalars keep their
// JSON literal, objects and arrays become compact JSON text.
func stringField(event models.InboundEvent, key string) *string {
	raw, ok := event[key]
	if !ok || isAbsent(raw) {
		return nil
	}
	raw = bytes.TrimSpace(raw)

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return &s
		}
	}

	out, ok := compact(raw)
	if !ok {
		return nil
	}
	s := string(out)
	return &s
}

func objectField(event models.InboundEvent, key string) models.InboundEvent {
	raw, ok := event[key]
	if !ok || isAbsent(raw) {
		return nil
	}
	raw = bytes.TrimSpace(raw)
	if raw[0] != '{' {
		return nil
	}
	var nested models.InboundEvent
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	return nested
}

type textMessage struct {
	Text string `json:"text"`
}

// coerceMessages wraps plain text as {"text": ...} and keeps structured values as-is.
func coerceMessages(raw json.RawMessage) json.RawMessage {
	if isAbsent(raw) {
		return nil
	}
	raw = bytes.TrimSpace(raw)

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if wrapped, err := json.Marshal(textMessage{Text: s}); err == nil {
				return wrapped
			}
		}
	}

	out, ok := compact(raw)
	if !ok {
		return nil
	}
	return out
}

// compact reports false for text that is not valid JSON; such values are
// treated as absent rather than stored.
func compact(raw []byte) ([]byte, bool) {
	var buf bytes.Buffer
	if err := stdjson.Compact(&buf, raw); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
