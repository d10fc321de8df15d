package models

import (
	"time"

	"github.com/goccy/go-json"
)

// InboundEvent is a vendor notification as received: field name to raw JSON value.
// Nothing about its shape is trusted; fields are read one at a time at the point of use.
type InboundEvent map[string]json.RawMessage

// NormalizedRecord is a notification ready to be written as one row.
// Nil pointers are stored as SQL NULL.
type NormalizedRecord struct {
	NotificationTime   *time.Time      `json:"notification_time"`
	ChatIdentifier     *string         `json:"chat_identifier"`
	VisitorPhoneNumber *string         `json:"visitor_phone_number"`
	Messages           json.RawMessage `json:"messages"`
	EmployeeFullName   *string         `json:"employee_full_name"`
	VisitorName        *string         `json:"visitor_name"`
	VisitorID          *string         `json:"visitor_id"`
	Status             string          `json:"status"`
}

// WebhookResponse is the body returned to the vendor on success.
type WebhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// VersionResponse is returned by the root probe.
type VersionResponse struct {
	Message string `json:"message"`
}
