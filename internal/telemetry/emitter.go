package telemetry

import (
	"context"
	"time"
)

// Event is a telemetry event for an authentication or device operation.
// All string fields are optional; empty values are omitted downstream.
type Event struct {
	UserID    string
	DeviceID  string
	SessionID string
	EventType string
	Source    string
	Metadata  []byte // JSON payload
	CreatedAt time.Time
}

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
