// Package notification provides the completion/notification side-effect sink.
// Handlers emit an event after a domain write; delivery is fire-and-forget
// from the caller's perspective and is never transactional with the write.
package notification

import (
	"context"
	"time"
)

// Event is a completion/notification record emitted after a domain operation.
type Event struct {
	// ID is a unique event identifier.
	ID string `json:"id"`
	// Type names the outcome (e.g. "CreationCompleted", "CreationFailed").
	Type string `json:"type"`
	// Source names the emitting handler (e.g. "eventflow.restaurant").
	Source string `json:"source"`
	// Subject is the identifier of the affected entity.
	Subject string `json:"subject,omitempty"`
	// Detail is the JSON-encoded event payload.
	Detail map[string]any `json:"detail,omitempty"`
	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
}

// Notifier publishes completion/notification events.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}
