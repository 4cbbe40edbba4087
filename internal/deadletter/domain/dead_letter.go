// Package domain defines the dead-letter inspection entities and envelope types.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeadLetter is one exhausted message persisted for inspection and replay.
type DeadLetter struct {
	ID                uuid.UUID
	Source            string
	Type              string
	Payload           string
	ErrorMessage      *string
	ErrorCode         *string
	ErrorStack        *string
	RetryCount        int
	OriginalMessageID string
	Timestamp         time.Time
	CreatedAt         time.Time
}

// DLQError describes the failure that dead-lettered the message.
type DLQError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// DLQMetadata carries replay bookkeeping across redeliveries.
type DLQMetadata struct {
	RetryCount        int    `json:"retryCount,omitempty"`
	OriginalMessageID string `json:"originalMessageId,omitempty"`
	Timestamp         string `json:"timestamp,omitempty"`
}

// DLQMessage is the dead-letter envelope. It arrives either as a raw JSON
// body or wrapped in a notification envelope whose Message field is itself a
// JSON-encoded DLQMessage.
type DLQMessage struct {
	Source   string          `json:"source"`
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	Error    *DLQError       `json:"error,omitempty"`
	Metadata *DLQMetadata    `json:"metadata,omitempty"`
}
