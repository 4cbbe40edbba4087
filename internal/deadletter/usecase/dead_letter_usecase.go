// Package usecase implements the dead-letter handler: it unwraps the
// dead-letter envelope, persists the record for inspection, and republishes
// the message with updated retry metadata.
package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/eventflow/internal/deadletter/domain"
	"github.com/allisson/eventflow/internal/notification"
	"github.com/allisson/eventflow/internal/queue"

	apperrors "github.com/allisson/eventflow/internal/errors"
	appvalidation "github.com/allisson/eventflow/internal/validation"
)

// EventTypeDeadLetter labels republished dead-letter events.
const EventTypeDeadLetter = "DeadLetterReceived"

// eventSource labels notifications emitted by this handler.
const eventSource = "eventflow.deadletter"

// DeadLetterRepository defines dead-letter repository operations
type DeadLetterRepository interface {
	Create(ctx context.Context, record *domain.DeadLetter) error
}

// DeadLetterUseCase handles messages delivered from the dead-letter queue.
type DeadLetterUseCase struct {
	deadLetterRepo DeadLetterRepository
	notifier       notification.Notifier
	logger         *slog.Logger
}

// NewDeadLetterUseCase creates a new DeadLetterUseCase
func NewDeadLetterUseCase(
	deadLetterRepo DeadLetterRepository,
	notifier notification.Notifier,
	logger *slog.Logger,
) *DeadLetterUseCase {
	return &DeadLetterUseCase{
		deadLetterRepo: deadLetterRepo,
		notifier:       notifier,
		logger:         logger,
	}
}

// Handle processes one dead-lettered message. Persistence is best effort:
// a store failure is logged and does not fail the message, so inspection
// records can be lost but the replay notification cannot be skipped. A
// publish failure fails the message so the queue redelivers it.
func (uc *DeadLetterUseCase) Handle(ctx context.Context, msg queue.Message) error {
	envelope, err := unwrap(msg.Body)
	if err != nil {
		return err
	}

	if err := validateEnvelope(envelope); err != nil {
		return err
	}

	metadata := nextMetadata(envelope.Metadata, msg.MessageID)

	record := buildRecord(envelope, metadata)
	if err := uc.deadLetterRepo.Create(ctx, record); err != nil {
		uc.logger.Error("failed to persist dead letter record",
			slog.String("source", envelope.Source),
			slog.String("type", envelope.Type),
			slog.String("original_message_id", metadata.OriginalMessageID),
			slog.Any("error", err),
		)
	}

	err = uc.notifier.Publish(ctx, notification.Event{
		ID:      uuid.NewString(),
		Type:    EventTypeDeadLetter,
		Source:  eventSource,
		Subject: envelope.Source,
		Detail: map[string]any{
			"source":   envelope.Source,
			"type":     envelope.Type,
			"data":     json.RawMessage(envelope.Data),
			"error":    envelope.Error,
			"metadata": metadata,
		},
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to republish dead letter event")
	}
	return nil
}

// unwrap decodes the dead-letter envelope, peeling one notification wrapper
// whose Message field is a JSON-encoded envelope when present.
func unwrap(body string) (domain.DLQMessage, error) {
	var wrapper struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &wrapper); err == nil && wrapper.Message != "" {
		var inner domain.DLQMessage
		if err := json.Unmarshal([]byte(wrapper.Message), &inner); err == nil {
			return inner, nil
		}
	}

	var envelope domain.DLQMessage
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return domain.DLQMessage{}, apperrors.Wrap(
			apperrors.ErrInvalidInput, "failed to parse dead letter envelope: "+err.Error(),
		)
	}
	return envelope, nil
}

func validateEnvelope(envelope domain.DLQMessage) error {
	err := validation.ValidateStruct(&envelope,
		validation.Field(&envelope.Source, validation.Required.Error("source is required"), appvalidation.NotBlank),
		validation.Field(&envelope.Type, validation.Required.Error("type is required"), appvalidation.NotBlank),
	)
	if err != nil {
		return appvalidation.WrapValidationError(err)
	}
	return nil
}

// nextMetadata increments the retry count, preserves the original message id
// from the first delivery, and stamps a fresh timestamp.
func nextMetadata(metadata *domain.DLQMetadata, messageID string) domain.DLQMetadata {
	next := domain.DLQMetadata{}
	if metadata != nil {
		next = *metadata
	}

	next.RetryCount++
	if next.OriginalMessageID == "" {
		next.OriginalMessageID = messageID
	}
	next.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return next
}

func buildRecord(envelope domain.DLQMessage, metadata domain.DLQMetadata) *domain.DeadLetter {
	record := &domain.DeadLetter{
		ID:                uuid.New(),
		Source:            envelope.Source,
		Type:              envelope.Type,
		Payload:           string(envelope.Data),
		RetryCount:        metadata.RetryCount,
		OriginalMessageID: metadata.OriginalMessageID,
		Timestamp:         time.Now().UTC(),
	}

	if envelope.Error != nil {
		record.ErrorMessage = optional(envelope.Error.Message)
		record.ErrorCode = optional(envelope.Error.Code)
		record.ErrorStack = optional(envelope.Error.Stack)
	}
	return record
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
