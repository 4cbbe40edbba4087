// Package usecase implements the signup event handler: it applies user signup
// events idempotently against the user store and emits a completion
// notification.
package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/eventflow/internal/errors"
	"github.com/allisson/eventflow/internal/notification"
	"github.com/allisson/eventflow/internal/queue"
	"github.com/allisson/eventflow/internal/signup/domain"
	appvalidation "github.com/allisson/eventflow/internal/validation"
)

// EventTypeSignup is the only envelope event_type accepted by this handler.
const EventTypeSignup = "user.signup"

// eventSource labels notifications emitted by this handler.
const eventSource = "eventflow.signup"

// SignupPayload is the identity-provider payload inside a signup event.
// Unknown extra fields are tolerated on decode but never persisted.
type SignupPayload struct {
	Email         string `json:"email"`
	Username      string `json:"username"`
	Nickname      string `json:"nickname"`
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	PhoneNumber   string `json:"phone_number"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
	Bio           string `json:"bio"`
}

// SignupEvent is the signup envelope delivered by the queue.
type SignupEvent struct {
	EventID   string        `json:"event_id"`
	Timestamp string        `json:"timestamp"`
	EventType string        `json:"event_type"`
	Source    string        `json:"source"`
	Version   string        `json:"version"`
	TraceID   string        `json:"trace_id"`
	UserID    string        `json:"user_id"`
	Status    string        `json:"status"`
	Payload   SignupPayload `json:"payload"`
}

// UserRepository defines user repository operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	ExistsByIDOrExternalID(ctx context.Context, id, externalID string) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// SignupUseCase handles signup events delivered from the signup queue.
type SignupUseCase struct {
	userRepo UserRepository
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewSignupUseCase creates a new SignupUseCase
func NewSignupUseCase(userRepo UserRepository, notifier notification.Notifier, logger *slog.Logger) *SignupUseCase {
	return &SignupUseCase{
		userRepo: userRepo,
		notifier: notifier,
		logger:   logger,
	}
}

// validateEvent checks the envelope fields required to apply a signup.
func (uc *SignupUseCase) validateEvent(event SignupEvent) error {
	err := validation.ValidateStruct(&event,
		validation.Field(&event.EventType,
			validation.Required.Error("event_type is required"),
			validation.In(EventTypeSignup).Error("unknown event_type"),
		),
		validation.Field(&event.UserID,
			validation.Required.Error("user_id is required"),
			appvalidation.NotBlank,
		),
		validation.Field(&event.Payload, validation.By(func(any) error {
			return validation.ValidateStruct(&event.Payload,
				validation.Field(&event.Payload.Email, validation.Required.Error("payload.email is required")),
				validation.Field(&event.Payload.Username, validation.Required.Error("payload.username is required")),
			)
		})),
	)
	return appvalidation.WrapValidationError(err)
}

// Handle applies one signup event. Duplicate deliveries are absorbed by the
// idempotency guard: if a user already exists under the primary or alternate
// key, the event is considered durably applied and the handler succeeds
// without writing.
func (uc *SignupUseCase) Handle(ctx context.Context, msg queue.Message) error {
	var event SignupEvent
	if err := json.Unmarshal([]byte(msg.Body), &event); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "failed to parse signup event: "+err.Error())
	}

	if err := uc.validateEvent(event); err != nil {
		return err
	}

	externalID := event.Payload.Sub
	if externalID == "" {
		externalID = event.UserID
	}

	exists, err := uc.userRepo.ExistsByIDOrExternalID(ctx, event.UserID, externalID)
	if err != nil {
		// Availability over strictness: when the existence check itself fails
		// the create is attempted rather than the event silently dropped.
		uc.logger.Warn("user existence check failed, attempting create",
			slog.String("user_id", event.UserID),
			slog.Any("error", err),
		)
		exists = false
	}
	if exists {
		uc.logger.Info("user already exists, skipping create",
			slog.String("user_id", event.UserID),
		)
		return nil
	}

	user := &domain.User{
		ID:            event.UserID,
		ExternalID:    externalID,
		Email:         event.Payload.Email,
		Username:      event.Payload.Username,
		Nickname:      event.Payload.Nickname,
		DisplayName:   displayName(event.Payload),
		PhoneNumber:   event.Payload.PhoneNumber,
		Picture:       event.Payload.Picture,
		Bio:           event.Payload.Bio,
		Status:        event.Status,
		EmailVerified: event.Payload.EmailVerified,
	}

	if err := uc.userRepo.Create(ctx, user); err != nil {
		if apperrors.Is(err, domain.ErrUserAlreadyExists) {
			// A concurrent delivery won the insert; the event is durably applied.
			return nil
		}
		return err
	}

	uc.notify(ctx, event)
	return nil
}

// notify emits the signup completion event. The write and the emission are two
// independent, non-transactional calls: if the emission fails the user exists
// but no completion signal was sent, so the failure is only logged.
func (uc *SignupUseCase) notify(ctx context.Context, event SignupEvent) {
	err := uc.notifier.Publish(ctx, notification.Event{
		ID:      uuid.NewString(),
		Type:    "SignupCompleted",
		Source:  eventSource,
		Subject: event.UserID,
		Detail: map[string]any{
			"user_id":  event.UserID,
			"trace_id": event.TraceID,
		},
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		uc.logger.Error("failed to publish signup completion",
			slog.String("user_id", event.UserID),
			slog.Any("error", err),
		)
	}
}

// displayName derives the user's display name via the fallback chain:
// payload.name, then given_name + family_name, then username.
func displayName(payload SignupPayload) string {
	if payload.Name != "" {
		return payload.Name
	}
	if full := strings.TrimSpace(payload.GivenName + " " + payload.FamilyName); full != "" {
		return full
	}
	return payload.Username
}
