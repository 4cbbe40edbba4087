// Package usecase implements the restaurant event handler: it routes
// Created/Updated envelopes to the corresponding store operation and emits
// completion or failure notifications.
package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/eventflow/internal/errors"
	"github.com/allisson/eventflow/internal/notification"
	"github.com/allisson/eventflow/internal/queue"
	"github.com/allisson/eventflow/internal/restaurant/domain"
	appvalidation "github.com/allisson/eventflow/internal/validation"
)

// Detail types routed by this handler.
const (
	DetailTypeCreated = "Created"
	DetailTypeUpdated = "Updated"
)

// eventSource labels notifications emitted by this handler.
const eventSource = "eventflow.restaurant"

// RestaurantDetail is the payload shared by create and update envelopes.
type RestaurantDetail struct {
	RestaurantID string   `json:"restaurantId"`
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	PostalCode   string   `json:"postalCode"`
	Country      string   `json:"country"`
	CountryCode  string   `json:"countryCode"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Phone        string   `json:"phone"`
	Website      string   `json:"website"`
	Email        string   `json:"email"`
	CuisineType  string   `json:"cuisineType"`
	PriceRange   int      `json:"priceRange"`
	CreatedBy    string   `json:"createdBy"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedBy    string   `json:"updatedBy"`
	UpdatedAt    string   `json:"updatedAt"`
}

// RestaurantEvent is the restaurant envelope delivered by the queue. Both
// detail-type spellings observed upstream are accepted.
type RestaurantEvent struct {
	DetailTypeSnake string           `json:"detail_type"`
	DetailTypeCamel string           `json:"detailType"`
	Detail          RestaurantDetail `json:"detail"`
}

// DetailType returns the envelope detail type, whichever spelling was used.
func (e RestaurantEvent) DetailType() string {
	if e.DetailTypeSnake != "" {
		return e.DetailTypeSnake
	}
	return e.DetailTypeCamel
}

// RestaurantRepository defines restaurant repository operations
type RestaurantRepository interface {
	Create(ctx context.Context, restaurant *domain.Restaurant) error
	GetByID(ctx context.Context, id string) (*domain.Restaurant, error)
	Update(ctx context.Context, restaurant *domain.Restaurant) error
}

// RestaurantUseCase handles restaurant events delivered from the restaurant queue.
type RestaurantUseCase struct {
	restaurantRepo RestaurantRepository
	notifier       notification.Notifier
	logger         *slog.Logger
}

// NewRestaurantUseCase creates a new RestaurantUseCase
func NewRestaurantUseCase(
	restaurantRepo RestaurantRepository,
	notifier notification.Notifier,
	logger *slog.Logger,
) *RestaurantUseCase {
	return &RestaurantUseCase{
		restaurantRepo: restaurantRepo,
		notifier:       notifier,
		logger:         logger,
	}
}

// Handle routes one restaurant envelope by detail type. Unknown detail types
// are rejected explicitly instead of being silently accepted.
func (uc *RestaurantUseCase) Handle(ctx context.Context, msg queue.Message) error {
	var event RestaurantEvent
	if err := json.Unmarshal([]byte(msg.Body), &event); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "failed to parse restaurant event: "+err.Error())
	}

	switch event.DetailType() {
	case DetailTypeCreated:
		return uc.handleCreated(ctx, event.Detail)
	case DetailTypeUpdated:
		return uc.handleUpdated(ctx, event.Detail)
	default:
		return apperrors.Wrap(apperrors.ErrInvalidInput, "unknown detail type: "+event.DetailType())
	}
}

// handleCreated inserts a new restaurant. Any failure emits a CreationFailed
// notification carrying the error message before the error is returned.
func (uc *RestaurantUseCase) handleCreated(ctx context.Context, detail RestaurantDetail) error {
	if err := uc.create(ctx, detail); err != nil {
		uc.notify(ctx, "CreationFailed", detail.RestaurantID, map[string]any{
			"restaurant_id": detail.RestaurantID,
			"error":         err.Error(),
		})
		return err
	}

	uc.notify(ctx, "CreationCompleted", detail.RestaurantID, map[string]any{
		"restaurant_id": detail.RestaurantID,
	})
	return nil
}

func (uc *RestaurantUseCase) create(ctx context.Context, detail RestaurantDetail) error {
	err := validation.ValidateStruct(&detail,
		validation.Field(&detail.RestaurantID, validation.Required.Error("restaurantId is required")),
		validation.Field(&detail.Name, validation.Required.Error("name is required"), appvalidation.NotBlank),
		validation.Field(&detail.Address, validation.Required.Error("address is required")),
		validation.Field(&detail.City, validation.Required.Error("city is required")),
		validation.Field(&detail.Country, validation.Required.Error("country is required")),
		validation.Field(&detail.CountryCode, validation.Required.Error("countryCode is required")),
	)
	if err != nil {
		return appvalidation.WrapValidationError(err)
	}

	_, err = uc.restaurantRepo.GetByID(ctx, detail.RestaurantID)
	if err == nil {
		return domain.ErrRestaurantAlreadyExists
	}
	if !apperrors.Is(err, domain.ErrRestaurantNotFound) {
		return err
	}

	restaurant := &domain.Restaurant{
		ID:          detail.RestaurantID,
		Name:        detail.Name,
		Address:     detail.Address,
		City:        detail.City,
		State:       detail.State,
		PostalCode:  detail.PostalCode,
		Country:     detail.Country,
		CountryCode: detail.CountryCode,
		NormalizedAddress: domain.NormalizeAddress(
			detail.Address, detail.City, detail.State, detail.PostalCode,
		),
		Latitude:    detail.Latitude,
		Longitude:   detail.Longitude,
		Phone:       detail.Phone,
		Website:     detail.Website,
		Email:       detail.Email,
		CuisineType: detail.CuisineType,
		PriceRange:  detail.PriceRange,
		CreatedBy:   detail.CreatedBy,
	}

	return uc.restaurantRepo.Create(ctx, restaurant)
}

// handleUpdated merges the supplied fields over the stored record. Any failure
// emits an UpdateFailed notification before the error is returned.
func (uc *RestaurantUseCase) handleUpdated(ctx context.Context, detail RestaurantDetail) error {
	if err := uc.update(ctx, detail); err != nil {
		uc.notify(ctx, "UpdateFailed", detail.RestaurantID, map[string]any{
			"restaurant_id": detail.RestaurantID,
			"error":         err.Error(),
		})
		return err
	}

	uc.notify(ctx, "UpdateCompleted", detail.RestaurantID, map[string]any{
		"restaurant_id": detail.RestaurantID,
	})
	return nil
}

func (uc *RestaurantUseCase) update(ctx context.Context, detail RestaurantDetail) error {
	err := validation.ValidateStruct(&detail,
		validation.Field(&detail.RestaurantID, validation.Required.Error("restaurantId is required")),
		validation.Field(&detail.Name, validation.Required.Error("name is required"), appvalidation.NotBlank),
	)
	if err != nil {
		return appvalidation.WrapValidationError(err)
	}

	existing, err := uc.restaurantRepo.GetByID(ctx, detail.RestaurantID)
	if err != nil {
		return err
	}

	merged := merge(existing, detail)
	return uc.restaurantRepo.Update(ctx, merged)
}

// merge overlays supplied fields on the existing record; missing optional
// fields retain their prior values.
func merge(existing *domain.Restaurant, detail RestaurantDetail) *domain.Restaurant {
	merged := *existing

	merged.Name = detail.Name
	merged.Address = override(detail.Address, existing.Address)
	merged.City = override(detail.City, existing.City)
	merged.State = override(detail.State, existing.State)
	merged.PostalCode = override(detail.PostalCode, existing.PostalCode)
	merged.Country = override(detail.Country, existing.Country)
	merged.CountryCode = override(detail.CountryCode, existing.CountryCode)
	merged.Phone = override(detail.Phone, existing.Phone)
	merged.Website = override(detail.Website, existing.Website)
	merged.Email = override(detail.Email, existing.Email)
	merged.CuisineType = override(detail.CuisineType, existing.CuisineType)
	merged.UpdatedBy = override(detail.UpdatedBy, existing.UpdatedBy)

	if detail.Latitude != nil {
		merged.Latitude = detail.Latitude
	}
	if detail.Longitude != nil {
		merged.Longitude = detail.Longitude
	}
	if detail.PriceRange != 0 {
		merged.PriceRange = detail.PriceRange
	}

	merged.NormalizedAddress = domain.NormalizeAddress(
		merged.Address, merged.City, merged.State, merged.PostalCode,
	)
	return &merged
}

func override(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// notify emits a completion or failure event. Emission is independent of the
// store write and never transactional with it; a publish failure is logged
// and the processing outcome is unchanged.
func (uc *RestaurantUseCase) notify(ctx context.Context, eventType, restaurantID string, detail map[string]any) {
	err := uc.notifier.Publish(ctx, notification.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    eventSource,
		Subject:   restaurantID,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		uc.logger.Error("failed to publish restaurant notification",
			slog.String("type", eventType),
			slog.String("restaurant_id", restaurantID),
			slog.Any("error", err),
		)
	}
}
