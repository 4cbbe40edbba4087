// Package domain defines the core restaurant domain entities and types.
package domain

import (
	"strings"
	"time"

	"github.com/allisson/eventflow/internal/errors"
)

// Restaurant represents a restaurant applied from platform events.
type Restaurant struct {
	ID                string
	Name              string
	Address           string
	City              string
	State             string
	PostalCode        string
	Country           string
	CountryCode       string
	NormalizedAddress string
	Latitude          *float64
	Longitude         *float64
	Phone             string
	Website           string
	Email             string
	CuisineType       string
	PriceRange        int
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedBy         string
	UpdatedAt         *time.Time
}

// Domain-specific errors for restaurant operations.
var (
	// ErrRestaurantNotFound indicates the requested restaurant does not exist.
	ErrRestaurantNotFound = errors.Wrap(errors.ErrNotFound, "restaurant not found")

	// ErrRestaurantAlreadyExists indicates a restaurant with the same ID already exists.
	ErrRestaurantAlreadyExists = errors.Wrap(errors.ErrConflict, "restaurant already exists")
)

// NormalizeAddress composes the display address from its parts, skipping
// missing ones: "address, city, state, postal code".
func NormalizeAddress(address, city, state, postalCode string) string {
	parts := make([]string, 0, 4)
	for _, part := range []string{address, city, state, postalCode} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, strings.TrimSpace(part))
		}
	}
	return strings.Join(parts, ", ")
}
