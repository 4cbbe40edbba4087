// Package domain defines the core user domain entities and types.
package domain

import (
	"time"

	"github.com/allisson/eventflow/internal/errors"
)

// User represents a registered user applied from a signup event. ID is the
// primary key; ExternalID is the alternate identity key (the identity
// provider's subject). At most one record may exist per ID or per ExternalID.
type User struct {
	ID            string
	ExternalID    string
	Email         string
	Username      string
	Nickname      string
	DisplayName   string
	PhoneNumber   string
	Picture       string
	Bio           string
	Status        string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Domain-specific errors for user operations.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.Wrap(errors.ErrNotFound, "user not found")

	// ErrUserAlreadyExists indicates a user with the same ID or external ID already exists.
	ErrUserAlreadyExists = errors.Wrap(errors.ErrConflict, "user already exists")
)
