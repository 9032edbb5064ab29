package repositories

import (
	"errors"

	"gymbro/internal/models"
)

var (
	// ErrIdentityNotFound is returned when no identity matches a lookup.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
)

// IdentityRepository defines the interface for identity data access.
type IdentityRepository interface {
	Create(identity *models.Identity) error
	GetByEmail(email string) (*models.Identity, error)
	GetByID(id string) (*models.Identity, error)
}
