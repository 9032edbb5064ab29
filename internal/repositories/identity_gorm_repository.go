package repositories

import (
	"errors"
	"fmt"

	"gymbro/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMIdentityRepository is a GORM implementation of IdentityRepository.
type GORMIdentityRepository struct {
	db *gorm.DB
}

// NewGORMIdentityRepository creates a new instance of GORMIdentityRepository.
func NewGORMIdentityRepository(db *gorm.DB) *GORMIdentityRepository {
	return &GORMIdentityRepository{
		db: db,
	}
}

// Create creates a new identity in the database.
func (r *GORMIdentityRepository) Create(identity *models.Identity) error {
	if identity.ID == "" {
		identity.ID = uuid.New().String()
	}
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(identity)
	if res.Error != nil {
		return fmt.Errorf("failed to create identity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrEmailTaken, identity.Email)
	}
	return nil
}

// GetByEmail retrieves an identity by email from the database.
func (r *GORMIdentityRepository) GetByEmail(email string) (*models.Identity, error) {
	var identity models.Identity
	if err := r.db.First(&identity, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: email %s", ErrIdentityNotFound, email)
		}
		return nil, fmt.Errorf("failed to get identity by email %s: %w", email, err)
	}
	return &identity, nil
}

// GetByID retrieves an identity by its ID from the database.
func (r *GORMIdentityRepository) GetByID(id string) (*models.Identity, error) {
	var identity models.Identity
	if err := r.db.First(&identity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %s", ErrIdentityNotFound, id)
		}
		return nil, fmt.Errorf("failed to get identity by ID %s: %w", id, err)
	}
	return &identity, nil
}
