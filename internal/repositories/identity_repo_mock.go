package repositories

import (
	"fmt"
	"sync"
	"time"

	"gymbro/internal/models"

	"github.com/google/uuid"
)

// MockIdentityRepository is an in-memory implementation of IdentityRepository.
type MockIdentityRepository struct {
	byID    map[string]models.Identity
	byEmail map[string]string
	mu      sync.RWMutex
}

// NewMockIdentityRepository creates a new instance of MockIdentityRepository.
func NewMockIdentityRepository() *MockIdentityRepository {
	return &MockIdentityRepository{
		byID:    make(map[string]models.Identity),
		byEmail: make(map[string]string),
	}
}

// Create adds a new identity.
func (r *MockIdentityRepository) Create(identity *models.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[identity.Email]; taken {
		return fmt.Errorf("%w: %s", ErrEmailTaken, identity.Email)
	}
	if identity.ID == "" {
		identity.ID = uuid.New().String()
	}
	identity.CreatedAt = time.Now()
	identity.UpdatedAt = identity.CreatedAt
	r.byID[identity.ID] = *identity
	r.byEmail[identity.Email] = identity.ID
	return nil
}

// GetByEmail returns an identity by email.
func (r *MockIdentityRepository) GetByEmail(email string) (*models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("%w: email %s", ErrIdentityNotFound, email)
	}
	identity := r.byID[id]
	return &identity, nil
}

// GetByID returns an identity by its ID.
func (r *MockIdentityRepository) GetByID(id string) (*models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrIdentityNotFound, id)
	}
	return &identity, nil
}
