package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gymbro/internal/logger"
	"gymbro/internal/models"
	"gymbro/internal/repositories"
	"gymbro/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

// MockIdentityRepository is a mock implementation of repositories.IdentityRepository
type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) Create(identity *models.Identity) error {
	args := m.Called(identity)
	return args.Error(0)
}

func (m *MockIdentityRepository) GetByEmail(email string) (*models.Identity, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

func (m *MockIdentityRepository) GetByID(id string) (*models.Identity, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

func TestIdentityService_Register(t *testing.T) {
	mockRepo := new(MockIdentityRepository)
	identityService := services.NewIdentityService(mockRepo, nil, testJWTSecret, logger.NewNop())

	mockRepo.On("Create", mock.MatchedBy(func(i *models.Identity) bool {
		return i.Email == "test@example.com" &&
			bcrypt.CompareHashAndPassword([]byte(i.PasswordHash), []byte("password123")) == nil
	})).Return(nil).Once()

	identity, err := identityService.Register("  Test@Example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", identity.Email)
	assert.NotEqual(t, "password123", identity.PasswordHash)
	mockRepo.AssertExpectations(t)

	// Email already registered
	mockRepo.On("Create", mock.AnythingOfType("*models.Identity")).
		Return(fmt.Errorf("%w: test@example.com", repositories.ErrEmailTaken)).Once()
	_, err = identityService.Register("test@example.com", "password123")
	assert.ErrorIs(t, err, repositories.ErrEmailTaken)
	mockRepo.AssertExpectations(t)
}

func TestIdentityService_AuthenticateByEmail(t *testing.T) {
	mockRepo := new(MockIdentityRepository)
	identityService := services.NewIdentityService(mockRepo, nil, testJWTSecret, logger.NewNop())

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	identity := &models.Identity{ID: "user-123", Email: "test@example.com", PasswordHash: string(hashedPassword)}

	mockRepo.On("GetByEmail", "test@example.com").Return(identity, nil).Once()
	token, got, err := identityService.Authenticate(context.Background(), "TEST@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "user-123", got.ID)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "user-123", claims["user_id"])
	assert.Contains(t, claims, "exp")
	assert.Contains(t, claims, "iat")

	// Wrong password
	mockRepo.On("GetByEmail", "test@example.com").Return(identity, nil).Once()
	_, _, err = identityService.Authenticate(context.Background(), "test@example.com", "wrongpassword")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// Unknown account
	mockRepo.On("GetByEmail", "nobody@example.com").Return(nil, repositories.ErrIdentityNotFound).Once()
	_, _, err = identityService.Authenticate(context.Background(), "nobody@example.com", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)
}

func TestIdentityService_AuthenticateByUsername(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMockDocumentStore()
	usernames := newUsernameService(store)
	identityRepo := repositories.NewMockIdentityRepository()
	identityService := services.NewIdentityService(identityRepo, usernames, testJWTSecret, logger.NewNop())

	identity, err := identityService.Register("lifter@example.com", "password123")
	require.NoError(t, err)
	_, err = usernames.AssignUsername(ctx, identity.ID, "lifter", identity.Email)
	require.NoError(t, err)

	token, got, err := identityService.Authenticate(ctx, " Lifter ", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, identity.ID, got.ID)

	_, _, err = identityService.Authenticate(ctx, "unknown_handle", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	withoutRegistry := services.NewIdentityService(identityRepo, nil, testJWTSecret, logger.NewNop())
	_, _, err = withoutRegistry.Authenticate(ctx, "lifter", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestIdentityService_ValidateToken(t *testing.T) {
	mockRepo := new(MockIdentityRepository)
	identityService := services.NewIdentityService(mockRepo, nil, testJWTSecret, logger.NewNop())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-123",
		"exp":     jwt.TimeFunc().Add(time.Hour).Unix(),
	})
	validTokenString, _ := token.SignedString([]byte(testJWTSecret))

	owner, err := identityService.ValidateToken(validTokenString)
	assert.NoError(t, err)
	assert.Equal(t, "user-123", owner)

	issued, err := identityService.IssueToken(&models.Identity{ID: "user-456"})
	require.NoError(t, err)
	owner, err = identityService.ValidateToken(issued)
	assert.NoError(t, err)
	assert.Equal(t, "user-456", owner)

	_, err = identityService.ValidateToken("invalid.token.string")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")

	wrongSecret, _ := token.SignedString([]byte("another_secret"))
	_, err = identityService.ValidateToken(wrongSecret)
	assert.Error(t, err)

	expiredToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-123",
		"exp":     jwt.TimeFunc().Add(-time.Hour).Unix(),
	})
	expiredTokenString, _ := expiredToken.SignedString([]byte(testJWTSecret))
	_, err = identityService.ValidateToken(expiredTokenString)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")

	noOwner := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": jwt.TimeFunc().Add(time.Hour).Unix(),
	})
	noOwnerString, _ := noOwner.SignedString([]byte(testJWTSecret))
	_, err = identityService.ValidateToken(noOwnerString)
	assert.Error(t, err)
}
