package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"gymbro/internal/logger"
	"gymbro/internal/models"
	"gymbro/internal/repositories"
	"gymbro/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func numPtr(v float64) *models.Number {
	n := models.NewNumber(v)
	return &n
}

func TestProfileService_GetProfile(t *testing.T) {
	ctx := context.Background()
	profileService := services.NewProfileService(repositories.NewMockDocumentStore(), logger.NewNop())

	_, err := profileService.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, services.ErrProfileNotFound)

	_, err = profileService.GetProfile(ctx, "")
	assert.ErrorIs(t, err, services.ErrMissingOwner)
}

func TestProfileService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMockDocumentStore()
	profileService := services.NewProfileService(store, logger.NewNop())

	_, err := newUsernameService(store).AssignUsername(ctx, "u1", "alice", "alice@example.com")
	require.NoError(t, err)

	p, err := profileService.UpdateProfile(ctx, "u1", services.ProfileUpdate{
		Name:       strPtr("Alice"),
		Gym:        strPtr("Crunch"),
		Height:     numPtr(170),
		BenchPress: numPtr(60),
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username, "username is owned by the registry")
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "Crunch", p.Gym)
	assert.Equal(t, models.NewNumber(170), p.Height)
	assert.Equal(t, models.NewNumber(60), p.BenchPress)
	assert.False(t, p.Squat.Valid)
	assert.True(t, p.CreatedAt.Equal(fixedNow), "creation time is kept")

	// Only the fields present in the update change.
	p, err = profileService.UpdateProfile(ctx, "u1", services.ProfileUpdate{City: strPtr("Austin")})
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "Austin", p.City)
	assert.Equal(t, models.NewNumber(170), p.Height)
}

func TestProfileService_UpdateProfileClearsNumber(t *testing.T) {
	ctx := context.Background()
	profileService := services.NewProfileService(repositories.NewMockDocumentStore(), logger.NewNop())

	_, err := profileService.UpdateProfile(ctx, "u1", services.ProfileUpdate{Height: numPtr(180)})
	require.NoError(t, err)

	var update services.ProfileUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"height": "", "squat": "140"}`), &update))

	p, err := profileService.UpdateProfile(ctx, "u1", update)
	require.NoError(t, err)
	assert.False(t, p.Height.Valid)
	assert.Equal(t, models.NewNumber(140), p.Squat)
}

func TestProfileService_UpdateProfileRejectsNegative(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMockDocumentStore()
	profileService := services.NewProfileService(store, logger.NewNop())

	_, err := profileService.UpdateProfile(ctx, "u1", services.ProfileUpdate{Weight: numPtr(-5)})
	assert.ErrorIs(t, err, services.ErrInvalidProfile)

	_, err = profileService.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, services.ErrProfileNotFound)
}

func TestProfileService_ListProfiles(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMockDocumentStore()
	profileService := services.NewProfileService(store, logger.NewNop())

	for _, owner := range []string{"u2", "u1", "u3"} {
		_, err := profileService.UpdateProfile(ctx, owner, services.ProfileUpdate{Name: strPtr("name-" + owner)})
		require.NoError(t, err)
	}
	require.NoError(t, store.RunTransaction(ctx, func(tx repositories.Tx) error {
		return tx.Set(repositories.Doc(models.CollectionUsers, "broken"), []string{"not", "a", "profile"})
	}))

	entries, err := profileService.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, owner := range []string{"u1", "u2", "u3"} {
		assert.Equal(t, owner, entries[i].Owner)
		assert.Equal(t, "name-"+owner, entries[i].Profile.Name)
	}
}
