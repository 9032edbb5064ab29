package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"gymbro/internal/logger"
	"gymbro/internal/models"
	"gymbro/internal/repositories"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidProfile  = errors.New("invalid profile")
)

// ProfileUpdate holds the profile fields a user may edit. Nil fields are left
// untouched. A number sent as "" decodes without a value and clears the
// stored one.
type ProfileUpdate struct {
	Name          *string `json:"name" validate:"omitempty,max=60"`
	Gender        *string `json:"gender" validate:"omitempty,max=30"`
	Gym           *string `json:"gym" validate:"omitempty,max=80"`
	City          *string `json:"city" validate:"omitempty,max=80"`
	Goal          *string `json:"goal" validate:"omitempty,max=60"`
	Experience    *string `json:"experience" validate:"omitempty,max=60"`
	PreferredTime *string `json:"preferredTime" validate:"omitempty,max=60"`
	Instagram     *string `json:"instagram" validate:"omitempty,max=30"`
	ContactEmail  *string `json:"contactEmail" validate:"omitempty,email"`
	PhotoURL      *string `json:"photoUrl" validate:"omitempty,url"`

	Age        *models.Number `json:"age"`
	Height     *models.Number `json:"height"`
	Weight     *models.Number `json:"weight"`
	BenchPress *models.Number `json:"benchPress"`
	Squat      *models.Number `json:"squat"`
	LegPress   *models.Number `json:"legPress"`
}

func (u ProfileUpdate) fields() (map[string]any, error) {
	out := make(map[string]any)
	for key, v := range map[string]*string{
		"name":          u.Name,
		"gender":        u.Gender,
		"gym":           u.Gym,
		"city":          u.City,
		"goal":          u.Goal,
		"experience":    u.Experience,
		"preferredTime": u.PreferredTime,
		"instagram":     u.Instagram,
		"contactEmail":  u.ContactEmail,
		"photoUrl":      u.PhotoURL,
	} {
		if v != nil {
			out[key] = *v
		}
	}
	for key, n := range map[string]*models.Number{
		"age":        u.Age,
		"height":     u.Height,
		"weight":     u.Weight,
		"benchPress": u.BenchPress,
		"squat":      u.Squat,
		"legPress":   u.LegPress,
	} {
		if n == nil {
			continue
		}
		if n.Valid && n.Value < 0 {
			return nil, fmt.Errorf("%w: %s must not be negative", ErrInvalidProfile, key)
		}
		out[key] = *n
	}
	return out, nil
}

// ProfileEntry is a profile together with its owner.
type ProfileEntry struct {
	Owner   string
	Profile models.UserProfile
}

// ProfileService handles the users/{owner} documents apart from the username,
// which only the username registry writes.
type ProfileService struct {
	store repositories.DocumentStore
	log   *logger.Logger
	now   func() time.Time
}

// NewProfileService creates a new ProfileService.
func NewProfileService(store repositories.DocumentStore, log *logger.Logger) *ProfileService {
	return &ProfileService{
		store: store,
		log:   log.With("service", "ProfileService"),
		now:   time.Now,
	}
}

// GetProfile returns the profile of owner.
func (s *ProfileService) GetProfile(ctx context.Context, owner string) (*models.UserProfile, error) {
	if owner == "" {
		return nil, ErrMissingOwner
	}
	snap, err := s.store.Get(ctx, userRef(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", owner, err)
	}
	if !snap.Exists {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, owner)
	}
	var p models.UserProfile
	if err := snap.DataTo(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile merges the set fields of update into the owner's profile and
// returns the result.
func (s *ProfileService) UpdateProfile(ctx context.Context, owner string, update ProfileUpdate) (*models.UserProfile, error) {
	if owner == "" {
		return nil, ErrMissingOwner
	}
	fields, err := update.fields()
	if err != nil {
		return nil, err
	}

	err = s.store.RunTransaction(ctx, func(tx repositories.Tx) error {
		snap, err := tx.Get(userRef(owner))
		if err != nil {
			return err
		}
		now := s.now()
		doc := maps.Clone(fields)
		doc["updatedAt"] = now
		if !snap.Exists {
			doc["createdAt"] = now
		}
		return tx.Merge(userRef(owner), doc)
	})
	if err != nil {
		s.log.Error("failed to update profile", "owner", owner, "error", err)
		return nil, fmt.Errorf("failed to update profile %s: %w", owner, err)
	}
	return s.GetProfile(ctx, owner)
}

// ListProfiles returns every decodable profile ordered by owner.
func (s *ProfileService) ListProfiles(ctx context.Context) ([]ProfileEntry, error) {
	snaps, err := s.store.List(ctx, models.CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	out := make([]ProfileEntry, 0, len(snaps))
	for i := range snaps {
		var p models.UserProfile
		if err := snaps[i].DataTo(&p); err != nil {
			s.log.Warn("skipping unreadable profile", "owner", snaps[i].Ref.Key, "error", err)
			continue
		}
		out = append(out, ProfileEntry{Owner: snaps[i].Ref.Key, Profile: p})
	}
	return out, nil
}
