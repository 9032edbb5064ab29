package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"gymbro/internal/logger"
	"gymbro/internal/models"
	"gymbro/internal/repositories"
)

const (
	// DefaultFeedLimit is the page size of Feed when none is given.
	DefaultFeedLimit = 60
	// MaxFeedLimit caps the page size of Feed.
	MaxFeedLimit = 200
)

var ErrInvalidImageURL = errors.New("image url must be an absolute URL")

// PostService records photo posts and serves the searchable feed.
type PostService struct {
	store    repositories.DocumentStore
	profiles *ProfileService
	validate *validator.Validate
	log      *logger.Logger
	now      func() time.Time
}

// NewPostService creates a new PostService.
func NewPostService(store repositories.DocumentStore, profiles *ProfileService, log *logger.Logger) *PostService {
	return &PostService{
		store:    store,
		profiles: profiles,
		validate: validator.New(),
		log:      log.With("service", "PostService"),
		now:      time.Now,
	}
}

// CreatePost stores the metadata of an uploaded photo. The author's username
// and name are copied into the post so the feed needs no profile lookups.
func (s *PostService) CreatePost(ctx context.Context, owner, imageURL string) (*models.PhotoPost, error) {
	if owner == "" {
		return nil, ErrMissingOwner
	}
	if err := s.validate.Var(imageURL, "required,url"); err != nil {
		return nil, ErrInvalidImageURL
	}
	profile, err := s.profiles.GetProfile(ctx, owner)
	if err != nil {
		return nil, err
	}

	post := &models.PhotoPost{
		Owner:    owner,
		ImageURL: imageURL,
		TS:       s.now().UnixMilli(),
		Username: profile.Username,
		Name:     profile.Name,
	}
	ref := repositories.Doc(models.CollectionPosts, uuid.NewString())
	if err := s.store.RunTransaction(ctx, func(tx repositories.Tx) error {
		return tx.Set(ref, post)
	}); err != nil {
		s.log.Error("failed to save post", "owner", owner, "error", err)
		return nil, fmt.Errorf("failed to save post: %w", err)
	}
	return post, nil
}

// Feed returns the newest posts first. A non-empty query keeps posts whose
// username or name contains it, ignoring case.
func (s *PostService) Feed(ctx context.Context, query string, limit int) ([]models.PhotoPost, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	limit = min(limit, MaxFeedLimit)
	query = strings.ToLower(strings.TrimSpace(query))

	snaps, err := s.store.List(ctx, models.CollectionPosts)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	posts := make([]models.PhotoPost, 0, len(snaps))
	for i := range snaps {
		var p models.PhotoPost
		if err := snaps[i].DataTo(&p); err != nil {
			s.log.Warn("skipping unreadable post", "key", snaps[i].Ref.Key, "error", err)
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Username), query) &&
			!strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		posts = append(posts, p)
	}

	slices.SortStableFunc(posts, func(a, b models.PhotoPost) int {
		switch {
		case a.TS > b.TS:
			return -1
		case a.TS < b.TS:
			return 1
		}
		return 0
	})
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}
