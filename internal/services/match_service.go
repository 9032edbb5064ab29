package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymbro/internal/cache"
	"gymbro/internal/logger"
	"gymbro/pkg/matching"
)

var (
	ErrSelfRequest      = errors.New("cannot send a request to yourself")
	ErrAlreadyMatched   = errors.New("already matched")
	ErrRequestPending   = errors.New("a request is already pending")
	ErrNoPendingRequest = errors.New("no pending request from this user")
)

func matchesKey(owner string) string  { return "user:" + owner + ":matches" }
func sentKey(owner string) string     { return "user:" + owner + ":sent" }
func incomingKey(owner string) string { return "user:" + owner + ":incoming" }
func filtersKey(owner string) string  { return "user:" + owner + ":filters" }

// CandidateQuery tunes a Candidates call. Nil Filters fall back to the
// viewer's saved filters and nil Weights to the browse defaults.
type CandidateQuery struct {
	Filters *matching.Filters
	Weights matching.Weights
	Limit   int
}

// Suggestion is a ranked candidate with the profile fields a client shows.
type Suggestion struct {
	matching.Ranked
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

// MatchService handles match requests, saved filters and candidate ranking.
type MatchService struct {
	cache        cache.Store
	profiles     *ProfileService
	events       EventPublisher
	log          *logger.Logger
	defaultLimit int
}

// NewMatchService creates a new MatchService. events may be nil.
func NewMatchService(store cache.Store, profiles *ProfileService, events EventPublisher, log *logger.Logger, defaultLimit int) *MatchService {
	if defaultLimit <= 0 {
		defaultLimit = matching.DefaultLimit
	}
	return &MatchService{
		cache:        store,
		profiles:     profiles,
		events:       events,
		log:          log.With("service", "MatchService"),
		defaultLimit: defaultLimit,
	}
}

// SendRequest records a match request from one user to another.
func (s *MatchService) SendRequest(ctx context.Context, from, to string) error {
	if from == "" || to == "" {
		return ErrMissingOwner
	}
	if from == to {
		return ErrSelfRequest
	}
	if _, err := s.profiles.GetProfile(ctx, to); err != nil {
		return err
	}

	matched, err := s.cache.SetContains(ctx, matchesKey(from), to)
	if err != nil {
		return fmt.Errorf("failed to check matches: %w", err)
	}
	if matched {
		return ErrAlreadyMatched
	}
	for _, key := range []string{sentKey(from), incomingKey(from)} {
		pending, err := s.cache.SetContains(ctx, key, to)
		if err != nil {
			return fmt.Errorf("failed to check pending requests: %w", err)
		}
		if pending {
			return ErrRequestPending
		}
	}

	if err := s.cache.SetAdd(ctx, sentKey(from), to); err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	if err := s.cache.SetAdd(ctx, incomingKey(to), from); err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}

	s.log.Info("match requested", "from", from, "to", to)
	publish(s.events, s.log, EventMatchRequested, MatchEvent{From: from, To: to, At: time.Now()})
	return nil
}

// AcceptRequest turns the pending request from into a match on both sides.
func (s *MatchService) AcceptRequest(ctx context.Context, me, from string) error {
	if err := s.requirePending(ctx, me, from); err != nil {
		return err
	}
	if err := s.cache.SetAdd(ctx, matchesKey(me), from); err != nil {
		return fmt.Errorf("failed to record match: %w", err)
	}
	if err := s.cache.SetAdd(ctx, matchesKey(from), me); err != nil {
		return fmt.Errorf("failed to record match: %w", err)
	}
	if err := s.clearRequest(ctx, me, from); err != nil {
		return err
	}

	s.log.Info("match accepted", "from", from, "to", me)
	publish(s.events, s.log, EventMatchAccepted, MatchEvent{From: from, To: me, At: time.Now()})
	return nil
}

// DeclineRequest drops the pending request from without matching.
func (s *MatchService) DeclineRequest(ctx context.Context, me, from string) error {
	if err := s.requirePending(ctx, me, from); err != nil {
		return err
	}
	return s.clearRequest(ctx, me, from)
}

func (s *MatchService) requirePending(ctx context.Context, me, from string) error {
	if me == "" || from == "" {
		return ErrMissingOwner
	}
	pending, err := s.cache.SetContains(ctx, incomingKey(me), from)
	if err != nil {
		return fmt.Errorf("failed to check pending requests: %w", err)
	}
	if !pending {
		return ErrNoPendingRequest
	}
	return nil
}

func (s *MatchService) clearRequest(ctx context.Context, me, from string) error {
	if err := s.cache.SetRemove(ctx, incomingKey(me), from); err != nil {
		return fmt.Errorf("failed to clear request: %w", err)
	}
	if err := s.cache.SetRemove(ctx, sentKey(from), me); err != nil {
		return fmt.Errorf("failed to clear request: %w", err)
	}
	return nil
}

// ListMatches returns the owners matched with me.
func (s *MatchService) ListMatches(ctx context.Context, me string) ([]string, error) {
	return s.cache.SetMembers(ctx, matchesKey(me))
}

// ListIncoming returns the owners with a pending request to me.
func (s *MatchService) ListIncoming(ctx context.Context, me string) ([]string, error) {
	return s.cache.SetMembers(ctx, incomingKey(me))
}

// GetFilters returns the saved browse filters of me, empty when none.
func (s *MatchService) GetFilters(ctx context.Context, me string) (matching.Filters, error) {
	var f matching.Filters
	if _, err := s.cache.GetJSON(ctx, filtersKey(me), &f); err != nil {
		return matching.Filters{}, fmt.Errorf("failed to load filters: %w", err)
	}
	return f, nil
}

// SaveFilters stores the browse filters of me.
func (s *MatchService) SaveFilters(ctx context.Context, me string, f matching.Filters) error {
	if err := s.cache.SetJSON(ctx, filtersKey(me), f); err != nil {
		return fmt.Errorf("failed to save filters: %w", err)
	}
	return nil
}

// Candidates ranks every other profile against the viewer's, leaving out
// the viewer's matches and pending requests in either direction.
func (s *MatchService) Candidates(ctx context.Context, viewer string, q CandidateQuery) ([]Suggestion, error) {
	weights := q.Weights
	if weights == nil {
		weights = matching.DefaultBrowseWeights
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	me, err := s.profiles.GetProfile(ctx, viewer)
	if err != nil {
		return nil, err
	}

	filters := matching.Filters{}
	if q.Filters != nil {
		filters = *q.Filters
	} else if filters, err = s.GetFilters(ctx, viewer); err != nil {
		return nil, err
	}

	matched, err := s.memberSet(ctx, matchesKey(viewer))
	if err != nil {
		return nil, err
	}
	pending, err := s.memberSet(ctx, sentKey(viewer), incomingKey(viewer))
	if err != nil {
		return nil, err
	}

	entries, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	pool := make([]matching.Candidate, 0, len(entries))
	byOwner := make(map[string]int, len(entries))
	for i, e := range entries {
		pool = append(pool, e.Profile.Candidate(e.Owner))
		byOwner[e.Owner] = i
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	ranked := matching.Rank(me.Candidate(viewer), pool, matching.RankOptions{
		Filters: filters,
		Weights: weights,
		Matched: matched,
		Pending: pending,
		Limit:   limit,
	})

	out := make([]Suggestion, 0, len(ranked))
	for _, r := range ranked {
		p := entries[byOwner[r.Candidate.ID]].Profile
		out = append(out, Suggestion{Ranked: r, Username: p.Username, Name: p.Name, PhotoURL: p.PhotoURL})
	}
	return out, nil
}

func (s *MatchService) memberSet(ctx context.Context, keys ...string) (map[string]bool, error) {
	set := make(map[string]bool)
	for _, key := range keys {
		members, err := s.cache.SetMembers(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", key, err)
		}
		for _, m := range members {
			set[m] = true
		}
	}
	return set, nil
}
