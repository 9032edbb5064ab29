package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"gymbro/internal/logger"
	"gymbro/internal/models"
	"gymbro/internal/repositories"
)

const (
	// MaxUsernameLength is the longest handle Sanitize produces.
	MaxUsernameLength = 20
	// DefaultRandomAttempts bounds the random fallback loop of AssignUsername.
	DefaultRandomAttempts = 8

	fallbackPrefix = "bro"
)

var (
	ErrMissingOwner         = errors.New("missing user")
	ErrInvalidUsername      = errors.New("username must use letters, numbers, or underscores")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrUsernameUpdateFailed = errors.New("could not update username")
)

// Sanitize normalizes a raw username into a handle: trimmed, lower-cased,
// reduced to [a-z0-9_] and cut to MaxUsernameLength. An empty result means
// the input holds no usable character.
func Sanitize(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			if b.Len() == MaxUsernameLength {
				break
			}
		}
	}
	return b.String()
}

// HandleGenerator produces fallback handle candidates.
type HandleGenerator interface {
	Next() string
}

// RandomHandleGenerator yields "bro" followed by a four digit number.
// It is safe for concurrent use.
type RandomHandleGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomHandleGenerator creates a generator. A nil source is seeded from the clock.
func NewRandomHandleGenerator(src rand.Source) *RandomHandleGenerator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &RandomHandleGenerator{rnd: rand.New(src)}
}

func (g *RandomHandleGenerator) Next() string {
	g.mu.Lock()
	n := 1000 + g.rnd.Intn(9000)
	g.mu.Unlock()
	return fmt.Sprintf("%s%d", fallbackPrefix, n)
}

// AssignOutcome tells how AssignUsername arrived at its handle.
type AssignOutcome string

const (
	AssignDesired  AssignOutcome = "desired"
	AssignRandom   AssignOutcome = "random"
	AssignOwnerID  AssignOutcome = "owner_id"
	AssignDegraded AssignOutcome = "degraded"
)

// AssignResult is the handle given to a new user.
type AssignResult struct {
	Username  string        `json:"username"`
	WasRandom bool          `json:"wasRandom"`
	Outcome   AssignOutcome `json:"outcome"`
}

// Reserved reports whether a reservation backs Username. Only the degraded
// outcome hands out a handle nobody reserved.
func (r AssignResult) Reserved() bool {
	return r.Outcome != AssignDegraded
}

// RenameResult is the outcome of UpdateUsername.
type RenameResult struct {
	Username string `json:"username"`
	Changed  bool   `json:"changed"`
}

// UsernameService is the username registry. It keeps no state of its own:
// every decision is made inside a document store transaction so separate
// processes racing for one handle cannot both win.
type UsernameService struct {
	store          repositories.DocumentStore
	gen            HandleGenerator
	events         EventPublisher
	log            *logger.Logger
	now            func() time.Time
	randomAttempts int
}

// UsernameOption customizes a UsernameService.
type UsernameOption func(*UsernameService)

// WithHandleGenerator replaces the random fallback generator.
func WithHandleGenerator(g HandleGenerator) UsernameOption {
	return func(s *UsernameService) { s.gen = g }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) UsernameOption {
	return func(s *UsernameService) { s.now = now }
}

// WithRandomAttempts changes how many random handles are tried.
func WithRandomAttempts(n int) UsernameOption {
	return func(s *UsernameService) {
		if n > 0 {
			s.randomAttempts = n
		}
	}
}

// WithEventPublisher publishes username events through p.
func WithEventPublisher(p EventPublisher) UsernameOption {
	return func(s *UsernameService) { s.events = p }
}

// NewUsernameService creates a new UsernameService.
func NewUsernameService(store repositories.DocumentStore, log *logger.Logger, opts ...UsernameOption) *UsernameService {
	s := &UsernameService{
		store:          store,
		gen:            NewRandomHandleGenerator(nil),
		log:            log.With("service", "UsernameService"),
		now:            time.Now,
		randomAttempts: DefaultRandomAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func usernameRef(handle string) repositories.DocRef {
	return repositories.Doc(models.CollectionUsernames, handle)
}

func userRef(owner string) repositories.DocRef {
	return repositories.Doc(models.CollectionUsers, owner)
}

func reservationOwner(snap *repositories.Snapshot) (string, error) {
	if !snap.Exists {
		return "", nil
	}
	var r models.UsernameReservation
	if err := snap.DataTo(&r); err != nil {
		return "", err
	}
	return r.Owner, nil
}

// CheckAvailable reports whether raw names a valid handle nobody holds.
// Read failures report false: the answer only drives UI hints and must not
// green-light a name it could not check.
func (s *UsernameService) CheckAvailable(ctx context.Context, raw string) bool {
	handle := Sanitize(raw)
	if handle == "" {
		return false
	}
	snap, err := s.store.Get(ctx, usernameRef(handle))
	if err != nil {
		s.log.Warn("availability check failed", "handle", handle, "error", err)
		return false
	}
	return !snap.Exists
}

// Reserve atomically creates the reservation for handle if nobody holds it.
// Contention and infrastructure failures both report false.
func (s *UsernameService) Reserve(ctx context.Context, handle, owner string) bool {
	if handle == "" || owner == "" {
		return false
	}
	ref := usernameRef(handle)
	var reserved bool
	err := s.store.RunTransaction(ctx, func(tx repositories.Tx) error {
		reserved = false
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		if snap.Exists {
			return nil
		}
		reserved = true
		return tx.Set(ref, models.UsernameReservation{Owner: owner, CreatedAt: s.now()})
	})
	if err != nil {
		s.log.Debug("reservation failed", "handle", handle, "owner", owner, "error", err)
		return false
	}
	return reserved
}

// AssignUsername gives a newly registered owner a handle, preferring
// desiredRaw and falling back to random handles, then to the owner ID, and
// finally to an unreserved "bro<millis>" handle. The chosen handle and the
// optional email are merged into the owner's profile.
//
// The result is meaningful even when an error is returned: the only errors
// are a missing owner and a failure to write the profile.
func (s *UsernameService) AssignUsername(ctx context.Context, owner, desiredRaw, email string) (AssignResult, error) {
	if owner == "" {
		return AssignResult{}, ErrMissingOwner
	}

	res := s.pickHandle(ctx, owner, desiredRaw)

	err := s.store.RunTransaction(ctx, func(tx repositories.Tx) error {
		snap, err := tx.Get(userRef(owner))
		if err != nil {
			return err
		}
		now := s.now()
		fields := map[string]any{
			"username":  res.Username,
			"updatedAt": now,
		}
		if !snap.Exists {
			fields["createdAt"] = now
		}
		if email != "" {
			fields["email"] = email
		}
		return tx.Merge(userRef(owner), fields)
	})
	if err != nil {
		s.log.Error("failed to save assigned username", "owner", owner, "username", res.Username, "error", err)
		return res, fmt.Errorf("failed to save username %s for %s: %w", res.Username, owner, err)
	}

	s.log.Info("username assigned", "owner", owner, "username", res.Username, "outcome", res.Outcome)
	publish(s.events, s.log, EventUsernameAssigned, UsernameEvent{
		Owner:     owner,
		Username:  res.Username,
		WasRandom: res.WasRandom,
		Reserved:  res.Reserved(),
		At:        s.now(),
	})
	return res, nil
}

func (s *UsernameService) pickHandle(ctx context.Context, owner, desiredRaw string) AssignResult {
	if desired := Sanitize(desiredRaw); desired != "" && s.Reserve(ctx, desired, owner) {
		return AssignResult{Username: desired, Outcome: AssignDesired}
	}

	for i := 0; i < s.randomAttempts; i++ {
		candidate := Sanitize(s.gen.Next())
		if candidate == "" {
			continue
		}
		if s.Reserve(ctx, candidate, owner) {
			return AssignResult{Username: candidate, WasRandom: true, Outcome: AssignRandom}
		}
	}

	if fallback := Sanitize(owner); fallback != "" && s.Reserve(ctx, fallback, owner) {
		return AssignResult{Username: fallback, WasRandom: true, Outcome: AssignOwnerID}
	}

	// Nothing could be reserved. The handle below is unique in practice but
	// has no reservation, so the registry cannot keep others off it.
	synthetic := fmt.Sprintf("%s%d", fallbackPrefix, s.now().UnixMilli())
	s.log.Warn("username fallback exhausted, using unreserved handle", "owner", owner, "username", synthetic)
	return AssignResult{Username: synthetic, WasRandom: true, Outcome: AssignDegraded}
}

// UpdateUsername moves owner to a new handle. Releasing the old reservation,
// creating the new one and updating the profile commit together or not at
// all. It returns ErrInvalidUsername or ErrUsernameTaken for the cases the
// user can fix; every other failure wraps ErrUsernameUpdateFailed.
func (s *UsernameService) UpdateUsername(ctx context.Context, owner, desiredRaw string) (RenameResult, error) {
	if owner == "" {
		return RenameResult{}, ErrMissingOwner
	}
	next := Sanitize(desiredRaw)
	if next == "" {
		return RenameResult{}, ErrInvalidUsername
	}

	var (
		result   RenameResult
		previous string
	)
	err := s.store.RunTransaction(ctx, func(tx repositories.Tx) error {
		userSnap, err := tx.Get(userRef(owner))
		if err != nil {
			return err
		}
		current := ""
		if userSnap.Exists {
			var p models.UserProfile
			if err := userSnap.DataTo(&p); err != nil {
				return err
			}
			current = Sanitize(p.Username)
		}
		now := s.now()

		nextSnap, err := tx.Get(usernameRef(next))
		if err != nil {
			return err
		}
		nextOwner, err := reservationOwner(nextSnap)
		if err != nil {
			return err
		}
		if nextSnap.Exists && nextOwner != owner {
			return ErrUsernameTaken
		}

		if current == next {
			// Same handle: make sure the reservation is there and only
			// touch the profile timestamp.
			if !nextSnap.Exists {
				if err := tx.Set(usernameRef(next), models.UsernameReservation{Owner: owner, CreatedAt: now}); err != nil {
					return err
				}
			}
			result, previous = RenameResult{Username: next, Changed: false}, current
			return tx.Merge(userRef(owner), map[string]any{"username": next, "updatedAt": now})
		}

		var release bool
		if current != "" {
			curSnap, err := tx.Get(usernameRef(current))
			if err != nil {
				return err
			}
			curOwner, err := reservationOwner(curSnap)
			if err != nil {
				return err
			}
			release = curSnap.Exists && curOwner == owner
		}

		if release {
			if err := tx.Delete(usernameRef(current)); err != nil {
				return err
			}
		}
		if err := tx.Set(usernameRef(next), models.UsernameReservation{Owner: owner, CreatedAt: now}); err != nil {
			return err
		}
		result, previous = RenameResult{Username: next, Changed: true}, current
		return tx.Merge(userRef(owner), map[string]any{"username": next, "updatedAt": now})
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return RenameResult{}, ErrUsernameTaken
		}
		s.log.Error("username update failed", "owner", owner, "desired", next, "error", err)
		return RenameResult{}, fmt.Errorf("%w: %v", ErrUsernameUpdateFailed, err)
	}

	if result.Changed {
		s.log.Info("username renamed", "owner", owner, "from", previous, "to", result.Username)
		publish(s.events, s.log, EventUsernameRenamed, UsernameEvent{
			Owner:    owner,
			Username: result.Username,
			Previous: previous,
			Reserved: true,
			At:       s.now(),
		})
	}
	return result, nil
}

// GetEmailFromUsername resolves a handle to its owner's email so users can
// sign in by username. Any miss or failure reports false.
func (s *UsernameService) GetEmailFromUsername(ctx context.Context, raw string) (string, bool) {
	handle := Sanitize(raw)
	if handle == "" {
		return "", false
	}
	snap, err := s.store.Get(ctx, usernameRef(handle))
	if err != nil {
		s.log.Warn("username lookup failed", "handle", handle, "error", err)
		return "", false
	}
	owner, err := reservationOwner(snap)
	if err != nil || owner == "" {
		return "", false
	}

	userSnap, err := s.store.Get(ctx, userRef(owner))
	if err != nil || !userSnap.Exists {
		return "", false
	}
	var p models.UserProfile
	if err := userSnap.DataTo(&p); err != nil || p.Email == "" {
		return "", false
	}
	return p.Email, true
}
