package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"gymbro/internal/logger"
	"gymbro/internal/models"
	"gymbro/internal/repositories"
)

// ErrInvalidCredentials hides whether the account or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// IdentityService registers accounts and issues the tokens that carry the
// owner ID to every other endpoint.
type IdentityService struct {
	identityRepo  repositories.IdentityRepository
	usernames     *UsernameService
	jwtSecret     []byte
	tokenDuration time.Duration // Duration for which JWT is valid
	log           *logger.Logger
}

// NewIdentityService creates a new IdentityService. usernames resolves
// username logins and may be nil, in which case only emails are accepted.
func NewIdentityService(identityRepo repositories.IdentityRepository, usernames *UsernameService, jwtSecret string, log *logger.Logger) *IdentityService {
	return &IdentityService{
		identityRepo:  identityRepo,
		usernames:     usernames,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour,
		log:           log.With("service", "IdentityService"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account with a bcrypt-hashed password.
func (s *IdentityService) Register(email, password string) (*models.Identity, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	identity := &models.Identity{
		Email:        normalizeEmail(email),
		PasswordHash: string(hashed),
	}
	if err := s.identityRepo.Create(identity); err != nil {
		if errors.Is(err, repositories.ErrEmailTaken) {
			return nil, repositories.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to register identity: %w", err)
	}
	s.log.Info("identity registered", "id", identity.ID)
	return identity, nil
}

// Authenticate checks the password of the account named by login, which is
// an email or a username, and returns a signed token.
func (s *IdentityService) Authenticate(ctx context.Context, login, password string) (string, *models.Identity, error) {
	email := normalizeEmail(login)
	if !strings.Contains(email, "@") {
		if s.usernames == nil {
			return "", nil, ErrInvalidCredentials
		}
		resolved, ok := s.usernames.GetEmailFromUsername(ctx, login)
		if !ok {
			return "", nil, ErrInvalidCredentials
		}
		email = normalizeEmail(resolved)
	}

	identity, err := s.identityRepo.GetByEmail(email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(identity)
	if err != nil {
		return "", nil, err
	}
	return token, identity, nil
}

// IssueToken signs an HS256 token for identity.
func (s *IdentityService) IssueToken(identity *models.Identity) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": identity.ID,
		"exp":     now.Add(s.tokenDuration).Unix(),
		"iat":     now.Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT token, returning the owner ID it carries.
func (s *IdentityService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		s.log.Debug("token validation failed", "error", err)
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	owner, _ := claims["user_id"].(string)
	if owner == "" {
		return "", fmt.Errorf("invalid token: missing user_id")
	}
	return owner, nil
}
