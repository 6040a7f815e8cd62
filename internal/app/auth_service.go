// Package app holds the application services and business logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"trainschedule/internal/domain"
)

var (
	// ErrInvalidCredentials indicates that the provided email or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken indicates that an account with the email already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// MinPasswordLen is the shortest password Register accepts.
const MinPasswordLen = 8

// AuthService handles registration, login and the refresh token lifecycle.
type AuthService struct {
	users      domain.UserRepository
	sessions   domain.SessionRepository
	tokens     *TokenIssuer
	bcryptCost int
}

// NewAuthService creates a new authentication service. A bcryptCost of zero
// selects bcrypt.DefaultCost.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, tokens *TokenIssuer, bcryptCost int) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		bcryptCost: bcryptCost,
	}
}

// Register creates an account and signs the user in.
func (s *AuthService) Register(ctx context.Context, email, password string) (domain.TokenPair, *domain.User, error) {
	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return domain.TokenPair{}, nil, domain.Reject(domain.ReasonInvalidFormat, "email", "invalid email address")
	}
	if err := checkPassword(password); err != nil {
		return domain.TokenPair{}, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return domain.TokenPair{}, nil, err
	}

	user, err := s.users.Create(ctx, email, string(hash))
	if errors.Is(err, domain.ErrDuplicate) {
		return domain.TokenPair{}, nil, ErrEmailTaken
	}
	if err != nil {
		return domain.TokenPair{}, nil, err
	}

	pair, err := s.startSession(ctx, user)
	if err != nil {
		return domain.TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Login verifies email and password and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.TokenPair, *domain.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil || user == nil {
		return domain.TokenPair{}, nil, ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		return domain.TokenPair{}, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.TokenPair{}, nil, ErrInvalidCredentials
	}

	pair, err := s.startSession(ctx, user)
	if err != nil {
		return domain.TokenPair{}, nil, err
	}
	return pair, user, nil
}

// LoginWithEmail issues a token pair for a user already authenticated by an
// external identity provider, provisioning the account on first sight.
func (s *AuthService) LoginWithEmail(ctx context.Context, email string) (domain.TokenPair, *domain.User, error) {
	email = normalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		// SSO accounts have no password and can only sign in through the provider.
		user, err = s.users.Create(ctx, email, "")
		if errors.Is(err, domain.ErrDuplicate) {
			user, err = s.users.GetByEmail(ctx, email)
		}
	}
	if err != nil {
		return domain.TokenPair{}, nil, err
	}

	pair, err := s.startSession(ctx, user)
	if err != nil {
		return domain.TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// token's session is deleted so it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return domain.TokenPair{}, ErrInvalidToken
	}

	sess, err := s.sessions.Get(ctx, claims.ID)
	if err != nil || sess == nil || sess.UserID != claims.Subject {
		return domain.TokenPair{}, ErrInvalidToken
	}
	if err := s.sessions.Delete(ctx, sess.ID); errors.Is(err, domain.ErrNotFound) {
		// Lost a race with another refresh of the same token.
		return domain.TokenPair{}, ErrInvalidToken
	} else if err != nil {
		return domain.TokenPair{}, fmt.Errorf("rotate session: %w", err)
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return domain.TokenPair{}, ErrInvalidToken
	}
	return s.startSession(ctx, user)
}

// Logout revokes the refresh token's session. It never fails: a token that
// cannot be parsed or is already revoked leaves nothing to do.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	log := zerolog.Ctx(ctx)
	if refreshToken == "" {
		return
	}
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		log.Debug().Err(err).Msg("logout with invalid refresh token")
		return
	}
	if err := s.sessions.Delete(ctx, claims.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Warn().Err(err).Str("session", claims.ID).Msg("failed to delete refresh session")
	}
}

// Authenticate verifies an access token and returns its subject.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return s.CurrentUser(ctx, claims.Subject)
}

// CurrentUser loads the user behind an authenticated request.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// PruneExpiredSessions removes refresh sessions past their expiry.
func (s *AuthService) PruneExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx)
}

// RefreshTTL reports how long an issued refresh token stays valid.
func (s *AuthService) RefreshTTL() time.Duration { return s.tokens.RefreshTTL() }

func (s *AuthService) startSession(ctx context.Context, user *domain.User) (domain.TokenPair, error) {
	pair, sess, err := s.tokens.Issue(user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store session: %w", err)
	}
	return pair, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkPassword(pw string) error {
	if len([]rune(pw)) < MinPasswordLen {
		return domain.Reject(domain.ReasonInvalidFormat, "password", "must be at least %d characters", MinPasswordLen)
	}
	var digit, upper, lower bool
	for _, r := range pw {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		}
	}
	if !digit || !upper || !lower {
		return domain.Reject(domain.ReasonInvalidFormat, "password", "must contain an upper-case letter, a lower-case letter and a digit")
	}
	return nil
}
