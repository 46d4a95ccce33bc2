// Package accounts registers users and issues session tokens.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/example/streamsite/internal/platform/auth"
	"github.com/example/streamsite/services/site/internal/domain"
	"github.com/example/streamsite/services/site/internal/store"
)

const minPasswordLen = 8

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong
// password; callers cannot tell which.
var ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthenticated)

type Service struct {
	Users  store.UserStore
	Issuer auth.Issuer
	// Cost defaults to bcrypt.DefaultCost.
	Cost int
	Now  func() time.Time
}

// Session is a user with a freshly signed token.
type Session struct {
	User      domain.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func (s *Service) Register(ctx context.Context, username, email, password string) (Session, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if !usernameRe.MatchString(username) {
		return Session{}, fmt.Errorf("%w: username must be 3-32 letters, digits or underscores", domain.ErrInvalidInput)
	}
	if len(email) > 254 || !emailRe.MatchString(email) {
		return Session{}, fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return Session{}, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.Users.CreateUser(ctx, domain.User{
		Username: username, Email: email, PasswordHash: string(hash),
		Settings: domain.DefaultSettings(),
	})
	if err != nil {
		return Session{}, err
	}
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}
	u, err := s.Users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(u)
}

func (s *Service) session(u domain.User) (Session, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	token, exp, err := s.Issuer.NewToken(u.ID, u.Username, now)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	u.PasswordHash = ""
	u.EnsureMaps()
	return Session{User: u, Token: token, ExpiresAt: exp}, nil
}

func (s *Service) cost() int {
	if s.Cost > 0 {
		return s.Cost
	}
	return bcrypt.DefaultCost
}
