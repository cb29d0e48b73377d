// Package auth implements registration, credential checks and the
// session-token lifecycle on top of the storage layer.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"potrosnja/internal/core"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Repository is the subset of the storage layer auth needs.
type Repository interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	GetSessionUser(ctx context.Context, token string) (core.User, error)
	DeleteSession(ctx context.Context, token string) error
}

type Service struct {
	repo Repository
	// sessionTTL zero means sessions never expire until logout.
	sessionTTL time.Duration
}

func NewService(repo Repository, sessionTTL time.Duration) *Service {
	return &Service{repo: repo, sessionTTL: sessionTTL}
}

// HashPassword hashes a plaintext password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Register creates a new account. All four fields are required; a taken
// username reports core.ErrDuplicateUsername.
func (s *Service) Register(ctx context.Context, firstName, lastName, username, password string) (core.User, error) {
	u := core.User{
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Username:  strings.TrimSpace(username),
	}
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if password == "" {
		return core.User{}, core.ErrMissingField
	}

	hash, err := HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	u.PasswordHash = hash

	created, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return core.User{}, err
	}
	return created, nil
}

// Login verifies credentials and opens a session, returning its token.
// An unknown username reports core.ErrUserNotFound; a wrong password
// reports core.ErrInvalidCredentials. The two are distinct so the login
// page can tell the caller which field to fix.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return "", core.ErrInvalidCredentials
	}

	token := uuid.NewString()
	var expiresAt time.Time
	if s.sessionTTL != 0 {
		expiresAt = time.Now().Add(s.sessionTTL)
	}
	if err := s.repo.CreateSession(ctx, token, u.ID, expiresAt); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "User logged in", "user_id", u.ID, "username", u.Username)
	return token, nil
}

// Logout invalidates the session token. Logging out an unknown token is
// not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.repo.DeleteSession(ctx, token)
}

// UserFromToken resolves a session token to its user. Missing, unknown
// and expired tokens all report core.ErrUnauthenticated.
func (s *Service) UserFromToken(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, core.ErrUnauthenticated
	}
	u, err := s.repo.GetSessionUser(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrUnauthenticated) {
			return core.User{}, err
		}
		return core.User{}, fmt.Errorf("resolve session: %w", err)
	}
	return u, nil
}
