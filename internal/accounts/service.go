// Package accounts owns signup, login and token-to-user resolution.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/carshare/internal/auth"
	"github.com/geocoder89/carshare/internal/domain/user"
	"github.com/geocoder89/carshare/internal/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
	Verify(token string) (*auth.Claims, error)
}

type Service struct {
	users  UserStore
	tokens TokenIssuer
}

func NewService(users UserStore, tokens TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

// SignUp registers a user and issues a token for the new account.
func (s *Service) SignUp(ctx context.Context, req user.SignUpRequest) (user.User, string, error) {
	email := user.NormalizeEmail(req.Email)

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return user.User{}, "", user.ErrDuplicateEmail
	case !errors.Is(err, user.ErrNotFound):
		return user.User{}, "", fmt.Errorf("lookup email: %w", err)
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return user.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	// the store still enforces uniqueness for racing signups
	u, err := s.users.Create(ctx, strings.TrimSpace(req.Name), email, hash)
	if err != nil {
		return user.User{}, "", err
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return user.User{}, "", fmt.Errorf("issue token: %w", err)
	}

	return u, token, nil
}

// Authenticate checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, req user.LoginRequest) (user.User, string, error) {
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			security.BurnCompare(req.Password)
			return user.User{}, "", ErrInvalidCredentials
		}
		return user.User{}, "", fmt.Errorf("lookup email: %w", err)
	}

	if err := security.CheckPassword(u.PasswordHash, req.Password); err != nil {
		return user.User{}, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return user.User{}, "", fmt.Errorf("issue token: %w", err)
	}

	return u, token, nil
}

// Resolve maps a bearer token to its live user. Errors are auth.ErrExpired,
// auth.ErrInvalidToken, user.ErrNotFound or a storage failure.
func (s *Service) Resolve(ctx context.Context, token string) (user.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return user.User{}, err
	}

	return s.users.GetByID(ctx, claims.UserID())
}
