package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hisaab/internal/core"
	"hisaab/internal/guard"
	"hisaab/internal/storage"
)

// ErrInvalidCredentials is returned for both unknown emails and wrong
// passwords.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", core.ErrUnauthorized)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

type UserService struct {
	store  storage.UserStore
	guard  *guard.Guard
	tokens TokenIssuer
}

func NewUserService(store storage.UserStore, g *guard.Guard, tokens TokenIssuer) *UserService {
	if g == nil {
		g = guard.New(nil)
	}
	return &UserService{store: store, guard: g, tokens: tokens}
}

func (s *UserService) Register(ctx context.Context, username, email, password string) (core.User, error) {
	u := core.User{
		Username: strings.TrimSpace(username),
		Email:    strings.ToLower(strings.TrimSpace(email)),
	}
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	hash, err := s.guard.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	u.PasswordHash = hash

	saved, err := s.store.SaveUser(ctx, u)
	if errors.Is(err, core.ErrConflict) {
		return core.User{}, fmt.Errorf("%w: email is already registered", core.ErrConflict)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("save user: %w", err)
	}
	return saved, nil
}

// Login checks the credentials and returns the user with a fresh token.
func (s *UserService) Login(ctx context.Context, email, password string) (core.User, string, error) {
	u, err := s.store.FindUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, storage.ErrNotFound) {
		s.guard.CheckPassword("", password)
		return core.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, "", err
	}
	if !s.guard.CheckPassword(u.PasswordHash, password) {
		return core.User{}, "", ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(u.ID)
	if err != nil {
		return core.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return u, token, nil
}

func (s *UserService) Get(ctx context.Context, id string) (core.User, error) {
	return s.store.FindUser(ctx, id)
}
