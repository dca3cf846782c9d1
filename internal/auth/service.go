package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/tronix365/sensegrid/internal/infrastructure/logging"
	"github.com/tronix365/sensegrid/internal/validate"
)

// Service implements registration, login and bearer-token resolution.
type Service struct {
	users  UserRepository
	hasher *PasswordHasher
	tokens *TokenService
	logger *logging.Logger
}

// NewService wires the auth service.
func NewService(users UserRepository, hasher *PasswordHasher, tokens *TokenService, logger *logging.Logger) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger.With("component", "auth"),
	}
}

// Tokens exposes the token service for building login responses.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Register creates an account. The email must be unused.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := NormaliseEmail(in.Email)
	if err := validate.Email("email", email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        email,
		PasswordHash: hash,
		FullName:     in.FullName,
		PhoneNumber:  in.PhoneNumber,
		Preferences:  map[string]any{},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login checks credentials and returns the user. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Warn("login failed", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Issue signs a session token for user and wraps it in a TokenResponse.
func (s *Service) Issue(user *User) (TokenResponse, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return TokenResponse{}, err
	}
	return s.tokens.Response(token), nil
}

// Authenticate verifies a bearer token and resolves it to a live user.
// A valid token whose subject no longer exists returns ErrUnknownSubject.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, fmt.Errorf("resolving token subject: %w", err)
	}
	return user, nil
}
