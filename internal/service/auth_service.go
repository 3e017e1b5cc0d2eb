package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/auth"
	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/repository"
)

// TokenManager issues and verifies bearer tokens.
type TokenManager interface {
	Issue(actor model.Actor) (string, time.Time, error)
	Parse(token string) (model.Actor, error)
}

// Session is the result of a successful login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      model.Actor `json:"user"`
}

// AuthService logs users in and checks bearer tokens.
type AuthService struct {
	users  repository.Users
	tokens TokenManager
	logger *zap.Logger
}

// NewAuthService creates an auth service.
func NewAuthService(users repository.Users, tokens TokenManager, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// Login checks the password and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required: %w", ErrInvalid)
	}

	user, err := s.users.GetByName(ctx, username)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		s.logger.Warn("Login failed", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	actor := user.Actor()
	token, exp, err := s.tokens.Issue(actor)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("User logged in",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)

	return &Session{Token: token, ExpiresAt: exp, User: actor}, nil
}

// Authenticate resolves a bearer token to the actor it was issued for.
func (s *AuthService) Authenticate(token string) (model.Actor, error) {
	if token == "" {
		return model.Actor{}, ErrUnauthenticated
	}

	actor, err := s.tokens.Parse(token)
	if err != nil {
		return model.Actor{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return actor, nil
}
