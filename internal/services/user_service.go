package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/repositories"
)

const maxFCMTokenLength = 4096

// UserServiceDeps bundles collaborators required to construct the user service.
type UserServiceDeps struct {
	Users  repositories.UserRepository
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type userService struct {
	users  repositories.UserRepository
	logger func(context.Context, string, map[string]any)
}

// NewUserService wires dependencies into a UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &userService{users: deps.Users, logger: logger}, nil
}

func (s *userService) Get(ctx context.Context, caller Caller) (User, error) {
	if err := caller.validate(); err != nil {
		return User{}, err
	}
	return RequireFound(ctx, caller.ID, ErrUserNotFound, s.users.FindByID)
}

// RegisterFCMToken keeps the newest domain.MaxFCMTokens tokens of the caller.
func (s *userService) RegisterFCMToken(ctx context.Context, caller Caller, token string) ([]string, error) {
	if err := caller.validate(); err != nil {
		return nil, err
	}
	token, err := normalizeToken(token)
	if err != nil {
		return nil, err
	}
	tokens, err := s.users.AddFCMToken(ctx, caller.ID, token, domain.MaxFCMTokens)
	if err != nil {
		return nil, mapRepositoryError(err, ErrUserNotFound)
	}
	s.logger(ctx, "user.fcm_token.registered", map[string]any{"userId": caller.ID, "tokens": len(tokens)})
	return tokens, nil
}

func (s *userService) RemoveFCMToken(ctx context.Context, caller Caller, token string) error {
	if err := caller.validate(); err != nil {
		return err
	}
	token, err := normalizeToken(token)
	if err != nil {
		return err
	}
	if err := s.users.RemoveFCMTokens(ctx, caller.ID, []string{token}); err != nil {
		return mapRepositoryError(err, ErrUserNotFound)
	}
	return nil
}

func normalizeToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > maxFCMTokenLength {
		return "", fmt.Errorf("%w: fcm token is required", ErrInvalidInput)
	}
	return token, nil
}
