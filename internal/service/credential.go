// Package service holds the operations the CLI calls: registration and
// login, incident management, and data migration.
//
// LAYERING:
//
//	cli (cobra commands) → service (rules, logging) → repository (SQL)
//
// Services take repository interfaces, never *sqlite.DB, so tests can swap
// in an in-memory fake. They never print; every operation returns a value
// or a classified error from internal/apperror and the CLI decides how to
// show it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/intelligence-platform/internal/apperror"
	"github.com/sakif/intelligence-platform/internal/auth"
	"github.com/sakif/intelligence-platform/internal/model"
	"github.com/sakif/intelligence-platform/internal/repository"
)

// CredentialService registers users and checks their passwords.
type CredentialService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewCredentialService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *CredentialService {
	return &CredentialService{
		users:     users,
		passwords: passwords,
		logger:    logger,
	}
}

// Register creates a user with a freshly salted bcrypt hash of password.
// An empty role means model.DefaultRole.
//
// DUPLICATE DETECTION:
//  1. Look the username up and inspect the result. If a row comes back the
//     call fails with apperror.ErrDuplicateUsername before spending time on
//     bcrypt.
//  2. The repository repeats the check inside its write transaction and
//     the UNIQUE constraint backs both. When two registrations race, exactly
//     one insert wins and the other gets the same ErrDuplicateUsername.
//
// On any failure no row is written.
func (s *CredentialService) Register(ctx context.Context, username, password, role string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	role = strings.TrimSpace(role)
	if role == "" {
		role = model.DefaultRole
	}

	existing, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case err == nil && existing != nil:
		s.logger.Info("registration declined",
			slog.String("username", username),
			slog.String("reason", "duplicate username"),
		)
		return nil, apperror.DuplicateUsername(username)
	case err != nil && !errors.Is(err, apperror.ErrUserNotFound):
		s.logger.Error("failed to look up user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrDuplicateUsername) {
			s.logger.Info("registration declined",
				slog.String("username", username),
				slog.String("reason", "duplicate username"),
			)
			return nil, err
		}
		s.logger.Error("failed to create user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("id", user.ID),
		slog.String("username", user.Username),
		slog.String("role", user.Role),
	)
	return user, nil
}

// Login checks password against the stored hash for username. It is
// read-only.
//
//	unknown username → apperror.ErrUserNotFound
//	wrong password   → apperror.ErrInvalidCredentials
//	match            → nil
//
// The two failures stay distinguishable.
func (s *CredentialService) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			s.logger.Info("login failed",
				slog.String("username", username),
				slog.String("reason", "user not found"),
			)
			return err
		}
		s.logger.Error("failed to look up user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("looking up user: %w", err)
	}

	if err := s.passwords.Verify(username, user.PasswordHash, password); err != nil {
		s.logger.Info("login failed",
			slog.String("username", username),
			slog.String("reason", "invalid credentials"),
		)
		return err
	}

	s.logger.Info("user logged in", slog.String("username", username))
	return nil
}
