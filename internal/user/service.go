package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	coreuser "github.com/frahmantamala/event-permission/internal/core/user"
	userDatamodel "github.com/frahmantamala/event-permission/internal/core/datamodel/user"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	GetRole(ctx context.Context, id string) (string, error)
	Create(ctx context.Context, u *userDatamodel.User) error
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return FromDataModel(row), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	row, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return FromDataModel(row), nil
}

// RoleOf reads the role straight from the users table. An unknown role
// value is reported as an error so callers fail closed.
func (s *Service) RoleOf(ctx context.Context, id string) (coreuser.Role, error) {
	raw, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return "", err
	}
	role, ok := coreuser.ParseRole(raw)
	if !ok {
		s.logger.Warn("user has unrecognised role", "user_id", id, "role", raw)
		return "", fmt.Errorf("unrecognised role %q", raw)
	}
	return role, nil
}

// Create validates the role invariant before inserting.
func (s *Service) Create(ctx context.Context, u *User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := u.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, ToDataModel(u)); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return ErrEmailTaken
		}
		s.logger.Error("failed to create user", "error", err, "email", u.Email)
		return fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("user registered", "user_id", u.ID, "role", u.Role)
	return nil
}
