package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/repositories"
)

var (
	// ErrUserInvalidInput signals the caller provided invalid data.
	ErrUserInvalidInput = errors.New("user: invalid input")
	// ErrUserNotFound indicates the profile could not be located.
	ErrUserNotFound = errors.New("user: not found")
)

var knownRoles = map[domain.Role]struct{}{
	domain.RoleAdmin:        {},
	domain.RoleModerator:    {},
	domain.RoleRestaurateur: {},
	domain.RoleCook:         {},
	domain.RoleWaiter:       {},
	domain.RoleCustomer:     {},
}

// UserServiceDeps bundles collaborators required to construct the user service.
type UserServiceDeps struct {
	Users  repositories.UserRepository
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type userService struct {
	users  repositories.UserRepository
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &userService{
		users: deps.Users,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *userService) Get(ctx context.Context, userID string) (UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	profile, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return UserProfile{}, s.mapRepositoryError(err)
	}
	return profile, nil
}

func (s *userService) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	profile, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return UserProfile{}, s.mapRepositoryError(err)
	}

	if cmd.Email != nil {
		address := strings.TrimSpace(*cmd.Email)
		if _, err := mail.ParseAddress(address); err != nil {
			return UserProfile{}, fmt.Errorf("%w: invalid email address", ErrUserInvalidInput)
		}
		profile.Email = address
	}
	if cmd.FirstName != nil {
		name := strings.TrimSpace(*cmd.FirstName)
		if name == "" {
			return UserProfile{}, fmt.Errorf("%w: first name cannot be empty", ErrUserInvalidInput)
		}
		profile.FirstName = name
	}
	if cmd.LastName != nil {
		name := strings.TrimSpace(*cmd.LastName)
		if name == "" {
			return UserProfile{}, fmt.Errorf("%w: last name cannot be empty", ErrUserInvalidInput)
		}
		profile.LastName = name
	}
	if cmd.Role != nil {
		if _, ok := knownRoles[*cmd.Role]; !ok {
			return UserProfile{}, fmt.Errorf("%w: unknown role %s", ErrUserInvalidInput, *cmd.Role)
		}
		profile.Role = *cmd.Role
	}
	if cmd.RestaurantRef != nil {
		ref := strings.TrimSpace(*cmd.RestaurantRef)
		if ref == "" {
			profile.RestaurantRef = nil
		} else {
			profile.RestaurantRef = &ref
		}
	}
	if cmd.IsActive != nil {
		profile.IsActive = *cmd.IsActive
	}

	updated, err := s.users.UpdateProfile(ctx, profile)
	if err != nil {
		return UserProfile{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

func (s *userService) ListByRole(ctx context.Context, role Role, pager Pagination) (domain.CursorPage[UserProfile], error) {
	if _, ok := knownRoles[role]; !ok {
		return domain.CursorPage[UserProfile]{}, fmt.Errorf("%w: unknown role %s", ErrUserInvalidInput, role)
	}

	page, err := s.users.ListByRole(ctx, role, pager)
	if err != nil {
		return domain.CursorPage[UserProfile]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *userService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}
	return err
}
