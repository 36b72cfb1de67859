package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/tavolo-app/api/internal/domain"
)

func TestUserServiceUpdateProfilePatchesFields(t *testing.T) {
	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	users := newStubUserRepo()

	svc := newTestUserService(t, users, now)
	ctx := context.Background()

	updated, err := svc.UpdateProfile(ctx, UpdateProfileCommand{
		UserID:    "user-buyer",
		Email:     valuePtr("  bruno.verdi@example.com "),
		FirstName: valuePtr(" Bruno "),
		Role:      valuePtr(domain.RoleWaiter),
		ActorID:   "admin-1",
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Email != "bruno.verdi@example.com" {
		t.Fatalf("expected trimmed email, got %q", updated.Email)
	}
	if updated.FirstName != "Bruno" {
		t.Fatalf("expected trimmed first name, got %q", updated.FirstName)
	}
	if updated.Role != domain.RoleWaiter {
		t.Fatalf("expected role waiter, got %s", updated.Role)
	}
	if updated.LastName != "Verdi" {
		t.Fatalf("expected untouched last name, got %q", updated.LastName)
	}
}

func TestUserServiceUpdateProfileValidation(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	users := newStubUserRepo()

	svc := newTestUserService(t, users, now)
	ctx := context.Background()

	if _, err := svc.UpdateProfile(ctx, UpdateProfileCommand{UserID: "user-buyer", Email: valuePtr("not-an-address")}); !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected invalid input for malformed email, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, UpdateProfileCommand{UserID: "user-buyer", FirstName: valuePtr("  ")}); !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected invalid input for blank first name, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, UpdateProfileCommand{UserID: "user-buyer", Role: valuePtr(domain.Role("chef"))}); !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected invalid input for unknown role, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, UpdateProfileCommand{UserID: "user-missing"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserServiceListByRole(t *testing.T) {
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	users := newStubUserRepo()

	svc := newTestUserService(t, users, now)
	ctx := context.Background()

	page, err := svc.ListByRole(ctx, domain.RoleCook, Pagination{PageSize: 10})
	if err != nil {
		t.Fatalf("list by role: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "user-cook" {
		t.Fatalf("expected only the cook, got %+v", page.Items)
	}

	if _, err := svc.ListByRole(ctx, domain.Role("sommelier"), Pagination{}); !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected invalid input for unknown role, got %v", err)
	}
}

func newTestUserService(t *testing.T, users *stubUserRepo, now time.Time) UserService {
	t.Helper()

	svc, err := NewUserService(UserServiceDeps{
		Users: users,
		Clock: func() time.Time {
			return now
		},
	})
	if err != nil {
		t.Fatalf("new user service: %v", err)
	}
	return svc
}
