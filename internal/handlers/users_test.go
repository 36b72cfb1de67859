package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/services"
)

type stubUserService struct {
	getFn        func(context.Context, string) (services.UserProfile, error)
	updateFn     func(context.Context, services.UpdateProfileCommand) (services.UserProfile, error)
	listByRoleFn func(context.Context, services.Role, services.Pagination) (domain.CursorPage[services.UserProfile], error)
}

func (s *stubUserService) Get(ctx context.Context, userID string) (services.UserProfile, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return services.UserProfile{}, errors.New("not implemented")
}

func (s *stubUserService) UpdateProfile(ctx context.Context, cmd services.UpdateProfileCommand) (services.UserProfile, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.UserProfile{}, errors.New("not implemented")
}

func (s *stubUserService) ListByRole(ctx context.Context, role services.Role, pager services.Pagination) (domain.CursorPage[services.UserProfile], error) {
	if s.listByRoleFn != nil {
		return s.listByRoleFn(ctx, role, pager)
	}
	return domain.CursorPage[services.UserProfile]{}, errors.New("not implemented")
}

func userRouter(handler *UserHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/users", handler.Routes)
	return router
}

func TestUserHandlersListByRole(t *testing.T) {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	var capturedRole services.Role
	var capturedPager services.Pagination
	service := &stubUserService{
		listByRoleFn: func(ctx context.Context, role services.Role, pager services.Pagination) (domain.CursorPage[services.UserProfile], error) {
			capturedRole = role
			capturedPager = pager
			return domain.CursorPage[services.UserProfile]{
				Items: []services.UserProfile{{
					ID:        "user-cook",
					Email:     "cook@tavolo.app",
					Role:      domain.RoleCook,
					IsActive:  true,
					CreatedAt: now,
				}},
				NextPageToken: "tok789",
			}, nil
		},
	}

	router := userRouter(NewUserHandlers(service, nil))
	req := httptest.NewRequest(http.MethodGet, "/users?role=Cook&page_size=10&page_token=tok123", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if capturedRole != domain.RoleCook {
		t.Fatalf("expected lowercased role, got %q", capturedRole)
	}
	if capturedPager.PageSize != 10 || capturedPager.PageToken != "tok123" {
		t.Fatalf("unexpected pagination %#v", capturedPager)
	}

	var payload userListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].ID != "user-cook" {
		t.Fatalf("unexpected items %#v", payload.Items)
	}
	if payload.Items[0].Role != "cook" || !payload.Items[0].IsActive {
		t.Fatalf("unexpected profile %#v", payload.Items[0])
	}
	if payload.NextPageToken != "tok789" {
		t.Fatalf("unexpected next page token %q", payload.NextPageToken)
	}
}

func TestUserHandlersListRequiresRole(t *testing.T) {
	router := userRouter(NewUserHandlers(&stubUserService{}, nil))
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestUserHandlersGetNotFound(t *testing.T) {
	service := &stubUserService{
		getFn: func(ctx context.Context, userID string) (services.UserProfile, error) {
			return services.UserProfile{}, services.ErrUserNotFound
		},
	}

	router := userRouter(NewUserHandlers(service, nil))
	req := httptest.NewRequest(http.MethodGet, "/users/user-missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestUserHandlersUpdateProfile(t *testing.T) {
	var captured services.UpdateProfileCommand
	service := &stubUserService{
		updateFn: func(ctx context.Context, cmd services.UpdateProfileCommand) (services.UserProfile, error) {
			captured = cmd
			return services.UserProfile{
				ID:        cmd.UserID,
				Email:     "updated@tavolo.app",
				FirstName: "Giulia",
				Role:      domain.RoleRestaurateur,
				IsActive:  true,
			}, nil
		},
	}
	audit := &captureAuditService{}

	router := userRouter(NewUserHandlers(service, audit))
	body := `{"first_name":"Giulia","role":"Restaurateur","restaurant_ref":"restaurants/rst_1"}`
	req := httptest.NewRequest(http.MethodPatch, "/users/user-1", strings.NewReader(body))
	req.Header.Set("X-Actor-Id", "user-admin")
	req.Header.Set("X-Request-Id", "req-9")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user-1" {
		t.Fatalf("unexpected user id %q", captured.UserID)
	}
	if captured.FirstName == nil || *captured.FirstName != "Giulia" {
		t.Fatalf("unexpected first name %#v", captured.FirstName)
	}
	if captured.Role == nil || *captured.Role != domain.RoleRestaurateur {
		t.Fatalf("expected lowercased role pointer, got %#v", captured.Role)
	}
	if captured.Email != nil || captured.LastName != nil {
		t.Fatalf("expected omitted fields to stay nil, got %#v", captured)
	}
	if captured.RestaurantRef == nil || *captured.RestaurantRef != "restaurants/rst_1" {
		t.Fatalf("unexpected restaurant ref %#v", captured.RestaurantRef)
	}
	if captured.ActorID != "user-admin" {
		t.Fatalf("expected actor from header, got %q", captured.ActorID)
	}

	var payload userResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.User.Email != "updated@tavolo.app" || payload.User.Role != "restaurateur" {
		t.Fatalf("unexpected response %#v", payload.User)
	}

	if len(audit.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(audit.records))
	}
	if audit.records[0].Action != "user.profile.update" || audit.records[0].TargetRef != "users/user-1" {
		t.Fatalf("unexpected audit record %#v", audit.records[0])
	}
}

func TestUserHandlersUpdateInvalidInput(t *testing.T) {
	service := &stubUserService{
		updateFn: func(ctx context.Context, cmd services.UpdateProfileCommand) (services.UserProfile, error) {
			return services.UserProfile{}, services.ErrUserInvalidInput
		},
	}

	router := userRouter(NewUserHandlers(service, nil))
	req := httptest.NewRequest(http.MethodPatch, "/users/user-1", strings.NewReader(`{"role":"astronaut"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestUserHandlersServiceUnavailable(t *testing.T) {
	router := userRouter(NewUserHandlers(nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/users/user-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
