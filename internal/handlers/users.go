package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/platform/httpx"
	"github.com/tavolo-app/api/internal/services"
)

const (
	defaultUserPageSize = 20
	maxUserPageSize     = 100
	maxUserBodySize     = 32 * 1024
)

// UserHandlers exposes user profile endpoints.
type UserHandlers struct {
	users services.UserService
	audit services.AuditLogService
}

// NewUserHandlers constructs a new UserHandlers instance.
func NewUserHandlers(users services.UserService, audit services.AuditLogService) *UserHandlers {
	return &UserHandlers{users: users, audit: audit}
}

// Routes registers the /users endpoints.
func (h *UserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listUsers)
	r.Get("/{userID}", h.getUser)
	r.Patch("/{userID}", h.updateProfile)
}

type updateProfileRequest struct {
	Email         *string `json:"email"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Role          *string `json:"role"`
	RestaurantRef *string `json:"restaurant_ref"`
	IsActive      *bool   `json:"is_active"`
}

func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	role := strings.TrimSpace(query.Get("role"))
	if role == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "role query parameter is required", http.StatusBadRequest))
		return
	}
	pageSize, err := parsePageSizeParam(query.Get("page_size"), defaultUserPageSize, maxUserPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.users.ListByRole(ctx, domain.Role(strings.ToLower(role)), services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	items := make([]userProfilePayload, 0, len(page.Items))
	for _, profile := range page.Items {
		items = append(items, buildUserProfilePayload(profile))
	}
	writeJSONResponse(w, http.StatusOK, userListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user id is required", http.StatusBadRequest))
		return
	}

	profile, err := h.users.Get(ctx, userID)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, userResponse{User: buildUserProfilePayload(profile)})
}

func (h *UserHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user id is required", http.StatusBadRequest))
		return
	}

	var req updateProfileRequest
	if err := decodeJSONBody(r, maxUserBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.UpdateProfileCommand{
		UserID:        userID,
		Email:         req.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		RestaurantRef: req.RestaurantRef,
		IsActive:      req.IsActive,
		ActorID:       actorID(r),
	}
	if req.Role != nil {
		role := domain.Role(strings.ToLower(strings.TrimSpace(*req.Role)))
		cmd.Role = &role
	}

	profile, err := h.users.UpdateProfile(ctx, cmd)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	if h.audit != nil {
		h.audit.Record(ctx, services.RecordAuditCommand{
			Actor:     actorID(r),
			ActorType: "user",
			Action:    "user.profile.update",
			TargetRef: "users/" + profile.ID,
			RequestID: requestID(r),
		})
	}
	writeJSONResponse(w, http.StatusOK, userResponse{User: buildUserProfilePayload(profile)})
}

type userListResponse struct {
	Items         []userProfilePayload `json:"items"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

type userResponse struct {
	User userProfilePayload `json:"user"`
}

type userProfilePayload struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	Role          string         `json:"role"`
	RestaurantRef *string        `json:"restaurant_ref,omitempty"`
	IsActive      bool           `json:"is_active"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
}

func buildUserProfilePayload(profile services.UserProfile) userProfilePayload {
	return userProfilePayload{
		ID:            profile.ID,
		Email:         profile.Email,
		FirstName:     profile.FirstName,
		LastName:      profile.LastName,
		Role:          string(profile.Role),
		RestaurantRef: cloneStringPointer(profile.RestaurantRef),
		IsActive:      profile.IsActive,
		Metadata:      cloneMap(profile.Metadata),
		CreatedAt:     formatTime(profile.CreatedAt),
		UpdatedAt:     formatTime(profile.UpdatedAt),
	}
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "failed to process user request", http.StatusInternalServerError))
	}
}
