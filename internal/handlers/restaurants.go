package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tavolo-app/api/internal/platform/httpx"
	"github.com/tavolo-app/api/internal/services"
)

const (
	defaultRestaurantPageSize = 20
	maxRestaurantPageSize     = 100
	maxRestaurantBodySize     = 128 * 1024
)

// RestaurantHandlers exposes restaurant master data and menu endpoints.
type RestaurantHandlers struct {
	restaurants services.RestaurantService
	reviews     services.ReviewService
	audit       services.AuditLogService
}

// NewRestaurantHandlers constructs a new RestaurantHandlers instance.
func NewRestaurantHandlers(restaurants services.RestaurantService, reviews services.ReviewService, audit services.AuditLogService) *RestaurantHandlers {
	return &RestaurantHandlers{
		restaurants: restaurants,
		reviews:     reviews,
		audit:       audit,
	}
}

// Routes registers the /restaurants endpoints.
func (h *RestaurantHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createRestaurant)
	r.Get("/", h.listRestaurants)
	r.Get("/{restaurantID}", h.getRestaurant)
	r.Patch("/{restaurantID}", h.updateRestaurant)
	r.Delete("/{restaurantID}", h.deleteRestaurant)
	r.Put("/{restaurantID}/dishes", h.upsertDish)
	r.Delete("/{restaurantID}/dishes/{dishID}", h.removeDish)
	r.Get("/{restaurantID}/reviews", h.listReviews)
}

type createRestaurantRequest struct {
	Name           string               `json:"name"`
	Address        string               `json:"address"`
	Phone          string               `json:"phone"`
	RestaurateurID string               `json:"restaurateur_id"`
	CookID         string               `json:"cook_id"`
	Tables         int                  `json:"tables"`
	SittingTimes   []sittingTimePayload `json:"sitting_times"`
	Metadata       map[string]any       `json:"metadata"`
}

type updateRestaurantRequest struct {
	Name         *string              `json:"name"`
	Address      *string              `json:"address"`
	Phone        *string              `json:"phone"`
	Tables       *int                 `json:"tables"`
	SittingTimes []sittingTimePayload `json:"sitting_times"`
	Version      int64                `json:"version"`
}

type upsertDishRequest struct {
	Dish    dishPayload `json:"dish"`
	Version int64       `json:"version"`
}

type removeDishRequest struct {
	Version int64 `json:"version"`
}

func (h *RestaurantHandlers) createRestaurant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.restaurants == nil {
		httpx.WriteError(ctx, w, httpx.NewError("restaurant_service_unavailable", "restaurant service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createRestaurantRequest
	if err := decodeJSONBody(r, maxRestaurantBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	restaurant, err := h.restaurants.Create(ctx, services.CreateRestaurantCommand{
		Name:           req.Name,
		Address:        req.Address,
		Phone:          req.Phone,
		RestaurateurID: req.RestaurateurID,
		CookID:         req.CookID,
		Tables:         req.Tables,
		SittingTimes:   sittingTimesFromPayload(req.SittingTimes),
		Metadata:       req.Metadata,
		ActorID:        actorID(r),
	})
	if err != nil {
		writeRestaurantError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, r, "restaurant.create", "restaurants/"+restaurant.ID)
	writeJSONResponse(w, http.StatusCreated, restaurantResponse{Restaurant: buildRestaurantPayload(restaurant)})
}

func (h *RestaurantHandlers) listRestaurants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.restaurants == nil {
		httpx.WriteError(ctx, w, httpx.NewError("restaurant_service_unavailable", "restaurant service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSizeParam(query.Get("page_size"), defaultRestaurantPageSize, maxRestaurantPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.restaurants.List(ctx, services.RestaurantListFilter{
		RestaurateurID: strings.TrimSpace(query.Get("restaurateur_id")),
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		writeRestaurantError(ctx, w, err)
		return
	}

	items := make([]restaurantPayload, 0, len(page.Items))
	for _, restaurant := range page.Items {
		items = append(items, buildRestaurantPayload(restaurant))
	}
	writeJSONResponse(w, http.StatusOK, restaurantListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *RestaurantHandlers) getRestaurant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.restaurants == nil {
		httpx.WriteError(ctx, w, httpx.NewError("restaurant_service_unavailable", "restaurant service unavailable", http.StatusServiceUnavailable))
		return
	}

	restaurantID := strings.TrimSpace(chi.URLParam(r, "restaurantID"))
	if restaurantID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "restaurant id is required", http.StatusBadRequest))
		return
	}

	restaurant, err := h.restaurants.Get(ctx, restaurantID)
	if err != nil {
		writeRestaurantError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, restaurantResponse{Restaurant: buildRestaurantPayload(restaurant)})
}

func (h *RestaurantHandlers) updateRestaurant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.restaurants == nil {
		httpx.WriteError(ctx, w, httpx.NewError("restaurant_service_unavailable", "restaurant service unavailable", http.StatusServiceUnavailable))
		return
	}

	restaurantID := strings.TrimSpace(chi.URLParam(r, "restaurantID"))
	if restaurantID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "restaurant id is required", http.StatusBadRequest))
		return
	}

	var req updateRestaurantRequest
	if err := decodeJSONBody(r, maxRestaurantBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.UpdateRestaurantCommand{
		RestaurantID: restaurantID,
		Name:         req.Name,
		Address:      req.Address,
		Phone:        req.Phone,
		Tables:       req.Tables,
		Version:      req.Version,
		ActorID:      actorID(r),
	}
	if req.SittingTimes != nil {
		cmd.SittingTimes = sittingTimesFromPayload(req.SittingTimes)
	}

	restaurant, err := h.restaurants.Update(ctx, cmd)
	if err != nil {
		writeRestaurantError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, r, "restaurant.update", "restaurants/"+restaurant.ID)
	writeJSONResponse(w, http.StatusOK, restaurantResponse{Restaurant: buildRestaurantPayload(restaurant)})
}

func (h *RestaurantHandlers) deleteRestaurant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.restaurants == nil {
		httpx.WriteError(ctx, w, httpx.NewError("restaurant_service_unavailable", "restaurant service unavailable", http.StatusServiceUnavailable))
		return
	}

	restaurantID := strings.TrimSpace(chi.URLParam(r, "restaurantID"))
	if restaurantID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "restaurant id is required", http.StatusBadRequest))
		return
	}

	if err := h.restaurants.SoftDelete(ctx, services.DeleteRestaurantCommand{
		RestaurantID: restaurantID,
		ActorID:      actorID(r),
	}); err != nil {
		writeRestaurantError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, r, "restaurant.soft_delete", "restaurants/"+restaurantID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *RestaurantHandlers) upsertDish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.restaurants == nil {
		httpx.WriteError(ctx, w, httpx.NewError("restaurant_service_unavailable", "restaurant service unavailable", http.StatusServiceUnavailable))
		return
	}

	restaurantID := strings.TrimSpace(chi.URLParam(r, "restaurantID"))
	if restaurantID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "restaurant id is required", http.StatusBadRequest))
		return
	}

	var req upsertDishRequest
	if err := decodeJSONBody(r, maxRestaurantBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	restaurant, err := h.restaurants.UpsertDish(ctx, services.UpsertDishCommand{
		RestaurantID: restaurantID,
		Dish: services.Dish{
			ID:          strings.TrimSpace(req.Dish.ID),
			Name:        req.Dish.Name,
			Description: req.Dish.Description,
			PriceCents:  req.Dish.PriceCents,
			Currency:    req.Dish.Currency,
			Available:   req.Dish.Available,
		},
		Version: req.Version,
		ActorID: actorID(r),
	})
	if err != nil {
		writeRestaurantError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, r, "restaurant.dish.upsert", "restaurants/"+restaurant.ID)
	writeJSONResponse(w, http.StatusOK, restaurantResponse{Restaurant: buildRestaurantPayload(restaurant)})
}

func (h *RestaurantHandlers) removeDish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.restaurants == nil {
		httpx.WriteError(ctx, w, httpx.NewError("restaurant_service_unavailable", "restaurant service unavailable", http.StatusServiceUnavailable))
		return
	}

	restaurantID := strings.TrimSpace(chi.URLParam(r, "restaurantID"))
	dishID := strings.TrimSpace(chi.URLParam(r, "dishID"))
	if restaurantID == "" || dishID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "restaurant id and dish id are required", http.StatusBadRequest))
		return
	}

	var req removeDishRequest
	if err := decodeJSONBody(r, maxRestaurantBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	restaurant, err := h.restaurants.RemoveDish(ctx, services.RemoveDishCommand{
		RestaurantID: restaurantID,
		DishID:       dishID,
		Version:      req.Version,
		ActorID:      actorID(r),
	})
	if err != nil {
		writeRestaurantError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, r, "restaurant.dish.remove", "restaurants/"+restaurant.ID)
	writeJSONResponse(w, http.StatusOK, restaurantResponse{Restaurant: buildRestaurantPayload(restaurant)})
}

func (h *RestaurantHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	restaurantID := strings.TrimSpace(chi.URLParam(r, "restaurantID"))
	if restaurantID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "restaurant id is required", http.StatusBadRequest))
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSizeParam(query.Get("page_size"), defaultRestaurantPageSize, maxRestaurantPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.reviews.ListByRestaurant(ctx, restaurantID, services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	items := make([]reviewPayload, 0, len(page.Items))
	for _, review := range page.Items {
		items = append(items, buildReviewPayload(review))
	}
	writeJSONResponse(w, http.StatusOK, reviewListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *RestaurantHandlers) recordAudit(ctx context.Context, r *http.Request, action, targetRef string) {
	if h.audit == nil {
		return
	}
	h.audit.Record(ctx, services.RecordAuditCommand{
		Actor:     actorID(r),
		ActorType: "user",
		Action:    action,
		TargetRef: targetRef,
		RequestID: requestID(r),
	})
}

type restaurantListResponse struct {
	Items         []restaurantPayload `json:"items"`
	NextPageToken string              `json:"next_page_token,omitempty"`
}

type restaurantResponse struct {
	Restaurant restaurantPayload `json:"restaurant"`
}

type restaurantPayload struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Address      string               `json:"address,omitempty"`
	Phone        string               `json:"phone,omitempty"`
	Restaurateur userSummaryPayload   `json:"restaurateur"`
	Cook         userSummaryPayload   `json:"cook"`
	SittingTimes []sittingTimePayload `json:"sitting_times,omitempty"`
	Dishes       []dishPayload        `json:"dishes,omitempty"`
	Tables       int                  `json:"tables"`
	Metadata     map[string]any       `json:"metadata,omitempty"`
	Version      int64                `json:"version"`
	CreatedAt    string               `json:"created_at"`
	UpdatedAt    string               `json:"updated_at,omitempty"`
}

type sittingTimePayload struct {
	ID       string `json:"id,omitempty"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Capacity int    `json:"capacity"`
}

type dishPayload struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	Available   bool   `json:"available"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func sittingTimesFromPayload(payloads []sittingTimePayload) []services.SittingTime {
	if payloads == nil {
		return nil
	}
	sittings := make([]services.SittingTime, 0, len(payloads))
	for _, payload := range payloads {
		sittings = append(sittings, services.SittingTime{
			ID:       strings.TrimSpace(payload.ID),
			Start:    payload.Start,
			End:      payload.End,
			Capacity: payload.Capacity,
		})
	}
	return sittings
}

func buildRestaurantPayload(restaurant services.Restaurant) restaurantPayload {
	payload := restaurantPayload{
		ID:           restaurant.ID,
		Name:         restaurant.Name,
		Address:      restaurant.Address,
		Phone:        restaurant.Phone,
		Restaurateur: buildUserSummary(restaurant.Restaurateur),
		Cook:         buildUserSummary(restaurant.Cook),
		Tables:       restaurant.Tables,
		Metadata:     cloneMap(restaurant.Metadata),
		Version:      restaurant.Version,
		CreatedAt:    formatTime(restaurant.CreatedAt),
		UpdatedAt:    formatTime(restaurant.UpdatedAt),
	}
	for _, sitting := range restaurant.SittingTimes {
		payload.SittingTimes = append(payload.SittingTimes, sittingTimePayload{
			ID:       sitting.ID,
			Start:    sitting.Start,
			End:      sitting.End,
			Capacity: sitting.Capacity,
		})
	}
	for _, dish := range restaurant.Dishes {
		payload.Dishes = append(payload.Dishes, dishPayload{
			ID:          dish.ID,
			Name:        dish.Name,
			Description: dish.Description,
			PriceCents:  dish.PriceCents,
			Currency:    strings.ToUpper(dish.Currency),
			Available:   dish.Available,
			CreatedAt:   formatTime(dish.CreatedAt),
			UpdatedAt:   formatTime(dish.UpdatedAt),
		})
	}
	return payload
}

func writeRestaurantError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrRestaurantInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrRestaurantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("restaurant_not_found", "restaurant not found", http.StatusNotFound))
	case errors.Is(err, services.ErrRestaurantConflict):
		httpx.WriteError(ctx, w, httpx.NewError("restaurant_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("restaurant_error", "failed to process restaurant request", http.StatusInternalServerError))
	}
}
