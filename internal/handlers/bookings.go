package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/platform/httpx"
	"github.com/tavolo-app/api/internal/services"
)

const (
	defaultBookingPageSize = 20
	maxBookingPageSize     = 100
	maxBookingBodySize     = 32 * 1024
)

var validBookingStatuses = map[domain.BookingStatus]struct{}{
	domain.BookingStatusActive:    {},
	domain.BookingStatusCancelled: {},
}

// BookingHandlers exposes the reservation lifecycle endpoints.
type BookingHandlers struct {
	bookings services.BookingService
	audit    services.AuditLogService
	limiter  rateLimiter
}

// NewBookingHandlers constructs a new BookingHandlers instance.
func NewBookingHandlers(bookings services.BookingService, audit services.AuditLogService) *BookingHandlers {
	return &BookingHandlers{
		bookings: bookings,
		audit:    audit,
		limiter:  newActorRateLimiter(30, time.Minute, nil),
	}
}

// Routes registers the /bookings endpoints.
func (h *BookingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createBooking)
	r.Get("/", h.listBookings)
	r.Get("/{bookingID}", h.getBooking)
	r.Post("/{bookingID}:cancel", h.cancelBooking)
	r.Post("/{bookingID}:reactivate", h.reactivateBooking)
	r.Delete("/{bookingID}", h.deleteBooking)
}

type createBookingRequest struct {
	RestaurantID  string         `json:"restaurant_id"`
	CustomerID    string         `json:"customer_id"`
	SittingTimeID string         `json:"sitting_time_id"`
	Date          string         `json:"date"`
	Seats         int            `json:"seats"`
	Metadata      map[string]any `json:"metadata"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandlers) createBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.bookings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking service unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(actorID(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many booking requests", http.StatusTooManyRequests))
		return
	}

	var req createBookingRequest
	if err := decodeJSONBody(r, maxBookingBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	date, err := parseTimeParam(strings.TrimSpace(req.Date))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must be a valid RFC3339 timestamp", http.StatusBadRequest))
		return
	}

	booking, err := h.bookings.Create(ctx, services.CreateBookingCommand{
		RestaurantID:  req.RestaurantID,
		CustomerID:    req.CustomerID,
		SittingTimeID: req.SittingTimeID,
		Date:          date,
		Seats:         req.Seats,
		Metadata:      req.Metadata,
		ActorID:       actorID(r),
	})
	if err != nil {
		writeBookingError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, r, "booking.create", "bookings/"+booking.ID)
	writeJSONResponse(w, http.StatusCreated, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) listBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.bookings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()

	statuses := make([]domain.BookingStatus, 0)
	for _, raw := range parseFilterValues(query["status"]) {
		status := domain.BookingStatus(strings.ToLower(raw))
		if _, ok := validBookingStatuses[status]; !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status filter contains an unknown value", http.StatusBadRequest))
			return
		}
		statuses = append(statuses, status)
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("date_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("date_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
	}

	pageSize, err := parsePageSizeParam(query.Get("page_size"), defaultBookingPageSize, maxBookingPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.bookings.List(ctx, services.BookingListFilter{
		CustomerID:   strings.TrimSpace(query.Get("customer_id")),
		RestaurantID: strings.TrimSpace(query.Get("restaurant_id")),
		Status:       statuses,
		DateRange:    dateRange,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		writeBookingError(ctx, w, err)
		return
	}

	items := make([]bookingPayload, 0, len(page.Items))
	for _, booking := range page.Items {
		items = append(items, buildBookingPayload(booking))
	}
	writeJSONResponse(w, http.StatusOK, bookingListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *BookingHandlers) getBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.bookings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking service unavailable", http.StatusServiceUnavailable))
		return
	}

	bookingID := strings.TrimSpace(chi.URLParam(r, "bookingID"))
	if bookingID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "booking id is required", http.StatusBadRequest))
		return
	}

	booking, err := h.bookings.Get(ctx, bookingID)
	if err != nil {
		writeBookingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.bookings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking service unavailable", http.StatusServiceUnavailable))
		return
	}

	bookingID := strings.TrimSpace(chi.URLParam(r, "bookingID"))
	if bookingID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "booking id is required", http.StatusBadRequest))
		return
	}

	var req cancelBookingRequest
	if err := decodeJSONBody(r, maxBookingBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	booking, err := h.bookings.Cancel(ctx, services.CancelBookingCommand{
		BookingID: bookingID,
		Reason:    req.Reason,
		ActorID:   actorID(r),
	})
	if err != nil {
		writeBookingError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, r, "booking.cancel", "bookings/"+booking.ID)
	writeJSONResponse(w, http.StatusOK, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) reactivateBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.bookings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking service unavailable", http.StatusServiceUnavailable))
		return
	}

	bookingID := strings.TrimSpace(chi.URLParam(r, "bookingID"))
	if bookingID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "booking id is required", http.StatusBadRequest))
		return
	}

	booking, err := h.bookings.Reactivate(ctx, services.ReactivateBookingCommand{
		BookingID: bookingID,
		ActorID:   actorID(r),
	})
	if err != nil {
		writeBookingError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, r, "booking.reactivate", "bookings/"+booking.ID)
	writeJSONResponse(w, http.StatusOK, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) deleteBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.bookings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking service unavailable", http.StatusServiceUnavailable))
		return
	}

	bookingID := strings.TrimSpace(chi.URLParam(r, "bookingID"))
	if bookingID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "booking id is required", http.StatusBadRequest))
		return
	}

	if err := h.bookings.SoftDelete(ctx, services.DeleteBookingCommand{
		BookingID: bookingID,
		ActorID:   actorID(r),
	}); err != nil {
		writeBookingError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, r, "booking.soft_delete", "bookings/"+bookingID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandlers) recordAudit(ctx context.Context, r *http.Request, action, targetRef string) {
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

type bookingListResponse struct {
	Items         []bookingPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type bookingResponse struct {
	Booking bookingPayload `json:"booking"`
}

type bookingPayload struct {
	ID             string                   `json:"id"`
	Restaurant     bookingRestaurantPayload `json:"restaurant"`
	Customer       userSummaryPayload       `json:"customer"`
	Date           string                   `json:"date"`
	Seats          int                      `json:"seats"`
	SittingTimeRef string                   `json:"sitting_time_ref"`
	Status         string                   `json:"status"`
	CancelReason   *string                  `json:"cancel_reason,omitempty"`
	Metadata       map[string]any           `json:"metadata,omitempty"`
	Version        int64                    `json:"version"`
	CreatedAt      string                   `json:"created_at"`
	UpdatedAt      string                   `json:"updated_at,omitempty"`
	CancelledAt    string                   `json:"cancelled_at,omitempty"`
}

type bookingRestaurantPayload struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Restaurateur userSummaryPayload `json:"restaurateur"`
}

func buildBookingPayload(booking services.Booking) bookingPayload {
	return bookingPayload{
		ID: booking.ID,
		Restaurant: bookingRestaurantPayload{
			ID:           booking.Restaurant.ID,
			Name:         booking.Restaurant.Name,
			Restaurateur: buildUserSummary(booking.Restaurant.Restaurateur),
		},
		Customer:       buildUserSummary(booking.Customer),
		Date:           formatTime(booking.Date),
		Seats:          booking.Seats,
		SittingTimeRef: booking.SittingTimeRef,
		Status:         string(booking.Status),
		CancelReason:   cloneStringPointer(booking.CancelReason),
		Metadata:       cloneMap(booking.Metadata),
		Version:        booking.Version,
		CreatedAt:      formatTime(booking.CreatedAt),
		UpdatedAt:      formatTime(booking.UpdatedAt),
		CancelledAt:    formatTime(pointerTime(booking.CancelledAt)),
	}
}

func writeBookingError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrBookingCapacityExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("booking_capacity_exceeded", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrBookingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrBookingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("booking_not_found", "booking not found", http.StatusNotFound))
	case errors.Is(err, services.ErrBookingInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("booking_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrBookingConflict):
		httpx.WriteError(ctx, w, httpx.NewError("booking_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("booking_error", "failed to process booking request", http.StatusInternalServerError))
	}
}
