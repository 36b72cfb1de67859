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
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
)

var validOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusCreated:         {},
	domain.OrderStatusPaid:            {},
	domain.OrderStatusPreparing:       {},
	domain.OrderStatusAwaitingPayment: {},
	domain.OrderStatusCompleted:       {},
}

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	orders  services.OrderService
	reviews services.ReviewService
	audit   services.AuditLogService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, reviews services.ReviewService, audit services.AuditLogService) *OrderHandlers {
	return &OrderHandlers{
		orders:  orders,
		reviews: reviews,
		audit:   audit,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/{orderID}/review", h.getOrderReview)
	r.Post("/{orderID}:pay", h.transition(func(svc services.OrderService) transitionFunc { return svc.Pay }, "order.pay"))
	r.Post("/{orderID}:prepare", h.transition(func(svc services.OrderService) transitionFunc { return svc.Prepare }, "order.prepare"))
	r.Post("/{orderID}:await-payment", h.transition(func(svc services.OrderService) transitionFunc { return svc.AwaitPayment }, "order.await_payment"))
	r.Post("/{orderID}:complete", h.transition(func(svc services.OrderService) transitionFunc { return svc.Complete }, "order.complete"))
	r.Delete("/{orderID}", h.deleteOrder)
}

type transitionFunc func(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error)

type createOrderRequest struct {
	RestaurantID string                  `json:"restaurant_id"`
	BuyerID      string                  `json:"buyer_id"`
	TableID      string                  `json:"table_id"`
	Lines        []orderLineInputPayload `json:"lines"`
	Metadata     map[string]any          `json:"metadata"`
}

type orderLineInputPayload struct {
	DishID   string `json:"dish_id"`
	Quantity int    `json:"quantity"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	lines := make([]services.OrderLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, services.OrderLineInput{
			DishID:   line.DishID,
			Quantity: line.Quantity,
		})
	}

	order, err := h.orders.Create(ctx, services.CreateOrderCommand{
		RestaurantID: req.RestaurantID,
		BuyerID:      req.BuyerID,
		TableID:      req.TableID,
		Lines:        lines,
		Metadata:     req.Metadata,
		ActorID:      actorID(r),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, r, "order.create", "orders/"+order.ID)
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()

	statuses := make([]domain.OrderStatus, 0)
	for _, raw := range parseFilterValues(query["status"]) {
		status := domain.OrderStatus(strings.ToLower(raw))
		if _, ok := validOrderStatuses[status]; !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status filter contains an unknown value", http.StatusBadRequest))
			return
		}
		statuses = append(statuses, status)
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
	}

	pageSize, err := parsePageSizeParam(query.Get("page_size"), defaultOrderPageSize, maxOrderPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.List(ctx, services.OrderListFilter{
		BuyerID:      strings.TrimSpace(query.Get("buyer_id")),
		RestaurantID: strings.TrimSpace(query.Get("restaurant_id")),
		Status:       statuses,
		DateRange:    dateRange,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Get(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getOrderReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	review, err := h.reviews.GetByOrder(ctx, orderID)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, reviewResponse{Review: buildReviewPayload(review)})
}

func (h *OrderHandlers) transition(pick func(services.OrderService) transitionFunc, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if h.orders == nil {
			httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
			return
		}

		orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
		if orderID == "" {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
			return
		}

		order, err := pick(h.orders)(ctx, services.OrderTransitionCommand{
			OrderID: orderID,
			ActorID: actorID(r),
		})
		if err != nil {
			writeOrderError(ctx, w, err)
			return
		}

		h.recordAudit(ctx, r, action, "orders/"+order.ID)
		writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
	}
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	if err := h.orders.SoftDelete(ctx, services.DeleteOrderCommand{
		OrderID: orderID,
		ActorID: actorID(r),
	}); err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, r, "order.soft_delete", "orders/"+orderID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandlers) recordAudit(ctx context.Context, r *http.Request, action, targetRef string) {
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

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Restaurant  string `json:"restaurant"`
	Buyer       string `json:"buyer"`
	Status      string `json:"status"`
	Currency    string `json:"currency"`
	Total       int64  `json:"total"`
	CreatedAt   string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID          string                 `json:"id"`
	OrderNumber string                 `json:"order_number"`
	TableID     string                 `json:"table_id,omitempty"`
	Restaurant  orderRestaurantPayload `json:"restaurant"`
	Buyer       userSummaryPayload     `json:"buyer"`
	Lines       []orderLinePayload     `json:"lines"`
	Status      string                 `json:"status"`
	TotalCents  int64                  `json:"total_cents"`
	Currency    string                 `json:"currency"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
	Version     int64                  `json:"version"`
	CreatedAt   string                 `json:"created_at"`
	UpdatedAt   string                 `json:"updated_at,omitempty"`
	PaidAt      string                 `json:"paid_at,omitempty"`
	CompletedAt string                 `json:"completed_at,omitempty"`
}

type orderRestaurantPayload struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Restaurateur userSummaryPayload `json:"restaurateur"`
	Cook         userSummaryPayload `json:"cook"`
}

type orderLinePayload struct {
	DishRef   string `json:"dish_ref"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Total     int64  `json:"total"`
}

type userSummaryPayload struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Restaurant:  order.Restaurant.Name,
		Buyer:       order.Buyer.ID,
		Status:      string(order.Status),
		Currency:    strings.ToUpper(order.Currency),
		Total:       order.TotalCents,
		CreatedAt:   formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	lines := make([]orderLinePayload, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLinePayload{
			DishRef:   line.DishRef,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Total:     line.Total,
		})
	}

	return orderPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		TableID:     order.TableID,
		Restaurant: orderRestaurantPayload{
			ID:           order.Restaurant.ID,
			Name:         order.Restaurant.Name,
			Restaurateur: buildUserSummary(order.Restaurant.Restaurateur),
			Cook:         buildUserSummary(order.Restaurant.Cook),
		},
		Buyer:       buildUserSummary(order.Buyer),
		Lines:       lines,
		Status:      string(order.Status),
		TotalCents:  order.TotalCents,
		Currency:    strings.ToUpper(order.Currency),
		Metadata:    cloneMap(order.Metadata),
		Version:     order.Version,
		CreatedAt:   formatTime(order.CreatedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
		PaidAt:      formatTime(pointerTime(order.PaidAt)),
		CompletedAt: formatTime(pointerTime(order.CompletedAt)),
	}
}

func buildUserSummary(summary services.UserSummary) userSummaryPayload {
	return userSummaryPayload{
		ID:        summary.ID,
		FirstName: summary.FirstName,
		LastName:  summary.LastName,
		Email:     summary.Email,
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
