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

type stubOrderService struct {
	createFn     func(context.Context, services.CreateOrderCommand) (services.Order, error)
	getFn        func(context.Context, string) (services.Order, error)
	listFn       func(context.Context, services.OrderListFilter) (domain.CursorPage[services.Order], error)
	transitionFn func(context.Context, services.OrderTransitionCommand) (services.Order, error)
	deleteFn     func(context.Context, services.DeleteOrderCommand) error
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Get(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) List(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) Pay(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Prepare(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) AwaitPayment(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Complete(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) SoftDelete(ctx context.Context, cmd services.DeleteOrderCommand) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, cmd)
	}
	return errors.New("not implemented")
}

type stubReviewService struct {
	submitFn     func(context.Context, services.SubmitReviewCommand) (services.Review, error)
	getFn        func(context.Context, string) (services.Review, error)
	getByOrderFn func(context.Context, string) (services.Review, error)
	listFn       func(context.Context, string, services.Pagination) (domain.CursorPage[services.Review], error)
	moderateFn   func(context.Context, services.ModerateReviewCommand) (services.Review, error)
}

func (s *stubReviewService) Submit(ctx context.Context, cmd services.SubmitReviewCommand) (services.Review, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, cmd)
	}
	return services.Review{}, errors.New("not implemented")
}

func (s *stubReviewService) Get(ctx context.Context, reviewID string) (services.Review, error) {
	if s.getFn != nil {
		return s.getFn(ctx, reviewID)
	}
	return services.Review{}, errors.New("not implemented")
}

func (s *stubReviewService) GetByOrder(ctx context.Context, orderID string) (services.Review, error) {
	if s.getByOrderFn != nil {
		return s.getByOrderFn(ctx, orderID)
	}
	return services.Review{}, errors.New("not implemented")
}

func (s *stubReviewService) ListByRestaurant(ctx context.Context, restaurantID string, pager services.Pagination) (domain.CursorPage[services.Review], error) {
	if s.listFn != nil {
		return s.listFn(ctx, restaurantID, pager)
	}
	return domain.CursorPage[services.Review]{}, nil
}

func (s *stubReviewService) Moderate(ctx context.Context, cmd services.ModerateReviewCommand) (services.Review, error) {
	if s.moderateFn != nil {
		return s.moderateFn(ctx, cmd)
	}
	return services.Review{}, errors.New("not implemented")
}

type captureAuditService struct {
	records []services.RecordAuditCommand
}

func (s *captureAuditService) Record(ctx context.Context, cmd services.RecordAuditCommand) {
	s.records = append(s.records, cmd)
}

func (s *captureAuditService) List(ctx context.Context, filter services.AuditLogFilter) (domain.CursorPage[services.AuditLogEntry], error) {
	return domain.CursorPage[services.AuditLogEntry]{}, nil
}

func orderRouter(handler *OrderHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)
	return router
}

func TestOrderHandlersListOrdersSuccess(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	fromExpected := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	var capturedFilter services.OrderListFilter
	service := &stubOrderService{
		listFn: func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			capturedFilter = filter
			return domain.CursorPage[services.Order]{
				Items: []services.Order{
					{
						ID:          "ord_123",
						OrderNumber: "TV-2026-000123",
						Restaurant:  domain.OrderRestaurant{ID: "rst_1", Name: "Trattoria da Gigi"},
						Buyer:       domain.UserSummary{ID: "user-buyer"},
						Status:      domain.OrderStatusPaid,
						Currency:    "eur",
						TotalCents:  2400,
						CreatedAt:   now,
					},
				},
				NextPageToken: "tok-next",
			}, nil
		},
	}

	router := orderRouter(NewOrderHandlers(service, nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/orders?status=paid,preparing&buyer_id=user-buyer&page_size=10&page_token=tok123&created_after=2026-04-01T00:00:00Z", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if capturedFilter.BuyerID != "user-buyer" {
		t.Fatalf("expected buyer filter user-buyer, got %s", capturedFilter.BuyerID)
	}
	if len(capturedFilter.Status) != 2 {
		t.Fatalf("expected 2 status filters, got %d", len(capturedFilter.Status))
	}
	if capturedFilter.Pagination.PageSize != 10 || capturedFilter.Pagination.PageToken != "tok123" {
		t.Fatalf("unexpected pagination %#v", capturedFilter.Pagination)
	}
	if capturedFilter.DateRange.From == nil || !capturedFilter.DateRange.From.Equal(fromExpected) {
		t.Fatalf("expected date range from %s, got %#v", fromExpected, capturedFilter.DateRange.From)
	}

	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 order, got %d", len(resp.Items))
	}
	order := resp.Items[0]
	if order.ID != "ord_123" || order.OrderNumber != "TV-2026-000123" {
		t.Fatalf("unexpected order summary %#v", order)
	}
	if order.Currency != "EUR" {
		t.Fatalf("expected currency uppercased, got %s", order.Currency)
	}
	if order.Restaurant != "Trattoria da Gigi" {
		t.Fatalf("expected restaurant name, got %s", order.Restaurant)
	}
	if resp.NextPageToken != "tok-next" {
		t.Fatalf("expected next page token tok-next, got %s", resp.NextPageToken)
	}
}

func TestOrderHandlersListOrdersRejectsUnknownStatus(t *testing.T) {
	router := orderRouter(NewOrderHandlers(&stubOrderService{}, nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/orders?status=shipped", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersListOrdersInvalidPageSize(t *testing.T) {
	router := orderRouter(NewOrderHandlers(&stubOrderService{}, nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/orders?page_size=abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersListOrdersInvalidDate(t *testing.T) {
	router := orderRouter(NewOrderHandlers(&stubOrderService{}, nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/orders?created_after=not-a-date", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersServiceUnavailable(t *testing.T) {
	router := orderRouter(NewOrderHandlers(nil, nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestOrderHandlersCreateOrderSuccess(t *testing.T) {
	now := time.Date(2026, 4, 10, 19, 0, 0, 0, time.UTC)

	var captured services.CreateOrderCommand
	service := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{
				ID:          "ord_new",
				OrderNumber: "TV-2026-000042",
				TableID:     "table-4",
				Restaurant: domain.OrderRestaurant{
					ID:   "rst_1",
					Name: "Trattoria da Gigi",
				},
				Buyer:  domain.UserSummary{ID: "user-buyer", Email: "bruno@example.com"},
				Status: domain.OrderStatusCreated,
				Lines: []domain.OrderLine{
					{DishRef: "dsh_1", Name: "Margherita", Quantity: 2, UnitPrice: 900, Total: 1800},
				},
				TotalCents: 1800,
				Currency:   "eur",
				Version:    1,
				CreatedAt:  now,
			}, nil
		},
	}
	audit := &captureAuditService{}

	router := orderRouter(NewOrderHandlers(service, nil, audit))
	body := `{"restaurant_id":"rst_1","buyer_id":"user-buyer","table_id":"table-4","lines":[{"dish_id":"dsh_1","quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("X-Actor-Id", "user-buyer")
	req.Header.Set("X-Request-Id", "req-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if captured.RestaurantID != "rst_1" || captured.BuyerID != "user-buyer" {
		t.Fatalf("unexpected command %#v", captured)
	}
	if captured.ActorID != "user-buyer" {
		t.Fatalf("expected actor from header, got %s", captured.ActorID)
	}
	if len(captured.Lines) != 1 || captured.Lines[0].DishID != "dsh_1" || captured.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines %#v", captured.Lines)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.ID != "ord_new" || resp.Order.OrderNumber != "TV-2026-000042" {
		t.Fatalf("unexpected order payload %#v", resp.Order)
	}
	if resp.Order.Currency != "EUR" {
		t.Fatalf("expected currency uppercased, got %s", resp.Order.Currency)
	}
	if len(resp.Order.Lines) != 1 || resp.Order.Lines[0].Total != 1800 {
		t.Fatalf("unexpected lines payload %#v", resp.Order.Lines)
	}

	if len(audit.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(audit.records))
	}
	record := audit.records[0]
	if record.Action != "order.create" || record.TargetRef != "orders/ord_new" {
		t.Fatalf("unexpected audit record %#v", record)
	}
	if record.Actor != "user-buyer" || record.RequestID != "req-1" {
		t.Fatalf("expected actor and request id captured, got %#v", record)
	}
}

func TestOrderHandlersCreateOrderInvalidJSON(t *testing.T) {
	router := orderRouter(NewOrderHandlers(&stubOrderService{}, nil, nil))
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"lines":`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	service := &stubOrderService{
		getFn: func(ctx context.Context, orderID string) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}

	router := orderRouter(NewOrderHandlers(service, nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/orders/ord_missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderHandlersPayTransitionSuccess(t *testing.T) {
	var captured services.OrderTransitionCommand
	service := &stubOrderService{
		transitionFn: func(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error) {
			captured = cmd
			return services.Order{
				ID:     cmd.OrderID,
				Status: domain.OrderStatusPaid,
			}, nil
		},
	}
	audit := &captureAuditService{}

	router := orderRouter(NewOrderHandlers(service, nil, audit))
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123:pay", nil)
	req.Header.Set("X-Actor-Id", "user-buyer")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.OrderID != "ord_123" || captured.ActorID != "user-buyer" {
		t.Fatalf("unexpected command %#v", captured)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.Status != string(domain.OrderStatusPaid) {
		t.Fatalf("expected status paid, got %s", resp.Order.Status)
	}
	if len(audit.records) != 1 || audit.records[0].Action != "order.pay" {
		t.Fatalf("expected order.pay audit record, got %#v", audit.records)
	}
}

func TestOrderHandlersTransitionRejectsInvalidState(t *testing.T) {
	service := &stubOrderService{
		transitionFn: func(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidState
		},
	}
	audit := &captureAuditService{}

	router := orderRouter(NewOrderHandlers(service, nil, audit))
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123:complete", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	if len(audit.records) != 0 {
		t.Fatalf("expected no audit record on failure, got %d", len(audit.records))
	}
}

func TestOrderHandlersDeleteOrder(t *testing.T) {
	var captured services.DeleteOrderCommand
	service := &stubOrderService{
		deleteFn: func(ctx context.Context, cmd services.DeleteOrderCommand) error {
			captured = cmd
			return nil
		},
	}

	router := orderRouter(NewOrderHandlers(service, nil, nil))
	req := httptest.NewRequest(http.MethodDelete, "/orders/ord_123", nil)
	req.Header.Set("X-Actor-Id", "admin-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if captured.OrderID != "ord_123" || captured.ActorID != "admin-1" {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestOrderHandlersGetOrderReview(t *testing.T) {
	service := &stubReviewService{
		getByOrderFn: func(ctx context.Context, orderID string) (services.Review, error) {
			if orderID != "ord_123" {
				t.Fatalf("unexpected order id %s", orderID)
			}
			return services.Review{
				ID:       "rev_1",
				OrderRef: "ord_123",
				Rating:   5,
				Comment:  "Excellent",
				Status:   domain.ReviewStatusPublished,
			}, nil
		},
	}

	router := orderRouter(NewOrderHandlers(&stubOrderService{}, service, nil))
	req := httptest.NewRequest(http.MethodGet, "/orders/ord_123/review", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp reviewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Review.ID != "rev_1" || resp.Review.Rating != 5 {
		t.Fatalf("unexpected review payload %#v", resp.Review)
	}
}
