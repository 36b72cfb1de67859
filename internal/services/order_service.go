package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/events"
	"github.com/tavolo-app/api/internal/repositories"
)

const (
	orderIDPrefix      = "ord_"
	orderNumberCounter = "orders"
	defaultCurrency    = "EUR"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an illegal lifecycle transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates optimistic concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Restaurants repositories.RestaurantRepository
	Users       repositories.UserRepository
	Counters    repositories.CounterRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders      repositories.OrderRepository
	restaurants repositories.RestaurantRepository
	users       repositories.UserRepository
	counters    repositories.CounterRepository
	unitOfWork  repositories.UnitOfWork
	clock       func() time.Time
	newID       func() string
	events      EventPublisher
	logger      func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Restaurants == nil {
		return nil, errors.New("order service: restaurant repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("order service: user repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:      deps.Orders,
		restaurants: deps.Restaurants,
		users:       deps.Users,
		counters:    deps.Counters,
		unitOfWork:  unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	restaurantID := strings.TrimSpace(cmd.RestaurantID)
	buyerID := strings.TrimSpace(cmd.BuyerID)
	if restaurantID == "" {
		return Order{}, fmt.Errorf("%w: restaurant id is required", ErrOrderInvalidInput)
	}
	if buyerID == "" {
		return Order{}, fmt.Errorf("%w: buyer id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one line", ErrOrderInvalidInput)
	}
	for _, line := range cmd.Lines {
		if strings.TrimSpace(line.DishID) == "" {
			return Order{}, fmt.Errorf("%w: line dish id is required", ErrOrderInvalidInput)
		}
		if line.Quantity < 1 {
			return Order{}, fmt.Errorf("%w: line quantity must be at least 1", ErrOrderInvalidInput)
		}
	}

	restaurant, err := s.restaurants.FindByID(ctx, restaurantID)
	if err != nil {
		return Order{}, s.mapLookupError(err, "restaurant not found")
	}
	buyer, err := s.users.FindByID(ctx, buyerID)
	if err != nil {
		return Order{}, s.mapLookupError(err, "buyer not found")
	}

	lines, total, currency, err := buildOrderLines(restaurant, cmd.Lines)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	order := Order{
		ID:         orderIDPrefix + s.newID(),
		TableID:    strings.TrimSpace(cmd.TableID),
		Restaurant: orderRestaurantSnapshot(restaurant),
		Buyer:      userSummaryOf(buyer),
		Lines:      lines,
		Status:     domain.OrderStatusCreated,
		TotalCents: total,
		Currency:   currency,
		Metadata:   cloneMap(cmd.Metadata),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}
	order.OrderNumber = number

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.TypeOrderCreated,
		Order:      &order,
		ActorID:    strings.TrimSpace(cmd.ActorID),
		OccurredAt: now,
	})

	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) Pay(ctx context.Context, cmd OrderTransitionCommand) (Order, error) {
	return s.transition(ctx, cmd, domain.OrderState.Pay, events.TypeOrderStatusChanged)
}

func (s *orderService) Prepare(ctx context.Context, cmd OrderTransitionCommand) (Order, error) {
	return s.transition(ctx, cmd, domain.OrderState.Prepare, events.TypeOrderStatusChanged)
}

func (s *orderService) AwaitPayment(ctx context.Context, cmd OrderTransitionCommand) (Order, error) {
	return s.transition(ctx, cmd, domain.OrderState.AwaitPayment, events.TypeOrderStatusChanged)
}

func (s *orderService) Complete(ctx context.Context, cmd OrderTransitionCommand) (Order, error) {
	return s.transition(ctx, cmd, domain.OrderState.Complete, events.TypeOrderCompleted)
}

func (s *orderService) SoftDelete(ctx context.Context, cmd DeleteOrderCommand) error {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	if _, err := s.orders.FindByID(ctx, orderID); err != nil {
		return s.mapRepositoryError(err)
	}
	if err := s.orders.SoftDelete(ctx, orderID, s.now()); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

// transition loads the order, delegates the step to its behavioural state,
// and persists the outcome under the version check. The event fires only
// after the update committed.
func (s *orderService) transition(ctx context.Context, cmd OrderTransitionCommand, step func(domain.OrderState) (domain.OrderState, error), eventType events.Type) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	prev := order.Status
	next, err := step(order.State())
	if err != nil {
		if errors.Is(err, domain.ErrIllegalTransition) {
			return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidState, err)
		}
		return Order{}, err
	}

	now := s.now()
	order.SetState(next)
	s.stampTransition(&order, now)

	var updated Order
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		updated, txErr = s.orders.Update(txCtx, order)
		if txErr != nil {
			return s.mapRepositoryError(txErr)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, events.Event{
		Type:           eventType,
		Order:          &updated,
		PreviousStatus: string(prev),
		ActorID:        strings.TrimSpace(cmd.ActorID),
		OccurredAt:     now,
	})

	return updated, nil
}

func (s *orderService) stampTransition(order *Order, now time.Time) {
	order.UpdatedAt = now
	switch order.Status {
	case domain.OrderStatusPaid:
		order.PaidAt = &now
	case domain.OrderStatusCompleted:
		order.CompletedAt = &now
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) mapLookupError(err error, missing string) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %s", ErrOrderInvalidInput, missing)
	}
	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TV-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		fields := map[string]any{
			"type":  string(event.Type),
			"error": err.Error(),
		}
		if event.Order != nil {
			fields["order"] = event.Order.ID
			fields["status"] = string(event.Order.Status)
		}
		s.logger(ctx, "order.event.publish.failed", fields)
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func buildOrderLines(restaurant Restaurant, inputs []OrderLineInput) ([]OrderLine, int64, string, error) {
	menu := make(map[string]Dish, len(restaurant.Dishes))
	for _, dish := range restaurant.Dishes {
		menu[dish.ID] = dish
	}

	lines := make([]OrderLine, 0, len(inputs))
	var total int64
	currency := ""
	for _, input := range inputs {
		dish, ok := menu[strings.TrimSpace(input.DishID)]
		if !ok {
			return nil, 0, "", fmt.Errorf("%w: dish %s is not on the menu", ErrOrderInvalidInput, input.DishID)
		}
		if !dish.Available {
			return nil, 0, "", fmt.Errorf("%w: dish %s is unavailable", ErrOrderInvalidInput, dish.ID)
		}
		if currency == "" {
			currency = dish.Currency
		}
		lineTotal := dish.PriceCents * int64(input.Quantity)
		lines = append(lines, OrderLine{
			DishRef:   dish.ID,
			Name:      dish.Name,
			Quantity:  input.Quantity,
			UnitPrice: dish.PriceCents,
			Total:     lineTotal,
		})
		total += lineTotal
	}
	if currency == "" {
		currency = defaultCurrency
	}
	return lines, total, currency, nil
}

func orderRestaurantSnapshot(restaurant Restaurant) OrderRestaurant {
	return OrderRestaurant{
		ID:           restaurant.ID,
		Name:         restaurant.Name,
		Restaurateur: restaurant.Restaurateur,
		Cook:         restaurant.Cook,
	}
}

func userSummaryOf(profile UserProfile) UserSummary {
	return UserSummary{
		ID:        profile.ID,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Email:     profile.Email,
	}
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	return maps.Clone(src)
}

func ensureMap(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	return src
}

func valuePtr[T any](v T) *T {
	return &v
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	ref := v
	return &ref
}
