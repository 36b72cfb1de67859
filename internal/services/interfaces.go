package services

import (
	"context"
	"time"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/events"
	"github.com/tavolo-app/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Order              = domain.Order
	OrderLine          = domain.OrderLine
	OrderRestaurant    = domain.OrderRestaurant
	OrderStatus        = domain.OrderStatus
	Booking            = domain.Booking
	BookingRestaurant  = domain.BookingRestaurant
	BookingStatus      = domain.BookingStatus
	Restaurant         = domain.Restaurant
	SittingTime        = domain.SittingTime
	Dish               = domain.Dish
	Review             = domain.Review
	ReviewReply        = domain.ReviewReply
	ReviewStatus       = domain.ReviewStatus
	UserProfile        = domain.UserProfile
	UserSummary        = domain.UserSummary
	Role               = domain.Role
	SystemHealthReport = domain.SystemHealthReport
	AuditLogEntry      = domain.AuditLogEntry

	OrderListFilter      = repositories.OrderListFilter
	BookingListFilter    = repositories.BookingListFilter
	RestaurantListFilter = repositories.RestaurantListFilter
	AuditLogFilter       = repositories.AuditLogFilter
)

// EventPublisher delivers lifecycle events to the in-process listener
// registry. Publishing is best effort from the services' perspective: a
// committed transition never rolls back because a listener failed.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// OrderService drives the order lifecycle from placement to completion.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	Get(ctx context.Context, orderID string) (Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	Pay(ctx context.Context, cmd OrderTransitionCommand) (Order, error)
	Prepare(ctx context.Context, cmd OrderTransitionCommand) (Order, error)
	AwaitPayment(ctx context.Context, cmd OrderTransitionCommand) (Order, error)
	Complete(ctx context.Context, cmd OrderTransitionCommand) (Order, error)
	SoftDelete(ctx context.Context, cmd DeleteOrderCommand) error
}

// BookingService manages table reservations and their cancellation lifecycle.
type BookingService interface {
	Create(ctx context.Context, cmd CreateBookingCommand) (Booking, error)
	Get(ctx context.Context, bookingID string) (Booking, error)
	List(ctx context.Context, filter BookingListFilter) (domain.CursorPage[Booking], error)
	Cancel(ctx context.Context, cmd CancelBookingCommand) (Booking, error)
	Reactivate(ctx context.Context, cmd ReactivateBookingCommand) (Booking, error)
	SoftDelete(ctx context.Context, cmd DeleteBookingCommand) error
}

// ReviewService accepts reviews for completed orders and moderates them.
type ReviewService interface {
	Submit(ctx context.Context, cmd SubmitReviewCommand) (Review, error)
	Get(ctx context.Context, reviewID string) (Review, error)
	GetByOrder(ctx context.Context, orderID string) (Review, error)
	ListByRestaurant(ctx context.Context, restaurantID string, pager Pagination) (domain.CursorPage[Review], error)
	Moderate(ctx context.Context, cmd ModerateReviewCommand) (Review, error)
}

// RestaurantService maintains restaurant master data, menus, and sitting times.
type RestaurantService interface {
	Create(ctx context.Context, cmd CreateRestaurantCommand) (Restaurant, error)
	Get(ctx context.Context, restaurantID string) (Restaurant, error)
	List(ctx context.Context, filter RestaurantListFilter) (domain.CursorPage[Restaurant], error)
	Update(ctx context.Context, cmd UpdateRestaurantCommand) (Restaurant, error)
	UpsertDish(ctx context.Context, cmd UpsertDishCommand) (Restaurant, error)
	RemoveDish(ctx context.Context, cmd RemoveDishCommand) (Restaurant, error)
	SoftDelete(ctx context.Context, cmd DeleteRestaurantCommand) error
}

// UserService reads and mutates platform user profiles.
type UserService interface {
	Get(ctx context.Context, userID string) (UserProfile, error)
	UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error)
	ListByRole(ctx context.Context, role Role, pager Pagination) (domain.CursorPage[UserProfile], error)
}

// AuditLogService records and queries the immutable audit trail. Record is
// fire-and-forget: append failures are logged, never surfaced, so the primary
// mutation flow is not interrupted.
type AuditLogService interface {
	Record(ctx context.Context, cmd RecordAuditCommand)
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[AuditLogEntry], error)
}

// SystemService aggregates dependency health for readiness probes.
type SystemService interface {
	Health(ctx context.Context) (SystemHealthReport, error)
}

// Commands -------------------------------------------------------------------

// OrderLineInput selects a dish and quantity for order placement.
type OrderLineInput struct {
	DishID   string
	Quantity int
}

// CreateOrderCommand places an order for a table at a restaurant.
type CreateOrderCommand struct {
	RestaurantID string
	BuyerID      string
	TableID      string
	Lines        []OrderLineInput
	Metadata     map[string]any
	ActorID      string
}

// OrderTransitionCommand advances the order lifecycle by one step.
type OrderTransitionCommand struct {
	OrderID string
	ActorID string
}

// DeleteOrderCommand soft-deletes an order.
type DeleteOrderCommand struct {
	OrderID string
	ActorID string
}

// CreateBookingCommand reserves seats for a sitting time on a date.
type CreateBookingCommand struct {
	RestaurantID  string
	CustomerID    string
	SittingTimeID string
	Date          time.Time
	Seats         int
	Metadata      map[string]any
	ActorID       string
}

// CancelBookingCommand releases the booking's seats.
type CancelBookingCommand struct {
	BookingID string
	Reason    string
	ActorID   string
}

// ReactivateBookingCommand restores a cancelled booking.
type ReactivateBookingCommand struct {
	BookingID string
	ActorID   string
}

// DeleteBookingCommand soft-deletes a booking.
type DeleteBookingCommand struct {
	BookingID string
	ActorID   string
}

// SubmitReviewCommand files a review against a completed order.
type SubmitReviewCommand struct {
	OrderID  string
	AuthorID string
	Rating   int
	Comment  string
	ActorID  string
}

// ModerateReviewCommand publishes or rejects a pending review.
type ModerateReviewCommand struct {
	ReviewID string
	Status   ReviewStatus
	ActorID  string
}

// CreateRestaurantCommand registers a restaurant with its staff.
type CreateRestaurantCommand struct {
	Name           string
	Address        string
	Phone          string
	RestaurateurID string
	CookID         string
	Tables         int
	SittingTimes   []SittingTime
	Metadata       map[string]any
	ActorID        string
}

// UpdateRestaurantCommand mutates restaurant master data under optimistic
// concurrency; Version must match the stored document.
type UpdateRestaurantCommand struct {
	RestaurantID string
	Name         *string
	Address      *string
	Phone        *string
	Tables       *int
	SittingTimes []SittingTime
	Version      int64
	ActorID      string
}

// UpsertDishCommand adds or replaces a menu entry.
type UpsertDishCommand struct {
	RestaurantID string
	Dish         Dish
	Version      int64
	ActorID      string
}

// RemoveDishCommand removes a menu entry.
type RemoveDishCommand struct {
	RestaurantID string
	DishID       string
	Version      int64
	ActorID      string
}

// DeleteRestaurantCommand soft-deletes a restaurant.
type DeleteRestaurantCommand struct {
	RestaurantID string
	ActorID      string
}

// UpdateProfileCommand mutates a user profile.
type UpdateProfileCommand struct {
	UserID        string
	Email         *string
	FirstName     *string
	LastName      *string
	Role          *Role
	RestaurantRef *string
	IsActive      *bool
	ActorID       string
}

// RecordAuditCommand appends one audit trail entry.
type RecordAuditCommand struct {
	Actor     string
	ActorType string
	Action    string
	TargetRef string
	Metadata  map[string]any
	Severity  string
	RequestID string
}
