package repositories

import (
	"context"
	"time"

	domain "github.com/tavolo-app/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Bookings() BookingRepository
	Restaurants() RestaurantRepository
	Reviews() ReviewRepository
	Users() UserRepository
	Counters() CounterRepository
	AuditLogs() AuditLogRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order headers with their denormalised snapshots.
// Update enforces optimistic concurrency: the stored version must equal the
// version carried by the entity or a conflict error is returned, so at most
// one of two racing transitions wins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	SoftDelete(ctx context.Context, orderID string, deletedAt time.Time) error
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// BookingRepository persists reservations with the same version semantics as orders.
type BookingRepository interface {
	Insert(ctx context.Context, booking domain.Booking) error
	Update(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	FindByID(ctx context.Context, bookingID string) (domain.Booking, error)
	SoftDelete(ctx context.Context, bookingID string, deletedAt time.Time) error
	List(ctx context.Context, filter BookingListFilter) (domain.CursorPage[domain.Booking], error)
	// CountSeats sums active seats for a restaurant's sitting time on a date,
	// used by the booking service capacity precondition.
	CountSeats(ctx context.Context, restaurantID string, sittingTimeID string, date time.Time) (int, error)
}

// RestaurantRepository stores restaurant master data, staff, sitting times, and menus.
type RestaurantRepository interface {
	Insert(ctx context.Context, restaurant domain.Restaurant) error
	Update(ctx context.Context, restaurant domain.Restaurant) (domain.Restaurant, error)
	FindByID(ctx context.Context, restaurantID string) (domain.Restaurant, error)
	SoftDelete(ctx context.Context, restaurantID string, deletedAt time.Time) error
	List(ctx context.Context, filter RestaurantListFilter) (domain.CursorPage[domain.Restaurant], error)
}

// ReviewRepository stores order reviews and their moderation meta.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) (domain.Review, error)
	FindByID(ctx context.Context, reviewID string) (domain.Review, error)
	FindByOrder(ctx context.Context, orderID string) (domain.Review, error)
	ListByRestaurant(ctx context.Context, restaurantID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error)
	UpdateStatus(ctx context.Context, reviewID string, status domain.ReviewStatus, update ReviewModerationUpdate) (domain.Review, error)
}

// UserRepository stores platform user profiles.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
	UpdateProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
	ListByRole(ctx context.Context, role domain.Role, pager domain.Pagination) (domain.CursorPage[domain.UserProfile], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// AuditLogRepository persists immutable audit trail entries.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	BuyerID      string
	RestaurantID string
	Status       []domain.OrderStatus
	DateRange    domain.RangeQuery[time.Time]
	Pagination   domain.Pagination
}

type BookingListFilter struct {
	CustomerID   string
	RestaurantID string
	Status       []domain.BookingStatus
	DateRange    domain.RangeQuery[time.Time]
	Pagination   domain.Pagination
}

type RestaurantListFilter struct {
	RestaurateurID string
	Pagination     domain.Pagination
}

// ReviewModerationUpdate carries moderation metadata for status transitions.
type ReviewModerationUpdate struct {
	ModeratedBy string
	ModeratedAt time.Time
}

type AuditLogFilter struct {
	TargetRef  string
	Actor      string
	Action     string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}
