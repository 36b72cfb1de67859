package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Role enumerates the platform user roles.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleModerator    Role = "moderator"
	RoleRestaurateur Role = "restaurateur"
	RoleCook         Role = "cook"
	RoleWaiter       Role = "waiter"
	RoleCustomer     Role = "customer"
)

// UserProfile stores account data shared across layers.
type UserProfile struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	Role          Role
	RestaurantRef *string
	IsActive      bool
	Metadata      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserSummary is the denormalised recipient snapshot embedded in orders,
// bookings, and reviews so notification listeners never need extra lookups.
type UserSummary struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

// SittingTime describes a bookable service window with a seat capacity.
type SittingTime struct {
	ID       string
	Start    string
	End      string
	Capacity int
}

// Dish is a menu entry owned by a restaurant.
type Dish struct {
	ID          string
	Name        string
	Description string
	PriceCents  int64
	Currency    string
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Restaurant aggregates restaurant master data, staff, sitting times, and menu.
type Restaurant struct {
	ID           string
	Name         string
	Address      string
	Phone        string
	Restaurateur UserSummary
	Cook         UserSummary
	SittingTimes []SittingTime
	Dishes       []Dish
	Tables       int
	Metadata     map[string]any
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// OrderStatus enumerates valid lifecycle stages for orders. The string value
// is the persisted representation; the behavioural state object is derived
// from it on load.
type OrderStatus string

const (
	// OrderStatusCreated indicates the order was placed but not yet paid.
	OrderStatusCreated OrderStatus = "created"
	// OrderStatusPaid indicates payment was confirmed and the kitchen may start.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusPreparing indicates the kitchen is working on the order.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusAwaitingPayment indicates the order left the kitchen and the
	// table bill is open.
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	// OrderStatusCompleted is terminal; no further transitions are legal.
	OrderStatusCompleted OrderStatus = "completed"
)

// OrderLine is a single dish entry within an order.
type OrderLine struct {
	DishRef   string
	Name      string
	Quantity  int
	UnitPrice int64
	Total     int64
}

// OrderRestaurant is the restaurant snapshot embedded in an order, carrying
// the staff recipients notification listeners address.
type OrderRestaurant struct {
	ID           string
	Name         string
	Restaurateur UserSummary
	Cook         UserSummary
}

// Order captures a food order for a table. The status column is durable; the
// transition behaviour attached via State is transient and recomputed from it.
type Order struct {
	ID          string
	OrderNumber string
	TableID     string
	Restaurant  OrderRestaurant
	Buyer       UserSummary
	Lines       []OrderLine
	Status      OrderStatus
	TotalCents  int64
	Currency    string
	Metadata    map[string]any
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaidAt      *time.Time
	CompletedAt *time.Time
	DeletedAt   *time.Time

	state OrderState
}

// State returns the behavioural state for the order's persisted status,
// resolving it on first access. Subsequent calls reuse the attachment.
func (o *Order) State() OrderState {
	if o.state == nil {
		o.state = OrderStateFor(o.Status)
	}
	return o.state
}

// SetState replaces the transient state attachment and keeps the persisted
// status in agreement with it.
func (o *Order) SetState(state OrderState) {
	o.state = state
	o.Status = state.Status()
}

// BookingStatus enumerates valid lifecycle stages for bookings.
type BookingStatus string

const (
	// BookingStatusActive indicates the reservation holds its seats.
	BookingStatusActive BookingStatus = "active"
	// BookingStatusCancelled indicates the reservation released its seats.
	BookingStatusCancelled BookingStatus = "cancelled"
)

// BookingRestaurant is the restaurant snapshot embedded in a booking.
type BookingRestaurant struct {
	ID           string
	Name         string
	Restaurateur UserSummary
}

// Booking captures a table reservation for a sitting time.
type Booking struct {
	ID             string
	Restaurant     BookingRestaurant
	Customer       UserSummary
	Date           time.Time
	Seats          int
	SittingTimeRef string
	Status         BookingStatus
	CancelReason   *string
	Metadata       map[string]any
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CancelledAt    *time.Time
	DeletedAt      *time.Time

	state BookingState
}

// State returns the behavioural state for the booking's persisted status,
// resolving it on first access.
func (b *Booking) State() BookingState {
	if b.state == nil {
		b.state = BookingStateFor(b.Status)
	}
	return b.state
}

// SetState replaces the transient state attachment and keeps the persisted
// status in agreement with it.
func (b *Booking) SetState(state BookingState) {
	b.state = state
	b.Status = state.Status()
}

// ReviewStatus enumerates moderation states for reviews.
type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "pending"
	ReviewStatusPublished ReviewStatus = "published"
	ReviewStatusRejected  ReviewStatus = "rejected"
)

// Review stores customer feedback for a completed order.
type Review struct {
	ID          string
	OrderRef    string
	Restaurant  OrderRestaurant
	Author      UserSummary
	Rating      int
	Comment     string
	Status      ReviewStatus
	ModeratedBy *string
	ModeratedAt *time.Time
	Reply       *ReviewReply
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReviewReply stores the restaurateur's visible answer to a review.
type ReviewReply struct {
	AuthorID  string
	Message   string
	Visible   bool
	CreatedAt time.Time
}

// Health statuses reported by dependency probes.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck reports the outcome of a single dependency probe.
type SystemHealthCheck struct {
	Status    string
	LatencyMS int64
	Error     string
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// AuditLogEntry stores normalized audit information for admin use.
type AuditLogEntry struct {
	ID        string
	Actor     string
	ActorType string
	Action    string
	TargetRef string
	Metadata  map[string]any
	Severity  string
	RequestID string
	CreatedAt time.Time
}
