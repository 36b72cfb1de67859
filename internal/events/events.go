package events

import (
	"time"

	domain "github.com/tavolo-app/api/internal/domain"
)

// Type identifies a published domain event. The set is closed and fixed at
// startup; the registry pre-populates a listener list per known type.
type Type string

const (
	// TypeOrderCreated fires after an order is durably inserted.
	TypeOrderCreated Type = "order.created"
	// TypeOrderStatusChanged fires after any committed order transition.
	TypeOrderStatusChanged Type = "order.status.changed"
	// TypeOrderCompleted fires after an order reaches its terminal status.
	TypeOrderCompleted Type = "order.completed"
	// TypeBookingCreated fires after a booking is durably inserted.
	TypeBookingCreated Type = "booking.created"
	// TypeBookingCancelled fires after a committed cancellation.
	TypeBookingCancelled Type = "booking.cancelled"
	// TypeBookingReactivated fires after an administrative re-activation.
	TypeBookingReactivated Type = "booking.reactivated"
	// TypeReviewCreated fires after a review is durably inserted.
	TypeReviewCreated Type = "review.created"
)

// KnownTypes returns the closed event-type set in a stable order.
func KnownTypes() []Type {
	return []Type{
		TypeOrderCreated,
		TypeOrderStatusChanged,
		TypeOrderCompleted,
		TypeBookingCreated,
		TypeBookingCancelled,
		TypeBookingReactivated,
		TypeReviewCreated,
	}
}

// Event carries the entity that triggered publication. Exactly one of the
// payload pointers is set, matching the event type; publishers guarantee the
// entity's associations (restaurant staff, buyer) are populated so listeners
// never perform lookups.
type Event struct {
	Type           Type
	Order          *domain.Order
	Booking        *domain.Booking
	Review         *domain.Review
	PreviousStatus string
	ActorID        string
	OccurredAt     time.Time
}
