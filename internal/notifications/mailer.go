package notifications

import "context"

// Template identifies the email template the external mail worker renders.
type Template string

const (
	// TemplateNewOrder notifies restaurant staff about a placed order.
	TemplateNewOrder Template = "NEW_ORDER"
	// TemplateOrderStatus notifies the buyer about a committed transition.
	TemplateOrderStatus Template = "ORDER_STATUS"
	// TemplateNewBooking notifies the restaurateur about a reservation.
	TemplateNewBooking Template = "NEW_BOOKING"
	// TemplateBookingCancelled notifies the customer their booking was cancelled.
	TemplateBookingCancelled Template = "BOOKING_CANCELLED"
	// TemplateNewReview notifies the restaurateur about customer feedback.
	TemplateNewReview Template = "NEW_REVIEW"
)

// Placeholder identifies a template variable. The set is closed; listeners
// only ever emit these keys and never with empty values, since publishers
// guarantee payload associations are loaded.
type Placeholder string

const (
	PlaceholderRestaurantName  Placeholder = "RESTAURANT_NAME"
	PlaceholderCookName        Placeholder = "COOK_NAME"
	PlaceholderCookSurname     Placeholder = "COOK_SURNAME"
	PlaceholderCustomerName    Placeholder = "CUSTOMER_NAME"
	PlaceholderCustomerSurname Placeholder = "CUSTOMER_SURNAME"
	PlaceholderOrderID         Placeholder = "ORDER_ID"
	PlaceholderOrderStatus     Placeholder = "ORDER_STATUS"
	PlaceholderBookingID       Placeholder = "BOOKING_ID"
	PlaceholderBookingDate     Placeholder = "BOOKING_DATE"
	PlaceholderSeats           Placeholder = "SEATS"
	PlaceholderRating          Placeholder = "RATING"
	PlaceholderReviewComment   Placeholder = "REVIEW_COMMENT"
	PlaceholderCreatedAt       Placeholder = "CREATED_AT"
)

// Mailer is the opaque email collaborator. Rendering and delivery happen
// entirely outside the core; a call is a single outbound email request.
type Mailer interface {
	SendTemplatedEmail(ctx context.Context, recipient string, template Template, variables map[Placeholder]string) error
}
