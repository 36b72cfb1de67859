package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tavolo-app/api/internal/events"
)

// Listeners build a closed variable mapping from the event payload and hand
// it to the Mailer. Each listener targets exactly one recipient resolved from
// the payload snapshot. Mailer failures propagate to the caller; the event
// registry contains them per listener.

var errMissingPayload = errors.New("notifications: event payload is missing")

// CookNewOrderListener emails the restaurant's cook when an order is placed.
type CookNewOrderListener struct {
	mailer Mailer
}

// NewCookNewOrderListener constructs the cook-facing order listener.
func NewCookNewOrderListener(mailer Mailer) (*CookNewOrderListener, error) {
	if mailer == nil {
		return nil, errors.New("notifications: mailer is required")
	}
	return &CookNewOrderListener{mailer: mailer}, nil
}

// Notify implements events.Listener.
func (l *CookNewOrderListener) Notify(ctx context.Context, event events.Event) error {
	order := event.Order
	if order == nil {
		return fmt.Errorf("%w: %s", errMissingPayload, event.Type)
	}

	variables := map[Placeholder]string{
		PlaceholderRestaurantName:  order.Restaurant.Name,
		PlaceholderCookName:        order.Restaurant.Cook.FirstName,
		PlaceholderCookSurname:     order.Restaurant.Cook.LastName,
		PlaceholderOrderID:         order.ID,
		PlaceholderCustomerName:    order.Buyer.FirstName,
		PlaceholderCustomerSurname: order.Buyer.LastName,
	}
	return l.mailer.SendTemplatedEmail(ctx, order.Restaurant.Cook.Email, TemplateNewOrder, variables)
}

// RestaurateurNewOrderListener emails the restaurateur when an order is placed.
type RestaurateurNewOrderListener struct {
	mailer Mailer
}

// NewRestaurateurNewOrderListener constructs the restaurateur-facing order listener.
func NewRestaurateurNewOrderListener(mailer Mailer) (*RestaurateurNewOrderListener, error) {
	if mailer == nil {
		return nil, errors.New("notifications: mailer is required")
	}
	return &RestaurateurNewOrderListener{mailer: mailer}, nil
}

// Notify implements events.Listener.
func (l *RestaurateurNewOrderListener) Notify(ctx context.Context, event events.Event) error {
	order := event.Order
	if order == nil {
		return fmt.Errorf("%w: %s", errMissingPayload, event.Type)
	}

	variables := map[Placeholder]string{
		PlaceholderRestaurantName:  order.Restaurant.Name,
		PlaceholderOrderID:         order.ID,
		PlaceholderCustomerName:    order.Buyer.FirstName,
		PlaceholderCustomerSurname: order.Buyer.LastName,
		PlaceholderCreatedAt:       order.CreatedAt.Format(time.RFC3339),
	}
	return l.mailer.SendTemplatedEmail(ctx, order.Restaurant.Restaurateur.Email, TemplateNewOrder, variables)
}

// CustomerOrderStatusListener emails the buyer after a committed transition.
type CustomerOrderStatusListener struct {
	mailer Mailer
}

// NewCustomerOrderStatusListener constructs the buyer-facing status listener.
func NewCustomerOrderStatusListener(mailer Mailer) (*CustomerOrderStatusListener, error) {
	if mailer == nil {
		return nil, errors.New("notifications: mailer is required")
	}
	return &CustomerOrderStatusListener{mailer: mailer}, nil
}

// Notify implements events.Listener.
func (l *CustomerOrderStatusListener) Notify(ctx context.Context, event events.Event) error {
	order := event.Order
	if order == nil {
		return fmt.Errorf("%w: %s", errMissingPayload, event.Type)
	}

	variables := map[Placeholder]string{
		PlaceholderRestaurantName:  order.Restaurant.Name,
		PlaceholderOrderID:         order.ID,
		PlaceholderOrderStatus:     string(order.Status),
		PlaceholderCustomerName:    order.Buyer.FirstName,
		PlaceholderCustomerSurname: order.Buyer.LastName,
	}
	return l.mailer.SendTemplatedEmail(ctx, order.Buyer.Email, TemplateOrderStatus, variables)
}

// RestaurateurBookingListener emails the restaurateur about new reservations.
type RestaurateurBookingListener struct {
	mailer Mailer
}

// NewRestaurateurBookingListener constructs the restaurateur-facing booking listener.
func NewRestaurateurBookingListener(mailer Mailer) (*RestaurateurBookingListener, error) {
	if mailer == nil {
		return nil, errors.New("notifications: mailer is required")
	}
	return &RestaurateurBookingListener{mailer: mailer}, nil
}

// Notify implements events.Listener.
func (l *RestaurateurBookingListener) Notify(ctx context.Context, event events.Event) error {
	booking := event.Booking
	if booking == nil {
		return fmt.Errorf("%w: %s", errMissingPayload, event.Type)
	}

	variables := map[Placeholder]string{
		PlaceholderRestaurantName:  booking.Restaurant.Name,
		PlaceholderBookingID:       booking.ID,
		PlaceholderBookingDate:     booking.Date.Format(time.RFC3339),
		PlaceholderSeats:           strconv.Itoa(booking.Seats),
		PlaceholderCustomerName:    booking.Customer.FirstName,
		PlaceholderCustomerSurname: booking.Customer.LastName,
	}
	return l.mailer.SendTemplatedEmail(ctx, booking.Restaurant.Restaurateur.Email, TemplateNewBooking, variables)
}

// CustomerBookingCancelledListener emails the customer after a cancellation.
type CustomerBookingCancelledListener struct {
	mailer Mailer
}

// NewCustomerBookingCancelledListener constructs the customer-facing cancellation listener.
func NewCustomerBookingCancelledListener(mailer Mailer) (*CustomerBookingCancelledListener, error) {
	if mailer == nil {
		return nil, errors.New("notifications: mailer is required")
	}
	return &CustomerBookingCancelledListener{mailer: mailer}, nil
}

// Notify implements events.Listener.
func (l *CustomerBookingCancelledListener) Notify(ctx context.Context, event events.Event) error {
	booking := event.Booking
	if booking == nil {
		return fmt.Errorf("%w: %s", errMissingPayload, event.Type)
	}

	variables := map[Placeholder]string{
		PlaceholderRestaurantName:  booking.Restaurant.Name,
		PlaceholderBookingID:       booking.ID,
		PlaceholderBookingDate:     booking.Date.Format(time.RFC3339),
		PlaceholderCustomerName:    booking.Customer.FirstName,
		PlaceholderCustomerSurname: booking.Customer.LastName,
	}
	return l.mailer.SendTemplatedEmail(ctx, booking.Customer.Email, TemplateBookingCancelled, variables)
}

// RestaurateurReviewListener emails the restaurateur about new reviews.
type RestaurateurReviewListener struct {
	mailer Mailer
}

// NewRestaurateurReviewListener constructs the restaurateur-facing review listener.
func NewRestaurateurReviewListener(mailer Mailer) (*RestaurateurReviewListener, error) {
	if mailer == nil {
		return nil, errors.New("notifications: mailer is required")
	}
	return &RestaurateurReviewListener{mailer: mailer}, nil
}

// Notify implements events.Listener.
func (l *RestaurateurReviewListener) Notify(ctx context.Context, event events.Event) error {
	review := event.Review
	if review == nil {
		return fmt.Errorf("%w: %s", errMissingPayload, event.Type)
	}

	variables := map[Placeholder]string{
		PlaceholderRestaurantName:  review.Restaurant.Name,
		PlaceholderRating:          strconv.Itoa(review.Rating),
		PlaceholderReviewComment:   review.Comment,
		PlaceholderCustomerName:    review.Author.FirstName,
		PlaceholderCustomerSurname: review.Author.LastName,
		PlaceholderCreatedAt:       review.CreatedAt.Format(time.RFC3339),
	}
	return l.mailer.SendTemplatedEmail(ctx, review.Restaurant.Restaurateur.Email, TemplateNewReview, variables)
}

// RegisterDefaults subscribes the standard listener set to the registry. The
// registration order below is the delivery order for each event type.
func RegisterDefaults(registry *events.Registry, mailer Mailer) error {
	if registry == nil {
		return errors.New("notifications: registry is required")
	}

	cookOrders, err := NewCookNewOrderListener(mailer)
	if err != nil {
		return err
	}
	restaurateurOrders, err := NewRestaurateurNewOrderListener(mailer)
	if err != nil {
		return err
	}
	customerStatus, err := NewCustomerOrderStatusListener(mailer)
	if err != nil {
		return err
	}
	restaurateurBookings, err := NewRestaurateurBookingListener(mailer)
	if err != nil {
		return err
	}
	customerCancellations, err := NewCustomerBookingCancelledListener(mailer)
	if err != nil {
		return err
	}
	restaurateurReviews, err := NewRestaurateurReviewListener(mailer)
	if err != nil {
		return err
	}

	subscriptions := []struct {
		eventType events.Type
		listener  events.Listener
	}{
		{events.TypeOrderCreated, cookOrders},
		{events.TypeOrderCreated, restaurateurOrders},
		{events.TypeOrderStatusChanged, customerStatus},
		{events.TypeOrderCompleted, customerStatus},
		{events.TypeBookingCreated, restaurateurBookings},
		{events.TypeBookingCancelled, customerCancellations},
		{events.TypeBookingReactivated, restaurateurBookings},
		{events.TypeReviewCreated, restaurateurReviews},
	}
	for _, sub := range subscriptions {
		if err := registry.Subscribe(sub.eventType, sub.listener); err != nil {
			return err
		}
	}
	return nil
}
