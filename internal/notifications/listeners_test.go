package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/events"
)

type sentMail struct {
	recipient string
	template  Template
	variables map[Placeholder]string
}

type captureMailer struct {
	sent []sentMail
	err  error
}

func (m *captureMailer) SendTemplatedEmail(_ context.Context, recipient string, template Template, variables map[Placeholder]string) error {
	m.sent = append(m.sent, sentMail{recipient: recipient, template: template, variables: variables})
	return m.err
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:     "123",
		Status: domain.OrderStatusCreated,
		Restaurant: domain.OrderRestaurant{
			ID:   "rst_1",
			Name: "Test Restaurant",
			Cook: domain.UserSummary{
				FirstName: "Cook",
				LastName:  "Surname",
				Email:     "cook@test-restaurant.example",
			},
			Restaurateur: domain.UserSummary{
				FirstName: "Rita",
				LastName:  "Owner",
				Email:     "owner@test-restaurant.example",
			},
		},
		Buyer: domain.UserSummary{
			FirstName: "John",
			LastName:  "Doe",
			Email:     "john.doe@example.com",
		},
		CreatedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestCookNewOrderListenerBuildsExactVariables(t *testing.T) {
	mailer := &captureMailer{}
	listener, err := NewCookNewOrderListener(mailer)
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}

	err = listener.Notify(context.Background(), events.Event{
		Type:  events.TypeOrderCreated,
		Order: testOrder(),
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected exactly one outbound mail, got %d", len(mailer.sent))
	}
	mail := mailer.sent[0]
	if mail.recipient != "cook@test-restaurant.example" {
		t.Fatalf("unexpected recipient %s", mail.recipient)
	}
	if mail.template != TemplateNewOrder {
		t.Fatalf("unexpected template %s", mail.template)
	}

	want := map[Placeholder]string{
		PlaceholderRestaurantName:  "Test Restaurant",
		PlaceholderCookName:        "Cook",
		PlaceholderCookSurname:     "Surname",
		PlaceholderOrderID:         "123",
		PlaceholderCustomerName:    "John",
		PlaceholderCustomerSurname: "Doe",
	}
	if len(mail.variables) != len(want) {
		t.Fatalf("expected %d variables got %d: %v", len(want), len(mail.variables), mail.variables)
	}
	for key, value := range want {
		if mail.variables[key] != value {
			t.Fatalf("variable %s = %q, want %q", key, mail.variables[key], value)
		}
	}
}

func TestCustomerOrderStatusListenerTargetsBuyer(t *testing.T) {
	mailer := &captureMailer{}
	listener, err := NewCustomerOrderStatusListener(mailer)
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}

	order := testOrder()
	order.Status = domain.OrderStatusAwaitingPayment
	if err := listener.Notify(context.Background(), events.Event{Type: events.TypeOrderStatusChanged, Order: order}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	mail := mailer.sent[0]
	if mail.recipient != "john.doe@example.com" {
		t.Fatalf("unexpected recipient %s", mail.recipient)
	}
	if mail.template != TemplateOrderStatus {
		t.Fatalf("unexpected template %s", mail.template)
	}
	if mail.variables[PlaceholderOrderStatus] != "awaiting_payment" {
		t.Fatalf("unexpected status variable %q", mail.variables[PlaceholderOrderStatus])
	}
}

func TestBookingListenersBuildVariables(t *testing.T) {
	booking := &domain.Booking{
		ID: "bkg_7",
		Restaurant: domain.BookingRestaurant{
			Name: "Test Restaurant",
			Restaurateur: domain.UserSummary{
				FirstName: "Rita",
				LastName:  "Owner",
				Email:     "owner@test-restaurant.example",
			},
		},
		Customer: domain.UserSummary{
			FirstName: "John",
			LastName:  "Doe",
			Email:     "john.doe@example.com",
		},
		Date:  time.Date(2026, 4, 1, 19, 0, 0, 0, time.UTC),
		Seats: 4,
	}

	mailer := &captureMailer{}
	restaurateur, err := NewRestaurateurBookingListener(mailer)
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}
	if err := restaurateur.Notify(context.Background(), events.Event{Type: events.TypeBookingCreated, Booking: booking}); err != nil {
		t.Fatalf("notify restaurateur: %v", err)
	}
	mail := mailer.sent[0]
	if mail.recipient != "owner@test-restaurant.example" || mail.template != TemplateNewBooking {
		t.Fatalf("unexpected mail %+v", mail)
	}
	if mail.variables[PlaceholderSeats] != "4" {
		t.Fatalf("unexpected seats variable %q", mail.variables[PlaceholderSeats])
	}

	customer, err := NewCustomerBookingCancelledListener(mailer)
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}
	if err := customer.Notify(context.Background(), events.Event{Type: events.TypeBookingCancelled, Booking: booking}); err != nil {
		t.Fatalf("notify customer: %v", err)
	}
	mail = mailer.sent[1]
	if mail.recipient != "john.doe@example.com" || mail.template != TemplateBookingCancelled {
		t.Fatalf("unexpected mail %+v", mail)
	}
}

func TestReviewListenerBuildsVariables(t *testing.T) {
	review := &domain.Review{
		ID: "rev_1",
		Restaurant: domain.OrderRestaurant{
			Name: "Test Restaurant",
			Restaurateur: domain.UserSummary{
				Email: "owner@test-restaurant.example",
			},
		},
		Author:    domain.UserSummary{FirstName: "John", LastName: "Doe"},
		Rating:    5,
		Comment:   "Great pasta",
		CreatedAt: time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC),
	}

	mailer := &captureMailer{}
	listener, err := NewRestaurateurReviewListener(mailer)
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}
	if err := listener.Notify(context.Background(), events.Event{Type: events.TypeReviewCreated, Review: review}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	mail := mailer.sent[0]
	if mail.template != TemplateNewReview {
		t.Fatalf("unexpected template %s", mail.template)
	}
	if mail.variables[PlaceholderRating] != "5" {
		t.Fatalf("unexpected rating variable %q", mail.variables[PlaceholderRating])
	}
	if mail.variables[PlaceholderReviewComment] != "Great pasta" {
		t.Fatalf("unexpected comment variable %q", mail.variables[PlaceholderReviewComment])
	}
}

func TestListenerPropagatesMailerFailure(t *testing.T) {
	mailer := &captureMailer{err: errors.New("smtp unavailable")}
	listener, err := NewCookNewOrderListener(mailer)
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}
	if err := listener.Notify(context.Background(), events.Event{Type: events.TypeOrderCreated, Order: testOrder()}); err == nil {
		t.Fatalf("expected mailer failure to propagate")
	}
}

func TestListenerRejectsMissingPayload(t *testing.T) {
	listener, err := NewCookNewOrderListener(&captureMailer{})
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}
	if err := listener.Notify(context.Background(), events.Event{Type: events.TypeOrderCreated}); err == nil {
		t.Fatalf("expected error for missing payload")
	}
}

func TestRegisterDefaultsFansOutNewOrder(t *testing.T) {
	registry := events.NewRegistry()
	mailer := &captureMailer{}
	if err := RegisterDefaults(registry, mailer); err != nil {
		t.Fatalf("register defaults: %v", err)
	}

	err := registry.Publish(context.Background(), events.Event{
		Type:  events.TypeOrderCreated,
		Order: testOrder(),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(mailer.sent) != 2 {
		t.Fatalf("expected cook and restaurateur mails, got %d", len(mailer.sent))
	}
	if mailer.sent[0].recipient != "cook@test-restaurant.example" {
		t.Fatalf("cook must be notified first, got %s", mailer.sent[0].recipient)
	}
	if mailer.sent[1].recipient != "owner@test-restaurant.example" {
		t.Fatalf("restaurateur must be notified second, got %s", mailer.sent[1].recipient)
	}
}
