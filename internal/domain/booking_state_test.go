package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestBookingStateCancelAndReactivate(t *testing.T) {
	booking := Booking{Status: BookingStatusActive}

	cancelled, err := booking.State().Cancel()
	if err != nil {
		t.Fatalf("cancel active booking: %v", err)
	}
	booking.SetState(cancelled)
	if booking.Status != BookingStatusCancelled {
		t.Fatalf("expected status cancelled got %s", booking.Status)
	}

	if _, err := booking.State().Cancel(); err == nil || !strings.Contains(err.Error(), "already cancelled") {
		t.Fatalf("expected already cancelled error, got %v", err)
	}

	active, err := booking.State().Activate()
	if err != nil {
		t.Fatalf("reactivate cancelled booking: %v", err)
	}
	booking.SetState(active)
	if booking.Status != BookingStatusActive {
		t.Fatalf("expected status active got %s", booking.Status)
	}
}

func TestBookingStateRejectsActivateWhenActive(t *testing.T) {
	state := BookingStateFor(BookingStatusActive)
	_, err := state.Activate()
	if err == nil {
		t.Fatalf("expected error activating an active booking")
	}
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("error does not wrap ErrIllegalTransition: %v", err)
	}
	if !strings.Contains(err.Error(), "already active") {
		t.Fatalf("error %q does not name the reason", err)
	}
}

func TestBookingStateForIsTotal(t *testing.T) {
	for _, status := range []BookingStatus{BookingStatusActive, BookingStatusCancelled} {
		if got := BookingStateFor(status).Status(); got != status {
			t.Fatalf("resolved state reports %s for %s", got, status)
		}
	}
}

func TestBookingStateForPanicsOnUnknownStatus(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unmapped status")
		}
	}()
	BookingStateFor(BookingStatus("deleted"))
}
