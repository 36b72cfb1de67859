package domain

import "fmt"

// BookingState encodes the state-graph legality for bookings. Business
// preconditions (seat capacity, date in the future) are checked by the
// service layer before a transition is attempted; the state only knows
// which edges exist:
//
//	active <-> cancelled
//
// Re-activating a cancelled booking is legal at the graph level but reserved
// for administrative callers by the service layer.
type BookingState interface {
	// Status returns the persisted status the state corresponds to.
	Status() BookingStatus
	// Activate restores a cancelled booking.
	Activate() (BookingState, error)
	// Cancel releases the booking's seats.
	Cancel() (BookingState, error)
}

// BookingStateFor resolves the behavioural state for a persisted status
// value. Total over the BookingStatus enum; an unmapped value panics.
func BookingStateFor(status BookingStatus) BookingState {
	switch status {
	case BookingStatusActive:
		return bookingActive{}
	case BookingStatusCancelled:
		return bookingCancelled{}
	default:
		panic(fmt.Sprintf("domain: no booking state mapped for status %q", status))
	}
}

func illegalBookingTransition(op string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrIllegalTransition, op, reason)
}

type bookingActive struct{}

func (bookingActive) Status() BookingStatus { return BookingStatusActive }
func (bookingActive) Activate() (BookingState, error) {
	return nil, illegalBookingTransition("activate", "already active")
}
func (bookingActive) Cancel() (BookingState, error) {
	return bookingCancelled{}, nil
}

type bookingCancelled struct{}

func (bookingCancelled) Status() BookingStatus { return BookingStatusCancelled }
func (bookingCancelled) Activate() (BookingState, error) {
	return bookingActive{}, nil
}
func (bookingCancelled) Cancel() (BookingState, error) {
	return nil, illegalBookingTransition("cancel", "already cancelled")
}
