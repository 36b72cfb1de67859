package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/events"
	"github.com/tavolo-app/api/internal/repositories"
)

const bookingIDPrefix = "bkg_"

var (
	// ErrBookingInvalidInput signals the caller provided invalid data.
	ErrBookingInvalidInput = errors.New("booking: invalid input")
	// ErrBookingNotFound indicates the booking could not be located.
	ErrBookingNotFound = errors.New("booking: not found")
	// ErrBookingInvalidState indicates an illegal lifecycle transition was attempted.
	ErrBookingInvalidState = errors.New("booking: invalid status transition")
	// ErrBookingConflict indicates optimistic concurrency conflicts or duplicates.
	ErrBookingConflict = errors.New("booking: conflict")
	// ErrBookingCapacityExceeded is returned when the sitting time cannot seat the party.
	ErrBookingCapacityExceeded = errors.New("booking: sitting time capacity exceeded")
)

// BookingServiceDeps bundles collaborators required to construct the booking service.
type BookingServiceDeps struct {
	Bookings    repositories.BookingRepository
	Restaurants repositories.RestaurantRepository
	Users       repositories.UserRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type bookingService struct {
	bookings    repositories.BookingRepository
	restaurants repositories.RestaurantRepository
	users       repositories.UserRepository
	unitOfWork  repositories.UnitOfWork
	clock       func() time.Time
	newID       func() string
	events      EventPublisher
	logger      func(context.Context, string, map[string]any)
}

// NewBookingService wires dependencies into a concrete BookingService implementation.
func NewBookingService(deps BookingServiceDeps) (BookingService, error) {
	if deps.Bookings == nil {
		return nil, errors.New("booking service: booking repository is required")
	}
	if deps.Restaurants == nil {
		return nil, errors.New("booking service: restaurant repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("booking service: user repository is required")
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

	return &bookingService{
		bookings:    deps.Bookings,
		restaurants: deps.Restaurants,
		users:       deps.Users,
		unitOfWork:  unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *bookingService) Create(ctx context.Context, cmd CreateBookingCommand) (Booking, error) {
	restaurantID := strings.TrimSpace(cmd.RestaurantID)
	customerID := strings.TrimSpace(cmd.CustomerID)
	sittingTimeID := strings.TrimSpace(cmd.SittingTimeID)

	if restaurantID == "" {
		return Booking{}, fmt.Errorf("%w: restaurant id is required", ErrBookingInvalidInput)
	}
	if customerID == "" {
		return Booking{}, fmt.Errorf("%w: customer id is required", ErrBookingInvalidInput)
	}
	if sittingTimeID == "" {
		return Booking{}, fmt.Errorf("%w: sitting time id is required", ErrBookingInvalidInput)
	}
	if cmd.Seats < 1 {
		return Booking{}, fmt.Errorf("%w: seats must be at least 1", ErrBookingInvalidInput)
	}

	now := s.now()
	if !cmd.Date.After(now) {
		return Booking{}, fmt.Errorf("%w: booking date must be in the future", ErrBookingInvalidInput)
	}

	restaurant, err := s.restaurants.FindByID(ctx, restaurantID)
	if err != nil {
		return Booking{}, s.mapLookupError(err, "restaurant not found")
	}
	customer, err := s.users.FindByID(ctx, customerID)
	if err != nil {
		return Booking{}, s.mapLookupError(err, "customer not found")
	}

	sitting, err := findSittingTime(restaurant, sittingTimeID)
	if err != nil {
		return Booking{}, err
	}

	booking := Booking{
		ID: bookingIDPrefix + s.newID(),
		Restaurant: BookingRestaurant{
			ID:           restaurant.ID,
			Name:         restaurant.Name,
			Restaurateur: restaurant.Restaurateur,
		},
		Customer:       userSummaryOf(customer),
		Date:           cmd.Date.UTC(),
		Seats:          cmd.Seats,
		SittingTimeRef: sitting.ID,
		Status:         domain.BookingStatusActive,
		Metadata:       cloneMap(cmd.Metadata),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureCapacity(txCtx, restaurant.ID, sitting, booking.Date, cmd.Seats); err != nil {
			return err
		}
		if err := s.bookings.Insert(txCtx, booking); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Booking{}, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.TypeBookingCreated,
		Booking:    &booking,
		ActorID:    strings.TrimSpace(cmd.ActorID),
		OccurredAt: now,
	})

	return booking, nil
}

func (s *bookingService) Get(ctx context.Context, bookingID string) (Booking, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return Booking{}, fmt.Errorf("%w: booking id is required", ErrBookingInvalidInput)
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return Booking{}, s.mapRepositoryError(err)
	}
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, filter BookingListFilter) (domain.CursorPage[Booking], error) {
	page, err := s.bookings.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Booking]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *bookingService) Cancel(ctx context.Context, cmd CancelBookingCommand) (Booking, error) {
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return Booking{}, fmt.Errorf("%w: booking id is required", ErrBookingInvalidInput)
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return Booking{}, s.mapRepositoryError(err)
	}

	next, err := booking.State().Cancel()
	if err != nil {
		if errors.Is(err, domain.ErrIllegalTransition) {
			return Booking{}, fmt.Errorf("%w: %v", ErrBookingInvalidState, err)
		}
		return Booking{}, err
	}

	now := s.now()
	booking.SetState(next)
	booking.CancelledAt = &now
	booking.CancelReason = optionalString(strings.TrimSpace(cmd.Reason))
	booking.UpdatedAt = now

	var updated Booking
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		updated, txErr = s.bookings.Update(txCtx, booking)
		if txErr != nil {
			return s.mapRepositoryError(txErr)
		}
		return nil
	})
	if err != nil {
		return Booking{}, err
	}

	s.publishEvent(ctx, events.Event{
		Type:           events.TypeBookingCancelled,
		Booking:        &updated,
		PreviousStatus: string(domain.BookingStatusActive),
		ActorID:        strings.TrimSpace(cmd.ActorID),
		OccurredAt:     now,
	})

	return updated, nil
}

func (s *bookingService) Reactivate(ctx context.Context, cmd ReactivateBookingCommand) (Booking, error) {
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return Booking{}, fmt.Errorf("%w: booking id is required", ErrBookingInvalidInput)
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return Booking{}, s.mapRepositoryError(err)
	}

	next, err := booking.State().Activate()
	if err != nil {
		if errors.Is(err, domain.ErrIllegalTransition) {
			return Booking{}, fmt.Errorf("%w: %v", ErrBookingInvalidState, err)
		}
		return Booking{}, err
	}

	restaurant, err := s.restaurants.FindByID(ctx, booking.Restaurant.ID)
	if err != nil {
		return Booking{}, s.mapLookupError(err, "restaurant not found")
	}
	sitting, err := findSittingTime(restaurant, booking.SittingTimeRef)
	if err != nil {
		return Booking{}, err
	}

	now := s.now()
	booking.SetState(next)
	booking.CancelledAt = nil
	booking.CancelReason = nil
	booking.UpdatedAt = now

	var updated Booking
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureCapacity(txCtx, restaurant.ID, sitting, booking.Date, booking.Seats); err != nil {
			return err
		}
		var txErr error
		updated, txErr = s.bookings.Update(txCtx, booking)
		if txErr != nil {
			return s.mapRepositoryError(txErr)
		}
		return nil
	})
	if err != nil {
		return Booking{}, err
	}

	s.publishEvent(ctx, events.Event{
		Type:           events.TypeBookingReactivated,
		Booking:        &updated,
		PreviousStatus: string(domain.BookingStatusCancelled),
		ActorID:        strings.TrimSpace(cmd.ActorID),
		OccurredAt:     now,
	})

	return updated, nil
}

func (s *bookingService) SoftDelete(ctx context.Context, cmd DeleteBookingCommand) error {
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return fmt.Errorf("%w: booking id is required", ErrBookingInvalidInput)
	}

	if _, err := s.bookings.FindByID(ctx, bookingID); err != nil {
		return s.mapRepositoryError(err)
	}
	if err := s.bookings.SoftDelete(ctx, bookingID, s.now()); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

// ensureCapacity sums the seats already held for the sitting time on the
// booking's day and rejects the party when it would overflow the capacity.
func (s *bookingService) ensureCapacity(ctx context.Context, restaurantID string, sitting SittingTime, date time.Time, seats int) error {
	if sitting.Capacity <= 0 {
		return nil
	}
	taken, err := s.bookings.CountSeats(ctx, restaurantID, sitting.ID, date)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if taken+seats > sitting.Capacity {
		return fmt.Errorf("%w: %d seats requested, %d of %d available", ErrBookingCapacityExceeded, seats, sitting.Capacity-taken, sitting.Capacity)
	}
	return nil
}

func findSittingTime(restaurant Restaurant, sittingTimeID string) (SittingTime, error) {
	for _, sitting := range restaurant.SittingTimes {
		if sitting.ID == sittingTimeID {
			return sitting, nil
		}
	}
	return SittingTime{}, fmt.Errorf("%w: sitting time %s does not exist", ErrBookingInvalidInput, sittingTimeID)
}

func (s *bookingService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrBookingNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrBookingConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("booking: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *bookingService) mapLookupError(err error, missing string) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %s", ErrBookingInvalidInput, missing)
	}
	return err
}

func (s *bookingService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *bookingService) now() time.Time {
	return s.clock()
}

func (s *bookingService) publishEvent(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		fields := map[string]any{
			"type":  string(event.Type),
			"error": err.Error(),
		}
		if event.Booking != nil {
			fields["booking"] = event.Booking.ID
			fields["status"] = string(event.Booking.Status)
		}
		s.logger(ctx, "booking.event.publish.failed", fields)
	}
}
