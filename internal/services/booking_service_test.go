package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/events"
	"github.com/tavolo-app/api/internal/repositories"
)

func TestBookingServiceCreateChecksCapacityAndEmitsEvent(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	date := time.Date(2026, 3, 20, 19, 0, 0, 0, time.UTC)
	bookings := newMemoryBookingRepo()
	publisher := &capturePublisher{}

	svc := newTestBookingService(t, bookings, publisher, now)
	ctx := context.Background()

	booking, err := svc.Create(ctx, CreateBookingCommand{
		RestaurantID:  "rst_1",
		CustomerID:    "user-buyer",
		SittingTimeID: "sit_1",
		Date:          date,
		Seats:         4,
		ActorID:       "user-buyer",
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	if booking.ID != "bkg_test" {
		t.Fatalf("expected booking id bkg_test, got %s", booking.ID)
	}
	if booking.Status != domain.BookingStatusActive {
		t.Fatalf("expected status active, got %s", booking.Status)
	}
	if booking.Seats != 4 {
		t.Fatalf("expected 4 seats, got %d", booking.Seats)
	}
	if booking.SittingTimeRef != "sit_1" {
		t.Fatalf("expected sitting time sit_1, got %s", booking.SittingTimeRef)
	}
	if booking.Customer.Email != "bruno@example.com" {
		t.Fatalf("expected customer snapshot populated, got %+v", booking.Customer)
	}
	if booking.Restaurant.Restaurateur.ID != "user-rest" {
		t.Fatalf("expected restaurateur snapshot populated, got %+v", booking.Restaurant)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(publisher.published))
	}
	if publisher.published[0].Type != events.TypeBookingCreated {
		t.Fatalf("expected booking created event, got %s", publisher.published[0].Type)
	}
	if publisher.published[0].Booking == nil || publisher.published[0].Booking.ID != booking.ID {
		t.Fatalf("expected event to carry the booking")
	}
}

func TestBookingServiceCreateValidatesInput(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	bookings := newMemoryBookingRepo()
	svc := newTestBookingService(t, bookings, nil, now)
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  CreateBookingCommand
	}{
		{
			name: "past date",
			cmd: CreateBookingCommand{
				RestaurantID:  "rst_1",
				CustomerID:    "user-buyer",
				SittingTimeID: "sit_1",
				Date:          now.Add(-time.Hour),
				Seats:         2,
			},
		},
		{
			name: "zero seats",
			cmd: CreateBookingCommand{
				RestaurantID:  "rst_1",
				CustomerID:    "user-buyer",
				SittingTimeID: "sit_1",
				Date:          now.Add(24 * time.Hour),
				Seats:         0,
			},
		},
		{
			name: "unknown sitting time",
			cmd: CreateBookingCommand{
				RestaurantID:  "rst_1",
				CustomerID:    "user-buyer",
				SittingTimeID: "sit_missing",
				Date:          now.Add(24 * time.Hour),
				Seats:         2,
			},
		},
		{
			name: "unknown restaurant",
			cmd: CreateBookingCommand{
				RestaurantID:  "rst_missing",
				CustomerID:    "user-buyer",
				SittingTimeID: "sit_1",
				Date:          now.Add(24 * time.Hour),
				Seats:         2,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.cmd); !errors.Is(err, ErrBookingInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}

	if len(bookings.bookings) != 0 {
		t.Fatalf("expected no bookings persisted, got %d", len(bookings.bookings))
	}
}

func TestBookingServiceCreateRejectsOverCapacity(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	date := time.Date(2026, 3, 20, 19, 0, 0, 0, time.UTC)
	bookings := newMemoryBookingRepo()
	publisher := &capturePublisher{}
	seedBooking(t, bookings, "bkg_existing", domain.BookingStatusActive, date, 8, now.Add(-time.Hour))

	svc := newTestBookingService(t, bookings, publisher, now)

	_, err := svc.Create(context.Background(), CreateBookingCommand{
		RestaurantID:  "rst_1",
		CustomerID:    "user-buyer",
		SittingTimeID: "sit_1",
		Date:          date,
		Seats:         3,
		ActorID:       "user-buyer",
	})
	if !errors.Is(err, ErrBookingCapacityExceeded) {
		t.Fatalf("expected capacity exceeded, got %v", err)
	}
	if len(bookings.bookings) != 1 {
		t.Fatalf("expected only the seeded booking, got %d", len(bookings.bookings))
	}
	if len(publisher.published) != 0 {
		t.Fatalf("expected no event for rejected booking, got %d", len(publisher.published))
	}
}

func TestBookingServiceCreateIgnoresCapacityWhenUnlimited(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	date := time.Date(2026, 3, 20, 21, 30, 0, 0, time.UTC)
	bookings := newMemoryBookingRepo()

	svc := newTestBookingService(t, bookings, nil, now)

	// sit_2 has capacity 0, which disables the check.
	if _, err := svc.Create(context.Background(), CreateBookingCommand{
		RestaurantID:  "rst_1",
		CustomerID:    "user-buyer",
		SittingTimeID: "sit_2",
		Date:          date,
		Seats:         50,
	}); err != nil {
		t.Fatalf("create booking: %v", err)
	}
}

func TestBookingServiceCreateRunsCapacityCheckAndInsertInOneUnit(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	date := time.Date(2026, 3, 20, 19, 0, 0, 0, time.UTC)
	repo := &unitObservingBookingRepo{memoryBookingRepo: newMemoryBookingRepo()}
	unit := &markingUnitOfWork{}

	svc, err := NewBookingService(BookingServiceDeps{
		Bookings:    repo,
		Restaurants: newStubRestaurantRepo(),
		Users:       newStubUserRepo(),
		UnitOfWork:  unit,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "test" },
	})
	if err != nil {
		t.Fatalf("new booking service: %v", err)
	}

	if _, err := svc.Create(context.Background(), CreateBookingCommand{
		RestaurantID:  "rst_1",
		CustomerID:    "user-buyer",
		SittingTimeID: "sit_1",
		Date:          date,
		Seats:         4,
	}); err != nil {
		t.Fatalf("create booking: %v", err)
	}

	if unit.calls != 1 {
		t.Fatalf("expected a single unit of work, got %d", unit.calls)
	}
	if !repo.countInUnit {
		t.Fatalf("capacity count ran outside the unit of work")
	}
	if !repo.insertInUnit {
		t.Fatalf("insert ran outside the unit of work")
	}
}

func TestBookingServiceCancelAndReactivate(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	date := time.Date(2026, 3, 20, 19, 0, 0, 0, time.UTC)
	bookings := newMemoryBookingRepo()
	publisher := &capturePublisher{}
	seedBooking(t, bookings, "bkg_1", domain.BookingStatusActive, date, 4, now.Add(-time.Hour))

	svc := newTestBookingService(t, bookings, publisher, now)
	ctx := context.Background()

	cancelled, err := svc.Cancel(ctx, CancelBookingCommand{
		BookingID: "bkg_1",
		Reason:    "guest called in sick",
		ActorID:   "user-rest",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.BookingStatusCancelled {
		t.Fatalf("expected status cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil || !cancelled.CancelledAt.Equal(now) {
		t.Fatalf("expected cancelled at %s, got %v", now, cancelled.CancelledAt)
	}
	if cancelled.CancelReason == nil || *cancelled.CancelReason != "guest called in sick" {
		t.Fatalf("expected cancel reason stored, got %v", cancelled.CancelReason)
	}

	if _, err := svc.Cancel(ctx, CancelBookingCommand{BookingID: "bkg_1"}); !errors.Is(err, ErrBookingInvalidState) {
		t.Fatalf("expected invalid state cancelling twice, got %v", err)
	}

	reactivated, err := svc.Reactivate(ctx, ReactivateBookingCommand{BookingID: "bkg_1", ActorID: "admin-1"})
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if reactivated.Status != domain.BookingStatusActive {
		t.Fatalf("expected status active, got %s", reactivated.Status)
	}
	if reactivated.CancelledAt != nil || reactivated.CancelReason != nil {
		t.Fatalf("expected cancellation fields cleared, got %v %v", reactivated.CancelledAt, reactivated.CancelReason)
	}

	if _, err := svc.Reactivate(ctx, ReactivateBookingCommand{BookingID: "bkg_1"}); !errors.Is(err, ErrBookingInvalidState) {
		t.Fatalf("expected invalid state reactivating an active booking, got %v", err)
	}

	types := make([]events.Type, 0, len(publisher.published))
	for _, event := range publisher.published {
		types = append(types, event.Type)
	}
	if len(types) != 2 || types[0] != events.TypeBookingCancelled || types[1] != events.TypeBookingReactivated {
		t.Fatalf("expected cancelled then reactivated events, got %v", types)
	}
	if publisher.published[0].PreviousStatus != string(domain.BookingStatusActive) {
		t.Fatalf("expected previous status active, got %s", publisher.published[0].PreviousStatus)
	}
}

func TestBookingServiceReactivateReChecksCapacity(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	date := time.Date(2026, 3, 20, 19, 0, 0, 0, time.UTC)
	bookings := newMemoryBookingRepo()
	seedBooking(t, bookings, "bkg_cancelled", domain.BookingStatusCancelled, date, 4, now.Add(-2*time.Hour))
	seedBooking(t, bookings, "bkg_filler", domain.BookingStatusActive, date, 8, now.Add(-time.Hour))

	svc := newTestBookingService(t, bookings, nil, now)

	_, err := svc.Reactivate(context.Background(), ReactivateBookingCommand{BookingID: "bkg_cancelled"})
	if !errors.Is(err, ErrBookingCapacityExceeded) {
		t.Fatalf("expected capacity exceeded on reactivate, got %v", err)
	}

	stored, err := bookings.FindByID(context.Background(), "bkg_cancelled")
	if err != nil {
		t.Fatalf("find stored booking: %v", err)
	}
	if stored.Status != domain.BookingStatusCancelled {
		t.Fatalf("expected booking still cancelled, got %s", stored.Status)
	}
}

func TestBookingServiceSoftDelete(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	date := time.Date(2026, 3, 20, 19, 0, 0, 0, time.UTC)
	bookings := newMemoryBookingRepo()
	seedBooking(t, bookings, "bkg_gone", domain.BookingStatusCancelled, date, 2, now.Add(-time.Hour))

	svc := newTestBookingService(t, bookings, nil, now)
	ctx := context.Background()

	if err := svc.SoftDelete(ctx, DeleteBookingCommand{BookingID: "bkg_gone", ActorID: "admin-1"}); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := svc.Get(ctx, "bkg_gone"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected not found after soft delete, got %v", err)
	}
}

// --- test doubles -----------------------------------------------------------------

func newTestBookingService(t *testing.T, bookings *memoryBookingRepo, publisher EventPublisher, now time.Time) BookingService {
	t.Helper()

	svc, err := NewBookingService(BookingServiceDeps{
		Bookings:    bookings,
		Restaurants: newStubRestaurantRepo(),
		Users:       newStubUserRepo(),
		Clock: func() time.Time {
			return now
		},
		IDGenerator: func() string { return "test" },
		Events:      publisher,
	})
	if err != nil {
		t.Fatalf("new booking service: %v", err)
	}
	return svc
}

func seedBooking(t *testing.T, repo *memoryBookingRepo, id string, status domain.BookingStatus, date time.Time, seats int, createdAt time.Time) {
	t.Helper()

	booking := domain.Booking{
		ID: id,
		Restaurant: domain.BookingRestaurant{
			ID:           "rst_1",
			Name:         "Trattoria da Gigi",
			Restaurateur: domain.UserSummary{ID: "user-rest", FirstName: "Gigi", LastName: "Rossi", Email: "gigi@example.com"},
		},
		Customer:       domain.UserSummary{ID: "user-buyer", FirstName: "Bruno", LastName: "Verdi", Email: "bruno@example.com"},
		Date:           date,
		Seats:          seats,
		SittingTimeRef: "sit_1",
		Status:         status,
		Version:        1,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	if status == domain.BookingStatusCancelled {
		cancelledAt := createdAt
		booking.CancelledAt = &cancelledAt
	}
	if err := repo.Insert(context.Background(), booking); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
}

type unitMarkerKey struct{}

// markingUnitOfWork tags the context it hands to fn so repositories can
// observe whether they were invoked inside the unit of work.
type markingUnitOfWork struct {
	calls int
}

func (u *markingUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	u.calls++
	return fn(context.WithValue(ctx, unitMarkerKey{}, true))
}

type unitObservingBookingRepo struct {
	*memoryBookingRepo
	insertInUnit bool
	countInUnit  bool
}

func (r *unitObservingBookingRepo) Insert(ctx context.Context, booking domain.Booking) error {
	r.insertInUnit, _ = ctx.Value(unitMarkerKey{}).(bool)
	return r.memoryBookingRepo.Insert(ctx, booking)
}

func (r *unitObservingBookingRepo) CountSeats(ctx context.Context, restaurantID string, sittingTimeID string, date time.Time) (int, error) {
	r.countInUnit, _ = ctx.Value(unitMarkerKey{}).(bool)
	return r.memoryBookingRepo.CountSeats(ctx, restaurantID, sittingTimeID, date)
}

type memoryBookingRepo struct {
	bookings  map[string]domain.Booking
	updateErr error
	countErr  error
}

func newMemoryBookingRepo() *memoryBookingRepo {
	return &memoryBookingRepo{bookings: make(map[string]domain.Booking)}
}

func (m *memoryBookingRepo) Insert(_ context.Context, booking domain.Booking) error {
	if _, exists := m.bookings[booking.ID]; exists {
		return repoError{message: "duplicate", conflict: true}
	}
	m.bookings[booking.ID] = booking
	return nil
}

func (m *memoryBookingRepo) Update(_ context.Context, booking domain.Booking) (domain.Booking, error) {
	if m.updateErr != nil {
		return domain.Booking{}, m.updateErr
	}
	stored, ok := m.bookings[booking.ID]
	if !ok || stored.DeletedAt != nil {
		return domain.Booking{}, repoError{message: "not found", notFound: true}
	}
	if stored.Version != booking.Version {
		return domain.Booking{}, repoError{message: "version mismatch", conflict: true}
	}
	booking.Version++
	m.bookings[booking.ID] = booking
	return booking, nil
}

func (m *memoryBookingRepo) FindByID(_ context.Context, bookingID string) (domain.Booking, error) {
	booking, ok := m.bookings[bookingID]
	if !ok || booking.DeletedAt != nil {
		return domain.Booking{}, repoError{message: "not found", notFound: true}
	}
	return booking, nil
}

func (m *memoryBookingRepo) SoftDelete(_ context.Context, bookingID string, deletedAt time.Time) error {
	booking, ok := m.bookings[bookingID]
	if !ok || booking.DeletedAt != nil {
		return repoError{message: "not found", notFound: true}
	}
	booking.DeletedAt = &deletedAt
	m.bookings[bookingID] = booking
	return nil
}

func (m *memoryBookingRepo) List(_ context.Context, filter repositories.BookingListFilter) (domain.CursorPage[domain.Booking], error) {
	var items []domain.Booking
	for _, booking := range m.bookings {
		if booking.DeletedAt != nil {
			continue
		}
		if filter.CustomerID != "" && booking.Customer.ID != filter.CustomerID {
			continue
		}
		items = append(items, booking)
	}
	return domain.CursorPage[domain.Booking]{Items: items}, nil
}

func (m *memoryBookingRepo) CountSeats(_ context.Context, restaurantID string, sittingTimeID string, date time.Time) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	day := date.UTC().Truncate(24 * time.Hour)
	total := 0
	for _, booking := range m.bookings {
		if booking.DeletedAt != nil || booking.Status != domain.BookingStatusActive {
			continue
		}
		if booking.Restaurant.ID != restaurantID || booking.SittingTimeRef != sittingTimeID {
			continue
		}
		if !booking.Date.UTC().Truncate(24 * time.Hour).Equal(day) {
			continue
		}
		total += booking.Seats
	}
	return total, nil
}
