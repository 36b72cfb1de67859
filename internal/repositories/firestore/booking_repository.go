package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/tavolo-app/api/internal/domain"
	pfirestore "github.com/tavolo-app/api/internal/platform/firestore"
	"github.com/tavolo-app/api/internal/repositories"
)

const bookingCollection = "bookings"

// BookingRepository persists reservations with the same optimistic version
// semantics as orders.
type BookingRepository struct {
	base     *pfirestore.BaseRepository[bookingDocument]
	provider *pfirestore.Provider
}

var _ repositories.BookingRepository = (*BookingRepository)(nil)

// NewBookingRepository constructs a Firestore-backed booking repository.
func NewBookingRepository(provider *pfirestore.Provider) (*BookingRepository, error) {
	if provider == nil {
		return nil, errors.New("booking repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[bookingDocument](provider, bookingCollection, nil, nil)
	return &BookingRepository{base: base, provider: provider}, nil
}

// Insert creates the booking document. A duplicate ID surfaces as a conflict.
// Inside a unit of work the write joins the open transaction, keeping it
// atomic with any capacity reads performed before it.
func (r *BookingRepository) Insert(ctx context.Context, booking domain.Booking) error {
	if r == nil || r.base == nil {
		return errors.New("booking repository not initialised")
	}
	if strings.TrimSpace(booking.ID) == "" {
		return errors.New("booking id is required")
	}

	ref, err := r.base.DocumentRef(ctx, booking.ID)
	if err != nil {
		return err
	}
	if tx := pfirestore.TransactionFrom(ctx); tx != nil {
		if err := tx.Create(ref, fromDomainBooking(booking)); err != nil {
			return pfirestore.WrapError("bookings.insert", err)
		}
		return nil
	}
	if _, err := ref.Create(ctx, fromDomainBooking(booking)); err != nil {
		return pfirestore.WrapError("bookings.insert", err)
	}
	return nil
}

// Update persists the booking under optimistic concurrency.
func (r *BookingRepository) Update(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	if r == nil || r.provider == nil {
		return domain.Booking{}, errors.New("booking repository not initialised")
	}
	if strings.TrimSpace(booking.ID) == "" {
		return domain.Booking{}, errors.New("booking id is required")
	}

	now := time.Now().UTC()
	updated := booking
	updated.Version = booking.Version + 1
	updated.UpdatedAt = now

	var err error
	if tx := pfirestore.TransactionFrom(ctx); tx != nil {
		err = r.applyUpdate(ctx, tx, booking, updated)
	} else {
		err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			return r.applyUpdate(ctx, tx, booking, updated)
		})
	}
	if err != nil {
		return domain.Booking{}, pfirestore.WrapError("bookings.update", err)
	}
	return updated, nil
}

func (r *BookingRepository) applyUpdate(ctx context.Context, tx *firestore.Transaction, booking, updated domain.Booking) error {
	ref, err := r.base.DocumentRef(ctx, booking.ID)
	if err != nil {
		return err
	}
	snap, err := tx.Get(ref)
	if err != nil {
		return err
	}
	var stored bookingDocument
	if err := snap.DataTo(&stored); err != nil {
		return err
	}
	if stored.Deleted {
		return status.Errorf(codes.NotFound, "booking %s is deleted", booking.ID)
	}
	if stored.Version != booking.Version {
		return status.Errorf(codes.Aborted, "booking %s version mismatch: stored %d, carried %d", booking.ID, stored.Version, booking.Version)
	}
	return tx.Set(ref, fromDomainBooking(updated))
}

// FindByID loads the booking, treating soft-deleted documents as missing.
func (r *BookingRepository) FindByID(ctx context.Context, bookingID string) (domain.Booking, error) {
	if r == nil || r.base == nil {
		return domain.Booking{}, errors.New("booking repository not initialised")
	}

	doc, err := r.base.Get(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if doc.Data.Deleted {
		return domain.Booking{}, pfirestore.WrapError("bookings.get", status.Errorf(codes.NotFound, "booking %s is deleted", bookingID))
	}
	return toDomainBooking(doc.ID, doc.Data), nil
}

// SoftDelete marks the booking deleted without removing the document.
func (r *BookingRepository) SoftDelete(ctx context.Context, bookingID string, deletedAt time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("booking repository not initialised")
	}

	markDeleted := func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, bookingID)
		if err != nil {
			return err
		}
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "deleted", Value: true},
			{Path: "deletedAt", Value: deletedAt.UTC()},
			{Path: "updatedAt", Value: deletedAt.UTC()},
		})
	}

	if tx := pfirestore.TransactionFrom(ctx); tx != nil {
		return pfirestore.WrapError("bookings.softdelete", markDeleted(ctx, tx))
	}
	return pfirestore.WrapError("bookings.softdelete", r.provider.RunTransaction(ctx, markDeleted))
}

// List returns a cursor page of bookings matching the filter, newest first.
func (r *BookingRepository) List(ctx context.Context, filter repositories.BookingListFilter) (domain.CursorPage[domain.Booking], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Booking]{}, errors.New("booking repository not initialised")
	}

	cursor, err := decodeListCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Booking]{}, err
	}
	pageSize := normalisePageSize(filter.Pagination.PageSize)

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.Where("deleted", "==", false)
		if customer := strings.TrimSpace(filter.CustomerID); customer != "" {
			query = query.Where("customer.id", "==", customer)
		}
		if restaurant := strings.TrimSpace(filter.RestaurantID); restaurant != "" {
			query = query.Where("restaurant.id", "==", restaurant)
		}
		if len(filter.Status) > 0 {
			statuses := make([]string, 0, len(filter.Status))
			for _, s := range filter.Status {
				statuses = append(statuses, string(s))
			}
			query = query.Where("status", "in", statuses)
		}
		if filter.DateRange.From != nil {
			query = query.Where("date", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			query = query.Where("date", "<=", filter.DateRange.To.UTC())
		}
		query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if cursor != nil {
			query = query.StartAfter(cursor.createdAt, cursor.id)
		}
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Booking]{}, err
	}

	page := domain.CursorPage[domain.Booking]{}
	for i, doc := range docs {
		if i == pageSize {
			break
		}
		page.Items = append(page.Items, toDomainBooking(doc.ID, doc.Data))
	}
	if len(docs) > pageSize {
		last := page.Items[len(page.Items)-1]
		token, err := encodeListCursor(last.CreatedAt, last.ID)
		if err != nil {
			return domain.CursorPage[domain.Booking]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// CountSeats sums the seats of active bookings for the sitting time on the
// given calendar day. Cancelled and soft-deleted bookings release their seats.
func (r *BookingRepository) CountSeats(ctx context.Context, restaurantID string, sittingTimeID string, date time.Time) (int, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("booking repository not initialised")
	}
	if strings.TrimSpace(restaurantID) == "" {
		return 0, errors.New("restaurant id is required")
	}
	if strings.TrimSpace(sittingTimeID) == "" {
		return 0, errors.New("sitting time id is required")
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("deleted", "==", false).
			Where("status", "==", string(domain.BookingStatusActive)).
			Where("restaurant.id", "==", strings.TrimSpace(restaurantID)).
			Where("sittingTimeRef", "==", strings.TrimSpace(sittingTimeID)).
			Where("date", ">=", dayStart).
			Where("date", "<", dayEnd)
	})
	if err != nil {
		return 0, err
	}

	total := 0
	for _, doc := range docs {
		total += doc.Data.Seats
	}
	return total, nil
}

type bookingDocument struct {
	Restaurant     bookingRestaurantDocument `firestore:"restaurant"`
	Customer       userSummaryDocument       `firestore:"customer"`
	Date           time.Time                 `firestore:"date"`
	Seats          int                       `firestore:"seats"`
	SittingTimeRef string                    `firestore:"sittingTimeRef"`
	Status         string                    `firestore:"status"`
	CancelReason   *string                   `firestore:"cancelReason,omitempty"`
	Metadata       map[string]any            `firestore:"metadata,omitempty"`
	Version        int64                     `firestore:"version"`
	Deleted        bool                      `firestore:"deleted"`
	CreatedAt      time.Time                 `firestore:"createdAt"`
	UpdatedAt      time.Time                 `firestore:"updatedAt"`
	CancelledAt    *time.Time                `firestore:"cancelledAt,omitempty"`
	DeletedAt      *time.Time                `firestore:"deletedAt,omitempty"`
}

type bookingRestaurantDocument struct {
	ID           string              `firestore:"id"`
	Name         string              `firestore:"name"`
	Restaurateur userSummaryDocument `firestore:"restaurateur"`
}

func fromDomainBooking(booking domain.Booking) bookingDocument {
	return bookingDocument{
		Restaurant: bookingRestaurantDocument{
			ID:           strings.TrimSpace(booking.Restaurant.ID),
			Name:         strings.TrimSpace(booking.Restaurant.Name),
			Restaurateur: toUserSummaryDocument(booking.Restaurant.Restaurateur),
		},
		Customer:       toUserSummaryDocument(booking.Customer),
		Date:           booking.Date.UTC(),
		Seats:          booking.Seats,
		SittingTimeRef: strings.TrimSpace(booking.SittingTimeRef),
		Status:         string(booking.Status),
		CancelReason:   booking.CancelReason,
		Metadata:       booking.Metadata,
		Version:        booking.Version,
		Deleted:        booking.DeletedAt != nil,
		CreatedAt:      booking.CreatedAt.UTC(),
		UpdatedAt:      booking.UpdatedAt.UTC(),
		CancelledAt:    booking.CancelledAt,
		DeletedAt:      booking.DeletedAt,
	}
}

func toDomainBooking(id string, doc bookingDocument) domain.Booking {
	return domain.Booking{
		ID: id,
		Restaurant: domain.BookingRestaurant{
			ID:           doc.Restaurant.ID,
			Name:         doc.Restaurant.Name,
			Restaurateur: toDomainUserSummary(doc.Restaurant.Restaurateur),
		},
		Customer:       toDomainUserSummary(doc.Customer),
		Date:           doc.Date,
		Seats:          doc.Seats,
		SittingTimeRef: doc.SittingTimeRef,
		Status:         domain.BookingStatus(doc.Status),
		CancelReason:   doc.CancelReason,
		Metadata:       doc.Metadata,
		Version:        doc.Version,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		CancelledAt:    doc.CancelledAt,
		DeletedAt:      doc.DeletedAt,
	}
}
