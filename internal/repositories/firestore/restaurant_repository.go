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

const restaurantCollection = "restaurants"

// RestaurantRepository stores restaurant master data with the embedded staff,
// sitting times, and menu.
type RestaurantRepository struct {
	base     *pfirestore.BaseRepository[restaurantDocument]
	provider *pfirestore.Provider
}

var _ repositories.RestaurantRepository = (*RestaurantRepository)(nil)

// NewRestaurantRepository constructs a Firestore-backed restaurant repository.
func NewRestaurantRepository(provider *pfirestore.Provider) (*RestaurantRepository, error) {
	if provider == nil {
		return nil, errors.New("restaurant repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[restaurantDocument](provider, restaurantCollection, nil, nil)
	return &RestaurantRepository{base: base, provider: provider}, nil
}

// Insert creates the restaurant document. A duplicate ID surfaces as a conflict.
func (r *RestaurantRepository) Insert(ctx context.Context, restaurant domain.Restaurant) error {
	if r == nil || r.base == nil {
		return errors.New("restaurant repository not initialised")
	}
	if strings.TrimSpace(restaurant.ID) == "" {
		return errors.New("restaurant id is required")
	}

	ref, err := r.base.DocumentRef(ctx, restaurant.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainRestaurant(restaurant)); err != nil {
		return pfirestore.WrapError("restaurants.insert", err)
	}
	return nil
}

// Update persists the restaurant under optimistic concurrency.
func (r *RestaurantRepository) Update(ctx context.Context, restaurant domain.Restaurant) (domain.Restaurant, error) {
	if r == nil || r.provider == nil {
		return domain.Restaurant{}, errors.New("restaurant repository not initialised")
	}
	if strings.TrimSpace(restaurant.ID) == "" {
		return domain.Restaurant{}, errors.New("restaurant id is required")
	}

	now := time.Now().UTC()
	updated := restaurant
	updated.Version = restaurant.Version + 1
	updated.UpdatedAt = now

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, restaurant.ID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var stored restaurantDocument
		if err := snap.DataTo(&stored); err != nil {
			return err
		}
		if stored.Deleted {
			return status.Errorf(codes.NotFound, "restaurant %s is deleted", restaurant.ID)
		}
		if stored.Version != restaurant.Version {
			return status.Errorf(codes.Aborted, "restaurant %s version mismatch: stored %d, carried %d", restaurant.ID, stored.Version, restaurant.Version)
		}
		return tx.Set(ref, fromDomainRestaurant(updated))
	})
	if err != nil {
		return domain.Restaurant{}, pfirestore.WrapError("restaurants.update", err)
	}
	return updated, nil
}

// FindByID loads the restaurant, treating soft-deleted documents as missing.
func (r *RestaurantRepository) FindByID(ctx context.Context, restaurantID string) (domain.Restaurant, error) {
	if r == nil || r.base == nil {
		return domain.Restaurant{}, errors.New("restaurant repository not initialised")
	}

	doc, err := r.base.Get(ctx, restaurantID)
	if err != nil {
		return domain.Restaurant{}, err
	}
	if doc.Data.Deleted {
		return domain.Restaurant{}, pfirestore.WrapError("restaurants.get", status.Errorf(codes.NotFound, "restaurant %s is deleted", restaurantID))
	}
	return toDomainRestaurant(doc.ID, doc.Data), nil
}

// SoftDelete marks the restaurant deleted without removing the document.
func (r *RestaurantRepository) SoftDelete(ctx context.Context, restaurantID string, deletedAt time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("restaurant repository not initialised")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, restaurantID)
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
	})
	return pfirestore.WrapError("restaurants.softdelete", err)
}

// List returns a cursor page of restaurants, newest first.
func (r *RestaurantRepository) List(ctx context.Context, filter repositories.RestaurantListFilter) (domain.CursorPage[domain.Restaurant], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Restaurant]{}, errors.New("restaurant repository not initialised")
	}

	cursor, err := decodeListCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Restaurant]{}, err
	}
	pageSize := normalisePageSize(filter.Pagination.PageSize)

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.Where("deleted", "==", false)
		if restaurateur := strings.TrimSpace(filter.RestaurateurID); restaurateur != "" {
			query = query.Where("restaurateur.id", "==", restaurateur)
		}
		query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if cursor != nil {
			query = query.StartAfter(cursor.createdAt, cursor.id)
		}
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Restaurant]{}, err
	}

	page := domain.CursorPage[domain.Restaurant]{}
	for i, doc := range docs {
		if i == pageSize {
			break
		}
		page.Items = append(page.Items, toDomainRestaurant(doc.ID, doc.Data))
	}
	if len(docs) > pageSize {
		last := page.Items[len(page.Items)-1]
		token, err := encodeListCursor(last.CreatedAt, last.ID)
		if err != nil {
			return domain.CursorPage[domain.Restaurant]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

type restaurantDocument struct {
	Name         string                `firestore:"name"`
	Address      string                `firestore:"address"`
	Phone        string                `firestore:"phone,omitempty"`
	Restaurateur userSummaryDocument   `firestore:"restaurateur"`
	Cook         userSummaryDocument   `firestore:"cook"`
	SittingTimes []sittingTimeDocument `firestore:"sittingTimes"`
	Dishes       []dishDocument        `firestore:"dishes"`
	Tables       int                   `firestore:"tables"`
	Metadata     map[string]any        `firestore:"metadata,omitempty"`
	Version      int64                 `firestore:"version"`
	Deleted      bool                  `firestore:"deleted"`
	CreatedAt    time.Time             `firestore:"createdAt"`
	UpdatedAt    time.Time             `firestore:"updatedAt"`
	DeletedAt    *time.Time            `firestore:"deletedAt,omitempty"`
}

type sittingTimeDocument struct {
	ID       string `firestore:"id"`
	Start    string `firestore:"start"`
	End      string `firestore:"end"`
	Capacity int    `firestore:"capacity"`
}

type dishDocument struct {
	ID          string    `firestore:"id"`
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	PriceCents  int64     `firestore:"priceCents"`
	Currency    string    `firestore:"currency"`
	Available   bool      `firestore:"available"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func fromDomainRestaurant(restaurant domain.Restaurant) restaurantDocument {
	sittings := make([]sittingTimeDocument, 0, len(restaurant.SittingTimes))
	for _, sitting := range restaurant.SittingTimes {
		sittings = append(sittings, sittingTimeDocument{
			ID:       sitting.ID,
			Start:    sitting.Start,
			End:      sitting.End,
			Capacity: sitting.Capacity,
		})
	}
	dishes := make([]dishDocument, 0, len(restaurant.Dishes))
	for _, dish := range restaurant.Dishes {
		dishes = append(dishes, dishDocument{
			ID:          dish.ID,
			Name:        dish.Name,
			Description: dish.Description,
			PriceCents:  dish.PriceCents,
			Currency:    dish.Currency,
			Available:   dish.Available,
			CreatedAt:   dish.CreatedAt.UTC(),
			UpdatedAt:   dish.UpdatedAt.UTC(),
		})
	}
	return restaurantDocument{
		Name:         strings.TrimSpace(restaurant.Name),
		Address:      strings.TrimSpace(restaurant.Address),
		Phone:        strings.TrimSpace(restaurant.Phone),
		Restaurateur: toUserSummaryDocument(restaurant.Restaurateur),
		Cook:         toUserSummaryDocument(restaurant.Cook),
		SittingTimes: sittings,
		Dishes:       dishes,
		Tables:       restaurant.Tables,
		Metadata:     restaurant.Metadata,
		Version:      restaurant.Version,
		Deleted:      restaurant.DeletedAt != nil,
		CreatedAt:    restaurant.CreatedAt.UTC(),
		UpdatedAt:    restaurant.UpdatedAt.UTC(),
		DeletedAt:    restaurant.DeletedAt,
	}
}

func toDomainRestaurant(id string, doc restaurantDocument) domain.Restaurant {
	sittings := make([]domain.SittingTime, 0, len(doc.SittingTimes))
	for _, sitting := range doc.SittingTimes {
		sittings = append(sittings, domain.SittingTime{
			ID:       sitting.ID,
			Start:    sitting.Start,
			End:      sitting.End,
			Capacity: sitting.Capacity,
		})
	}
	dishes := make([]domain.Dish, 0, len(doc.Dishes))
	for _, dish := range doc.Dishes {
		dishes = append(dishes, domain.Dish{
			ID:          dish.ID,
			Name:        dish.Name,
			Description: dish.Description,
			PriceCents:  dish.PriceCents,
			Currency:    dish.Currency,
			Available:   dish.Available,
			CreatedAt:   dish.CreatedAt,
			UpdatedAt:   dish.UpdatedAt,
		})
	}
	return domain.Restaurant{
		ID:           id,
		Name:         doc.Name,
		Address:      doc.Address,
		Phone:        doc.Phone,
		Restaurateur: toDomainUserSummary(doc.Restaurateur),
		Cook:         toDomainUserSummary(doc.Cook),
		SittingTimes: sittings,
		Dishes:       dishes,
		Tables:       doc.Tables,
		Metadata:     doc.Metadata,
		Version:      doc.Version,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		DeletedAt:    doc.DeletedAt,
	}
}
