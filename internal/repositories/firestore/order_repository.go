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

const orderCollection = "orders"

// OrderRepository persists orders in Firestore. Updates run inside a
// transaction that compares the stored version against the version carried by
// the entity, so at most one of two racing transitions commits.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{base: base, provider: provider}, nil
}

// Insert creates the order document. A duplicate ID surfaces as a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	if tx := pfirestore.TransactionFrom(ctx); tx != nil {
		if err := tx.Create(ref, fromDomainOrder(order)); err != nil {
			return pfirestore.WrapError("orders.insert", err)
		}
		return nil
	}
	if _, err := ref.Create(ctx, fromDomainOrder(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update persists the order under optimistic concurrency. The stored version
// must equal order.Version or the update aborts with a conflict.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}

	now := time.Now().UTC()
	updated := order
	updated.Version = order.Version + 1
	updated.UpdatedAt = now

	var err error
	if tx := pfirestore.TransactionFrom(ctx); tx != nil {
		err = r.applyUpdate(ctx, tx, order, updated)
	} else {
		err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			return r.applyUpdate(ctx, tx, order, updated)
		})
	}
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.update", err)
	}
	return updated, nil
}

func (r *OrderRepository) applyUpdate(ctx context.Context, tx *firestore.Transaction, order, updated domain.Order) error {
	ref, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	snap, err := tx.Get(ref)
	if err != nil {
		return err
	}
	var stored orderDocument
	if err := snap.DataTo(&stored); err != nil {
		return err
	}
	if stored.Deleted {
		return status.Errorf(codes.NotFound, "order %s is deleted", order.ID)
	}
	if stored.Version != order.Version {
		return status.Errorf(codes.Aborted, "order %s version mismatch: stored %d, carried %d", order.ID, stored.Version, order.Version)
	}
	return tx.Set(ref, fromDomainOrder(updated))
}

// FindByID loads the order, treating soft-deleted documents as missing.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if doc.Data.Deleted {
		return domain.Order{}, pfirestore.WrapError("orders.get", status.Errorf(codes.NotFound, "order %s is deleted", orderID))
	}
	return toDomainOrder(doc.ID, doc.Data), nil
}

// SoftDelete marks the order deleted without removing the document.
func (r *OrderRepository) SoftDelete(ctx context.Context, orderID string, deletedAt time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, orderID)
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
	return pfirestore.WrapError("orders.softdelete", err)
}

// List returns a cursor page of orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	cursor, err := decodeListCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	pageSize := normalisePageSize(filter.Pagination.PageSize)

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.Where("deleted", "==", false)
		if buyer := strings.TrimSpace(filter.BuyerID); buyer != "" {
			query = query.Where("buyer.id", "==", buyer)
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
			query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if cursor != nil {
			query = query.StartAfter(cursor.createdAt, cursor.id)
		}
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	for i, doc := range docs {
		if i == pageSize {
			break
		}
		page.Items = append(page.Items, toDomainOrder(doc.ID, doc.Data))
	}
	if len(docs) > pageSize {
		last := page.Items[len(page.Items)-1]
		token, err := encodeListCursor(last.CreatedAt, last.ID)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

type orderDocument struct {
	OrderNumber string                  `firestore:"orderNumber"`
	TableID     string                  `firestore:"tableId,omitempty"`
	Restaurant  orderRestaurantDocument `firestore:"restaurant"`
	Buyer       userSummaryDocument     `firestore:"buyer"`
	Lines       []orderLineDocument     `firestore:"lines"`
	Status      string                  `firestore:"status"`
	TotalCents  int64                   `firestore:"totalCents"`
	Currency    string                  `firestore:"currency"`
	Metadata    map[string]any          `firestore:"metadata,omitempty"`
	Version     int64                   `firestore:"version"`
	Deleted     bool                    `firestore:"deleted"`
	CreatedAt   time.Time               `firestore:"createdAt"`
	UpdatedAt   time.Time               `firestore:"updatedAt"`
	PaidAt      *time.Time              `firestore:"paidAt,omitempty"`
	CompletedAt *time.Time              `firestore:"completedAt,omitempty"`
	DeletedAt   *time.Time              `firestore:"deletedAt,omitempty"`
}

type orderRestaurantDocument struct {
	ID           string              `firestore:"id"`
	Name         string              `firestore:"name"`
	Restaurateur userSummaryDocument `firestore:"restaurateur"`
	Cook         userSummaryDocument `firestore:"cook"`
}

type orderLineDocument struct {
	DishRef   string `firestore:"dishRef"`
	Name      string `firestore:"name"`
	Quantity  int    `firestore:"quantity"`
	UnitPrice int64  `firestore:"unitPrice"`
	Total     int64  `firestore:"total"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	lines := make([]orderLineDocument, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineDocument{
			DishRef:   line.DishRef,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Total:     line.Total,
		})
	}
	return orderDocument{
		OrderNumber: order.OrderNumber,
		TableID:     order.TableID,
		Restaurant:  fromDomainOrderRestaurant(order.Restaurant),
		Buyer:       toUserSummaryDocument(order.Buyer),
		Lines:       lines,
		Status:      string(order.Status),
		TotalCents:  order.TotalCents,
		Currency:    order.Currency,
		Metadata:    order.Metadata,
		Version:     order.Version,
		Deleted:     order.DeletedAt != nil,
		CreatedAt:   order.CreatedAt.UTC(),
		UpdatedAt:   order.UpdatedAt.UTC(),
		PaidAt:      order.PaidAt,
		CompletedAt: order.CompletedAt,
		DeletedAt:   order.DeletedAt,
	}
}

func toDomainOrder(id string, doc orderDocument) domain.Order {
	lines := make([]domain.OrderLine, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		lines = append(lines, domain.OrderLine{
			DishRef:   line.DishRef,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Total:     line.Total,
		})
	}
	return domain.Order{
		ID:          id,
		OrderNumber: doc.OrderNumber,
		TableID:     doc.TableID,
		Restaurant:  toDomainOrderRestaurant(doc.Restaurant),
		Buyer:       toDomainUserSummary(doc.Buyer),
		Lines:       lines,
		Status:      domain.OrderStatus(doc.Status),
		TotalCents:  doc.TotalCents,
		Currency:    doc.Currency,
		Metadata:    doc.Metadata,
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		PaidAt:      doc.PaidAt,
		CompletedAt: doc.CompletedAt,
		DeletedAt:   doc.DeletedAt,
	}
}

func fromDomainOrderRestaurant(restaurant domain.OrderRestaurant) orderRestaurantDocument {
	return orderRestaurantDocument{
		ID:           strings.TrimSpace(restaurant.ID),
		Name:         strings.TrimSpace(restaurant.Name),
		Restaurateur: toUserSummaryDocument(restaurant.Restaurateur),
		Cook:         toUserSummaryDocument(restaurant.Cook),
	}
}

func toDomainOrderRestaurant(doc orderRestaurantDocument) domain.OrderRestaurant {
	return domain.OrderRestaurant{
		ID:           doc.ID,
		Name:         doc.Name,
		Restaurateur: toDomainUserSummary(doc.Restaurateur),
		Cook:         toDomainUserSummary(doc.Cook),
	}
}
