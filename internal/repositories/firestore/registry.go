package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/tavolo-app/api/internal/platform/firestore"
	"github.com/tavolo-app/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	orders      *OrderRepository
	bookings    *BookingRepository
	restaurants *RestaurantRepository
	reviews     *ReviewRepository
	users       *UserRepository
	counters    *CounterRepository
	auditLogs   *AuditLogRepository
	health      repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs every Firestore repository on the shared provider.
// The health repository is supplied by the caller since its probe set spans
// more than Firestore.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	if health == nil {
		return nil, errors.New("registry requires health repository")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	bookings, err := NewBookingRepository(provider)
	if err != nil {
		return nil, err
	}
	restaurants, err := NewRestaurantRepository(provider)
	if err != nil {
		return nil, err
	}
	reviews, err := NewReviewRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}
	auditLogs, err := NewAuditLogRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:    provider,
		orders:      orders,
		bookings:    bookings,
		restaurants: restaurants,
		reviews:     reviews,
		users:       users,
		counters:    counters,
		auditLogs:   auditLogs,
		health:      health,
	}, nil
}

func (r *Registry) Orders() repositories.OrderRepository           { return r.orders }
func (r *Registry) Bookings() repositories.BookingRepository       { return r.bookings }
func (r *Registry) Restaurants() repositories.RestaurantRepository { return r.restaurants }
func (r *Registry) Reviews() repositories.ReviewRepository         { return r.reviews }
func (r *Registry) Users() repositories.UserRepository             { return r.users }
func (r *Registry) Counters() repositories.CounterRepository       { return r.counters }
func (r *Registry) AuditLogs() repositories.AuditLogRepository     { return r.auditLogs }
func (r *Registry) Health() repositories.HealthRepository          { return r.health }

// RunInTx executes fn inside a Firestore transaction. The context passed to
// fn carries the open transaction, so every repository read and write made
// through it joins the same atomic commit. Reads must precede writes within
// fn, per Firestore's transaction contract.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	if fn == nil {
		return errors.New("registry: transaction function is nil")
	}
	return r.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		return fn(txCtx)
	})
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}
