package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tavolo-app/api/internal/events"
	"github.com/tavolo-app/api/internal/notifications"
	"github.com/tavolo-app/api/internal/platform/config"
	"github.com/tavolo-app/api/internal/repositories"
	"github.com/tavolo-app/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders      services.OrderService
	Bookings    services.BookingService
	Restaurants services.RestaurantService
	Reviews     services.ReviewService
	Users       services.UserService
	Audit       services.AuditLogService
	System      services.SystemService
}

// ContainerDeps carries the externally constructed collaborators the container wires together.
// The mailer is optional; without one (or with notifications disabled) events still publish
// but no listeners are registered.
type ContainerDeps struct {
	Config       config.Config
	Repositories repositories.Registry
	Mailer       notifications.Mailer
	Logger       *zap.Logger
	StartedAt    time.Time
}

// Container wires repositories, services, and the event registry for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Events       *events.Registry
}

// NewContainer constructs the runtime dependencies. Production wiring provides Firestore-backed
// repositories, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, deps ContainerDeps) (*Container, error) {
	if deps.Repositories == nil {
		return nil, errors.New("repositories registry is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := events.NewRegistry(
		events.WithRegistryLogger(zapEventLogger(logger.Named("events"))),
	)

	if deps.Config.Features.EnableNotifications && deps.Mailer != nil {
		if err := notifications.RegisterDefaults(registry, deps.Mailer); err != nil {
			return nil, fmt.Errorf("register notification listeners: %w", err)
		}
	}

	svc, err := buildServices(deps, registry, logger)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       deps.Config,
		Repositories: deps.Repositories,
		Services:     svc,
		Events:       registry,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(deps ContainerDeps, publisher services.EventPublisher, logger *zap.Logger) (Services, error) {
	var svc Services
	reg := deps.Repositories
	cfg := deps.Config

	startedAt := deps.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	auditSvc, err := services.NewAuditLogService(services.AuditLogServiceDeps{
		AuditLogs: reg.AuditLogs(),
		Clock:     time.Now,
		Logger:    zapEventLogger(logger.Named("audit")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build audit log service: %w", err)
	}
	svc.Audit = auditSvc

	userSvc, err := services.NewUserService(services.UserServiceDeps{
		Users:  reg.Users(),
		Clock:  time.Now,
		Logger: zapEventLogger(logger.Named("users")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}
	svc.Users = userSvc

	restaurantSvc, err := services.NewRestaurantService(services.RestaurantServiceDeps{
		Restaurants: reg.Restaurants(),
		Users:       reg.Users(),
		Clock:       time.Now,
		Logger:      zapEventLogger(logger.Named("restaurants")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build restaurant service: %w", err)
	}
	svc.Restaurants = restaurantSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      reg.Orders(),
		Restaurants: reg.Restaurants(),
		Users:       reg.Users(),
		Counters:    reg.Counters(),
		UnitOfWork:  reg,
		Clock:       time.Now,
		Events:      publisher,
		Logger:      zapEventLogger(logger.Named("orders")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	bookingSvc, err := services.NewBookingService(services.BookingServiceDeps{
		Bookings:    reg.Bookings(),
		Restaurants: reg.Restaurants(),
		Users:       reg.Users(),
		UnitOfWork:  reg,
		Clock:       time.Now,
		Events:      publisher,
		Logger:      zapEventLogger(logger.Named("bookings")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build booking service: %w", err)
	}
	svc.Bookings = bookingSvc

	reviewSvc, err := services.NewReviewService(services.ReviewServiceDeps{
		Reviews: reg.Reviews(),
		Orders:  reg.Orders(),
		Clock:   time.Now,
		Events:  publisher,
		Logger:  zapEventLogger(logger.Named("reviews")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build review service: %w", err)
	}
	svc.Reviews = reviewSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			Health: healthRepo,
			Clock:  time.Now,
			Build: services.BuildInfo{
				Version:     cfg.Build.Version,
				CommitSHA:   cfg.Build.CommitSHA,
				Environment: cfg.Build.Environment,
				StartedAt:   startedAt,
			},
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Info(event, zFields...)
	}
}
