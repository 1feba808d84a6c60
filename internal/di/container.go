package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paperloft/api/internal/platform/config"
	"github.com/paperloft/api/internal/platform/observability"
	"github.com/paperloft/api/internal/platform/requestctx"
	"github.com/paperloft/api/internal/repositories"
	"github.com/paperloft/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders      services.OrderService
	Catalog     services.CatalogService
	Inventory   services.InventoryService
	PrintOrders services.PrintOrderService
	System      services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option customises container construction.
type Option func(*containerOptions)

type containerOptions struct {
	logger *zap.Logger
	events services.OrderEventPublisher
	clock  func() time.Time
}

// WithLogger attaches a zap logger used for service-level event logging.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// WithOrderEventPublisher routes order lifecycle events to the given publisher.
func WithOrderEventPublisher(events services.OrderEventPublisher) Option {
	return func(o *containerOptions) {
		o.events = events
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		o.clock = clock
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides a Firestore-backed
// registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{
		logger: zap.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}

	svc, err := buildServices(cfg, reg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, reg repositories.Registry, options containerOptions) (Services, error) {
	var svc Services

	eventLog := newEventLogger(options.logger)

	ordersRepo := reg.Orders()
	countersRepo := reg.Counters()
	if ordersRepo != nil && countersRepo != nil {
		orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
			Orders:   ordersRepo,
			Counters: countersRepo,
			Clock:    options.clock,
			Events:   options.events,
			Logger:   eventLog,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build order service: %w", err)
		}
		svc.Orders = orderSvc
	}

	if productsRepo := reg.Products(); productsRepo != nil {
		catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
			Products: productsRepo,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build catalog service: %w", err)
		}
		svc.Catalog = catalogSvc

		inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
			Products: productsRepo,
			Logger:   eventLog,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build inventory service: %w", err)
		}
		svc.Inventory = inventorySvc
	}

	if printRepo := reg.PrintOrders(); printRepo != nil {
		printSvc, err := services.NewPrintOrderService(services.PrintOrderServiceDeps{
			PrintOrders: printRepo,
			Clock:       options.clock,
			Logger:      eventLog,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build print order service: %w", err)
		}
		svc.PrintOrders = printSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            options.clock,
			Build: services.BuildInfo{
				Version:     cfg.Build.Version,
				CommitSHA:   cfg.Build.CommitSHA,
				Environment: cfg.Build.Environment,
				StartedAt:   options.clock().UTC(),
			},
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

// newEventLogger adapts a zap logger to the structured event callback used by
// the service layer. The request-scoped logger from the context wins when set.
func newEventLogger(base *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if base == nil {
		base = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := base
		if ctxLogger := observability.FromContext(ctx); ctxLogger != requestctx.NoopLogger() {
			logger = ctxLogger
		}
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
