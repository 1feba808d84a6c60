package di

import (
	"context"
	"testing"
	"time"

	"github.com/paperloft/api/internal/domain"
	"github.com/paperloft/api/internal/platform/config"
	"github.com/paperloft/api/internal/repositories"
)

type stubRegistry struct{}

func (stubRegistry) Orders() repositories.OrderRepository           { return stubOrderRepo{} }
func (stubRegistry) Products() repositories.ProductRepository       { return stubProductRepo{} }
func (stubRegistry) PrintOrders() repositories.PrintOrderRepository { return stubPrintOrderRepo{} }
func (stubRegistry) Counters() repositories.CounterRepository       { return stubCounterRepo{} }
func (stubRegistry) Health() repositories.HealthRepository          { return stubHealthRepo{} }
func (stubRegistry) Close(ctx context.Context) error                { return nil }

type stubOrderRepo struct{}

func (stubOrderRepo) Place(ctx context.Context, order domain.Order) (domain.Order, error) {
	return order, nil
}

func (stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return domain.Order{}, nil
}

func (stubOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	return domain.CursorPage[domain.Order]{}, nil
}

func (stubOrderRepo) Transition(ctx context.Context, change repositories.OrderTransition) (domain.Order, error) {
	return domain.Order{}, nil
}

func (stubOrderRepo) Delete(ctx context.Context, orderID string) error { return nil }

type stubProductRepo struct{}

func (stubProductRepo) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	return domain.Product{}, nil
}

func (stubProductRepo) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	return domain.CursorPage[domain.Product]{}, nil
}

func (stubProductRepo) AdjustStock(ctx context.Context, productID string, delta int64) (domain.Product, error) {
	return domain.Product{}, nil
}

type stubPrintOrderRepo struct{}

func (stubPrintOrderRepo) Insert(ctx context.Context, printOrder domain.PrintOrder) error {
	return nil
}

func (stubPrintOrderRepo) FindByID(ctx context.Context, printOrderID string) (domain.PrintOrder, error) {
	return domain.PrintOrder{}, nil
}

func (stubPrintOrderRepo) List(ctx context.Context, filter repositories.PrintOrderListFilter) (domain.CursorPage[domain.PrintOrder], error) {
	return domain.CursorPage[domain.PrintOrder]{}, nil
}

func (stubPrintOrderRepo) Update(ctx context.Context, printOrder domain.PrintOrder) error {
	return nil
}

func (stubPrintOrderRepo) Delete(ctx context.Context, printOrderID string, expected []domain.PrintOrderStatus) error {
	return nil
}

type stubCounterRepo struct{}

func (stubCounterRepo) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	return 1, nil
}

func (stubCounterRepo) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	return nil
}

type stubHealthRepo struct{}

func (stubHealthRepo) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	return domain.SystemHealthReport{Status: domain.HealthStatusOK}, nil
}

func TestNewContainerBuildsAllServices(t *testing.T) {
	cfg := config.Config{
		Build: config.BuildConfig{Version: "1.4.0", Environment: "test"},
	}

	container, err := NewContainer(context.Background(), cfg, stubRegistry{},
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }),
	)
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}

	if container.Services.Orders == nil {
		t.Fatal("expected order service")
	}
	if container.Services.Catalog == nil {
		t.Fatal("expected catalog service")
	}
	if container.Services.Inventory == nil {
		t.Fatal("expected inventory service")
	}
	if container.Services.PrintOrders == nil {
		t.Fatal("expected print order service")
	}
	if container.Services.System == nil {
		t.Fatal("expected system service")
	}
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	if _, err := NewContainer(context.Background(), config.Config{}, nil); err == nil {
		t.Fatal("expected error for nil registry")
	}
}
