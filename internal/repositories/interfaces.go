package repositories

import (
	"context"
	"time"

	"github.com/paperloft/api/internal/domain"
)

// RepositoryError allows callers to classify persistence failures without
// depending on the backing store implementation.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderListFilter captures the supported filters for order listings.
type OrderListFilter struct {
	UserID     string
	Status     []domain.OrderStatus
	PlacedAt   domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// OrderTransition describes an atomic status change applied to an order.
// The repository re-reads the order inside the transaction and rejects the
// change when the current status is not in From. Entering the cancelled
// status from a non-cancelled status restores stock for every line item in
// the same transaction; a cancelled order transitioned to cancelled again is
// a stock no-op.
type OrderTransition struct {
	OrderID string
	From    []domain.OrderStatus
	To      domain.OrderStatus
	At      time.Time
}

// OrderRepository persists orders and executes the transactional flows that
// touch both orders and product stock.
type OrderRepository interface {
	// Place validates stock, decrements it, snapshots product data onto the
	// line items, and creates the order document in a single transaction.
	// The supplied order carries line items with only ProductID and Quantity
	// set; the returned order has snapshots and totals filled in.
	Place(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	Transition(ctx context.Context, change OrderTransition) (domain.Order, error)
	// Delete removes the order permanently, restoring stock for its line
	// items unless the order is already cancelled.
	Delete(ctx context.Context, orderID string) error
}

// ProductListFilter captures the supported filters for catalog listings.
type ProductListFilter struct {
	MaxStock   *int64
	Pagination domain.Pagination
}

// ProductRepository exposes catalog reads plus the stock adjustment used by
// inventory tooling. Stock never goes negative; adjustments that would do so
// fail with an InventoryError.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	AdjustStock(ctx context.Context, productID string, delta int64) (domain.Product, error)
}

// PrintOrderListFilter captures the supported filters for print job listings.
type PrintOrderListFilter struct {
	UserID     string
	Status     []domain.PrintOrderStatus
	Pagination domain.Pagination
}

// PrintOrderRepository persists print jobs.
type PrintOrderRepository interface {
	Insert(ctx context.Context, printOrder domain.PrintOrder) error
	FindByID(ctx context.Context, printOrderID string) (domain.PrintOrder, error)
	List(ctx context.Context, filter PrintOrderListFilter) (domain.CursorPage[domain.PrintOrder], error)
	Update(ctx context.Context, printOrder domain.PrintOrder) error
	// Delete removes the print job only while its status is still one of the
	// expected states; otherwise it fails with a PrintOrderError.
	Delete(ctx context.Context, printOrderID string, expected []domain.PrintOrderStatus) error
}

// CounterConfig adjusts optional counter behaviour.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// CounterRepository issues monotonically increasing sequence values, used for
// order number generation.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository evaluates dependency health for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Registry exposes every repository the service layer depends on.
type Registry interface {
	Orders() OrderRepository
	Products() ProductRepository
	PrintOrders() PrintOrderRepository
	Counters() CounterRepository
	Health() HealthRepository
	Close(ctx context.Context) error
}
