package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/paperloft/api/internal/domain"
	"github.com/paperloft/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination       = domain.Pagination
	Product          = domain.Product
	Order            = domain.Order
	OrderLineItem    = domain.OrderLineItem
	OrderStatus      = domain.OrderStatus
	ShippingDetails  = domain.ShippingDetails
	PaymentMethod    = domain.PaymentMethod
	PaymentStatus    = domain.PaymentStatus
	PrintOrder       = domain.PrintOrder
	PrintOrderStatus = domain.PrintOrderStatus
	PrintType        = domain.PrintType
	PaperSize        = domain.PaperSize
)

// OrderListFilter re-exports the repository filter for handler use.
type OrderListFilter = repositories.OrderListFilter

// PrintOrderListFilter re-exports the repository filter for handler use.
type PrintOrderListFilter = repositories.PrintOrderListFilter

// Actor identifies the authenticated caller for authorization decisions.
type Actor struct {
	ID    string
	Admin bool
}

// FieldViolation describes one invalid input field.
type FieldViolation struct {
	Field  string
	Reason string
}

// ValidationError aggregates field-level input failures. Nothing is persisted
// when a ValidationError is returned.
type ValidationError struct {
	Violations []FieldViolation
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}

// Add records a violation and returns the error for chaining.
func (e *ValidationError) Add(field, reason string) *ValidationError {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Reason: reason})
	return e
}

// Empty reports whether any violations were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Violations) == 0
}

// OrderItemInput is one cart entry submitted for placement.
type OrderItemInput struct {
	ProductID string
	Quantity  int64
}

// PlaceOrderCommand carries everything needed to turn a cart into an order.
type PlaceOrderCommand struct {
	UserID        string
	Items         []OrderItemInput
	PaymentMethod PaymentMethod
	Shipping      ShippingDetails
}

// CancelOrderCommand is the owner-initiated cancellation request.
type CancelOrderCommand struct {
	OrderID string
	Actor   Actor
	Reason  string
}

// SetOrderStatusCommand is the staff-initiated status change request.
type SetOrderStatusCommand struct {
	OrderID string
	Status  OrderStatus
	Actor   Actor
}

// ListOrdersQuery filters order listings. Non-admin actors only ever see
// their own orders regardless of UserID.
type ListOrdersQuery struct {
	Actor      Actor
	UserID     string
	Status     []OrderStatus
	PlacedAt   domain.RangeQuery[time.Time]
	Pagination Pagination
}

// OrderService orchestrates order placement and the status lifecycle.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string, actor Actor) (Order, error)
	ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[Order], error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	SetStatus(ctx context.Context, cmd SetOrderStatusCommand) (Order, error)
	Delete(ctx context.Context, orderID string, actor Actor) error
}

// ListProductsQuery filters catalog listings.
type ListProductsQuery struct {
	Pagination Pagination
}

// CatalogService exposes the public product read surface.
type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListProducts(ctx context.Context, query ListProductsQuery) (domain.CursorPage[Product], error)
}

// RestoreStockCommand returns units to a product's stock.
type RestoreStockCommand struct {
	ProductID string
	Quantity  int64
	Actor     Actor
}

// LowStockQuery lists products at or below a stock threshold.
type LowStockQuery struct {
	Threshold  int64
	Pagination Pagination
}

// InventoryService exposes the stock tooling used by staff.
type InventoryService interface {
	RestoreStock(ctx context.Context, cmd RestoreStockCommand) (Product, error)
	ListLowStock(ctx context.Context, query LowStockQuery) (domain.CursorPage[Product], error)
}

// CreatePrintOrderCommand carries a new print job submission.
type CreatePrintOrderCommand struct {
	UserID        string
	FileName      string
	FileURL       string
	PrintType     PrintType
	PaperSize     PaperSize
	Copies        int64
	TotalPages    int64
	PricePerPage  int64
	TotalAmount   int64
	PaymentMethod PaymentMethod
	Notes         string
}

// UpdatePrintOrderCommand mutates status, payment status, or notes. Fields
// left nil are untouched; status and payment status move independently.
type UpdatePrintOrderCommand struct {
	PrintOrderID  string
	Actor         Actor
	Status        *PrintOrderStatus
	PaymentStatus *PaymentStatus
	Notes         *string
}

// UpdatePrintOrderPaymentCommand records the outcome of an external payment.
type UpdatePrintOrderPaymentCommand struct {
	PrintOrderID  string
	Actor         Actor
	PaymentStatus PaymentStatus
}

// ListPrintOrdersQuery filters print job listings. Non-admin actors only
// ever see their own jobs.
type ListPrintOrdersQuery struct {
	Actor      Actor
	UserID     string
	Status     []PrintOrderStatus
	Pagination Pagination
}

// PrintOrderService orchestrates the print job lifecycle.
type PrintOrderService interface {
	Create(ctx context.Context, cmd CreatePrintOrderCommand) (PrintOrder, error)
	Get(ctx context.Context, printOrderID string, actor Actor) (PrintOrder, error)
	List(ctx context.Context, query ListPrintOrdersQuery) (domain.CursorPage[PrintOrder], error)
	Update(ctx context.Context, cmd UpdatePrintOrderCommand) (PrintOrder, error)
	UpdatePayment(ctx context.Context, cmd UpdatePrintOrderPaymentCommand) (PrintOrder, error)
	Delete(ctx context.Context, printOrderID string, actor Actor) error
}

// SystemService reports service health for readiness checks.
type SystemService interface {
	Health(ctx context.Context) (domain.SystemHealthReport, error)
}
