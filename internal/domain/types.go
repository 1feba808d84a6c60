package domain

import "time"

// Pagination describes cursor-based pagination inputs shared by list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results along with the continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// RangeQuery expresses an inclusive range filter over a comparable field.
type RangeQuery[T any] struct {
	From *T
	To   *T
}

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every valid order status in lifecycle order.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// IsValid reports whether the status is one of the known order states.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentMethod enumerates the supported checkout payment methods.
type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// IsValid reports whether the payment method is recognised.
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodBankTransfer
}

// PaymentStatus enumerates payment settlement states recorded on orders.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// IsValid reports whether the payment status is recognised.
func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusPending || s == PaymentStatusPaid || s == PaymentStatusFailed
}

// Product is a sellable catalog item. Stock is mutated only through the
// inventory paths on the order repositories.
type Product struct {
	ID        string
	Name      string
	Price     int64
	Stock     int64
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderLineItem is an immutable snapshot of one product at placement time.
// Name, image, and unit price are captured when the order is placed and are
// never re-derived from the live product afterwards.
type OrderLineItem struct {
	ProductID    string
	ProductName  string
	ProductImage string
	Quantity     int64
	UnitPrice    int64
	LineTotal    int64
}

// ShippingDetails carries the destination and contact fields captured at checkout.
type ShippingDetails struct {
	Name       string
	Phone      string
	Address    string
	City       string
	PostalCode string
	Notes      string
}

// Order is a customer's confirmed purchase with line-item snapshots and a
// status lifecycle. TotalAmount is computed once at placement.
type Order struct {
	ID            string
	OrderNumber   string
	UserID        string
	Status        OrderStatus
	TotalAmount   int64
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	Shipping      ShippingDetails
	Items         []OrderLineItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CancelledAt   *time.Time
}

// PrintType enumerates the supported print job colour modes.
type PrintType string

const (
	PrintTypeColor PrintType = "color"
	PrintTypeBW    PrintType = "bw"
	PrintTypePhoto PrintType = "photo"
)

// IsValid reports whether the print type is recognised.
func (t PrintType) IsValid() bool {
	return t == PrintTypeColor || t == PrintTypeBW || t == PrintTypePhoto
}

// PaperSize enumerates the paper formats accepted for print jobs.
type PaperSize string

const (
	PaperSizeA4     PaperSize = "A4"
	PaperSizeA3     PaperSize = "A3"
	PaperSizeLetter PaperSize = "Letter"
	PaperSize4x6    PaperSize = "4x6"
	PaperSize5x7    PaperSize = "5x7"
	PaperSize8x10   PaperSize = "8x10"
)

// IsValid reports whether the paper size is recognised.
func (s PaperSize) IsValid() bool {
	switch s {
	case PaperSizeA4, PaperSizeA3, PaperSizeLetter, PaperSize4x6, PaperSize5x7, PaperSize8x10:
		return true
	}
	return false
}

// PrintOrderStatus enumerates the print job lifecycle states.
type PrintOrderStatus string

const (
	PrintOrderStatusPending    PrintOrderStatus = "pending"
	PrintOrderStatusProcessing PrintOrderStatus = "processing"
	PrintOrderStatusCompleted  PrintOrderStatus = "completed"
	PrintOrderStatusCancelled  PrintOrderStatus = "cancelled"
)

// IsValid reports whether the print order status is recognised.
func (s PrintOrderStatus) IsValid() bool {
	switch s {
	case PrintOrderStatusPending, PrintOrderStatusProcessing, PrintOrderStatusCompleted, PrintOrderStatusCancelled:
		return true
	}
	return false
}

// PrintOrder is a customer's request to print an uploaded file. The file
// itself lives elsewhere; FileURL is opaque metadata. TotalAmount is recorded
// as supplied by the client.
type PrintOrder struct {
	ID            string
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
	PaymentStatus PaymentStatus
	Status        PrintOrderStatus
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
