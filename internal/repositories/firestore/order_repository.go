package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/paperloft/api/internal/domain"
	pfirestore "github.com/paperloft/api/internal/platform/firestore"
	"github.com/paperloft/api/internal/platform/pagination"
	"github.com/paperloft/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository implements repositories.OrderRepository backed by Firestore.
// Placement, transitions, and deletes run inside Firestore transactions so the
// order write and its stock mutations commit or roll back together.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	products *pfirestore.BaseRepository[productDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	orders := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	products := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &OrderRepository{provider: provider, orders: orders, products: products}, nil
}

// Place checks and decrements stock for every line item, snapshots product
// name/image/price onto the lines, computes the total, and creates the order
// document. Everything happens in one transaction: when any line's stock is
// insufficient, no decrement and no order survive. Firestore transactions
// require all reads before writes, so the stock checks run first and the
// mutations are applied afterwards. Lines repeating a product are merged
// before the check: every tx.Get returns the pre-transaction snapshot, so
// per-line checks against a repeated product would each see the undiminished
// stock and the deferred writes would last-write-win past the invariant.
func (r *OrderRepository) Place(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorInvalidInput, "order place: id is required", nil)
	}
	if len(order.Items) == 0 {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorInvalidInput, "order place: at least one line item is required", nil)
	}

	quantities := make(map[string]int64, len(order.Items))
	productIDs := make([]string, 0, len(order.Items))
	for _, line := range order.Items {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorInvalidInput, "order place: product id is required", nil)
		}
		if line.Quantity <= 0 {
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorInvalidInput, fmt.Sprintf("order place: quantity for %s must be > 0", productID), nil)
		}
		if _, seen := quantities[productID]; !seen {
			productIDs = append(productIDs, productID)
		}
		quantities[productID] += line.Quantity
	}

	var placed domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}

		type stockUpdate struct {
			ref *firestore.DocumentRef
			doc productDocument
		}
		updates := make([]stockUpdate, 0, len(productIDs))
		lines := make([]domain.OrderLineItem, 0, len(productIDs))
		var total int64

		for _, productID := range productIDs {
			quantity := quantities[productID]

			productRef, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(productRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, fmt.Sprintf("product %s not found", productID), err)
				}
				return err
			}
			var productDoc productDocument
			if err := snap.DataTo(&productDoc); err != nil {
				return fmt.Errorf("decode product %s: %w", productID, err)
			}
			if productDoc.Stock < quantity {
				return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, fmt.Sprintf("insufficient stock for %s", productDoc.Name), nil)
			}

			productDoc.Stock -= quantity
			productDoc.UpdatedAt = order.CreatedAt
			updates = append(updates, stockUpdate{ref: productRef, doc: productDoc})

			lineTotal := productDoc.Price * quantity
			total += lineTotal
			lines = append(lines, domain.OrderLineItem{
				ProductID:    productID,
				ProductName:  strings.TrimSpace(productDoc.Name),
				ProductImage: strings.TrimSpace(productDoc.ImageURL),
				Quantity:     quantity,
				UnitPrice:    productDoc.Price,
				LineTotal:    lineTotal,
			})
		}

		for _, update := range updates {
			if err := tx.Set(update.ref, update.doc); err != nil {
				return err
			}
		}

		order.Items = lines
		order.TotalAmount = total
		doc := newOrderDocument(order)
		if err := tx.Create(orderRef, doc); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return repositories.NewOrderError(repositories.OrderErrorStatusConflict, fmt.Sprintf("order %s already exists", order.ID), err)
			}
			return err
		}

		placed = doc.toDomain(order.ID)
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.place", err)
	}
	return placed, nil
}

// FindByID fetches a single order with its embedded line items.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order find: id is required")
	}

	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns a page of orders newest first, filtered by owner and status.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
	}

	query := client.Collection(ordersCollection).Query
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		query = query.Where("userId", "==", userID)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status", "in", statuses)
	}
	if filter.PlacedAt.From != nil {
		query = query.Where("createdAt", ">=", filter.PlacedAt.From.UTC())
	}
	if filter.PlacedAt.To != nil {
		query = query.Where("createdAt", "<=", filter.PlacedAt.To.UTC())
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc).Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		var cursor orderPageToken
		if err := pagination.DecodeToken(token, &cursor); err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		query = query.StartAfter(cursor.CreatedAt, cursor.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		orders = append(orders, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(orders) > pageSize
	if hasMore {
		orders = orders[:pageSize]
	}
	var nextToken string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		encoded, err := pagination.EncodeToken(orderPageToken{ID: last.ID, CreatedAt: last.CreatedAt})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Order]{
		Items:         orders,
		NextPageToken: nextToken,
	}, nil
}

// Transition re-reads the order, verifies its current status is allowed, and
// applies the status change. Entering cancelled from a non-cancelled status
// restores stock for every line item in the same transaction; an order that
// is already cancelled never has its stock restored again.
func (r *OrderRepository) Transition(ctx context.Context, change repositories.OrderTransition) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(change.OrderID)
	if orderID == "" {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorInvalidInput, "order transition: id is required", nil)
	}
	if !change.To.IsValid() {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorInvalidInput, fmt.Sprintf("order transition: invalid status %q", change.To), nil)
	}

	now := change.At.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var updated domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}

		current := domain.OrderStatus(doc.Status)
		if len(change.From) > 0 && !containsOrderStatus(change.From, current) {
			return repositories.NewOrderError(repositories.OrderErrorStatusConflict, fmt.Sprintf("order %s cannot move from %s to %s", orderID, current, change.To), nil)
		}

		restores, err := r.collectStockRestores(ctx, tx, doc, current, change.To)
		if err != nil {
			return err
		}
		for _, restore := range restores {
			if err := tx.Set(restore.ref, restore.doc); err != nil {
				return err
			}
		}

		doc.Status = string(change.To)
		doc.UpdatedAt = now
		if change.To == domain.OrderStatusCancelled && doc.CancelledAt == nil {
			doc.CancelledAt = &now
		}
		if err := tx.Set(orderRef, doc); err != nil {
			return err
		}

		updated = doc.toDomain(orderID)
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.transition", err)
	}
	return updated, nil
}

// Delete removes the order permanently. Stock is restored for its line items
// unless the order is already cancelled, in which case the restore already
// happened during the cancelling transition.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return repositories.NewOrderError(repositories.OrderErrorInvalidInput, "order delete: id is required", nil)
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}

		current := domain.OrderStatus(doc.Status)
		restores, err := r.collectStockRestores(ctx, tx, doc, current, domain.OrderStatusCancelled)
		if err != nil {
			return err
		}
		for _, restore := range restores {
			if err := tx.Set(restore.ref, restore.doc); err != nil {
				return err
			}
		}

		return tx.Delete(orderRef)
	})
	if err != nil {
		return wrapOrderError("orders.delete", err)
	}
	return nil
}

type productRestore struct {
	ref *firestore.DocumentRef
	doc productDocument
}

// collectStockRestores reads the products for every line item and returns the
// incremented documents when the move from current to target re-enters
// cancelled territory. Products that no longer exist are skipped. Reads stay
// inside this helper so callers can defer all transaction writes until after
// their own reads complete.
func (r *OrderRepository) collectStockRestores(ctx context.Context, tx *firestore.Transaction, doc orderDocument, current, target domain.OrderStatus) ([]productRestore, error) {
	if target != domain.OrderStatusCancelled || current == domain.OrderStatusCancelled {
		return nil, nil
	}

	now := time.Now().UTC()
	restores := make([]productRestore, 0, len(doc.Items))
	for _, item := range doc.Items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			continue
		}
		productRef, err := r.products.DocumentRef(ctx, productID)
		if err != nil {
			return nil, err
		}
		snap, err := tx.Get(productRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				continue
			}
			return nil, err
		}
		var productDoc productDocument
		if err := snap.DataTo(&productDoc); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", productID, err)
		}
		productDoc.Stock += item.Quantity
		productDoc.UpdatedAt = now
		restores = append(restores, productRestore{ref: productRef, doc: productDoc})
	}
	return restores, nil
}

func containsOrderStatus(statuses []domain.OrderStatus, status domain.OrderStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

// Helper structures ---------------------------------------------------------

type orderDocument struct {
	OrderNumber   string              `firestore:"orderNumber"`
	UserID        string              `firestore:"userId"`
	Status        string              `firestore:"status"`
	TotalAmount   int64               `firestore:"totalAmount"`
	PaymentMethod string              `firestore:"paymentMethod"`
	PaymentStatus string              `firestore:"paymentStatus"`
	Shipping      shippingDocument    `firestore:"shipping"`
	Items         []orderLineDocument `firestore:"items"`
	CreatedAt     time.Time           `firestore:"createdAt"`
	UpdatedAt     time.Time           `firestore:"updatedAt"`
	CancelledAt   *time.Time          `firestore:"cancelledAt,omitempty"`
}

type shippingDocument struct {
	Name       string `firestore:"name"`
	Phone      string `firestore:"phone"`
	Address    string `firestore:"address"`
	City       string `firestore:"city"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Notes      string `firestore:"notes,omitempty"`
}

type orderLineDocument struct {
	ProductID    string `firestore:"productId"`
	ProductName  string `firestore:"productName"`
	ProductImage string `firestore:"productImage,omitempty"`
	Quantity     int64  `firestore:"qty"`
	UnitPrice    int64  `firestore:"unitPrice"`
	LineTotal    int64  `firestore:"lineTotal"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderLineDocument, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderLineDocument{
			ProductID:    strings.TrimSpace(item.ProductID),
			ProductName:  strings.TrimSpace(item.ProductName),
			ProductImage: strings.TrimSpace(item.ProductImage),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			LineTotal:    item.LineTotal,
		}
	}
	return orderDocument{
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		UserID:        strings.TrimSpace(order.UserID),
		Status:        string(order.Status),
		TotalAmount:   order.TotalAmount,
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		Shipping: shippingDocument{
			Name:       strings.TrimSpace(order.Shipping.Name),
			Phone:      strings.TrimSpace(order.Shipping.Phone),
			Address:    strings.TrimSpace(order.Shipping.Address),
			City:       strings.TrimSpace(order.Shipping.City),
			PostalCode: strings.TrimSpace(order.Shipping.PostalCode),
			Notes:      strings.TrimSpace(order.Shipping.Notes),
		},
		Items:       items,
		CreatedAt:   order.CreatedAt.UTC(),
		UpdatedAt:   order.UpdatedAt.UTC(),
		CancelledAt: order.CancelledAt,
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderLineItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.OrderLineItem{
			ProductID:    strings.TrimSpace(item.ProductID),
			ProductName:  strings.TrimSpace(item.ProductName),
			ProductImage: strings.TrimSpace(item.ProductImage),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			LineTotal:    item.LineTotal,
		}
	}
	return domain.Order{
		ID:            id,
		OrderNumber:   strings.TrimSpace(d.OrderNumber),
		UserID:        strings.TrimSpace(d.UserID),
		Status:        domain.OrderStatus(d.Status),
		TotalAmount:   d.TotalAmount,
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		PaymentStatus: domain.PaymentStatus(d.PaymentStatus),
		Shipping: domain.ShippingDetails{
			Name:       strings.TrimSpace(d.Shipping.Name),
			Phone:      strings.TrimSpace(d.Shipping.Phone),
			Address:    strings.TrimSpace(d.Shipping.Address),
			City:       strings.TrimSpace(d.Shipping.City),
			PostalCode: strings.TrimSpace(d.Shipping.PostalCode),
			Notes:      strings.TrimSpace(d.Shipping.Notes),
		},
		Items:       items,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		CancelledAt: d.CancelledAt,
	}
}

type orderPageToken struct {
	ID        string
	CreatedAt time.Time
}

func wrapOrderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		if orderErr.Op == "" {
			orderErr.Op = op
		}
		return orderErr
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return pfirestore.WrapError(op, err)
}
