package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	domain "github.com/paperloft/api/internal/domain"
	"github.com/paperloft/api/internal/repositories"
)

// memoryOrderRepo mimics the transactional Firestore repository: placement
// checks and decrements stock atomically, transitions re-check the allowed
// source statuses, and entering cancelled restores stock exactly once.
type memoryOrderRepo struct {
	orders   map[string]domain.Order
	products map[string]domain.Product
}

func newMemoryOrderRepo(products map[string]domain.Product) *memoryOrderRepo {
	if products == nil {
		products = map[string]domain.Product{}
	}
	return &memoryOrderRepo{
		orders:   map[string]domain.Order{},
		products: products,
	}
}

func (r *memoryOrderRepo) Place(ctx context.Context, order domain.Order) (domain.Order, error) {
	quantities := map[string]int64{}
	var productIDs []string
	for _, item := range order.Items {
		if _, seen := quantities[item.ProductID]; !seen {
			productIDs = append(productIDs, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	type decrement struct {
		id  string
		qty int64
	}
	var (
		decrements []decrement
		total      int64
	)
	items := make([]domain.OrderLineItem, 0, len(productIDs))
	for _, productID := range productIDs {
		quantity := quantities[productID]
		product, ok := r.products[productID]
		if !ok {
			return domain.Order{}, repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, fmt.Sprintf("product %s not found", productID), nil)
		}
		if product.Stock < quantity {
			return domain.Order{}, repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, fmt.Sprintf("insufficient stock for %s", product.Name), nil)
		}
		decrements = append(decrements, decrement{id: productID, qty: quantity})
		lineTotal := product.Price * quantity
		total += lineTotal
		items = append(items, domain.OrderLineItem{
			ProductID:    productID,
			ProductName:  product.Name,
			ProductImage: product.ImageURL,
			Quantity:     quantity,
			UnitPrice:    product.Price,
			LineTotal:    lineTotal,
		})
	}
	for _, dec := range decrements {
		product := r.products[dec.id]
		product.Stock -= dec.qty
		r.products[dec.id] = product
	}
	order.Items = items
	order.TotalAmount = total
	r.orders[order.ID] = order
	return order, nil
}

func (r *memoryOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, &stubRepoError{notFound: true, msg: "order " + orderID + " not found"}
	}
	return order, nil
}

func (r *memoryOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	var items []domain.Order
	for _, order := range r.orders {
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		if len(filter.Status) > 0 {
			matched := false
			for _, status := range filter.Status {
				if order.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		items = append(items, order)
	}
	return domain.CursorPage[domain.Order]{Items: items}, nil
}

func (r *memoryOrderRepo) Transition(ctx context.Context, change repositories.OrderTransition) (domain.Order, error) {
	order, ok := r.orders[change.OrderID]
	if !ok {
		return domain.Order{}, &stubRepoError{notFound: true, msg: "order " + change.OrderID + " not found"}
	}
	allowed := false
	for _, from := range change.From {
		if order.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorStatusConflict, fmt.Sprintf("order %s cannot move from %s to %s", change.OrderID, order.Status, change.To), nil)
	}
	if change.To == domain.OrderStatusCancelled && order.Status != domain.OrderStatusCancelled {
		r.restoreStock(order)
		at := change.At
		order.CancelledAt = &at
	}
	order.Status = change.To
	order.UpdatedAt = change.At
	r.orders[change.OrderID] = order
	return order, nil
}

func (r *memoryOrderRepo) Delete(ctx context.Context, orderID string) error {
	order, ok := r.orders[orderID]
	if !ok {
		return &stubRepoError{notFound: true, msg: "order " + orderID + " not found"}
	}
	if order.Status != domain.OrderStatusCancelled {
		r.restoreStock(order)
	}
	delete(r.orders, orderID)
	return nil
}

func (r *memoryOrderRepo) restoreStock(order domain.Order) {
	for _, item := range order.Items {
		product, ok := r.products[item.ProductID]
		if !ok {
			continue
		}
		product.Stock += item.Quantity
		r.products[item.ProductID] = product
	}
}

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
	msg         string
}

func (e *stubRepoError) Error() string       { return e.msg }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

type stubCounterRepo struct {
	next int64
	err  error
}

func (c *stubCounterRepo) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.next += step
	return c.next, nil
}

func (c *stubCounterRepo) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	return nil
}

type captureOrderEvents struct {
	events []OrderEvent
	err    error
}

func (c *captureOrderEvents) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func testOrderProducts() map[string]domain.Product {
	return map[string]domain.Product{
		"prod-a": {ID: "prod-a", Name: "A5 Notebook", Price: 1200, Stock: 10, ImageURL: "https://img/prod-a.png"},
		"prod-b": {ID: "prod-b", Name: "Gel Pen", Price: 300, Stock: 2},
	}
}

func newTestOrderService(t *testing.T, repo *memoryOrderRepo, events OrderEventPublisher, now time.Time) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:      repo,
		Counters:    &stubCounterRepo{next: 41},
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "TESTULID" },
		Events:      events,
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	return svc
}

func validPlaceCommand() PlaceOrderCommand {
	return PlaceOrderCommand{
		UserID: "user-1",
		Items: []OrderItemInput{
			{ProductID: "prod-a", Quantity: 2},
		},
		PaymentMethod: domain.PaymentMethodCOD,
		Shipping: ShippingDetails{
			Name:    "Mina Tran",
			Phone:   "0901234567",
			Address: "12 Paper St",
			City:    "Hanoi",
		},
	}
}

func TestOrderServicePlaceOrderSnapshotsAndDecrementsStock(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	events := &captureOrderEvents{}
	svc := newTestOrderService(t, repo, events, now)

	order, err := svc.PlaceOrder(context.Background(), validPlaceCommand())
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if order.ID != "ord_TESTULID" {
		t.Fatalf("expected order id ord_TESTULID, got %s", order.ID)
	}
	if order.OrderNumber != "ORD-20250601-000042" {
		t.Fatalf("expected order number ORD-20250601-000042, got %s", order.OrderNumber)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected status pending, got %s", order.Status)
	}
	if order.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("expected payment status pending, got %s", order.PaymentStatus)
	}
	if order.TotalAmount != 2400 {
		t.Fatalf("expected total 2400, got %d", order.TotalAmount)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(order.Items))
	}
	line := order.Items[0]
	if line.ProductName != "A5 Notebook" || line.UnitPrice != 1200 || line.LineTotal != 2400 {
		t.Fatalf("unexpected line snapshot: %+v", line)
	}
	if got := repo.products["prod-a"].Stock; got != 8 {
		t.Fatalf("expected stock 8 after placement, got %d", got)
	}

	if len(events.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.events))
	}
	event := events.events[0]
	if event.Type != orderEventPlaced {
		t.Fatalf("expected event type %s, got %s", orderEventPlaced, event.Type)
	}
	if event.OrderID != order.ID || event.CurrentStatus != "pending" {
		t.Fatalf("unexpected event payload: %+v", event)
	}
}

func TestOrderServicePlaceOrderInsufficientStockLeavesNothingBehind(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	svc := newTestOrderService(t, repo, nil, now)

	cmd := validPlaceCommand()
	cmd.Items = []OrderItemInput{
		{ProductID: "prod-a", Quantity: 1},
		{ProductID: "prod-b", Quantity: 5},
	}

	_, err := svc.PlaceOrder(context.Background(), cmd)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if !strings.Contains(err.Error(), "Gel Pen") {
		t.Fatalf("expected error to name the product, got %v", err)
	}

	if got := repo.products["prod-a"].Stock; got != 10 {
		t.Fatalf("expected prod-a stock untouched at 10, got %d", got)
	}
	if got := repo.products["prod-b"].Stock; got != 2 {
		t.Fatalf("expected prod-b stock untouched at 2, got %d", got)
	}
	if len(repo.orders) != 0 {
		t.Fatalf("expected no order persisted, got %d", len(repo.orders))
	}
}

func TestOrderServicePlaceOrderMergesRepeatedProductLines(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	svc := newTestOrderService(t, repo, nil, now)

	cmd := validPlaceCommand()
	cmd.Items = []OrderItemInput{
		{ProductID: "prod-b", Quantity: 2},
		{ProductID: "prod-b", Quantity: 1},
	}

	_, err := svc.PlaceOrder(context.Background(), cmd)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for combined quantity 3 against stock 2, got %v", err)
	}
	if got := repo.products["prod-b"].Stock; got != 2 {
		t.Fatalf("expected prod-b stock untouched at 2, got %d", got)
	}
	if len(repo.orders) != 0 {
		t.Fatalf("expected no order persisted, got %d", len(repo.orders))
	}

	cmd.Items = []OrderItemInput{
		{ProductID: "prod-b", Quantity: 1},
		{ProductID: "prod-b", Quantity: 1},
	}
	order, err := svc.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("place order with mergeable lines: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected repeated lines merged into one, got %d", len(order.Items))
	}
	if order.Items[0].Quantity != 2 {
		t.Fatalf("expected merged quantity 2, got %d", order.Items[0].Quantity)
	}
	if order.TotalAmount != 600 {
		t.Fatalf("expected total 600, got %d", order.TotalAmount)
	}
	if got := repo.products["prod-b"].Stock; got != 0 {
		t.Fatalf("expected prod-b stock 0 after selling 2, got %d", got)
	}
}

func TestOrderServicePlaceOrderUnknownProduct(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	svc := newTestOrderService(t, repo, nil, now)

	cmd := validPlaceCommand()
	cmd.Items = []OrderItemInput{{ProductID: "prod-missing", Quantity: 1}}

	_, err := svc.PlaceOrder(context.Background(), cmd)
	if !errors.Is(err, ErrOrderProductNotFound) {
		t.Fatalf("expected ErrOrderProductNotFound, got %v", err)
	}
}

func TestOrderServicePlaceOrderValidation(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	svc := newTestOrderService(t, repo, nil, now)

	cmd := PlaceOrderCommand{
		UserID: "user-1",
		Items: []OrderItemInput{
			{ProductID: "", Quantity: 0},
		},
		PaymentMethod: PaymentMethod("paypal"),
		Shipping:      ShippingDetails{},
	}

	_, err := svc.PlaceOrder(context.Background(), cmd)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	wantFields := []string{
		"items[0].product_id",
		"items[0].quantity",
		"payment_method",
		"shipping_name",
		"shipping_phone",
		"shipping_address",
		"shipping_city",
	}
	got := map[string]bool{}
	for _, violation := range verr.Violations {
		got[violation.Field] = true
	}
	for _, field := range wantFields {
		if !got[field] {
			t.Fatalf("expected violation on %s, got %+v", field, verr.Violations)
		}
	}
}

func TestOrderServicePlaceOrderSanitizesShipping(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	svc := newTestOrderService(t, repo, nil, now)

	cmd := validPlaceCommand()
	cmd.Shipping.Notes = "  <script>alert(1)</script>leave at door  "
	cmd.Shipping.Name = "<b>Mina</b> Tran"

	order, err := svc.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.Shipping.Notes != "leave at door" {
		t.Fatalf("expected sanitized notes, got %q", order.Shipping.Notes)
	}
	if order.Shipping.Name != "Mina Tran" {
		t.Fatalf("expected sanitized name, got %q", order.Shipping.Name)
	}
}

func TestOrderServiceGetOrderHidesForeignOrders(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	svc := newTestOrderService(t, repo, nil, now)

	placed, err := svc.PlaceOrder(context.Background(), validPlaceCommand())
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if _, err := svc.GetOrder(context.Background(), placed.ID, Actor{ID: "user-1"}); err != nil {
		t.Fatalf("owner get: %v", err)
	}

	_, err = svc.GetOrder(context.Background(), placed.ID, Actor{ID: "user-2"})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign actor, got %v", err)
	}

	if _, err := svc.GetOrder(context.Background(), placed.ID, Actor{ID: "staff-1", Admin: true}); err != nil {
		t.Fatalf("admin get: %v", err)
	}
}

func TestOrderServiceListOrdersForcesOwnerScope(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	svc := newTestOrderService(t, repo, nil, now)

	if _, err := svc.PlaceOrder(context.Background(), validPlaceCommand()); err != nil {
		t.Fatalf("place order: %v", err)
	}

	page, err := svc.ListOrders(context.Background(), ListOrdersQuery{
		Actor:  Actor{ID: "user-2"},
		UserID: "user-1",
	})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected user-2 to see no orders, got %d", len(page.Items))
	}

	page, err = svc.ListOrders(context.Background(), ListOrdersQuery{
		Actor:  Actor{ID: "staff-1", Admin: true},
		UserID: "user-1",
	})
	if err != nil {
		t.Fatalf("admin list orders: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected admin scoped list to return 1 order, got %d", len(page.Items))
	}
}

func TestOrderServiceCancelRestoresStockOnce(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	events := &captureOrderEvents{}
	svc := newTestOrderService(t, repo, events, now)

	placed, err := svc.PlaceOrder(context.Background(), validPlaceCommand())
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if got := repo.products["prod-a"].Stock; got != 8 {
		t.Fatalf("expected stock 8 after placement, got %d", got)
	}

	cancelled, err := svc.Cancel(context.Background(), CancelOrderCommand{
		OrderID: placed.ID,
		Actor:   Actor{ID: "user-1"},
		Reason:  "changed my mind",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected status cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil || !cancelled.CancelledAt.Equal(now) {
		t.Fatalf("expected cancelledAt %s, got %v", now, cancelled.CancelledAt)
	}
	if got := repo.products["prod-a"].Stock; got != 10 {
		t.Fatalf("expected stock restored to 10, got %d", got)
	}

	_, err = svc.Cancel(context.Background(), CancelOrderCommand{
		OrderID: placed.ID,
		Actor:   Actor{ID: "user-1"},
	})
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("expected ErrOrderInvalidTransition on second cancel, got %v", err)
	}
	if got := repo.products["prod-a"].Stock; got != 10 {
		t.Fatalf("expected stock still 10 after rejected cancel, got %d", got)
	}

	var statusEvents int
	for _, event := range events.events {
		if event.Type == orderEventStatusChanged {
			statusEvents++
			if event.Metadata["reason"] != "changed my mind" {
				t.Fatalf("expected reason metadata, got %+v", event.Metadata)
			}
		}
	}
	if statusEvents != 1 {
		t.Fatalf("expected 1 status change event, got %d", statusEvents)
	}
}

func TestOrderServiceCancelRejectedAfterShipping(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	svc := newTestOrderService(t, repo, nil, now)

	placed, err := svc.PlaceOrder(context.Background(), validPlaceCommand())
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	order := repo.orders[placed.ID]
	order.Status = domain.OrderStatusShipped
	repo.orders[placed.ID] = order

	_, err = svc.Cancel(context.Background(), CancelOrderCommand{
		OrderID: placed.ID,
		Actor:   Actor{ID: "user-1"},
	})
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("expected ErrOrderInvalidTransition for shipped order, got %v", err)
	}
}

func TestOrderServiceSetStatusRequiresStaff(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	svc := newTestOrderService(t, repo, nil, now)

	placed, err := svc.PlaceOrder(context.Background(), validPlaceCommand())
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	_, err = svc.SetStatus(context.Background(), SetOrderStatusCommand{
		OrderID: placed.ID,
		Status:  domain.OrderStatusShipped,
		Actor:   Actor{ID: "user-1"},
	})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}
}

func TestOrderServiceSetStatusCancelledRestoresStock(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	svc := newTestOrderService(t, repo, nil, now)

	placed, err := svc.PlaceOrder(context.Background(), validPlaceCommand())
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	updated, err := svc.SetStatus(context.Background(), SetOrderStatusCommand{
		OrderID: placed.ID,
		Status:  domain.OrderStatusCancelled,
		Actor:   Actor{ID: "staff-1", Admin: true},
	})
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if updated.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.Status)
	}
	if got := repo.products["prod-a"].Stock; got != 10 {
		t.Fatalf("expected stock restored to 10, got %d", got)
	}

	// Setting cancelled again is allowed for staff but must not restore twice.
	if _, err := svc.SetStatus(context.Background(), SetOrderStatusCommand{
		OrderID: placed.ID,
		Status:  domain.OrderStatusCancelled,
		Actor:   Actor{ID: "staff-1", Admin: true},
	}); err != nil {
		t.Fatalf("second set status: %v", err)
	}
	if got := repo.products["prod-a"].Stock; got != 10 {
		t.Fatalf("expected stock still 10 after repeated cancel, got %d", got)
	}
}

func TestOrderServiceSetStatusRejectsUnknownStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	svc := newTestOrderService(t, repo, nil, now)

	_, err := svc.SetStatus(context.Background(), SetOrderStatusCommand{
		OrderID: "ord_x",
		Status:  OrderStatus("archived"),
		Actor:   Actor{ID: "staff-1", Admin: true},
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestOrderServiceDeleteRestoresStockUnlessCancelled(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	events := &captureOrderEvents{}
	svc := newTestOrderService(t, repo, events, now)

	first, err := svc.PlaceOrder(context.Background(), validPlaceCommand())
	if err != nil {
		t.Fatalf("place first order: %v", err)
	}
	second, err := svc.PlaceOrder(context.Background(), validPlaceCommand())
	if err != nil {
		t.Fatalf("place second order: %v", err)
	}
	if got := repo.products["prod-a"].Stock; got != 6 {
		t.Fatalf("expected stock 6 after two placements, got %d", got)
	}

	if err := svc.Delete(context.Background(), first.ID, Actor{ID: "staff-1", Admin: true}); err != nil {
		t.Fatalf("delete pending order: %v", err)
	}
	if got := repo.products["prod-a"].Stock; got != 8 {
		t.Fatalf("expected stock 8 after deleting pending order, got %d", got)
	}

	if _, err := svc.Cancel(context.Background(), CancelOrderCommand{
		OrderID: second.ID,
		Actor:   Actor{ID: "user-1"},
	}); err != nil {
		t.Fatalf("cancel second order: %v", err)
	}
	if got := repo.products["prod-a"].Stock; got != 10 {
		t.Fatalf("expected stock 10 after cancel, got %d", got)
	}

	// Deleting an already cancelled order must not restore again.
	if err := svc.Delete(context.Background(), second.ID, Actor{ID: "staff-1", Admin: true}); err != nil {
		t.Fatalf("delete cancelled order: %v", err)
	}
	if got := repo.products["prod-a"].Stock; got != 10 {
		t.Fatalf("expected stock unchanged at 10, got %d", got)
	}

	var deletions int
	for _, event := range events.events {
		if event.Type == orderEventDeleted {
			deletions++
		}
	}
	if deletions != 2 {
		t.Fatalf("expected 2 delete events, got %d", deletions)
	}
}

func TestOrderServiceDeleteRequiresStaff(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	svc := newTestOrderService(t, repo, nil, now)

	err := svc.Delete(context.Background(), "ord_x", Actor{ID: "user-1"})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}
}

func TestOrderServicePublishFailureDoesNotFailPlacement(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo(testOrderProducts())
	events := &captureOrderEvents{err: errors.New("broker down")}
	svc := newTestOrderService(t, repo, events, now)

	if _, err := svc.PlaceOrder(context.Background(), validPlaceCommand()); err != nil {
		t.Fatalf("place order: %v", err)
	}
}
