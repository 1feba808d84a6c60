package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/paperloft/api/internal/domain"
	"github.com/paperloft/api/internal/repositories"
)

const (
	orderEventPlaced        = "order.placed"
	orderEventStatusChanged = "order.status.changed"
	orderEventDeleted       = "order.deleted"

	orderIDPrefix = "ord_"

	orderNumberCounter = "orders"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located or is not visible to the caller.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the caller lacks the role required for the operation.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidTransition indicates the requested status change violates the transition table.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates a concurrent mutation won the race.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrInsufficientStock indicates a line item's requested quantity exceeds availability.
	ErrInsufficientStock = errors.New("order: insufficient stock")
	// ErrOrderProductNotFound indicates a submitted product id does not resolve to a product.
	ErrOrderProductNotFound = errors.New("order: product not found")
)

// ownerOrderTransitions is the transition table for the order's owner: the
// only move a customer may make is cancelling before fulfilment starts.
var ownerOrderTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusCancelled},
}

// staffOrderTransitions is the transition table for staff: any known status
// may be set from any current status, including cancelled to cancelled,
// which is a stock no-op.
var staffOrderTransitions = func() map[domain.OrderStatus][]domain.OrderStatus {
	all := domain.OrderStatuses()
	table := make(map[domain.OrderStatus][]domain.OrderStatus, len(all))
	for _, from := range all {
		table[from] = append([]domain.OrderStatus(nil), all...)
	}
	return table
}()

// notesPolicy strips markup from free-text customer input before it is persisted.
var notesPolicy = bluemonday.StrictPolicy()

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	UserID         string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Counters    repositories.CounterRepository
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	counters repositories.CounterRepository
	clock    func() time.Time
	newID    func() string
	events   OrderEventPublisher
	logger   func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:   deps.Orders,
		counters: deps.Counters,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if err := validatePlaceOrder(cmd); err != nil {
		return Order{}, err
	}

	now := s.now()
	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	items := make([]OrderLineItem, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		items = append(items, OrderLineItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
		})
	}

	order := Order{
		ID:            s.nextOrderID(),
		OrderNumber:   number,
		UserID:        userID,
		Status:        domain.OrderStatusPending,
		PaymentMethod: cmd.PaymentMethod,
		PaymentStatus: domain.PaymentStatusPending,
		Shipping:      sanitizeShipping(cmd.Shipping),
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	placed, err := s.orders.Place(ctx, order)
	if err != nil {
		return Order{}, s.mapOrderError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventPlaced,
		OrderID:       placed.ID,
		OrderNumber:   placed.OrderNumber,
		UserID:        placed.UserID,
		CurrentStatus: string(placed.Status),
		ActorID:       userID,
		OccurredAt:    now,
		Metadata: map[string]any{
			"totalAmount": placed.TotalAmount,
			"lineCount":   len(placed.Items),
		},
	})

	return placed, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, actor Actor) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapOrderError(err)
	}
	if !actor.Admin && order.UserID != strings.TrimSpace(actor.ID) {
		// Orders belonging to other users are indistinguishable from missing ones.
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[Order], error) {
	filter := repositories.OrderListFilter{
		Status:     query.Status,
		PlacedAt:   query.PlacedAt,
		Pagination: query.Pagination,
	}
	if query.Actor.Admin {
		filter.UserID = strings.TrimSpace(query.UserID)
	} else {
		actorID := strings.TrimSpace(query.Actor.ID)
		if actorID == "" {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: actor id is required", ErrOrderInvalidInput)
		}
		filter.UserID = actorID
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapOrderError(err)
	}
	return page, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapOrderError(err)
	}
	if !cmd.Actor.Admin && order.UserID != strings.TrimSpace(cmd.Actor.ID) {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderNotFound, orderID)
	}
	if !transitionAllowed(ownerOrderTransitions, order.Status, domain.OrderStatusCancelled) {
		return Order{}, fmt.Errorf("%w: order status %q cannot be cancelled", ErrOrderInvalidTransition, order.Status)
	}

	now := s.now()
	prevStatus := order.Status
	updated, err := s.orders.Transition(ctx, repositories.OrderTransition{
		OrderID: orderID,
		From:    transitionSources(ownerOrderTransitions, domain.OrderStatusCancelled),
		To:      domain.OrderStatusCancelled,
		At:      now,
	})
	if err != nil {
		return Order{}, s.mapOrderError(err)
	}

	metadata := map[string]any{}
	if reason := strings.TrimSpace(cmd.Reason); reason != "" {
		metadata["reason"] = reason
	}
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		UserID:         updated.UserID,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(updated.Status),
		ActorID:        strings.TrimSpace(cmd.Actor.ID),
		OccurredAt:     now,
		Metadata:       metadata,
	})

	return updated, nil
}

func (s *orderService) SetStatus(ctx context.Context, cmd SetOrderStatusCommand) (Order, error) {
	if !cmd.Actor.Admin {
		return Order{}, fmt.Errorf("%w: staff role required", ErrOrderForbidden)
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.Status.IsValid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapOrderError(err)
	}
	if !transitionAllowed(staffOrderTransitions, order.Status, cmd.Status) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, order.Status, cmd.Status)
	}

	now := s.now()
	prevStatus := order.Status
	updated, err := s.orders.Transition(ctx, repositories.OrderTransition{
		OrderID: orderID,
		From:    transitionSources(staffOrderTransitions, cmd.Status),
		To:      cmd.Status,
		At:      now,
	})
	if err != nil {
		return Order{}, s.mapOrderError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		UserID:         updated.UserID,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(updated.Status),
		ActorID:        strings.TrimSpace(cmd.Actor.ID),
		OccurredAt:     now,
	})

	return updated, nil
}

func (s *orderService) Delete(ctx context.Context, orderID string, actor Actor) error {
	if !actor.Admin {
		return fmt.Errorf("%w: staff role required", ErrOrderForbidden)
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return s.mapOrderError(err)
	}

	if err := s.orders.Delete(ctx, orderID); err != nil {
		return s.mapOrderError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventDeleted,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		PreviousStatus: string(order.Status),
		ActorID:        strings.TrimSpace(actor.ID),
		OccurredAt:     s.now(),
	})

	return nil
}

func validatePlaceOrder(cmd PlaceOrderCommand) error {
	verr := &ValidationError{}

	if len(cmd.Items) == 0 {
		verr.Add("items", "at least one item is required")
	}
	for i, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			verr.Add(fmt.Sprintf("items[%d].product_id", i), "product id is required")
		}
		if item.Quantity < 1 {
			verr.Add(fmt.Sprintf("items[%d].quantity", i), "quantity must be at least 1")
		}
	}
	if !cmd.PaymentMethod.IsValid() {
		verr.Add("payment_method", "must be one of cod, bank_transfer")
	}
	if strings.TrimSpace(cmd.Shipping.Name) == "" {
		verr.Add("shipping_name", "shipping name is required")
	}
	if strings.TrimSpace(cmd.Shipping.Phone) == "" {
		verr.Add("shipping_phone", "shipping phone is required")
	}
	if strings.TrimSpace(cmd.Shipping.Address) == "" {
		verr.Add("shipping_address", "shipping address is required")
	}
	if strings.TrimSpace(cmd.Shipping.City) == "" {
		verr.Add("shipping_city", "shipping city is required")
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

func sanitizeShipping(shipping ShippingDetails) ShippingDetails {
	return ShippingDetails{
		Name:       sanitizeText(shipping.Name),
		Phone:      sanitizeText(shipping.Phone),
		Address:    sanitizeText(shipping.Address),
		City:       sanitizeText(shipping.City),
		PostalCode: sanitizeText(shipping.PostalCode),
		Notes:      sanitizeText(shipping.Notes),
	}
}

func sanitizeText(value string) string {
	return strings.TrimSpace(notesPolicy.Sanitize(value))
}

func transitionAllowed(table map[domain.OrderStatus][]domain.OrderStatus, from, to domain.OrderStatus) bool {
	for _, candidate := range table[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// transitionSources returns every status the table allows to move into target.
// The repository re-checks this set inside its transaction so a concurrent
// transition cannot slip between the service's read and the write.
func transitionSources(table map[domain.OrderStatus][]domain.OrderStatus, target domain.OrderStatus) []domain.OrderStatus {
	sources := make([]domain.OrderStatus, 0, len(table))
	for _, from := range domain.OrderStatuses() {
		if transitionAllowed(table, from, target) {
			sources = append(sources, from)
		}
	}
	return sources
}

func (s *orderService) mapOrderError(err error) error {
	if err == nil {
		return nil
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return fmt.Errorf("%w: %s", ErrInsufficientStock, invErr.Message)
		case repositories.InventoryErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrOrderProductNotFound, invErr.Message)
		}
	}

	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		switch orderErr.Code {
		case repositories.OrderErrorStatusConflict:
			return fmt.Errorf("%w: %s", ErrOrderInvalidTransition, orderErr.Message)
		case repositories.OrderErrorInvalidInput:
			return fmt.Errorf("%w: %s", ErrOrderInvalidInput, orderErr.Message)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%06d", now.Format("20060102"), seq), nil
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}
