package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/paperloft/api/internal/domain"
	"github.com/paperloft/api/internal/platform/auth"
	"github.com/paperloft/api/internal/services"
)

type stubInventoryService struct {
	restoreFunc  func(ctx context.Context, cmd services.RestoreStockCommand) (services.Product, error)
	lowStockFunc func(ctx context.Context, query services.LowStockQuery) (domain.CursorPage[services.Product], error)
}

func (s *stubInventoryService) RestoreStock(ctx context.Context, cmd services.RestoreStockCommand) (services.Product, error) {
	if s.restoreFunc == nil {
		return services.Product{}, errors.New("restoreFunc not configured")
	}
	return s.restoreFunc(ctx, cmd)
}

func (s *stubInventoryService) ListLowStock(ctx context.Context, query services.LowStockQuery) (domain.CursorPage[services.Product], error) {
	if s.lowStockFunc == nil {
		return domain.CursorPage[services.Product]{}, errors.New("lowStockFunc not configured")
	}
	return s.lowStockFunc(ctx, query)
}

func staffIdentity() *auth.Identity {
	return &auth.Identity{UID: "staff-1", Roles: []string{auth.RoleStaff}}
}

func serveAdmin(orders services.OrderService, inventory services.InventoryService, req *http.Request) *httptest.ResponseRecorder {
	handler := NewAdminHandlers(nil, orders, inventory)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestAdminHandlersListOrdersPassesScope(t *testing.T) {
	service := &stubOrderService{
		listFunc: func(ctx context.Context, query services.ListOrdersQuery) (domain.CursorPage[services.Order], error) {
			if !query.Actor.Admin {
				t.Fatalf("expected admin actor, got %+v", query.Actor)
			}
			if query.UserID != "user-9" {
				t.Fatalf("expected user scope user-9, got %q", query.UserID)
			}
			if query.Pagination.PageSize != 20 {
				t.Fatalf("expected default page size 20, got %d", query.Pagination.PageSize)
			}
			return domain.CursorPage[services.Order]{Items: []services.Order{sampleOrder()}}, nil
		},
	}

	req := newOrderRequest(http.MethodGet, "/admin/orders?user_id=user-9", "", staffIdentity())
	rr := serveAdmin(service, nil, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestAdminHandlersListOrdersDateRange(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	service := &stubOrderService{
		listFunc: func(ctx context.Context, query services.ListOrdersQuery) (domain.CursorPage[services.Order], error) {
			if query.PlacedAt.From == nil || !query.PlacedAt.From.Equal(from) {
				t.Fatalf("expected placed_from %s, got %v", from, query.PlacedAt.From)
			}
			if query.PlacedAt.To == nil || !query.PlacedAt.To.Equal(to) {
				t.Fatalf("expected placed_to %s, got %v", to, query.PlacedAt.To)
			}
			return domain.CursorPage[services.Order]{}, nil
		},
	}

	req := newOrderRequest(http.MethodGet, "/admin/orders?placed_from=2025-06-01T00:00:00Z&placed_to=2025-06-30T23:59:59Z", "", staffIdentity())
	rr := serveAdmin(service, nil, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	req = newOrderRequest(http.MethodGet, "/admin/orders?placed_from=yesterday", "", staffIdentity())
	rr = serveAdmin(service, nil, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad timestamp, got %d", rr.Code)
	}
}

func TestAdminHandlersSetOrderStatus(t *testing.T) {
	service := &stubOrderService{
		setStatusFunc: func(ctx context.Context, cmd services.SetOrderStatusCommand) (services.Order, error) {
			if cmd.OrderID != "ord_1" || cmd.Status != domain.OrderStatusShipped {
				t.Fatalf("unexpected command %+v", cmd)
			}
			order := sampleOrder()
			order.Status = domain.OrderStatusShipped
			return order, nil
		},
	}

	req := newOrderRequest(http.MethodPatch, "/admin/orders/ord_1/status", `{"status": "shipped"}`, staffIdentity())
	rr := serveAdmin(service, nil, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Order.Status != "shipped" {
		t.Fatalf("expected shipped, got %q", payload.Order.Status)
	}
}

func TestAdminHandlersSetOrderStatusForbidden(t *testing.T) {
	service := &stubOrderService{
		setStatusFunc: func(ctx context.Context, cmd services.SetOrderStatusCommand) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: staff role required", services.ErrOrderForbidden)
		},
	}

	req := newOrderRequest(http.MethodPatch, "/admin/orders/ord_1/status", `{"status": "shipped"}`, &auth.Identity{UID: "user-1"})
	rr := serveAdmin(service, nil, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestAdminHandlersDeleteOrder(t *testing.T) {
	var deleted string
	service := &stubOrderService{
		deleteFunc: func(ctx context.Context, orderID string, actor services.Actor) error {
			deleted = orderID
			return nil
		},
	}

	req := newOrderRequest(http.MethodDelete, "/admin/orders/ord_1", "", staffIdentity())
	rr := serveAdmin(service, nil, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if deleted != "ord_1" {
		t.Fatalf("expected ord_1 deleted, got %q", deleted)
	}
}

func TestAdminHandlersListLowStock(t *testing.T) {
	inventory := &stubInventoryService{
		lowStockFunc: func(ctx context.Context, query services.LowStockQuery) (domain.CursorPage[services.Product], error) {
			if query.Threshold != 3 {
				t.Fatalf("expected threshold 3, got %d", query.Threshold)
			}
			return domain.CursorPage[services.Product]{
				Items: []services.Product{{ID: "prod-b", Name: "Gel Pen", Stock: 2}},
			}, nil
		},
	}

	req := newOrderRequest(http.MethodGet, "/admin/products/low-stock?threshold=3", "", staffIdentity())
	rr := serveAdmin(nil, inventory, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Gel Pen") {
		t.Fatalf("expected product in response, got %s", rr.Body.String())
	}
}

func TestAdminHandlersRestockProduct(t *testing.T) {
	inventory := &stubInventoryService{
		restoreFunc: func(ctx context.Context, cmd services.RestoreStockCommand) (services.Product, error) {
			if cmd.ProductID != "prod-b" || cmd.Quantity != 5 {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.Product{ID: "prod-b", Name: "Gel Pen", Stock: 7}, nil
		},
	}

	req := newOrderRequest(http.MethodPost, "/admin/products/prod-b/restock", `{"quantity": 5}`, staffIdentity())
	rr := serveAdmin(nil, inventory, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload productResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Product.Stock != 7 {
		t.Fatalf("expected stock 7, got %d", payload.Product.Stock)
	}
}

func TestAdminHandlersRestockNegativeAdjustment(t *testing.T) {
	inventory := &stubInventoryService{
		restoreFunc: func(ctx context.Context, cmd services.RestoreStockCommand) (services.Product, error) {
			return services.Product{}, fmt.Errorf("%w: stock for Gel Pen cannot drop below zero", services.ErrInventoryNegativeStock)
		},
	}

	req := newOrderRequest(http.MethodPost, "/admin/products/prod-b/restock", `{"quantity": 1}`, staffIdentity())
	rr := serveAdmin(nil, inventory, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}
