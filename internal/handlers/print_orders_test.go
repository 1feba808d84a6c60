package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/paperloft/api/internal/domain"
	"github.com/paperloft/api/internal/platform/auth"
	"github.com/paperloft/api/internal/services"
)

type stubPrintOrderService struct {
	createFunc        func(ctx context.Context, cmd services.CreatePrintOrderCommand) (services.PrintOrder, error)
	getFunc           func(ctx context.Context, printOrderID string, actor services.Actor) (services.PrintOrder, error)
	listFunc          func(ctx context.Context, query services.ListPrintOrdersQuery) (domain.CursorPage[services.PrintOrder], error)
	updateFunc        func(ctx context.Context, cmd services.UpdatePrintOrderCommand) (services.PrintOrder, error)
	updatePaymentFunc func(ctx context.Context, cmd services.UpdatePrintOrderPaymentCommand) (services.PrintOrder, error)
	deleteFunc        func(ctx context.Context, printOrderID string, actor services.Actor) error
}

func (s *stubPrintOrderService) Create(ctx context.Context, cmd services.CreatePrintOrderCommand) (services.PrintOrder, error) {
	if s.createFunc == nil {
		return services.PrintOrder{}, errors.New("createFunc not configured")
	}
	return s.createFunc(ctx, cmd)
}

func (s *stubPrintOrderService) Get(ctx context.Context, printOrderID string, actor services.Actor) (services.PrintOrder, error) {
	if s.getFunc == nil {
		return services.PrintOrder{}, errors.New("getFunc not configured")
	}
	return s.getFunc(ctx, printOrderID, actor)
}

func (s *stubPrintOrderService) List(ctx context.Context, query services.ListPrintOrdersQuery) (domain.CursorPage[services.PrintOrder], error) {
	if s.listFunc == nil {
		return domain.CursorPage[services.PrintOrder]{}, errors.New("listFunc not configured")
	}
	return s.listFunc(ctx, query)
}

func (s *stubPrintOrderService) Update(ctx context.Context, cmd services.UpdatePrintOrderCommand) (services.PrintOrder, error) {
	if s.updateFunc == nil {
		return services.PrintOrder{}, errors.New("updateFunc not configured")
	}
	return s.updateFunc(ctx, cmd)
}

func (s *stubPrintOrderService) UpdatePayment(ctx context.Context, cmd services.UpdatePrintOrderPaymentCommand) (services.PrintOrder, error) {
	if s.updatePaymentFunc == nil {
		return services.PrintOrder{}, errors.New("updatePaymentFunc not configured")
	}
	return s.updatePaymentFunc(ctx, cmd)
}

func (s *stubPrintOrderService) Delete(ctx context.Context, printOrderID string, actor services.Actor) error {
	if s.deleteFunc == nil {
		return errors.New("deleteFunc not configured")
	}
	return s.deleteFunc(ctx, printOrderID, actor)
}

func samplePrintOrder() services.PrintOrder {
	created := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	return services.PrintOrder{
		ID:            "prt_1",
		UserID:        "user-1",
		FileName:      "thesis.pdf",
		PrintType:     domain.PrintTypeBW,
		PaperSize:     domain.PaperSizeA4,
		Copies:        3,
		TotalPages:    42,
		PricePerPage:  500,
		TotalAmount:   63000,
		PaymentMethod: domain.PaymentMethodBankTransfer,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.PrintOrderStatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func servePrintOrders(service services.PrintOrderService, req *http.Request) *httptest.ResponseRecorder {
	handler := NewPrintOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/print-orders", handler.Routes)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestPrintOrderHandlersCreate(t *testing.T) {
	service := &stubPrintOrderService{
		createFunc: func(ctx context.Context, cmd services.CreatePrintOrderCommand) (services.PrintOrder, error) {
			if cmd.UserID != "user-1" {
				t.Fatalf("unexpected user id %q", cmd.UserID)
			}
			if cmd.PrintType != domain.PrintTypeBW || cmd.PaperSize != domain.PaperSizeA4 {
				t.Fatalf("unexpected print options %+v", cmd)
			}
			if cmd.Copies != 3 || cmd.TotalPages != 42 {
				t.Fatalf("unexpected counts %+v", cmd)
			}
			return samplePrintOrder(), nil
		},
	}

	body := `{
		"file_name": "thesis.pdf",
		"print_type": "bw",
		"paper_size": "A4",
		"copies": 3,
		"total_pages": 42,
		"price_per_page": 500,
		"total_amount": 63000,
		"payment_method": "bank_transfer"
	}`
	req := newOrderRequest(http.MethodPost, "/print-orders", body, &auth.Identity{UID: "user-1"})
	rr := servePrintOrders(service, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload printOrderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.PrintOrder.ID != "prt_1" || payload.PrintOrder.Status != "pending" {
		t.Fatalf("unexpected payload: %+v", payload.PrintOrder)
	}
}

func TestPrintOrderHandlersCreateValidationFailure(t *testing.T) {
	verr := &services.ValidationError{}
	verr.Add("copies", "must be between 1 and 100")

	service := &stubPrintOrderService{
		createFunc: func(ctx context.Context, cmd services.CreatePrintOrderCommand) (services.PrintOrder, error) {
			return services.PrintOrder{}, verr
		},
	}

	req := newOrderRequest(http.MethodPost, "/print-orders", `{"copies": 500}`, &auth.Identity{UID: "user-1"})
	rr := servePrintOrders(service, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestPrintOrderHandlersListPassesStatusFilter(t *testing.T) {
	service := &stubPrintOrderService{
		listFunc: func(ctx context.Context, query services.ListPrintOrdersQuery) (domain.CursorPage[services.PrintOrder], error) {
			if query.Pagination.PageSize != 15 {
				t.Fatalf("expected default page size 15, got %d", query.Pagination.PageSize)
			}
			if len(query.Status) != 1 || query.Status[0] != domain.PrintOrderStatusProcessing {
				t.Fatalf("unexpected status filter %+v", query.Status)
			}
			return domain.CursorPage[services.PrintOrder]{Items: []services.PrintOrder{samplePrintOrder()}}, nil
		},
	}

	req := newOrderRequest(http.MethodGet, "/print-orders?status=processing", "", &auth.Identity{UID: "user-1"})
	rr := servePrintOrders(service, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestPrintOrderHandlersGetForbidden(t *testing.T) {
	service := &stubPrintOrderService{
		getFunc: func(ctx context.Context, printOrderID string, actor services.Actor) (services.PrintOrder, error) {
			return services.PrintOrder{}, fmt.Errorf("%w: print order %s", services.ErrPrintOrderForbidden, printOrderID)
		},
	}

	req := newOrderRequest(http.MethodGet, "/print-orders/prt_1", "", &auth.Identity{UID: "user-2"})
	rr := servePrintOrders(service, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestPrintOrderHandlersUpdatePayment(t *testing.T) {
	service := &stubPrintOrderService{
		updatePaymentFunc: func(ctx context.Context, cmd services.UpdatePrintOrderPaymentCommand) (services.PrintOrder, error) {
			if cmd.PaymentStatus != domain.PaymentStatusPaid {
				t.Fatalf("unexpected payment status %q", cmd.PaymentStatus)
			}
			printOrder := samplePrintOrder()
			printOrder.PaymentStatus = domain.PaymentStatusPaid
			return printOrder, nil
		},
	}

	req := newOrderRequest(http.MethodPatch, "/print-orders/prt_1/payment", `{"payment_status": "paid"}`, &auth.Identity{UID: "user-1"})
	rr := servePrintOrders(service, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload printOrderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.PrintOrder.PaymentStatus != "paid" {
		t.Fatalf("expected paid, got %q", payload.PrintOrder.PaymentStatus)
	}
}

func TestPrintOrderHandlersDeleteInvalidState(t *testing.T) {
	service := &stubPrintOrderService{
		deleteFunc: func(ctx context.Context, printOrderID string, actor services.Actor) error {
			return fmt.Errorf("%w: print order %s cannot be deleted while processing", services.ErrPrintOrderInvalidState, printOrderID)
		},
	}

	req := newOrderRequest(http.MethodDelete, "/print-orders/prt_1", "", &auth.Identity{UID: "user-1"})
	rr := servePrintOrders(service, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestPrintOrderHandlersDeleteSuccess(t *testing.T) {
	service := &stubPrintOrderService{
		deleteFunc: func(ctx context.Context, printOrderID string, actor services.Actor) error {
			return nil
		},
	}

	req := newOrderRequest(http.MethodDelete, "/print-orders/prt_1", "", &auth.Identity{UID: "user-1"})
	rr := servePrintOrders(service, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
}
