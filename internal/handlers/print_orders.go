package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/paperloft/api/internal/domain"
	"github.com/paperloft/api/internal/platform/auth"
	"github.com/paperloft/api/internal/platform/httpx"
	"github.com/paperloft/api/internal/services"
)

const (
	defaultPrintOrderPageSize = 15
	maxPrintOrderPageSize     = 100
	maxPrintOrderBodySize     = 32 * 1024
)

type createPrintOrderRequest struct {
	FileName      string `json:"file_name"`
	FileURL       string `json:"file_url"`
	PrintType     string `json:"print_type"`
	PaperSize     string `json:"paper_size"`
	Copies        int64  `json:"copies"`
	TotalPages    int64  `json:"total_pages"`
	PricePerPage  int64  `json:"price_per_page"`
	TotalAmount   int64  `json:"total_amount"`
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes"`
}

type updatePrintOrderRequest struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
	Notes         *string `json:"notes"`
}

type updatePrintPaymentRequest struct {
	PaymentStatus string `json:"payment_status"`
}

// PrintOrderHandlers exposes the print job endpoints for authenticated users.
type PrintOrderHandlers struct {
	authn       *auth.Authenticator
	printOrders services.PrintOrderService
}

// NewPrintOrderHandlers constructs a new PrintOrderHandlers instance.
func NewPrintOrderHandlers(authn *auth.Authenticator, printOrders services.PrintOrderService) *PrintOrderHandlers {
	return &PrintOrderHandlers{
		authn:       authn,
		printOrders: printOrders,
	}
}

// Routes registers the /print-orders endpoints.
func (h *PrintOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.createPrintOrder)
	r.Get("/", h.listPrintOrders)
	r.Get("/{printOrderID}", h.getPrintOrder)
	r.Patch("/{printOrderID}", h.updatePrintOrder)
	r.Patch("/{printOrderID}/payment", h.updatePrintOrderPayment)
	r.Delete("/{printOrderID}", h.deletePrintOrder)
}

// AdminRoutes registers the staff print job endpoints under /admin.
func (h *PrintOrderHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/print-orders", h.listPrintOrders)
	r.Patch("/print-orders/{printOrderID}/status", h.updatePrintOrder)
}

func (h *PrintOrderHandlers) createPrintOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.printOrders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("print_order_service_unavailable", "print order service unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxPrintOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req createPrintOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	printOrder, err := h.printOrders.Create(ctx, services.CreatePrintOrderCommand{
		UserID:        actor.ID,
		FileName:      req.FileName,
		FileURL:       req.FileURL,
		PrintType:     domain.PrintType(strings.ToLower(strings.TrimSpace(req.PrintType))),
		PaperSize:     domain.PaperSize(strings.TrimSpace(req.PaperSize)),
		Copies:        req.Copies,
		TotalPages:    req.TotalPages,
		PricePerPage:  req.PricePerPage,
		TotalAmount:   req.TotalAmount,
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Notes:         req.Notes,
	})
	if err != nil {
		writePrintOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, printOrderResponse{PrintOrder: buildPrintOrderPayload(printOrder)})
}

func (h *PrintOrderHandlers) listPrintOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.printOrders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("print_order_service_unavailable", "print order service unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	statuses, err := parsePrintOrderStatusFilters(r.URL.Query()["status"])
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	pageSize, err := parsePageSize(r, defaultPrintOrderPageSize, maxPrintOrderPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.printOrders.List(ctx, services.ListPrintOrdersQuery{
		Actor:  actor,
		UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
		Status: statuses,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: pageTokenParam(r),
		},
	})
	if err != nil {
		writePrintOrderError(ctx, w, err)
		return
	}

	items := make([]printOrderPayload, 0, len(page.Items))
	for _, printOrder := range page.Items {
		items = append(items, buildPrintOrderPayload(printOrder))
	}
	writeJSONResponse(w, http.StatusOK, printOrderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *PrintOrderHandlers) getPrintOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.printOrders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("print_order_service_unavailable", "print order service unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	printOrderID := strings.TrimSpace(chi.URLParam(r, "printOrderID"))
	if printOrderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "print order id is required", http.StatusBadRequest))
		return
	}

	printOrder, err := h.printOrders.Get(ctx, printOrderID, actor)
	if err != nil {
		writePrintOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, printOrderResponse{PrintOrder: buildPrintOrderPayload(printOrder)})
}

func (h *PrintOrderHandlers) updatePrintOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.printOrders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("print_order_service_unavailable", "print order service unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	printOrderID := strings.TrimSpace(chi.URLParam(r, "printOrderID"))
	if printOrderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "print order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxPrintOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req updatePrintOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	cmd := services.UpdatePrintOrderCommand{
		PrintOrderID: printOrderID,
		Actor:        actor,
		Notes:        req.Notes,
	}
	if req.Status != nil {
		status := domain.PrintOrderStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		cmd.Status = &status
	}
	if req.PaymentStatus != nil {
		payment := domain.PaymentStatus(strings.ToLower(strings.TrimSpace(*req.PaymentStatus)))
		cmd.PaymentStatus = &payment
	}

	printOrder, err := h.printOrders.Update(ctx, cmd)
	if err != nil {
		writePrintOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, printOrderResponse{PrintOrder: buildPrintOrderPayload(printOrder)})
}

func (h *PrintOrderHandlers) updatePrintOrderPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.printOrders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("print_order_service_unavailable", "print order service unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	printOrderID := strings.TrimSpace(chi.URLParam(r, "printOrderID"))
	if printOrderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "print order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxPrintOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req updatePrintPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	printOrder, err := h.printOrders.UpdatePayment(ctx, services.UpdatePrintOrderPaymentCommand{
		PrintOrderID:  printOrderID,
		Actor:         actor,
		PaymentStatus: domain.PaymentStatus(strings.ToLower(strings.TrimSpace(req.PaymentStatus))),
	})
	if err != nil {
		writePrintOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, printOrderResponse{PrintOrder: buildPrintOrderPayload(printOrder)})
}

func (h *PrintOrderHandlers) deletePrintOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.printOrders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("print_order_service_unavailable", "print order service unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	printOrderID := strings.TrimSpace(chi.URLParam(r, "printOrderID"))
	if printOrderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "print order id is required", http.StatusBadRequest))
		return
	}

	if err := h.printOrders.Delete(ctx, printOrderID, actor); err != nil {
		writePrintOrderError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type printOrderListResponse struct {
	Items         []printOrderPayload `json:"items"`
	NextPageToken string              `json:"next_page_token,omitempty"`
}

type printOrderResponse struct {
	PrintOrder printOrderPayload `json:"print_order"`
}

type printOrderPayload struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	FileName      string `json:"file_name"`
	FileURL       string `json:"file_url,omitempty"`
	PrintType     string `json:"print_type"`
	PaperSize     string `json:"paper_size"`
	Copies        int64  `json:"copies"`
	TotalPages    int64  `json:"total_pages"`
	PricePerPage  int64  `json:"price_per_page"`
	TotalAmount   int64  `json:"total_amount"`
	PaymentMethod string `json:"payment_method"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

func buildPrintOrderPayload(printOrder services.PrintOrder) printOrderPayload {
	return printOrderPayload{
		ID:            printOrder.ID,
		UserID:        printOrder.UserID,
		FileName:      printOrder.FileName,
		FileURL:       printOrder.FileURL,
		PrintType:     string(printOrder.PrintType),
		PaperSize:     string(printOrder.PaperSize),
		Copies:        printOrder.Copies,
		TotalPages:    printOrder.TotalPages,
		PricePerPage:  printOrder.PricePerPage,
		TotalAmount:   printOrder.TotalAmount,
		PaymentMethod: string(printOrder.PaymentMethod),
		PaymentStatus: string(printOrder.PaymentStatus),
		Status:        string(printOrder.Status),
		Notes:         printOrder.Notes,
		CreatedAt:     formatTime(printOrder.CreatedAt),
		UpdatedAt:     formatTime(printOrder.UpdatedAt),
	}
}

func parsePrintOrderStatusFilters(values []string) ([]domain.PrintOrderStatus, error) {
	filters := parseFilterValues(values)
	if len(filters) == 0 {
		return nil, nil
	}
	statuses := make([]domain.PrintOrderStatus, 0, len(filters))
	for _, raw := range filters {
		status := domain.PrintOrderStatus(raw)
		if !status.IsValid() {
			return nil, errors.New("status must be one of pending, processing, completed, cancelled")
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func writePrintOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		writeValidationError(ctx, w, verr)
		return
	}

	switch {
	case errors.Is(err, services.ErrPrintOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPrintOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("print_order_not_found", "print order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPrintOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
	case errors.Is(err, services.ErrPrintOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("print_order_invalid_state", err.Error(), http.StatusUnprocessableEntity))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("print_order_error", "failed to process print order request", http.StatusInternalServerError))
	}
}
