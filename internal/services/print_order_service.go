package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/paperloft/api/internal/domain"
	"github.com/paperloft/api/internal/repositories"
)

const (
	printOrderIDPrefix = "prt_"

	maxPrintCopies       = 100
	maxPrintFileNameLen  = 255
	maxPrintOrderNoteLen = 1000
)

var (
	// ErrPrintOrderInvalidInput signals the caller provided invalid data.
	ErrPrintOrderInvalidInput = errors.New("print order: invalid input")
	// ErrPrintOrderNotFound indicates the print job could not be located.
	ErrPrintOrderNotFound = errors.New("print order: not found")
	// ErrPrintOrderForbidden indicates the caller may not access the print job.
	ErrPrintOrderForbidden = errors.New("print order: forbidden")
	// ErrPrintOrderInvalidState indicates the job's current status blocks the operation.
	ErrPrintOrderInvalidState = errors.New("print order: invalid state")
)

// PrintOrderServiceDeps bundles collaborators required to construct the print order service.
type PrintOrderServiceDeps struct {
	PrintOrders repositories.PrintOrderRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type printOrderService struct {
	printOrders repositories.PrintOrderRepository
	clock       func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
}

var _ PrintOrderService = (*printOrderService)(nil)

// NewPrintOrderService wires dependencies into a concrete PrintOrderService implementation.
func NewPrintOrderService(deps PrintOrderServiceDeps) (PrintOrderService, error) {
	if deps.PrintOrders == nil {
		return nil, errors.New("print order service: print order repository is required")
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

	return &printOrderService{
		printOrders: deps.PrintOrders,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *printOrderService) Create(ctx context.Context, cmd CreatePrintOrderCommand) (PrintOrder, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return PrintOrder{}, fmt.Errorf("%w: user id is required", ErrPrintOrderInvalidInput)
	}
	if err := validateCreatePrintOrder(cmd); err != nil {
		return PrintOrder{}, err
	}

	now := s.clock()
	printOrder := PrintOrder{
		ID:            printOrderIDPrefix + s.newID(),
		UserID:        userID,
		FileName:      strings.TrimSpace(cmd.FileName),
		FileURL:       strings.TrimSpace(cmd.FileURL),
		PrintType:     cmd.PrintType,
		PaperSize:     cmd.PaperSize,
		Copies:        cmd.Copies,
		TotalPages:    cmd.TotalPages,
		PricePerPage:  cmd.PricePerPage,
		TotalAmount:   cmd.TotalAmount,
		PaymentMethod: cmd.PaymentMethod,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.PrintOrderStatusPending,
		Notes:         sanitizeText(cmd.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.printOrders.Insert(ctx, printOrder); err != nil {
		return PrintOrder{}, mapPrintOrderError(err)
	}

	s.logger(ctx, "print_order.created", map[string]any{
		"printOrder": printOrder.ID,
		"user":       userID,
		"copies":     printOrder.Copies,
	})

	return printOrder, nil
}

func (s *printOrderService) Get(ctx context.Context, printOrderID string, actor Actor) (PrintOrder, error) {
	printOrderID = strings.TrimSpace(printOrderID)
	if printOrderID == "" {
		return PrintOrder{}, fmt.Errorf("%w: print order id is required", ErrPrintOrderInvalidInput)
	}

	printOrder, err := s.printOrders.FindByID(ctx, printOrderID)
	if err != nil {
		return PrintOrder{}, mapPrintOrderError(err)
	}
	if !actor.Admin && printOrder.UserID != strings.TrimSpace(actor.ID) {
		return PrintOrder{}, fmt.Errorf("%w: print order %s", ErrPrintOrderForbidden, printOrderID)
	}
	return printOrder, nil
}

func (s *printOrderService) List(ctx context.Context, query ListPrintOrdersQuery) (domain.CursorPage[PrintOrder], error) {
	filter := repositories.PrintOrderListFilter{
		Status:     query.Status,
		Pagination: query.Pagination,
	}
	if query.Actor.Admin {
		filter.UserID = strings.TrimSpace(query.UserID)
	} else {
		actorID := strings.TrimSpace(query.Actor.ID)
		if actorID == "" {
			return domain.CursorPage[PrintOrder]{}, fmt.Errorf("%w: actor id is required", ErrPrintOrderInvalidInput)
		}
		filter.UserID = actorID
	}

	page, err := s.printOrders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[PrintOrder]{}, mapPrintOrderError(err)
	}
	return page, nil
}

func (s *printOrderService) Update(ctx context.Context, cmd UpdatePrintOrderCommand) (PrintOrder, error) {
	printOrderID := strings.TrimSpace(cmd.PrintOrderID)
	if printOrderID == "" {
		return PrintOrder{}, fmt.Errorf("%w: print order id is required", ErrPrintOrderInvalidInput)
	}
	if cmd.Status == nil && cmd.PaymentStatus == nil && cmd.Notes == nil {
		return PrintOrder{}, fmt.Errorf("%w: nothing to update", ErrPrintOrderInvalidInput)
	}
	if cmd.Status != nil && !cmd.Status.IsValid() {
		return PrintOrder{}, fmt.Errorf("%w: unknown status %q", ErrPrintOrderInvalidInput, *cmd.Status)
	}
	if cmd.PaymentStatus != nil && !cmd.PaymentStatus.IsValid() {
		return PrintOrder{}, fmt.Errorf("%w: unknown payment status %q", ErrPrintOrderInvalidInput, *cmd.PaymentStatus)
	}

	printOrder, err := s.printOrders.FindByID(ctx, printOrderID)
	if err != nil {
		return PrintOrder{}, mapPrintOrderError(err)
	}
	if !cmd.Actor.Admin && printOrder.UserID != strings.TrimSpace(cmd.Actor.ID) {
		return PrintOrder{}, fmt.Errorf("%w: print order %s", ErrPrintOrderForbidden, printOrderID)
	}

	if cmd.Status != nil {
		printOrder.Status = *cmd.Status
	}
	if cmd.PaymentStatus != nil {
		printOrder.PaymentStatus = *cmd.PaymentStatus
	}
	if cmd.Notes != nil {
		notes := sanitizeText(*cmd.Notes)
		if len(notes) > maxPrintOrderNoteLen {
			return PrintOrder{}, fmt.Errorf("%w: notes exceed %d characters", ErrPrintOrderInvalidInput, maxPrintOrderNoteLen)
		}
		printOrder.Notes = notes
	}
	printOrder.UpdatedAt = s.clock()

	if err := s.printOrders.Update(ctx, printOrder); err != nil {
		return PrintOrder{}, mapPrintOrderError(err)
	}
	return printOrder, nil
}

// UpdatePayment records the outcome of an external payment. Unlike Update it
// is available to the job's owner, so a customer can confirm their own transfer.
func (s *printOrderService) UpdatePayment(ctx context.Context, cmd UpdatePrintOrderPaymentCommand) (PrintOrder, error) {
	printOrderID := strings.TrimSpace(cmd.PrintOrderID)
	if printOrderID == "" {
		return PrintOrder{}, fmt.Errorf("%w: print order id is required", ErrPrintOrderInvalidInput)
	}
	if !cmd.PaymentStatus.IsValid() {
		return PrintOrder{}, fmt.Errorf("%w: unknown payment status %q", ErrPrintOrderInvalidInput, cmd.PaymentStatus)
	}

	printOrder, err := s.printOrders.FindByID(ctx, printOrderID)
	if err != nil {
		return PrintOrder{}, mapPrintOrderError(err)
	}
	if !cmd.Actor.Admin && printOrder.UserID != strings.TrimSpace(cmd.Actor.ID) {
		return PrintOrder{}, fmt.Errorf("%w: print order %s", ErrPrintOrderForbidden, printOrderID)
	}

	printOrder.PaymentStatus = cmd.PaymentStatus
	printOrder.UpdatedAt = s.clock()

	if err := s.printOrders.Update(ctx, printOrder); err != nil {
		return PrintOrder{}, mapPrintOrderError(err)
	}

	s.logger(ctx, "print_order.payment.updated", map[string]any{
		"printOrder": printOrder.ID,
		"payment":    string(printOrder.PaymentStatus),
		"actor":      strings.TrimSpace(cmd.Actor.ID),
	})

	return printOrder, nil
}

// Delete removes a print job. Owners may withdraw a job only while it is
// still pending; the repository re-checks the status transactionally.
func (s *printOrderService) Delete(ctx context.Context, printOrderID string, actor Actor) error {
	printOrderID = strings.TrimSpace(printOrderID)
	if printOrderID == "" {
		return fmt.Errorf("%w: print order id is required", ErrPrintOrderInvalidInput)
	}

	printOrder, err := s.printOrders.FindByID(ctx, printOrderID)
	if err != nil {
		return mapPrintOrderError(err)
	}
	if !actor.Admin && printOrder.UserID != strings.TrimSpace(actor.ID) {
		return fmt.Errorf("%w: print order %s", ErrPrintOrderForbidden, printOrderID)
	}

	var expected []domain.PrintOrderStatus
	if !actor.Admin {
		expected = []domain.PrintOrderStatus{domain.PrintOrderStatusPending}
		if printOrder.Status != domain.PrintOrderStatusPending {
			return fmt.Errorf("%w: print order %s cannot be deleted while %s", ErrPrintOrderInvalidState, printOrderID, printOrder.Status)
		}
	}

	if err := s.printOrders.Delete(ctx, printOrderID, expected); err != nil {
		return mapPrintOrderError(err)
	}
	return nil
}

func validateCreatePrintOrder(cmd CreatePrintOrderCommand) error {
	verr := &ValidationError{}

	fileName := strings.TrimSpace(cmd.FileName)
	if fileName == "" {
		verr.Add("file_name", "file name is required")
	} else if len(fileName) > maxPrintFileNameLen {
		verr.Add("file_name", fmt.Sprintf("must be at most %d characters", maxPrintFileNameLen))
	}
	if !cmd.PrintType.IsValid() {
		verr.Add("print_type", "must be one of color, bw, photo")
	}
	if !cmd.PaperSize.IsValid() {
		verr.Add("paper_size", "must be one of A4, A3, Letter, 4x6, 5x7, 8x10")
	}
	if cmd.Copies < 1 || cmd.Copies > maxPrintCopies {
		verr.Add("copies", fmt.Sprintf("must be between 1 and %d", maxPrintCopies))
	}
	if cmd.TotalPages < 1 {
		verr.Add("total_pages", "must be at least 1")
	}
	if cmd.PricePerPage < 0 {
		verr.Add("price_per_page", "cannot be negative")
	}
	if cmd.TotalAmount < 0 {
		verr.Add("total_amount", "cannot be negative")
	}
	if !cmd.PaymentMethod.IsValid() {
		verr.Add("payment_method", "must be one of cod, bank_transfer")
	}
	if len(strings.TrimSpace(cmd.Notes)) > maxPrintOrderNoteLen {
		verr.Add("notes", fmt.Sprintf("must be at most %d characters", maxPrintOrderNoteLen))
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

func mapPrintOrderError(err error) error {
	if err == nil {
		return nil
	}

	var poErr *repositories.PrintOrderError
	if errors.As(err, &poErr) {
		switch poErr.Code {
		case repositories.PrintOrderErrorInvalidState:
			return fmt.Errorf("%w: %s", ErrPrintOrderInvalidState, poErr.Message)
		case repositories.PrintOrderErrorInvalidInput:
			return fmt.Errorf("%w: %s", ErrPrintOrderInvalidInput, poErr.Message)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrPrintOrderNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("print order: repository unavailable: %w", err)
		}
	}

	return err
}
