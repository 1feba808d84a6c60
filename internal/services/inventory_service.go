package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/paperloft/api/internal/domain"
	"github.com/paperloft/api/internal/repositories"
)

var (
	// ErrInventoryInvalidInput signals the caller provided invalid data.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryForbidden indicates the caller lacks the role required for the operation.
	ErrInventoryForbidden = errors.New("inventory: forbidden")
	// ErrInventoryNegativeStock indicates the adjustment would drop stock below zero.
	ErrInventoryNegativeStock = errors.New("inventory: stock cannot go negative")
)

// InventoryServiceDeps bundles collaborators required to construct the inventory service.
type InventoryServiceDeps struct {
	Products repositories.ProductRepository
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	products repositories.ProductRepository
	logger   func(context.Context, string, map[string]any)
}

var _ InventoryService = (*inventoryService)(nil)

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory service: product repository is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{products: deps.Products, logger: logger}, nil
}

func (s *inventoryService) RestoreStock(ctx context.Context, cmd RestoreStockCommand) (Product, error) {
	if !cmd.Actor.Admin {
		return Product{}, fmt.Errorf("%w: staff role required", ErrInventoryForbidden)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}
	if cmd.Quantity < 1 {
		return Product{}, fmt.Errorf("%w: quantity must be at least 1", ErrInventoryInvalidInput)
	}

	product, err := s.products.AdjustStock(ctx, productID, cmd.Quantity)
	if err != nil {
		return Product{}, mapInventoryError(err)
	}

	s.logger(ctx, "inventory.stock.restored", map[string]any{
		"product":  product.ID,
		"quantity": cmd.Quantity,
		"stock":    product.Stock,
		"actor":    strings.TrimSpace(cmd.Actor.ID),
	})

	return product, nil
}

func (s *inventoryService) ListLowStock(ctx context.Context, query LowStockQuery) (domain.CursorPage[Product], error) {
	if query.Threshold < 0 {
		return domain.CursorPage[Product]{}, fmt.Errorf("%w: threshold cannot be negative", ErrInventoryInvalidInput)
	}

	threshold := query.Threshold
	page, err := s.products.List(ctx, repositories.ProductListFilter{
		MaxStock:   &threshold,
		Pagination: query.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Product]{}, mapInventoryError(err)
	}
	return page, nil
}

func mapInventoryError(err error) error {
	if err == nil {
		return nil
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrProductNotFound, invErr.Message)
		case repositories.InventoryErrorInvalidAdjustment:
			return fmt.Errorf("%w: %s", ErrInventoryNegativeStock, invErr.Message)
		case repositories.InventoryErrorInsufficientStock:
			return fmt.Errorf("%w: %s", ErrInventoryNegativeStock, invErr.Message)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrProductNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("inventory: repository unavailable: %w", err)
		}
	}

	return err
}
