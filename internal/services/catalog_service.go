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
	// ErrProductNotFound indicates the product id does not resolve to a catalog entry.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrCatalogInvalidInput signals the caller provided invalid data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
)

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Products repositories.ProductRepository
}

type catalogService struct {
	products repositories.ProductRepository
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	return &catalogService{products: deps.Products}, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, mapCatalogError(err)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, query ListProductsQuery) (domain.CursorPage[Product], error) {
	page, err := s.products.List(ctx, repositories.ProductListFilter{
		Pagination: query.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Product]{}, mapCatalogError(err)
	}
	return page, nil
}

func mapCatalogError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrProductNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("catalog: repository unavailable: %w", err)
		}
	}

	return err
}
