package services

import (
	"context"
	"errors"
	"testing"
)

func newTestCatalogService(t *testing.T, repo *memoryProductRepo) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{Products: repo})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return svc
}

func TestCatalogServiceGetProduct(t *testing.T) {
	repo := newMemoryProductRepo(testInventoryProducts())
	svc := newTestCatalogService(t, repo)

	product, err := svc.GetProduct(context.Background(), "prod-a")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Name != "A5 Notebook" {
		t.Fatalf("expected A5 Notebook, got %s", product.Name)
	}
}

func TestCatalogServiceGetProductNotFound(t *testing.T) {
	repo := newMemoryProductRepo(testInventoryProducts())
	svc := newTestCatalogService(t, repo)

	_, err := svc.GetProduct(context.Background(), "prod-missing")
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestCatalogServiceGetProductRequiresID(t *testing.T) {
	repo := newMemoryProductRepo(testInventoryProducts())
	svc := newTestCatalogService(t, repo)

	_, err := svc.GetProduct(context.Background(), "   ")
	if !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput, got %v", err)
	}
}

func TestCatalogServiceListProducts(t *testing.T) {
	repo := newMemoryProductRepo(testInventoryProducts())
	svc := newTestCatalogService(t, repo)

	page, err := svc.ListProducts(context.Background(), ListProductsQuery{})
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 products, got %d", len(page.Items))
	}
}
