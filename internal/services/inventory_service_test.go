package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	domain "github.com/paperloft/api/internal/domain"
	"github.com/paperloft/api/internal/repositories"
)

type memoryProductRepo struct {
	products map[string]domain.Product
	listErr  error
}

func newMemoryProductRepo(products map[string]domain.Product) *memoryProductRepo {
	if products == nil {
		products = map[string]domain.Product{}
	}
	return &memoryProductRepo{products: products}
}

func (r *memoryProductRepo) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, &stubRepoError{notFound: true, msg: "product " + productID + " not found"}
	}
	return product, nil
}

func (r *memoryProductRepo) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r.listErr != nil {
		return domain.CursorPage[domain.Product]{}, r.listErr
	}
	var items []domain.Product
	for _, product := range r.products {
		if filter.MaxStock != nil && product.Stock > *filter.MaxStock {
			continue
		}
		items = append(items, product)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return domain.CursorPage[domain.Product]{Items: items}, nil
}

func (r *memoryProductRepo) AdjustStock(ctx context.Context, productID string, delta int64) (domain.Product, error) {
	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, fmt.Sprintf("product %s not found", productID), nil)
	}
	next := product.Stock + delta
	if next < 0 {
		return domain.Product{}, repositories.NewInventoryError(repositories.InventoryErrorInvalidAdjustment, fmt.Sprintf("stock for %s cannot drop below zero", product.Name), nil)
	}
	product.Stock = next
	r.products[productID] = product
	return product, nil
}

func testInventoryProducts() map[string]domain.Product {
	return map[string]domain.Product{
		"prod-a": {ID: "prod-a", Name: "A5 Notebook", Price: 1200, Stock: 10},
		"prod-b": {ID: "prod-b", Name: "Gel Pen", Price: 300, Stock: 2},
		"prod-c": {ID: "prod-c", Name: "Sticky Notes", Price: 450, Stock: 0},
	}
}

func newTestInventoryService(t *testing.T, repo *memoryProductRepo) InventoryService {
	t.Helper()
	svc, err := NewInventoryService(InventoryServiceDeps{Products: repo})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}
	return svc
}

func TestInventoryServiceRestoreStock(t *testing.T) {
	repo := newMemoryProductRepo(testInventoryProducts())
	svc := newTestInventoryService(t, repo)

	product, err := svc.RestoreStock(context.Background(), RestoreStockCommand{
		ProductID: "prod-b",
		Quantity:  5,
		Actor:     Actor{ID: "staff-1", Admin: true},
	})
	if err != nil {
		t.Fatalf("restore stock: %v", err)
	}
	if product.Stock != 7 {
		t.Fatalf("expected stock 7, got %d", product.Stock)
	}
}

func TestInventoryServiceRestoreStockRequiresStaff(t *testing.T) {
	repo := newMemoryProductRepo(testInventoryProducts())
	svc := newTestInventoryService(t, repo)

	_, err := svc.RestoreStock(context.Background(), RestoreStockCommand{
		ProductID: "prod-b",
		Quantity:  5,
		Actor:     Actor{ID: "user-1"},
	})
	if !errors.Is(err, ErrInventoryForbidden) {
		t.Fatalf("expected ErrInventoryForbidden, got %v", err)
	}
}

func TestInventoryServiceRestoreStockValidation(t *testing.T) {
	repo := newMemoryProductRepo(testInventoryProducts())
	svc := newTestInventoryService(t, repo)

	cases := []RestoreStockCommand{
		{ProductID: "", Quantity: 1, Actor: Actor{Admin: true}},
		{ProductID: "prod-b", Quantity: 0, Actor: Actor{Admin: true}},
		{ProductID: "prod-b", Quantity: -3, Actor: Actor{Admin: true}},
	}
	for i, cmd := range cases {
		if _, err := svc.RestoreStock(context.Background(), cmd); !errors.Is(err, ErrInventoryInvalidInput) {
			t.Fatalf("case %d: expected ErrInventoryInvalidInput, got %v", i, err)
		}
	}
}

func TestInventoryServiceRestoreStockUnknownProduct(t *testing.T) {
	repo := newMemoryProductRepo(testInventoryProducts())
	svc := newTestInventoryService(t, repo)

	_, err := svc.RestoreStock(context.Background(), RestoreStockCommand{
		ProductID: "prod-missing",
		Quantity:  1,
		Actor:     Actor{Admin: true},
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestInventoryServiceListLowStock(t *testing.T) {
	repo := newMemoryProductRepo(testInventoryProducts())
	svc := newTestInventoryService(t, repo)

	page, err := svc.ListLowStock(context.Background(), LowStockQuery{Threshold: 2})
	if err != nil {
		t.Fatalf("list low stock: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 low stock products, got %d", len(page.Items))
	}
	if page.Items[0].ID != "prod-b" || page.Items[1].ID != "prod-c" {
		t.Fatalf("unexpected low stock set: %+v", page.Items)
	}
}

func TestInventoryServiceListLowStockRejectsNegativeThreshold(t *testing.T) {
	repo := newMemoryProductRepo(testInventoryProducts())
	svc := newTestInventoryService(t, repo)

	_, err := svc.ListLowStock(context.Background(), LowStockQuery{Threshold: -1})
	if !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected ErrInventoryInvalidInput, got %v", err)
	}
}
