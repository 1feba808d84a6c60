package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/paperloft/api/internal/domain"
	pfirestore "github.com/paperloft/api/internal/platform/firestore"
	"github.com/paperloft/api/internal/platform/pagination"
	"github.com/paperloft/api/internal/repositories"
)

const printOrdersCollection = "printOrders"

// PrintOrderRepository implements repositories.PrintOrderRepository backed by Firestore.
type PrintOrderRepository struct {
	provider    *pfirestore.Provider
	printOrders *pfirestore.BaseRepository[printOrderDocument]
}

// NewPrintOrderRepository constructs a Firestore-backed print order repository.
func NewPrintOrderRepository(provider *pfirestore.Provider) (*PrintOrderRepository, error) {
	if provider == nil {
		return nil, errors.New("print order repository requires firestore provider")
	}
	printOrders := pfirestore.NewBaseRepository[printOrderDocument](provider, printOrdersCollection, nil, nil)
	return &PrintOrderRepository{provider: provider, printOrders: printOrders}, nil
}

// Insert creates a new print job document.
func (r *PrintOrderRepository) Insert(ctx context.Context, printOrder domain.PrintOrder) error {
	if r == nil || r.printOrders == nil {
		return errors.New("print order repository not initialised")
	}
	if strings.TrimSpace(printOrder.ID) == "" {
		return repositories.NewPrintOrderError(repositories.PrintOrderErrorInvalidInput, "print order insert: id is required", nil)
	}

	ref, err := r.printOrders.DocumentRef(ctx, printOrder.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, newPrintOrderDocument(printOrder)); err != nil {
		return pfirestore.WrapError("printOrders.insert", err)
	}
	return nil
}

// FindByID fetches a single print job.
func (r *PrintOrderRepository) FindByID(ctx context.Context, printOrderID string) (domain.PrintOrder, error) {
	if r == nil || r.printOrders == nil {
		return domain.PrintOrder{}, errors.New("print order repository not initialised")
	}
	printOrderID = strings.TrimSpace(printOrderID)
	if printOrderID == "" {
		return domain.PrintOrder{}, errors.New("print order find: id is required")
	}

	doc, err := r.printOrders.Get(ctx, printOrderID)
	if err != nil {
		return domain.PrintOrder{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns a page of print jobs newest first, filtered by owner and status.
func (r *PrintOrderRepository) List(ctx context.Context, filter repositories.PrintOrderListFilter) (domain.CursorPage[domain.PrintOrder], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.PrintOrder]{}, errors.New("print order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 15
	}
	if pageSize > 100 {
		pageSize = 100
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.PrintOrder]{}, pfirestore.WrapError("printOrders.list", err)
	}

	query := client.Collection(printOrdersCollection).Query
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		query = query.Where("userId", "==", userID)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status", "in", statuses)
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc).Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		var cursor printOrderPageToken
		if err := pagination.DecodeToken(token, &cursor); err != nil {
			return domain.CursorPage[domain.PrintOrder]{}, pfirestore.WrapError("printOrders.list", err)
		}
		query = query.StartAfter(cursor.CreatedAt, cursor.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var printOrders []domain.PrintOrder
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.PrintOrder]{}, pfirestore.WrapError("printOrders.list", err)
		}
		var doc printOrderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.PrintOrder]{}, fmt.Errorf("decode print order %s: %w", snap.Ref.ID, err)
		}
		printOrders = append(printOrders, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(printOrders) > pageSize
	if hasMore {
		printOrders = printOrders[:pageSize]
	}
	var nextToken string
	if hasMore && len(printOrders) > 0 {
		last := printOrders[len(printOrders)-1]
		encoded, err := pagination.EncodeToken(printOrderPageToken{ID: last.ID, CreatedAt: last.CreatedAt})
		if err != nil {
			return domain.CursorPage[domain.PrintOrder]{}, pfirestore.WrapError("printOrders.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.PrintOrder]{
		Items:         printOrders,
		NextPageToken: nextToken,
	}, nil
}

// Update overwrites the print job document.
func (r *PrintOrderRepository) Update(ctx context.Context, printOrder domain.PrintOrder) error {
	if r == nil || r.printOrders == nil {
		return errors.New("print order repository not initialised")
	}
	if strings.TrimSpace(printOrder.ID) == "" {
		return repositories.NewPrintOrderError(repositories.PrintOrderErrorInvalidInput, "print order update: id is required", nil)
	}

	ref, err := r.printOrders.DocumentRef(ctx, printOrder.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, newPrintOrderDocument(printOrder), firestore.MergeAll); err != nil {
		return pfirestore.WrapError("printOrders.update", err)
	}
	return nil
}

// Delete removes the print job only while its status is still one of the
// expected states. The status check and the delete run in one transaction so
// a concurrent status change cannot slip past the guard.
func (r *PrintOrderRepository) Delete(ctx context.Context, printOrderID string, expected []domain.PrintOrderStatus) error {
	if r == nil || r.provider == nil {
		return errors.New("print order repository not initialised")
	}
	printOrderID = strings.TrimSpace(printOrderID)
	if printOrderID == "" {
		return repositories.NewPrintOrderError(repositories.PrintOrderErrorInvalidInput, "print order delete: id is required", nil)
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.printOrders.DocumentRef(ctx, printOrderID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc printOrderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode print order %s: %w", printOrderID, err)
		}

		if len(expected) > 0 {
			current := domain.PrintOrderStatus(doc.Status)
			allowed := false
			for _, candidate := range expected {
				if candidate == current {
					allowed = true
					break
				}
			}
			if !allowed {
				return repositories.NewPrintOrderError(repositories.PrintOrderErrorInvalidState, fmt.Sprintf("print order %s cannot be deleted while %s", printOrderID, current), nil)
			}
		}

		return tx.Delete(ref)
	})
	if err != nil {
		return wrapPrintOrderError("printOrders.delete", err)
	}
	return nil
}

// Helper structures ---------------------------------------------------------

type printOrderDocument struct {
	UserID        string    `firestore:"userId"`
	FileName      string    `firestore:"fileName"`
	FileURL       string    `firestore:"fileUrl,omitempty"`
	PrintType     string    `firestore:"printType"`
	PaperSize     string    `firestore:"paperSize"`
	Copies        int64     `firestore:"copies"`
	TotalPages    int64     `firestore:"totalPages"`
	PricePerPage  int64     `firestore:"pricePerPage"`
	TotalAmount   int64     `firestore:"totalAmount"`
	PaymentMethod string    `firestore:"paymentMethod"`
	PaymentStatus string    `firestore:"paymentStatus"`
	Status        string    `firestore:"status"`
	Notes         string    `firestore:"notes,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func newPrintOrderDocument(printOrder domain.PrintOrder) printOrderDocument {
	return printOrderDocument{
		UserID:        strings.TrimSpace(printOrder.UserID),
		FileName:      strings.TrimSpace(printOrder.FileName),
		FileURL:       strings.TrimSpace(printOrder.FileURL),
		PrintType:     string(printOrder.PrintType),
		PaperSize:     string(printOrder.PaperSize),
		Copies:        printOrder.Copies,
		TotalPages:    printOrder.TotalPages,
		PricePerPage:  printOrder.PricePerPage,
		TotalAmount:   printOrder.TotalAmount,
		PaymentMethod: string(printOrder.PaymentMethod),
		PaymentStatus: string(printOrder.PaymentStatus),
		Status:        string(printOrder.Status),
		Notes:         strings.TrimSpace(printOrder.Notes),
		CreatedAt:     printOrder.CreatedAt.UTC(),
		UpdatedAt:     printOrder.UpdatedAt.UTC(),
	}
}

func (d printOrderDocument) toDomain(id string) domain.PrintOrder {
	return domain.PrintOrder{
		ID:            id,
		UserID:        strings.TrimSpace(d.UserID),
		FileName:      strings.TrimSpace(d.FileName),
		FileURL:       strings.TrimSpace(d.FileURL),
		PrintType:     domain.PrintType(d.PrintType),
		PaperSize:     domain.PaperSize(d.PaperSize),
		Copies:        d.Copies,
		TotalPages:    d.TotalPages,
		PricePerPage:  d.PricePerPage,
		TotalAmount:   d.TotalAmount,
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		PaymentStatus: domain.PaymentStatus(d.PaymentStatus),
		Status:        domain.PrintOrderStatus(d.Status),
		Notes:         strings.TrimSpace(d.Notes),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type printOrderPageToken struct {
	ID        string
	CreatedAt time.Time
}

func wrapPrintOrderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var poErr *repositories.PrintOrderError
	if errors.As(err, &poErr) {
		if poErr.Op == "" {
			poErr.Op = op
		}
		return poErr
	}
	return pfirestore.WrapError(op, err)
}
