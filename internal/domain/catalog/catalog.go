package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested book does not exist.
	ErrNotFound = errors.New("book not found")
	// ErrCategoryNotFound is returned when a requested category does not
	// exist.
	ErrCategoryNotFound = errors.New("category not found")
)

// Category groups books on the storefront.
type Category struct {
	ID    int64
	Name  string
	Books int
}

// Book represents a catalog item available for purchase.
type Book struct {
	ID          int64
	Name        string
	Price       decimal.Decimal
	Category    string
	Description string
	Image       string

	// OnSale switches every price computation to SalePrice.
	OnSale    bool
	SalePrice decimal.Decimal
}

// UnitPrice returns the price a buyer pays for one copy right now.
func (b Book) UnitPrice() decimal.Decimal {
	if b.OnSale {
		return b.SalePrice
	}
	return b.Price
}

// Repository defines read operations for the book catalog.
type Repository interface {
	List(ctx context.Context) ([]Book, error)
	// Categories returns every category by name, empty ones included.
	Categories(ctx context.Context) ([]Category, error)
	// ListByCategory returns ErrCategoryNotFound for an unknown category
	// and an empty list for a known one without books.
	ListByCategory(ctx context.Context, category string) ([]Book, error)
	// GetByID returns ErrNotFound when no book has the given id.
	GetByID(ctx context.Context, id int64) (*Book, error)
	// GetByIDs returns the books that exist among ids, in no particular
	// order. Unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []int64) ([]Book, error)
}
