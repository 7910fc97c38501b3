package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is a placed order. Apart from the shipping status it never changes
// after creation.
type Order struct {
	ID int64
	// UserID is nil for guest checkouts.
	UserID          *int64
	FullName        string
	Email           string
	ShippingAddress string
	AmountPaid      decimal.Decimal
	DateOrdered     time.Time
	Shipped         bool
	// DateShipped is set once, when the order is first marked shipped.
	DateShipped *time.Time
	Items       []Item
}

// Item is a single book within an order. Price is the unit price charged at
// purchase time and is never recomputed from the catalog.
type Item struct {
	ID       int64
	OrderID  int64
	BookID   int64
	UserID   *int64
	Quantity int
	Price    decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts the order and all of its items, filling in the
	// generated ids and DateOrdered. Either everything is stored or nothing.
	Create(ctx context.Context, o *Order) error
	// Get returns the order with its items, or ErrNotFound.
	Get(ctx context.Context, id int64) (*Order, error)
	// ListByShipped returns orders with the given shipping status, oldest
	// first, without items.
	ListByShipped(ctx context.Context, shipped bool) ([]Order, error)
	// SetShipped updates the shipping status. DateShipped is set to at the
	// first time the order is marked shipped and is kept afterwards.
	SetShipped(ctx context.Context, id int64, shipped bool, at time.Time) (*Order, error)
}
