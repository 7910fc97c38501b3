package order

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Fulfillment tracks the shipping status of placed orders.
type Fulfillment struct {
	orders Repository
	now    func() time.Time
}

// NewFulfillment creates a Fulfillment backed by the given Repository.
func NewFulfillment(orders Repository) *Fulfillment {
	return &Fulfillment{orders: orders, now: time.Now}
}

// Pending returns the orders that have not shipped yet.
func (f *Fulfillment) Pending(ctx context.Context) ([]Order, error) {
	return f.orders.ListByShipped(ctx, false)
}

// Shipped returns the orders that have shipped.
func (f *Fulfillment) Shipped(ctx context.Context) ([]Order, error) {
	return f.orders.ListByShipped(ctx, true)
}

// Get returns a single order with its items.
func (f *Fulfillment) Get(ctx context.Context, id int64) (*Order, error) {
	return f.orders.Get(ctx, id)
}

// SetShipped marks an order shipped or not shipped.
func (f *Fulfillment) SetShipped(ctx context.Context, id int64, shipped bool) (*Order, error) {
	o, err := f.orders.SetShipped(ctx, id, shipped, f.now().UTC())
	if err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Shipping status updated",
		zap.Int64("order_id", id),
		zap.Bool("shipped", shipped),
	)
	return o, nil
}
