// Package checkout turns a priced cart into a persisted order.
//
// Checkout takes two requests. CollectShipping stores the delivery details in
// the session and, for signed-in users, on the profile for the next visit. Commit reprices the live cart, writes the order and its items,
// clears the saved cart of a signed-in user in the same transaction, and
// finally drops the cart from the session.
package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/bookstore/internal/domain/cart"
	"github.com/xenking/bookstore/internal/domain/order"
	"github.com/xenking/bookstore/internal/session"
)

const instrumentationName = "github.com/xenking/bookstore/internal/domain/checkout"

var (
	// ErrMissingShippingData is returned by Commit when the session holds no
	// shipping details.
	ErrMissingShippingData = errors.New("missing shipping data")
	// ErrEmptyCart is returned by Commit when the cart has no lines at all.
	// A cart whose lines all went stale still produces an order.
	ErrEmptyCart = errors.New("cart is empty")
)

// Transactor runs fn inside a single database transaction carried by the
// context passed to fn.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProfileStore is the part of the user profile checkout writes to: the
// durable cart mirror and the last shipping details.
type ProfileStore interface {
	cart.MirrorStore
	// ReadShipping reports false when the user has saved no shipping details.
	ReadShipping(ctx context.Context, userID int64) (Shipping, bool, error)
	WriteShipping(ctx context.Context, userID int64, s Shipping) error
}

// Pipeline runs checkout attempts.
type Pipeline struct {
	carts    *cart.Service
	orders   order.Repository
	profiles ProfileStore
	tx       Transactor

	tracer   trace.Tracer
	placed   metric.Int64Counter
	failures metric.Int64Counter
	amount   metric.Float64Histogram
}

// NewPipeline creates a checkout Pipeline.
func NewPipeline(
	carts *cart.Service,
	orders order.Repository,
	profiles ProfileStore,
	tx Transactor,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Pipeline, error) {
	meter := mp.Meter(instrumentationName)

	placed, err := meter.Int64Counter("bookstore.checkout.orders",
		metric.WithDescription("Orders placed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	failures, err := meter.Int64Counter("bookstore.checkout.failures",
		metric.WithDescription("Rejected or failed checkout commits"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failures counter")
	}
	amount, err := meter.Float64Histogram("bookstore.checkout.amount",
		metric.WithDescription("Amount paid per order"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "amount histogram")
	}

	return &Pipeline{
		carts:    carts,
		orders:   orders,
		profiles: profiles,
		tx:       tx,
		tracer:   tp.Tracer(instrumentationName),
		placed:   placed,
		failures: failures,
		amount:   amount,
	}, nil
}

// CollectShipping validates shipping details and keeps them in the session
// until commit. A later call replaces earlier details. Signed-in users also
// get the details saved on their profile; if that write fails the session
// keeps its previous details.
func (p *Pipeline) CollectShipping(ctx context.Context, cc cart.Context, s Shipping) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if cc.Authenticated() {
		if err := p.profiles.WriteShipping(ctx, cc.UserID, s); err != nil {
			return errors.Wrapf(err, "save shipping of user %d", cc.UserID)
		}
	}
	cc.Session.Set(session.ShippingKey, s.encode())
	return nil
}

// PrefillShipping returns the details to show on the shipping form: the ones
// collected in this session, or else the ones a signed-in user saved on an
// earlier visit. Only details collected in the session count for Commit.
func (p *Pipeline) PrefillShipping(ctx context.Context, cc cart.Context) (Shipping, bool, error) {
	s, ok, err := p.PendingShipping(cc)
	if err != nil || ok || !cc.Authenticated() {
		return s, ok, err
	}
	s, ok, err = p.profiles.ReadShipping(ctx, cc.UserID)
	if err != nil {
		return Shipping{}, false, errors.Wrapf(err, "read shipping of user %d", cc.UserID)
	}
	return s, ok, nil
}

// PendingShipping returns the shipping details collected for the session.
func (p *Pipeline) PendingShipping(cc cart.Context) (Shipping, bool, error) {
	data, ok := cc.Session.Get(session.ShippingKey)
	if !ok {
		return Shipping{}, false, nil
	}
	s, err := decodeShipping(data)
	if err != nil {
		return Shipping{}, false, err
	}
	return s, true, nil
}

// Commit places an order for the cart in cc. Prices come from the catalog at
// commit time, never from the shipping step. Billing details are accepted but
// not charged.
//
// Lines whose book left the catalog are dropped. If every line is stale the
// order is still placed, for 0.00 and without items, and the cart is cleared
// as usual.
//
// The order, its items and, for signed-in users, the cleared durable mirror
// are written in one transaction. The session cart is removed only after that
// transaction commits; on any error the cart is left as it was.
func (p *Pipeline) Commit(ctx context.Context, cc cart.Context, _ Billing) (_ *order.Order, rerr error) {
	ctx, span := p.tracer.Start(ctx, "checkout.Commit",
		trace.WithAttributes(attribute.Bool("user.authenticated", cc.Authenticated())),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
			p.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", failureReason(rerr))))
		}
		span.End()
	}()

	c, err := p.carts.Open(cc)
	if err != nil {
		return nil, err
	}
	priced, err := c.Total(ctx)
	if err != nil {
		return nil, err
	}

	shipping, ok, err := p.PendingShipping(cc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMissingShippingData
	}

	if c.Size() == 0 {
		return nil, ErrEmptyCart
	}

	lg := zctx.From(ctx)
	if len(priced.Stale) > 0 {
		lg.Warn("Dropping cart lines missing from catalog", zap.Int64s("book_ids", priced.Stale))
	}

	o := newOrder(cc, shipping, priced)
	err = p.tx.InTx(ctx, func(ctx context.Context) error {
		if err := p.orders.Create(ctx, o); err != nil {
			return err
		}
		if cc.Authenticated() {
			if err := p.profiles.WriteMirror(ctx, cc.UserID, ""); err != nil {
				return errors.Wrapf(err, "clear cart mirror of user %d", cc.UserID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "place order")
	}

	c.Discard()

	span.SetAttributes(attribute.Int64("order.id", o.ID))
	p.placed.Add(ctx, 1)
	p.amount.Record(ctx, o.AmountPaid.InexactFloat64())
	lg.Info("Order placed",
		zap.Int64("order_id", o.ID),
		zap.Int("items", len(o.Items)),
		zap.String("amount", o.AmountPaid.StringFixed(2)),
	)
	return o, nil
}

func newOrder(cc cart.Context, s Shipping, priced cart.Priced) *order.Order {
	var userID *int64
	if cc.Authenticated() {
		id := cc.UserID
		userID = &id
	}

	items := make([]order.Item, 0, len(priced.Lines))
	for _, l := range priced.Lines {
		items = append(items, order.Item{
			BookID:   l.Book.ID,
			UserID:   userID,
			Quantity: l.Quantity,
			Price:    l.UnitPrice,
		})
	}

	return &order.Order{
		UserID:          userID,
		FullName:        s.FullName,
		Email:           s.Email,
		ShippingAddress: s.AddressText(),
		AmountPaid:      priced.Total,
		Items:           items,
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingShippingData):
		return "missing_shipping"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	default:
		return "error"
	}
}
