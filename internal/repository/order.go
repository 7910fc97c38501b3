package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bookstore/internal/domain/order"
)

const (
	orderColumns = `id, user_id, full_name, email, shipping_address, amount_paid, date_ordered, shipped, date_shipped`

	createOrderSQL = `INSERT INTO orders (user_id, full_name, email, shipping_address, amount_paid)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, date_ordered`

	createOrderItemSQL = `INSERT INTO order_items (order_id, book_id, user_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrderItemsSQL = `SELECT id, order_id, book_id, user_id, quantity, price
		FROM order_items WHERE order_id = $1 ORDER BY id`

	listOrdersByShippedSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE shipped = $1 ORDER BY date_ordered, id`

	// date_shipped is written once, on the first transition to shipped.
	setShippedSQL = `UPDATE orders
		SET date_shipped = CASE WHEN $2::boolean AND date_shipped IS NULL THEN $3::timestamptz ELSE date_shipped END,
			shipped = $2
		WHERE id = $1
		RETURNING ` + orderColumns
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
	tx   *Transactor
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool, tx: NewTransactor(pool)}
}

// Create persists a new order with its items. It joins the transaction in
// ctx when there is one.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.tx.InTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.pool)

		err := q.QueryRow(ctx, createOrderSQL,
			o.UserID, o.FullName, o.Email, o.ShippingAddress, o.AmountPaid,
		).Scan(&o.ID, &o.DateOrdered)
		if err != nil {
			return fmt.Errorf("creating order: %w", err)
		}

		if len(o.Items) == 0 {
			return nil
		}
		b := &pgx.Batch{}
		for i := range o.Items {
			it := &o.Items[i]
			it.OrderID = o.ID
			b.Queue(createOrderItemSQL, it.OrderID, it.BookID, it.UserID, it.Quantity, it.Price).
				QueryRow(func(row pgx.Row) error {
					return row.Scan(&it.ID)
				})
		}
		if err := q.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("creating items of order %d: %w", o.ID, err)
		}
		return nil
	})
}

// Get returns the order with its items.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	q := conn(ctx, r.pool)

	rows, err := q.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	rows, err = q.Query(ctx, listOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %d: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %d: %w", id, err)
	}
	return &o, nil
}

// ListByShipped returns orders with the given shipping status, without items.
func (r *OrderRepository) ListByShipped(ctx context.Context, shipped bool) ([]order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listOrdersByShippedSQL, shipped)
	if err != nil {
		return nil, fmt.Errorf("listing orders (shipped=%t): %w", shipped, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// SetShipped updates the shipping status and returns the order without items.
func (r *OrderRepository) SetShipped(ctx context.Context, id int64, shipped bool, at time.Time) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, setShippedSQL, id, shipped, at)
	if err != nil {
		return nil, fmt.Errorf("updating order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating order %d: %w", id, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.FullName, &o.Email, &o.ShippingAddress,
		&o.AmountPaid, &o.DateOrdered, &o.Shipped, &o.DateShipped,
	)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(&it.ID, &it.OrderID, &it.BookID, &it.UserID, &it.Quantity, &it.Price)
	return it, err
}
