package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo mirrors the shipped-date rule of the PostgreSQL repository.
type memRepo struct {
	orders map[int64]*Order
}

func (m *memRepo) Create(_ context.Context, o *Order) error {
	m.orders[o.ID] = o
	return nil
}

func (m *memRepo) Get(_ context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *memRepo) ListByShipped(_ context.Context, shipped bool) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.Shipped == shipped {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memRepo) SetShipped(_ context.Context, id int64, shipped bool, at time.Time) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if shipped && o.DateShipped == nil {
		o.DateShipped = &at
	}
	o.Shipped = shipped
	return o, nil
}

func TestFulfillment_SetShipped(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{orders: map[int64]*Order{1: {ID: 1}, 2: {ID: 2}}}
	f := NewFulfillment(repo)

	first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return first }

	o, err := f.SetShipped(ctx, 1, true)
	require.NoError(t, err)
	assert.True(t, o.Shipped)
	require.NotNil(t, o.DateShipped)
	assert.Equal(t, first, *o.DateShipped)

	// Marking an already shipped order again keeps the original date.
	f.now = func() time.Time { return first.Add(time.Hour) }
	o, err = f.SetShipped(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, first, *o.DateShipped)

	pending, err := f.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].ID)

	shipped, err := f.Shipped(ctx)
	require.NoError(t, err)
	require.Len(t, shipped, 1)
	assert.Equal(t, int64(1), shipped[0].ID)
}

func TestFulfillment_SetShippedMissing(t *testing.T) {
	f := NewFulfillment(&memRepo{orders: map[int64]*Order{}})

	_, err := f.SetShipped(context.Background(), 42, true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFulfillment_Get(t *testing.T) {
	ctx := context.Background()
	f := NewFulfillment(&memRepo{orders: map[int64]*Order{
		7: {ID: 7, Items: []Item{{ID: 1, OrderID: 7, BookID: 3, Quantity: 2}}},
	}})

	o, err := f.Get(ctx, 7)
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(3), o.Items[0].BookID)

	_, err = f.Get(ctx, 8)
	require.ErrorIs(t, err, ErrNotFound)
}
