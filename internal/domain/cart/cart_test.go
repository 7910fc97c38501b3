package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bookstore/internal/domain/catalog"
	"github.com/xenking/bookstore/internal/session"
)

func openCart(t *testing.T, svc *Service, cc Context) *Cart {
	t.Helper()
	c, err := svc.Open(cc)
	require.NoError(t, err)
	return c
}

func TestOpen_CreatesEmptyCart(t *testing.T) {
	s := newSession()
	c := openCart(t, NewService(newCatalog(), newMirror()), Context{Session: s})

	assert.Equal(t, 0, c.Size())
	data, ok := s.Get(session.CartKey)
	require.True(t, ok)
	assert.Equal(t, "{}", string(data))
}

func TestOpen_ReadsExistingCart(t *testing.T) {
	s := newSession()
	s.Set(session.CartKey, []byte(`{"3":1,"2":4}`))

	c := openCart(t, NewService(newCatalog(), newMirror()), Context{Session: s})
	assert.Equal(t, Lines{3: 1, 2: 4}, c.Lines())
}

func TestOpen_CorruptSessionCart(t *testing.T) {
	s := newSession()
	s.Set(session.CartKey, []byte(`{"3":`))

	_, err := NewService(newCatalog(), newMirror()).Open(Context{Session: s})
	require.Error(t, err)
}

func TestOpen_NoSession(t *testing.T) {
	_, err := NewService(newCatalog(), newMirror()).Open(Context{})
	require.Error(t, err)
}

func TestAdd_FirstWriteWins(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newCatalog(book(1, "10.00")), newMirror())
	c := openCart(t, svc, Context{Session: newSession()})

	require.NoError(t, svc.Add(ctx, c, 1, 5))
	require.NoError(t, svc.Add(ctx, c, 1, 9))

	assert.Equal(t, Lines{1: 5}, c.Lines())
}

func TestAdd_DuplicateKeepsSessionValue(t *testing.T) {
	ctx := context.Background()
	s := session.New()
	s.Set(session.CartKey, []byte(`{"1":5}`))
	svc := NewService(newCatalog(book(1, "10.00")), newMirror())
	c := openCart(t, svc, Context{Session: s})

	require.NoError(t, c.Add(ctx, book(1, "10.00"), 9))
	data, _ := s.Get(session.CartKey)
	assert.Equal(t, `{"1":5}`, string(data))
}

func TestAdd_NotFoundLeavesCartUntouched(t *testing.T) {
	ctx := context.Background()
	mirror := newMirror()
	svc := NewService(newCatalog(), mirror)
	c := openCart(t, svc, Context{Session: newSession(), UserID: 7})

	err := svc.Add(ctx, c, 42, 1)
	require.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Equal(t, 0, c.Size())
	assert.Equal(t, 0, mirror.writes)
}

func TestAdd_InvalidQuantity(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(book(1, "10.00"))
	svc := NewService(cat, newMirror())
	c := openCart(t, svc, Context{Session: newSession()})

	for _, qty := range []int{0, -3} {
		err := svc.Add(ctx, c, 1, qty)
		var iq *InvalidQuantityError
		require.ErrorAs(t, err, &iq)
		assert.Equal(t, int64(1), iq.BookID)
	}
	assert.Equal(t, 0, cat.lookups)
	assert.Equal(t, 0, c.Size())
}

func TestUpdate_Overwrites(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, NewService(newCatalog(), newMirror()), Context{Session: newSession()})

	require.NoError(t, c.Update(ctx, 1, 5))
	require.NoError(t, c.Update(ctx, 1, 9))
	assert.Equal(t, Lines{1: 9}, c.Lines())

	// Update of an absent book creates the line.
	require.NoError(t, c.Update(ctx, 2, 3))
	assert.Equal(t, Lines{1: 9, 2: 3}, c.Lines())

	var iq *InvalidQuantityError
	require.ErrorAs(t, c.Update(ctx, 2, 0), &iq)
	assert.Equal(t, 3, c.Lines()[2])
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newSession()
	c := openCart(t, NewService(newCatalog(), newMirror()), Context{Session: s})

	require.NoError(t, c.Update(ctx, 1, 2))
	require.NoError(t, c.Delete(ctx, 99))
	assert.Equal(t, Lines{1: 2}, c.Lines())

	require.NoError(t, c.Delete(ctx, 1))
	assert.Empty(t, c.Lines())
	data, _ := s.Get(session.CartKey)
	assert.Equal(t, "{}", string(data))
}

func TestSize_CountsDistinctBooks(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, NewService(newCatalog(), newMirror()), Context{Session: newSession()})

	require.NoError(t, c.Update(ctx, 1, 1))
	require.NoError(t, c.Update(ctx, 2, 100))
	assert.Equal(t, 2, c.Size())
}

func TestAddRaw_CoercesText(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, NewService(newCatalog(), newMirror()), Context{Session: newSession()})

	require.NoError(t, c.AddRaw(ctx, "3", "1"))
	require.NoError(t, c.AddRaw(ctx, " 2 ", "4"))
	require.NoError(t, c.AddRaw(ctx, "3", "8"))
	assert.Equal(t, Lines{3: 1, 2: 4}, c.Lines())

	require.Error(t, c.AddRaw(ctx, "abc", "1"))
	require.Error(t, c.AddRaw(ctx, "5", "1.5"))
	assert.Equal(t, 2, c.Size())
}

func TestMutations_PushMirrorWhenAuthenticated(t *testing.T) {
	ctx := context.Background()
	mirror := newMirror()
	svc := NewService(newCatalog(book(1, "10.00")), mirror)
	c := openCart(t, svc, Context{Session: newSession(), UserID: 7})

	require.NoError(t, svc.Add(ctx, c, 1, 2))
	require.NoError(t, c.Update(ctx, 2, 3))
	require.NoError(t, c.Delete(ctx, 2))
	assert.Equal(t, 3, mirror.writes)

	raw, err := DecodeMirror(mirror.texts[7])
	require.NoError(t, err)
	assert.Equal(t, []RawLine{{ID: "1", Quantity: "2"}}, raw)
}

func TestMutations_GuestNeverPushes(t *testing.T) {
	ctx := context.Background()
	mirror := newMirror()
	c := openCart(t, NewService(newCatalog(), mirror), Context{Session: newSession()})

	require.NoError(t, c.Update(ctx, 1, 1))
	require.NoError(t, c.Delete(ctx, 1))
	assert.Equal(t, 0, mirror.writes)
}

func TestMutations_MirrorWriteFailureSurfaced(t *testing.T) {
	ctx := context.Background()
	mirror := newMirror()
	mirror.writeErr = errors.New("db down")
	c := openCart(t, NewService(newCatalog(), mirror), Context{Session: newSession(), UserID: 7})

	err := c.Update(ctx, 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write cart mirror of user 7")
}

func TestMutations_MirrorWriteFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	mirror := newMirror()
	s := newSession()
	svc := NewService(newCatalog(book(5, "12.00")), mirror)
	c := openCart(t, svc, Context{Session: s, UserID: 7})
	require.NoError(t, svc.Add(ctx, c, 5, 1))
	saved := mirror.texts[7]

	mirror.writeErr = errors.New("db down")
	for name, mutate := range map[string]func() error{
		"update": func() error { return c.Update(ctx, 5, 9) },
		"delete": func() error { return c.Delete(ctx, 5) },
		"add":    func() error { return c.AddRaw(ctx, "6", "2") },
	} {
		t.Run(name, func(t *testing.T) {
			require.Error(t, mutate())
			assert.Equal(t, Lines{5: 1}, c.Lines())

			data, ok := s.Get(session.CartKey)
			require.True(t, ok)
			lines, err := decodeLines(data)
			require.NoError(t, err)
			assert.Equal(t, Lines{5: 1}, lines)
			assert.Equal(t, saved, mirror.texts[7])
		})
	}
}

func TestResolveProducts_SkipsStale(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(book(1, "10.00"))
	c := openCart(t, NewService(cat, newMirror()), Context{Session: newSession()})

	books, err := c.ResolveProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
	assert.Equal(t, 0, cat.lookups, "empty cart must not query the catalog")

	require.NoError(t, c.Update(ctx, 1, 1))
	require.NoError(t, c.Update(ctx, 2, 1))
	books, err = c.ResolveProducts(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, int64(1), books[0].ID)
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	s := newSession()
	c := openCart(t, NewService(newCatalog(), newMirror()), Context{Session: s})
	require.NoError(t, c.Update(ctx, 1, 1))

	c.Discard()
	assert.False(t, s.Has(session.CartKey))
	assert.Equal(t, 0, c.Size())
}

func TestScenario_RepeatedAddKeepsFirstQuantity(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newCatalog(book(1, "12.50")), newMirror())
	c := openCart(t, svc, Context{Session: newSession()})

	require.NoError(t, svc.Add(ctx, c, 1, 2))
	require.NoError(t, svc.Add(ctx, c, 1, 5))

	priced, err := c.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, "25.00", priced.Total.StringFixed(2))
}
