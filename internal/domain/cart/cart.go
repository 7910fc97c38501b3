// Package cart implements the session-scoped shopping cart, its pricing, and
// the bridge that mirrors it onto the user's profile.
//
// A cart lives in two places at once. The ephemeral copy is stored in the
// browsing session under session.CartKey. For authenticated users every
// mutation also overwrites the durable mirror kept on the profile, so the cart
// survives logout and can be pulled back into a fresh session on login.
package cart

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/bookstore/internal/domain/catalog"
	"github.com/xenking/bookstore/internal/session"
)

// Lines maps a book id to the quantity in the cart.
type Lines map[int64]int

// IDs returns the book ids in ascending order.
func (l Lines) IDs() []int64 {
	ids := make([]int64, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// InvalidQuantityError indicates a non-positive quantity on add or update.
type InvalidQuantityError struct {
	BookID   int64
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for book %d, got %d", e.BookID, e.Quantity)
}

// Context identifies whose cart an operation works on. UserID is zero for
// guests.
type Context struct {
	Session *session.Session
	UserID  int64
}

// Authenticated reports whether the cart belongs to a signed-in user.
func (c Context) Authenticated() bool { return c.UserID != 0 }

// Cart is the ephemeral cart of one session, opened for the duration of a
// single request.
type Cart struct {
	cc     Context
	lines  Lines
	books  catalog.Repository
	mirror MirrorStore
}

// Context returns the context the cart was opened with.
func (c *Cart) Context() Context { return c.cc }

// Add puts quantity copies of b into the cart. A book that is already in the
// cart keeps its current quantity: the first add wins and later adds of the
// same book change nothing.
func (c *Cart) Add(ctx context.Context, b catalog.Book, quantity int) error {
	return c.insert(ctx, b.ID, quantity)
}

// AddRaw is Add for ids and quantities that arrive as text, as they do when
// restoring from the durable mirror. Both values are coerced to integers.
func (c *Cart) AddRaw(ctx context.Context, rawID, rawQuantity string) error {
	id, qty, err := parseRaw(rawID, rawQuantity)
	if err != nil {
		return err
	}
	return c.insert(ctx, id, qty)
}

func parseRaw(rawID, rawQuantity string) (int64, int, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "parse book id %q", rawID)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(rawQuantity))
	if err != nil {
		return 0, 0, errors.Wrapf(err, "parse quantity %q for book %d", rawQuantity, id)
	}
	return id, qty, nil
}

func (c *Cart) insert(ctx context.Context, id int64, quantity int) error {
	if quantity < 1 {
		return &InvalidQuantityError{BookID: id, Quantity: quantity}
	}
	next := maps.Clone(c.lines)
	insertLine(next, id, quantity)
	return c.commit(ctx, next)
}

func insertLine(lines Lines, id int64, quantity int) {
	if _, ok := lines[id]; !ok {
		lines[id] = quantity
	}
}

// Update sets the quantity of a book, adding the book if it is absent.
func (c *Cart) Update(ctx context.Context, id int64, quantity int) error {
	if quantity < 1 {
		return &InvalidQuantityError{BookID: id, Quantity: quantity}
	}
	next := maps.Clone(c.lines)
	next[id] = quantity
	return c.commit(ctx, next)
}

// Delete removes a book from the cart. Removing an absent book is not an
// error.
func (c *Cart) Delete(ctx context.Context, id int64) error {
	next := maps.Clone(c.lines)
	delete(next, id)
	return c.commit(ctx, next)
}

// Size returns the number of distinct books, not the number of copies.
func (c *Cart) Size() int { return len(c.lines) }

// Lines returns the cart contents. The map is owned by the cart and must not
// be modified by the caller.
func (c *Cart) Lines() Lines { return c.lines }

// ResolveProducts fetches the catalog entries for every book in the cart.
// Books that no longer exist in the catalog are left out.
func (c *Cart) ResolveProducts(ctx context.Context) ([]catalog.Book, error) {
	if len(c.lines) == 0 {
		return nil, nil
	}
	books, err := c.books.GetByIDs(ctx, c.lines.IDs())
	if err != nil {
		return nil, errors.Wrap(err, "resolve cart books")
	}
	return books, nil
}

// Total prices the cart against the current catalog.
func (c *Cart) Total(ctx context.Context) (Priced, error) {
	books, err := c.ResolveProducts(ctx)
	if err != nil {
		return Priced{}, err
	}
	return Price(c.lines, books), nil
}

// Discard removes the cart from the session entirely. The durable mirror is
// not touched.
func (c *Cart) Discard() {
	c.cc.Session.Delete(session.CartKey)
	c.lines = make(Lines)
}

// commit makes next the cart contents. For signed-in users the durable mirror
// is written first: if that write fails, both the cart and the session keep
// their previous contents.
func (c *Cart) commit(ctx context.Context, next Lines) error {
	if c.cc.Authenticated() {
		if err := c.push(ctx, next); err != nil {
			return err
		}
	}
	c.lines = next
	c.cc.Session.Set(session.CartKey, encodeLines(next))
	return nil
}
