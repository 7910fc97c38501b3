package cart

import (
	"context"
	"fmt"
	"maps"

	"github.com/go-faster/errors"
)

// MirrorStore persists the durable cart mirror of a user.
type MirrorStore interface {
	// ReadMirror returns an empty string when the user has no saved cart.
	ReadMirror(ctx context.Context, userID int64) (string, error)
	// WriteMirror overwrites the saved cart unconditionally.
	WriteMirror(ctx context.Context, userID int64, text string) error
}

// CorruptCartDataError indicates the durable mirror of a user could not be
// parsed.
type CorruptCartDataError struct {
	UserID int64
	Err    error
}

func (e *CorruptCartDataError) Error() string {
	return fmt.Sprintf("corrupt cart data for user %d: %v", e.UserID, e.Err)
}

func (e *CorruptCartDataError) Unwrap() error { return e.Err }

// push overwrites the durable mirror with lines. Concurrent writers for the
// same user are last-write-wins.
func (c *Cart) push(ctx context.Context, lines Lines) error {
	if err := c.mirror.WriteMirror(ctx, c.cc.UserID, EncodeMirror(lines)); err != nil {
		return errors.Wrapf(err, "write cart mirror of user %d", c.cc.UserID)
	}
	return nil
}

// Pull copies the durable mirror into the cart with AddRaw semantics: books
// already in the cart keep their quantity. Guests have no mirror and are left
// untouched.
//
// An unparseable mirror yields *CorruptCartDataError and leaves the cart
// unchanged. Every entry is validated before the first one is applied, and a
// failed rewrite of the mirror leaves the cart unchanged too.
func (c *Cart) Pull(ctx context.Context) error {
	if !c.cc.Authenticated() {
		return nil
	}

	text, err := c.mirror.ReadMirror(ctx, c.cc.UserID)
	if err != nil {
		return errors.Wrapf(err, "read cart mirror of user %d", c.cc.UserID)
	}

	raw, err := DecodeMirror(text)
	if err != nil {
		return &CorruptCartDataError{UserID: c.cc.UserID, Err: err}
	}
	if len(raw) == 0 {
		return nil
	}

	type entry struct {
		id  int64
		qty int
	}
	entries := make([]entry, 0, len(raw))
	for _, r := range raw {
		id, qty, err := parseRaw(r.ID, r.Quantity)
		if err == nil && qty < 1 {
			err = &InvalidQuantityError{BookID: id, Quantity: qty}
		}
		if err != nil {
			return &CorruptCartDataError{UserID: c.cc.UserID, Err: err}
		}
		entries = append(entries, entry{id: id, qty: qty})
	}

	next := maps.Clone(c.lines)
	for _, e := range entries {
		insertLine(next, e.id, e.qty)
	}
	return c.commit(ctx, next)
}
