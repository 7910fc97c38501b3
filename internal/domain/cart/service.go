package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bookstore/internal/domain/catalog"
	"github.com/xenking/bookstore/internal/session"
)

// Service opens carts and runs the catalog-aware cart operations.
type Service struct {
	books  catalog.Repository
	mirror MirrorStore
}

// NewService creates a cart Service.
func NewService(books catalog.Repository, mirror MirrorStore) *Service {
	return &Service{books: books, mirror: mirror}
}

// Open returns the cart of the session in cc, creating an empty one on first
// access.
func (s *Service) Open(cc Context) (*Cart, error) {
	if cc.Session == nil {
		return nil, errors.New("cart context has no session")
	}

	c := &Cart{cc: cc, books: s.books, mirror: s.mirror}

	data, ok := cc.Session.Get(session.CartKey)
	if !ok {
		c.lines = make(Lines)
		cc.Session.Set(session.CartKey, encodeLines(c.lines))
		return c, nil
	}

	lines, err := decodeLines(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode cart of session %s", cc.Session.ID)
	}
	c.lines = lines
	return c, nil
}

// Add looks the book up in the catalog and adds it to the cart. It returns
// catalog.ErrNotFound, without touching the cart, when the book does not
// exist.
func (s *Service) Add(ctx context.Context, c *Cart, bookID int64, quantity int) error {
	if quantity < 1 {
		return &InvalidQuantityError{BookID: bookID, Quantity: quantity}
	}
	b, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return err
	}
	return c.Add(ctx, *b, quantity)
}

// Restore opens the cart of a user who has just signed in and pulls the
// durable mirror into it. A corrupt mirror is logged and skipped so that the
// sign-in still succeeds.
func (s *Service) Restore(ctx context.Context, cc Context) (*Cart, error) {
	c, err := s.Open(cc)
	if err != nil {
		return nil, err
	}

	if err := c.Pull(ctx); err != nil {
		var corrupt *CorruptCartDataError
		if !errors.As(err, &corrupt) {
			return nil, err
		}
		zctx.From(ctx).Warn("Skipping corrupt saved cart",
			zap.Int64("user_id", corrupt.UserID),
			zap.Error(corrupt.Err),
		)
	}
	return c, nil
}
