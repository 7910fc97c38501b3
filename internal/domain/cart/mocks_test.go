package cart

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/bookstore/internal/domain/catalog"
	"github.com/xenking/bookstore/internal/session"
)

type mockCatalog struct {
	byID    map[int64]catalog.Book
	getErr  error
	lookups int
}

func newCatalog(books ...catalog.Book) *mockCatalog {
	byID := make(map[int64]catalog.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}
	return &mockCatalog{byID: byID}
}

func (m *mockCatalog) List(_ context.Context) ([]catalog.Book, error) { return nil, nil }

func (m *mockCatalog) Categories(_ context.Context) ([]catalog.Category, error) { return nil, nil }

func (m *mockCatalog) ListByCategory(_ context.Context, _ string) ([]catalog.Book, error) {
	return nil, nil
}

func (m *mockCatalog) GetByID(_ context.Context, id int64) (*catalog.Book, error) {
	m.lookups++
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &b, nil
}

func (m *mockCatalog) GetByIDs(_ context.Context, ids []int64) ([]catalog.Book, error) {
	m.lookups++
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []catalog.Book
	for _, id := range ids {
		if b, ok := m.byID[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

type mockMirror struct {
	texts    map[int64]string
	writes   int
	readErr  error
	writeErr error
}

func newMirror() *mockMirror {
	return &mockMirror{texts: make(map[int64]string)}
}

func (m *mockMirror) ReadMirror(_ context.Context, userID int64) (string, error) {
	if m.readErr != nil {
		return "", m.readErr
	}
	return m.texts[userID], nil
}

func (m *mockMirror) WriteMirror(_ context.Context, userID int64, text string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.texts[userID] = text
	return nil
}

func book(id int64, price string) catalog.Book {
	return catalog.Book{
		ID:    id,
		Name:  "Book",
		Price: decimal.RequireFromString(price),
	}
}

func saleBook(id int64, price, sale string) catalog.Book {
	b := book(id, price)
	b.OnSale = true
	b.SalePrice = decimal.RequireFromString(sale)
	return b
}

func newSession() *session.Session {
	return session.New()
}
